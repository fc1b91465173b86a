package main

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pbx-control/internal/audit"
	"pbx-control/internal/auth"
	"pbx-control/internal/config"
	"pbx-control/internal/metrics"
	"pbx-control/internal/routing"
	"pbx-control/internal/store"
	"pbx-control/pkg/logger"
	"pbx-control/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error(".env load failed", "err", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, dialect, err := openStore(rootCtx, cfg)
	if err != nil {
		log.Error("database init failed", "driver", cfg.DB.Driver, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	var (
		reader      store.Reader = store.NewSQLStore(db, dialect).WithLogger(log.With("subsystem", "store"))
		invalidator *store.CachedStore
	)
	if cfg.CacheEnabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer closeRedis(rdb)
		invalidator = store.NewCachedStore(reader, rdb, cfg.Redis.CacheTTL, log.With("subsystem", "tenant_cache"))
		reader = invalidator
	}

	auditRepo := audit.NewSQLRepo(db, dialect)
	var auditSvc *audit.Service
	if err := auditRepo.EnsureTable(rootCtx); err != nil {
		log.Warn("audit table unavailable, keeping audit events in memory", "err", err)
		auditSvc = audit.NewService(audit.NewMemoryRepo())
	} else {
		auditSvc = audit.NewService(auditRepo)
	}

	m := metrics.New()
	compiler := routing.NewCompiler(reader, routing.Options{
		Logger:             log,
		Observer:           m,
		DefaultCountryCode: cfg.Routing.DefaultCountryCode,
		LimitBackend:       cfg.Routing.LimitBackend,
	})

	r := newRouter(log, buildRouteDeps(cfg, db, reader, invalidator, auditSvc, m, compiler, authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "db_driver", cfg.DB.Driver, "tenant_cache", cfg.CacheEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// buildRouteDeps assembles handler dependencies. A nil invalidator leaves
// cache flushes as no-ops.
func buildRouteDeps(
	cfg config.Config,
	db *sql.DB,
	reader store.Reader,
	invalidator *store.CachedStore,
	auditSvc *audit.Service,
	m *metrics.Metrics,
	compiler *routing.Compiler,
	authManager *auth.Manager,
) routeDeps {
	deps := routeDeps{
		Compiler:   compiler,
		Tenants:    reader,
		Metrics:    m,
		Audit:      auditSvc,
		AuthMW:     auth.RequireAccessToken(authManager),
		SwitchUser: cfg.Switch.Username,
		SwitchPass: cfg.Switch.Password,
		DB:         db,
	}
	// keep the interface nil rather than holding a typed nil pointer
	if invalidator != nil {
		deps.Invalidator = invalidator
	}
	return deps
}

func newRouter(log *slog.Logger, d routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log, "/healthz", "/metrics"))
	registerRoutes(r, d)
	return r
}

func openStore(ctx context.Context, cfg config.Config) (*sql.DB, store.Dialect, error) {
	if cfg.DB.Driver == config.DriverSQLite {
		// single writer; the routing path only reads
		db, err := utils.OpenDB(ctx, config.DriverSQLite, cfg.DB.Path, utils.PoolConfig{MaxOpenConns: 1})
		if err != nil {
			return nil, "", err
		}
		if err := store.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, "", err
		}
		return db, store.DialectSQLite, nil
	}

	db, err := utils.OpenDB(ctx, config.DriverPostgres, cfg.PostgresDSN(), utils.PoolConfig{})
	if err != nil {
		return nil, "", err
	}
	return db, store.DialectPostgres, nil
}

func closeRedis(rdb *redis.Client) {
	if err := rdb.Close(); err != nil {
		slog.Warn("redis close failed", "err", err)
	}
}
