package main

import (
	"database/sql"
	"net/http"
	"time"

	"pbx-control/internal/metrics"
	"pbx-control/internal/rbac"
	"pbx-control/internal/routing"
	"pbx-control/internal/store"
	"pbx-control/internal/telephony"
	"pbx-control/pkg/utils"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	Compiler    *routing.Compiler
	Tenants     store.Reader
	Invalidator telephony.CacheInvalidator
	Metrics     *metrics.Metrics
	Audit       telephony.Auditor
	AuthMW      gin.HandlerFunc
	DB          *sql.DB

	// SwitchUser/SwitchPass enable basic auth on the switch callback when set.
	SwitchUser string
	SwitchPass string
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if d.DB != nil {
			if err := utils.HealthCheck(c.Request.Context(), d.DB, 2*time.Second); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": "unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	// switch callback
	{
		h := telephony.XMLCurlHandler{Compiler: d.Compiler, Observer: d.Metrics}
		var mw []gin.HandlerFunc
		if d.SwitchUser != "" {
			mw = append(mw, gin.BasicAuth(gin.Accounts{d.SwitchUser: d.SwitchPass}))
		}
		r.POST("/freeswitch/xml", append(mw, h.Handle)...)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(d.AuthMW)
	{
		preview := v1.Group("/preview")
		preview.Use(rbac.RequireTenant())
		preview.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAdmin, rbac.RoleSuperAdmin))
		preview.Use(rbac.RequireDomainScope())
		{
			h := telephony.PreviewHandler{Compiler: d.Compiler, Tenants: d.Tenants, Audit: d.Audit}
			preview.GET("/directory", h.Directory)
			preview.GET("/dialplan", h.Dialplan)
		}

		// ADMIN routes
		// Cache flushes cross tenant boundaries, so only platform roles may call them.
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleSuperAdmin, rbac.RoleNetworkOperator))
		{
			h := telephony.CacheHandler{Invalidator: d.Invalidator, Audit: d.Audit}
			admin.POST("/cache/invalidate", h.Invalidate)
		}
	}
}
