package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"pbx-control/internal/pbx"
)

const tenantKeyPrefix = "pbx:tenant:domain:"

// CachedStore fronts a Reader with a Redis cache for domain -> tenant
// resolution, the lookup every switch request starts with. All other reads
// pass through to the wrapped Reader.
//
// Only operational tenants are cached. A tenant that is suspended or
// re-domained stays visible until its entry expires or InvalidateDomain runs.
type CachedStore struct {
	Reader

	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewCachedStore(next Reader, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *CachedStore {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedStore{Reader: next, rdb: rdb, ttl: ttl, log: log}
}

func tenantKey(domain string) string {
	return tenantKeyPrefix + strings.ToLower(strings.TrimSpace(domain))
}

// FindOperationalTenantByDomain serves from Redis when possible. Cache
// failures degrade to the backing store.
func (c *CachedStore) FindOperationalTenantByDomain(ctx context.Context, domain string) (*pbx.Tenant, error) {
	key := tenantKey(domain)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var t pbx.Tenant
		if jerr := json.Unmarshal(raw, &t); jerr == nil {
			return &t, nil
		}
		c.log.Warn("tenant cache entry unreadable", "domain", domain)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("tenant cache read failed", "domain", domain, "error", err.Error())
	}

	t, err := c.Reader.FindOperationalTenantByDomain(ctx, domain)
	if err != nil || t == nil {
		return t, err
	}

	if b, jerr := json.Marshal(t); jerr == nil {
		if serr := c.rdb.Set(ctx, key, b, c.ttl).Err(); serr != nil {
			c.log.Warn("tenant cache write failed", "domain", domain, "error", serr.Error())
		}
	}
	return t, nil
}

// InvalidateDomain drops the cached tenant for domain.
func (c *CachedStore) InvalidateDomain(ctx context.Context, domain string) error {
	return c.rdb.Del(ctx, tenantKey(domain)).Err()
}

var _ Reader = (*CachedStore)(nil)
