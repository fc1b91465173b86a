package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbx-control/internal/pbx"
)

type countingReader struct {
	Reader
	tenantLookups int
}

func (c *countingReader) FindOperationalTenantByDomain(ctx context.Context, domain string) (*pbx.Tenant, error) {
	c.tenantLookups++
	return c.Reader.FindOperationalTenantByDomain(ctx, domain)
}

func newCached(t *testing.T) (*CachedStore, *countingReader, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	backing := &countingReader{Reader: testFixture().memory()}
	return NewCachedStore(backing, rdb, time.Minute, nil), backing, mr
}

func TestCachedStore_TenantHitAfterMiss(t *testing.T) {
	c, backing, mr := newCached(t)
	ctx := context.Background()

	first, err := c.FindOperationalTenantByDomain(ctx, "acme.example.com")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := c.FindOperationalTenantByDomain(ctx, "Acme.Example.com")
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, *first, *second)
	assert.Equal(t, 1, backing.tenantLookups)
	assert.True(t, mr.Exists("pbx:tenant:domain:acme.example.com"))
	assert.Equal(t, time.Minute, mr.TTL("pbx:tenant:domain:acme.example.com"))
}

func TestCachedStore_Invalidate(t *testing.T) {
	c, backing, mr := newCached(t)
	ctx := context.Background()

	_, err := c.FindOperationalTenantByDomain(ctx, "acme.example.com")
	require.NoError(t, err)
	require.NoError(t, c.InvalidateDomain(ctx, "ACME.example.com"))
	assert.False(t, mr.Exists("pbx:tenant:domain:acme.example.com"))

	_, err = c.FindOperationalTenantByDomain(ctx, "acme.example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, backing.tenantLookups)
}

func TestCachedStore_AbsentTenantNotCached(t *testing.T) {
	c, backing, mr := newCached(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		tn, err := c.FindOperationalTenantByDomain(ctx, "suspended.example.com")
		require.NoError(t, err)
		assert.Nil(t, tn)
	}
	assert.Equal(t, 2, backing.tenantLookups)
	assert.False(t, mr.Exists("pbx:tenant:domain:suspended.example.com"))
}

func TestCachedStore_CorruptEntryFallsThrough(t *testing.T) {
	c, backing, mr := newCached(t)
	require.NoError(t, mr.Set("pbx:tenant:domain:acme.example.com", "{garbage"))

	tn, err := c.FindOperationalTenantByDomain(context.Background(), "acme.example.com")
	require.NoError(t, err)
	require.NotNil(t, tn)
	assert.Equal(t, "t1", tn.ID)
	assert.Equal(t, 1, backing.tenantLookups)
}

func TestCachedStore_RedisDownDegrades(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewCachedStore(testFixture().memory(), rdb, time.Minute, nil)

	tn, err := c.FindOperationalTenantByDomain(context.Background(), "acme.example.com")
	require.NoError(t, err)
	require.NotNil(t, tn)
	assert.Equal(t, "t1", tn.ID)
}

func TestCachedStore_PassThrough(t *testing.T) {
	c, _, _ := newCached(t)
	e, err := c.GetExtension(context.Background(), "t1", "e1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "1001", e.Number)
}
