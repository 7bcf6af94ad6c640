package rbac

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheTTL matches the session timeout used for issued tokens.
const DefaultCacheTTL = 30 * time.Minute

// DefaultMaxRoles bounds the number of roles held in memory.
const DefaultMaxRoles = 1024

// Loader is the subset of Store the cache reads from.
type Loader interface {
	GetPermissionsForRole(ctx context.Context, roleID int64) (KeySet, error)
	GetAllPermissions(ctx context.Context) (KeySet, error)
}

// Invalidator drops cached grants after a mutation.
type Invalidator interface {
	InvalidateRole(ctx context.Context, roleID int64) error
	InvalidateCatalog(ctx context.Context) error
}

type cacheEntry struct {
	keys      KeySet
	expiresAt time.Time
	gen       uint64
}

// Cache is the process-wide role → permission set cache. Entries are keyed
// by role id and the least recently used role is evicted past maxRoles.
// Concurrent misses for the same role may each load from the store; the last
// writer wins.
type Cache struct {
	loader   Loader
	ttl      time.Duration
	maxRoles int
	now      func() time.Time
	metrics  *Metrics

	roles *lru.Cache[int64, *cacheEntry]
	gens  sync.Map // int64 -> *atomic.Uint64

	catalog    atomic.Pointer[cacheEntry]
	catalogGen atomic.Uint64
}

// CacheOption customises a Cache.
type CacheOption func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithMaxRoles overrides DefaultMaxRoles.
func WithMaxRoles(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.maxRoles = n
		}
	}
}

// WithCacheMetrics records hit and miss counters.
func WithCacheMetrics(m *Metrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// NewCache constructs a Cache. A non-positive ttl uses DefaultCacheTTL.
func NewCache(loader Loader, ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &Cache{loader: loader, ttl: ttl, maxRoles: DefaultMaxRoles, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	// lru.New only fails on a non-positive size, which WithMaxRoles rejects.
	c.roles, _ = lru.New[int64, *cacheEntry](c.maxRoles)
	return c
}

// Resolve returns the permission keys held by roleID.
func (c *Cache) Resolve(ctx context.Context, roleID int64) (KeySet, error) {
	gen := c.generation(roleID)
	current := gen.Load()
	if entry, ok := c.roles.Get(roleID); ok {
		if entry.gen == current && c.now().Before(entry.expiresAt) {
			c.metrics.observeCache(cacheHit)
			return entry.keys, nil
		}
	}
	c.metrics.observeCache(cacheMiss)

	keys, err := c.loader.GetPermissionsForRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if keys == nil {
		keys = KeySet{}
	}
	// An invalidation that lands during the load bumps the generation, so a
	// stale write stamped with the old value is ignored by later lookups.
	c.roles.Add(roleID, &cacheEntry{keys: keys, expiresAt: c.now().Add(c.ttl), gen: current})
	return keys, nil
}

// Known reports whether key exists in the permission catalog.
func (c *Cache) Known(ctx context.Context, key string) (bool, error) {
	current := c.catalogGen.Load()
	if entry := c.catalog.Load(); entry != nil && entry.gen == current && c.now().Before(entry.expiresAt) {
		return entry.keys.Has(key), nil
	}
	keys, err := c.loader.GetAllPermissions(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if keys == nil {
		keys = KeySet{}
	}
	c.catalog.Store(&cacheEntry{keys: keys, expiresAt: c.now().Add(c.ttl), gen: current})
	return keys.Has(key), nil
}

// InvalidateRole drops the cached set for roleID.
func (c *Cache) InvalidateRole(_ context.Context, roleID int64) error {
	c.generation(roleID).Add(1)
	c.roles.Remove(roleID)
	return nil
}

// InvalidateCatalog drops the cached catalog snapshot.
func (c *Cache) InvalidateCatalog(_ context.Context) error {
	c.catalogGen.Add(1)
	c.catalog.Store(nil)
	return nil
}

// Len returns the number of cached roles.
func (c *Cache) Len() int {
	return c.roles.Len()
}

// Close drops every entry. The cache remains usable afterwards.
func (c *Cache) Close() {
	for _, roleID := range c.roles.Keys() {
		_ = c.InvalidateRole(context.Background(), roleID)
	}
	_ = c.InvalidateCatalog(context.Background())
}

func (c *Cache) generation(roleID int64) *atomic.Uint64 {
	if v, ok := c.gens.Load(roleID); ok {
		return v.(*atomic.Uint64)
	}
	v, _ := c.gens.LoadOrStore(roleID, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

var _ Invalidator = (*Cache)(nil)
