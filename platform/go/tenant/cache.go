package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Cache memoizes directory lookups. Values are opaque bytes with per-entry
// TTL; staleness up to the TTL is an accepted, configured tradeoff.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Increment(ctx context.Context, key string) (int64, error)
	Close() error
}

// memoryCache is the single-node in-process fallback used when no Redis is
// configured. Expired entries are dropped lazily on read and by a periodic
// sweep.
type memoryCache struct {
	mu       sync.RWMutex
	items    map[string]memoryItem
	counters map[string]int64
	stop     chan struct{}
	done     chan struct{}
	closed   bool
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates an in-process cache with a background sweep.
func NewMemoryCache() Cache {
	c := &memoryCache{
		items:    make(map[string]memoryItem),
		counters: make(map[string]int64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.sweep()
	return c
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(item.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false
	}
	return item.value, true
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.items[key] = memoryItem{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

func (c *memoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *memoryCache) Increment(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

func (c *memoryCache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

func (c *memoryCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	<-c.done
	return nil
}

// NopCache disables caching; every lookup goes to the directory.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (NopCache) Set(context.Context, string, []byte, time.Duration) {}

func (NopCache) Delete(context.Context, string) {}

func (NopCache) Increment(context.Context, string) (int64, error) { return 0, nil }

func (NopCache) Close() error { return nil }

// CachedDirectory wraps a Directory with TTL memoization keyed by
// (kind, identifier). Only positive lookups are cached.
type CachedDirectory struct {
	inner Directory
	cache Cache
	ttl   time.Duration
}

// NewCachedDirectory builds the caching wrapper. A zero TTL disables caching.
func NewCachedDirectory(inner Directory, cache Cache, ttl time.Duration) *CachedDirectory {
	if inner == nil {
		panic("cached directory: inner directory is required")
	}
	if cache == nil {
		cache = NopCache{}
	}
	return &CachedDirectory{inner: inner, cache: cache, ttl: ttl}
}

func directoryKey(kind IdentifierKind, identifier string) string {
	return fmt.Sprintf("tenant:%s:%s", kind, identifier)
}

// FindByIdentifier implements Directory.
func (d *CachedDirectory) FindByIdentifier(ctx context.Context, identifier string, kind IdentifierKind) (*Tenant, error) {
	key := directoryKey(kind, identifier)
	if raw, ok := d.cache.Get(ctx, key); ok {
		var t Tenant
		if err := json.Unmarshal(raw, &t); err == nil {
			return &t, nil
		}
		// Corrupt entry; drop it and fall through to the directory.
		d.cache.Delete(ctx, key)
	}

	t, err := d.inner.FindByIdentifier(ctx, identifier, kind)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(t); err == nil {
		d.cache.Set(ctx, key, raw, d.ttl)
	}
	return t, nil
}

// Invalidate evicts every identifier key a tenant can be found under. Called
// when a tenant record changes so the staleness window does not apply to
// deactivations.
func (d *CachedDirectory) Invalidate(ctx context.Context, t *Tenant) {
	if t == nil {
		return
	}
	if t.Subdomain != "" {
		d.cache.Delete(ctx, directoryKey(IdentifierSubdomain, t.Subdomain))
	}
	if t.CustomDomain != "" {
		d.cache.Delete(ctx, directoryKey(IdentifierDomain, t.CustomDomain))
	}
	if t.Slug != "" {
		d.cache.Delete(ctx, directoryKey(IdentifierSlug, t.Slug))
	}
}

// CachedMemberships wraps a MembershipDirectory with TTL memoization keyed by
// (user, tenant).
type CachedMemberships struct {
	inner MembershipDirectory
	cache Cache
	ttl   time.Duration
}

// NewCachedMemberships builds the caching wrapper. A zero TTL disables caching.
func NewCachedMemberships(inner MembershipDirectory, cache Cache, ttl time.Duration) *CachedMemberships {
	if inner == nil {
		panic("cached memberships: inner directory is required")
	}
	if cache == nil {
		cache = NopCache{}
	}
	return &CachedMemberships{inner: inner, cache: cache, ttl: ttl}
}

func membershipKey(userID, tenantID uuid.UUID) string {
	return fmt.Sprintf("membership:%s:%s", userID, tenantID)
}

// FindMembership implements MembershipDirectory.
func (m *CachedMemberships) FindMembership(ctx context.Context, userID, tenantID uuid.UUID) (*Membership, error) {
	key := membershipKey(userID, tenantID)
	if raw, ok := m.cache.Get(ctx, key); ok {
		var mem Membership
		if err := json.Unmarshal(raw, &mem); err == nil {
			return &mem, nil
		}
		m.cache.Delete(ctx, key)
	}

	mem, err := m.inner.FindMembership(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(mem); err == nil {
		m.cache.Set(ctx, key, raw, m.ttl)
	}
	return mem, nil
}

// Invalidate evicts one (user, tenant) membership entry. Revocations call this
// so access does not outlive the row by the TTL.
func (m *CachedMemberships) Invalidate(ctx context.Context, userID, tenantID uuid.UUID) {
	m.cache.Delete(ctx, membershipKey(userID, tenantID))
}
