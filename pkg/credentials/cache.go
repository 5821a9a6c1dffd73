package credentials

import (
	"context"
	"sync"
	"time"
)

// tokenEntry holds a cached token with its expiration and insertion time.
type tokenEntry struct {
	token      string
	expiresAt  time.Time
	insertedAt time.Time
}

// CachingTokenSource wraps a TokenSource with a thread-safe TTL cache so
// the webhook fan-out does not hit the credential store once per tenant per
// event. Expired entries are lazily evicted on lookup; when the cache is
// full, the oldest entry by insertion time is dropped. Lookup failures are
// not cached, so a tenant that just provisioned a credential is picked up
// on the next event.
type CachingTokenSource struct {
	mu      sync.Mutex
	source  TokenSource
	items   map[string]*tokenEntry
	maxSize int
	ttl     time.Duration
}

// NewCachingTokenSource creates a caching wrapper around source.
// maxSize must be >= 1; ttl must be > 0.
func NewCachingTokenSource(source TokenSource, maxSize int, ttl time.Duration) *CachingTokenSource {
	if maxSize < 1 {
		maxSize = 1
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachingTokenSource{
		source:  source,
		items:   make(map[string]*tokenEntry, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Token returns the cached token for the tenant, consulting the underlying
// source on a miss.
func (c *CachingTokenSource) Token(ctx context.Context, tenant string) (string, error) {
	c.mu.Lock()
	if e, ok := c.items[tenant]; ok {
		if time.Now().Before(e.expiresAt) {
			token := e.token
			c.mu.Unlock()
			return token, nil
		}
		delete(c.items, tenant)
	}
	c.mu.Unlock()

	token, err := c.source.Token(ctx, tenant)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) >= c.maxSize {
		c.evictOldest()
	}
	now := time.Now()
	c.items[tenant] = &tokenEntry{
		token:      token,
		expiresAt:  now.Add(c.ttl),
		insertedAt: now,
	}
	return token, nil
}

// Invalidate drops a tenant's cached token, forcing the next lookup through
// to the source. Called when a credential is rewritten.
func (c *CachingTokenSource) Invalidate(tenant string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, tenant)
}

// evictOldest removes the entry with the earliest insertion time.
// Caller must hold the lock.
func (c *CachingTokenSource) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, e := range c.items {
		if first || e.insertedAt.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.insertedAt
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}
