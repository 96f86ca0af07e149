package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a size-bounded in-process cache with per-entry TTL.
type LRU struct {
	cache *lru.Cache[string, ttlEntry]
	ttl   time.Duration
	now   func() time.Time
}

type ttlEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewLRU creates a cache of at most size entries; ttl 0 means no expiry.
func NewLRU(size int, ttl time.Duration) (*LRU, error) {
	c, err := lru.New[string, ttlEntry](size)
	if err != nil {
		return nil, err
	}
	return &LRU{cache: c, ttl: ttl, now: time.Now}, nil
}

func (c *LRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := c.cache.Get(key)
	if ok && c.ttl > 0 && c.now().After(e.expiresAt) {
		c.cache.Remove(key)
		ok = false
	}
	if !ok {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *LRU) Set(_ context.Context, key string, val []byte) error {
	c.cache.Add(key, ttlEntry{value: val, expiresAt: c.now().Add(c.ttl)})
	return nil
}

func (c *LRU) Len() int { return c.cache.Len() }
