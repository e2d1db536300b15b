package cache

import (
	"context"
	"sync"
	"time"
)

// Store is a byte-oriented key/value cache with per-key expiry.
// Get reports a miss with ok == false and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Item represents a cached item with expiration
type Item struct {
	Value      []byte
	Expiration int64
}

// Expired checks if the cache item has expired
func (item Item) Expired() bool {
	if item.Expiration == 0 {
		return false
	}
	return time.Now().UnixNano() > item.Expiration
}

// Cache is a thread-safe in-memory Store with expiration
type Cache struct {
	items           map[string]Item
	mu              sync.RWMutex
	cleanupInterval time.Duration
	maxItems        int
	stop            chan struct{}
	once            sync.Once
}

// NewCache creates an in-memory cache. A positive cleanupInterval starts a
// janitor that drops expired entries; maxItems <= 0 means unbounded.
func NewCache(cleanupInterval time.Duration, maxItems int) *Cache {
	cache := &Cache{
		items:           make(map[string]Item),
		cleanupInterval: cleanupInterval,
		maxItems:        maxItems,
		stop:            make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go cache.startCleanupTimer()
	}

	return cache
}

// Set adds an item to the cache. ttl <= 0 never expires.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp int64
	if ttl > 0 {
		exp = time.Now().Add(ttl).UnixNano()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.maxItems > 0 && len(c.items) >= c.maxItems {
		c.evictOldest()
	}

	c.items[key] = Item{Value: value, Expiration: exp}
	return nil
}

// Get retrieves an item from the cache
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, found := c.items[key]
	if !found || item.Expired() {
		return nil, false, nil
	}
	return item.Value, true, nil
}

// Delete removes an item from the cache
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// Count returns the number of items in the cache (including expired items)
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Close stops the janitor
func (c *Cache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

func (c *Cache) startCleanupTimer() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.deleteExpired()
		}
	}
}

func (c *Cache) deleteExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixNano()
	for k, v := range c.items {
		if v.Expiration > 0 && now > v.Expiration {
			delete(c.items, k)
		}
	}
}

// evictOldest removes the entry closest to expiry. Entries without expiry
// are evicted last.
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestTime int64

	for k, v := range c.items {
		if oldestKey == "" || (v.Expiration != 0 && (oldestTime == 0 || v.Expiration < oldestTime)) {
			oldestKey = k
			oldestTime = v.Expiration
		}
	}

	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}
