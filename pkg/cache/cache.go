package cache

import (
	"sync"
	"time"
)

// Item represents a cached item with expiration
type Item struct {
	Value      any
	Expiration int64
}

// Expired checks if the cache item has expired
func (item Item) Expired(now time.Time) bool {
	if item.Expiration == 0 {
		return false
	}
	return now.UnixNano() > item.Expiration
}

// Options configures a Cache
type Options struct {
	// DefaultExpiration applies to Set; zero means items never expire
	DefaultExpiration time.Duration
	// CleanupInterval enables a background sweep of expired items when positive
	CleanupInterval time.Duration
	// MaxItems bounds the cache; zero means unbounded
	MaxItems int
}

// Cache is a thread-safe in-memory cache with expiration
type Cache struct {
	mu      sync.RWMutex
	items   map[string]Item
	options Options
	now     func() time.Time
	stop    chan struct{}
}

// New creates a cache and starts the cleanup goroutine if requested
func New(options Options) *Cache {
	c := &Cache{
		items:   make(map[string]Item),
		options: options,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	if options.CleanupInterval > 0 {
		go c.startCleanupTimer()
	}

	return c
}

// Set adds an item to the cache with the default expiration
func (c *Cache) Set(key string, value any) {
	c.SetWithExpiration(key, value, c.options.DefaultExpiration)
}

// SetWithExpiration adds an item to the cache with a specific expiration time
func (c *Cache) SetWithExpiration(key string, value any, d time.Duration) {
	var exp int64
	if d > 0 {
		exp = c.now().Add(d).UnixNano()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.options.MaxItems > 0 && len(c.items) >= c.options.MaxItems {
		c.evictOldest()
	}

	c.items[key] = Item{Value: value, Expiration: exp}
}

// Get retrieves an item from the cache
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, found := c.items[key]
	if !found || item.Expired(c.now()) {
		return nil, false
	}

	return item.Value, true
}

// Delete removes an item from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Count returns the number of items in the cache (including expired items)
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the cleanup goroutine
func (c *Cache) Close() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
}

func (c *Cache) startCleanupTimer() {
	ticker := time.NewTicker(c.options.CleanupInterval)
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

	now := c.now()
	for k, v := range c.items {
		if v.Expired(now) {
			delete(c.items, k)
		}
	}
}

// evictOldest removes the item closest to expiring; caller holds the lock
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestTime int64
	first := true

	for k, v := range c.items {
		if first || (v.Expiration != 0 && (oldestTime == 0 || v.Expiration < oldestTime)) {
			oldestKey = k
			oldestTime = v.Expiration
			first = false
		}
	}

	if !first {
		delete(c.items, oldestKey)
	}
}
