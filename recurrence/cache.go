package recurrence

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/pverga/libitip/calendar"
)

// cacheEntry holds one resolved instance list.
type cacheEntry struct {
	instances  []calendar.Instance
	expiresAt  time.Time
	accessedAt time.Time
}

// Cache memoizes instance resolution results per (event identity, window,
// options). Entries expire after a TTL and the least recently accessed ones
// are evicted when the entry limit is exceeded.
type Cache struct {
	entries         map[string]*cacheEntry
	mutex           sync.RWMutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// CacheConfig holds configuration for the resolution cache.
type CacheConfig struct {
	TTL             time.Duration
	MaxEntries      int
	CleanupInterval time.Duration
}

// DefaultCacheConfig provides sensible defaults for instance caching.
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

// NewCache creates a resolution cache with the given configuration.
func NewCache(config CacheConfig) *Cache {
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig.TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCacheConfig.CleanupInterval
	}
	c := &Cache{
		entries:         make(map[string]*cacheEntry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// key derives the cache key. Sequence and Changed participate so any
// accepted mutation of the event invalidates its cached windows.
func (c *Cache) key(ev *calendar.Event, windowStart, windowEnd time.Time, opts *ResolveOptions) string {
	hasher := sha256.New()
	fmt.Fprintf(hasher, "%s|%d|%d|%d|%d|%s|%d",
		ev.UID, ev.Sequence, ev.Changed.UnixNano(),
		windowStart.UnixNano(), windowEnd.UnixNano(),
		opts.WantedInstanceID, opts.Limit)
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// Get retrieves a cached result if present and fresh.
func (c *Cache) Get(ev *calendar.Event, windowStart, windowEnd time.Time, opts *ResolveOptions) ([]calendar.Instance, bool) {
	key := c.key(ev, windowStart, windowEnd, opts)

	c.mutex.RLock()
	entry, exists := c.entries[key]
	c.mutex.RUnlock()
	if !exists {
		return nil, false
	}

	now := time.Now()
	if now.After(entry.expiresAt) {
		c.mutex.Lock()
		delete(c.entries, key)
		c.mutex.Unlock()
		return nil, false
	}

	c.mutex.Lock()
	entry.accessedAt = now
	c.mutex.Unlock()

	return cloneInstances(entry.instances), true
}

// cloneInstances deep-copies the instance list. The cached entries and the
// slices handed to callers must not share event state: a caller mutating a
// returned instance would otherwise corrupt later hits.
func cloneInstances(instances []calendar.Instance) []calendar.Instance {
	out := make([]calendar.Instance, len(instances))
	for i, inst := range instances {
		inst.Event = *inst.Event.Clone()
		out[i] = inst
	}
	return out
}

// Set stores a resolution result.
func (c *Cache) Set(ev *calendar.Event, windowStart, windowEnd time.Time, opts *ResolveOptions, instances []calendar.Instance) {
	key := c.key(ev, windowStart, windowEnd, opts)
	now := time.Now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = &cacheEntry{
		instances:  cloneInstances(instances),
		expiresAt:  now.Add(c.ttl),
		accessedAt: now,
	}
	if len(c.entries) > c.maxEntries {
		c.cleanup()
	}
}

// cleanup removes expired entries, then the least recently accessed ones
// while still over the limit. Callers hold the write lock.
func (c *Cache) cleanup() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	for len(c.entries) > c.maxEntries {
		oldestKey := ""
		var oldest time.Time
		for key, entry := range c.entries {
			if oldestKey == "" || entry.accessedAt.Before(oldest) {
				oldestKey = key
				oldest = entry.accessedAt
			}
		}
		delete(c.entries, oldestKey)
	}
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.cleanup()
			c.mutex.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and clears the cache.
func (c *Cache) Close() {
	close(c.stopCleanup)
	c.mutex.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mutex.Unlock()
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	total := len(c.entries)
	expired := 0
	now := time.Now()
	for _, entry := range c.entries {
		if now.After(entry.expiresAt) {
			expired++
		}
	}
	return CacheStats{
		TotalEntries:   total,
		ExpiredEntries: expired,
		ActiveEntries:  total - expired,
	}
}

// CacheStats provides information about cache occupancy.
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}
