package memorycache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/asakaida/schemareg/pkg/cache"
)

// entryOverhead approximates the bookkeeping cost of one entry (list element, map slot, header)
const entryOverhead = 64

type entry struct {
	key       string
	value     interface{}
	expiresAt time.Time
	cost      int64
}

// Cache is a size-bounded LRU cache with per-entry TTL.
// Entry cost is estimated from the key and the value, see entryCost.
type Cache struct {
	mu        sync.RWMutex
	items     map[string]*list.Element
	evictList *list.List // front = most recently used

	maxCost int64
	ttl     time.Duration
	cost    int64

	metrics *cacheMetrics

	stop      chan struct{}
	closeOnce sync.Once
}

type cacheMetrics struct {
	hits        uint64
	misses      uint64
	keysAdded   uint64
	keysEvicted uint64
	costAdded   uint64
	costEvicted uint64
}

// Config holds configuration for the memory cache.
type Config struct {
	// MaxSizeBytes bounds the summed entry cost. Least recently used entries are evicted beyond it.
	MaxSizeBytes int64

	// DefaultTTL applies when Set is called with a non-positive TTL.
	DefaultTTL time.Duration

	// CleanupInterval enables a background sweep of expired entries. Zero disables it;
	// expired entries are then dropped lazily on Get.
	CleanupInterval time.Duration

	EnableMetrics bool
}

// New creates a new memory cache with the given configuration.
func New(config *Config) (*Cache, error) {
	c := &Cache{
		items:     make(map[string]*list.Element),
		evictList: list.New(),
		maxCost:   config.MaxSizeBytes,
		ttl:       config.DefaultTTL,
		stop:      make(chan struct{}),
	}
	if config.EnableMetrics {
		c.metrics = &cacheMetrics{}
	}
	if config.CleanupInterval > 0 {
		go c.janitor(config.CleanupInterval)
	}
	return c, nil
}

// Get retrieves a value and marks it most recently used.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		c.recordMiss()
		return nil, false
	}

	ent := elem.Value.(*entry)
	if time.Now().After(ent.expiresAt) {
		c.removeElement(elem)
		c.recordMiss()
		return nil, false
	}

	c.evictList.MoveToFront(elem)
	if c.metrics != nil {
		c.metrics.hits++
	}
	return ent.value, true
}

// Set stores a value. A non-positive ttl uses the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.ttl
	}
	cost := entryCost(key, value)
	expiresAt := time.Now().Add(ttl)

	if elem, exists := c.items[key]; exists {
		ent := elem.Value.(*entry)
		c.cost += cost - ent.cost
		ent.value = value
		ent.expiresAt = expiresAt
		ent.cost = cost
		c.evictList.MoveToFront(elem)
	} else {
		c.items[key] = c.evictList.PushFront(&entry{
			key:       key,
			value:     value,
			expiresAt: expiresAt,
			cost:      cost,
		})
		c.cost += cost
		if c.metrics != nil {
			c.metrics.keysAdded++
			c.metrics.costAdded += uint64(cost)
		}
	}

	for c.cost > c.maxCost && c.evictList.Len() > 0 {
		ent := c.removeElement(c.evictList.Back())
		if c.metrics != nil {
			c.metrics.keysEvicted++
			c.metrics.costEvicted += uint64(ent.cost)
		}
	}
	return nil
}

// Delete removes a value.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
	return nil
}

// Clear removes all entries. Metrics are kept.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
	c.cost = 0
	return nil
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() { close(c.stop) })
	return nil
}

// Metrics returns cache statistics.
func (c *Cache) Metrics() *cache.Metrics {
	if c.metrics == nil {
		return &cache.Metrics{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return &cache.Metrics{
		Hits:        c.metrics.hits,
		Misses:      c.metrics.misses,
		KeysAdded:   c.metrics.keysAdded,
		KeysEvicted: c.metrics.keysEvicted,
		CostAdded:   c.metrics.costAdded,
		CostEvicted: c.metrics.costEvicted,
	}
}

// ResetMetrics resets cache statistics.
func (c *Cache) ResetMetrics() {
	if c.metrics == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	*c.metrics = cacheMetrics{}
}

// Len returns the current number of entries, expired ones included until they are swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.evictList.Len()
}

// Size returns the summed cost of the current entries in bytes.
func (c *Cache) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cost
}

func (c *Cache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.removeExpired(time.Now())
		}
	}
}

// removeExpired walks from the LRU end; entries are not ordered by expiry so the whole list is scanned
func (c *Cache) removeExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.evictList.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*entry).expiresAt) {
			c.removeElement(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

func (c *Cache) recordMiss() {
	if c.metrics != nil {
		c.metrics.misses++
	}
}

// removeElement must be called with the lock held
func (c *Cache) removeElement(elem *list.Element) *entry {
	c.evictList.Remove(elem)
	ent := elem.Value.(*entry)
	delete(c.items, ent.key)
	c.cost -= ent.cost
	return ent
}

// entryCost estimates the memory held by one entry
func entryCost(key string, value interface{}) int64 {
	cost := int64(entryOverhead + len(key))
	switch v := value.(type) {
	case nil:
	case bool:
		cost++
	case int, int64, uint64, float64:
		cost += 8
	case int32, uint32, float32:
		cost += 4
	case string:
		cost += int64(len(v))
	case []string:
		for _, s := range v {
			cost += int64(16 + len(s))
		}
	default:
		cost += 16
	}
	return cost
}
