package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/asakaida/schemareg/pkg/cache"
	"github.com/asakaida/schemareg/pkg/cache/memorycache"
)

// Collector keeps in-process totals for the registry service.
// The Prometheus exporter reads gauges from it; tests and the admin tooling read it directly.
type Collector struct {
	requests   sync.Map // method -> *uint64
	errors     sync.Map // method -> *uint64
	errorCodes sync.Map // method|code -> *uint64
	durations  sync.Map // method -> *durationValue
	operations sync.Map // operation|outcome -> *uint64

	cache cache.Cache
}

type durationValue struct {
	mu           sync.Mutex
	totalSeconds float64
}

// CacheMetrics holds applicability cache statistics.
type CacheMetrics struct {
	Hits        uint64
	Misses      uint64
	HitRate     float64
	KeysCurrent int64
	MemoryBytes int64
	Evictions   uint64
}

// APIMetrics holds per-method gRPC totals.
type APIMetrics struct {
	RequestCounts        map[string]uint64
	ErrorCounts          map[string]uint64
	ErrorCodes           map[string]map[string]uint64 // method -> status code -> count
	TotalDurationSeconds map[string]float64
}

// OperationMetrics holds registry and resolver outcomes keyed by operation name.
type OperationMetrics struct {
	Succeeded map[string]uint64
	Failed    map[string]uint64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// SetCache sets the applicability cache whose statistics are reported.
func (c *Collector) SetCache(cache cache.Cache) {
	c.cache = cache
}

// RecordRequest records a gRPC request.
func (c *Collector) RecordRequest(method string) {
	atomic.AddUint64(counter(&c.requests, method), 1)
}

// RecordError records a failed gRPC request with its status code.
func (c *Collector) RecordError(method, code string) {
	atomic.AddUint64(counter(&c.errors, method), 1)
	atomic.AddUint64(counter(&c.errorCodes, method+"|"+code), 1)
}

// RecordDuration records the duration of a gRPC call in seconds.
func (c *Collector) RecordDuration(method string, durationSeconds float64) {
	val, _ := c.durations.LoadOrStore(method, &durationValue{})
	dv := val.(*durationValue)

	dv.mu.Lock()
	dv.totalSeconds += durationSeconds
	dv.mu.Unlock()
}

// RecordOperation counts one registry or resolver operation.
func (c *Collector) RecordOperation(operation string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	atomic.AddUint64(counter(&c.operations, operation+"|"+outcome), 1)
}

// GetCacheMetrics returns current cache statistics.
func (c *Collector) GetCacheMetrics() *CacheMetrics {
	if c.cache == nil {
		return &CacheMetrics{}
	}

	metrics := c.cache.Metrics()
	if metrics == nil {
		return &CacheMetrics{}
	}

	result := &CacheMetrics{
		Hits:      metrics.Hits,
		Misses:    metrics.Misses,
		HitRate:   metrics.HitRate(),
		Evictions: metrics.KeysEvicted,
	}

	if memCache, ok := c.cache.(*memorycache.Cache); ok {
		result.KeysCurrent = int64(memCache.Len())
		result.MemoryBytes = memCache.Size()
	}

	return result
}

// GetAPIMetrics returns a snapshot of the gRPC totals.
func (c *Collector) GetAPIMetrics() *APIMetrics {
	result := &APIMetrics{
		RequestCounts:        load(&c.requests),
		ErrorCounts:          load(&c.errors),
		ErrorCodes:           make(map[string]map[string]uint64),
		TotalDurationSeconds: make(map[string]float64),
	}

	for key, count := range load(&c.errorCodes) {
		method, code := splitLabel(key)
		if result.ErrorCodes[method] == nil {
			result.ErrorCodes[method] = make(map[string]uint64)
		}
		result.ErrorCodes[method][code] = count
	}

	c.durations.Range(func(key, value interface{}) bool {
		dv := value.(*durationValue)
		dv.mu.Lock()
		result.TotalDurationSeconds[key.(string)] = dv.totalSeconds
		dv.mu.Unlock()
		return true
	})

	return result
}

// GetOperationMetrics returns a snapshot of the operation outcomes.
func (c *Collector) GetOperationMetrics() *OperationMetrics {
	result := &OperationMetrics{
		Succeeded: make(map[string]uint64),
		Failed:    make(map[string]uint64),
	}
	for key, count := range load(&c.operations) {
		operation, outcome := splitLabel(key)
		if outcome == OutcomeOK {
			result.Succeeded[operation] = count
		} else {
			result.Failed[operation] = count
		}
	}
	return result
}

func counter(m *sync.Map, key string) *uint64 {
	val, _ := m.LoadOrStore(key, new(uint64))
	return val.(*uint64)
}

func load(m *sync.Map) map[string]uint64 {
	result := make(map[string]uint64)
	m.Range(func(key, value interface{}) bool {
		result[key.(string)] = atomic.LoadUint64(value.(*uint64))
		return true
	})
	return result
}

// splitLabel splits at the last "|"; method names never contain one
func splitLabel(key string) (string, string) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
