// Package cache defines the verdict cache used by the schema service.
package cache

import (
	"context"
	"time"
)

// Cache stores computed verdicts such as canApply results.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value and true, or nil and false on a miss or an expired entry.
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value. A non-positive ttl uses the cache default.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Clear drops every entry, e.g. after the registry is replaced.
	Clear(ctx context.Context) error

	Close() error

	Metrics() *Metrics
}

// Metrics is a snapshot of cache statistics. Costs are in estimated bytes.
type Metrics struct {
	Hits        uint64
	Misses      uint64
	KeysAdded   uint64
	KeysEvicted uint64
	CostAdded   uint64
	CostEvicted uint64
}

// HitRate returns hits / (hits + misses), or 0 before the first lookup.
func (m *Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Hits) / float64(total)
}
