package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation outcomes recorded by RecordOperation
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// PrometheusExporter exports metrics to Prometheus format.
type PrometheusExporter struct {
	collector *Collector

	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	cacheHitRate     prometheus.Gauge
	cacheKeys        prometheus.Gauge
	cacheMemoryBytes prometheus.Gauge
	cacheEvictions   prometheus.Gauge
	registeredSchema prometheus.Gauge
	operations       *prometheus.CounterVec
	grpcRequests     *prometheus.CounterVec
	grpcDuration     *prometheus.HistogramVec
	grpcErrors       *prometheus.CounterVec
}

// NewPrometheusExporter creates a new Prometheus exporter registered with reg.
// Passing prometheus.DefaultRegisterer exposes the metrics on the default /metrics handler.
func NewPrometheusExporter(collector *Collector, reg prometheus.Registerer) *PrometheusExporter {
	factory := promauto.With(reg)
	return &PrometheusExporter{
		collector: collector,
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "schemareg_canapply_cache_hits_total",
			Help: "Total number of cache hits for applicability checks",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "schemareg_canapply_cache_misses_total",
			Help: "Total number of cache misses for applicability checks",
		}),
		cacheHitRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "schemareg_canapply_cache_hit_rate",
			Help: "Current cache hit rate (0.0 to 1.0)",
		}),
		cacheKeys: factory.NewGauge(prometheus.GaugeOpts{
			Name: "schemareg_canapply_cache_keys_current",
			Help: "Current number of keys in the applicability cache",
		}),
		cacheMemoryBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "schemareg_canapply_cache_memory_bytes",
			Help: "Current memory usage of the applicability cache in bytes",
		}),
		cacheEvictions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "schemareg_canapply_cache_evictions",
			Help: "Number of cache evictions due to memory limits",
		}),
		registeredSchema: factory.NewGauge(prometheus.GaugeOpts{
			Name: "schemareg_registered_schemas",
			Help: "Number of API schemas in the registry",
		}),
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemareg_operations_total",
				Help: "Registry and resolver operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		grpcRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemareg_grpc_requests_total",
				Help: "Total number of gRPC requests",
			},
			[]string{"method"},
		),
		grpcDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "schemareg_grpc_request_duration_seconds",
				Help:    "Duration of gRPC requests in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"method"},
		),
		grpcErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemareg_grpc_errors_total",
				Help: "Total number of gRPC errors",
			},
			[]string{"method", "code"},
		),
	}
}

// Update updates Gauge metrics from the collector.
// Counters are updated as events happen, so only gauges are refreshed here.
// This should be called periodically (e.g., every 10 seconds).
func (e *PrometheusExporter) Update() {
	cacheMetrics := e.collector.GetCacheMetrics()
	e.cacheHitRate.Set(cacheMetrics.HitRate)
	e.cacheKeys.Set(float64(cacheMetrics.KeysCurrent))
	e.cacheMemoryBytes.Set(float64(cacheMetrics.MemoryBytes))
	e.cacheEvictions.Set(float64(cacheMetrics.Evictions))
}

// SetRegisteredSchemas records the registry size
func (e *PrometheusExporter) SetRegisteredSchemas(n int) {
	e.registeredSchema.Set(float64(n))
}

// RecordRequest records a request in Prometheus.
func (e *PrometheusExporter) RecordRequest(method string) {
	e.grpcRequests.WithLabelValues(method).Inc()
}

// RecordDuration records a duration in Prometheus.
func (e *PrometheusExporter) RecordDuration(method string, durationSeconds float64) {
	e.grpcDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordError records an error and its gRPC status code in Prometheus.
func (e *PrometheusExporter) RecordError(method, code string) {
	e.grpcErrors.WithLabelValues(method, code).Inc()
}

// RecordOperation counts one registry or resolver operation in the collector and in Prometheus
func (e *PrometheusExporter) RecordOperation(operation string, err error) {
	if e.collector != nil {
		e.collector.RecordOperation(operation, err)
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	e.operations.WithLabelValues(operation, outcome).Inc()
}

// RecordCacheHit records a cache hit.
func (e *PrometheusExporter) RecordCacheHit() {
	e.cacheHits.Inc()
}

// RecordCacheMiss records a cache miss.
func (e *PrometheusExporter) RecordCacheMiss() {
	e.cacheMisses.Inc()
}
