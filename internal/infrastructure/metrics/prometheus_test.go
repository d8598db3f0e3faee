package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/asakaida/schemareg/pkg/cache/memorycache"
)

func TestPrometheusExporter_RecordOperation(t *testing.T) {
	collector := NewCollector()
	exporter := NewPrometheusExporter(collector, prometheus.NewRegistry())

	exporter.RecordOperation("apply", nil)
	exporter.RecordOperation("apply", nil)
	exporter.RecordOperation("apply", errors.New("not applicable"))
	exporter.RecordOperation("set", nil)

	if got := testutil.ToFloat64(exporter.operations.WithLabelValues("apply", OutcomeOK)); got != 2 {
		t.Errorf("expected 2 successful applies, got %v", got)
	}
	if got := testutil.ToFloat64(exporter.operations.WithLabelValues("apply", OutcomeError)); got != 1 {
		t.Errorf("expected 1 failed apply, got %v", got)
	}
	if got := testutil.ToFloat64(exporter.operations.WithLabelValues("set", OutcomeOK)); got != 1 {
		t.Errorf("expected 1 set, got %v", got)
	}

	ops := collector.GetOperationMetrics()
	if ops.Succeeded["apply"] != 2 || ops.Failed["apply"] != 1 {
		t.Errorf("collector apply outcomes = %d ok, %d failed", ops.Succeeded["apply"], ops.Failed["apply"])
	}
}

func TestPrometheusExporter_UpdateFromCache(t *testing.T) {
	c, err := memorycache.New(&memorycache.Config{
		MaxSizeBytes:  1024 * 1024,
		DefaultTTL:    time.Minute,
		EnableMetrics: true,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	ctx := context.Background()
	c.Set(ctx, "NewtonMimicAPI|RevoluteJoint", true, time.Minute)
	c.Get(ctx, "NewtonMimicAPI|RevoluteJoint")
	c.Get(ctx, "NewtonMimicAPI|Xform")

	collector := NewCollector()
	collector.SetCache(c)
	exporter := NewPrometheusExporter(collector, prometheus.NewRegistry())
	exporter.RecordCacheHit()
	exporter.SetRegisteredSchemas(4)
	exporter.Update()

	if got := testutil.ToFloat64(exporter.cacheHitRate); got != 0.5 {
		t.Errorf("expected hit rate 0.5, got %v", got)
	}
	if got := testutil.ToFloat64(exporter.cacheKeys); got != 1 {
		t.Errorf("expected 1 key, got %v", got)
	}
	if got := testutil.ToFloat64(exporter.cacheHits); got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}
	if got := testutil.ToFloat64(exporter.registeredSchema); got != 4 {
		t.Errorf("expected 4 schemas, got %v", got)
	}
}

func TestNewPrometheusExporter_SeparateRegistries(t *testing.T) {
	// each registry accepts its own set of collectors
	NewPrometheusExporter(NewCollector(), prometheus.NewRegistry())
	NewPrometheusExporter(NewCollector(), prometheus.NewRegistry())
}
