package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CacheEvent names a cache lifecycle event.
type CacheEvent string

const (
	EventHit        CacheEvent = "hit"
	EventMiss       CacheEvent = "miss"
	EventDedup      CacheEvent = "dedup"
	EventInvalidate CacheEvent = "invalidate"
	EventRefetch    CacheEvent = "refetch"
	EventEvict      CacheEvent = "evict"
	EventCancel     CacheEvent = "cancel"
	EventViolation  CacheEvent = "consistency_violation"
)

// Metrics records execution and cache metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records an outbound call with duration and error status.
	RecordExecution(ctx context.Context, meta OperationMeta, duration time.Duration, err error)

	// RecordCacheEvent counts one cache lifecycle event.
	RecordCacheEvent(ctx context.Context, meta OperationMeta, event CacheEvent)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	eventCount   metric.Int64Counter
}

// NewMetrics creates a Metrics instance backed by meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"cache.exec.total",
		metric.WithDescription("Total number of outbound query and mutation calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"cache.exec.errors",
		metric.WithDescription("Total number of failed outbound calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"cache.exec.duration_ms",
		metric.WithDescription("Outbound call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	eventCount, err := meter.Int64Counter(
		"cache.events",
		metric.WithDescription("Cache lifecycle events by type"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		eventCount:   eventCount,
	}, nil
}

func (m *metricsImpl) RecordExecution(ctx context.Context, meta OperationMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(
		attribute.String("op.kind", meta.Kind),
		attribute.String("op.name", meta.Name),
	)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil && !cancelled(err) {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordCacheEvent(ctx context.Context, meta OperationMeta, event CacheEvent) {
	m.eventCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op.name", meta.Name),
		attribute.String("cache.event", string(event)),
	))
}

type noopMetrics struct{}

// NoopMetrics returns a Metrics that records nothing.
func NoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordExecution(context.Context, OperationMeta, time.Duration, error) {}
func (noopMetrics) RecordCacheEvent(context.Context, OperationMeta, CacheEvent)         {}
