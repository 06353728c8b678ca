package observe

import (
	"context"
	"errors"
	"time"
)

// ExecuteFunc is the signature of one outbound call.
type ExecuteFunc func(ctx context.Context, meta OperationMeta) ([]byte, error)

// Middleware wraps outbound calls with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from wrapped function are recorded and propagated unchanged.
//     A call ended by context.Canceled (a superseded or abandoned fetch) is
//     not a failure: it is logged at debug and not counted as an error.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NoopTracer()
	}
	if metrics == nil {
		metrics = NoopMetrics()
	}
	if logger == nil {
		logger = NoopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps an ExecuteFunc with tracing, metrics, and logging.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, meta OperationMeta) ([]byte, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		result, err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordExecution(ctx, meta, duration, err)

		opLogger := m.logger.WithOperation(meta)
		fields := []Field{{Key: "duration_ms", Value: float64(duration.Milliseconds())}}
		switch {
		case err == nil:
			opLogger.Debug(ctx, "operation completed", append(fields, Field{Key: "bytes", Value: len(result)})...)
		case cancelled(err):
			opLogger.Debug(ctx, "operation cancelled", fields...)
		default:
			opLogger.Warn(ctx, "operation failed", append(fields, Field{Key: "error", Value: err})...)
		}

		return result, err
	}
}

func cancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Metrics returns the metrics sink used by the middleware.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Logger returns the logger used by the middleware.
func (m *Middleware) Logger() Logger { return m.logger }

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
