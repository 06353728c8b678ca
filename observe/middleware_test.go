package observe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMiddleware_SuccessAndError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	var buf bytes.Buffer
	mw := NewMiddleware(NewTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter("warn", &buf))

	ok := mw.Wrap(func(ctx context.Context, meta OperationMeta) ([]byte, error) {
		return []byte(`{"ok":true}`), nil
	})
	fail := mw.Wrap(func(ctx context.Context, meta OperationMeta) ([]byte, error) {
		return nil, errors.New("boom")
	})

	got, err := ok(context.Background(), OperationMeta{Kind: "query", Name: "getBooks"})
	if err != nil || string(got) != `{"ok":true}` {
		t.Fatalf("wrapped success = %s, %v", got, err)
	}
	if _, err := fail(context.Background(), OperationMeta{Kind: "mutation", Name: "addBook"}); err == nil || err.Error() != "boom" {
		t.Fatalf("wrapped error = %v, want boom unchanged", err)
	}

	if n := len(recorder.Ended()); n != 2 {
		t.Errorf("expected 2 spans, got %d", n)
	}
	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["op.name"] != "addBook" {
		t.Errorf("expected one warn line for the failure, got %v", lines)
	}
	if got := sumValue(t, collect(t, reader), "cache.exec.errors"); got != 1 {
		t.Errorf("cache.exec.errors = %d, want 1", got)
	}
}

func TestMiddleware_NilComponents(t *testing.T) {
	mw := NewMiddleware(nil, nil, nil)
	fn := mw.Wrap(func(ctx context.Context, meta OperationMeta) ([]byte, error) {
		return nil, nil
	})
	if _, err := fn(context.Background(), OperationMeta{Kind: "query", Name: "x"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMiddleware_CancelledIsNotAFailure(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	var buf bytes.Buffer
	mw := NewMiddleware(nil, metrics, NewLoggerWithWriter("debug", &buf))

	superseded := mw.Wrap(func(ctx context.Context, meta OperationMeta) ([]byte, error) {
		return nil, fmt.Errorf("fetch: %w", context.Canceled)
	})
	if _, err := superseded(context.Background(), OperationMeta{Kind: "query", Name: "getBooks"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("wrapped error = %v, want context.Canceled", err)
	}

	rm := collect(t, reader)
	if got := sumValue(t, rm, "cache.exec.total"); got != 1 {
		t.Errorf("cache.exec.total = %d, want 1", got)
	}
	if got := sumValue(t, rm, "cache.exec.errors"); got != 0 {
		t.Errorf("cache.exec.errors = %d, want 0", got)
	}
	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["level"] != "debug" || lines[0]["msg"] != "operation cancelled" {
		t.Errorf("log lines = %v, want one debug cancellation line", lines)
	}
}
