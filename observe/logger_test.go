package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to parse log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_IncludesOperationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf).WithOperation(OperationMeta{
		Kind: "query",
		Name: "getBooks",
		Key:  "query:getBooks:abc",
	})

	logger.Info(context.Background(), "cache hit")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 log line, got %d", len(entries))
	}
	e := entries[0]
	if e["op.kind"] != "query" || e["op.name"] != "getBooks" || e["op.key"] != "query:getBooks:abc" {
		t.Errorf("missing operation fields: %v", e)
	}
	if e["level"] != "info" || e["msg"] != "cache hit" {
		t.Errorf("unexpected level/msg: %v", e)
	}
}

func TestLogger_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	logger.Debug(context.Background(), "login",
		Field{Key: "token", Value: "eyJhbGciOi"},
		Field{Key: "password", Value: "hunter2"},
		Field{Key: "username", Value: "alice"},
	)

	e := decodeLines(t, &buf)[0]
	if e["token"] != "[REDACTED]" || e["password"] != "[REDACTED]" {
		t.Errorf("credentials not redacted: %v", e)
	}
	if e["username"] != "alice" {
		t.Errorf("username = %v, want alice", e["username"])
	}
}

func TestLogger_FieldValues(t *testing.T) {
	const jwtLike = "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJhZGEifQ.c2ln"

	tests := []struct {
		name  string
		field Field
		want  any
	}{
		{"credential key ignoring case", Field{Key: "Authorization", Value: "Bearer abc"}, "[REDACTED]"},
		{"credential key suffix", Field{Key: "access_token", Value: "abc"}, "[REDACTED]"},
		{"jwt value", Field{Key: "detail", Value: jwtLike}, "[REDACTED]"},
		{"bearer jwt value", Field{Key: "header", Value: "Bearer " + jwtLike}, "[REDACTED]"},
		{"dotted non-jwt", Field{Key: "version", Value: "1.2.3"}, "1.2.3"},
		{"error message", Field{Key: "error", Value: errors.New("http status 503")}, "http status 503"},
		{"number", Field{Key: "attempt", Value: 2}, float64(2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewLoggerWithWriter("info", &buf).Info(context.Background(), "retrying request", tt.field)
			e := decodeLines(t, &buf)[0]
			if got := e[tt.field.Key]; got != tt.want {
				t.Errorf("%s = %#v, want %#v", tt.field.Key, got, tt.want)
			}
		})
	}
}

func TestLogger_TraceCorrelation(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "query getBooks")
	defer span.End()

	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)
	logger.Info(ctx, "fetch started")
	logger.Info(context.Background(), "outside span")

	entries := decodeLines(t, &buf)
	sc := span.SpanContext()
	if entries[0]["trace_id"] != sc.TraceID().String() || entries[0]["span_id"] != sc.SpanID().String() {
		t.Errorf("span ids missing from %v", entries[0])
	}
	if _, ok := entries[1]["trace_id"]; ok {
		t.Errorf("line outside a span has trace_id: %v", entries[1])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{"debug", 4},
		{"info", 3},
		{"warn", 2},
		{"error", 1},
		{"bogus", 3},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(tt.level, &buf)
			ctx := context.Background()
			logger.Debug(ctx, "d")
			logger.Info(ctx, "i")
			logger.Warn(ctx, "w")
			logger.Error(ctx, "e")

			if got := len(decodeLines(t, &buf)); got != tt.want {
				t.Errorf("level %s emitted %d lines, want %d", tt.level, got, tt.want)
			}
		})
	}
}

func TestLogger_ScopedLoggersShareWriterLock(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter("info", &buf)
	a := base.WithOperation(OperationMeta{Kind: "query", Name: "a"})
	b := base.WithOperation(OperationMeta{Kind: "query", Name: "b"})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			a.Info(context.Background(), "a")
		}
		close(done)
	}()
	for i := 0; i < 50; i++ {
		b.Info(context.Background(), "b")
	}
	<-done

	if got := len(decodeLines(t, &buf)); got != 100 {
		t.Errorf("expected 100 intact lines, got %d", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	if ParseLogLevel("warn") != LevelWarn || LevelWarn.String() != "warn" {
		t.Error("warn level round trip failed")
	}
	if ParseLogLevel(" DEBUG ") != LevelDebug {
		t.Error("level names should ignore case and spaces")
	}
	if ParseLogLevel("") != LevelInfo {
		t.Error("empty level should default to info")
	}
}
