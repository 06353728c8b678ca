package observe

import (
	"context"
	"encoding/json"
	"io"
	"maps"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// LogLevel represents a logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel parses a level name, ignoring case. Unknown names parse as
// LevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// structuredLogger writes one JSON object per line. Loggers derived with
// WithOperation share the writer lock of their parent.
type structuredLogger struct {
	level     LogLevel
	writer    io.Writer
	mu        *sync.Mutex
	baseAttrs map[string]any
}

// NewLogger creates a structured logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a structured logger writing to w.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return &structuredLogger{
		level:     ParseLogLevel(level),
		writer:    w,
		mu:        &sync.Mutex{},
		baseAttrs: map[string]any{},
	}
}

// WithOperation returns a logger that adds op.kind, op.name and op.key to
// every line.
func (l *structuredLogger) WithOperation(meta OperationMeta) Logger {
	attrs := maps.Clone(l.baseAttrs)
	attrs["op.kind"] = meta.Kind
	attrs["op.name"] = meta.Name
	if meta.Key != "" {
		attrs["op.key"] = meta.Key
	}
	return &structuredLogger{level: l.level, writer: l.writer, mu: l.mu, baseAttrs: attrs}
}

func (l *structuredLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelInfo, msg, fields)
}

func (l *structuredLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelWarn, msg, fields)
}

func (l *structuredLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelError, msg, fields)
}

func (l *structuredLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelDebug, msg, fields)
}

func (l *structuredLogger) log(ctx context.Context, level LogLevel, msg string, fields []Field) {
	if level < l.level {
		return
	}

	entry := make(map[string]any, len(l.baseAttrs)+len(fields)+5)
	maps.Copy(entry, l.baseAttrs)
	for _, f := range fields {
		entry[f.Key] = fieldValue(f)
	}
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg

	// Lines logged inside a fetch or mutation span carry its ids.
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			entry["trace_id"] = sc.TraceID().String()
			entry["span_id"] = sc.SpanID().String()
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.writer.Write(data)
}

// fieldValue returns the value to log for f. Credential-named fields and
// values shaped like a JWT are replaced; errors are logged by message.
func fieldValue(f Field) any {
	if isRedactedField(f.Key) {
		return redacted
	}
	switch v := f.Value.(type) {
	case error:
		if v == nil {
			return nil
		}
		return v.Error()
	case string:
		if looksLikeJWT(v) {
			return redacted
		}
	}
	return f.Value
}

const redacted = "[REDACTED]"

// isRedactedField reports whether key names a credential, ignoring case, e.g.
// "token", "access_token" or "Authorization".
func isRedactedField(key string) bool {
	key = strings.ToLower(key)
	for _, k := range RedactedFields {
		if strings.Contains(key, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// looksLikeJWT reports whether s is a bare or bearer-prefixed compact JWT.
func looksLikeJWT(s string) bool {
	s = strings.TrimPrefix(s, "Bearer ")
	if !strings.HasPrefix(s, "eyJ") {
		return false
	}
	return strings.Count(s, ".") == 2 && !strings.ContainsAny(s, " \t\n")
}

var _ Logger = (*structuredLogger)(nil)
