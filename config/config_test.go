package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/observe/exporters"
	"github.com/jonwraymond/querycache/secret"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	want := Config{
		APIURL:          "http://localhost:8000/api/",
		KeepUnusedFor:   60 * time.Second,
		RequestTimeout:  30 * time.Second,
		RetryAttempts:   1,
		LogLevel:        "warn",
		TracingExporter: "none",
		TracingSample:   1,
		MetricsExporter: "none",
		ServiceName:     "libraryctl",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("LoadFrom() mismatch (-want +got):\n%s", diff)
	}
	if got := cfg.CachePolicy(); got != cache.DefaultPolicy() {
		t.Errorf("CachePolicy() = %+v, want default", got)
	}
}

func TestLoadFromOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"LIBRARY_API_URL":           "https://library.example.com/api",
		"LIBRARY_API_TOKEN":         "secret",
		"LIBRARY_CACHE_KEEP_UNUSED": "0s",
		"LIBRARY_FETCH_TIMEOUT":     "5s",
		"LIBRARY_RETRY_ATTEMPTS":    "3",
		"LIBRARY_LOG_LEVEL":         "debug",
		"LIBRARY_METRICS_EXPORTER":  "stdout",
	})
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.APIToken != "secret" || cfg.RetryAttempts != 3 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if got, want := cfg.CachePolicy(), (cache.Policy{FetchTimeout: 5 * time.Second}); got != want {
		t.Errorf("CachePolicy() = %+v, want %+v", got, want)
	}

	obs := cfg.ObserveConfig()
	want := observe.Config{
		ServiceName: "libraryctl",
		Tracing:     observe.TracingConfig{Exporter: "none", SamplePct: 1},
		Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "stdout"},
		Logging:     observe.LoggingConfig{Enabled: true, Level: "debug"},
	}
	if diff := cmp.Diff(want, obs); diff != "" {
		t.Errorf("ObserveConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromErrors(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want error
	}{
		{"relative url", map[string]string{"LIBRARY_API_URL": "/api/"}, ErrInvalidBaseURL},
		{"ftp url", map[string]string{"LIBRARY_API_URL": "ftp://host/api/"}, ErrInvalidBaseURL},
		{"negative grace", map[string]string{"LIBRARY_CACHE_KEEP_UNUSED": "-1s"}, ErrInvalidDuration},
		{"zero attempts", map[string]string{"LIBRARY_RETRY_ATTEMPTS": "0"}, ErrInvalidAttempts},
		{"bad log level", map[string]string{"LIBRARY_LOG_LEVEL": "loud"}, observe.ErrInvalidLogLevel},
		{"bad exporter", map[string]string{"LIBRARY_TRACING_EXPORTER": "zipkin"}, observe.ErrInvalidTracingExporter},
		{"metrics-only exporter for tracing", map[string]string{"LIBRARY_TRACING_EXPORTER": "prometheus"}, observe.ErrInvalidTracingExporter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			if !errors.Is(err, tt.want) {
				t.Errorf("LoadFrom() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadFromAcceptsEveryExporter(t *testing.T) {
	for _, name := range exporters.TracingNames {
		cfg, err := LoadFrom(map[string]string{"LIBRARY_TRACING_EXPORTER": name})
		if err != nil {
			t.Errorf("tracing exporter %q: LoadFrom() error = %v", name, err)
			continue
		}
		if got, want := cfg.ObserveConfig().Tracing.Enabled, name != exporters.None; got != want {
			t.Errorf("tracing exporter %q: Enabled = %v, want %v", name, got, want)
		}
	}
	for _, name := range exporters.MetricsNames {
		cfg, err := LoadFrom(map[string]string{"LIBRARY_METRICS_EXPORTER": name})
		if err != nil {
			t.Errorf("metrics exporter %q: LoadFrom() error = %v", name, err)
			continue
		}
		if got, want := cfg.ObserveConfig().Metrics.Enabled, name != exporters.None; got != want {
			t.Errorf("metrics exporter %q: Enabled = %v, want %v", name, got, want)
		}
	}
}

func TestLoadFromParseError(t *testing.T) {
	_, err := LoadFrom(map[string]string{"LIBRARY_RETRY_ATTEMPTS": "many"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("LIBRARY_API_URL", "http://127.0.0.1:9000/api/")
	t.Setenv("LIBRARY_LOG_LEVEL", "error")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != "http://127.0.0.1:9000/api/" || cfg.LogLevel != "error" {
		t.Errorf("Load() = %+v", cfg)
	}
}

func TestLoadFromResolvesTokenRefs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		vars  map[string]string
		want  string
		error error
	}{
		{"file ref", map[string]string{"LIBRARY_API_TOKEN": "secretref:file:" + path}, "from-file", nil},
		{"env ref", map[string]string{"LIBRARY_API_TOKEN": "secretref:env:SESSION", "SESSION": "s3"}, "s3", nil},
		{"expansion", map[string]string{"LIBRARY_API_TOKEN": "${SESSION}", "SESSION": "s4"}, "s4", nil},
		{"missing var", map[string]string{"LIBRARY_API_TOKEN": "${SESSION}"}, "", secret.ErrMissingVariable},
		{"unknown provider", map[string]string{"LIBRARY_API_TOKEN": "secretref:vault:token"}, "", secret.ErrUnknownProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFrom(tt.vars)
			if tt.error != nil {
				if !errors.Is(err, tt.error) {
					t.Fatalf("LoadFrom() error = %v, want %v", err, tt.error)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadFrom() error = %v", err)
			}
			if cfg.APIToken != tt.want {
				t.Errorf("APIToken = %q, want %q", cfg.APIToken, tt.want)
			}
		})
	}
}
