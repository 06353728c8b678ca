package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/observe/exporters"
	"github.com/jonwraymond/querycache/secret"
)

// Errors returned by Validate.
var (
	ErrInvalidBaseURL  = errors.New("config: api url must be an absolute http(s) url")
	ErrInvalidDuration = errors.New("config: durations must not be negative")
	ErrInvalidAttempts = errors.New("config: retry attempts must be at least 1")
)

// Config is the process configuration.
type Config struct {
	APIURL         string        `env:"LIBRARY_API_URL"           envDefault:"http://localhost:8000/api/"`
	APIToken       string        `env:"LIBRARY_API_TOKEN"`
	KeepUnusedFor  time.Duration `env:"LIBRARY_CACHE_KEEP_UNUSED" envDefault:"60s"`
	FetchTimeout   time.Duration `env:"LIBRARY_FETCH_TIMEOUT"`
	RequestTimeout time.Duration `env:"LIBRARY_REQUEST_TIMEOUT"   envDefault:"30s"`
	RetryAttempts  int           `env:"LIBRARY_RETRY_ATTEMPTS"    envDefault:"1"`
	LogLevel       string        `env:"LIBRARY_LOG_LEVEL"         envDefault:"warn"`

	TracingExporter string  `env:"LIBRARY_TRACING_EXPORTER" envDefault:"none"`
	TracingSample   float64 `env:"LIBRARY_TRACING_SAMPLE"   envDefault:"1"`
	MetricsExporter string  `env:"LIBRARY_METRICS_EXPORTER" envDefault:"none"`
	ServiceName     string  `env:"LIBRARY_SERVICE_NAME"     envDefault:"libraryctl"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return parse(env.Options{}, os.LookupEnv)
}

// LoadFrom reads the configuration from vars instead of the process
// environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars}, func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	})
}

func parse(opts env.Options, lookup secret.LookupFunc) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	token, err := secret.NewDefaultResolver(lookup).ResolveValue(context.Background(), cfg.APIToken)
	if err != nil {
		return Config{}, fmt.Errorf("config: resolve api token: %w", err)
	}
	cfg.APIToken = token
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.APIURL)
	}
	if c.KeepUnusedFor < 0 || c.FetchTimeout < 0 || c.RequestTimeout < 0 {
		return ErrInvalidDuration
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidAttempts, c.RetryAttempts)
	}
	obs := c.ObserveConfig()
	return obs.Validate()
}

// CachePolicy returns the cache policy. A zero grace period keeps nothing
// once the last subscriber leaves.
func (c Config) CachePolicy() cache.Policy {
	return cache.Policy{
		KeepUnusedFor: c.KeepUnusedFor,
		FetchTimeout:  c.FetchTimeout,
	}
}

// ObserveConfig returns the observability configuration. Tracing and metrics
// are enabled when an exporter other than "none" is set. Logging is always on.
func (c Config) ObserveConfig() observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   c.TracingExporter != "" && c.TracingExporter != exporters.None,
			Exporter:  c.TracingExporter,
			SamplePct: c.TracingSample,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.MetricsExporter != "" && c.MetricsExporter != exporters.None,
			Exporter: c.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.LogLevel,
		},
	}
}
