package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/querycache/cache"
)

// StatsSource reports cache statistics. *cache.QueryCache satisfies it.
type StatsSource interface {
	Stats() cache.Stats
}

// CacheCheckerConfig configures the cache health checker.
type CacheCheckerConfig struct {
	// ErroredRatio is the share of errored entries that triggers degraded
	// status. Value should be between 0 and 1. Default: 0.5
	ErroredRatio float64

	// MaxBytes is the cached payload size that triggers degraded status.
	// Zero disables the check.
	MaxBytes int64
}

// CacheChecker reports the health of a query cache.
type CacheChecker struct {
	source StatsSource
	config CacheCheckerConfig
}

// NewCacheChecker creates a checker over source.
func NewCacheChecker(source StatsSource, config CacheCheckerConfig) *CacheChecker {
	if config.ErroredRatio <= 0 || config.ErroredRatio > 1 {
		config.ErroredRatio = 0.5
	}
	return &CacheChecker{source: source, config: config}
}

// Name returns the name of this checker.
func (c *CacheChecker) Name() string {
	return "cache"
}

// Check derives a status from the cache statistics.
func (c *CacheChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	st := c.source.Stats()
	byStatus := make(map[string]int, len(st.ByStatus))
	for status, n := range st.ByStatus {
		byStatus[status.String()] = n
	}
	details := map[string]any{
		"entries":            st.Entries,
		"subscribers":        st.Subscribers,
		"in_flight":          st.InFlight,
		"bytes":              st.Bytes,
		"by_status":          byStatus,
		"consistency_errors": st.ConsistencyErrors,
	}

	if st.ConsistencyErrors > 0 {
		return Unhealthy(
			fmt.Sprintf("%d consistency violations", st.ConsistencyErrors),
			ErrCheckFailed,
		).WithDetails(details)
	}

	errored := st.ByStatus[cache.StatusErrored]
	if st.Entries > 0 && float64(errored)/float64(st.Entries) >= c.config.ErroredRatio {
		return Degraded(
			fmt.Sprintf("%d of %d entries errored", errored, st.Entries),
		).WithDetails(details)
	}

	if c.config.MaxBytes > 0 && st.Bytes >= c.config.MaxBytes {
		return Degraded(
			fmt.Sprintf("cached payloads use %d bytes (limit %d)", st.Bytes, c.config.MaxBytes),
		).WithDetails(details)
	}

	return Healthy(fmt.Sprintf("%d entries, %d subscribers", st.Entries, st.Subscribers)).WithDetails(details)
}

var _ Checker = (*CacheChecker)(nil)
