package cache

import "time"

// DefaultKeepUnusedFor is how long an entry with no subscribers is kept
// before it is evicted.
const DefaultKeepUnusedFor = 60 * time.Second

// Policy configures entry lifecycle.
type Policy struct {
	// KeepUnusedFor is the grace period between the last unsubscribe and
	// eviction. Zero or negative evicts immediately.
	KeepUnusedFor time.Duration

	// FetchTimeout bounds each query fetch. Zero means no timeout beyond the
	// cache's own lifetime.
	FetchTimeout time.Duration
}

// DefaultPolicy returns the default lifecycle policy.
// KeepUnusedFor: 60 seconds, FetchTimeout: none.
func DefaultPolicy() Policy {
	return Policy{KeepUnusedFor: DefaultKeepUnusedFor}
}

// NoRetentionPolicy returns a policy that evicts entries as soon as their
// last subscriber leaves.
func NoRetentionPolicy() Policy {
	return Policy{}
}

// retains reports whether unused entries get a grace period.
func (p Policy) retains() bool {
	return p.KeepUnusedFor > 0
}
