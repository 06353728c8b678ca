package cache

import (
	"errors"
	"fmt"
)

// Sentinel errors for cache operations.
var (
	ErrNilTransport = errors.New("cache: transport is nil")
	ErrInvalidKey   = errors.New("cache: key is invalid")
	ErrKeyTooLong   = errors.New("cache: key exceeds max length")
	ErrNotFound     = errors.New("cache: entry not found")
	ErrClosed       = errors.New("cache: cache is closed")
	ErrUnsubscribed = errors.New("cache: subscription ended")
)

// ConsistencyError reports a violated internal invariant, such as a second
// in-flight request for a key that already has one. It should never occur;
// when it does it is logged at error level and counted in Stats.
type ConsistencyError struct {
	Key    RequestKey
	Detail string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("cache: consistency violation for %s: %s", e.Key, e.Detail)
}

// IsConsistencyError reports whether err is, or wraps, a ConsistencyError.
func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
