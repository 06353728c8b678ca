package resilience

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// BackoffStrategy defines how delays increase between retries.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay for all retries.
	BackoffConstant
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the maximum delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier for exponential backoff.
	// Default: 2.0
	Multiplier float64

	// Strategy is the backoff strategy.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// Jitter adds up to 25% to each delay.
	Jitter bool

	// RetryIf determines if an error should trigger a retry.
	// Default: all non-nil errors trigger retry.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry re-invokes an operation with backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil }
	}

	return &Retry{config: config}
}

// Execute runs op until it succeeds, returns an error RetryIf rejects, the
// attempts run out, or ctx ends. An error rejected by RetryIf is returned
// unchanged; exhausting the attempts wraps the last error with
// ErrMaxRetriesExceeded.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		err := op(ctx)
		if err != nil && !r.config.RetryIf(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(r.config.MaxAttempts)),
	}
	if r.config.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, delay time.Duration) {
			r.config.OnRetry(attempt, err, delay)
		}))
	}

	_, err := backoff.Retry(ctx, operation, opts...)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && r.config.MaxAttempts > 1 && attempt >= r.config.MaxAttempts && r.config.RetryIf(err) {
		return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, attempt, err)
	}
	return err
}

func (r *Retry) newBackOff() backoff.BackOff {
	var b backoff.BackOff
	switch r.config.Strategy {
	case BackoffConstant:
		b = backoff.NewConstantBackOff(r.config.InitialDelay)
	case BackoffLinear:
		b = &linearBackOff{step: r.config.InitialDelay, max: r.config.MaxDelay}
	default:
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = r.config.InitialDelay
		exp.MaxInterval = r.config.MaxDelay
		exp.Multiplier = r.config.Multiplier
		exp.RandomizationFactor = 0
		exp.Reset()
		b = exp
	}
	if r.config.Jitter {
		b = &jitterBackOff{BackOff: b}
	}
	return b
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// linearBackOff waits step, 2*step, 3*step, ... capped at max.
type linearBackOff struct {
	step, max time.Duration
	n         int64
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.n++
	d := l.step * time.Duration(l.n)
	if l.max > 0 && d > l.max {
		d = l.max
	}
	return d
}

func (l *linearBackOff) Reset() { l.n = 0 }

// jitterBackOff adds up to 25% to each delay of the wrapped schedule.
type jitterBackOff struct {
	backoff.BackOff
}

func (j *jitterBackOff) NextBackOff() time.Duration {
	d := j.BackOff.NextBackOff()
	if d < 4 {
		return d
	}
	// #nosec G404 -- jitter is non-cryptographic timing variance.
	return d + time.Duration(rand.Int64N(int64(d/4)))
}
