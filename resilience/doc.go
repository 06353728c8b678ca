// Package resilience provides caller-side retry and timeouts.
//
// The query cache and its transport never retry on their own. Callers that
// want retries re-invoke a query or mutation through a Retry, optionally
// bounding each attempt with a Timeout:
//
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts:  3,
//	    InitialDelay: 100 * time.Millisecond,
//	    RetryIf:      transport.IsTransient,
//	})
//
//	executor := resilience.NewExecutor(
//	    resilience.WithRetry(retry),
//	    resilience.WithTimeout(5*time.Second),
//	)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    _, err := client.Books(ctx, "")
//	    return err
//	})
//
// Backoff schedules come from github.com/cenkalti/backoff/v5.
package resilience
