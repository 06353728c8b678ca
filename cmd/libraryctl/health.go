package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/querycache/health"
)

type healthOutput struct {
	Status string                   `json:"status"`
	Checks map[string]health.Result `json:"checks"`
}

func newHealthCmd(a *app) *cobra.Command {
	var maxBytes int64
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check API reachability and cache health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			agg := health.NewAggregator(health.AggregatorConfig{Timeout: 10 * time.Second})
			agg.Register("api", health.NewCheckerFunc("api", func(ctx context.Context) health.Result {
				start := time.Now()
				if _, err := a.client.Stats(ctx); err != nil {
					return health.Unhealthy("stats endpoint failed: "+err.Error(), err)
				}
				return health.Healthy(fmt.Sprintf("stats served in %s", time.Since(start).Round(time.Millisecond)))
			}))
			// Registered second so its snapshot includes the api probe.
			agg.Register("cache", health.NewCacheChecker(a.client.Cache(), health.CacheCheckerConfig{MaxBytes: maxBytes}))

			results := make(map[string]health.Result, 2)
			for _, name := range agg.CheckerNames() {
				r, err := agg.Check(ctx, name)
				if err != nil {
					return err
				}
				results[name] = r
			}

			overall := health.OverallStatus(results)
			if err := a.print(healthOutput{Status: overall.String(), Checks: results}); err != nil {
				return err
			}
			if overall == health.StatusUnhealthy {
				return fmt.Errorf("unhealthy")
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&maxBytes, "max-bytes", 0, "cached payload size that reports degraded (0 disables)")
	return cmd
}
