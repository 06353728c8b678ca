// Package health reports the health of the query cache and the API behind it.
//
// A Checker reports Healthy, Degraded, or Unhealthy. CacheChecker derives a
// status from cache statistics: consistency violations are unhealthy, while
// errored entries or an oversized payload footprint are degraded. An
// Aggregator runs several checkers concurrently and folds their results into
// one overall status:
//
//	agg := health.NewAggregator()
//	agg.Register("cache", health.NewCacheChecker(qc, health.CacheCheckerConfig{}))
//	agg.Register("api", health.NewCheckerFunc("api", pingAPI))
//
//	results := agg.CheckAll(ctx)
//	overall := health.OverallStatus(results)
package health
