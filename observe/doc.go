// Package observe provides observability primitives for query and mutation
// execution.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The query cache wraps every outbound call with a
// Middleware and reports cache events (hits, deduplicated joins,
// invalidations, evictions) through Metrics.
package observe
