// Package config loads libraryctl configuration from the environment.
//
// All variables share the LIBRARY_ prefix:
//
//	LIBRARY_API_URL            API root (default http://localhost:8000/api/)
//	LIBRARY_API_TOKEN          static bearer token, replaced by a login; may be
//	                           a secret reference such as secretref:file:/run/secrets/token
//	LIBRARY_CACHE_KEEP_UNUSED  grace period for unobserved entries (default 60s)
//	LIBRARY_FETCH_TIMEOUT      per-fetch timeout inside the cache (default 0, none)
//	LIBRARY_REQUEST_TIMEOUT    bound on each query or mutation attempt (default 30s)
//	LIBRARY_RETRY_ATTEMPTS     caller-side attempts for transient failures (default 1)
//	LIBRARY_LOG_LEVEL          debug|info|warn|error (default warn)
//	LIBRARY_TRACING_EXPORTER   none|stdout|otlp (default none)
//	LIBRARY_TRACING_SAMPLE     sample ratio 0.0-1.0 (default 1)
//	LIBRARY_METRICS_EXPORTER   none|stdout|otlp|prometheus (default none)
//	LIBRARY_SERVICE_NAME       otel service name (default libraryctl)
//
// Load parses the variables, applies defaults, and validates the result.
package config
