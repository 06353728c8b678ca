// Package transport adapts an injected network function into the uniform
// execute contract used by the query cache.
//
// The adapter attaches a bearer token when one is supplied and classifies
// every failure as a NetworkError, HTTPError, or DecodeError. It never
// retries; retry policy belongs to the caller.
//
// NewHTTPFunc binds the network function to a REST API through a Router that
// maps operation names and parameters to HTTP verbs and paths.
package transport
