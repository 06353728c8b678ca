package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// MaxBodyBytes caps the size of a response body. Larger bodies fail with
// ErrBodyTooLarge.
const MaxBodyBytes = 10 << 20

// Route is the HTTP form of one operation.
type Route struct {
	// Method is the HTTP verb (GET for queries; POST, PATCH, or DELETE for mutations).
	Method string

	// Path is resolved relative to the base URL and must not start with "/".
	Path string

	// Query holds URL query parameters.
	Query url.Values

	// Body is JSON-encoded when non-nil.
	Body any
}

// Router maps operations onto routes.
type Router interface {
	Route(op Operation) (Route, error)
}

// RouterFunc adapts a function to the Router interface.
type RouterFunc func(op Operation) (Route, error)

// Route calls f.
func (f RouterFunc) Route(op Operation) (Route, error) { return f(op) }

// HTTPConfig configures NewHTTPFunc.
type HTTPConfig struct {
	// BaseURL is the API root, e.g. http://localhost:8000/api/.
	BaseURL string

	// Router maps operations to routes. Required.
	Router Router

	// Client is the HTTP client to use.
	// If nil, a client with a 30s timeout and an otelhttp transport is used.
	Client *http.Client

	// UserAgent is sent when non-empty.
	UserAgent string
}

// NewHTTPFunc returns a network function that issues REST calls.
func NewHTTPFunc(cfg HTTPConfig) (Func, error) {
	if cfg.Router == nil {
		return nil, fmt.Errorf("transport: router is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("transport: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("transport: base url %q must be absolute", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return func(ctx context.Context, req *Request) (*Response, error) {
		route, err := cfg.Router.Route(req.Operation)
		if err != nil {
			return nil, err
		}

		target := base.ResolveReference(&url.URL{
			Path:     strings.TrimPrefix(route.Path, "/"),
			RawQuery: route.Query.Encode(),
		})

		var body io.Reader
		if route.Body != nil {
			data, err := json.Marshal(route.Body)
			if err != nil {
				return nil, fmt.Errorf("%w: encode body: %v", ErrInvalidParams, err)
			}
			body = bytes.NewReader(data)
		}

		httpReq, err := http.NewRequestWithContext(ctx, route.Method, target.String(), body)
		if err != nil {
			return nil, fmt.Errorf("%w: build request: %v", ErrInvalidParams, err)
		}
		for k, vs := range req.Header {
			for _, v := range vs {
				httpReq.Header.Add(k, v)
			}
		}
		httpReq.Header.Set("Accept", "application/json")
		if body != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		if cfg.UserAgent != "" {
			httpReq.Header.Set("User-Agent", cfg.UserAgent)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if len(data) > MaxBodyBytes {
			return nil, fmt.Errorf("%w: %s %s exceeds %d bytes", ErrBodyTooLarge, route.Method, route.Path, MaxBodyBytes)
		}

		return &Response{
			Status: resp.StatusCode,
			Header: resp.Header,
			Body:   data,
		}, nil
	}, nil
}

// DecodeParams converts operation parameters into dst by way of JSON, so
// routers accept both typed structs and generic maps.
func DecodeParams(params any, dst any) error {
	if params == nil {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}
