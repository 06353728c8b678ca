package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// HeaderAuthorization is the header carrying the bearer token.
const HeaderAuthorization = "Authorization"

// Kind distinguishes queries from mutations.
type Kind int

const (
	// KindQuery is a cacheable read.
	KindQuery Kind = iota
	// KindMutation is a write that is never cached or deduplicated.
	KindMutation
)

// String returns "query" or "mutation".
func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindMutation:
		return "mutation"
	default:
		return "unknown"
	}
}

// Operation names one call and its parameters.
type Operation struct {
	Kind   Kind
	Name   string
	Params any
}

// Request is what the injected network function receives.
type Request struct {
	Operation
	Header http.Header
}

// Response is a response received from the network function.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Func is the injected network function. A non-nil error means no response
// was received.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Adapter wraps a Func with bearer-token handling and failure classification.
//
// Contract:
// - Concurrency: safe for concurrent use if the wrapped Func is.
// - Errors: every failure is a *NetworkError, *HTTPError, or *DecodeError.
// A Func error wrapping ErrBodyTooLarge is a *DecodeError.
// - Retries: never retries.
type Adapter struct {
	fn Func
}

// NewAdapter creates an adapter around fn.
func NewAdapter(fn Func) *Adapter {
	return &Adapter{fn: fn}
}

// Execute runs op through the network function. The token is attached as a
// bearer Authorization header when non-empty. A successful response body must
// be empty or valid JSON; the raw body is returned as the payload.
func (a *Adapter) Execute(ctx context.Context, op Operation, token string) ([]byte, error) {
	if a == nil || a.fn == nil {
		return nil, &NetworkError{Op: op.Name, Err: ErrNilFunc}
	}

	req := &Request{Operation: op, Header: make(http.Header)}
	if token != "" {
		req.Header.Set(HeaderAuthorization, "Bearer "+token)
	}

	resp, err := a.call(ctx, req)
	if errors.Is(err, ErrBodyTooLarge) {
		return nil, &DecodeError{Op: op.Name, Err: err}
	}
	if err != nil {
		return nil, &NetworkError{Op: op.Name, Err: err}
	}
	if resp == nil {
		return nil, &NetworkError{Op: op.Name, Err: ErrNoResponse}
	}

	if resp.Status < 200 || resp.Status > 299 {
		return nil, &HTTPError{Op: op.Name, Status: resp.Status, Body: resp.Body}
	}

	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, &DecodeError{Op: op.Name, Err: fmt.Errorf("response body is not valid JSON (%d bytes)", len(body))}
	}
	return body, nil
}

func (a *Adapter) call(ctx context.Context, req *Request) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return a.fn(ctx, req)
}
