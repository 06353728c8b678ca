package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/querycache/auth"
	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/resilience"
	"github.com/jonwraymond/querycache/transport"
)

// DefaultBaseURL is the API root used when Config.BaseURL is empty.
const DefaultBaseURL = "http://localhost:8000/api/"

// ErrNoToken is returned by Login when the server responds without a token.
var ErrNoToken = errors.New("library: login response carries no token")

// Config configures a Client.
type Config struct {
	// BaseURL is the API root. Default: DefaultBaseURL.
	BaseURL string

	// HTTPClient issues the requests. If nil, the transport default is used.
	HTTPClient *http.Client

	// UserAgent is sent when non-empty.
	UserAgent string

	// Token is an initial bearer token. A later Login replaces it.
	Token string

	// Middleware wraps every outbound call. Optional.
	Middleware *observe.Middleware

	// CacheOptions are applied after the client's own options, e.g.
	// cache.WithPolicy.
	CacheOptions []cache.Option

	// RetryAttempts is the number of attempts for transient failures
	// (network errors, HTTP 429 and 5xx). Values below 2 disable retry.
	RetryAttempts int

	// RetryDelay is the initial backoff between attempts. Default: 200ms.
	RetryDelay time.Duration

	// RequestTimeout bounds each attempt of a query or mutation. Zero means
	// no bound beyond the caller's context.
	RequestTimeout time.Duration
}

// Client is a typed library API client. Queries go through the cache; the
// subscription a query opens is released before the call returns, so the
// entry then lives for the cache's grace period. Use Watch* methods to keep
// entries observed.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: transport failures are *transport.NetworkError, *transport.HTTPError
// or *transport.DecodeError, possibly wrapped by resilience.ErrMaxRetriesExceeded.
type Client struct {
	cache  *cache.QueryCache
	store  *auth.Store
	exec   *resilience.Executor
	logger observe.Logger
}

// New creates a client and its cache.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	fn, err := transport.NewHTTPFunc(transport.HTTPConfig{
		BaseURL:   cfg.BaseURL,
		Router:    Router,
		Client:    cfg.HTTPClient,
		UserAgent: cfg.UserAgent,
	})
	if err != nil {
		return nil, err
	}
	return NewWithTransport(transport.NewAdapter(fn), cfg)
}

// NewWithTransport creates a client over an existing transport. Config's
// HTTP fields are ignored.
func NewWithTransport(t cache.Transport, cfg Config) (*Client, error) {
	store := auth.NewStore()
	if cfg.Token != "" {
		if _, err := store.SetToken(cfg.Token); err != nil {
			return nil, fmt.Errorf("library: initial token: %w", err)
		}
	}

	mw := cfg.Middleware
	if mw == nil {
		mw = observe.NewMiddleware(nil, nil, nil)
	}

	opts := []cache.Option{cache.WithTokenSource(store), cache.WithMiddleware(mw)}
	qc, err := cache.New(t, append(opts, cfg.CacheOptions...)...)
	if err != nil {
		return nil, err
	}

	var execOpts []resilience.ExecutorOption
	if cfg.RetryAttempts > 1 {
		logger := mw.Logger()
		execOpts = append(execOpts, resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  cfg.RetryAttempts,
			InitialDelay: cmpDuration(cfg.RetryDelay, 200*time.Millisecond),
			MaxDelay:     5 * time.Second,
			Jitter:       true,
			RetryIf:      transport.IsTransient,
			OnRetry: func(attempt int, err error, delay time.Duration) {
				logger.Warn(context.Background(), "retrying request",
					observe.Field{Key: "attempt", Value: attempt},
					observe.Field{Key: "delay", Value: delay.String()},
					observe.Field{Key: "error", Value: err.Error()},
				)
			},
		})))
	}

	if cfg.RequestTimeout > 0 {
		execOpts = append(execOpts, resilience.WithTimeout(cfg.RequestTimeout))
	}

	return &Client{
		cache:  qc,
		store:  store,
		exec:   resilience.NewExecutor(execOpts...),
		logger: mw.Logger(),
	}, nil
}

func cmpDuration(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// Cache returns the underlying query cache.
func (c *Client) Cache() *cache.QueryCache { return c.cache }

// Auth returns the token store.
func (c *Client) Auth() *auth.Store { return c.store }

// Close releases the cache.
func (c *Client) Close() error { return c.cache.Close() }

// Stats returns the dashboard summary.
func (c *Client) Stats(ctx context.Context) (LibraryStats, error) {
	return fetch[LibraryStats](ctx, c, statsRequest())
}

// Books searches the catalogue. An empty search lists every book.
func (c *Client) Books(ctx context.Context, search string) (BooksPage, error) {
	return fetch[BooksPage](ctx, c, booksRequest(search))
}

// Book returns one book.
func (c *Client) Book(ctx context.Context, id int) (Book, error) {
	return fetch[Book](ctx, c, bookRequest(id))
}

// Users searches the members.
func (c *Client) Users(ctx context.Context, search string) (UsersPage, error) {
	return fetch[UsersPage](ctx, c, usersRequest(search))
}

// BorrowHistory returns the loans of one user.
func (c *Client) BorrowHistory(ctx context.Context, userID int) ([]BorrowRecord, error) {
	return fetch[[]BorrowRecord](ctx, c, historyRequest(userID))
}

// Dashboard is the combined data of the dashboard view.
type Dashboard struct {
	Stats LibraryStats `json:"stats"`
	Books BooksPage    `json:"books"`
	Users UsersPage    `json:"users"`
}

// Dashboard loads stats, books and users concurrently.
func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Stats, err = c.Stats(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.Books, err = c.Books(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		d.Users, err = c.Users(gctx, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// AddBook creates a book and returns it as stored by the server.
func (c *Client) AddBook(ctx context.Context, in BookInput) (Book, *cache.MutationResult, error) {
	var out Book
	res, err := c.mutate(ctx, cache.MutationRequest{
		Name:        OpAddBook,
		Params:      in,
		Invalidates: []cache.Tag{cache.CollectionTag(TagBooks), cache.CollectionTag(TagStats)},
	}, &out)
	return out, res, err
}

// UpdateBook changes the writable fields of a book.
func (c *Client) UpdateBook(ctx context.Context, id int, in BookInput) (Book, *cache.MutationResult, error) {
	var out Book
	res, err := c.mutate(ctx, cache.MutationRequest{
		Name:        OpUpdateBook,
		Params:      UpdateBookParams{ID: id, Book: in},
		Invalidates: []cache.Tag{BookTag(id)},
	}, &out)
	return out, res, err
}

// DeleteBook removes a book.
func (c *Client) DeleteBook(ctx context.Context, id int) (*cache.MutationResult, error) {
	return c.mutate(ctx, cache.MutationRequest{
		Name:        OpDeleteBook,
		Params:      IDParams{ID: id},
		Invalidates: []cache.Tag{BookTag(id), cache.CollectionTag(TagStats)},
	}, nil)
}

// BorrowBook lends a book to a user.
func (c *Client) BorrowBook(ctx context.Context, bookID, userID int) (*cache.MutationResult, error) {
	p := BorrowParams{BookID: bookID, UserID: userID}
	return c.mutate(ctx, cache.MutationRequest{
		Name:        OpBorrowBook,
		Params:      p,
		Invalidates: borrowInvalidates(p),
	}, nil)
}

// ReturnBook ends a loan.
func (c *Client) ReturnBook(ctx context.Context, bookID, userID int) (*cache.MutationResult, error) {
	p := BorrowParams{BookID: bookID, UserID: userID}
	return c.mutate(ctx, cache.MutationRequest{
		Name:        OpReturnBook,
		Params:      p,
		Invalidates: borrowInvalidates(p),
	}, nil)
}

// Login exchanges credentials for a session token and stores it. Requests
// dispatched afterwards carry the new token; entries already cached are not
// invalidated.
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResponse, error) {
	var out LoginResponse
	if _, err := c.mutate(ctx, cache.MutationRequest{Name: OpLogin, Params: creds}, &out); err != nil {
		return LoginResponse{}, err
	}
	if out.Token == "" {
		return LoginResponse{}, ErrNoToken
	}
	id, err := c.store.SetToken(out.Token)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("library: store token: %w", err)
	}

	fields := []observe.Field{{Key: "username", Value: creds.Username}}
	if id != nil {
		fields = append(fields, observe.Field{Key: "principal", Value: id.Principal})
	}
	c.logger.Info(ctx, "logged in", fields...)
	return out, nil
}

// Logout clears the stored token.
func (c *Client) Logout() {
	c.store.Clear()
}

// BooksUpdate is one state of a watched book search.
type BooksUpdate struct {
	Status cache.Status
	Page   BooksPage
	Err    error
}

// WatchBooks keeps the book search observed and calls fn with every state
// change, including background refetches triggered by mutations. It returns
// when ctx ends, the cache closes, or fn returns an error.
func (c *Client) WatchBooks(ctx context.Context, search string, fn func(BooksUpdate) error) error {
	sub, err := c.cache.Query(ctx, booksRequest(search))
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-sub.Updates():
			if !ok {
				return sub.Err()
			}
			u := BooksUpdate{Status: snap.Status, Err: snap.Err}
			if snap.Value != nil {
				if err := json.Unmarshal(snap.Value, &u.Page); err != nil {
					u.Err = &transport.DecodeError{Op: OpGetBooks, Err: err}
				}
			}
			if err := fn(u); err != nil {
				return err
			}
		}
	}
}

// fetch runs one query through the cache and decodes the settled value. An
// attempt abandoned by the request timeout may still finish in the
// background, so the result is handed over under a lock.
func fetch[T any](ctx context.Context, c *Client, req cache.QueryRequest) (T, error) {
	var (
		mu  sync.Mutex
		out T
	)
	err := c.exec.Execute(ctx, func(ctx context.Context) error {
		sub, err := c.cache.Query(ctx, req)
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()

		snap, err := sub.Wait(ctx)
		if err != nil {
			return err
		}
		if snap.Err != nil {
			return snap.Err
		}
		var v T
		if err := json.Unmarshal(snap.Value, &v); err != nil {
			return &transport.DecodeError{Op: req.Name, Err: err}
		}
		mu.Lock()
		out = v
		mu.Unlock()
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	mu.Lock()
	defer mu.Unlock()
	return out, nil
}

// mutate runs one mutation and decodes its payload into out when out is
// non-nil and the server returned a body.
func (c *Client) mutate(ctx context.Context, req cache.MutationRequest, out any) (*cache.MutationResult, error) {
	var (
		mu  sync.Mutex
		res *cache.MutationResult
	)
	err := c.exec.Execute(ctx, func(ctx context.Context) error {
		r, err := c.cache.Mutate(ctx, req)
		if err != nil {
			return err
		}
		mu.Lock()
		res = r
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()
	if out != nil && len(res.Payload) > 0 {
		if err := json.Unmarshal(res.Payload, out); err != nil {
			return res, &transport.DecodeError{Op: req.Name, Err: err}
		}
	}
	return res, nil
}
