package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/querycache/auth"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/transport"
)

// Transport executes one operation with an optional bearer token.
// *transport.Adapter satisfies it.
//
// Contract:
// - Concurrency: must be safe for concurrent use.
// - Context: must honor cancellation; a superseded fetch is cancelled.
// - Purity: must not cache results itself.
type Transport interface {
	Execute(ctx context.Context, op transport.Operation, token string) ([]byte, error)
}

// QueryRequest describes a query and the tags its result provides.
type QueryRequest struct {
	Name   string
	Params any

	// Tags are provided by the entry whatever the outcome.
	Tags []Tag

	// ProvidesFunc derives additional tags from a successful payload.
	ProvidesFunc func(payload []byte) []Tag
}

// Stats is a point-in-time summary of the cache.
type Stats struct {
	Entries           int
	ByStatus          map[Status]int
	Subscribers       int
	InFlight          int
	Bytes             int64
	ConsistencyErrors int64
}

// Option configures a QueryCache.
type Option func(*QueryCache)

// WithKeyer sets the request key builder. Default: DefaultKeyer.
func WithKeyer(k Keyer) Option {
	return func(c *QueryCache) {
		if k != nil {
			c.keyer = k
		}
	}
}

// WithPolicy sets the lifecycle policy. Default: DefaultPolicy().
func WithPolicy(p Policy) Option {
	return func(c *QueryCache) { c.policy = p }
}

// WithTokenSource sets the supplier of bearer tokens. The source is read at
// every dispatch.
func WithTokenSource(ts auth.TokenSource) Option {
	return func(c *QueryCache) { c.tokens = ts }
}

// WithMiddleware wraps every outbound call with tracing, metrics and logging.
// The middleware's logger and metrics are also used for cache events.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(c *QueryCache) {
		if mw != nil {
			c.mw = mw
		}
	}
}

// QueryCache owns cached entries, their subscriptions and in-flight fetches.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Dedup: at most one in-flight fetch exists per RequestKey.
// - Errors: failures are returned as values; nothing panics across the API.
type QueryCache struct {
	transport Transport
	keyer     Keyer
	policy    Policy
	tokens    auth.TokenSource
	mw        *observe.Middleware
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu                sync.Mutex
	closed            bool
	entries           map[RequestKey]*entry
	inflight          map[RequestKey]*inFlight
	tags              *TagGraph
	consistencyErrors int64
}

// inFlight is one outbound fetch. waiters are the subscriptions depending on
// it; the fetch is cancelled when the last one leaves.
type inFlight struct {
	cancel             context.CancelFunc
	done               chan struct{}
	waiters            map[*Subscription]struct{}
	initialSubscribers int
	cancelled          bool
	superseded         bool

	// outcome is the transport error of a completed, current fetch. It is
	// written before done is closed.
	outcome error
}

// New creates a QueryCache that fetches through t.
func New(t Transport, opts ...Option) (*QueryCache, error) {
	if t == nil {
		return nil, ErrNilTransport
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &QueryCache{
		transport: t,
		keyer:     NewDefaultKeyer(),
		policy:    DefaultPolicy(),
		mw:        observe.NewMiddleware(nil, nil, nil),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		entries:   make(map[RequestKey]*entry),
		inflight:  make(map[RequestKey]*inFlight),
		tags:      NewTagGraph(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Query subscribes to the entry for req, creating it if needed. A Fresh entry
// is served without a network call; a request already in flight is joined;
// otherwise a fetch is started. The returned subscription immediately
// receives the entry's current state.
func (c *QueryCache) Query(ctx context.Context, req QueryRequest) (*Subscription, error) {
	key, err := c.keyer.Key(transport.KindQuery, req.Name, req.Params)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	e, ok := c.entries[key]
	if !ok {
		e = newEntry(key, req)
		c.entries[key] = e
		c.tags.RecordProvides(key, e.staticTags)
	}
	return c.attachLocked(ctx, e)
}

// Subscribe adds a subscriber to an existing entry. It fetches only if the
// entry is not Fresh and nothing is in flight.
func (c *QueryCache) Subscribe(ctx context.Context, key RequestKey) (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	e, ok := c.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return c.attachLocked(ctx, e)
}

// Peek returns a snapshot of the entry for key without any network effect.
func (c *QueryCache) Peek(key RequestKey) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return e.snapshot(c.tags.Provided(key)), true
}

// Refetch re-runs the stored fetch for key. A fetch already in flight is
// reused.
func (c *QueryCache) Refetch(ctx context.Context, key RequestKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	e, ok := c.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if fl := c.inflight[key]; fl != nil && !fl.cancelled {
		c.mw.Metrics().RecordCacheEvent(ctx, c.meta(e), observe.EventDedup)
		return nil
	}
	c.mw.Metrics().RecordCacheEvent(ctx, c.meta(e), observe.EventRefetch)
	_, err := c.startFetchLocked(ctx, e)
	return err
}

// Stats returns a summary of the cache.
func (c *QueryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Stats{
		Entries:           len(c.entries),
		ByStatus:          make(map[Status]int),
		InFlight:          len(c.inflight),
		ConsistencyErrors: c.consistencyErrors,
	}
	for _, e := range c.entries {
		st.ByStatus[e.status]++
		st.Subscribers += len(e.subs)
		st.Bytes += int64(len(e.value))
	}
	return st
}

// Close cancels in-flight fetches, stops grace timers and ends every
// subscription with ErrClosed. It is idempotent.
func (c *QueryCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for key, fl := range c.inflight {
		c.supersedeLocked(key, fl)
	}
	for _, e := range c.entries {
		e.stopGC()
		for s := range e.subs {
			s.end(ErrClosed)
		}
		close(e.changed)
		e.changed = make(chan struct{})
	}
	c.entries = make(map[RequestKey]*entry)
	c.tags = NewTagGraph()
	c.mu.Unlock()

	c.cancel()
	return nil
}

func (c *QueryCache) attachLocked(ctx context.Context, e *entry) (*Subscription, error) {
	s := newSubscription(c, e)
	e.stopGC()
	e.subs[s] = struct{}{}

	notified, err := c.dispatchLocked(ctx, e, s)
	if err != nil {
		delete(e.subs, s)
		s.end(err)
		if len(e.subs) == 0 {
			c.scheduleGCLocked(ctx, e)
		}
		return nil, err
	}
	if !notified {
		s.push(e.snapshot(c.tags.Provided(e.key)))
	}
	return s, nil
}

// dispatchLocked decides whether s is served from cache, joins the in-flight
// fetch, or starts a new one. It reports whether subscribers were notified.
func (c *QueryCache) dispatchLocked(ctx context.Context, e *entry, s *Subscription) (bool, error) {
	meta := c.meta(e)
	log := c.mw.Logger().WithOperation(meta)
	metrics := c.mw.Metrics()

	fl := c.inflight[e.key]
	switch {
	case e.status == StatusFresh:
		metrics.RecordCacheEvent(ctx, meta, observe.EventHit)
		log.Debug(ctx, "cache hit")
		return false, nil
	case fl != nil && !fl.cancelled:
		fl.waiters[s] = struct{}{}
		metrics.RecordCacheEvent(ctx, meta, observe.EventDedup)
		log.Debug(ctx, "joined in-flight request", observe.Field{Key: "waiters", Value: len(fl.waiters)})
		return false, nil
	}

	if e.status == StatusLoading && fl == nil {
		_ = c.violationLocked(ctx, e, "entry is loading without an in-flight request")
	}
	metrics.RecordCacheEvent(ctx, meta, observe.EventMiss)
	log.Debug(ctx, "cache miss", observe.Field{Key: "status", Value: e.status.String()})
	if _, err := c.startFetchLocked(ctx, e); err != nil {
		return false, err
	}
	return true, nil
}

// startFetchLocked registers a new in-flight fetch for e and launches it. A
// cancelled fetch still in the table is superseded; a live one is a
// consistency violation.
func (c *QueryCache) startFetchLocked(ctx context.Context, e *entry) (*inFlight, error) {
	if cur := c.inflight[e.key]; cur != nil {
		if !cur.cancelled {
			return nil, c.violationLocked(ctx, e, "fetch started while another request is in flight")
		}
		c.supersedeLocked(e.key, cur)
	}

	var (
		fetchCtx context.Context
		cancel   context.CancelFunc
	)
	if c.policy.FetchTimeout > 0 {
		fetchCtx, cancel = context.WithTimeout(c.ctx, c.policy.FetchTimeout)
	} else {
		fetchCtx, cancel = context.WithCancel(c.ctx)
	}

	fl := &inFlight{
		cancel:  cancel,
		done:    make(chan struct{}),
		waiters: make(map[*Subscription]struct{}, len(e.subs)),
	}
	for s := range e.subs {
		fl.waiters[s] = struct{}{}
	}
	fl.initialSubscribers = len(fl.waiters)
	c.inflight[e.key] = fl

	e.status = StatusLoading
	c.notifyLocked(e)

	op := transport.Operation{Kind: transport.KindQuery, Name: e.name, Params: e.params}
	go c.runFetch(fetchCtx, e, fl, op, c.currentToken(), c.meta(e))
	return fl, nil
}

func (c *QueryCache) runFetch(ctx context.Context, e *entry, fl *inFlight, op transport.Operation, token string, meta observe.OperationMeta) {
	defer fl.cancel()

	exec := c.mw.Wrap(func(ctx context.Context, _ observe.OperationMeta) ([]byte, error) {
		return c.transport.Execute(ctx, op, token)
	})
	payload, err := exec(ctx, meta)

	var derived []Tag
	if err == nil {
		if payload == nil {
			payload = []byte("null")
		}
		derived = c.deriveTags(ctx, e, payload)
	}
	c.complete(e, fl, payload, derived, err)
}

func (c *QueryCache) deriveTags(ctx context.Context, e *entry, payload []byte) (tags []Tag) {
	if e.providesFn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			c.mw.Logger().WithOperation(c.meta(e)).Error(ctx, "provides func panicked",
				observe.Field{Key: "panic", Value: fmt.Sprint(r)})
			tags = nil
		}
	}()
	return e.providesFn(payload)
}

// complete applies a fetch outcome. Results of superseded fetches, of fetches
// for evicted entries, and of fetches after Close are discarded.
func (c *QueryCache) complete(e *entry, fl *inFlight, payload []byte, derived []Tag, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(fl.done)

	if c.inflight[e.key] == fl {
		delete(c.inflight, e.key)
	}
	if fl.superseded || c.closed || c.entries[e.key] != e {
		return
	}

	ctx := context.Background()
	log := c.mw.Logger().WithOperation(c.meta(e))

	if fl.cancelled {
		if e.value != nil {
			e.status = StatusStale
		} else {
			e.status = StatusUninitialized
		}
		e.err = nil
		log.Debug(ctx, "fetch cancelled", observe.Field{Key: "subscribers_at_start", Value: fl.initialSubscribers})
		c.notifyLocked(e)
		return
	}

	if err != nil {
		e.status = StatusErrored
		e.value = nil
		e.err = err
		c.tags.RecordProvides(e.key, e.staticTags)
		fl.outcome = err
		log.Warn(ctx, "fetch failed", observe.Field{Key: "error", Value: err.Error()})
	} else {
		e.status = StatusFresh
		e.value = payload
		e.err = nil
		c.tags.RecordProvides(e.key, uniqueTags(e.staticTags, derived))
	}
	e.lastUpdated = c.now()
	c.notifyLocked(e)
}

func (c *QueryCache) unsubscribe(s *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !s.end(ErrUnsubscribed) {
		return
	}
	e := s.entry
	if _, ok := e.subs[s]; !ok {
		return
	}
	delete(e.subs, s)

	ctx := context.Background()
	if fl := c.inflight[e.key]; fl != nil {
		if _, ok := fl.waiters[s]; ok {
			delete(fl.waiters, s)
			if len(fl.waiters) == 0 && !fl.cancelled {
				fl.cancelled = true
				fl.cancel()
				c.mw.Metrics().RecordCacheEvent(ctx, c.meta(e), observe.EventCancel)
			}
		}
	}

	if len(e.subs) == 0 {
		c.scheduleGCLocked(ctx, e)
	}
}

// scheduleGCLocked starts the grace timer for an entry with no subscribers.
func (c *QueryCache) scheduleGCLocked(ctx context.Context, e *entry) {
	e.stopGC()
	if !c.policy.retains() {
		c.evictLocked(ctx, e, "unused")
		return
	}
	gen := e.gcGen
	e.gcTimer = time.AfterFunc(c.policy.KeepUnusedFor, func() { c.expire(e, gen) })
}

func (c *QueryCache) expire(e *entry, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.entries[e.key] != e || e.gcGen != gen || len(e.subs) > 0 {
		return
	}
	e.gcTimer = nil
	c.evictLocked(context.Background(), e, "unused")
}

// evictLocked removes e and cancels its in-flight fetch, if any.
func (c *QueryCache) evictLocked(ctx context.Context, e *entry, reason string) {
	e.stopGC()
	if fl := c.inflight[e.key]; fl != nil {
		c.supersedeLocked(e.key, fl)
	}
	delete(c.entries, e.key)
	c.tags.Remove(e.key)
	for s := range e.subs {
		s.end(ErrNotFound)
	}
	close(e.changed)
	e.changed = make(chan struct{})

	meta := c.meta(e)
	c.mw.Metrics().RecordCacheEvent(ctx, meta, observe.EventEvict)
	c.mw.Logger().WithOperation(meta).Info(ctx, "entry evicted", observe.Field{Key: "reason", Value: reason})
}

// supersedeLocked detaches fl from the in-flight table and cancels it. Its
// completion will be discarded.
func (c *QueryCache) supersedeLocked(key RequestKey, fl *inFlight) {
	fl.superseded = true
	fl.cancel()
	if c.inflight[key] == fl {
		delete(c.inflight, key)
	}
}

// notifyLocked wakes Wait callers and queues a snapshot for every subscriber.
func (c *QueryCache) notifyLocked(e *entry) {
	snap := e.snapshot(c.tags.Provided(e.key))
	close(e.changed)
	e.changed = make(chan struct{})
	for s := range e.subs {
		s.push(snap)
	}
}

// observe returns the current snapshot of s's entry and a channel closed on
// its next transition.
func (c *QueryCache) observe(s *Subscription) (Entry, <-chan struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := s.Err(); err != nil {
		return Entry{}, nil, err
	}
	e := s.entry
	return e.snapshot(c.tags.Provided(e.key)), e.changed, nil
}

func (c *QueryCache) violationLocked(ctx context.Context, e *entry, detail string) error {
	err := &ConsistencyError{Key: e.key, Detail: detail}
	c.consistencyErrors++
	meta := c.meta(e)
	c.mw.Metrics().RecordCacheEvent(ctx, meta, observe.EventViolation)
	c.mw.Logger().WithOperation(meta).Error(ctx, "cache consistency violation",
		observe.Field{Key: "detail", Value: detail})
	return err
}

func (c *QueryCache) currentToken() string {
	if c.tokens == nil {
		return ""
	}
	token, ok := c.tokens.CurrentToken()
	if !ok {
		return ""
	}
	return token
}

func (c *QueryCache) meta(e *entry) observe.OperationMeta {
	return observe.OperationMeta{
		Kind: transport.KindQuery.String(),
		Name: e.name,
		Key:  string(e.key),
	}
}

var _ Transport = (*transport.Adapter)(nil)
