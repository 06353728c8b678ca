package cache

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/transport"
)

// MutationRequest describes a mutation and the tags it invalidates on
// success.
type MutationRequest struct {
	Name        string
	Params      any
	Invalidates []Tag
}

// MutationRecord identifies one mutation execution.
type MutationRecord struct {
	ID          string
	Key         RequestKey
	Name        string
	Invalidates []Tag
}

// MutationResult is the outcome of a successful mutation.
type MutationResult struct {
	MutationRecord
	Payload []byte
	Sweep   *Sweep
}

// WaitRefetches blocks until every refetch scheduled by the mutation's
// invalidation sweep has completed.
func (r *MutationResult) WaitRefetches(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.Sweep.Wait(ctx)
}

// Sweep reports what an invalidation touched. Keys are chosen synchronously;
// the refetches run concurrently and complete in no particular order.
type Sweep struct {
	Tags        []Tag
	Invalidated []RequestKey
	Refetched   []RequestKey
	Evicted     []RequestKey

	fetches []*inFlight
	errs    []error
}

// Wait blocks until the sweep's refetches complete. It returns the first
// refetch failure, if any. Refetches that were superseded or cancelled count
// as successful.
func (s *Sweep) Wait(ctx context.Context) error {
	if s == nil {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, fl := range s.fetches {
		g.Go(func() error {
			select {
			case <-fl.done:
				return fl.outcome
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(s.errs...)
}

// Mutate executes a mutation. It is never cached or deduplicated. On success
// the invalidation sweep runs before Mutate returns, so the result already
// reflects the scheduled refetches. A failed mutation invalidates nothing.
func (c *QueryCache) Mutate(ctx context.Context, req MutationRequest) (*MutationResult, error) {
	key, err := c.keyer.Key(transport.KindMutation, req.Name, req.Params)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	rec := MutationRecord{
		ID:          uuid.NewString(),
		Key:         key,
		Name:        req.Name,
		Invalidates: uniqueTags(req.Invalidates),
	}
	meta := observe.OperationMeta{Kind: transport.KindMutation.String(), Name: req.Name, Key: string(key)}
	op := transport.Operation{Kind: transport.KindMutation, Name: req.Name, Params: req.Params}
	token := c.currentToken()

	exec := c.mw.Wrap(func(ctx context.Context, _ observe.OperationMeta) ([]byte, error) {
		return c.transport.Execute(ctx, op, token)
	})
	payload, err := exec(ctx, meta)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	res := &MutationResult{MutationRecord: rec, Payload: payload}
	if c.closed {
		res.Sweep = &Sweep{Tags: rec.Invalidates}
		return res, nil
	}
	res.Sweep = c.sweepLocked(ctx, rec.Invalidates)
	return res, nil
}

// Invalidate runs an invalidation sweep for tags without a mutation.
func (c *QueryCache) Invalidate(ctx context.Context, tags ...Tag) (*Sweep, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.sweepLocked(ctx, uniqueTags(tags)), nil
}

// sweepLocked invalidates every entry matching tags. Entries with subscribers
// are marked stale and refetched, superseding any fetch already in flight so
// that a response computed before the invalidation never lands as fresh.
// Entries without subscribers are evicted.
func (c *QueryCache) sweepLocked(ctx context.Context, tags []Tag) *Sweep {
	sw := &Sweep{Tags: tags}
	if len(tags) == 0 {
		return sw
	}
	sw.Invalidated = c.tags.RecordInvalidates(tags)

	metrics := c.mw.Metrics()
	for _, key := range sw.Invalidated {
		e, ok := c.entries[key]
		if !ok {
			c.tags.Remove(key)
			continue
		}
		meta := c.meta(e)
		metrics.RecordCacheEvent(ctx, meta, observe.EventInvalidate)

		if len(e.subs) == 0 {
			c.evictLocked(ctx, e, "invalidated")
			sw.Evicted = append(sw.Evicted, key)
			continue
		}

		if fl := c.inflight[key]; fl != nil {
			c.supersedeLocked(key, fl)
		}
		e.status = StatusStale
		c.notifyLocked(e)

		fl, err := c.startFetchLocked(ctx, e)
		if err != nil {
			sw.errs = append(sw.errs, err)
			continue
		}
		metrics.RecordCacheEvent(ctx, meta, observe.EventRefetch)
		sw.Refetched = append(sw.Refetched, key)
		sw.fetches = append(sw.fetches, fl)
	}

	if len(sw.Invalidated) > 0 {
		names := make([]string, len(tags))
		for i, t := range tags {
			names[i] = t.String()
		}
		c.mw.Logger().Info(ctx, "invalidation sweep",
			observe.Field{Key: "tags", Value: names},
			observe.Field{Key: "invalidated", Value: len(sw.Invalidated)},
			observe.Field{Key: "refetched", Value: len(sw.Refetched)},
			observe.Field{Key: "evicted", Value: len(sw.Evicted)},
		)
	}
	return sw
}
