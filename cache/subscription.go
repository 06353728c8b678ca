package cache

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Subscription is one consumer's handle on a cache entry. It counts toward the
// entry's subscribers until Unsubscribe is called.
//
// Every transition of the entry is delivered on Updates in the order it
// happened. Delivery is buffered per subscription, so a slow reader never
// blocks the cache; Updates is closed when the subscription ends.
type Subscription struct {
	id    string
	key   RequestKey
	cache *QueryCache
	entry *entry // guarded by cache.mu

	updates chan Entry
	signal  chan struct{}
	done    chan struct{}

	mu     sync.Mutex
	queue  []Entry
	last   Entry
	ended  bool
	endErr error
}

func newSubscription(c *QueryCache, e *entry) *Subscription {
	s := &Subscription{
		id:      uuid.NewString(),
		key:     e.key,
		cache:   c,
		entry:   e,
		updates: make(chan Entry),
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go s.pump()
	return s
}

// ID returns a unique identifier for this subscription.
func (s *Subscription) ID() string { return s.id }

// Key returns the request key this subscription observes.
func (s *Subscription) Key() RequestKey { return s.key }

// Updates returns the channel of entry snapshots.
func (s *Subscription) Updates() <-chan Entry { return s.updates }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns why the subscription ended, or nil while it is active.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endErr
}

// Current returns the most recent snapshot queued for this subscription.
func (s *Subscription) Current() Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Wait blocks until the entry is Fresh or Errored and returns that snapshot.
// A transport failure is reported in Entry.Err, not as the returned error;
// the error is non-nil only if ctx ends or the subscription ends first.
func (s *Subscription) Wait(ctx context.Context) (Entry, error) {
	for {
		snap, changed, err := s.cache.observe(s)
		if err != nil {
			return Entry{}, err
		}
		if snap.Status.Settled() {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-changed:
		case <-s.done:
		}
	}
}

// Unsubscribe releases the subscription. It is idempotent.
func (s *Subscription) Unsubscribe() {
	s.cache.unsubscribe(s)
}

// push queues snap for delivery. Called with the cache lock held, which
// fixes the delivery order.
func (s *Subscription) push(snap Entry) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, snap)
	s.last = snap
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// end marks the subscription finished. It reports false if it already was.
func (s *Subscription) end(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	s.ended = true
	s.endErr = err
	s.queue = nil
	close(s.done)
	return true
}

func (s *Subscription) pump() {
	defer close(s.updates)
	for {
		s.mu.Lock()
		if s.ended {
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.signal:
			case <-s.done:
			}
			continue
		}
		next := s.queue[0]
		s.queue[0] = Entry{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.updates <- next:
		case <-s.done:
			return
		}
	}
}
