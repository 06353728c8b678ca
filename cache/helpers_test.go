package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/querycache/transport"
)

// fakeTransport records calls and delegates responses to respond.
type fakeTransport struct {
	mu      sync.Mutex
	calls   map[string]int
	tokens  []string
	respond func(ctx context.Context, op transport.Operation) ([]byte, error)
}

func newFakeTransport(respond func(ctx context.Context, op transport.Operation) ([]byte, error)) *fakeTransport {
	return &fakeTransport{calls: make(map[string]int), respond: respond}
}

func (f *fakeTransport) Execute(ctx context.Context, op transport.Operation, token string) ([]byte, error) {
	f.mu.Lock()
	f.calls[op.Name]++
	f.tokens = append(f.tokens, token)
	respond := f.respond
	f.mu.Unlock()
	return respond(ctx, op)
}

func (f *fakeTransport) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeTransport) seenTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

func staticResponse(payload string) func(context.Context, transport.Operation) ([]byte, error) {
	return func(context.Context, transport.Operation) ([]byte, error) {
		return []byte(payload), nil
	}
}

func newTestCache(t *testing.T, ft *fakeTransport, opts ...Option) *QueryCache {
	t.Helper()
	c, err := New(ft, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitSettled(t *testing.T, sub *Subscription) Entry {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	e, err := sub.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	return e
}

// collectUntil reads updates until one has the wanted status.
func collectUntil(t *testing.T, sub *Subscription, want Status) []Status {
	t.Helper()
	var seen []Status
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-sub.Updates():
			if !ok {
				t.Fatalf("updates closed after %v", seen)
			}
			seen = append(seen, e.Status)
			if e.Status == want {
				return seen
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %v, saw %v", want, seen)
		}
	}
}
