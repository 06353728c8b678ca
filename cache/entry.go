package cache

import "time"

// Status is the lifecycle state of a cache entry.
type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusFresh
	StatusStale
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusLoading:
		return "loading"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Settled reports whether s is a fetch outcome (Fresh or Errored).
func (s Status) Settled() bool {
	return s == StatusFresh || s == StatusErrored
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Entry is an immutable snapshot of a cache entry. Value must not be modified.
//
// Fresh entries carry a Value and no Err; Errored entries carry an Err and no
// Value. Loading and Stale entries keep the last good Value, if any.
type Entry struct {
	Key          RequestKey
	Name         string
	Status       Status
	Value        []byte
	Err          error
	ProvidedTags []Tag
	Subscribers  int
	LastUpdated  time.Time
}

// entry is the mutable record owned by QueryCache. All fields are guarded by
// the cache lock.
type entry struct {
	key        RequestKey
	name       string
	params     any
	staticTags []Tag
	providesFn func([]byte) []Tag

	status      Status
	value       []byte
	err         error
	lastUpdated time.Time

	subs    map[*Subscription]struct{}
	changed chan struct{}

	// gcGen invalidates grace timers that were superseded by a resubscribe.
	gcGen   uint64
	gcTimer *time.Timer
}

func newEntry(key RequestKey, req QueryRequest) *entry {
	return &entry{
		key:        key,
		name:       req.Name,
		params:     req.Params,
		staticTags: uniqueTags(req.Tags),
		providesFn: req.ProvidesFunc,
		status:     StatusUninitialized,
		subs:       make(map[*Subscription]struct{}),
		changed:    make(chan struct{}),
	}
}

func (e *entry) snapshot(provided []Tag) Entry {
	return Entry{
		Key:          e.key,
		Name:         e.name,
		Status:       e.status,
		Value:        e.value,
		Err:          e.err,
		ProvidedTags: provided,
		Subscribers:  len(e.subs),
		LastUpdated:  e.lastUpdated,
	}
}

func (e *entry) stopGC() {
	e.gcGen++
	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}
}
