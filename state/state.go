// Package state holds the observable {Data, Loading, Problem} triple an
// engine publishes, and enforces that only the current generation writes it.
package state

import (
	"slices"
	"sync"

	"github.com/kbukum/querykit/problem"
)

// State is a snapshot of an engine's published state. Data and Problem are
// never both non-nil.
type State[T any] struct {
	Data    *T               `json:"data,omitempty"`
	Loading bool             `json:"loading"`
	Problem *problem.Details `json:"problem,omitempty"`
}

// EventKind selects a transition.
type EventKind int

const (
	// Started marks the beginning of work: Loading=true, Problem cleared,
	// Data retained.
	Started EventKind = iota
	// Succeeded publishes Data and clears Problem.
	Succeeded
	// Failed publishes Problem, clears Data and Loading.
	Failed
	// Settled clears Loading without touching Data or Problem.
	Settled
	// Opened marks a live stream: Loading=true, nothing else changes.
	Opened
	// Received publishes stream Data and clears Problem. Loading is kept.
	Received
	// Rejected publishes a non-fatal stream Problem and clears Data.
	// Loading is kept.
	Rejected
	// Reset clears Problem and keeps Data and Loading.
	Reset
)

func (k EventKind) String() string {
	switch k {
	case Started:
		return "started"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Settled:
		return "settled"
	case Opened:
		return "opened"
	case Received:
		return "received"
	case Rejected:
		return "rejected"
	case Reset:
		return "reset"
	default:
		return "unknown"
	}
}

// Event is the input to the transition function.
type Event[T any] struct {
	Kind    EventKind
	Data    *T
	Problem *problem.Details
}

// Reduce is the single transition function for every engine event.
func Reduce[T any](s State[T], ev Event[T]) State[T] {
	switch ev.Kind {
	case Started:
		s.Loading = true
		s.Problem = nil
	case Succeeded:
		s.Data, s.Problem, s.Loading = ev.Data, nil, false
	case Failed:
		s.Data, s.Problem, s.Loading = nil, ev.Problem, false
	case Settled:
		s.Loading = false
	case Opened:
		s.Loading = true
	case Received:
		s.Data, s.Problem = ev.Data, nil
	case Rejected:
		s.Data, s.Problem = nil, ev.Problem
	case Reset:
		s.Problem = nil
	}
	return s
}

// Store is a generation-guarded single-writer state holder. Begin issues a
// new generation; Apply only accepts events from the current one.
// Subscribers are called in publish order, one snapshot at a time, and may
// call back into the store or the engine that owns it.
type Store[T any] struct {
	mu   sync.Mutex
	cur  State[T]
	gen  uint64
	subs map[uint64]func(State[T])
	next uint64

	// pending holds published snapshots not yet delivered. Only the
	// goroutine that set draining delivers them.
	pending  []delivery[T]
	draining bool
}

type delivery[T any] struct {
	state State[T]
	subs  []func(State[T])
}

// NewStore returns an empty store at generation 0.
func NewStore[T any]() *Store[T] {
	return &Store[T]{subs: make(map[uint64]func(State[T]))}
}

// Begin invalidates the current generation and returns a new one.
func (s *Store[T]) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

// Generation returns the current generation.
func (s *Store[T]) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Current reports whether gen is still the current generation.
func (s *Store[T]) Current(gen uint64) bool {
	return s.Generation() == gen
}

// Apply runs ev through Reduce if gen is current and notifies subscribers.
// It reports whether the event was applied.
//
// A call made while another delivery is in progress, including one made
// from inside a subscriber, queues its snapshot and returns; the delivering
// goroutine hands it out after the snapshots queued before it.
func (s *Store[T]) Apply(gen uint64, ev Event[T]) bool {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	next := Reduce(s.cur, ev)
	if next == s.cur {
		s.mu.Unlock()
		return true
	}
	s.cur = next
	if subs := s.snapshotSubs(); len(subs) > 0 {
		s.pending = append(s.pending, delivery[T]{state: next, subs: subs})
	}
	if s.draining {
		s.mu.Unlock()
		return true
	}
	s.draining = true
	s.mu.Unlock()

	s.drain()
	return true
}

func (s *Store[T]) drain() {
	done := false
	defer func() {
		if !done {
			// A subscriber panicked; let the next Apply deliver.
			s.mu.Lock()
			s.draining = false
			s.mu.Unlock()
		}
	}()
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.draining = false
			s.pending = nil
			s.mu.Unlock()
			done = true
			return
		}
		d := s.pending[0]
		s.pending[0] = delivery[T]{}
		s.pending = s.pending[1:]
		s.mu.Unlock()

		for _, fn := range d.subs {
			fn(d.state)
		}
	}
}

// Get returns the current snapshot.
func (s *Store[T]) Get() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Subscribe registers fn and returns a function that removes it. fn receives
// every subsequent snapshot.
func (s *Store[T]) Subscribe(fn func(State[T])) (cancel func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store[T]) snapshotSubs() []func(State[T]) {
	if len(s.subs) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]func(State[T]), len(ids))
	for i, id := range ids {
		out[i] = s.subs[id]
	}
	return out
}
