package store

import "sync"

// SubscribeFunc observes committed mutations. It is invoked synchronously
// after every commit, in subscription order, with the mutation record and
// the current root state.
type SubscribeFunc func(m Mutation, state State)

// ActionSubscriber observes dispatches. Any of the three callbacks may be
// nil. Before runs synchronously before the action's handlers start;
// After runs on success with the new root state; Error runs on failure
// with the root state captured at dispatch time and the error.
type ActionSubscriber struct {
	Before func(a ActionEvent, state State)
	After  func(a ActionEvent, state State)
	Error  func(a ActionEvent, state State, err error)
}

// subscribers is an ordered list of callbacks with snapshot-safe
// iteration: the engine copies the entry list before notifying, so a
// callback that unsubscribes (or subscribes) mid-iteration cannot corrupt
// the walk.
//
// Each add creates a fresh entry; the returned unsubscribe capability is
// stable and idempotent.
type subscribers[T any] struct {
	mu      sync.Mutex
	entries []*subscriberEntry[T]
}

type subscriberEntry[T any] struct {
	fn T
}

func newSubscribers[T any]() *subscribers[T] {
	return &subscribers[T]{}
}

// add appends fn and returns its unsubscribe capability.
func (s *subscribers[T]) add(fn T) func() {
	e := &subscriberEntry[T]{fn: fn}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(e) })
	}
}

func (s *subscribers[T]) remove(e *subscriberEntry[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.entries {
		if entry == e {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// snapshot returns the callbacks in subscription order. The returned
// slice is private to the caller.
func (s *subscribers[T]) snapshot() []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]T, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.fn
	}
	return out
}

// len returns the current number of subscribers. Used by tests.
func (s *subscribers[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
