// Package devtools provides implementations of the store's devtools hook:
// a Recorder for tests and a QueuedHook that decouples event emission
// from commit/dispatch notification.
package devtools

import (
	"sync"
)

// Event is one emitted devtools event.
type Event struct {
	Name    string
	Payload any
}

// Recorder captures emitted events in order. It satisfies store.Hook and
// is intended for tests and debugging.
//
// Thread-safety: safe for concurrent use via internal mutex.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements the hook interface.
func (r *Recorder) Emit(name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: name, Payload: payload})
}

// Events returns a copy of the captured events in emission order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Reset discards captured events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
