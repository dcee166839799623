package devtools

import (
	"context"
	"sync"
)

// QueuedHook buffers emitted events and forwards them to a downstream
// hook from a single drain goroutine, so a slow devtools consumer never
// blocks store notification.
//
// The queue is unbounded: cascading dispatches may emit arbitrarily many
// events without blocking the store. Emission order is preserved.
//
// Thread-safety model:
//   - Emit(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type QueuedHook struct {
	sink interface {
		Emit(event string, payload any)
	}

	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // signals event availability (buffered, size 1)
}

// NewQueuedHook wraps sink with an unbounded forwarding queue. Call Run
// to start draining.
func NewQueuedHook(sink interface {
	Emit(event string, payload any)
}) *QueuedHook {
	return &QueuedHook{
		sink:   sink,
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Emit enqueues an event. Events emitted after Close are dropped.
func (q *QueuedHook) Emit(name string, payload any) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.events = append(q.events, Event{Name: name, Payload: payload})

	// Non-blocking signal; a buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Run drains the queue into the sink until the context is cancelled or
// Close is called and the queue is empty. Blocks; run it on its own
// goroutine.
func (q *QueuedHook) Run(ctx context.Context) error {
	for {
		if ev, ok := q.tryDequeue(); ok {
			q.sink.Emit(ev.Name, ev.Payload)
			continue
		}

		q.mu.Lock()
		done := q.closed && len(q.events) == 0
		q.mu.Unlock()
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.signal:
		}
	}
}

// Close stops the queue. Run returns once the remaining events drain.
func (q *QueuedHook) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Len returns the number of events waiting to drain.
func (q *QueuedHook) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

func (q *QueuedHook) tryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	ev := q.events[0]

	// Nil out the slot so the payload can be collected before the
	// backing array is reallocated.
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return ev, true
}
