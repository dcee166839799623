// Package testutil holds shared helpers for exercising a store in
// tests: deterministic tokens and a trace recorder that captures the
// ordered stream of mutations and action lifecycle events.
package testutil

import (
	"fmt"
	"sync"

	"github.com/roark/stately/store"
)

// Tokens returns a FixedGenerator preloaded with n sequential tokens
// tok-1..tok-n.
func Tokens(n int) *store.FixedGenerator {
	toks := make([]string, n)
	for i := range toks {
		toks[i] = fmt.Sprintf("tok-%d", i+1)
	}
	return store.NewFixedGenerator(toks...)
}

// TraceEvent is one observed store event.
type TraceEvent struct {
	Kind    string // "mutation", "action:before", "action:after", "action:error"
	Type    string
	Payload any
	Token   string
	Err     string
}

// Trace records store events in notification order.
type Trace struct {
	mu     sync.Mutex
	events []TraceEvent
}

// Attach subscribes the trace to st's commit and action streams and
// returns an unsubscribe func covering both.
func (t *Trace) Attach(st *store.Store) func() {
	unsubCommit := st.Subscribe(func(m store.Mutation, _ store.State) {
		t.append(TraceEvent{Kind: "mutation", Type: m.Type, Payload: m.Payload})
	})
	unsubAction := st.SubscribeAction(store.ActionSubscriber{
		Before: func(ev store.ActionEvent, _ store.State) {
			t.append(TraceEvent{Kind: "action:before", Type: ev.Type, Payload: ev.Payload, Token: ev.Token})
		},
		After: func(ev store.ActionEvent, _ store.State) {
			t.append(TraceEvent{Kind: "action:after", Type: ev.Type, Payload: ev.Payload, Token: ev.Token})
		},
		Error: func(ev store.ActionEvent, _ store.State, err error) {
			t.append(TraceEvent{Kind: "action:error", Type: ev.Type, Payload: ev.Payload, Token: ev.Token, Err: err.Error()})
		},
	})
	return func() {
		unsubCommit()
		unsubAction()
	}
}

func (t *Trace) append(ev TraceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
}

// Events returns a copy of the recorded stream.
func (t *Trace) Events() []TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEvent, len(t.events))
	copy(out, t.events)
	return out
}

// Types returns kind/type pairs, the compact shape most assertions
// want.
func (t *Trace) Types() []string {
	events := t.Events()
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Kind + " " + ev.Type
	}
	return out
}

// Reset clears the recorded stream.
func (t *Trace) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}
