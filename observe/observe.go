// Package observe is the reactive-binding adapter over a store: it owns
// lazy, memoized computation of getter values and re-evaluates them only
// when a committed write actually happened.
//
// The core publishes a logical version (bumped on every commit, state
// replacement, and registry rebuild) and a rebuild hook. The adapter
// caches computed getter values keyed on the version — a dirty-flag plus
// recompute-on-read scheme — and tears its cache down when the registry
// is rebuilt, so hot updates and module registration re-derive the
// computed set.
//
// In strict mode the adapter doubles as the advisory mutation-guard
// watcher: every read re-checks the store's state fingerprint, reporting
// state that changed outside a commit.
package observe

import (
	"sync"

	"github.com/roark/stately/store"
)

// Adapter caches computed getter values for one store.
//
// Thread-safety: safe for concurrent use; reads of the same getter at
// the same version share a single computation only opportunistically
// (concurrent first reads may both compute).
type Adapter struct {
	store *store.Store

	mu      sync.Mutex
	version int64
	values  map[string]any

	unsubRebuild func()
}

// New builds an adapter bound to st and subscribes it to registry
// rebuilds. Call Close when the adapter is no longer needed.
func New(st *store.Store) *Adapter {
	a := &Adapter{
		store:  st,
		values: make(map[string]any),
	}
	a.unsubRebuild = st.SubscribeRebuild(a.invalidate)
	return a
}

// Close detaches the adapter from the store.
func (a *Adapter) Close() {
	if a.unsubRebuild != nil {
		a.unsubRebuild()
		a.unsubRebuild = nil
	}
}

// Get returns the named getter's value, memoized per store version. The
// second return is false when the name is not registered.
func (a *Adapter) Get(name string) (any, bool) {
	if a.store.Strict() {
		a.store.CheckIntegrity()
	}

	v := a.store.Version()

	a.mu.Lock()
	if a.version != v {
		a.values = make(map[string]any)
		a.version = v
	}
	if cached, ok := a.values[name]; ok {
		a.mu.Unlock()
		return cached, true
	}
	a.mu.Unlock()

	val, ok := a.store.Getter(name)
	if !ok {
		return nil, false
	}

	a.mu.Lock()
	if a.version == v {
		a.values[name] = val
	}
	a.mu.Unlock()
	return val, true
}

// Keys returns every qualified getter key the store currently exposes.
func (a *Adapter) Keys() []string {
	return a.store.GetterNames()
}

// Watch observes the named getter across commits, invoking cb with the
// old and new values when it changes. Returns an unsubscribe capability.
func (a *Adapter) Watch(name string, cb func(oldVal, newVal any)) func() {
	return a.store.Watch(func(_ store.State, g store.Getters) any {
		return g.Get(name)
	}, cb)
}

// invalidate discards the cache; the next read recomputes against the
// rebuilt registry.
func (a *Adapter) invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values = make(map[string]any)
	a.version = -1
}
