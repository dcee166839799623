package store

import (
	"context"
	"strings"
)

// Getters provides read access to registered getter values, optionally
// scoped to a namespace. Keys are the qualified getter keys with the
// namespace prefix stripped; each access re-reads the corresponding root
// getter, so values are never stale and never eagerly evaluated.
type Getters struct {
	store     *Store
	namespace string

	// noLock marks a view handed to a getter function already running
	// under the store's read lock; taking it again could deadlock
	// against a queued writer.
	noLock bool
}

// Get returns the named getter's current value, nil when unregistered.
func (g Getters) Get(name string) any {
	v, _ := g.Lookup(name)
	return v
}

// Lookup returns the named getter's current value and whether the name
// is registered under this view's namespace.
func (g Getters) Lookup(name string) (any, bool) {
	return g.store.getterValue(g.namespace+name, g.noLock)
}

// Has reports whether name is registered under this view's namespace.
func (g Getters) Has(name string) bool {
	_, ok := g.Lookup(name)
	return ok
}

// Keys returns the getter names visible through this view, in
// registration order, with the namespace prefix stripped.
func (g Getters) Keys() []string {
	return g.store.namespaceGetterKeys(g.namespace)
}

// localContext gives a module the illusion of owning an isolated
// dispatch/commit/getters/state surface while routing through the root.
//
// State is always recomputed by walking path from the current root, never
// cached, so the context stays correct across ReplaceState and registry
// rebuilds.
type localContext struct {
	store     *Store
	namespace string
	path      []string
}

func (l *localContext) state() State {
	return stateAt(l.store.state, l.path)
}

func (l *localContext) getters(noLock bool) Getters {
	return Getters{store: l.store, namespace: l.namespace, noLock: noLock}
}

// qualify resolves a locally addressed type against this module's
// namespace. The second return is false when the qualified type is not
// registered in the given registry check.
func (l *localContext) qualify(typ string, opts callOptions, known func(string) bool) (string, bool) {
	if l.namespace == "" || opts.root {
		return typ, true
	}
	qualified := l.namespace + typ
	if !known(qualified) {
		return qualified, false
	}
	return qualified, true
}

// CallOption adjusts how a local commit or dispatch resolves its type.
type CallOption func(*callOptions)

type callOptions struct {
	root bool
}

// WithRoot addresses the type against the root registry instead of
// qualifying it with the module's namespace.
func WithRoot() CallOption {
	return func(o *callOptions) { o.root = true }
}

func applyCallOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ActionContext is the view handed to an action handler: dispatch,
// commit, getters, and state scoped to the handler's module, plus the
// root state and getters and the dispatch's context.Context.
type ActionContext struct {
	ctx   context.Context
	store *Store
	local *localContext
	token string
}

// Context returns the context the dispatch was started with.
func (c *ActionContext) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Token returns the correlation token of the dispatch chain.
func (c *ActionContext) Token() string {
	return c.token
}

// Commit commits a mutation addressed against this module's namespace.
// An unknown qualified type is logged and performs no mutation.
func (c *ActionContext) Commit(typ string, payload any, opts ...CallOption) {
	o := applyCallOptions(opts)
	qualified, ok := c.local.qualify(typ, o, c.store.hasMutation)
	if !ok {
		c.store.logger.Error("unknown local mutation type",
			"type", typ,
			"namespace", c.local.namespace,
		)
		return
	}
	c.store.CommitMutation(Mutation{Type: qualified, Payload: payload})
}

// Dispatch dispatches an action addressed against this module's
// namespace, inheriting the parent dispatch's context and token. An
// unknown qualified type is logged and returns a no-op value.
func (c *ActionContext) Dispatch(typ string, payload any, opts ...CallOption) (any, error) {
	o := applyCallOptions(opts)
	qualified, ok := c.local.qualify(typ, o, c.store.hasAction)
	if !ok {
		c.store.logger.Error("unknown local action type",
			"type", typ,
			"namespace", c.local.namespace,
		)
		return nil, nil
	}
	return c.store.DispatchAction(c.Context(), ActionEvent{
		Type:    qualified,
		Payload: payload,
		Token:   c.token,
	})
}

// State returns this module's state slice, resolved against the current
// root state.
func (c *ActionContext) State() State {
	c.store.stateMu.RLock()
	defer c.store.stateMu.RUnlock()
	return c.local.state()
}

// RootState returns the current root state tree.
func (c *ActionContext) RootState() State {
	return c.store.State()
}

// Getters returns the getter view scoped to this module's namespace.
func (c *ActionContext) Getters() Getters {
	return c.local.getters(false)
}

// RootGetters returns the unscoped getter view.
func (c *ActionContext) RootGetters() Getters {
	return Getters{store: c.store}
}

// Namespace returns this module's namespace, "" for an unnamespaced
// module.
func (c *ActionContext) Namespace() string {
	return c.local.namespace
}

// namespaceGetterKeys returns the namespace-stripped getter keys visible
// under ns, memoized per namespace and discarded on every registry
// rebuild.
func (s *Store) namespaceGetterKeys(ns string) []string {
	s.gkMu.Lock()
	defer s.gkMu.Unlock()

	if keys, ok := s.nsKeys[ns]; ok {
		return keys
	}
	var keys []string
	for _, k := range s.getterKeys {
		if strings.HasPrefix(k, ns) {
			keys = append(keys, strings.TrimPrefix(k, ns))
		}
	}
	s.nsKeys[ns] = keys
	return keys
}
