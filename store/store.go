package store

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Hook receives store lifecycle events. It is the optional devtools
// collaborator: when configured, dispatch rejections emit a
// EventStoreError event before the error propagates to the caller.
type Hook interface {
	Emit(event string, payload any)
}

// EventStoreError is emitted on the devtools hook when a dispatched
// action fails.
const EventStoreError = "store:error"

// Store is the composition and dispatch engine over a module tree.
// Construct with New; the zero value is not usable.
type Store struct {
	logger   *slog.Logger
	tokens   TokenGenerator
	devtools Hook
	strict   bool
	maxDepth int
	plugins  []func(*Store)

	// commitMu serializes each commit (handlers plus notification) and
	// every structural operation. stateMu guards the state tree and the
	// registry maps: write-held during sanctioned writes and installs,
	// read-held during getter evaluation and scoped state reads.
	commitMu   sync.Mutex
	stateMu    sync.RWMutex
	committing atomic.Bool

	state State
	tree  *moduleTree

	mutations  map[string][]boundMutation
	actions    map[string][]boundAction
	getters    map[string]boundGetter
	namespaces map[string]*Module

	// getter key bookkeeping for namespace-scoped views; guarded by its
	// own mutex so views can enumerate keys from inside getter bodies.
	gkMu       sync.Mutex
	getterKeys []string
	nsKeys     map[string][]string

	commitSubs  *subscribers[SubscribeFunc]
	actionSubs  *subscribers[ActionSubscriber]
	watchers    *subscribers[*watcher]
	rebuildSubs *subscribers[func()]

	version versionClock
	depth   *depthQuota

	// strict-mode fingerprint of the last sanctioned write
	fpMu          sync.Mutex
	fingerprint   [32]byte
	fingerprintOK bool
}

// Option configures a Store at construction.
type Option func(*Store)

// WithStrict enables strict mode: the store fingerprints the state tree
// after every sanctioned write and reports (never blocks) writes that
// happened outside a commit. Fingerprinting serializes the whole tree on
// every commit; do not enable in production.
func WithStrict() Option {
	return func(s *Store) { s.strict = true }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithDevtools attaches the optional devtools hook.
func WithDevtools(h Hook) Option {
	return func(s *Store) { s.devtools = h }
}

// WithTokenGenerator replaces the dispatch token generator. Tests use
// NewFixedGenerator for deterministic traces.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Store) { s.tokens = g }
}

// WithMaxDepth sets the dispatch nesting quota per correlation token.
// Default: DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(s *Store) { s.maxDepth = depth }
}

// WithPlugin appends a plugin applied once, in order, after the initial
// install. Plugins typically subscribe to commits or actions.
func WithPlugin(fn func(*Store)) Option {
	return func(s *Store) { s.plugins = append(s.plugins, fn) }
}

// New builds a store from the root module definition. The whole nested
// configuration is validated before any handler can run; a malformed
// definition fails construction with a ConfigError.
func New(cfg *ModuleConfig, opts ...Option) (*Store, error) {
	s := &Store{
		logger:      slog.Default(),
		tokens:      UUIDv7Generator{},
		maxDepth:    DefaultMaxDepth,
		commitSubs:  newSubscribers[SubscribeFunc](),
		actionSubs:  newSubscribers[ActionSubscriber](),
		watchers:    newSubscribers[*watcher](),
		rebuildSubs: newSubscribers[func()](),
		nsKeys:      make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	tree, err := newModuleTree(cfg, s.logger)
	if err != nil {
		return nil, err
	}
	s.tree = tree
	s.state = tree.root.state
	s.depth = newDepthQuota(s.maxDepth)

	s.commitMu.Lock()
	s.resetStore(false)
	s.commitMu.Unlock()

	for _, plugin := range s.plugins {
		plugin(s)
	}
	return s, nil
}

// withCommit runs fn as a sanctioned write: state write lock held,
// committing guard set, fingerprint refreshed afterwards in strict mode.
func (s *Store) withCommit(fn func()) {
	s.stateMu.Lock()
	s.committing.Store(true)
	fn()
	s.committing.Store(false)
	s.refreshFingerprintLocked()
	s.stateMu.Unlock()
}

// Commit runs every mutation handler registered for typ synchronously,
// in registration order, then notifies commit subscribers. An unknown
// type is logged and has no effect.
func (s *Store) Commit(typ string, payload any) {
	s.CommitMutation(Mutation{Type: typ, Payload: payload})
}

// CommitMutation is the object form of Commit.
func (s *Store) CommitMutation(m Mutation) {
	if m.Type == "" {
		s.logger.Error("commit requires a non-empty type",
			"code", string(ErrCodeInvalidType),
		)
		return
	}
	if s.strict {
		s.CheckIntegrity()
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.stateMu.RLock()
	handlers := s.mutations[m.Type]
	s.stateMu.RUnlock()

	if len(handlers) == 0 {
		s.logger.Error("unknown mutation type", "type", m.Type)
		return
	}

	s.withCommit(func() {
		for _, h := range handlers {
			h(m.Payload)
		}
	})
	s.version.next()

	for _, fn := range s.commitSubs.snapshot() {
		s.safeNotify("subscribe", func() { fn(m, s.State()) })
	}
	s.notifyWatchers()
}

// Dispatch runs every action handler registered for typ. One handler
// runs inline and its value is the result; several handlers start
// concurrently before any is awaited, the result is their values in
// registration order, and the first error wins and cancels the rest via
// the group context. An unknown type is logged and returns (nil, nil).
func (s *Store) Dispatch(ctx context.Context, typ string, payload any) (any, error) {
	return s.DispatchAction(ctx, ActionEvent{Type: typ, Payload: payload})
}

// DispatchAction is the object form of Dispatch. An empty Token is
// stamped from the store's TokenGenerator; nested dispatches made
// through an ActionContext inherit their parent's token.
func (s *Store) DispatchAction(ctx context.Context, ev ActionEvent) (any, error) {
	if ev.Type == "" {
		return nil, newConfigError(ErrCodeInvalidType, nil, "dispatch requires a non-empty type")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if s.strict {
		s.CheckIntegrity()
	}

	s.stateMu.RLock()
	handlers := s.actions[ev.Type]
	s.stateMu.RUnlock()

	if len(handlers) == 0 {
		s.logger.Error("unknown action type", "type", ev.Type)
		return nil, nil
	}

	if ev.Token == "" {
		ev.Token = s.tokens.Generate()
	}
	if err := s.depth.enter(ev.Type, ev.Token); err != nil {
		s.logger.Error("dispatch depth quota exceeded",
			"type", ev.Type,
			"token", ev.Token,
			"limit", s.maxDepth,
		)
		return nil, err
	}
	defer s.depth.exit(ev.Token)

	stateAtDispatch := s.State()

	for _, sub := range s.actionSubs.snapshot() {
		if sub.Before != nil {
			s.safeNotify("action before", func() { sub.Before(ev, stateAtDispatch) })
		}
	}

	result, err := s.runHandlers(ctx, ev, handlers)
	if err != nil {
		for _, sub := range s.actionSubs.snapshot() {
			if sub.Error != nil {
				s.safeNotify("action error", func() { sub.Error(ev, stateAtDispatch, err) })
			}
		}
		if s.devtools != nil {
			s.devtools.Emit(EventStoreError, map[string]any{
				"type":  ev.Type,
				"token": ev.Token,
				"error": err.Error(),
			})
		}
		return nil, err
	}

	for _, sub := range s.actionSubs.snapshot() {
		if sub.After != nil {
			s.safeNotify("action after", func() { sub.After(ev, s.State()) })
		}
	}
	return result, nil
}

func (s *Store) runHandlers(ctx context.Context, ev ActionEvent, handlers []boundAction) (any, error) {
	if len(handlers) == 1 {
		return handlers[0](ctx, ev)
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make([]any, len(handlers))
	for i, h := range handlers {
		i, h := i, h
		g.Go(func() error {
			v, err := h(gctx, ev)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Subscribe registers a commit subscriber and returns its unsubscribe
// capability. Unsubscribing during the subscriber's own notification is
// safe and prevents any further calls.
func (s *Store) Subscribe(fn SubscribeFunc) func() {
	return s.commitSubs.add(fn)
}

// SubscribeAction registers an action subscriber.
func (s *Store) SubscribeAction(sub ActionSubscriber) func() {
	return s.actionSubs.add(sub)
}

// SubscribeRebuild registers a callback invoked whenever the registry and
// local contexts are rebuilt. The reactive-binding adapter uses it to
// tear down cached computed values.
func (s *Store) SubscribeRebuild(fn func()) func() {
	return s.rebuildSubs.add(fn)
}

type watcher struct {
	derive func(state State, getters Getters) any
	cb     func(oldVal, newVal any)
	old    any
}

// Watch evaluates derive after every commit and invokes cb when the
// derived value changes (reflect.DeepEqual). Returns an unsubscribe
// capability.
func (s *Store) Watch(derive func(state State, getters Getters) any, cb func(oldVal, newVal any)) func() {
	w := &watcher{derive: derive, cb: cb}
	w.old = s.evalWatcher(w)
	return s.watchers.add(w)
}

func (s *Store) evalWatcher(w *watcher) any {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return w.derive(s.state, Getters{store: s, noLock: true})
}

// notifyWatchers runs under commitMu, so watcher old values never see
// interleaved commits.
func (s *Store) notifyWatchers() {
	for _, w := range s.watchers.snapshot() {
		newVal := s.evalWatcher(w)
		if reflect.DeepEqual(w.old, newVal) {
			continue
		}
		oldVal := w.old
		w.old = newVal
		s.safeNotify("watch", func() { w.cb(oldVal, newVal) })
	}
}

// safeNotify runs a subscriber callback, converting a panic into a log
// line so observers can never interrupt the commit or dispatch flow.
func (s *Store) safeNotify(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber panicked",
				"kind", kind,
				"panic", r,
			)
		}
	}()
	fn()
}

// State returns the current root state tree. The tree is live: it is
// only written inside commits, and callers retaining it across commits
// coordinate their own reads.
func (s *Store) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Getter evaluates the getter registered under the qualified name.
func (s *Store) Getter(name string) (any, bool) {
	return s.getterValue(name, false)
}

// Getters returns the unscoped getter view.
func (s *Store) Getters() Getters {
	return Getters{store: s}
}

// GetterNames returns every registered qualified getter key in
// registration order.
func (s *Store) GetterNames() []string {
	s.gkMu.Lock()
	defer s.gkMu.Unlock()
	return append([]string(nil), s.getterKeys...)
}

// Version returns the logical version of the store, bumped by every
// commit, state replacement, and registry rebuild. Observers key
// memoized getter values on it.
func (s *Store) Version() int64 {
	return s.version.current()
}

// Strict reports whether strict mode is enabled.
func (s *Store) Strict() bool {
	return s.strict
}

// Committing reports whether a sanctioned write is in progress. Exposed
// for the advisory mutation-guard watcher.
func (s *Store) Committing() bool {
	return s.committing.Load()
}

// ReplaceState swaps the entire root state tree under the committing
// guard. Registry and local contexts are untouched; local state views
// resolve against the new tree on their next read.
func (s *Store) ReplaceState(state State) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.withCommit(func() {
		s.state = state
	})
	s.version.next()
}

// RegisterOption configures RegisterModule.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	preserveState bool
}

// PreserveState keeps a state value already present at the target path,
// discarding the new module's own initial state. Enables
// reload-without-data-loss.
func PreserveState() RegisterOption {
	return func(o *registerOptions) { o.preserveState = true }
}

// RegisterModule adds a module at path and installs just the new
// subtree. The parent module must already exist.
func (s *Store) RegisterModule(path []string, cfg *ModuleConfig, opts ...RegisterOption) error {
	if len(path) == 0 {
		return newConfigError(ErrCodeInvalidDefinition, path, "cannot register the root module")
	}
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if err := s.tree.register(path, cfg, true); err != nil {
		return err
	}

	s.withCommit(func() {
		if !o.preserveState {
			s.removeStateAt(path)
		}
		s.installModule(path, s.tree.get(path), false)
	})
	s.version.next()
	s.notifyRebuild()
	return nil
}

// UnregisterModule removes the module at path, deletes its state field,
// and rebuilds the registry. Removing a static module fails with a
// ConfigError; an unresolved path is a no-op.
func (s *Store) UnregisterModule(path []string) error {
	if len(path) == 0 {
		return newConfigError(ErrCodeStaticUnregister, path, "cannot unregister the root module")
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	removed, err := s.tree.unregister(path)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}

	s.withCommit(func() {
		s.removeStateAt(path)
	})
	s.resetStore(false)
	return nil
}

// removeStateAt deletes the state field at path. Caller must hold the
// state write lock (withCommit).
func (s *Store) removeStateAt(path []string) {
	parent := stateAt(s.state, path[:len(path)-1])
	if parent == nil {
		return
	}
	delete(parent, path[len(path)-1])
}

// HasModule reports whether a module is registered at path.
func (s *Store) HasModule(path []string) bool {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	return s.tree.isRegistered(path)
}

// HotUpdate swaps mutation/action/getter function bodies in place for
// matching paths and rebuilds the registry. State values and subscriber
// registrations survive; the old function bodies are never invoked
// again.
func (s *Store) HotUpdate(cfg *ModuleConfig) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if err := s.tree.update(cfg); err != nil {
		return err
	}
	s.resetStore(true)
	return nil
}
