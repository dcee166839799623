package store

import (
	"context"
	"strings"
)

// boundMutation is a mutation handler wrapped with its module's local
// context: it resolves the module's state slice at call time.
type boundMutation func(payload any)

// boundAction is an action handler wrapped with its module's local
// context; it builds the handler's ActionContext from the dispatch
// context and event.
type boundAction func(ctx context.Context, ev ActionEvent) (any, error)

// boundGetter is a getter wrapped with its module's local state and
// getter views. Evaluated only while the store's read lock is held.
type boundGetter func() any

// resetStore discards the registry, namespace map, and local getter
// views, then re-installs the whole tree. Module state survives: the hot
// flag skips state grafting entirely, and a cold install grafts only
// slices that are not already present.
//
// Caller must hold commitMu.
func (s *Store) resetStore(hot bool) {
	s.withCommit(func() {
		s.mutations = make(map[string][]boundMutation)
		s.actions = make(map[string][]boundAction)
		s.getters = make(map[string]boundGetter)
		s.namespaces = make(map[string]*Module)
		s.resetGetterKeys()
		s.installModule(nil, s.tree.root, hot)
	})
	s.version.next()
	s.notifyRebuild()
}

func (s *Store) resetGetterKeys() {
	s.gkMu.Lock()
	s.getterKeys = nil
	s.nsKeys = make(map[string][]string)
	s.gkMu.Unlock()
}

func (s *Store) notifyRebuild() {
	for _, fn := range s.rebuildSubs.snapshot() {
		s.safeNotify("rebuild", fn)
	}
}

// installModule is the recursive pre-order install walk: it records the
// module's namespace, grafts its state slice into the parent state, binds
// a local context, registers every handler under its qualified type, and
// recurses into children in insertion order.
//
// Caller must hold the state write lock with the committing guard set
// (withCommit), either directly or via resetStore.
func (s *Store) installModule(path []string, m *Module, hot bool) {
	ns := s.tree.getNamespace(path)

	if m.Namespaced() && ns != "" {
		if existing, ok := s.namespaces[ns]; ok && existing != m {
			// Log and keep the first registrant. Deliberately not a
			// hard error; see DESIGN.md.
			s.logger.Error("duplicate namespace; keeping first registrant",
				"code", string(ErrCodeDuplicateNamespace),
				"namespace", ns,
				"path", strings.Join(path, "."),
			)
		} else {
			s.namespaces[ns] = m
		}
	}

	if len(path) > 0 && !hot {
		s.graftState(path, m)
	}

	local := &localContext{
		store:     s,
		namespace: ns,
		path:      append([]string(nil), path...),
	}

	for _, key := range sortedKeys(m.raw.Mutations) {
		s.registerMutation(ns+key, m.raw.Mutations[key], local)
	}
	for _, key := range sortedKeys(m.raw.Actions) {
		a := m.raw.Actions[key]
		typ := ns + key
		if a.Root {
			typ = key
		}
		s.registerAction(typ, a.Handler, local)
	}
	for _, key := range sortedKeys(m.raw.Getters) {
		s.registerGetter(ns+key, m.raw.Getters[key], local)
	}

	childPath := append([]string(nil), path...)
	m.forEachChild(func(key string, child *Module) {
		s.installModule(append(childPath, key), child, hot)
	})
}

// graftState attaches the module's state slice under its local key in the
// parent slice, but only when the key is not already taken: an existing
// value wins, which is what preserves state across rebuilds and
// re-registration with PreserveState.
func (s *Store) graftState(path []string, m *Module) {
	parent := stateAt(s.state, path[:len(path)-1])
	if parent == nil {
		return
	}
	key := path[len(path)-1]

	existing, ok := parent[key]
	if !ok {
		parent[key] = m.state
		return
	}
	if _, isSlice := existing.(State); !isSlice {
		s.logger.Warn("module key collides with an existing state field; keeping existing value",
			"key", key,
			"path", strings.Join(path, "."),
		)
	}
}

// registerMutation appends: multiple modules may register the same
// qualified type and all handlers run in registration order.
func (s *Store) registerMutation(typ string, fn MutationFunc, local *localContext) {
	s.mutations[typ] = append(s.mutations[typ], func(payload any) {
		fn(local.state(), payload)
	})
}

// registerAction appends, like registerMutation.
func (s *Store) registerAction(typ string, fn ActionFunc, local *localContext) {
	s.actions[typ] = append(s.actions[typ], func(ctx context.Context, ev ActionEvent) (any, error) {
		c := &ActionContext{ctx: ctx, store: s, local: local, token: ev.Token}
		return fn(c, ev.Payload)
	})
}

// registerGetter rejects a duplicate qualified key: the first registrant
// wins and the collision is logged, not fatal.
func (s *Store) registerGetter(typ string, fn GetterFunc, local *localContext) {
	if _, ok := s.getters[typ]; ok {
		s.logger.Error("duplicate getter key; keeping first registrant",
			"type", typ,
		)
		return
	}
	s.getters[typ] = func() any {
		return fn(
			local.state(),
			local.getters(true),
			s.state,
			Getters{store: s, noLock: true},
		)
	}

	s.gkMu.Lock()
	s.getterKeys = append(s.getterKeys, typ)
	s.nsKeys = make(map[string][]string)
	s.gkMu.Unlock()
}

// getterValue evaluates the getter registered under typ. The locked form
// is used by getter functions already running under the read lock.
func (s *Store) getterValue(typ string, locked bool) (any, bool) {
	if !locked {
		s.stateMu.RLock()
		defer s.stateMu.RUnlock()
	}
	g, ok := s.getters[typ]
	if !ok {
		return nil, false
	}
	return g(), true
}

func (s *Store) hasMutation(typ string) bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	_, ok := s.mutations[typ]
	return ok
}

func (s *Store) hasAction(typ string) bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	_, ok := s.actions[typ]
	return ok
}
