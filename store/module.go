package store

import (
	"fmt"
	"sort"
)

// Module is a node in the module tree. It owns a state slice created
// exactly once at construction and a set of insertion-ordered children.
//
// INVARIANT: a module's state is never replaced after construction; it is
// mutated in place by committed mutations, or superseded wholesale in the
// root state tree by ReplaceState.
type Module struct {
	raw      ModuleConfig // definition snapshot; Modules field unused after tree build
	runtime  bool
	state    State
	children map[string]*Module
	order    []string
}

func newModule(cfg *ModuleConfig, runtime bool) (*Module, error) {
	state, err := initialState(cfg.State)
	if err != nil {
		return nil, err
	}
	return &Module{
		raw:      *cfg,
		runtime:  runtime,
		state:    state,
		children: make(map[string]*Module),
	}, nil
}

// initialState resolves the State field of a raw definition: a literal
// State, a zero-argument factory invoked exactly once, or nil for an
// empty slice.
func initialState(v any) (State, error) {
	switch s := v.(type) {
	case nil:
		return State{}, nil
	case State:
		return s, nil
	case func() State:
		return s(), nil
	default:
		return nil, fmt.Errorf("state must be a State or func() State, got %T", v)
	}
}

// Namespaced reports whether this module prefixes its registered types.
func (m *Module) Namespaced() bool {
	return m.raw.Namespaced
}

// Runtime reports whether this module was registered after construction
// (as opposed to being part of the static configuration).
func (m *Module) Runtime() bool {
	return m.runtime
}

func (m *Module) child(key string) *Module {
	return m.children[key]
}

func (m *Module) hasChild(key string) bool {
	_, ok := m.children[key]
	return ok
}

// addChild inserts or replaces a child. A replaced child keeps its
// position in the insertion order; a new child appends.
func (m *Module) addChild(key string, child *Module) {
	if _, ok := m.children[key]; !ok {
		m.order = append(m.order, key)
	}
	m.children[key] = child
}

func (m *Module) removeChild(key string) {
	if _, ok := m.children[key]; !ok {
		return
	}
	delete(m.children, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// forEachChild visits children in insertion order. Registration order of
// handlers depends on this order being stable.
func (m *Module) forEachChild(fn func(key string, child *Module)) {
	for _, key := range m.order {
		fn(key, m.children[key])
	}
}

// update merges new mutation/action/getter function bodies and the
// Namespaced flag into this node. State and child structure are left
// untouched; maps absent from cfg keep their current definitions.
func (m *Module) update(cfg *ModuleConfig) {
	m.raw.Namespaced = cfg.Namespaced
	if cfg.Mutations != nil {
		m.raw.Mutations = cfg.Mutations
	}
	if cfg.Actions != nil {
		m.raw.Actions = cfg.Actions
	}
	if cfg.Getters != nil {
		m.raw.Getters = cfg.Getters
	}
}

// sortedKeys returns map keys in sorted order. Used wherever a raw
// definition map feeds registration, so install order is deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
