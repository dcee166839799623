package store

import (
	"log/slog"
	"strings"
)

// moduleTree builds and validates the module tree from nested raw
// configuration, resolves paths to nodes, and supports structural
// mutation for hot reload.
//
// The tree is not internally synchronized; the Store serializes all
// structural mutation behind its commit mutex.
type moduleTree struct {
	root   *Module
	logger *slog.Logger
}

func newModuleTree(cfg *ModuleConfig, logger *slog.Logger) (*moduleTree, error) {
	t := &moduleTree{logger: logger}
	if err := t.register(nil, cfg, false); err != nil {
		return nil, err
	}
	return t, nil
}

// get resolves a path to a module, nil when any segment is missing.
// The empty path resolves to the root.
func (t *moduleTree) get(path []string) *Module {
	m := t.root
	for _, key := range path {
		if m == nil {
			return nil
		}
		m = m.child(key)
	}
	return m
}

// isRegistered reports whether every segment of path resolves to an
// existing module.
func (t *moduleTree) isRegistered(path []string) bool {
	return t.get(path) != nil
}

// getNamespace walks root to path accumulating each module's own
// namespace contribution. Returns "" for an all-unnamespaced path.
func (t *moduleTree) getNamespace(path []string) string {
	var ns strings.Builder
	m := t.root
	for _, key := range path {
		m = m.child(key)
		if m == nil {
			break
		}
		if m.Namespaced() {
			ns.WriteString(key)
			ns.WriteByte('/')
		}
	}
	return ns.String()
}

// register creates a Module from cfg at path, replacing (not merging)
// any existing leaf. Nested definitions register recursively in sorted
// key order. The parent must already exist.
//
// Every module definition is validated before any of its handlers can
// run; a malformed definition fails the whole register call.
func (t *moduleTree) register(path []string, cfg *ModuleConfig, runtime bool) error {
	if err := validateConfig(path, cfg); err != nil {
		return err
	}

	m, err := newModule(cfg, runtime)
	if err != nil {
		return newConfigError(ErrCodeInvalidDefinition, path, "%s", err.Error())
	}

	if len(path) == 0 {
		t.root = m
	} else {
		parent := t.get(path[:len(path)-1])
		if parent == nil {
			return newConfigError(ErrCodeMissingParent, path,
				"parent module does not exist")
		}
		parent.addChild(path[len(path)-1], m)
	}

	for _, key := range sortedKeys(cfg.Modules) {
		childPath := append(append([]string(nil), path...), key)
		if err := t.register(childPath, cfg.Modules[key], runtime); err != nil {
			return err
		}
	}
	return nil
}

// unregister removes the leaf module at path from its parent. An
// unresolved path is a silent no-op; removing a module from the static
// configuration is refused with a ConfigError.
//
// The second return reports whether a module was actually removed.
func (t *moduleTree) unregister(path []string) (bool, error) {
	if len(path) == 0 {
		return false, newConfigError(ErrCodeStaticUnregister, path,
			"cannot unregister the root module")
	}

	parent := t.get(path[:len(path)-1])
	if parent == nil {
		return false, nil
	}
	key := path[len(path)-1]
	child := parent.child(key)
	if child == nil {
		return false, nil
	}
	if !child.runtime {
		return false, newConfigError(ErrCodeStaticUnregister, path,
			"module is part of the static configuration")
	}

	parent.removeChild(key)
	return true, nil
}

// update recursively merges updated function bodies and namespaced flags
// into existing nodes for matching paths. It never adds or removes
// modules: paths present only in the new definition are logged and
// skipped, and modules absent from it are left as-is.
func (t *moduleTree) update(cfg *ModuleConfig) error {
	return t.updateModule(nil, t.root, cfg)
}

func (t *moduleTree) updateModule(path []string, target *Module, cfg *ModuleConfig) error {
	if err := validateConfig(path, cfg); err != nil {
		return err
	}
	target.update(cfg)

	for _, key := range sortedKeys(cfg.Modules) {
		child := target.child(key)
		if child == nil {
			t.logger.Warn("hot update cannot add a module; register it instead",
				"path", strings.Join(append(append([]string(nil), path...), key), "."),
			)
			continue
		}
		childPath := append(append([]string(nil), path...), key)
		if err := t.updateModule(childPath, child, cfg.Modules[key]); err != nil {
			return err
		}
	}
	return nil
}

// validateConfig checks one module definition: handler maps must hold
// non-nil functions. Violations fail fast with a descriptive ConfigError
// before any handler ever runs.
func validateConfig(path []string, cfg *ModuleConfig) error {
	if cfg == nil {
		return newConfigError(ErrCodeInvalidDefinition, path, "nil module definition")
	}
	for name, fn := range cfg.Mutations {
		if fn == nil {
			return newConfigError(ErrCodeInvalidDefinition, path,
				"mutations.%s should be a function but is nil", name)
		}
	}
	for name, a := range cfg.Actions {
		if a.Handler == nil {
			return newConfigError(ErrCodeInvalidDefinition, path,
				"actions.%s should declare a handler but is nil", name)
		}
	}
	for name, g := range cfg.Getters {
		if g == nil {
			return newConfigError(ErrCodeInvalidDefinition, path,
				"getters.%s should be a function but is nil", name)
		}
	}
	return nil
}

// stateAt walks the root state tree along path. Returns nil when any
// segment is missing or holds something other than a nested State.
func stateAt(root State, path []string) State {
	s := root
	for _, key := range path {
		child, ok := s[key].(State)
		if !ok {
			return nil
		}
		s = child
	}
	return s
}
