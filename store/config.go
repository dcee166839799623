package store

// State is a module's slice of the application state tree. Child module
// slices nest under the child's local key, so the root State is the
// whole tree.
type State = map[string]any

// MutationFunc is a synchronous state transition. It receives the owning
// module's state slice and must not return a value or touch state outside
// its slice; strict mode reports violations after the fact.
type MutationFunc func(s State, payload any)

// ActionFunc is an asynchronous orchestration function. It may commit
// mutations and dispatch further actions through its context, and may
// block; the returned value becomes the dispatch result.
type ActionFunc func(c *ActionContext, payload any) (any, error)

// GetterFunc derives a read-only value. It receives the owning module's
// state slice and getters plus the root state and getters.
type GetterFunc func(s State, getters Getters, root State, rootGetters Getters) any

// Action pairs an action handler with its registration mode.
type Action struct {
	Handler ActionFunc

	// Root registers the action under its bare key instead of the
	// module's namespace, letting a nested module contribute a
	// globally addressable action.
	Root bool
}

// Do wraps a bare handler in an Action registered under the module's
// namespace. Shorthand for Action{Handler: fn}.
func Do(fn ActionFunc) Action {
	return Action{Handler: fn}
}

// ModuleConfig is the raw definition of one module in the tree.
type ModuleConfig struct {
	// State is the module's initial state slice: either a State value
	// or a zero-argument func() State factory. The factory is invoked
	// exactly once, at module construction. Nil means an empty slice.
	State any

	// Namespaced prefixes this module's registered types with its local
	// key. Namespacing is opt-in per module; an unnamespaced module
	// contributes nothing to its descendants' namespace.
	Namespaced bool

	Mutations map[string]MutationFunc
	Actions   map[string]Action
	Getters   map[string]GetterFunc

	// Modules holds nested child definitions keyed by local name.
	// Children install in sorted key order so registration order is
	// deterministic.
	Modules map[string]*ModuleConfig
}

// Mutation is the record handed to commit subscribers, and the object
// form accepted by CommitMutation.
type Mutation struct {
	Type    string
	Payload any
}

// ActionEvent is the record handed to action subscribers, and the object
// form accepted by DispatchAction. Token correlates a dispatch with the
// nested dispatches it triggers; it is stamped from the store's
// TokenGenerator when empty.
type ActionEvent struct {
	Type    string
	Payload any
	Token   string
}
