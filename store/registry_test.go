package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstall_DuplicateNamespace_FirstWins(t *testing.T) {
	// Both paths map to namespace "x/": the root's own "x" child and the
	// "x" child nested under the unnamespaced "a". Install order is
	// sorted, so a.x registers first.
	cfg := &ModuleConfig{
		Modules: map[string]*ModuleConfig{
			"a": {
				Modules: map[string]*ModuleConfig{
					"x": {
						Namespaced: true,
						Getters: map[string]GetterFunc{
							"who": func(State, Getters, State, Getters) any { return "a.x" },
						},
					},
				},
			},
			"x": {
				Namespaced: true,
				Getters: map[string]GetterFunc{
					"who": func(State, Getters, State, Getters) any { return "root.x" },
				},
			},
		},
	}
	st := newTestStore(t, cfg)

	v, ok := st.Getter("x/who")
	require.True(t, ok)
	assert.Equal(t, "a.x", v, "first registrant keeps the key")
}

func TestInstall_GraftCollision_ExistingValueWins(t *testing.T) {
	cfg := &ModuleConfig{
		State: State{"cart": "not a module slice"},
		Modules: map[string]*ModuleConfig{
			"cart": {State: State{"items": []any{}}},
		},
	}
	st := newTestStore(t, cfg)

	assert.Equal(t, "not a module slice", st.State()["cart"],
		"an existing state field is never overwritten by a graft")
}

func TestRegisterModule_InstallsSubtree(t *testing.T) {
	st := newTestStore(t, shopConfig())

	err := st.RegisterModule([]string{"wishlist"}, &ModuleConfig{
		Namespaced: true,
		State:      State{"items": []any{}},
		Mutations: map[string]MutationFunc{
			"add": func(s State, payload any) {
				s["items"] = append(s["items"].([]any), payload)
			},
		},
		Getters: map[string]GetterFunc{
			"count": func(s State, _ Getters, _ State, _ Getters) any {
				return len(s["items"].([]any))
			},
		},
	})
	require.NoError(t, err)
	assert.True(t, st.HasModule([]string{"wishlist"}))

	st.Commit("wishlist/add", "book")
	v, ok := st.Getter("wishlist/count")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestRegisterModule_ExistingHandlersSurvive(t *testing.T) {
	st := newTestStore(t, shopConfig())
	st.Commit("cart/add", "apple")

	require.NoError(t, st.RegisterModule([]string{"extra"}, &ModuleConfig{}))

	cart := st.State()["cart"].(State)
	assert.Len(t, cart["items"], 1, "existing module state survives registration")

	st.Commit("cart/add", "pear")
	cart = st.State()["cart"].(State)
	assert.Len(t, cart["items"], 2, "existing handlers keep working")
}

func TestRegisterModule_RootPathRejected(t *testing.T) {
	st := newTestStore(t, shopConfig())

	err := st.RegisterModule(nil, &ModuleConfig{})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestRegisterModule_MissingParent(t *testing.T) {
	st := newTestStore(t, shopConfig())

	err := st.RegisterModule([]string{"no", "parent"}, &ModuleConfig{})
	require.Error(t, err)
	assert.True(t, IsMissingParent(err))
}

func TestRegisterModule_ReplacesInitialState(t *testing.T) {
	st := newTestStore(t, shopConfig())
	require.NoError(t, st.RegisterModule([]string{"profile"}, &ModuleConfig{
		State: State{"version": 1},
	}))
	require.NoError(t, st.RegisterModule([]string{"profile"}, &ModuleConfig{
		State: State{"version": 2},
	}))

	profile := st.State()["profile"].(State)
	assert.Equal(t, 2, profile["version"], "re-registration installs the new initial state")
}

func TestRegisterModule_PreserveState(t *testing.T) {
	st := newTestStore(t, shopConfig())
	require.NoError(t, st.RegisterModule([]string{"profile"}, &ModuleConfig{
		State: State{"version": 1},
	}))

	require.NoError(t, st.RegisterModule([]string{"profile"}, &ModuleConfig{
		State: State{"version": 2},
	}, PreserveState()))

	profile := st.State()["profile"].(State)
	assert.Equal(t, 1, profile["version"], "PreserveState keeps the value already in the tree")
}

func TestUnregisterModule(t *testing.T) {
	st := newTestStore(t, shopConfig())
	require.NoError(t, st.RegisterModule([]string{"temp"}, &ModuleConfig{
		Namespaced: true,
		State:      State{"v": 1},
		Mutations: map[string]MutationFunc{
			"set": func(s State, payload any) { s["v"] = payload },
		},
	}))
	require.True(t, st.HasModule([]string{"temp"}))

	require.NoError(t, st.UnregisterModule([]string{"temp"}))

	assert.False(t, st.HasModule([]string{"temp"}))
	_, present := st.State()["temp"]
	assert.False(t, present, "unregister deletes the module's state field")

	// The handler is gone from the registry.
	before := st.Version()
	st.Commit("temp/set", 2)
	assert.Equal(t, before, st.Version())
}

func TestUnregisterModule_StaticRefused(t *testing.T) {
	st := newTestStore(t, shopConfig())

	err := st.UnregisterModule([]string{"cart"})
	require.Error(t, err)
	assert.True(t, IsStaticUnregister(err))
	assert.True(t, st.HasModule([]string{"cart"}))
}

func TestUnregisterModule_UnresolvedPathNoOp(t *testing.T) {
	st := newTestStore(t, shopConfig())

	require.NoError(t, st.UnregisterModule([]string{"ghost"}))
}

func TestUnregisterModule_SurvivingStateIntact(t *testing.T) {
	st := newTestStore(t, shopConfig())
	require.NoError(t, st.RegisterModule([]string{"temp"}, &ModuleConfig{}))
	st.Commit("cart/add", "apple")

	require.NoError(t, st.UnregisterModule([]string{"temp"}))

	cart := st.State()["cart"].(State)
	assert.Len(t, cart["items"], 1, "rebuild grafts must not reset surviving module state")
}

func TestHotUpdate_SwapsHandlersKeepsState(t *testing.T) {
	st := newTestStore(t, shopConfig())
	st.Commit("cart/add", "apple")

	err := st.HotUpdate(&ModuleConfig{
		Modules: map[string]*ModuleConfig{
			"cart": {
				Namespaced: true,
				Mutations: map[string]MutationFunc{
					"add": func(s State, payload any) {
						// v2 handler stores wrapped entries.
						s["items"] = append(s["items"].([]any), map[string]any{"sku": payload})
					},
					"clear": func(s State, _ any) { s["items"] = []any{} },
				},
			},
		},
	})
	require.NoError(t, err)

	cart := st.State()["cart"].(State)
	require.Len(t, cart["items"], 1, "state survives the hot update")

	st.Commit("cart/add", "pear")
	cart = st.State()["cart"].(State)
	items := cart["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, map[string]any{"sku": "pear"}, items[1], "new handler body took over")
}

func TestHotUpdate_CanChangeNamespacing(t *testing.T) {
	st := newTestStore(t, shopConfig())

	err := st.HotUpdate(&ModuleConfig{
		Modules: map[string]*ModuleConfig{
			"cart": {Namespaced: false},
		},
	})
	require.NoError(t, err)

	st.Commit("add", "apple")
	cart := st.State()["cart"].(State)
	assert.Len(t, cart["items"], 1, "handlers re-register under the new namespace")

	_, ok := st.Getter("count")
	assert.True(t, ok)
	_, ok = st.Getter("cart/count")
	assert.False(t, ok)
}

func TestSubscribeRebuild_FiresOnStructuralChange(t *testing.T) {
	st := newTestStore(t, shopConfig())

	rebuilds := 0
	unsub := st.SubscribeRebuild(func() { rebuilds++ })

	require.NoError(t, st.RegisterModule([]string{"m1"}, &ModuleConfig{}))
	require.NoError(t, st.UnregisterModule([]string{"m1"}))
	require.NoError(t, st.HotUpdate(&ModuleConfig{}))
	assert.Equal(t, 3, rebuilds)

	st.Commit("cart/add", "apple")
	assert.Equal(t, 3, rebuilds, "plain commits are not rebuilds")

	unsub()
	require.NoError(t, st.RegisterModule([]string{"m2"}, &ModuleConfig{}))
	assert.Equal(t, 3, rebuilds)
}

func TestMultipleMutationHandlers_AllRunInOrder(t *testing.T) {
	var order []string
	cfg := &ModuleConfig{
		Mutations: map[string]MutationFunc{
			"tick": func(State, any) { order = append(order, "root") },
		},
		Modules: map[string]*ModuleConfig{
			"child": {
				Mutations: map[string]MutationFunc{
					"tick": func(State, any) { order = append(order, "child") },
				},
			},
		},
	}
	st := newTestStore(t, cfg)

	st.Commit("tick", nil)
	assert.Equal(t, []string{"root", "child"}, order,
		"same unqualified type from two modules appends, in install order")
}

func TestNamespaceGetterKeys_InvalidatedOnRebuild(t *testing.T) {
	st := newTestStore(t, shopConfig())

	assert.Equal(t, []string{"count", "summary"}, st.namespaceGetterKeys("cart/"))

	require.NoError(t, st.RegisterModule([]string{"cart", "promo"}, &ModuleConfig{
		Namespaced: true,
		Getters: map[string]GetterFunc{
			"active": func(State, Getters, State, Getters) any { return false },
		},
	}))

	assert.Equal(t, []string{"count", "summary", "promo/active"},
		st.namespaceGetterKeys("cart/"))
}

func TestDispatch_AfterReplaceState_LocalViewsFollow(t *testing.T) {
	st := newTestStore(t, shopConfig())

	st.ReplaceState(State{
		"currency": "JPY",
		"cart":     State{"items": []any{"x", "y"}},
		"user":     State{"name": ""},
	})

	got, err := st.Dispatch(context.Background(), "cart/checkout", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, got, "local state view resolves against the replaced tree")
}
