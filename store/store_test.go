package store

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// counterConfig is the smallest useful root module: one mutation, one
// action orchestrating it, one getter deriving from it.
func counterConfig() *ModuleConfig {
	return &ModuleConfig{
		State: State{"count": 0},
		Mutations: map[string]MutationFunc{
			"increment": func(s State, payload any) {
				n := 1
				if v, ok := payload.(int); ok {
					n = v
				}
				s["count"] = s["count"].(int) + n
			},
		},
		Actions: map[string]Action{
			"incrementAsync": Do(func(c *ActionContext, payload any) (any, error) {
				c.Commit("increment", payload)
				return c.State()["count"], nil
			}),
		},
		Getters: map[string]GetterFunc{
			"double": func(s State, _ Getters, _ State, _ Getters) any {
				return s["count"].(int) * 2
			},
		},
	}
}

// shopConfig exercises nesting, namespacing, and cross-module getters.
func shopConfig() *ModuleConfig {
	return &ModuleConfig{
		State: State{"currency": "USD"},
		Modules: map[string]*ModuleConfig{
			"cart": {
				Namespaced: true,
				State:      State{"items": []any{}},
				Mutations: map[string]MutationFunc{
					"add": func(s State, payload any) {
						s["items"] = append(s["items"].([]any), payload)
					},
					"clear": func(s State, _ any) {
						s["items"] = []any{}
					},
				},
				Actions: map[string]Action{
					"checkout": Do(func(c *ActionContext, _ any) (any, error) {
						count := len(c.State()["items"].([]any))
						c.Commit("clear", nil)
						return count, nil
					}),
				},
				Getters: map[string]GetterFunc{
					"count": func(s State, _ Getters, _ State, _ Getters) any {
						return len(s["items"].([]any))
					},
					"summary": func(s State, getters Getters, root State, _ Getters) any {
						return map[string]any{
							"count":    getters.Get("count"),
							"currency": root["currency"],
						}
					},
				},
			},
			"user": {
				State: State{"name": ""},
				Mutations: map[string]MutationFunc{
					"login": func(s State, payload any) {
						s["name"] = payload
					},
				},
			},
		},
	}
}

func newTestStore(t *testing.T, cfg *ModuleConfig, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithLogger(testLogger())}, opts...)
	st, err := New(cfg, opts...)
	require.NoError(t, err)
	return st
}

func TestNew_BuildsStateTree(t *testing.T) {
	st := newTestStore(t, shopConfig())

	state := st.State()
	assert.Equal(t, "USD", state["currency"])

	cart, ok := state["cart"].(State)
	require.True(t, ok, "cart state should be grafted under its key")
	assert.Empty(t, cart["items"])

	user, ok := state["user"].(State)
	require.True(t, ok)
	assert.Equal(t, "", user["name"])
}

func TestNew_StateFactoryInvokedOncePerModule(t *testing.T) {
	calls := 0
	cfg := &ModuleConfig{
		State: func() State {
			calls++
			return State{"n": calls}
		},
	}

	st := newTestStore(t, cfg)
	assert.Equal(t, 1, calls, "factory should run exactly once")
	assert.Equal(t, 1, st.State()["n"])
}

func TestNew_InvalidDefinition(t *testing.T) {
	tests := []struct {
		name string
		cfg  *ModuleConfig
	}{
		{
			name: "nil mutation handler",
			cfg:  &ModuleConfig{Mutations: map[string]MutationFunc{"bad": nil}},
		},
		{
			name: "nil action handler",
			cfg:  &ModuleConfig{Actions: map[string]Action{"bad": {}}},
		},
		{
			name: "nil getter",
			cfg:  &ModuleConfig{Getters: map[string]GetterFunc{"bad": nil}},
		},
		{
			name: "bad state kind",
			cfg:  &ModuleConfig{State: 42},
		},
		{
			name: "nil nested definition",
			cfg:  &ModuleConfig{Modules: map[string]*ModuleConfig{"child": nil}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, WithLogger(testLogger()))
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
		})
	}
}

func TestCommit_RunsHandlerAndNotifies(t *testing.T) {
	st := newTestStore(t, counterConfig())

	var got []Mutation
	st.Subscribe(func(m Mutation, state State) {
		got = append(got, m)
		assert.Equal(t, 3, state["count"])
	})

	st.Commit("increment", 3)

	assert.Equal(t, 3, st.State()["count"])
	require.Len(t, got, 1)
	assert.Equal(t, "increment", got[0].Type)
	assert.Equal(t, 3, got[0].Payload)
}

func TestCommit_UnknownType_NoOp(t *testing.T) {
	st := newTestStore(t, counterConfig())

	notified := false
	st.Subscribe(func(Mutation, State) { notified = true })

	st.Commit("nope", nil)

	assert.Equal(t, 0, st.State()["count"])
	assert.False(t, notified, "unknown type should not notify")
}

func TestCommit_EmptyType_NoOp(t *testing.T) {
	st := newTestStore(t, counterConfig())
	before := st.Version()

	st.Commit("", nil)

	assert.Equal(t, before, st.Version())
}

func TestSubscribe_NotifiedInRegistrationOrder(t *testing.T) {
	st := newTestStore(t, counterConfig())

	var order []int
	st.Subscribe(func(Mutation, State) { order = append(order, 1) })
	st.Subscribe(func(Mutation, State) { order = append(order, 2) })
	st.Subscribe(func(Mutation, State) { order = append(order, 3) })

	st.Commit("increment", nil)

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestSubscribe_UnsubscribeDuringNotification(t *testing.T) {
	st := newTestStore(t, counterConfig())

	calls := 0
	var unsub func()
	unsub = st.Subscribe(func(Mutation, State) {
		calls++
		unsub()
	})
	after := 0
	st.Subscribe(func(Mutation, State) { after++ })

	st.Commit("increment", nil)
	st.Commit("increment", nil)

	assert.Equal(t, 1, calls, "self-unsubscribed subscriber must not fire again")
	assert.Equal(t, 2, after, "later subscribers keep firing")
}

func TestSubscribe_UnsubscribeIdempotent(t *testing.T) {
	st := newTestStore(t, counterConfig())

	calls := 0
	unsub := st.Subscribe(func(Mutation, State) { calls++ })
	unsub()
	unsub()

	st.Commit("increment", nil)
	assert.Zero(t, calls)
}

func TestSubscribe_PanicDoesNotPoisonStore(t *testing.T) {
	st := newTestStore(t, counterConfig())

	st.Subscribe(func(Mutation, State) { panic("boom") })
	calls := 0
	st.Subscribe(func(Mutation, State) { calls++ })

	st.Commit("increment", nil)
	st.Commit("increment", nil)

	assert.Equal(t, 2, st.State()["count"], "commits keep working after a panic")
	assert.Equal(t, 2, calls, "remaining subscribers still notified")
}

func TestReplaceState_SwapsTree(t *testing.T) {
	st := newTestStore(t, counterConfig())
	before := st.Version()

	st.ReplaceState(State{"count": 42})

	assert.Equal(t, 42, st.State()["count"])
	assert.Greater(t, st.Version(), before)

	// Handlers resolve against the new tree.
	st.Commit("increment", nil)
	assert.Equal(t, 43, st.State()["count"])
}

func TestWatch_FiresOnChange(t *testing.T) {
	st := newTestStore(t, counterConfig())

	var transitions [][2]any
	st.Watch(func(s State, _ Getters) any {
		return s["count"]
	}, func(oldVal, newVal any) {
		transitions = append(transitions, [2]any{oldVal, newVal})
	})

	st.Commit("increment", 2)
	st.Commit("increment", 0) // count unchanged: payload 0 adds nothing

	require.Len(t, transitions, 1, "watch fires only when the derived value changes")
	assert.Equal(t, [2]any{0, 2}, transitions[0])
}

func TestWatch_Unsubscribe(t *testing.T) {
	st := newTestStore(t, counterConfig())

	fired := 0
	unsub := st.Watch(func(s State, _ Getters) any { return s["count"] },
		func(any, any) { fired++ })
	unsub()

	st.Commit("increment", nil)
	assert.Zero(t, fired)
}

func TestVersion_Advances(t *testing.T) {
	st := newTestStore(t, counterConfig())

	v0 := st.Version()
	st.Commit("increment", nil)
	v1 := st.Version()
	st.ReplaceState(State{"count": 0})
	v2 := st.Version()
	require.NoError(t, st.RegisterModule([]string{"extra"}, &ModuleConfig{}))
	v3 := st.Version()

	assert.Greater(t, v1, v0)
	assert.Greater(t, v2, v1)
	assert.Greater(t, v3, v2)
}

func TestGetter_Evaluates(t *testing.T) {
	st := newTestStore(t, counterConfig())

	v, ok := st.Getter("double")
	require.True(t, ok)
	assert.Equal(t, 0, v)

	st.Commit("increment", 5)
	v, _ = st.Getter("double")
	assert.Equal(t, 10, v)

	_, ok = st.Getter("missing")
	assert.False(t, ok)
}

func TestStrictMode_ReportsOutOfBandMutation(t *testing.T) {
	st := newTestStore(t, counterConfig(), WithStrict())

	assert.True(t, st.CheckIntegrity(), "fresh store passes")

	st.Commit("increment", nil)
	assert.True(t, st.CheckIntegrity(), "sanctioned write passes")

	st.State()["count"] = 99
	assert.False(t, st.CheckIntegrity(), "out-of-band write is reported")

	// The violation adopts the new baseline instead of repeating forever.
	assert.True(t, st.CheckIntegrity())
}

func TestStrictMode_Disabled_NoChecks(t *testing.T) {
	st := newTestStore(t, counterConfig())

	assert.False(t, st.Strict())
	st.State()["count"] = 99
	assert.True(t, st.CheckIntegrity(), "non-strict integrity check is a pass-through")
}

func TestCommitting_TrueOnlyDuringHandler(t *testing.T) {
	var during bool
	cfg := &ModuleConfig{
		State: State{"n": 0},
		Mutations: map[string]MutationFunc{
			"set": func(s State, payload any) {
				s["n"] = payload
			},
		},
	}
	st := newTestStore(t, cfg)

	st.Subscribe(func(Mutation, State) {
		during = st.Committing()
	})
	st.Commit("set", 1)

	assert.False(t, during, "committing guard drops before notification")
	assert.False(t, st.Committing())
}

func TestWithPlugin_AppliedAfterInstall(t *testing.T) {
	var seen []Mutation
	st := newTestStore(t, counterConfig(), WithPlugin(func(s *Store) {
		s.Subscribe(func(m Mutation, _ State) { seen = append(seen, m) })
	}))

	st.Commit("increment", nil)
	require.Len(t, seen, 1)
	assert.Equal(t, "increment", seen[0].Type)
}
