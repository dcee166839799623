package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_Scalars(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, `null`},
		{"true", true, `true`},
		{"false", false, `false`},
		{"int", 42, `42`},
		{"negative int", -7, `-7`},
		{"int64", int64(1 << 40), `1099511627776`},
		{"string", "hello", `"hello"`},
		{"integral float", 5.0, `5`},
		{"fractional float", 1.5, `1.5`},
		{"float32 integral", float32(3), `3`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshal_SortsObjectKeys(t *testing.T) {
	got, err := Marshal(map[string]any{
		"zebra": 1,
		"alpha": 2,
		"mango": 3,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mango":3,"zebra":1}`, string(got))
}

func TestMarshal_NestedStructures(t *testing.T) {
	got, err := Marshal(map[string]any{
		"items": []any{1, "two", map[string]any{"b": 2, "a": 1}},
		"empty": map[string]any{},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"empty":{},"items":[1,"two",{"a":1,"b":2}]}`, string(got))
}

func TestMarshal_NoHTMLEscaping(t *testing.T) {
	got, err := Marshal("<a href=\"x\">&</a>")
	require.NoError(t, err)
	assert.Equal(t, `"<a href=\"x\">&</a>"`, string(got))
}

func TestMarshal_NFCNormalization(t *testing.T) {
	// e + COMBINING ACUTE ACCENT composes to U+00E9.
	decomposed, err := Marshal("é")
	require.NoError(t, err)
	composed, err := Marshal("é")
	require.NoError(t, err)
	assert.Equal(t, string(composed), string(decomposed))
}

func TestMarshal_LineSeparatorsStayLiteral(t *testing.T) {
	got, err := Marshal("a b c")
	require.NoError(t, err)
	assert.Equal(t, "\"a b c\"", string(got))

	// A literal backslash-u sequence in the input is data and must stay
	// escaped.
	got, err = Marshal(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(got))
}

func TestMarshal_UTF16KeyOrder(t *testing.T) {
	// U+1D306 (surrogate pair D834 DF06) sorts before U+FB33 in UTF-16
	// code units even though its first UTF-8 byte is larger.
	got, err := Marshal(map[string]any{
		"\U0001D306": 1,
		"דּ":     2,
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001D306\":1,\"דּ\":2}", string(got))
}

func TestMarshal_NamedTypes(t *testing.T) {
	type state map[string]any
	type tags []any
	type level int

	got, err := Marshal(state{"tags": tags{"a"}, "level": level(3)})
	require.NoError(t, err)
	assert.Equal(t, `{"level":3,"tags":["a"]}`, string(got))
}

func TestMarshal_TypedSlicesAndMaps(t *testing.T) {
	got, err := Marshal(map[string]any{
		"ints":  []int{3, 1, 2},
		"names": map[string]string{"b": "y", "a": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ints":[3,1,2],"names":{"a":"x","b":"y"}}`, string(got))
}

func TestMarshal_UnsupportedType(t *testing.T) {
	_, err := Marshal(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)

	_, err = Marshal(map[int]any{1: "x"})
	assert.Error(t, err)
}

func TestMarshal_ByteStableAcrossBuilds(t *testing.T) {
	build := func() map[string]any {
		m := make(map[string]any)
		m["c"] = []any{true, nil}
		m["a"] = map[string]any{"k2": 2, "k1": 1}
		m["b"] = "v"
		return m
	}
	first, err := Marshal(build())
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := Marshal(build())
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestFingerprint_StableAndSensitive(t *testing.T) {
	a := map[string]any{"x": 1, "y": []any{"z"}}
	b := map[string]any{"y": []any{"z"}, "x": 1}

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb, "iteration order never changes the fingerprint")

	c := map[string]any{"x": 2, "y": []any{"z"}}
	fc, err := Fingerprint(c)
	require.NoError(t, err)
	assert.NotEqual(t, fa, fc)

	_, err = Fingerprint(map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestFingerprint_IntAndIntegralFloatAgree(t *testing.T) {
	fa, err := Fingerprint(map[string]any{"n": 5})
	require.NoError(t, err)
	fb, err := Fingerprint(map[string]any{"n": 5.0})
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
}
