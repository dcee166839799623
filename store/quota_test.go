package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepthQuota_EnterExit(t *testing.T) {
	q := newDepthQuota(3)

	require.NoError(t, q.enter("act", "tok"))
	require.NoError(t, q.enter("act", "tok"))
	require.NoError(t, q.enter("act", "tok"))
	assert.Equal(t, 3, q.current("tok"))

	err := q.enter("act", "tok")
	require.Error(t, err)
	assert.True(t, IsDepthError(err))

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "act", re.Type)
	assert.Equal(t, "tok", re.Token)

	q.exit("tok")
	assert.Equal(t, 2, q.current("tok"))
	require.NoError(t, q.enter("act", "tok"), "quota frees as the chain unwinds")
}

func TestDepthQuota_TokensIndependent(t *testing.T) {
	q := newDepthQuota(1)

	require.NoError(t, q.enter("a", "tok-1"))
	require.NoError(t, q.enter("a", "tok-2"), "quota is per token")
	require.Error(t, q.enter("a", "tok-1"))
}

func TestDepthQuota_ExitReleasesEntry(t *testing.T) {
	q := newDepthQuota(2)

	require.NoError(t, q.enter("a", "tok"))
	q.exit("tok")
	assert.Zero(t, q.current("tok"))

	// Exit on an unknown token is harmless.
	q.exit("ghost")
	assert.Zero(t, q.current("ghost"))
}
