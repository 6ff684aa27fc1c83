package hash

import (
	"testing"

	xerrors "fleetcheck-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityNormalizesBeforeHashing(t *testing.T) {
	a, err := Identity("MB1NACHD4PRXX1234")
	require.NoError(t, err)

	b, err := Identity("  mb1nachd4prxx1234  ")
	require.NoError(t, err)

	assert.Equal(t, a, b, "case and whitespace must not defeat equality")
	assert.Len(t, a, 64)
}

func TestIdentityDistinctInputs(t *testing.T) {
	a, err := Identity("MB1NACHD4PRXX1234")
	require.NoError(t, err)

	b, err := Identity("MB1NACHD4PRXX1235")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestIdentityEmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\t\n"} {
		_, err := Identity(in)
		require.Error(t, err)
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	}
}
