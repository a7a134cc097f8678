package whitelist

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHash(t *testing.T) {
	hex := strings.Repeat("ab", HashSize)
	h, err := ParseHash(hex)
	require.NoError(t, err)
	require.Equal(t, hex, h.Hex())

	_, err = ParseHash("abcd")
	require.ErrorIs(t, err, ErrBadHashLength)

	_, err = ParseHash("not hex at all")
	require.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var a, b Hash
	a[0] = 0x02
	b[0] = 0x01

	require.NoError(t, m.Add(ctx, a))
	require.NoError(t, m.Add(ctx, b))
	require.NoError(t, m.Add(ctx, a))

	ok, err := m.Contains(ctx, a)
	require.NoError(t, err)
	require.True(t, ok)

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []Hash{b, a}, list)

	require.NoError(t, m.Remove(ctx, a))
	ok, err = m.Contains(ctx, a)
	require.NoError(t, err)
	require.False(t, ok)
}
