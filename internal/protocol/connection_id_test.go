package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateConnectionID(t *testing.T) {
	c, err := GenerateConnectionID(8)
	require.NoError(t, err)
	require.Len(t, c, 8)

	empty, err := GenerateConnectionID(0)
	require.NoError(t, err)
	require.Equal(t, 0, empty.Len())
}

func TestReadConnectionID(t *testing.T) {
	r := bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	c, err := ReadConnectionID(r, 8)
	require.NoError(t, err)
	require.Equal(t, ConnectionID{1, 2, 3, 4, 5, 6, 7, 8}, c)

	_, err = ReadConnectionID(bytes.NewReader(nil), 4)
	require.Error(t, err)
}

func TestConnectionIDEqual(t *testing.T) {
	a := ConnectionID{1, 2, 3, 4}
	b := ConnectionID{1, 2, 3, 4}
	c := ConnectionID{1, 2, 3, 5}
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestConnectionIDLenNibble(t *testing.T) {
	tests := []struct {
		length int
		nibble byte
	}{
		{0, 0},
		{4, 1},
		{8, 5},
		{18, 15},
	}
	for _, tt := range tests {
		n, err := encodeLenNibble(tt.length)
		require.NoError(t, err)
		require.Equal(t, tt.nibble, n)
		require.Equal(t, tt.length, decodeLenNibble(n))
	}

	_, err := encodeLenNibble(3)
	require.Error(t, err)
	_, err = encodeLenNibble(19)
	require.Error(t, err)
}
