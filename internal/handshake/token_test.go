package handshake

import (
	"net"
	"testing"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	gen, err := NewTokenGenerator()
	require.NoError(t, err)

	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1234}
	origConnID := protocol.ConnectionID{0x01, 0x02, 0x03, 0x04}

	raw, err := gen.NewRetryToken(addr, origConnID)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	tok, err := gen.DecodeToken(raw)
	require.NoError(t, err)
	require.Equal(t, addr.IP.String(), tok.RemoteAddr)
	require.True(t, origConnID.Equal(tok.OriginalDestConnectionID))
}

func TestTokenNilForEmptyInput(t *testing.T) {
	gen, err := NewTokenGenerator()
	require.NoError(t, err)

	tok, err := gen.DecodeToken(nil)
	require.NoError(t, err)
	require.Nil(t, tok)
}

func TestTokenRejectsForeignGenerator(t *testing.T) {
	genA, err := NewTokenGenerator()
	require.NoError(t, err)
	genB, err := NewTokenGenerator()
	require.NoError(t, err)

	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 4433}
	raw, err := genA.NewRetryToken(addr, protocol.ConnectionID{0x01})
	require.NoError(t, err)

	_, err = genB.DecodeToken(raw)
	require.Error(t, err)
}

func TestRetryIntegrityTagIsDeterministic(t *testing.T) {
	origConnID := protocol.ConnectionID{0xaa, 0xbb, 0xcc, 0xdd}
	retry := []byte("retry packet header and token")

	tag1 := GetRetryIntegrityTag(retry, origConnID)
	tag2 := GetRetryIntegrityTag(retry, origConnID)
	require.Equal(t, tag1, tag2)

	tagOther := GetRetryIntegrityTag(retry, protocol.ConnectionID{0x01})
	require.NotEqual(t, tag1, tagOther)
}
