package wire

import (
	"testing"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/stretchr/testify/require"
)

func TestLongHeaderRoundTrip(t *testing.T) {
	dest, err := protocol.GenerateConnectionID(8)
	require.NoError(t, err)
	src, err := protocol.GenerateConnectionID(4)
	require.NoError(t, err)

	h := &Header{
		Type:             protocol.PacketTypeInitial,
		Version:          1,
		DestConnectionID: dest,
		SrcConnectionID:  src,
		PacketNumberLen:  protocol.PacketNumberLen2,
		PacketNumber:     12345,
		Length:           100,
	}
	b, err := h.AppendLong(nil)
	require.NoError(t, err)

	parsed, n, err := ParseHeader(b, 0)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	require.Equal(t, h.Type, parsed.Type)
	require.Equal(t, h.Version, parsed.Version)
	require.True(t, h.DestConnectionID.Equal(parsed.DestConnectionID))
	require.True(t, h.SrcConnectionID.Equal(parsed.SrcConnectionID))
	require.Equal(t, h.PacketNumberLen, parsed.PacketNumberLen)
	require.Equal(t, h.PacketNumber, parsed.PacketNumber)
	require.Equal(t, h.Length, parsed.Length)
}

func TestVersionNegotiationRoundTrip(t *testing.T) {
	dest, _ := protocol.GenerateConnectionID(8)
	src, _ := protocol.GenerateConnectionID(8)
	h := &Header{
		IsVersionNegotiation: true,
		DestConnectionID:     dest,
		SrcConnectionID:      src,
		SupportedVersions:    []uint32{1, 2},
	}
	b, err := h.AppendLong(nil)
	require.NoError(t, err)

	parsed, _, err := ParseHeader(b, 0)
	require.NoError(t, err)
	require.True(t, parsed.IsVersionNegotiation)
	require.Equal(t, h.SupportedVersions, parsed.SupportedVersions)
}

func TestShortHeaderRoundTrip(t *testing.T) {
	dest, _ := protocol.GenerateConnectionID(8)
	b := AppendShort(nil, dest, 42, protocol.PacketNumberLen1, true)

	parsed, n, err := ParseHeader(b, 8)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	require.True(t, dest.Equal(parsed.DestConnectionID))
	require.Equal(t, protocol.PacketNumber(42), parsed.PacketNumber)
}

func TestShortHeaderRejectsMissingFixedBit(t *testing.T) {
	dest, _ := protocol.GenerateConnectionID(8)
	b := AppendShort(nil, dest, 1, protocol.PacketNumberLen1, false)
	b[0] &^= shortHeaderFixedBit
	_, _, err := ParseHeader(b, 8)
	require.Error(t, err)
}

func TestConnectionIDLengthNibbleRoundTrip(t *testing.T) {
	dest, _ := protocol.GenerateConnectionID(18)
	src, _ := protocol.GenerateConnectionID(0)
	h := &Header{
		Type:             protocol.PacketTypeHandshake,
		Version:          1,
		DestConnectionID: dest,
		SrcConnectionID:  src,
		PacketNumberLen:  protocol.PacketNumberLen1,
		PacketNumber:     1,
	}
	b, err := h.AppendLong(nil)
	require.NoError(t, err)
	parsed, _, err := ParseHeader(b, 0)
	require.NoError(t, err)
	require.Equal(t, 18, parsed.DestConnectionID.Len())
	require.Equal(t, 0, parsed.SrcConnectionID.Len())
}
