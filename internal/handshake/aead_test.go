package handshake

import (
	"testing"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/stretchr/testify/require"
)

func TestInitialAEADRoundTrip(t *testing.T) {
	connID := protocol.ConnectionID{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03, 0x04}

	client, err := NewInitialAEAD(connID, protocol.PerspectiveClient)
	require.NoError(t, err)
	server, err := NewInitialAEAD(connID, protocol.PerspectiveServer)
	require.NoError(t, err)

	ad := []byte("associated data")
	plaintext := []byte("hello initial packet")

	sealed := client.Sealer.Seal(nil, plaintext, 1, ad)
	opened, err := server.Opener.Open(nil, sealed, 1, ad)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestInitialAEADWrongPacketNumberFails(t *testing.T) {
	connID := protocol.ConnectionID{0x01, 0x02, 0x03, 0x04}
	client, err := NewInitialAEAD(connID, protocol.PerspectiveClient)
	require.NoError(t, err)
	server, err := NewInitialAEAD(connID, protocol.PerspectiveServer)
	require.NoError(t, err)

	sealed := client.Sealer.Seal(nil, []byte("payload"), 5, nil)
	_, err = server.Opener.Open(nil, sealed, 6, nil)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestInitialAEADDifferentConnIDsDoNotInteroperate(t *testing.T) {
	connIDA := protocol.ConnectionID{0x01}
	connIDB := protocol.ConnectionID{0x02}

	client, err := NewInitialAEAD(connIDA, protocol.PerspectiveClient)
	require.NoError(t, err)
	server, err := NewInitialAEAD(connIDB, protocol.PerspectiveServer)
	require.NoError(t, err)

	sealed := client.Sealer.Seal(nil, []byte("payload"), 1, nil)
	_, err = server.Opener.Open(nil, sealed, 1, nil)
	require.Error(t, err)
}

func TestHeaderProtectionRoundTrip(t *testing.T) {
	connID := protocol.ConnectionID{0x01, 0x02, 0x03, 0x04}
	client, err := NewInitialAEAD(connID, protocol.PerspectiveClient)
	require.NoError(t, err)
	server, err := NewInitialAEAD(connID, protocol.PerspectiveServer)
	require.NoError(t, err)

	sealer := client.Sealer.(*sealer)
	opener := server.Opener.(*opener)

	sample := make([]byte, 16)
	for i := range sample {
		sample[i] = byte(i)
	}

	firstByte := byte(0x80 | 0x04)
	pnBytes := []byte{0x00, 0x2a}

	origFirstByte := firstByte
	origPNBytes := append([]byte(nil), pnBytes...)

	sealer.EncryptHeader(sample, &firstByte, pnBytes)
	require.NotEqual(t, origFirstByte, firstByte)
	require.NotEqual(t, origPNBytes, pnBytes)

	opener.DecryptHeader(sample, &firstByte, pnBytes)
	require.Equal(t, origFirstByte, firstByte)
	require.Equal(t, origPNBytes, pnBytes)
}
