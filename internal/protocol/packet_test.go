package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptionLevelString(t *testing.T) {
	tests := []struct {
		level EncryptionLevel
		want  string
	}{
		{EncryptionInitial, "Initial"},
		{EncryptionHandshake, "Handshake"},
		{Encryption0RTT, "0-RTT"},
		{Encryption1RTT, "1-RTT"},
		{EncryptionUnspecified, "unknown"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.level.String())
	}
}

func TestEncryptionLevelIsLongHeaderLevel(t *testing.T) {
	require.True(t, EncryptionInitial.IsLongHeaderLevel())
	require.True(t, EncryptionHandshake.IsLongHeaderLevel())
	require.True(t, Encryption0RTT.IsLongHeaderLevel())
	require.False(t, Encryption1RTT.IsLongHeaderLevel())
}

func TestPacketTypeString(t *testing.T) {
	require.Equal(t, "Initial", PacketTypeInitial.String())
	require.Equal(t, "Retry", PacketTypeRetry.String())
	require.Equal(t, "Handshake", PacketTypeHandshake.String())
	require.Equal(t, "0-RTT", PacketType0RTT.String())
}
