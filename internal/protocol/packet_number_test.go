package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodePacketNumber(t *testing.T) {
	tests := []struct {
		name    string
		len     PacketNumberLen
		largest PacketNumber
		wire    PacketNumber
		want    PacketNumber
	}{
		{"no wraparound, 2-byte", PacketNumberLen2, 0xa82f30ea, 0x9b32, 0xa82f9b32},
		{"first packet", PacketNumberLen1, InvalidPacketNumber, 0, 0},
		{"small increment, 1-byte", PacketNumberLen1, 0xa0, 0xa8, 0xa8},
		{"wraps forward across epoch, 1-byte", PacketNumberLen1, 0xfe, 0x02, 0x102},
		{"wraps backward across epoch, 1-byte", PacketNumberLen1, 0x102, 0xfe, 0xfe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, DecodePacketNumber(tt.len, tt.largest, tt.wire))
		})
	}
}

func TestEncodePacketNumber(t *testing.T) {
	require.Equal(t, uint64(0x9b32), EncodePacketNumber(0xa82f9b32, PacketNumberLen2))
}

func TestGetPacketNumberLengthForHeader(t *testing.T) {
	require.Equal(t, PacketNumberLen1, GetPacketNumberLengthForHeader(10, 5))
	require.Equal(t, PacketNumberLen2, GetPacketNumberLengthForHeader(10000, 1))
}
