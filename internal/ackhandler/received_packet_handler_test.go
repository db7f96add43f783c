package ackhandler

import (
	"testing"
	"time"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestReceivedPacketHandlerAlwaysAcksFirstPacket(t *testing.T) {
	h := NewReceivedPacketHandler(utils.NopLogger)
	h.ReceivedPacket(1, protocol.Encryption1RTT, time.Now(), true)
	ack := h.GetAckFrame(protocol.Encryption1RTT, true)
	require.NotNil(t, ack)
	require.Equal(t, protocol.PacketNumber(1), ack.LargestAcked())
}

func TestReceivedPacketHandlerQueuesEverySecondAckElicitingPacket(t *testing.T) {
	h := NewReceivedPacketHandler(utils.NopLogger)
	h.ReceivedPacket(1, protocol.Encryption1RTT, time.Now(), true)
	require.NotNil(t, h.GetAckFrame(protocol.Encryption1RTT, true))

	h.ReceivedPacket(2, protocol.Encryption1RTT, time.Now(), true)
	require.Nil(t, h.GetAckFrame(protocol.Encryption1RTT, true))
	h.ReceivedPacket(3, protocol.Encryption1RTT, time.Now(), true)
	require.NotNil(t, h.GetAckFrame(protocol.Encryption1RTT, true))
}

func TestReceivedPacketHandlerAcksOutOfOrderPacketImmediately(t *testing.T) {
	h := NewReceivedPacketHandler(utils.NopLogger)
	h.ReceivedPacket(1, protocol.Encryption1RTT, time.Now(), true)
	require.NotNil(t, h.GetAckFrame(protocol.Encryption1RTT, true))

	h.ReceivedPacket(3, protocol.Encryption1RTT, time.Now(), true) // 2 is missing
	ack := h.GetAckFrame(protocol.Encryption1RTT, true)
	require.NotNil(t, ack)
	require.True(t, ack.HasMissingRanges())
}

func TestReceivedPacketHandlerNonAckElicitingDoesNotQueue(t *testing.T) {
	h := NewReceivedPacketHandler(utils.NopLogger)
	h.ReceivedPacket(1, protocol.Encryption1RTT, time.Now(), false)
	require.Nil(t, h.GetAckFrame(protocol.Encryption1RTT, true))
}

func TestReceivedPacketHandlerSeparatesSpaces(t *testing.T) {
	h := NewReceivedPacketHandler(utils.NopLogger)
	h.ReceivedPacket(5, protocol.EncryptionInitial, time.Now(), true)
	require.NotNil(t, h.GetAckFrame(protocol.EncryptionInitial, true))
	require.Nil(t, h.GetAckFrame(protocol.Encryption1RTT, true))
}
