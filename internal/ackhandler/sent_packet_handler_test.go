package ackhandler

import (
	"testing"
	"time"

	"github.com/draftquic/draftquic/internal/congestion"
	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/utils"
	"github.com/draftquic/draftquic/internal/wire"
	"github.com/stretchr/testify/require"
)

func newTestHandler() *SentPacketHandler {
	return NewSentPacketHandler(protocol.PerspectiveClient, &utils.RTTStats{}, congestion.NewRenoSender(), utils.NopLogger)
}

func sendPacket(h *SentPacketHandler, pn protocol.PacketNumber, t time.Time) *Packet {
	p := &Packet{
		PacketNumber:    pn,
		Frames:          []*Frame{{Frame: &wire.PingFrame{}}},
		EncryptionLevel: protocol.Encryption1RTT,
		Length:          100,
		SendTime:        t,
	}
	h.SentPacket(p)
	return p
}

func TestSentPacketHandlerAcksRemovePacketsFromHistory(t *testing.T) {
	h := newTestHandler()
	now := time.Now()
	sendPacket(h, 0, now)
	sendPacket(h, 1, now)

	ack := &wire.AckFrame{AckRanges: []wire.AckRange{{Smallest: 0, Largest: 1}}}
	require.NoError(t, h.ReceivedAck(ack, protocol.Encryption1RTT, now.Add(10*time.Millisecond)))

	_, ok := h.appDataPackets.history.Get(0)
	require.False(t, ok)
	require.False(t, h.appDataPackets.history.HasOutstandingPackets())
}

func TestSentPacketHandlerRejectsAckForUnsentPacket(t *testing.T) {
	h := newTestHandler()
	ack := &wire.AckFrame{AckRanges: []wire.AckRange{{Smallest: 0, Largest: 5}}}
	err := h.ReceivedAck(ack, protocol.Encryption1RTT, time.Now())
	require.Error(t, err)
}

func TestSentPacketHandlerPacketThresholdLoss(t *testing.T) {
	h := newTestHandler()
	now := time.Now()
	for pn := protocol.PacketNumber(0); pn <= 3; pn++ {
		sendPacket(h, pn, now)
	}

	var lost []wire.Frame
	h.appDataPackets.history.packets[0].Frames[0].OnLost = func(f wire.Frame) { lost = append(lost, f) }

	ack := &wire.AckFrame{AckRanges: []wire.AckRange{{Smallest: 3, Largest: 3}}}
	require.NoError(t, h.ReceivedAck(ack, protocol.Encryption1RTT, now.Add(10*time.Millisecond)))

	require.Len(t, lost, 1)
	_, ok := h.appDataPackets.history.Get(0)
	require.False(t, ok)
}

func TestSentPacketHandlerSetsAndCancelsLossTimer(t *testing.T) {
	h := newTestHandler()
	now := time.Now()
	sendPacket(h, 0, now)
	require.False(t, h.GetLossDetectionTimeout().IsZero())

	ack := &wire.AckFrame{AckRanges: []wire.AckRange{{Smallest: 0, Largest: 0}}}
	require.NoError(t, h.ReceivedAck(ack, protocol.Encryption1RTT, now.Add(time.Millisecond)))
	require.True(t, h.GetLossDetectionTimeout().IsZero())
}

func TestSentPacketHandlerPTOAfterTimeout(t *testing.T) {
	h := newTestHandler()
	now := time.Now()
	sendPacket(h, 0, now)

	require.NoError(t, h.OnLossDetectionTimeout())
	require.Equal(t, uint32(1), h.ptoCount)
}

func TestSentPacketHandlerDropPacketsClearsSpace(t *testing.T) {
	h := newTestHandler()
	now := time.Now()
	p := &Packet{PacketNumber: 0, EncryptionLevel: protocol.EncryptionInitial, Length: 100, SendTime: now, Frames: []*Frame{{Frame: &wire.PingFrame{}}}}
	h.SentPacket(p)
	require.True(t, h.initialPackets.history.HasOutstandingPackets())

	h.DropPackets(protocol.EncryptionInitial)
	require.False(t, h.initialPackets.history.HasOutstandingPackets())
}
