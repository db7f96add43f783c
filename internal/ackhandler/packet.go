package ackhandler

import (
	"time"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/wire"
)

// Frame pairs a wire frame with callbacks fired once its fate is known:
// OnAcked when the packet carrying it is acknowledged, OnLost when it is
// declared lost and needs retransmitting.
type Frame struct {
	wire.Frame

	OnLost  func(wire.Frame)
	OnAcked func(wire.Frame)
}

// Packet is everything the loss detector needs to remember about a
// packet after it has been sent.
type Packet struct {
	PacketNumber    protocol.PacketNumber
	Frames          []*Frame
	LargestAcked    protocol.PacketNumber
	Length          protocol.ByteCount
	EncryptionLevel protocol.EncryptionLevel
	SendTime        time.Time

	declaredLost            bool
	includedInBytesInFlight bool
}

func (p *Packet) outstanding() bool {
	return !p.declaredLost
}

// IsFrameAckEliciting reports whether f requires the peer to send an ACK,
// which every frame except ACK and PADDING does.
func IsFrameAckEliciting(f wire.Frame) bool {
	switch f.(type) {
	case *wire.AckFrame, *wire.PaddingFrame:
		return false
	default:
		return true
	}
}

// HasAckElicitingFrames reports whether any frame in fs is ack-eliciting.
func HasAckElicitingFrames(fs []wire.Frame) bool {
	for _, f := range fs {
		if IsFrameAckEliciting(f) {
			return true
		}
	}
	return false
}
