package congestion

import "github.com/draftquic/draftquic/internal/protocol"

// SendAlgorithm is the subset of a congestion controller the ack handler
// drives directly: bookkeeping for bytes in flight plus the send/loss/PTO
// feedback loop.
type SendAlgorithm interface {
	OnPacketSent(size protocol.ByteCount, isAckElicitingOrPadding bool)
	OnPacketAcked(ackedPacketNumber protocol.PacketNumber, size protocol.ByteCount)
	OnPacketLost(lostPacketNumber protocol.PacketNumber, size protocol.ByteCount)
	OnRetransmissionTimeoutVerified()
	CanSend(size protocol.ByteCount) bool
	BytesInFlight() protocol.ByteCount
	CongestionWindow() protocol.ByteCount
	SlowStartThreshold() protocol.ByteCount
}

var _ SendAlgorithm = &RenoSender{}
