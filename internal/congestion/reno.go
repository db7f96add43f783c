// Package congestion implements the NewReno congestion controller and a
// token-bucket pacer built on golang.org/x/time/rate.
package congestion

import (
	"sync"

	"github.com/draftquic/draftquic/internal/protocol"
)

// RenoSender is a classic NewReno state machine: slow start below
// ssthresh, additive-increase congestion avoidance above it, and a
// multiplicative cutback plus a single recovery epoch on loss.
type RenoSender struct {
	mu sync.Mutex

	bytesInFlight    protocol.ByteCount
	congestionWindow protocol.ByteCount
	ssthresh         protocol.ByteCount
	endOfRecovery    protocol.PacketNumber
	hasSentPacket    bool
}

// NewRenoSender returns a sender at its initial window with an unbounded
// slow-start threshold.
func NewRenoSender() *RenoSender {
	return &RenoSender{
		congestionWindow: protocol.InitialCongestionWindow,
		ssthresh:         protocol.MaxByteCount,
		endOfRecovery:    protocol.InvalidPacketNumber,
	}
}

// OnPacketSent records size against the in-flight budget when
// isAckElicitingOrPadding is true; otherwise the packet is not counted.
// The flag's value is decided by the caller.
func (r *RenoSender) OnPacketSent(size protocol.ByteCount, isAckElicitingOrPadding bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !isAckElicitingOrPadding {
		return
	}
	r.bytesInFlight += size
	r.hasSentPacket = true
}

// OnPacketAcked releases size from the in-flight budget and grows the
// window, unless ackedPacketNumber falls inside the current recovery
// epoch.
func (r *RenoSender) OnPacketAcked(ackedPacketNumber protocol.PacketNumber, size protocol.ByteCount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bytesInFlight -= size
	if r.bytesInFlight < 0 {
		r.bytesInFlight = 0
	}
	if r.endOfRecovery != protocol.InvalidPacketNumber && ackedPacketNumber <= r.endOfRecovery {
		return
	}
	if r.congestionWindow < r.ssthresh {
		r.congestionWindow += size
		return
	}
	r.congestionWindow += protocol.ByteCount(float64(protocol.DefaultMSS) * float64(size) / float64(r.congestionWindow))
}

// OnPacketLost removes size from the in-flight budget and, the first time
// a loss in a new epoch is observed, cuts the window in half (floored at
// two MSS) and resets ssthresh to match.
func (r *RenoSender) OnPacketLost(lostPacketNumber protocol.PacketNumber, size protocol.ByteCount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bytesInFlight -= size
	if r.bytesInFlight < 0 {
		r.bytesInFlight = 0
	}
	if r.endOfRecovery != protocol.InvalidPacketNumber && lostPacketNumber <= r.endOfRecovery {
		return
	}
	r.endOfRecovery = lostPacketNumber
	r.congestionWindow = max(r.congestionWindow/2, protocol.MinCongestionWindow)
	r.ssthresh = r.congestionWindow
}

// OnRetransmissionTimeoutVerified resets the window after two consecutive
// PTOs have gone unanswered, per the loss detector's RTO-verified signal.
func (r *RenoSender) OnRetransmissionTimeoutVerified() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.congestionWindow = protocol.MinCongestionWindow
}

// CanSend reports whether another size bytes may be sent without exceeding
// the congestion window. The connection asks this before packing; packets
// carrying only ACK frames are still sent when it reports false.
func (r *RenoSender) CanSend(size protocol.ByteCount) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bytesInFlight+size <= r.congestionWindow
}

func (r *RenoSender) BytesInFlight() protocol.ByteCount {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bytesInFlight
}

func (r *RenoSender) CongestionWindow() protocol.ByteCount {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.congestionWindow
}

func (r *RenoSender) InRecovery(pn protocol.PacketNumber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endOfRecovery != protocol.InvalidPacketNumber && pn <= r.endOfRecovery
}

func (r *RenoSender) SlowStartThreshold() protocol.ByteCount {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ssthresh
}
