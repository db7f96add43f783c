package ackhandler

import (
	"time"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/utils"
	"github.com/draftquic/draftquic/internal/wire"
)

const ackSendDelay = 25 * time.Millisecond

// receivedPacketTracker decides when this endpoint owes its peer an ACK
// and builds the frame to send: an ACK is due immediately for the very
// first packet, for every second ack-eliciting packet, and for any
// packet that arrives out of order; otherwise it is delayed up to
// ackSendDelay to let a few packets batch into one ACK.
type receivedPacketTracker struct {
	history *receivedPacketHistory

	largestObserved             protocol.PacketNumber
	largestObservedReceivedTime time.Time
	ignoreBelow                 protocol.PacketNumber

	packetsSinceLastAck int
	ackQueued           bool
	ackAlarm            time.Time

	lastAck *wire.AckFrame

	logger utils.Logger
}

func newReceivedPacketTracker(logger utils.Logger) *receivedPacketTracker {
	return &receivedPacketTracker{
		history:         newReceivedPacketHistory(),
		largestObserved: protocol.InvalidPacketNumber,
		logger:          logger,
	}
}

// ReceivedPacket records that pn arrived at rcvTime, updating the ACK
// schedule if shouldInstigateAck (i.e. the packet was ack-eliciting).
func (t *receivedPacketTracker) ReceivedPacket(pn protocol.PacketNumber, rcvTime time.Time, shouldInstigateAck bool) {
	isDuplicate := !t.history.ReceivedPacket(pn)

	prevLargest := t.largestObserved
	if t.largestObserved == protocol.InvalidPacketNumber || pn > t.largestObserved {
		t.largestObserved = pn
		t.largestObservedReceivedTime = rcvTime
	}

	if !shouldInstigateAck || isDuplicate {
		return
	}

	outOfOrder := prevLargest != protocol.InvalidPacketNumber && pn != prevLargest+1 && pn >= t.ignoreBelow

	if t.lastAck == nil || outOfOrder {
		t.ackQueued = true
	} else {
		t.packetsSinceLastAck++
		if t.packetsSinceLastAck >= 2 {
			t.ackQueued = true
		}
	}

	if t.ackQueued {
		t.ackAlarm = time.Time{}
	} else if t.ackAlarm.IsZero() {
		t.ackAlarm = rcvTime.Add(ackSendDelay)
	}
}

// IgnoreBelow raises the threshold below which arriving packets are no
// longer treated as reordering, once the peer has confirmed it saw our
// ACK for them.
func (t *receivedPacketTracker) IgnoreBelow(pn protocol.PacketNumber) {
	t.ignoreBelow = pn
	t.history.IgnoreBelow(pn)
}

// GetAlarmTimeout returns when a delayed ACK becomes due, or the zero
// Time if none is pending.
func (t *receivedPacketTracker) GetAlarmTimeout() time.Time { return t.ackAlarm }

// GetAckFrame returns the ACK frame to send now, or nil if none is due.
// onlyIfQueued restricts this to only the "must send now" cases,
// ignoring an ACK that's merely allowed because the delay alarm fired.
func (t *receivedPacketTracker) GetAckFrame(onlyIfQueued bool) *wire.AckFrame {
	if onlyIfQueued && !t.ackQueued {
		return nil
	}
	if t.largestObserved == protocol.InvalidPacketNumber {
		return nil
	}
	if !t.ackQueued && t.ackAlarm.IsZero() {
		return nil
	}

	ack := &wire.AckFrame{
		AckRanges: t.history.AckRanges(),
		DelayTime: time.Since(t.largestObservedReceivedTime),
	}
	t.lastAck = ack
	t.ackQueued = false
	t.packetsSinceLastAck = 0
	t.ackAlarm = time.Time{}
	return ack
}

// DropPackets discards this space's received-packet bookkeeping, called
// once its keys are dropped for good.
func (t *receivedPacketTracker) DropPackets() {
	*t = *newReceivedPacketTracker(t.logger)
}

// ReceivedPacketHandler tracks arrivals across all three packet number
// spaces and hands out the ACK frame due for each.
type ReceivedPacketHandler struct {
	initial   *receivedPacketTracker
	handshake *receivedPacketTracker
	appData   *receivedPacketTracker
}

// NewReceivedPacketHandler builds a handler with one tracker per space.
func NewReceivedPacketHandler(logger utils.Logger) *ReceivedPacketHandler {
	return &ReceivedPacketHandler{
		initial:   newReceivedPacketTracker(logger),
		handshake: newReceivedPacketTracker(logger),
		appData:   newReceivedPacketTracker(logger),
	}
}

func (h *ReceivedPacketHandler) tracker(encLevel protocol.EncryptionLevel) *receivedPacketTracker {
	switch encLevel {
	case protocol.EncryptionInitial:
		return h.initial
	case protocol.EncryptionHandshake:
		return h.handshake
	default:
		return h.appData
	}
}

// ReceivedPacket records an inbound packet at encLevel.
func (h *ReceivedPacketHandler) ReceivedPacket(pn protocol.PacketNumber, encLevel protocol.EncryptionLevel, rcvTime time.Time, shouldInstigateAck bool) {
	h.tracker(encLevel).ReceivedPacket(pn, rcvTime, shouldInstigateAck)
}

// GetAckFrame returns the ACK frame due for encLevel, if any.
func (h *ReceivedPacketHandler) GetAckFrame(encLevel protocol.EncryptionLevel, onlyIfQueued bool) *wire.AckFrame {
	return h.tracker(encLevel).GetAckFrame(onlyIfQueued)
}

// GetAlarmTimeout returns the earliest pending delayed-ACK deadline
// across all three spaces.
func (h *ReceivedPacketHandler) GetAlarmTimeout() time.Time {
	var t time.Time
	for _, tr := range []*receivedPacketTracker{h.initial, h.handshake, h.appData} {
		if a := tr.GetAlarmTimeout(); !a.IsZero() && (t.IsZero() || a.Before(t)) {
			t = a
		}
	}
	return t
}

// DropPackets discards encLevel's received-packet bookkeeping.
func (h *ReceivedPacketHandler) DropPackets(encLevel protocol.EncryptionLevel) {
	h.tracker(encLevel).DropPackets()
}
