package ackhandler

import (
	"fmt"
	"time"

	"github.com/draftquic/draftquic/internal/congestion"
	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/qerr"
	"github.com/draftquic/draftquic/internal/utils"
	"github.com/draftquic/draftquic/internal/wire"
)

const (
	timeThresholdNum = protocol.TimeThresholdNumerator
	timeThresholdDen = protocol.TimeThresholdDenominator
	packetThreshold  = protocol.PacketThreshold
)

// SendMode tells the packet packer what kind of packet it may build next.
type SendMode uint8

const (
	SendNone SendMode = iota
	SendAny
	SendPTOInitial
	SendPTOHandshake
	SendPTOAppData
)

type packetNumberSpace struct {
	history *sentPacketHistory

	lossTime                   time.Time
	lastAckElicitingPacketTime time.Time

	largestAcked protocol.PacketNumber
	largestSent  protocol.PacketNumber
	nextToSend   protocol.PacketNumber
}

func newPacketNumberSpace() *packetNumberSpace {
	return &packetNumberSpace{
		history:      newSentPacketHistory(),
		largestSent:  protocol.InvalidPacketNumber,
		largestAcked: protocol.InvalidPacketNumber,
	}
}

// SentPacketHandler tracks every packet this endpoint has sent in each of
// the three packet number spaces, matches incoming ACKs against that
// history, and runs the packet/time threshold loss detector and the PTO
// timer against it.
type SentPacketHandler struct {
	initialPackets   *packetNumberSpace
	handshakePackets *packetNumberSpace
	appDataPackets   *packetNumberSpace

	handshakeConfirmed bool
	perspective        protocol.Perspective

	congestion congestion.SendAlgorithm
	rttStats   *utils.RTTStats

	ptoCount uint32
	ptoMode  SendMode

	alarm time.Time

	logger utils.Logger
}

// NewSentPacketHandler wires a fresh handler for one connection.
func NewSentPacketHandler(pers protocol.Perspective, rttStats *utils.RTTStats, cong congestion.SendAlgorithm, logger utils.Logger) *SentPacketHandler {
	return &SentPacketHandler{
		initialPackets:   newPacketNumberSpace(),
		handshakePackets: newPacketNumberSpace(),
		appDataPackets:   newPacketNumberSpace(),
		perspective:      pers,
		rttStats:         rttStats,
		congestion:       cong,
		logger:           logger,
	}
}

func (h *SentPacketHandler) getPacketNumberSpace(encLevel protocol.EncryptionLevel) *packetNumberSpace {
	switch encLevel {
	case protocol.EncryptionInitial:
		return h.initialPackets
	case protocol.EncryptionHandshake:
		return h.handshakePackets
	default:
		return h.appDataPackets
	}
}

// PeekPacketNumber returns the next packet number that would be assigned
// in encLevel's space, without consuming it.
func (h *SentPacketHandler) PeekPacketNumber(encLevel protocol.EncryptionLevel) protocol.PacketNumber {
	return h.getPacketNumberSpace(encLevel).nextToSend
}

// PopPacketNumber consumes and returns the next packet number in
// encLevel's space.
func (h *SentPacketHandler) PopPacketNumber(encLevel protocol.EncryptionLevel) protocol.PacketNumber {
	pnSpace := h.getPacketNumberSpace(encLevel)
	pn := pnSpace.nextToSend
	pnSpace.nextToSend++
	return pn
}

// SentPacket records that p has just been sent, feeding its size to the
// congestion controller if it counts against the window. Only packets
// whose p.Frames include an ack-eliciting frame count as in flight;
// padding that the packer appends is not listed in p.Frames, so a packet
// does not count because of its padding.
func (h *SentPacketHandler) SentPacket(p *Packet) {
	pnSpace := h.getPacketNumberSpace(p.EncryptionLevel)

	isAckEliciting := HasAckElicitingFrames(framesOf(p.Frames))
	p.includedInBytesInFlight = isAckEliciting

	if isAckEliciting {
		pnSpace.lastAckElicitingPacketTime = p.SendTime
	}
	h.congestion.OnPacketSent(p.Length, isAckEliciting)

	pnSpace.largestSent = p.PacketNumber
	pnSpace.history.SentPacket(p)

	h.setLossDetectionTimer()
}

func framesOf(fs []*Frame) []wire.Frame {
	out := make([]wire.Frame, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Frame)
	}
	return out
}

// ReceivedAck processes an incoming ACK frame against encLevel's space:
// it updates the RTT estimate, releases newly-acked packets to the
// congestion controller, runs loss detection, and rearms the timer.
func (h *SentPacketHandler) ReceivedAck(ack *wire.AckFrame, encLevel protocol.EncryptionLevel, rcvTime time.Time) error {
	pnSpace := h.getPacketNumberSpace(encLevel)

	largestAcked := ack.LargestAcked()
	if pnSpace.largestSent == protocol.InvalidPacketNumber || largestAcked > pnSpace.largestSent {
		return qerr.NewError(qerr.ProtocolViolation, "received ACK for an unsent packet")
	}
	if largestAcked > pnSpace.largestAcked || pnSpace.largestAcked == protocol.InvalidPacketNumber {
		pnSpace.largestAcked = largestAcked
	}

	if p, ok := pnSpace.history.Get(largestAcked); ok {
		var ackDelay time.Duration
		if encLevel == protocol.Encryption1RTT {
			ackDelay = min(ack.DelayTime, h.rttStats.MaxAckDelay())
		}
		h.rttStats.UpdateRTT(rcvTime.Sub(p.SendTime), ackDelay, rcvTime)
	}

	ackedPackets, err := h.detectAndRemoveAckedPackets(ack, pnSpace)
	if err != nil {
		return err
	}
	if len(ackedPackets) == 0 {
		return nil
	}

	lostPackets, err := h.detectAndRemoveLostPackets(rcvTime, encLevel, pnSpace)
	if err != nil {
		return err
	}
	for _, p := range lostPackets {
		h.congestion.OnPacketLost(p.PacketNumber, p.Length)
	}
	for _, p := range ackedPackets {
		if p.includedInBytesInFlight {
			h.congestion.OnPacketAcked(p.PacketNumber, p.Length)
		}
	}

	h.ptoCount = 0
	h.setLossDetectionTimer()
	return nil
}

func (h *SentPacketHandler) detectAndRemoveAckedPackets(ack *wire.AckFrame, pnSpace *packetNumberSpace) ([]*Packet, error) {
	var acked []*Packet
	lowest, largest := ack.AckRanges[len(ack.AckRanges)-1].Smallest, ack.LargestAcked()

	if err := pnSpace.history.Iterate(func(p *Packet) (bool, error) {
		if p.PacketNumber < lowest {
			return true, nil
		}
		if p.PacketNumber > largest {
			return false, nil
		}
		if ack.AcksPacket(p.PacketNumber) {
			acked = append(acked, p)
		}
		return true, nil
	}); err != nil {
		return nil, err
	}

	for _, p := range acked {
		for _, f := range p.Frames {
			if f.OnAcked != nil {
				f.OnAcked(f.Frame)
			}
		}
		if err := pnSpace.history.Remove(p.PacketNumber); err != nil {
			return nil, err
		}
	}
	return acked, nil
}

func (h *SentPacketHandler) detectAndRemoveLostPackets(now time.Time, encLevel protocol.EncryptionLevel, pnSpace *packetNumberSpace) ([]*Packet, error) {
	pnSpace.lossTime = time.Time{}

	maxRTT := max(h.rttStats.LatestRTT(), h.rttStats.SmoothedRTT())
	lossDelay := maxRTT * timeThresholdNum / timeThresholdDen
	lossDelay = max(lossDelay, protocol.TimerGranularity)
	lostSendTime := now.Add(-lossDelay)

	var lost []*Packet
	if err := pnSpace.history.Iterate(func(p *Packet) (bool, error) {
		if p.PacketNumber > pnSpace.largestAcked {
			return false, nil
		}
		switch {
		case p.SendTime.Before(lostSendTime):
			lost = append(lost, p)
		case pnSpace.largestAcked >= p.PacketNumber+packetThreshold:
			lost = append(lost, p)
		case pnSpace.lossTime.IsZero():
			pnSpace.lossTime = p.SendTime.Add(lossDelay)
		}
		return true, nil
	}); err != nil {
		return nil, err
	}

	for _, p := range lost {
		for _, f := range p.Frames {
			if f.OnLost != nil {
				f.OnLost(f.Frame)
			}
		}
		pnSpace.history.DeclareLost(p.PacketNumber)
		if err := pnSpace.history.Remove(p.PacketNumber); err != nil {
			return nil, err
		}
	}
	return lost, nil
}

// DropPackets discards every packet still tracked at encLevel, called
// once that epoch's keys are dropped for good.
func (h *SentPacketHandler) DropPackets(encLevel protocol.EncryptionLevel) {
	*h.getPacketNumberSpace(encLevel) = *newPacketNumberSpace()
}

// SetHandshakeConfirmed records that the handshake has finished. The flag
// does not remove the Initial and Handshake spaces from the PTO
// computation; they stop contributing once DropPackets clears them.
func (h *SentPacketHandler) SetHandshakeConfirmed() { h.handshakeConfirmed = true }

func (h *SentPacketHandler) hasOutstandingPackets() bool {
	if h.initialPackets.history.HasOutstandingPackets() || h.handshakePackets.history.HasOutstandingPackets() {
		return true
	}
	return h.appDataPackets.history.HasOutstandingPackets()
}

func (h *SentPacketHandler) getLossTimeAndSpace() (time.Time, protocol.EncryptionLevel) {
	lossTime, level := h.initialPackets.lossTime, protocol.EncryptionInitial
	if earlier(h.handshakePackets.lossTime, lossTime) {
		lossTime, level = h.handshakePackets.lossTime, protocol.EncryptionHandshake
	}
	if earlier(h.appDataPackets.lossTime, lossTime) {
		lossTime, level = h.appDataPackets.lossTime, protocol.Encryption1RTT
	}
	return lossTime, level
}

func earlier(t, than time.Time) bool {
	if t.IsZero() {
		return false
	}
	return than.IsZero() || t.Before(than)
}

func (h *SentPacketHandler) getPTOTimeAndSpace() (time.Time, protocol.EncryptionLevel) {
	var pto time.Time
	level := protocol.EncryptionInitial

	if t := h.initialPackets.lastAckElicitingPacketTime; !t.IsZero() {
		pto = t.Add(h.rttStats.PTO(false) << h.ptoCount)
	}
	if t := h.handshakePackets.lastAckElicitingPacketTime; !t.IsZero() {
		candidate := t.Add(h.rttStats.PTO(false) << h.ptoCount)
		if pto.IsZero() || candidate.Before(pto) {
			pto, level = candidate, protocol.EncryptionHandshake
		}
	}
	if h.handshakeConfirmed {
		if t := h.appDataPackets.lastAckElicitingPacketTime; !t.IsZero() {
			candidate := t.Add(h.rttStats.PTO(true) << h.ptoCount)
			if pto.IsZero() || candidate.Before(pto) {
				pto, level = candidate, protocol.Encryption1RTT
			}
		}
	}
	if pto.IsZero() {
		pto = time.Now().Add(h.rttStats.PTO(false) << h.ptoCount)
	}
	return pto, level
}

func (h *SentPacketHandler) setLossDetectionTimer() {
	if lossTime, _ := h.getLossTimeAndSpace(); !lossTime.IsZero() {
		h.alarm = lossTime
		return
	}
	if !h.hasOutstandingPackets() {
		h.alarm = time.Time{}
		return
	}
	pto, _ := h.getPTOTimeAndSpace()
	h.alarm = pto
}

// GetLossDetectionTimeout returns the time at which OnLossDetectionTimeout
// should be called next, or the zero Time if no timer is armed.
func (h *SentPacketHandler) GetLossDetectionTimeout() time.Time { return h.alarm }

// OnLossDetectionTimeout fires when GetLossDetectionTimeout's deadline
// passes: it either declares packets lost by the time threshold, or, if
// nothing is currently that overdue, arms a PTO probe.
func (h *SentPacketHandler) OnLossDetectionTimeout() error {
	if lossTime, level := h.getLossTimeAndSpace(); !lossTime.IsZero() {
		pnSpace := h.getPacketNumberSpace(level)
		lost, err := h.detectAndRemoveLostPackets(time.Now(), level, pnSpace)
		if err != nil {
			return err
		}
		for _, p := range lost {
			h.congestion.OnPacketLost(p.PacketNumber, p.Length)
		}
		h.setLossDetectionTimer()
		return nil
	}

	h.ptoCount++
	if h.ptoCount >= protocol.MaxRetransmissionCount {
		h.congestion.OnRetransmissionTimeoutVerified()
	}
	_, level := h.getPTOTimeAndSpace()
	switch level {
	case protocol.EncryptionInitial:
		h.ptoMode = SendPTOInitial
	case protocol.EncryptionHandshake:
		h.ptoMode = SendPTOHandshake
	case protocol.Encryption1RTT:
		h.ptoMode = SendPTOAppData
	default:
		return fmt.Errorf("ackhandler: PTO fired at unexpected encryption level %s", level)
	}
	h.setLossDetectionTimer()
	return nil
}

// SendMode reports whether a probe is due and, if so, at which level.
func (h *SentPacketHandler) SendMode() SendMode {
	if h.ptoMode != SendNone {
		mode := h.ptoMode
		h.ptoMode = SendNone
		return mode
	}
	return SendAny
}

// BytesInFlight forwards to the congestion controller for callers that
// only need the count, not the full congestion.SendAlgorithm interface.
func (h *SentPacketHandler) BytesInFlight() protocol.ByteCount { return h.congestion.BytesInFlight() }
