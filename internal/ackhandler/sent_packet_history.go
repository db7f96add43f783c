package ackhandler

import (
	"fmt"

	"github.com/draftquic/draftquic/internal/protocol"
)

// sentPacketHistory keeps every outstanding packet in one packet number
// space, indexed by (packetNumber - packets[0].PacketNumber) so lookup,
// insertion and removal are all O(1). Acked or lost entries are nilled
// out in place rather than shifted, and only trimmed from the front.
type sentPacketHistory struct {
	packets []*Packet

	numOutstanding      int
	highestPacketNumber protocol.PacketNumber
}

func newSentPacketHistory() *sentPacketHistory {
	return &sentPacketHistory{
		packets:             make([]*Packet, 0, 32),
		highestPacketNumber: protocol.InvalidPacketNumber,
	}
}

// SentPacket appends p, which must have the lowest packet number not yet
// recorded in this space.
func (h *sentPacketHistory) SentPacket(p *Packet) {
	if h.highestPacketNumber != protocol.InvalidPacketNumber && p.PacketNumber <= h.highestPacketNumber {
		panic("ackhandler: non-monotonic packet number")
	}
	h.packets = append(h.packets, p)
	if p.outstanding() {
		h.numOutstanding++
	}
	h.highestPacketNumber = p.PacketNumber
}

// Iterate walks every still-recorded packet, oldest first, until cb
// returns false or an error.
func (h *sentPacketHistory) Iterate(cb func(*Packet) (cont bool, err error)) error {
	for _, p := range h.packets {
		if p == nil {
			continue
		}
		cont, err := cb(p)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// FirstOutstanding returns the oldest packet still awaiting an ACK, or
// nil if there isn't one.
func (h *sentPacketHistory) FirstOutstanding() *Packet {
	if h.numOutstanding == 0 {
		return nil
	}
	for _, p := range h.packets {
		if p != nil && p.outstanding() {
			return p
		}
	}
	return nil
}

func (h *sentPacketHistory) HasOutstandingPackets() bool { return h.numOutstanding > 0 }

func (h *sentPacketHistory) Len() int { return len(h.packets) }

func (h *sentPacketHistory) getIndex(pn protocol.PacketNumber) (int, bool) {
	if len(h.packets) == 0 {
		return 0, false
	}
	first := h.packets[0].PacketNumber
	if pn < first {
		return 0, false
	}
	idx := int(pn - first)
	if idx > len(h.packets)-1 {
		return 0, false
	}
	return idx, true
}

// Get returns the recorded packet for pn, if it is still tracked.
func (h *sentPacketHistory) Get(pn protocol.PacketNumber) (*Packet, bool) {
	idx, ok := h.getIndex(pn)
	if !ok || h.packets[idx] == nil {
		return nil, false
	}
	return h.packets[idx], true
}

// Remove drops pn from history entirely, used once an acked or long-lost
// packet no longer needs to be retained.
func (h *sentPacketHistory) Remove(pn protocol.PacketNumber) error {
	idx, ok := h.getIndex(pn)
	if !ok || h.packets[idx] == nil {
		return fmt.Errorf("ackhandler: packet %d not found in history", pn)
	}
	p := h.packets[idx]
	if p.outstanding() {
		h.numOutstanding--
	}
	h.packets[idx] = nil
	if idx == 0 {
		h.cleanupStart()
	}
	return nil
}

// DeclareLost marks pn as no longer outstanding without discarding its
// record, so it can still be retransmitted-from and reported once.
func (h *sentPacketHistory) DeclareLost(pn protocol.PacketNumber) {
	idx, ok := h.getIndex(pn)
	if !ok || h.packets[idx] == nil {
		return
	}
	p := h.packets[idx]
	if p.outstanding() {
		h.numOutstanding--
		p.declaredLost = true
	}
}

func (h *sentPacketHistory) cleanupStart() {
	for i, p := range h.packets {
		if p != nil {
			h.packets = h.packets[i:]
			return
		}
	}
	h.packets = h.packets[:0]
}
