package ackhandler

import (
	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/wire"
)

// receivedPacketHistory keeps the ranges of packet numbers received in
// one packet number space, merging adjacent or overlapping ranges as
// they arrive so ACK frames stay compact.
type receivedPacketHistory struct {
	ranges []wire.AckRange // ordered smallest-first, non-overlapping
}

func newReceivedPacketHistory() *receivedPacketHistory {
	return &receivedPacketHistory{}
}

// ReceivedPacket records pn as received, returning false if it was
// already recorded (a duplicate).
func (h *receivedPacketHistory) ReceivedPacket(pn protocol.PacketNumber) bool {
	for i, r := range h.ranges {
		if pn >= r.Smallest && pn <= r.Largest {
			return false
		}
		if pn == r.Smallest-1 {
			h.ranges[i].Smallest = pn
			h.mergeWithPrev(i)
			return true
		}
		if pn == r.Largest+1 {
			h.ranges[i].Largest = pn
			h.mergeWithNext(i)
			return true
		}
		if pn < r.Smallest {
			h.ranges = append(h.ranges, wire.AckRange{})
			copy(h.ranges[i+1:], h.ranges[i:])
			h.ranges[i] = wire.AckRange{Smallest: pn, Largest: pn}
			return true
		}
	}
	h.ranges = append(h.ranges, wire.AckRange{Smallest: pn, Largest: pn})
	return true
}

func (h *receivedPacketHistory) mergeWithPrev(i int) {
	if i == 0 {
		return
	}
	if h.ranges[i-1].Largest == h.ranges[i].Smallest-1 {
		h.ranges[i-1].Largest = h.ranges[i].Largest
		h.ranges = append(h.ranges[:i], h.ranges[i+1:]...)
	}
}

func (h *receivedPacketHistory) mergeWithNext(i int) {
	if i == len(h.ranges)-1 {
		return
	}
	if h.ranges[i+1].Smallest == h.ranges[i].Largest+1 {
		h.ranges[i].Largest = h.ranges[i+1].Largest
		h.ranges = append(h.ranges[:i+1], h.ranges[i+2:]...)
	}
}

// IgnoreBelow discards every range (or the low part of a range) below
// pn, called once those packet numbers have been confirmed acked by the
// peer's ACK of our own ACK.
func (h *receivedPacketHistory) IgnoreBelow(pn protocol.PacketNumber) {
	var kept []wire.AckRange
	for _, r := range h.ranges {
		if r.Largest < pn {
			continue
		}
		if r.Smallest < pn {
			r.Smallest = pn
		}
		kept = append(kept, r)
	}
	h.ranges = kept
}

// AckRanges returns the ranges newest-first, the order wire.AckFrame
// expects for encoding.
func (h *receivedPacketHistory) AckRanges() []wire.AckRange {
	out := make([]wire.AckRange, len(h.ranges))
	for i, r := range h.ranges {
		out[len(h.ranges)-1-i] = r
	}
	return out
}
