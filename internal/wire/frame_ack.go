package wire

import (
	"errors"
	"time"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/quicvarint"
)

// AckRange is an inclusive range of acknowledged packet numbers.
type AckRange struct {
	Smallest protocol.PacketNumber
	Largest  protocol.PacketNumber
}

// AckFrame acknowledges receipt of one or more ranges of packet numbers,
// newest range first, with gaps encoded as the distance to the next range.
type AckFrame struct {
	AckRanges []AckRange
	DelayTime time.Duration
}

// LargestAcked is the highest packet number this frame acknowledges.
func (f *AckFrame) LargestAcked() protocol.PacketNumber {
	return f.AckRanges[0].Largest
}

// HasMissingRanges reports whether this ACK has more than one range, i.e.
// the sender has observed a gap in the packet number sequence.
func (f *AckFrame) HasMissingRanges() bool {
	return len(f.AckRanges) > 1
}

// AcksPacket reports whether pn falls within any acknowledged range.
func (f *AckFrame) AcksPacket(pn protocol.PacketNumber) bool {
	for _, r := range f.AckRanges {
		if pn >= r.Smallest && pn <= r.Largest {
			return true
		}
	}
	return false
}

const ackDelayExponent = 3

func (f *AckFrame) Append(b []byte, _ uint32) ([]byte, error) {
	if len(f.AckRanges) == 0 {
		return nil, errors.New("cannot write an ACK frame without ranges")
	}
	b = quicvarint.Append(b, uint64(FrameTypeAck))
	b = quicvarint.Append(b, uint64(f.LargestAcked()))
	delay := encodeAckDelay(f.DelayTime)
	b = quicvarint.Append(b, delay)
	b = quicvarint.Append(b, uint64(len(f.AckRanges)-1))

	first := f.AckRanges[0]
	b = quicvarint.Append(b, uint64(first.Largest-first.Smallest))

	prevSmallest := first.Smallest
	for _, r := range f.AckRanges[1:] {
		gap := prevSmallest - r.Largest - 2
		b = quicvarint.Append(b, uint64(gap))
		b = quicvarint.Append(b, uint64(r.Largest-r.Smallest))
		prevSmallest = r.Smallest
	}
	return b, nil
}

func (f *AckFrame) Length(_ uint32) protocol.ByteCount {
	l := quicvarint.Len(uint64(FrameTypeAck)) +
		quicvarint.Len(uint64(f.LargestAcked())) +
		quicvarint.Len(encodeAckDelay(f.DelayTime)) +
		quicvarint.Len(uint64(len(f.AckRanges)-1))

	first := f.AckRanges[0]
	l += quicvarint.Len(uint64(first.Largest - first.Smallest))

	prevSmallest := first.Smallest
	for _, r := range f.AckRanges[1:] {
		gap := prevSmallest - r.Largest - 2
		l += quicvarint.Len(uint64(gap)) + quicvarint.Len(uint64(r.Largest-r.Smallest))
		prevSmallest = r.Smallest
	}
	return protocol.ByteCount(l)
}

func encodeAckDelay(d time.Duration) uint64 {
	return uint64(d.Microseconds()) >> ackDelayExponent
}

func decodeAckDelay(v uint64) time.Duration {
	return time.Duration(v<<ackDelayExponent) * time.Microsecond
}

func parseAckFrame(data []byte) (*AckFrame, int, error) {
	pos := 0
	largest, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n

	delay, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n

	numRanges, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n

	firstRangeLen, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n

	if firstRangeLen > largest {
		return nil, 0, errors.New("invalid ack range: underflow")
	}
	f := &AckFrame{DelayTime: decodeAckDelay(delay)}
	smallest := protocol.PacketNumber(largest - firstRangeLen)
	f.AckRanges = append(f.AckRanges, AckRange{Smallest: smallest, Largest: protocol.PacketNumber(largest)})

	for i := uint64(0); i < numRanges; i++ {
		gap, n, err := quicvarint.Parse(data[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n
		rangeLen, n, err := quicvarint.Parse(data[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n

		if uint64(smallest) < gap+2+rangeLen {
			return nil, 0, errors.New("invalid ack range: underflow")
		}
		newLargest := protocol.PacketNumber(uint64(smallest) - gap - 2)
		newSmallest := protocol.PacketNumber(uint64(newLargest) - rangeLen)
		f.AckRanges = append(f.AckRanges, AckRange{Smallest: newSmallest, Largest: newLargest})
		smallest = newSmallest
	}
	return f, pos, nil
}
