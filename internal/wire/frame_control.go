package wire

import (
	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/quicvarint"
)

// PaddingFrame is one or more zero bytes used to pad a packet to a minimum
// size. A single PaddingFrame value represents a run of n zero bytes.
type PaddingFrame struct {
	NumBytes protocol.ByteCount
}

func (f *PaddingFrame) Append(b []byte, _ uint32) ([]byte, error) {
	for i := protocol.ByteCount(0); i < f.NumBytes; i++ {
		b = append(b, 0x00)
	}
	return b, nil
}

func (f *PaddingFrame) Length(_ uint32) protocol.ByteCount { return f.NumBytes }

// PingFrame elicits an acknowledgment without carrying any other payload.
type PingFrame struct{}

func (f *PingFrame) Append(b []byte, _ uint32) ([]byte, error) {
	return quicvarint.Append(b, uint64(FrameTypePing)), nil
}

func (f *PingFrame) Length(_ uint32) protocol.ByteCount {
	return protocol.ByteCount(quicvarint.Len(uint64(FrameTypePing)))
}

// MaxDataFrame raises the connection-level flow control limit.
type MaxDataFrame struct {
	MaximumData protocol.ByteCount
}

func (f *MaxDataFrame) Append(b []byte, _ uint32) ([]byte, error) {
	b = quicvarint.Append(b, uint64(FrameTypeMaxData))
	return quicvarint.Append(b, uint64(f.MaximumData)), nil
}

func (f *MaxDataFrame) Length(_ uint32) protocol.ByteCount {
	return protocol.ByteCount(quicvarint.Len(uint64(FrameTypeMaxData)) + quicvarint.Len(uint64(f.MaximumData)))
}

func parseMaxDataFrame(data []byte) (*MaxDataFrame, int, error) {
	v, n, err := quicvarint.Parse(data)
	if err != nil {
		return nil, 0, err
	}
	return &MaxDataFrame{MaximumData: protocol.ByteCount(v)}, n, nil
}

// MaxStreamDataFrame raises the flow control limit for a single stream.
type MaxStreamDataFrame struct {
	StreamID          protocol.StreamID
	MaximumStreamData protocol.ByteCount
}

func (f *MaxStreamDataFrame) Append(b []byte, _ uint32) ([]byte, error) {
	b = quicvarint.Append(b, uint64(FrameTypeMaxStreamData))
	b = quicvarint.Append(b, uint64(f.StreamID))
	return quicvarint.Append(b, uint64(f.MaximumStreamData)), nil
}

func (f *MaxStreamDataFrame) Length(_ uint32) protocol.ByteCount {
	return protocol.ByteCount(quicvarint.Len(uint64(FrameTypeMaxStreamData)) +
		quicvarint.Len(uint64(f.StreamID)) + quicvarint.Len(uint64(f.MaximumStreamData)))
}

func parseMaxStreamDataFrame(data []byte) (*MaxStreamDataFrame, int, error) {
	pos := 0
	sid, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n
	max, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n
	return &MaxStreamDataFrame{StreamID: protocol.StreamID(sid), MaximumStreamData: protocol.ByteCount(max)}, pos, nil
}

// MaxStreamIDFrame raises the limit on the number of streams of one type
// the peer may open.
type MaxStreamIDFrame struct {
	StreamID protocol.StreamID
}

func (f *MaxStreamIDFrame) Append(b []byte, _ uint32) ([]byte, error) {
	b = quicvarint.Append(b, uint64(FrameTypeMaxStreamID))
	return quicvarint.Append(b, uint64(f.StreamID)), nil
}

func (f *MaxStreamIDFrame) Length(_ uint32) protocol.ByteCount {
	return protocol.ByteCount(quicvarint.Len(uint64(FrameTypeMaxStreamID)) + quicvarint.Len(uint64(f.StreamID)))
}

func parseMaxStreamIDFrame(data []byte) (*MaxStreamIDFrame, int, error) {
	v, n, err := quicvarint.Parse(data)
	if err != nil {
		return nil, 0, err
	}
	return &MaxStreamIDFrame{StreamID: protocol.StreamID(v)}, n, nil
}

// BlockedFrame signals that the sender is connection-flow-control blocked.
type BlockedFrame struct {
	DataLimit protocol.ByteCount
}

func (f *BlockedFrame) Append(b []byte, _ uint32) ([]byte, error) {
	b = quicvarint.Append(b, uint64(FrameTypeBlocked))
	return quicvarint.Append(b, uint64(f.DataLimit)), nil
}

func (f *BlockedFrame) Length(_ uint32) protocol.ByteCount {
	return protocol.ByteCount(quicvarint.Len(uint64(FrameTypeBlocked)) + quicvarint.Len(uint64(f.DataLimit)))
}

func parseBlockedFrame(data []byte) (*BlockedFrame, int, error) {
	v, n, err := quicvarint.Parse(data)
	if err != nil {
		return nil, 0, err
	}
	return &BlockedFrame{DataLimit: protocol.ByteCount(v)}, n, nil
}

// StreamBlockedFrame signals that the sender is stream-flow-control
// blocked on the named stream.
type StreamBlockedFrame struct {
	StreamID  protocol.StreamID
	DataLimit protocol.ByteCount
}

func (f *StreamBlockedFrame) Append(b []byte, _ uint32) ([]byte, error) {
	b = quicvarint.Append(b, uint64(FrameTypeStreamBlocked))
	b = quicvarint.Append(b, uint64(f.StreamID))
	return quicvarint.Append(b, uint64(f.DataLimit)), nil
}

func (f *StreamBlockedFrame) Length(_ uint32) protocol.ByteCount {
	return protocol.ByteCount(quicvarint.Len(uint64(FrameTypeStreamBlocked)) +
		quicvarint.Len(uint64(f.StreamID)) + quicvarint.Len(uint64(f.DataLimit)))
}

func parseStreamBlockedFrame(data []byte) (*StreamBlockedFrame, int, error) {
	pos := 0
	sid, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n
	limit, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n
	return &StreamBlockedFrame{StreamID: protocol.StreamID(sid), DataLimit: protocol.ByteCount(limit)}, pos, nil
}

// StreamIDBlockedFrame signals that the sender has reached its peer-imposed
// limit on the number of streams of one type it may open.
type StreamIDBlockedFrame struct {
	StreamID protocol.StreamID
}

func (f *StreamIDBlockedFrame) Append(b []byte, _ uint32) ([]byte, error) {
	b = quicvarint.Append(b, uint64(FrameTypeStreamIDBlocked))
	return quicvarint.Append(b, uint64(f.StreamID)), nil
}

func (f *StreamIDBlockedFrame) Length(_ uint32) protocol.ByteCount {
	return protocol.ByteCount(quicvarint.Len(uint64(FrameTypeStreamIDBlocked)) + quicvarint.Len(uint64(f.StreamID)))
}

func parseStreamIDBlockedFrame(data []byte) (*StreamIDBlockedFrame, int, error) {
	v, n, err := quicvarint.Parse(data)
	if err != nil {
		return nil, 0, err
	}
	return &StreamIDBlockedFrame{StreamID: protocol.StreamID(v)}, n, nil
}
