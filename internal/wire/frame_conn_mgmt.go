package wire

import (
	"errors"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/quicvarint"
)

var errShortBuffer = errors.New("wire: buffer too short")

// RstStreamFrame abruptly terminates the sending side of a stream.
type RstStreamFrame struct {
	StreamID   protocol.StreamID
	ErrorCode  uint16
	FinalOffset protocol.ByteCount
}

func (f *RstStreamFrame) Append(b []byte, _ uint32) ([]byte, error) {
	b = quicvarint.Append(b, uint64(FrameTypeRstStream))
	b = quicvarint.Append(b, uint64(f.StreamID))
	b = append(b, byte(f.ErrorCode>>8), byte(f.ErrorCode))
	return quicvarint.Append(b, uint64(f.FinalOffset)), nil
}

func (f *RstStreamFrame) Length(_ uint32) protocol.ByteCount {
	return protocol.ByteCount(quicvarint.Len(uint64(FrameTypeRstStream)) +
		quicvarint.Len(uint64(f.StreamID)) + 2 + quicvarint.Len(uint64(f.FinalOffset)))
}

func parseRstStreamFrame(data []byte) (*RstStreamFrame, int, error) {
	pos := 0
	sid, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n
	if len(data)-pos < 2 {
		return nil, 0, errShortBuffer
	}
	errorCode := uint16(data[pos])<<8 | uint16(data[pos+1])
	pos += 2
	offset, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n
	return &RstStreamFrame{StreamID: protocol.StreamID(sid), ErrorCode: errorCode, FinalOffset: protocol.ByteCount(offset)}, pos, nil
}

// StopSendingFrame asks the peer to stop sending on a stream it opened.
type StopSendingFrame struct {
	StreamID  protocol.StreamID
	ErrorCode uint16
}

func (f *StopSendingFrame) Append(b []byte, _ uint32) ([]byte, error) {
	b = quicvarint.Append(b, uint64(FrameTypeStopSending))
	b = quicvarint.Append(b, uint64(f.StreamID))
	return append(b, byte(f.ErrorCode>>8), byte(f.ErrorCode)), nil
}

func (f *StopSendingFrame) Length(_ uint32) protocol.ByteCount {
	return protocol.ByteCount(quicvarint.Len(uint64(FrameTypeStopSending)) + quicvarint.Len(uint64(f.StreamID)) + 2)
}

func parseStopSendingFrame(data []byte) (*StopSendingFrame, int, error) {
	pos := 0
	sid, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n
	if len(data)-pos < 2 {
		return nil, 0, errShortBuffer
	}
	errorCode := uint16(data[pos])<<8 | uint16(data[pos+1])
	pos += 2
	return &StopSendingFrame{StreamID: protocol.StreamID(sid), ErrorCode: errorCode}, pos, nil
}

// NewConnectionIDFrame offers the peer an additional connection ID it may
// use as the destination of future packets, alongside its stateless reset
// token.
type NewConnectionIDFrame struct {
	Sequence     uint64
	ConnectionID protocol.ConnectionID
	StatelessResetToken [16]byte
}

func (f *NewConnectionIDFrame) Append(b []byte, _ uint32) ([]byte, error) {
	b = quicvarint.Append(b, uint64(FrameTypeNewConnectionID))
	b = quicvarint.Append(b, f.Sequence)
	b = append(b, byte(f.ConnectionID.Len()))
	b = append(b, f.ConnectionID.Bytes()...)
	b = append(b, f.StatelessResetToken[:]...)
	return b, nil
}

func (f *NewConnectionIDFrame) Length(_ uint32) protocol.ByteCount {
	return protocol.ByteCount(quicvarint.Len(uint64(FrameTypeNewConnectionID)) +
		quicvarint.Len(f.Sequence) + 1 + f.ConnectionID.Len() + 16)
}

func parseNewConnectionIDFrame(data []byte) (*NewConnectionIDFrame, int, error) {
	pos := 0
	seq, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n
	if pos >= len(data) {
		return nil, 0, errShortBuffer
	}
	cidLen := int(data[pos])
	pos++
	if len(data)-pos < cidLen+16 {
		return nil, 0, errShortBuffer
	}
	cid := make(protocol.ConnectionID, cidLen)
	copy(cid, data[pos:pos+cidLen])
	pos += cidLen
	var token [16]byte
	copy(token[:], data[pos:pos+16])
	pos += 16
	return &NewConnectionIDFrame{Sequence: seq, ConnectionID: cid, StatelessResetToken: token}, pos, nil
}

// PathChallengeFrame and PathResponseFrame carry an 8-byte nonce used to
// validate reachability of a peer address, e.g. after a migration.
type PathChallengeFrame struct {
	Data [8]byte
}

func (f *PathChallengeFrame) Append(b []byte, _ uint32) ([]byte, error) {
	b = quicvarint.Append(b, uint64(FrameTypePathChallenge))
	return append(b, f.Data[:]...), nil
}

func (f *PathChallengeFrame) Length(_ uint32) protocol.ByteCount {
	return protocol.ByteCount(quicvarint.Len(uint64(FrameTypePathChallenge)) + 8)
}

func parsePathChallengeFrame(data []byte) (*PathChallengeFrame, int, error) {
	if len(data) < 8 {
		return nil, 0, errShortBuffer
	}
	var f PathChallengeFrame
	copy(f.Data[:], data[:8])
	return &f, 8, nil
}

type PathResponseFrame struct {
	Data [8]byte
}

func (f *PathResponseFrame) Append(b []byte, _ uint32) ([]byte, error) {
	b = quicvarint.Append(b, uint64(FrameTypePathResponse))
	return append(b, f.Data[:]...), nil
}

func (f *PathResponseFrame) Length(_ uint32) protocol.ByteCount {
	return protocol.ByteCount(quicvarint.Len(uint64(FrameTypePathResponse)) + 8)
}

func parsePathResponseFrame(data []byte) (*PathResponseFrame, int, error) {
	if len(data) < 8 {
		return nil, 0, errShortBuffer
	}
	var f PathResponseFrame
	copy(f.Data[:], data[:8])
	return &f, 8, nil
}
