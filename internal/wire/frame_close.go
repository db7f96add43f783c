package wire

import (
	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/quicvarint"
)

// ConnectionCloseFrame signals a transport-level error and begins the
// draining period.
type ConnectionCloseFrame struct {
	ErrorCode    uint16
	FrameType    uint64
	ReasonPhrase string
}

func (f *ConnectionCloseFrame) Append(b []byte, _ uint32) ([]byte, error) {
	b = quicvarint.Append(b, uint64(FrameTypeConnectionClose))
	b = append(b, byte(f.ErrorCode>>8), byte(f.ErrorCode))
	b = quicvarint.Append(b, f.FrameType)
	b = quicvarint.Append(b, uint64(len(f.ReasonPhrase)))
	b = append(b, []byte(f.ReasonPhrase)...)
	return b, nil
}

func (f *ConnectionCloseFrame) Length(_ uint32) protocol.ByteCount {
	l := quicvarint.Len(uint64(FrameTypeConnectionClose)) + 2 +
		quicvarint.Len(f.FrameType) + quicvarint.Len(uint64(len(f.ReasonPhrase))) + len(f.ReasonPhrase)
	return protocol.ByteCount(l)
}

func parseConnectionCloseFrame(data []byte) (*ConnectionCloseFrame, int, error) {
	if len(data) < 2 {
		return nil, 0, errShortBuffer
	}
	errorCode := uint16(data[0])<<8 | uint16(data[1])
	pos := 2
	frameType, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n
	reasonLen, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n
	if uint64(len(data)-pos) < reasonLen {
		return nil, 0, errShortBuffer
	}
	reason := string(data[pos : pos+int(reasonLen)])
	pos += int(reasonLen)
	return &ConnectionCloseFrame{ErrorCode: errorCode, FrameType: frameType, ReasonPhrase: reason}, pos, nil
}

// ApplicationCloseFrame signals an application-level error; it carries no
// offending frame type since the failure is above the transport.
type ApplicationCloseFrame struct {
	ErrorCode    uint16
	ReasonPhrase string
}

func (f *ApplicationCloseFrame) Append(b []byte, _ uint32) ([]byte, error) {
	b = quicvarint.Append(b, uint64(FrameTypeApplicationClose))
	b = append(b, byte(f.ErrorCode>>8), byte(f.ErrorCode))
	b = quicvarint.Append(b, uint64(len(f.ReasonPhrase)))
	b = append(b, []byte(f.ReasonPhrase)...)
	return b, nil
}

func (f *ApplicationCloseFrame) Length(_ uint32) protocol.ByteCount {
	l := quicvarint.Len(uint64(FrameTypeApplicationClose)) + 2 +
		quicvarint.Len(uint64(len(f.ReasonPhrase))) + len(f.ReasonPhrase)
	return protocol.ByteCount(l)
}

func parseApplicationCloseFrame(data []byte) (*ApplicationCloseFrame, int, error) {
	if len(data) < 2 {
		return nil, 0, errShortBuffer
	}
	errorCode := uint16(data[0])<<8 | uint16(data[1])
	pos := 2
	reasonLen, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n
	if uint64(len(data)-pos) < reasonLen {
		return nil, 0, errShortBuffer
	}
	reason := string(data[pos : pos+int(reasonLen)])
	pos += int(reasonLen)
	return &ApplicationCloseFrame{ErrorCode: errorCode, ReasonPhrase: reason}, pos, nil
}
