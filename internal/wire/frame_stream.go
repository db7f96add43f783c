package wire

import (
	"io"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/quicvarint"
)

// StreamFrame carries application data for one stream.
type StreamFrame struct {
	StreamID protocol.StreamID
	Offset   protocol.ByteCount
	Data     []byte
	Fin      bool

	// DataLenPresent controls whether the length field is written. It is
	// set to true for every frame except, optionally, the last one in a
	// packet, where omitting the length lets the frame fill the packet.
	DataLenPresent bool
}

func (f *StreamFrame) Append(b []byte, _ uint32) ([]byte, error) {
	typeByte := FrameTypeStream
	if f.Offset != 0 {
		typeByte |= streamFrameOffBit
	}
	if f.DataLenPresent {
		typeByte |= streamFrameLenBit
	}
	if f.Fin {
		typeByte |= streamFrameFinBit
	}
	b = quicvarint.Append(b, uint64(typeByte))
	b = quicvarint.Append(b, uint64(f.StreamID))
	if f.Offset != 0 {
		b = quicvarint.Append(b, uint64(f.Offset))
	}
	if f.DataLenPresent {
		b = quicvarint.Append(b, uint64(len(f.Data)))
	}
	b = append(b, f.Data...)
	return b, nil
}

func (f *StreamFrame) Length(_ uint32) protocol.ByteCount {
	l := quicvarint.Len(uint64(FrameTypeStream)) + quicvarint.Len(uint64(f.StreamID))
	if f.Offset != 0 {
		l += quicvarint.Len(uint64(f.Offset))
	}
	if f.DataLenPresent {
		l += quicvarint.Len(uint64(len(f.Data)))
	}
	return protocol.ByteCount(l + len(f.Data))
}

// MaxDataLen returns how many bytes of data would fit in a STREAM frame
// whose header (excluding data) must fit within maxSize.
func (f *StreamFrame) MaxDataLen(maxSize protocol.ByteCount, version uint32) protocol.ByteCount {
	headerLen := f.Length(version) - protocol.ByteCount(len(f.Data))
	if headerLen >= maxSize {
		return 0
	}
	return maxSize - headerLen
}

// parseStreamFrame parses a STREAM frame body (the type byte has already
// been consumed) from data, returning the frame and the number of bytes
// read. When the frame omits its length, it is assumed to extend to the
// end of data.
func parseStreamFrame(data []byte, typ FrameType) (*StreamFrame, int, error) {
	hasOffset := typ&streamFrameOffBit != 0
	hasLen := typ&streamFrameLenBit != 0
	fin := typ&streamFrameFinBit != 0

	pos := 0
	sid, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n

	var offset uint64
	if hasOffset {
		offset, n, err = quicvarint.Parse(data[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n
	}

	var length uint64
	if hasLen {
		length, n, err = quicvarint.Parse(data[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n
	} else {
		length = uint64(len(data) - pos)
	}

	if uint64(len(data)-pos) < length {
		return nil, 0, io.ErrUnexpectedEOF
	}
	frameData := make([]byte, length)
	copy(frameData, data[pos:pos+int(length)])
	pos += int(length)

	return &StreamFrame{
		StreamID:       protocol.StreamID(sid),
		Offset:         protocol.ByteCount(offset),
		Data:           frameData,
		Fin:            fin,
		DataLenPresent: hasLen,
	}, pos, nil
}

// CryptoFrame carries TLS handshake bytes. It has no FIN; handshake data is
// delivered as an ordered byte stream within each crypto epoch.
type CryptoFrame struct {
	Offset protocol.ByteCount
	Data   []byte
}

func (f *CryptoFrame) Append(b []byte, _ uint32) ([]byte, error) {
	b = quicvarint.Append(b, uint64(FrameTypeCrypto))
	b = quicvarint.Append(b, uint64(f.Offset))
	b = quicvarint.Append(b, uint64(len(f.Data)))
	b = append(b, f.Data...)
	return b, nil
}

func (f *CryptoFrame) Length(_ uint32) protocol.ByteCount {
	l := quicvarint.Len(uint64(FrameTypeCrypto)) + quicvarint.Len(uint64(f.Offset)) + quicvarint.Len(uint64(len(f.Data)))
	return protocol.ByteCount(l + len(f.Data))
}

func parseCryptoFrame(data []byte) (*CryptoFrame, int, error) {
	pos := 0
	offset, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n
	length, n, err := quicvarint.Parse(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n
	if uint64(len(data)-pos) < length {
		return nil, 0, io.ErrUnexpectedEOF
	}
	frameData := make([]byte, length)
	copy(frameData, data[pos:pos+int(length)])
	pos += int(length)
	return &CryptoFrame{Offset: protocol.ByteCount(offset), Data: frameData}, pos, nil
}
