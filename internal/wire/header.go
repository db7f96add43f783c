package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/quicvarint"
)

const (
	longHeaderFixedBit  = 0x80
	shortHeaderFixedBit = 0x40
)

// pnLenToBits maps a PacketNumberLen to its 2-bit wire encoding;
// bitsToPNLen maps it back.
func pnLenToBits(l protocol.PacketNumberLen) byte {
	switch l {
	case protocol.PacketNumberLen1:
		return 0x0
	case protocol.PacketNumberLen2:
		return 0x1
	case protocol.PacketNumberLen4:
		return 0x2
	default:
		panic(fmt.Sprintf("invalid packet number length: %d", l))
	}
}

func bitsToPNLen(b byte) (protocol.PacketNumberLen, error) {
	switch b & 0x3 {
	case 0x0:
		return protocol.PacketNumberLen1, nil
	case 0x1:
		return protocol.PacketNumberLen2, nil
	case 0x2:
		return protocol.PacketNumberLen4, nil
	default:
		return 0, &ReservedBitsError{Msg: "reserved packet number length 0b11"}
	}
}

// ReservedBitsError is returned when a header uses a reserved bit pattern.
// Callers drop the packet; it does not close the connection with a
// protocol violation.
type ReservedBitsError struct{ Msg string }

func (e *ReservedBitsError) Error() string { return "reserved bits set: " + e.Msg }

// Header is the long-header form used for Initial, 0-RTT, Handshake and
// Retry packets, and for Version Negotiation.
type Header struct {
	IsVersionNegotiation bool
	Type                 protocol.PacketType
	Version              uint32
	DestConnectionID     protocol.ConnectionID
	SrcConnectionID      protocol.ConnectionID

	// Valid only when !IsVersionNegotiation.
	PacketNumberLen protocol.PacketNumberLen
	PacketNumber    protocol.PacketNumber
	Length          protocol.ByteCount

	// Valid only when IsVersionNegotiation.
	SupportedVersions []uint32
}

func packetTypeToBits(t protocol.PacketType) byte {
	switch t {
	case protocol.PacketTypeInitial:
		return 0x0
	case protocol.PacketType0RTT:
		return 0x1
	case protocol.PacketTypeHandshake:
		return 0x2
	case protocol.PacketTypeRetry:
		return 0x3
	default:
		panic(fmt.Sprintf("invalid packet type: %d", t))
	}
}

func bitsToPacketType(b byte) (protocol.PacketType, error) {
	switch b & 0x3 {
	case 0x0:
		return protocol.PacketTypeInitial, nil
	case 0x1:
		return protocol.PacketType0RTT, nil
	case 0x2:
		return protocol.PacketTypeHandshake, nil
	case 0x3:
		return protocol.PacketTypeRetry, nil
	}
	panic("unreachable")
}

// AppendLong serializes a long header. The packet number field is written
// using h.PacketNumberLen bytes of h.PacketNumber's truncated form; callers
// that need header protection write the plaintext form first and mask it
// in place afterwards.
func (h *Header) AppendLong(b []byte) ([]byte, error) {
	if h.IsVersionNegotiation {
		b = append(b, longHeaderFixedBit)
		b = appendUint32(b, 0)
		b = appendConnectionIDs(b, h.DestConnectionID, h.SrcConnectionID)
		for _, v := range h.SupportedVersions {
			b = appendUint32(b, v)
		}
		return b, nil
	}

	typeByte := longHeaderFixedBit | (packetTypeToBits(h.Type) << 2) | pnLenToBits(h.PacketNumberLen)
	b = append(b, typeByte)
	b = appendUint32(b, h.Version)
	b = appendConnectionIDs(b, h.DestConnectionID, h.SrcConnectionID)
	if h.Type != protocol.PacketTypeRetry {
		b = quicvarint.Append(b, uint64(h.Length))
		b = appendTruncatedPacketNumber(b, h.PacketNumber, h.PacketNumberLen)
	}
	return b, nil
}

func appendConnectionIDs(b []byte, dest, src protocol.ConnectionID) []byte {
	destNibble, err := protocol.EncodeConnectionIDLenNibble(dest.Len())
	if err != nil {
		destNibble = 0
	}
	srcNibble, err := protocol.EncodeConnectionIDLenNibble(src.Len())
	if err != nil {
		srcNibble = 0
	}
	b = append(b, (destNibble<<4)|srcNibble)
	b = append(b, dest.Bytes()...)
	b = append(b, src.Bytes()...)
	return b
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendTruncatedPacketNumber(b []byte, pn protocol.PacketNumber, l protocol.PacketNumberLen) []byte {
	v := protocol.EncodePacketNumber(pn, l)
	switch l {
	case protocol.PacketNumberLen1:
		return append(b, byte(v))
	case protocol.PacketNumberLen2:
		return append(b, byte(v>>8), byte(v))
	case protocol.PacketNumberLen4:
		return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	default:
		panic(fmt.Sprintf("invalid packet number length: %d", l))
	}
}

func readTruncatedPacketNumber(r io.Reader, l protocol.PacketNumberLen) (protocol.PacketNumber, error) {
	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	var v uint64
	for _, c := range buf {
		v = v<<8 | uint64(c)
	}
	return protocol.PacketNumber(v), nil
}

// ParseHeader parses a long or short header from the front of data. It does
// not remove header protection; the packet number and type byte returned
// for a protected packet are still masked and must be unmasked by the
// caller before use.
func ParseHeader(data []byte, shortHeaderConnIDLen int) (*Header, int, error) {
	if len(data) == 0 {
		return nil, 0, io.EOF
	}
	firstByte := data[0]
	if firstByte&longHeaderFixedBit == 0 {
		return parseShortHeader(data, shortHeaderConnIDLen)
	}
	return parseLongHeader(data)
}

func parseLongHeader(data []byte) (*Header, int, error) {
	r := bytes.NewReader(data)
	firstByte, _ := r.ReadByte()

	var versionBuf [4]byte
	if _, err := io.ReadFull(r, versionBuf[:]); err != nil {
		return nil, 0, err
	}
	version := uint32(versionBuf[0])<<24 | uint32(versionBuf[1])<<16 | uint32(versionBuf[2])<<8 | uint32(versionBuf[3])

	lenByte, err := r.ReadByte()
	if err != nil {
		return nil, 0, err
	}
	destLen := protocol.DecodeConnectionIDLenNibble(lenByte >> 4)
	srcLen := protocol.DecodeConnectionIDLenNibble(lenByte & 0xf)

	destCID, err := protocol.ReadConnectionID(r, destLen)
	if err != nil {
		return nil, 0, err
	}
	srcCID, err := protocol.ReadConnectionID(r, srcLen)
	if err != nil {
		return nil, 0, err
	}

	h := &Header{
		Version:          version,
		DestConnectionID: destCID,
		SrcConnectionID:  srcCID,
	}

	if version == 0 {
		h.IsVersionNegotiation = true
		remaining := data[len(data)-r.Len():]
		if len(remaining)%4 != 0 {
			return nil, 0, fmt.Errorf("invalid version negotiation packet length")
		}
		for i := 0; i < len(remaining); i += 4 {
			h.SupportedVersions = append(h.SupportedVersions, uint32(remaining[i])<<24|uint32(remaining[i+1])<<16|uint32(remaining[i+2])<<8|uint32(remaining[i+3]))
		}
		return h, len(data) - r.Len(), nil
	}

	pt, err := bitsToPacketType(firstByte >> 2)
	if err != nil {
		return nil, 0, err
	}
	h.Type = pt

	if pt == protocol.PacketTypeRetry {
		return h, len(data) - r.Len(), nil
	}

	pnLen, err := bitsToPNLen(firstByte)
	if err != nil {
		return nil, 0, err
	}
	h.PacketNumberLen = pnLen

	length, err := quicvarint.Read(quicvarint.NewReader(r))
	if err != nil {
		return nil, 0, err
	}
	h.Length = protocol.ByteCount(length)

	pn, err := readTruncatedPacketNumber(r, pnLen)
	if err != nil {
		return nil, 0, err
	}
	h.PacketNumber = pn

	return h, len(data) - r.Len(), nil
}

func parseShortHeader(data []byte, connIDLen int) (*Header, int, error) {
	r := bytes.NewReader(data)
	firstByte, _ := r.ReadByte()
	if firstByte&shortHeaderFixedBit == 0 {
		return nil, 0, &ReservedBitsError{Msg: "short header fixed bit unset"}
	}
	if firstByte&0x18 != 0 {
		return nil, 0, &ReservedBitsError{Msg: "short header reserved bits set"}
	}
	pnLen, err := bitsToPNLen(firstByte)
	if err != nil {
		return nil, 0, err
	}

	destCID, err := protocol.ReadConnectionID(r, connIDLen)
	if err != nil {
		return nil, 0, err
	}
	pn, err := readTruncatedPacketNumber(r, pnLen)
	if err != nil {
		return nil, 0, err
	}

	h := &Header{
		Type:             protocol.PacketType(0xff), // short header, no long-header type
		DestConnectionID: destCID,
		PacketNumberLen:  pnLen,
		PacketNumber:     pn,
	}
	return h, len(data) - r.Len(), nil
}

// AppendShort serializes a short header. spin is the latency-spin bit.
func AppendShort(b []byte, destCID protocol.ConnectionID, pn protocol.PacketNumber, pnLen protocol.PacketNumberLen, spin bool) []byte {
	firstByte := shortHeaderFixedBit | pnLenToBits(pnLen)
	if spin {
		firstByte |= 0x20
	}
	b = append(b, firstByte)
	b = append(b, destCID.Bytes()...)
	b = appendTruncatedPacketNumber(b, pn, pnLen)
	return b
}

// IsLongHeaderPacket reports whether the first byte of a datagram begins a
// long-header packet.
func IsLongHeaderPacket(firstByte byte) bool {
	return firstByte&longHeaderFixedBit != 0
}
