package quic

import (
	"fmt"

	"github.com/draftquic/draftquic/internal/handshake"
	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/wire"
)

// unpackedPacket is one packet's worth of decrypted, parsed content, ready
// for the connection's frame dispatch loop.
type unpackedPacket struct {
	isVersionNegotiation bool
	header               *wire.Header
	packetNumber         protocol.PacketNumber
	encLevel             protocol.EncryptionLevel
	frames               []wire.Frame

	// consumed is how many bytes of the input datagram this packet used,
	// so the caller can advance past it to look for a coalesced packet.
	consumed int
}

// packetUnpacker removes header protection and AEAD-decrypts one packet at
// a time. It tracks the largest packet number it has seen per encryption
// level, since recovering a truncated packet number requires a nearby
// known-good reference point. anyRcvd distinguishes "never seen a packet at
// this level" from having actually seen packet number 0.
type packetUnpacker struct {
	largestRcvd map[protocol.EncryptionLevel]protocol.PacketNumber
	anyRcvd     map[protocol.EncryptionLevel]bool
}

func newPacketUnpacker() *packetUnpacker {
	return &packetUnpacker{
		largestRcvd: make(map[protocol.EncryptionLevel]protocol.PacketNumber),
		anyRcvd:     make(map[protocol.EncryptionLevel]bool),
	}
}

// Unpack parses the header at the front of data, removes header
// protection, decrypts the payload and parses its frames. shortHeaderConnIDLen
// is the length of the connection IDs this endpoint hands out, needed to
// know where a short header's destination connection ID ends.
func (u *packetUnpacker) Unpack(data []byte, shortHeaderConnIDLen int, crypto *handshake.CryptoSetup) (*unpackedPacket, error) {
	h, consumedGuess, err := wire.ParseHeader(data, shortHeaderConnIDLen)
	if err != nil {
		return nil, err
	}
	if h.IsVersionNegotiation {
		return &unpackedPacket{isVersionNegotiation: true, header: h, consumed: len(data)}, nil
	}
	if h.Type == protocol.PacketTypeRetry {
		return &unpackedPacket{header: h, consumed: len(data)}, nil
	}

	level := encLevelForHeader(h)
	opener, err := crypto.GetOpenerWithEncryptionLevel(level)
	if err != nil {
		return nil, err
	}

	// Everything up to the packet number field (version, connection IDs,
	// and for long headers the Length varint) is sent unprotected, so this
	// offset is correct regardless of whether the as-parsed
	// PacketNumberLen reflects the true, still-masked value.
	pnFieldStart := consumedGuess - int(h.PacketNumberLen)
	if pnFieldStart < 0 || pnFieldStart+4+16 > len(data) {
		return nil, fmt.Errorf("quic: packet too short to sample for header protection")
	}
	sample := data[pnFieldStart+4 : pnFieldStart+4+16]

	// The first byte must be unmasked before its packet-number-length bits
	// can be trusted, but unmasking also requires knowing how many packet
	// number bytes to unmask together with it - so this happens in two
	// calls: one that only touches the first byte, then one (with a
	// discarded first-byte target) that unmasks exactly the now-known
	// number of packet number bytes.
	opener.DecryptHeader(sample, &data[0], nil)
	pnLen, err := pnLenFromProtectedBits(data[0])
	if err != nil {
		return nil, err
	}
	var discard byte
	pnBytes := data[pnFieldStart : pnFieldStart+int(pnLen)]
	opener.DecryptHeader(sample, &discard, pnBytes)

	wireValue := decodeTruncatedBigEndian(pnBytes)
	largest := protocol.InvalidPacketNumber
	if u.anyRcvd[level] {
		largest = u.largestRcvd[level]
	}
	pn := protocol.DecodePacketNumber(pnLen, largest, protocol.PacketNumber(wireValue))

	headerLen := pnFieldStart + int(pnLen)
	var packetEnd int
	if level == protocol.Encryption1RTT {
		// short headers carry no explicit length, so they always run to
		// the end of the UDP datagram; a 1-RTT packet is never coalesced
		// with anything after it.
		packetEnd = len(data)
	} else {
		packetEnd = pnFieldStart + int(h.Length)
		if packetEnd > len(data) {
			return nil, fmt.Errorf("quic: packet length %d exceeds datagram", h.Length)
		}
	}

	associatedData := data[:headerLen]
	ciphertext := data[headerLen:packetEnd]

	plaintext, err := openAt(crypto, level, ciphertext, pn, associatedData)
	if err != nil {
		return nil, err
	}
	if !u.anyRcvd[level] || pn > u.largestRcvd[level] {
		u.largestRcvd[level] = pn
		u.anyRcvd[level] = true
	}

	frames, err := parseFrames(plaintext)
	if err != nil {
		return nil, err
	}

	return &unpackedPacket{
		header:       h,
		packetNumber: pn,
		encLevel:     level,
		frames:       frames,
		consumed:     packetEnd,
	}, nil
}

func encLevelForHeader(h *wire.Header) protocol.EncryptionLevel {
	switch h.Type {
	case protocol.PacketTypeInitial:
		return protocol.EncryptionInitial
	case protocol.PacketTypeHandshake:
		return protocol.EncryptionHandshake
	case protocol.PacketType0RTT:
		return protocol.Encryption0RTT
	default:
		return protocol.Encryption1RTT
	}
}

func openAt(crypto *handshake.CryptoSetup, level protocol.EncryptionLevel, ciphertext []byte, pn protocol.PacketNumber, ad []byte) ([]byte, error) {
	switch level {
	case protocol.EncryptionInitial:
		return crypto.OpenInitial(nil, ciphertext, pn, ad)
	case protocol.EncryptionHandshake:
		return crypto.OpenHandshake(nil, ciphertext, pn, ad)
	default:
		return crypto.Open1RTT(nil, ciphertext, pn, ad)
	}
}

// pnLenFromProtectedBits reads the now-unmasked packet number length from
// the low two bits of a header's first byte.
func pnLenFromProtectedBits(firstByte byte) (protocol.PacketNumberLen, error) {
	switch firstByte & 0x3 {
	case 0x0:
		return protocol.PacketNumberLen1, nil
	case 0x1:
		return protocol.PacketNumberLen2, nil
	case 0x2:
		return protocol.PacketNumberLen4, nil
	default:
		return 0, fmt.Errorf("quic: reserved packet number length bits")
	}
}

func decodeTruncatedBigEndian(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// parseFrames splits a packet's decrypted payload into its constituent
// frames.
func parseFrames(data []byte) ([]wire.Frame, error) {
	var frames []wire.Frame
	for len(data) > 0 {
		f, n, err := wire.ParseNextFrame(data, uint32(protocol.VersionTLS))
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
		data = data[n:]
	}
	return frames, nil
}
