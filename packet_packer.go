package quic

import (
	"time"

	"github.com/draftquic/draftquic/internal/ackhandler"
	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/wire"
)

// packetPacker assembles one packet at a time for a given encryption
// level: it drains whatever the connection has queued for that level
// (ACKs, CRYPTO data, control frames and, at 1-RTT, STREAM data), seals
// it, and applies header protection. It always uses a 4-byte packet
// number; this spends a few extra bytes per packet in exchange for never
// having to consult the loss detector's unacknowledged-packet window to
// pick a shorter encoding.
type packetPacker struct {
	conn *Connection

	cryptoOffset map[protocol.EncryptionLevel]protocol.ByteCount
}

func newPacketPacker(conn *Connection) *packetPacker {
	return &packetPacker{
		conn:         conn,
		cryptoOffset: make(map[protocol.EncryptionLevel]protocol.ByteCount),
	}
}

func packetTypeForLevel(level protocol.EncryptionLevel) protocol.PacketType {
	switch level {
	case protocol.EncryptionInitial:
		return protocol.PacketTypeInitial
	case protocol.EncryptionHandshake:
		return protocol.PacketTypeHandshake
	default:
		return protocol.PacketType0RTT
	}
}

// PackPacket builds and seals the next packet at level, or returns a nil
// slice if there's nothing worth sending there right now (either no keys
// installed yet, or nothing queued). When congestionBlocked is set, only an
// ACK frame (which never counts against the congestion window) is eligible
// for inclusion; CRYPTO, control, and STREAM data stay queued untouched.
func (p *packetPacker) PackPacket(level protocol.EncryptionLevel, congestionBlocked bool) ([]byte, error) {
	sealer, err := p.conn.crypto.GetSealerWithEncryptionLevel(level)
	if err != nil {
		return nil, nil
	}

	var frames []wire.Frame
	var ackHandlerFrames []*ackhandler.Frame

	if ack := p.conn.receivedPackets.GetAckFrame(level, true); ack != nil {
		frames = append(frames, ack)
		ackHandlerFrames = append(ackHandlerFrames, &ackhandler.Frame{Frame: ack})
	}

	if !congestionBlocked {
		for _, chunk := range p.conn.crypto.DrainCryptoData(level) {
			cf := &wire.CryptoFrame{Offset: p.cryptoOffset[level], Data: chunk}
			p.cryptoOffset[level] += protocol.ByteCount(len(chunk))
			frames = append(frames, cf)
			ackHandlerFrames = append(ackHandlerFrames, &ackhandler.Frame{Frame: cf})
		}

		for _, f := range p.conn.drainControlFrames(level) {
			frames = append(frames, f)
			ackHandlerFrames = append(ackHandlerFrames, &ackhandler.Frame{Frame: f})
		}

		if level == protocol.Encryption1RTT {
			budget := protocol.MaxPacketBufferSize - 64 // leave room for headers and AEAD overhead
			for _, f := range p.conn.streams.popFrames(budget) {
				frames = append(frames, f)
				ackHandlerFrames = append(ackHandlerFrames, &ackhandler.Frame{Frame: f})
			}
		}
	}

	if len(frames) == 0 {
		return nil, nil
	}

	pnLen := protocol.PacketNumberLen4
	destConnID := p.conn.connIDManager.Current()

	var headerBytes []byte
	isLongHeader := level != protocol.Encryption1RTT

	pn := p.conn.sentPackets.PopPacketNumber(level)

	var payload []byte
	for _, f := range frames {
		payload, err = f.Append(payload, uint32(protocol.VersionTLS))
		if err != nil {
			return nil, err
		}
	}

	if level == protocol.EncryptionInitial && p.conn.perspective == protocol.PerspectiveClient {
		headerEstimate := 1 + 4 + 1 + destConnID.Len() + p.conn.srcConnID.Len() + 2 + int(pnLen)
		total := protocol.ByteCount(headerEstimate + len(payload) + sealer.Overhead())
		if total < protocol.MinInitialPacketSize {
			pad := protocol.MinInitialPacketSize - total
			payload, _ = (&wire.PaddingFrame{NumBytes: pad}).Append(payload, uint32(protocol.VersionTLS))
		}
	}

	if isLongHeader {
		h := &wire.Header{
			Type:             packetTypeForLevel(level),
			Version:          uint32(protocol.VersionTLS),
			DestConnectionID: destConnID,
			SrcConnectionID:  p.conn.srcConnID,
			PacketNumberLen:  pnLen,
			PacketNumber:     pn,
			Length:           protocol.ByteCount(int(pnLen) + len(payload) + sealer.Overhead()),
		}
		headerBytes, err = h.AppendLong(nil)
		if err != nil {
			return nil, err
		}
	} else {
		headerBytes = wire.AppendShort(nil, destConnID, pn, pnLen, false)
	}

	pnOffset := len(headerBytes) - int(pnLen)

	sealed := sealer.Seal(nil, payload, pn, headerBytes)
	packet := append(headerBytes, sealed...)

	if pnOffset+4+16 <= len(packet) {
		sample := packet[pnOffset+4 : pnOffset+4+16]
		sealer.EncryptHeader(sample, &packet[0], packet[pnOffset:pnOffset+int(pnLen)])
	}

	p.conn.sentPackets.SentPacket(&ackhandler.Packet{
		PacketNumber:    pn,
		Frames:          ackHandlerFrames,
		Length:          protocol.ByteCount(len(packet)),
		EncryptionLevel: level,
		SendTime:        time.Now(),
	})

	return packet, nil
}
