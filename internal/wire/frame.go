// Package wire implements the packet and frame codec: long/short header
// parsing and serialization, and encoding/decoding of every frame type
// carried inside a packet's decrypted payload.
package wire

import "github.com/draftquic/draftquic/internal/protocol"

// Frame is a decoded frame ready for dispatch or serialization. Every frame
// concretely implements this interface; there is no dynamic registry, just
// an exhaustive type switch in ParseNextFrame and in the frame handler.
type Frame interface {
	// Append serializes the frame to the end of b.
	Append(b []byte, version uint32) ([]byte, error)
	// Length returns the number of bytes Append would add.
	Length(version uint32) protocol.ByteCount
}

// FrameType identifies a frame's wire tag. Most frame types are a single
// VLIE-encoded byte; STREAM frames use the low three bits as flags.
type FrameType uint64

const (
	FrameTypePadding           FrameType = 0x00
	FrameTypeRstStream         FrameType = 0x01
	FrameTypeConnectionClose   FrameType = 0x02
	FrameTypeApplicationClose  FrameType = 0x03
	FrameTypeMaxData           FrameType = 0x04
	FrameTypeMaxStreamData     FrameType = 0x05
	FrameTypeMaxStreamID       FrameType = 0x06
	FrameTypePing              FrameType = 0x07
	FrameTypeBlocked           FrameType = 0x08
	FrameTypeStreamBlocked     FrameType = 0x09
	FrameTypeStreamIDBlocked   FrameType = 0x0a
	FrameTypeNewConnectionID   FrameType = 0x0b
	FrameTypeStopSending       FrameType = 0x0c
	FrameTypeAck               FrameType = 0x0d
	FrameTypePathChallenge     FrameType = 0x0e
	FrameTypePathResponse      FrameType = 0x0f
	FrameTypeCrypto            FrameType = 0x18
	// FrameTypeStream is the base tag for the STREAM frame family; the low
	// three bits (OFF, LEN, FIN) are ORed on top of it.
	FrameTypeStream FrameType = 0x10

	streamFrameOffBit FrameType = 0x04
	streamFrameLenBit FrameType = 0x02
	streamFrameFinBit FrameType = 0x01
)

func (t FrameType) isStreamType() bool {
	return t >= 0x10 && t <= 0x17
}
