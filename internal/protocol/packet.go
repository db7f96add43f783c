package protocol

import "fmt"

// ByteCount counts bytes, used for flow control, congestion control, and
// packet/frame lengths.
type ByteCount int64

// MaxByteCount is used where "no limit" needs a concrete sentinel.
const MaxByteCount = ByteCount(1<<62 - 1)

// PacketType distinguishes long-header packet types.
type PacketType uint8

const (
	PacketTypeInitial PacketType = iota
	PacketTypeRetry
	PacketTypeHandshake
	PacketType0RTT
)

func (t PacketType) String() string {
	switch t {
	case PacketTypeInitial:
		return "Initial"
	case PacketTypeRetry:
		return "Retry"
	case PacketTypeHandshake:
		return "Handshake"
	case PacketType0RTT:
		return "0-RTT"
	default:
		return fmt.Sprintf("unknown packet type %d", t)
	}
}

// EncryptionLevel identifies one of the four crypto epochs. Draft-12
// collapses 0-RTT and 1-RTT into a shared packet-number space, but keeps
// them keyed separately.
type EncryptionLevel uint8

const (
	EncryptionUnspecified EncryptionLevel = iota
	EncryptionInitial
	EncryptionHandshake
	Encryption0RTT
	Encryption1RTT
)

func (e EncryptionLevel) String() string {
	switch e {
	case EncryptionInitial:
		return "Initial"
	case EncryptionHandshake:
		return "Handshake"
	case Encryption0RTT:
		return "0-RTT"
	case Encryption1RTT:
		return "1-RTT"
	default:
		return "unknown"
	}
}

// IsLongHeaderLevel reports whether packets at this level use a long
// header.
func (e EncryptionLevel) IsLongHeaderLevel() bool {
	return e == EncryptionInitial || e == EncryptionHandshake || e == Encryption0RTT
}
