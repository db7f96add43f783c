package protocol

import "fmt"

// StreamID is a 62-bit stream identifier. Its two low bits partition the
// stream ID space: bit 0 selects the initiator (0 client, 1 server), bit 1
// selects unidirectional (1) vs bidirectional (0).
type StreamID uint64

// StreamType selects a quadrant of the stream ID space.
type StreamType uint8

const (
	StreamTypeClientBidi StreamType = 0
	StreamTypeServerBidi StreamType = 1
	StreamTypeClientUni  StreamType = 2
	StreamTypeServerUni  StreamType = 3
)

// InitiatedBy reports which perspective opened the stream.
func (s StreamID) InitiatedBy() Perspective {
	if s&0x1 == 0 {
		return PerspectiveClient
	}
	return PerspectiveServer
}

// IsUniDirectional reports whether the stream is unidirectional.
func (s StreamID) IsUniDirectional() bool {
	return s&0x2 > 0
}

// Type returns the stream's quadrant.
func (s StreamID) Type() StreamType {
	return StreamType(s & 0x3)
}

// StreamTypeFor returns the quadrant tag for a given perspective and
// directionality, matching the low two bits of a StreamID in that quadrant.
func StreamTypeFor(pers Perspective, unidirectional bool) StreamType {
	var t StreamType
	if pers == PerspectiveServer {
		t |= 0x1
	}
	if unidirectional {
		t |= 0x2
	}
	return t
}

// FirstStreamID returns the lowest stream ID belonging to the given
// quadrant.
func FirstStreamID(t StreamType) StreamID {
	return StreamID(t)
}

// Next returns the next stream ID in the same quadrant.
func (s StreamID) Next() StreamID {
	return s + 4
}

func (s StreamID) String() string {
	return fmt.Sprintf("%d", uint64(s))
}
