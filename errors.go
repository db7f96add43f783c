package quic

import (
	"errors"
	"fmt"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/qerr"
)

// errStreamDeadline is returned by Stream.Read/Write once the deadline set
// by SetReadDeadline/SetWriteDeadline has passed.
var errStreamDeadline = errors.New("quic: deadline exceeded")

// TransportError is a protocol-level error, either detected locally or
// reported by the peer in a CONNECTION_CLOSE frame.
type TransportError = qerr.TransportError

// ApplicationError is an application-level error reported in an
// APPLICATION_CLOSE frame.
type ApplicationError = qerr.ApplicationError

// StreamErrorCode is the application-defined code carried in a
// RST_STREAM/STOP_SENDING frame.
type StreamErrorCode uint64

// StreamError is returned by Stream methods after the stream has been
// reset, either locally or by the peer.
type StreamError struct {
	StreamID  protocol.StreamID
	ErrorCode StreamErrorCode
	Remote    bool
}

func (e *StreamError) Error() string {
	who := "local"
	if e.Remote {
		who = "remote"
	}
	return fmt.Sprintf("stream %s reset (%s), error code %#x", e.StreamID, who, uint64(e.ErrorCode))
}
