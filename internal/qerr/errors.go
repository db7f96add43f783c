package qerr

import (
	"fmt"
	"net"
)

// TransportError is a QUIC-level error: one that's meaningful to the
// transport and gets serialized into a CONNECTION_CLOSE frame. Remote
// indicates the error was reported by the peer rather than detected
// locally.
type TransportError struct {
	Remote       bool
	ErrorCode    ErrorCode
	FrameType    uint64
	ErrorMessage string
}

var _ net.Error = &TransportError{}

// NewError builds a locally-detected transport error.
func NewError(code ErrorCode, msg string) *TransportError {
	return &TransportError{ErrorCode: code, ErrorMessage: msg}
}

// NewErrorWithFrameType builds a locally-detected transport error that
// names the frame type that triggered it.
func NewErrorWithFrameType(code ErrorCode, msg string, frameType uint64) *TransportError {
	return &TransportError{ErrorCode: code, ErrorMessage: msg, FrameType: frameType}
}

func (e *TransportError) Error() string {
	str := e.ErrorCode.String()
	if e.Remote {
		str += " (remote)"
	} else {
		str += " (local)"
	}
	if e.FrameType != 0 {
		str += fmt.Sprintf(" (frame type: %#x)", e.FrameType)
	}
	if e.ErrorMessage != "" {
		str += ": " + e.ErrorMessage
	}
	return str
}

func (e *TransportError) Is(target error) bool { return target == net.ErrClosed }
func (e *TransportError) Timeout() bool         { return false }
func (e *TransportError) Temporary() bool        { return false }

// ApplicationError is an error raised by the application above the
// transport and carried in an APPLICATION_CLOSE frame.
type ApplicationError struct {
	Remote       bool
	ErrorCode    uint16
	ErrorMessage string
}

var _ net.Error = &ApplicationError{}

func (e *ApplicationError) Error() string {
	str := fmt.Sprintf("Application error %#x", e.ErrorCode)
	if e.Remote {
		str += " (remote)"
	} else {
		str += " (local)"
	}
	if e.ErrorMessage != "" {
		str += ": " + e.ErrorMessage
	}
	return str
}

func (e *ApplicationError) Is(target error) bool { return target == net.ErrClosed }
func (e *ApplicationError) Timeout() bool         { return false }
func (e *ApplicationError) Temporary() bool        { return false }

// IdleTimeoutError is returned when a connection is closed because no
// network activity was observed within the idle timeout.
type IdleTimeoutError struct{}

var _ net.Error = &IdleTimeoutError{}

func (e *IdleTimeoutError) Error() string   { return "timeout: no recent network activity" }
func (e *IdleTimeoutError) Is(target error) bool { return target == net.ErrClosed }
func (e *IdleTimeoutError) Timeout() bool    { return true }
func (e *IdleTimeoutError) Temporary() bool  { return true }

// HandshakeTimeoutError is returned when the handshake does not complete
// before its deadline.
type HandshakeTimeoutError struct{}

var _ net.Error = &HandshakeTimeoutError{}

func (e *HandshakeTimeoutError) Error() string   { return "timeout: handshake did not complete in time" }
func (e *HandshakeTimeoutError) Is(target error) bool { return target == net.ErrClosed }
func (e *HandshakeTimeoutError) Timeout() bool    { return true }
func (e *HandshakeTimeoutError) Temporary() bool  { return true }

// NewTimeoutError builds a TransportError that models an RTO-driven
// connection abort (e.g. too many consecutive probe timeouts), keeping the
// wire-visible error code INTERNAL_ERROR.
func NewTimeoutError(msg string) *TransportError {
	return &TransportError{ErrorCode: InternalError, ErrorMessage: "timeout: " + msg}
}

// VersionNegotiationError is returned when no mutually supported version
// could be found during the handshake.
type VersionNegotiationError struct {
	Ours   []uint32
	Theirs []uint32
}

var _ net.Error = &VersionNegotiationError{}

func (e *VersionNegotiationError) Error() string {
	return fmt.Sprintf("no compatible QUIC version found (we support %#x, server offered %#x)", e.Ours, e.Theirs)
}
func (e *VersionNegotiationError) Is(target error) bool { return target == net.ErrClosed }
func (e *VersionNegotiationError) Timeout() bool    { return false }
func (e *VersionNegotiationError) Temporary() bool  { return false }
