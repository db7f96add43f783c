package qerr

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransportErrorString(t *testing.T) {
	t.Run("with message", func(t *testing.T) {
		err := NewError(FlowControlError, "foobar")
		require.Equal(t, "FLOW_CONTROL_ERROR (local): foobar", err.Error())
	})

	t.Run("without message", func(t *testing.T) {
		err := &TransportError{ErrorCode: FlowControlError}
		require.Equal(t, "FLOW_CONTROL_ERROR (local)", err.Error())
	})

	t.Run("remote with frame type", func(t *testing.T) {
		err := &TransportError{Remote: true, ErrorCode: FlowControlError, FrameType: 0x1337}
		require.Equal(t, "FLOW_CONTROL_ERROR (remote) (frame type: 0x1337)", err.Error())
	})

	t.Run("with frame type and message", func(t *testing.T) {
		err := NewErrorWithFrameType(FlowControlError, "foobar", 0x1337)
		require.Equal(t, "FLOW_CONTROL_ERROR (local) (frame type: 0x1337): foobar", err.Error())
	})
}

func TestApplicationErrorString(t *testing.T) {
	err := &ApplicationError{ErrorCode: 0x42, ErrorMessage: "foobar"}
	require.Equal(t, "Application error 0x42 (local): foobar", err.Error())

	err2 := &ApplicationError{ErrorCode: 0x42, Remote: true}
	require.Equal(t, "Application error 0x42 (remote)", err2.Error())
}

func TestTimeoutErrorsAreNetTimeouts(t *testing.T) {
	var err error = &IdleTimeoutError{}
	nerr, ok := err.(net.Error)
	require.True(t, ok)
	require.True(t, nerr.Timeout())

	err = &HandshakeTimeoutError{}
	nerr, ok = err.(net.Error)
	require.True(t, ok)
	require.True(t, nerr.Timeout())
}

func TestErrorsAreNetErrClosed(t *testing.T) {
	require.True(t, errors.Is(&TransportError{}, net.ErrClosed))
	require.True(t, errors.Is(&ApplicationError{}, net.ErrClosed))
	require.True(t, errors.Is(&IdleTimeoutError{}, net.ErrClosed))
	require.True(t, errors.Is(&HandshakeTimeoutError{}, net.ErrClosed))
	require.True(t, errors.Is(&VersionNegotiationError{}, net.ErrClosed))
}

func TestErrorCodeString(t *testing.T) {
	require.Equal(t, "FLOW_CONTROL_ERROR", FlowControlError.String())
	require.Equal(t, "PROTOCOL_VIOLATION", ProtocolViolation.String())
}

func TestVersionNegotiationErrorString(t *testing.T) {
	err := &VersionNegotiationError{Ours: []uint32{2, 3}, Theirs: []uint32{4, 5, 6}}
	require.Contains(t, err.Error(), "no compatible QUIC version found")
}
