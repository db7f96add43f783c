package flowcontrol

import (
	"time"

	"github.com/draftquic/draftquic/internal/protocol"
)

// StreamFlowController tracks flow control for a single stream plus a
// connection-level controller that every stream's send/receive accounting
// also feeds into.
type StreamFlowController struct {
	baseFlowController

	streamID   protocol.StreamID
	connection *ConnectionFlowController
}

// NewStreamFlowController builds a stream's flow controller. All byte
// accounting is mirrored into connFC, which enforces the connection-wide
// limit in addition to this stream's own.
func NewStreamFlowController(streamID protocol.StreamID, connFC *ConnectionFlowController, getRTT func() time.Duration) *StreamFlowController {
	return &StreamFlowController{
		baseFlowController: newBaseFlowController(protocol.DefaultInitialMaxStreamData, protocol.DefaultMaxReceiveStreamWindow, getRTT),
		streamID:           streamID,
		connection:         connFC,
	}
}

// SendWindowSize returns the smaller of the stream's own window and the
// connection's, since either can block sending.
func (c *StreamFlowController) SendWindowSize() protocol.ByteCount {
	streamWindow := c.baseFlowController.SendWindowSize()
	connWindow := c.connection.SendWindowSize()
	if streamWindow < connWindow {
		return streamWindow
	}
	return connWindow
}

// IsBlocked reports whether sending is blocked, either by the stream's own
// window or by the connection's.
func (c *StreamFlowController) IsBlocked() bool { return c.SendWindowSize() == 0 }

// AddBytesSent accounts n against both the stream and connection windows.
func (c *StreamFlowController) AddBytesSent(n protocol.ByteCount) {
	c.baseFlowController.AddBytesSent(n)
	c.connection.AddBytesSent(n)
}

// AddBytesRead accounts n against both windows and returns a
// MAX_STREAM_DATA update to send, if one is due, and whether the
// connection-level window also needs one.
func (c *StreamFlowController) AddBytesRead(n protocol.ByteCount) (streamUpdate, connUpdate protocol.ByteCount) {
	c.baseFlowController.AddBytesRead(n)
	c.connection.AddBytesRead(n)
	return c.baseFlowController.getWindowUpdate(), c.connection.getWindowUpdate()
}

// UpdateHighestReceived updates both the stream and connection received
// offsets, returning true if either is now in violation. Only the
// incremental growth of this stream's highest offset is charged against
// the connection-wide budget.
func (c *StreamFlowController) UpdateHighestReceived(offset protocol.ByteCount) bool {
	c.mu.Lock()
	delta := offset - c.highestReceived
	c.mu.Unlock()

	streamViolation := c.baseFlowController.UpdateHighestReceived(offset)
	connViolation := c.connection.UpdateHighestReceivedDelta(delta)
	return streamViolation || connViolation
}

// StreamID returns the stream this controller belongs to.
func (c *StreamFlowController) StreamID() protocol.StreamID { return c.streamID }
