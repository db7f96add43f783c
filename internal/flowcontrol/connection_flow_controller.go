package flowcontrol

import (
	"time"

	"github.com/draftquic/draftquic/internal/protocol"
)

// ConnectionFlowController enforces the connection-wide limit: the sum of
// all stream offsets must stay below the peer's advertised remote_max_data.
type ConnectionFlowController struct {
	baseFlowController
}

// NewConnectionFlowController builds the connection-level controller.
func NewConnectionFlowController(getRTT func() time.Duration) *ConnectionFlowController {
	return &ConnectionFlowController{
		baseFlowController: newBaseFlowController(protocol.DefaultInitialMaxData, protocol.DefaultMaxReceiveWindow, getRTT),
	}
}

// UpdateHighestReceivedDelta folds a stream's increase in its own highest
// offset into the connection-wide received total, since connection flow
// control budgets the sum across all streams rather than any one stream's
// absolute offset.
func (c *ConnectionFlowController) UpdateHighestReceivedDelta(delta protocol.ByteCount) bool {
	if delta <= 0 {
		return false
	}
	c.mu.Lock()
	c.highestReceived += delta
	violated := c.highestReceived > c.receiveWindow
	c.mu.Unlock()
	return violated
}
