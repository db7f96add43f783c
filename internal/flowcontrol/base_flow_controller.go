// Package flowcontrol implements per-stream and connection-level flow
// control: a bounded send window gated by the peer's advertised limit, and
// a receive window that auto-tunes its increment based on RTT.
package flowcontrol

import (
	"sync"
	"time"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/utils"
)

// windowUpdateThreshold is the fraction of the receive window that must
// remain before a MAX_DATA/MAX_STREAM_DATA update is emitted.
const windowUpdateThreshold = 0.5

type baseFlowController struct {
	mu sync.Mutex

	getRTT func() time.Duration

	bytesSent  protocol.ByteCount
	sendWindow protocol.ByteCount

	lastWindowUpdateTime time.Time

	bytesRead                 protocol.ByteCount
	highestReceived           protocol.ByteCount
	receiveWindow             protocol.ByteCount
	receiveWindowIncrement    protocol.ByteCount
	maxReceiveWindowIncrement protocol.ByteCount
}

func newBaseFlowController(initialWindow, maxWindow protocol.ByteCount, getRTT func() time.Duration) baseFlowController {
	return baseFlowController{
		getRTT:                    getRTT,
		sendWindow:                initialWindow,
		receiveWindow:             initialWindow,
		receiveWindowIncrement:    initialWindow,
		maxReceiveWindowIncrement: maxWindow,
	}
}

// AddBytesSent accounts for n newly sent bytes against the send window.
func (c *baseFlowController) AddBytesSent(n protocol.ByteCount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bytesSent += n
}

// UpdateSendWindow raises the send window after a MAX_DATA/MAX_STREAM_DATA
// frame; a frame that would lower the window is ignored, since the peer
// cannot retract flow control credit.
func (c *baseFlowController) UpdateSendWindow(offset protocol.ByteCount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if offset > c.sendWindow {
		c.sendWindow = offset
	}
}

func (c *baseFlowController) sendWindowSize() protocol.ByteCount {
	if c.bytesSent > c.sendWindow {
		return 0
	}
	return c.sendWindow - c.bytesSent
}

// IsBlocked reports whether the send window is currently exhausted.
func (c *baseFlowController) IsBlocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendWindowSize() == 0
}

// SendWindowSize returns how many more bytes may currently be sent.
func (c *baseFlowController) SendWindowSize() protocol.ByteCount {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendWindowSize()
}

// AddBytesRead accounts for n bytes the application has consumed.
func (c *baseFlowController) AddBytesRead(n protocol.ByteCount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bytesRead == 0 {
		c.lastWindowUpdateTime = time.Now()
	}
	c.bytesRead += n
}

// UpdateHighestReceived records the highest absolute offset seen so far,
// returning a flow control violation error if it now exceeds the window.
func (c *baseFlowController) UpdateHighestReceived(offset protocol.ByteCount) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if offset > c.highestReceived {
		c.highestReceived = offset
	}
	return c.highestReceived > c.receiveWindow
}

// getWindowUpdate returns a new receive window offset to advertise, or 0
// if no update is due yet.
func (c *baseFlowController) getWindowUpdate() protocol.ByteCount {
	c.mu.Lock()
	defer c.mu.Unlock()

	bytesRemaining := c.receiveWindow - c.bytesRead
	if bytesRemaining >= protocol.ByteCount(float64(c.receiveWindowIncrement)*(1-windowUpdateThreshold)) {
		return 0
	}

	c.maybeAdjustWindowIncrement()
	c.receiveWindow = c.bytesRead + c.receiveWindowIncrement
	c.lastWindowUpdateTime = time.Now()
	return c.receiveWindow
}

// maybeAdjustWindowIncrement doubles the receive window increment when
// updates are happening faster than every 4x the threshold fraction of an
// RTT, i.e. the peer is filling the window unusually fast.
func (c *baseFlowController) maybeAdjustWindowIncrement() {
	if c.lastWindowUpdateTime.IsZero() || c.getRTT == nil {
		return
	}
	rtt := c.getRTT()
	if rtt == 0 {
		return
	}
	if time.Since(c.lastWindowUpdateTime) >= time.Duration(4*windowUpdateThreshold*float64(rtt)) {
		return
	}
	c.receiveWindowIncrement = utils.Min(2*c.receiveWindowIncrement, c.maxReceiveWindowIncrement)
}
