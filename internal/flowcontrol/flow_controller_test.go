package flowcontrol

import (
	"testing"
	"time"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/stretchr/testify/require"
)

func noRTT() time.Duration { return 0 }

func TestSendWindowBlocksUntilUpdate(t *testing.T) {
	connFC := NewConnectionFlowController(noRTT)
	sfc := NewStreamFlowController(4, connFC, noRTT)

	require.False(t, sfc.IsBlocked())
	sfc.AddBytesSent(protocol.DefaultInitialMaxStreamData)
	require.True(t, sfc.IsBlocked())

	sfc.UpdateSendWindow(protocol.DefaultInitialMaxStreamData + 100)
	require.False(t, sfc.IsBlocked())
	require.Equal(t, protocol.ByteCount(100), sfc.SendWindowSize())
}

func TestConnectionWindowAlsoBlocksStream(t *testing.T) {
	connFC := NewConnectionFlowController(noRTT)
	sfc := NewStreamFlowController(4, connFC, noRTT)
	sfc.UpdateSendWindow(1 << 30)

	connFC.AddBytesSent(protocol.DefaultInitialMaxData)
	require.True(t, sfc.IsBlocked())
}

func TestReceiveWindowUpdateOnThreshold(t *testing.T) {
	connFC := NewConnectionFlowController(noRTT)
	sfc := NewStreamFlowController(4, connFC, noRTT)

	streamUpdate, _ := sfc.AddBytesRead(10)
	require.Zero(t, streamUpdate)

	streamUpdate, _ = sfc.AddBytesRead(protocol.DefaultInitialMaxStreamData)
	require.NotZero(t, streamUpdate)
}

func TestFlowControlViolation(t *testing.T) {
	connFC := NewConnectionFlowController(noRTT)
	sfc := NewStreamFlowController(4, connFC, noRTT)

	require.False(t, sfc.UpdateHighestReceived(100))
	require.True(t, sfc.UpdateHighestReceived(protocol.DefaultInitialMaxStreamData+1))
}

func TestConnectionFlowControlAggregatesStreamDeltas(t *testing.T) {
	connFC := NewConnectionFlowController(noRTT)
	half := protocol.DefaultInitialMaxData / 2
	require.False(t, connFC.UpdateHighestReceivedDelta(half))
	require.False(t, connFC.UpdateHighestReceivedDelta(half))
	require.True(t, connFC.UpdateHighestReceivedDelta(100))
}
