package congestion

import (
	"testing"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/stretchr/testify/require"
)

func TestInitialWindow(t *testing.T) {
	r := NewRenoSender()
	require.Equal(t, protocol.InitialCongestionWindow, r.CongestionWindow())
	require.True(t, r.CanSend(protocol.DefaultMSS))
}

func TestSlowStartGrowsByAckedSize(t *testing.T) {
	r := NewRenoSender()
	r.OnPacketSent(protocol.DefaultMSS, true)
	before := r.CongestionWindow()
	r.OnPacketAcked(1, protocol.DefaultMSS)
	require.Equal(t, before+protocol.DefaultMSS, r.CongestionWindow())
	require.Equal(t, protocol.ByteCount(0), r.BytesInFlight())
}

func TestLossHalvesWindowAndEntersRecovery(t *testing.T) {
	r := NewRenoSender()
	r.OnPacketSent(5000, true)
	before := r.CongestionWindow()
	r.OnPacketLost(10, 5000)
	require.Equal(t, max(before/2, protocol.MinCongestionWindow), r.CongestionWindow())
	require.Equal(t, r.CongestionWindow(), r.SlowStartThreshold())
	require.True(t, r.InRecovery(5))
	require.False(t, r.InRecovery(11))
}

func TestAckDuringRecoveryDoesNotGrowWindow(t *testing.T) {
	r := NewRenoSender()
	r.OnPacketSent(5000, true)
	r.OnPacketLost(10, 5000)
	windowAfterLoss := r.CongestionWindow()
	r.OnPacketAcked(9, 5000)
	require.Equal(t, windowAfterLoss, r.CongestionWindow())
}

func TestRTOVerifiedResetsWindow(t *testing.T) {
	r := NewRenoSender()
	r.OnRetransmissionTimeoutVerified()
	require.Equal(t, protocol.MinCongestionWindow, r.CongestionWindow())
}

func TestCannotSendBeyondWindow(t *testing.T) {
	r := NewRenoSender()
	require.False(t, r.CanSend(protocol.InitialCongestionWindow+1))
}
