package protocol

import "time"

const (
	// DefaultMSS is the maximum datagram payload size assumed absent any
	// path MTU discovery.
	DefaultMSS ByteCount = 1460

	// MinInitialPacketSize is the minimum size a client must pad its first
	// Initial packet (and the UDP datagram carrying it) up to.
	MinInitialPacketSize ByteCount = 1280

	// InitialCongestionWindow is the number of bytes a connection may have
	// in flight before the first acknowledgment arrives.
	InitialCongestionWindow ByteCount = 10 * DefaultMSS

	// MinCongestionWindow is the floor the congestion window is never
	// allowed to drop below, even after a loss-triggered cutback.
	MinCongestionWindow ByteCount = 2 * DefaultMSS

	// MaxUndecryptablePackets is not used by the connection: packets that
	// arrive before their keys are available are dropped, not buffered.
	MaxUndecryptablePackets = 32

	// PacketThreshold is the number of packets that must arrive after an
	// unacknowledged one before it's declared lost.
	PacketThreshold PacketNumber = 3

	// TimeThresholdNumerator and TimeThresholdDenominator express the
	// 9/8 multiplier applied to max(smoothed_rtt, latest_rtt) for the
	// time-threshold loss detector.
	TimeThresholdNumerator   = 9
	TimeThresholdDenominator = 8

	// DefaultInitialRTT is assumed before the first RTT sample.
	DefaultInitialRTT = 100 * time.Millisecond

	// TimerGranularity is the assumed OS timer granularity, used as the
	// lower bound for loss-detection delays to avoid spurious early firing.
	TimerGranularity = time.Millisecond

	// MaxRetransmissionCount is the number of consecutive probe timeouts
	// after which the congestion controller is told that the retransmission
	// timeout is verified.
	MaxRetransmissionCount = 2

	// DefaultMaxStreamsBidi and DefaultMaxStreamsUni bound how many
	// streams of each directionality a peer may open before the local
	// endpoint raises its advertised limit.
	DefaultMaxStreamsBidi = 100
	DefaultMaxStreamsUni  = 100

	// DefaultInitialMaxData and DefaultInitialMaxStreamData seed the
	// connection- and stream-level flow control windows.
	DefaultInitialMaxData        ByteCount = 1 << 20
	DefaultInitialMaxStreamData  ByteCount = 1 << 16
	DefaultMaxReceiveWindow      ByteCount = 6 << 20
	DefaultMaxReceiveStreamWindow ByteCount = 6 << 20

	// MaxPacketBufferSize is the largest datagram an endpoint accepts,
	// matching the path MTU ceiling used throughout the pipeline.
	MaxPacketBufferSize ByteCount = 1452
)
