package wire

import (
	"testing"
	"time"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, f Frame) Frame {
	t.Helper()
	b, err := f.Append(nil, 1)
	require.NoError(t, err)
	require.Equal(t, int(f.Length(1)), len(b))
	parsed, n, err := ParseNextFrame(b, 1)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	return parsed
}

func TestStreamFrameRoundTrip(t *testing.T) {
	f := &StreamFrame{StreamID: 4, Offset: 100, Data: []byte("hello"), Fin: true, DataLenPresent: true}
	got := roundTrip(t, f).(*StreamFrame)
	require.Equal(t, f.StreamID, got.StreamID)
	require.Equal(t, f.Offset, got.Offset)
	require.Equal(t, f.Data, got.Data)
	require.True(t, got.Fin)
}

func TestStreamFrameWithoutLength(t *testing.T) {
	f := &StreamFrame{StreamID: 0, Data: []byte("abc")}
	b, err := f.Append(nil, 1)
	require.NoError(t, err)
	parsed, n, err := ParseNextFrame(b, 1)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	got := parsed.(*StreamFrame)
	require.Equal(t, []byte("abc"), got.Data)
}

func TestCryptoFrameRoundTrip(t *testing.T) {
	f := &CryptoFrame{Offset: 0, Data: []byte("clienthello")}
	got := roundTrip(t, f).(*CryptoFrame)
	require.Equal(t, f.Data, got.Data)
}

func TestAckFrameRoundTrip(t *testing.T) {
	f := &AckFrame{
		AckRanges: []AckRange{
			{Smallest: 8, Largest: 10},
			{Smallest: 2, Largest: 4},
		},
		DelayTime: 25 * time.Millisecond,
	}
	got := roundTrip(t, f).(*AckFrame)
	require.Equal(t, f.AckRanges, got.AckRanges)
	require.True(t, got.HasMissingRanges())
	require.True(t, got.AcksPacket(9))
	require.False(t, got.AcksPacket(6))
}

func TestAckFrameSingleRange(t *testing.T) {
	f := &AckFrame{AckRanges: []AckRange{{Smallest: 0, Largest: 5}}}
	got := roundTrip(t, f).(*AckFrame)
	require.False(t, got.HasMissingRanges())
	require.Equal(t, protocol.PacketNumber(5), got.LargestAcked())
}

func TestPingFrameRoundTrip(t *testing.T) {
	roundTrip(t, &PingFrame{})
}

func TestMaxDataFrameRoundTrip(t *testing.T) {
	f := &MaxDataFrame{MaximumData: 1 << 20}
	got := roundTrip(t, f).(*MaxDataFrame)
	require.Equal(t, f.MaximumData, got.MaximumData)
}

func TestMaxStreamDataFrameRoundTrip(t *testing.T) {
	f := &MaxStreamDataFrame{StreamID: 4, MaximumStreamData: 4096}
	got := roundTrip(t, f).(*MaxStreamDataFrame)
	require.Equal(t, f.StreamID, got.StreamID)
	require.Equal(t, f.MaximumStreamData, got.MaximumStreamData)
}

func TestRstStreamFrameRoundTrip(t *testing.T) {
	f := &RstStreamFrame{StreamID: 8, ErrorCode: 7, FinalOffset: 42}
	got := roundTrip(t, f).(*RstStreamFrame)
	require.Equal(t, f.StreamID, got.StreamID)
	require.Equal(t, f.ErrorCode, got.ErrorCode)
	require.Equal(t, f.FinalOffset, got.FinalOffset)
}

func TestConnectionCloseFrameRoundTrip(t *testing.T) {
	f := &ConnectionCloseFrame{ErrorCode: 10, FrameType: 0x1d, ReasonPhrase: "bye"}
	got := roundTrip(t, f).(*ConnectionCloseFrame)
	require.Equal(t, f.ErrorCode, got.ErrorCode)
	require.Equal(t, f.FrameType, got.FrameType)
	require.Equal(t, f.ReasonPhrase, got.ReasonPhrase)
}

func TestNewConnectionIDFrameRoundTrip(t *testing.T) {
	cid, _ := protocol.GenerateConnectionID(8)
	f := &NewConnectionIDFrame{Sequence: 3, ConnectionID: cid}
	got := roundTrip(t, f).(*NewConnectionIDFrame)
	require.Equal(t, f.Sequence, got.Sequence)
	require.True(t, cid.Equal(got.ConnectionID))
}

func TestPathChallengeResponseRoundTrip(t *testing.T) {
	f := &PathChallengeFrame{Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}
	got := roundTrip(t, f).(*PathChallengeFrame)
	require.Equal(t, f.Data, got.Data)

	r := &PathResponseFrame{Data: f.Data}
	gotR := roundTrip(t, r).(*PathResponseFrame)
	require.Equal(t, r.Data, gotR.Data)
}

func TestPaddingFrameParsing(t *testing.T) {
	b := []byte{0x00, 0x00, 0x00}
	f, n, err := ParseNextFrame(b, 1)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, protocol.ByteCount(3), f.(*PaddingFrame).NumBytes)
}

func TestUnknownFrameTypeIsProtocolError(t *testing.T) {
	_, _, err := ParseNextFrame([]byte{0x2f}, 1)
	require.Error(t, err)
}
