package quic

import (
	"io"
	"testing"
	"time"

	"github.com/draftquic/draftquic/internal/flowcontrol"
	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/wire"
	"github.com/stretchr/testify/require"
)

// fakeStreamSender records the frames a Stream wants sent, without any of
// the connection's packing or scheduling machinery.
type fakeStreamSender struct {
	controlFrames []wire.Frame
	scheduled     int
}

func (f *fakeStreamSender) queueControlFrame(frame wire.Frame) {
	f.controlFrames = append(f.controlFrames, frame)
}

func (f *fakeStreamSender) scheduleSending() { f.scheduled++ }

func newTestStream(id protocol.StreamID) (*Stream, *fakeStreamSender) {
	connFC := flowcontrol.NewConnectionFlowController(func() time.Duration { return 0 })
	fc := flowcontrol.NewStreamFlowController(id, connFC, func() time.Duration { return 0 })
	sender := &fakeStreamSender{}
	return newStream(id, sender, fc), sender
}

func TestStreamReadReturnsEOFAfterFin(t *testing.T) {
	str, _ := newTestStream(1337)

	require.NoError(t, str.handleStreamFrame(&wire.StreamFrame{
		StreamID: 1337,
		Offset:   0,
		Data:     []byte("hello"),
		Fin:      true,
	}))

	buf := make([]byte, 5)
	n, err := str.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))

	n, err = str.Read(buf)
	require.Zero(t, n)
	require.Equal(t, io.EOF, err)

	// EOF must stick: a second call after the state has already flipped
	// to receiveStateDataRead must not block or panic.
	n, err = str.Read(buf)
	require.Zero(t, n)
	require.Equal(t, io.EOF, err)
}

func TestStreamReadDeliversOutOfOrderFrames(t *testing.T) {
	str, _ := newTestStream(11)

	require.NoError(t, str.handleStreamFrame(&wire.StreamFrame{
		StreamID: 11,
		Offset:   5,
		Data:     []byte("world"),
	}))
	require.NoError(t, str.handleStreamFrame(&wire.StreamFrame{
		StreamID: 11,
		Offset:   0,
		Data:     []byte("hello"),
		Fin:      false,
	}))

	buf := make([]byte, 10)
	n, err := str.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "helloworld", string(buf[:n]))
}

func TestStreamReadReturnsResetError(t *testing.T) {
	str, sender := newTestStream(4)
	_ = sender

	str.handleRstStreamFrame(&wire.RstStreamFrame{
		StreamID:    4,
		ErrorCode:   42,
		FinalOffset: 0,
	})

	buf := make([]byte, 1)
	n, err := str.Read(buf)
	require.Zero(t, n)
	require.Error(t, err)
}

func TestStreamCloseMarksFinPending(t *testing.T) {
	str, sender := newTestStream(8)

	// Write blocks until its payload is drained by a popStreamFrame call,
	// so it runs on its own goroutine while the test drives the pop from
	// the main one.
	writeErr := make(chan error, 1)
	go func() {
		_, err := str.Write([]byte("x"))
		writeErr <- err
	}()

	var f *wire.StreamFrame
	require.Eventually(t, func() bool {
		f = str.popStreamFrame(1024)
		return f != nil
	}, time.Second, time.Millisecond)

	require.NoError(t, <-writeErr)
	require.NoError(t, str.Close())

	require.Equal(t, "x", string(f.Data))
	require.NotZero(t, sender.scheduled)

	fin := str.popStreamFrame(1024)
	require.NotNil(t, fin)
	require.True(t, fin.Fin)
}

func TestStreamClosedForShutdownUnblocksRead(t *testing.T) {
	str, _ := newTestStream(12)

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 1)
		_, err := str.Read(buf)
		require.Error(t, err)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	str.closeForShutdown(io.ErrClosedPipe)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock after closeForShutdown")
	}
}
