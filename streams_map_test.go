package quic

import (
	"testing"
	"time"

	"github.com/draftquic/draftquic/internal/flowcontrol"
	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/wire"
	"github.com/stretchr/testify/require"
)

func newTestStreamsMap(pers protocol.Perspective, maxIncomingBidi, maxIncomingUni int64) (*streamsMap, *fakeStreamSender) {
	connFC := flowcontrol.NewConnectionFlowController(func() time.Duration { return 0 })
	sender := &fakeStreamSender{}
	newFC := func(id protocol.StreamID) *flowcontrol.StreamFlowController {
		return flowcontrol.NewStreamFlowController(id, connFC, func() time.Duration { return 0 })
	}
	return newStreamsMap(pers, sender, connFC, newFC, maxIncomingBidi, maxIncomingUni), sender
}

// Before any MAX_STREAM_ID frame or initial-parameter seeding, peerMax has
// no entry for the quadrant at all, so openStream's limit check is simply
// not armed yet and the stream opens. setInitialPeerMaxStreams exists to
// shrink that window to zero at handshake completion.
func TestOpenStreamUnboundedBeforeLimitKnown(t *testing.T) {
	m, sender := newTestStreamsMap(protocol.PerspectiveClient, 10, 10)

	_, err := m.OpenStream()
	require.NoError(t, err)
	require.Empty(t, sender.controlFrames)
}

func TestSetInitialPeerMaxStreamsUnblocksOpen(t *testing.T) {
	m, _ := newTestStreamsMap(protocol.PerspectiveClient, 10, 10)
	m.setInitialPeerMaxStreams(2, 1)

	s1, err := m.OpenStream()
	require.NoError(t, err)
	s2, err := m.OpenStream()
	require.NoError(t, err)
	require.NotEqual(t, s1.StreamID(), s2.StreamID())

	_, err = m.OpenStream()
	require.Error(t, err)

	_, err = m.OpenUniStream()
	require.NoError(t, err)
	_, err = m.OpenUniStream()
	require.Error(t, err)
}

func TestHandleMaxStreamIDFrameRaisesLimit(t *testing.T) {
	m, _ := newTestStreamsMap(protocol.PerspectiveServer, 10, 10)
	m.setInitialPeerMaxStreams(1, 0)

	_, err := m.OpenStream()
	require.NoError(t, err)
	_, err = m.OpenStream()
	require.Error(t, err)

	bidiOut := protocol.StreamTypeFor(protocol.PerspectiveServer, false)
	raised := protocol.FirstStreamID(bidiOut).Next().Next()
	m.handleMaxStreamIDFrame(&wire.MaxStreamIDFrame{StreamID: raised})

	_, err = m.OpenStream()
	require.NoError(t, err)
}
