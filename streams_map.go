package quic

import (
	"context"
	"fmt"
	"sync"

	"github.com/draftquic/draftquic/internal/flowcontrol"
	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/wire"
)

// streamOpenError is returned by OpenStream when the peer's advertised
// stream limit for the requested flavor has been reached.
type streamOpenError struct {
	streamType protocol.StreamType
}

func (e *streamOpenError) Error() string {
	return fmt.Sprintf("quic: too many open streams of type %d", e.streamType)
}

// streamsMap owns every stream on a connection, keyed by protocol.StreamID.
// Stream ID allocation for locally-opened streams follows
// next_local_stream_id(type) := min unused id with (id & 3) == type: each
// of the four quadrants (client-bidi, server-bidi, client-uni, server-uni)
// has its own monotonically advancing counter, so a stream that's closed
// and garbage collected never has its ID reused, and no cross-quadrant
// gap-filling ever happens.
type streamsMap struct {
	mutex sync.Mutex
	cond  sync.Cond

	perspective protocol.Perspective
	sender      streamSender
	connFC      *flowcontrol.ConnectionFlowController
	newFlowController func(protocol.StreamID) *flowcontrol.StreamFlowController

	streams map[protocol.StreamID]*Stream

	nextOutgoing map[protocol.StreamType]protocol.StreamID
	peerMax      map[protocol.StreamType]protocol.StreamID // highest ID the peer allows us to open, per outgoing quadrant

	maxIncoming map[protocol.StreamType]int64 // configured cap on concurrently open peer-initiated streams
	openIncoming map[protocol.StreamType]int64
	advertisedMax map[protocol.StreamType]protocol.StreamID

	acceptBidi chan *Stream
	acceptUni  chan *Stream

	closeErr error
}

func newStreamsMap(
	perspective protocol.Perspective,
	sender streamSender,
	connFC *flowcontrol.ConnectionFlowController,
	newFlowController func(protocol.StreamID) *flowcontrol.StreamFlowController,
	maxIncomingBidi, maxIncomingUni int64,
) *streamsMap {
	m := &streamsMap{
		perspective:       perspective,
		sender:            sender,
		connFC:            connFC,
		newFlowController: newFlowController,
		streams:           make(map[protocol.StreamID]*Stream),
		nextOutgoing:      make(map[protocol.StreamType]protocol.StreamID),
		peerMax:           make(map[protocol.StreamType]protocol.StreamID),
		maxIncoming:       make(map[protocol.StreamType]int64),
		openIncoming:      make(map[protocol.StreamType]int64),
		advertisedMax:     make(map[protocol.StreamType]protocol.StreamID),
		acceptBidi:        make(chan *Stream, 8),
		acceptUni:         make(chan *Stream, 8),
	}
	m.cond.L = &m.mutex
	for _, t := range []protocol.StreamType{protocol.StreamTypeClientBidi, protocol.StreamTypeServerBidi, protocol.StreamTypeClientUni, protocol.StreamTypeServerUni} {
		m.nextOutgoing[t] = protocol.FirstStreamID(t)
	}
	bidiIncoming := protocol.StreamTypeFor(perspective.Opposite(), false)
	uniIncoming := protocol.StreamTypeFor(perspective.Opposite(), true)
	m.maxIncoming[bidiIncoming] = maxIncomingBidi
	m.maxIncoming[uniIncoming] = maxIncomingUni
	return m
}

// OpenStream opens a new locally-initiated bidirectional stream, returning
// streamOpenError if the peer hasn't granted enough headroom yet.
func (m *streamsMap) OpenStream() (*Stream, error) {
	return m.openStream(protocol.StreamTypeFor(m.perspective, false))
}

// OpenUniStream opens a new locally-initiated unidirectional stream.
func (m *streamsMap) OpenUniStream() (*Stream, error) {
	return m.openStream(protocol.StreamTypeFor(m.perspective, true))
}

func (m *streamsMap) openStream(t protocol.StreamType) (*Stream, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closeErr != nil {
		return nil, m.closeErr
	}

	id := m.nextOutgoing[t]
	if max, ok := m.peerMax[t]; ok && id > max {
		m.sender.queueControlFrame(&wire.StreamIDBlockedFrame{StreamID: max})
		return nil, &streamOpenError{streamType: t}
	}
	m.nextOutgoing[t] = id.Next()
	str := newStream(id, m.sender, m.newFlowController(id))
	m.streams[id] = str
	return str, nil
}

// AcceptStream blocks until a peer-initiated bidirectional stream arrives
// or ctx is canceled.
func (m *streamsMap) AcceptStream(ctx context.Context) (*Stream, error) {
	select {
	case s := <-m.acceptBidi:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AcceptUniStream blocks until a peer-initiated unidirectional stream
// arrives or ctx is canceled.
func (m *streamsMap) AcceptUniStream(ctx context.Context) (*Stream, error) {
	select {
	case s := <-m.acceptUni:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// getOrOpenReceiveStream returns the stream for id, lazily creating it (and
// every lower-numbered stream of the same quadrant that hasn't been opened
// yet, per the peer's implicit open-by-referencing-the-highest-ID rule) if
// it was initiated by the peer. Returns an error if id belongs to a stream
// this endpoint initiated but hasn't opened yet, or if opening it would
// exceed the peer's stream limit.
func (m *streamsMap) getOrOpenReceiveStream(id protocol.StreamID) (*Stream, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if str, ok := m.streams[id]; ok {
		return str, nil
	}
	if id.InitiatedBy() != m.perspective.Opposite() {
		return nil, fmt.Errorf("quic: received frame for unopened local stream %s", id)
	}

	t := id.Type()
	if m.openIncoming[t] >= m.maxIncoming[t] {
		return nil, fmt.Errorf("quic: peer exceeded stream limit for type %d", t)
	}

	first := m.advertisedMax[t]
	if first == 0 {
		first = protocol.FirstStreamID(t)
	}
	for cur := first; cur <= id; cur = cur.Next() {
		if _, exists := m.streams[cur]; exists {
			continue
		}
		str := newStream(cur, m.sender, m.newFlowController(cur))
		m.streams[cur] = str
		m.openIncoming[t]++
		if id.IsUniDirectional() {
			m.acceptUni <- str
		} else {
			m.acceptBidi <- str
		}
	}
	m.advertisedMax[t] = id.Next()

	if remaining := m.maxIncoming[t] - m.openIncoming[t]; remaining > 0 {
		newMax := id
		for i := int64(0); i < remaining; i++ {
			newMax = newMax.Next()
		}
		m.sender.queueControlFrame(&wire.MaxStreamIDFrame{StreamID: newMax})
	}

	return m.streams[id], nil
}

// popFrames drains pending STREAM frame data across all open streams, up
// to a total of maxBytes, for the packet packer to place in the next
// 1-RTT packet. Streams with nothing to send that fits are skipped; it
// stops once the budget is used up or every stream has been visited.
func (m *streamsMap) popFrames(maxBytes protocol.ByteCount) []wire.Frame {
	m.mutex.Lock()
	streams := make([]*Stream, 0, len(m.streams))
	for _, s := range m.streams {
		streams = append(streams, s)
	}
	m.mutex.Unlock()

	var frames []wire.Frame
	for _, str := range streams {
		if maxBytes <= 0 {
			break
		}
		f := str.popStreamFrame(maxBytes)
		if f == nil {
			continue
		}
		frames = append(frames, f)
		maxBytes -= f.Length(0)
	}
	return frames
}

// handleMaxStreamIDFrame raises the limit on how many streams of the
// corresponding outgoing quadrant this endpoint may open.
func (m *streamsMap) handleMaxStreamIDFrame(f *wire.MaxStreamIDFrame) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	t := f.StreamID.Type()
	if cur, ok := m.peerMax[t]; !ok || f.StreamID > cur {
		m.peerMax[t] = f.StreamID
	}
}

// setInitialPeerMaxStreams seeds the outgoing-quadrant limits from the
// peer's initial transport parameters, the way a MAX_STREAM_ID frame would
// once the handshake is done. Without this, openStream finds no entry in
// peerMax and lets every local stream open through unchecked until the
// first MAX_STREAM_ID frame arrives.
func (m *streamsMap) setInitialPeerMaxStreams(maxBidi, maxUni uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	bidiOut := protocol.StreamTypeFor(m.perspective, false)
	uniOut := protocol.StreamTypeFor(m.perspective, true)
	if maxBidi > 0 {
		m.peerMax[bidiOut] = protocol.FirstStreamID(bidiOut) + protocol.StreamID(4*(maxBidi-1))
	}
	if maxUni > 0 {
		m.peerMax[uniOut] = protocol.FirstStreamID(uniOut) + protocol.StreamID(4*(maxUni-1))
	}
}

// closeWithError unblocks every stream and pending Accept call with err;
// used when the connection is shutting down.
func (m *streamsMap) closeWithError(err error) {
	m.mutex.Lock()
	m.closeErr = err
	streams := make([]*Stream, 0, len(m.streams))
	for _, s := range m.streams {
		streams = append(streams, s)
	}
	m.mutex.Unlock()
	for _, s := range streams {
		s.closeForShutdown(err)
	}
}
