package quic

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/draftquic/draftquic/internal/ackhandler"
	"github.com/draftquic/draftquic/internal/congestion"
	"github.com/draftquic/draftquic/internal/flowcontrol"
	"github.com/draftquic/draftquic/internal/handshake"
	"github.com/draftquic/draftquic/internal/metrics"
	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/qerr"
	"github.com/draftquic/draftquic/internal/utils"
	"github.com/draftquic/draftquic/internal/wire"
)

// connState is a coarse phase of the connection lifecycle, layered on top
// of (but distinct from) the per-stream send/receive states.
type connState int

const (
	stateInitial connState = iota
	stateWaitingHandshake
	stateHandshake
	stateInstalled
	stateDraining
	stateClosed
)

// sendQueue is the batch of pending control frames a Connection accumulates
// between trips through run's select loop, one queue per encryption level.
// Only the 1-RTT queue is filled (by queueControlFrame); the wake-up signal
// is Connection.sendReady.
type sendQueue struct {
	initial   []wire.Frame
	handshake []wire.Frame
	oneRTT    []wire.Frame
}

// Connection is one QUIC connection: a single-goroutine state machine that
// owns its streams, timers and crypto state exclusively. All exported
// methods hand work to the run loop rather than touching state directly,
// except where a stream's own mutex already makes that safe (queueControlFrame,
// scheduleSending).
type Connection struct {
	perspective protocol.Perspective
	version     protocol.VersionNumber
	logger      utils.Logger

	conn       net.PacketConn
	remoteAddr net.Addr

	origDestConnID protocol.ConnectionID
	srcConnID      protocol.ConnectionID

	connIDManager   *connIDManager
	connIDGenerator *connIDGenerator

	crypto   *handshake.CryptoSetup
	unpacker *packetUnpacker
	packer   *packetPacker

	rttStats     utils.RTTStats
	sentPackets  *ackhandler.SentPacketHandler
	receivedPackets *ackhandler.ReceivedPacketHandler
	congestion   congestion.SendAlgorithm
	pacer        *congestion.Pacer
	pacingDeadline time.Time

	connFC  *flowcontrol.ConnectionFlowController
	streams *streamsMap

	state         connState
	closeErr      error
	closeOnce     bool
	handshakeDone chan struct{}
	closed        chan struct{}

	sendQueue sendQueue
	sendReady chan struct{}
	closeChan chan error

	receiveQueue  chan receivedDatagram
	idleTimeout   time.Duration
	lastNetworkActivity time.Time
	drainDeadline time.Time

	config *Config
}

type receivedDatagram struct {
	data []byte
	addr net.Addr
	rcvTime time.Time
}

// newConnection builds a Connection with every internal component wired
// up, ready to have run() started on it.
func newConnection(
	c net.PacketConn,
	remoteAddr net.Addr,
	perspective protocol.Perspective,
	origDestConnID, srcConnID protocol.ConnectionID,
	crypto *handshake.CryptoSetup,
	config *Config,
) *Connection {
	s := &Connection{
		perspective:    perspective,
		version:        protocol.VersionTLS,
		logger:         config.Logger,
		conn:           c,
		remoteAddr:     remoteAddr,
		origDestConnID: origDestConnID,
		srcConnID:      srcConnID,
		crypto:         crypto,
		congestion:     congestion.NewRenoSender(),
		pacer:          congestion.NewPacer(),
		state:          stateInitial,
		handshakeDone:  make(chan struct{}),
		closed:         make(chan struct{}),
		sendReady:      make(chan struct{}, 1),
		closeChan:      make(chan error, 1),
		receiveQueue:   make(chan receivedDatagram, 32),
		idleTimeout:    config.MaxIdleTimeout,
		config:         config,
	}
	s.sentPackets, s.receivedPackets = ackhandler.NewAckHandler(perspective, &s.rttStats, s.congestion, config.Logger)
	s.connFC = flowcontrol.NewConnectionFlowController(func() time.Duration { return s.rttStats.SmoothedRTT() })
	s.streams = newStreamsMap(perspective, s, s.connFC, s.newFlowControllerForStream, config.MaxIncomingStreams, config.MaxIncomingUniStreams)

	var resetKey statelessResetKey
	s.connIDGenerator = newConnIDGenerator(config.ConnectionIDLength, 4, srcConnID, resetKey, s.queueControlFrame)
	s.connIDManager = newConnIDManager(origDestConnID)
	s.unpacker = newPacketUnpacker()
	s.packer = newPacketPacker(s)
	return s
}

func (s *Connection) newFlowControllerForStream(id protocol.StreamID) *flowcontrol.StreamFlowController {
	return flowcontrol.NewStreamFlowController(id, s.connFC, func() time.Duration { return s.rttStats.SmoothedRTT() })
}

// queueControlFrame appends a connection- or stream-control frame to the
// next 1-RTT packet the run loop packs, and wakes it up to do so.
func (s *Connection) queueControlFrame(f wire.Frame) {
	s.sendQueue.oneRTT = append(s.sendQueue.oneRTT, f)
	s.scheduleSending()
}

// scheduleSending wakes the run loop's select so it re-evaluates whether
// there's a packet worth sending.
func (s *Connection) scheduleSending() {
	select {
	case s.sendReady <- struct{}{}:
	default:
	}
}

// run is the connection's single logical executor: every state transition
// happens here, on one goroutine, dispatched from a select over datagram
// arrival, the loss/idle timer, write readiness, a close request, and the
// closed channel. TLS handshake events are processed synchronously while
// CRYPTO frames are handled.
func (s *Connection) run() error {
	defer func() {
		select {
		case <-s.closed:
		default:
			close(s.closed)
		}
	}()
	s.lastNetworkActivity = time.Now()

	if s.perspective == protocol.PerspectiveClient {
		if err := s.crypto.StartHandshake(); err != nil {
			return err
		}
		s.state = stateWaitingHandshake
		s.scheduleSending()
	}

	for {
		timeout := s.nextTimeout()
		timer := time.NewTimer(time.Until(timeout))

		select {
		case dg := <-s.receiveQueue:
			timer.Stop()
			s.lastNetworkActivity = dg.rcvTime
			if err := s.handleDatagram(dg.data, dg.rcvTime); err != nil {
				s.closeLocal(err)
			}
		case <-timer.C:
			if err := s.handleTimeout(); err != nil {
				s.closeLocal(err)
			}
		case <-s.sendReady:
			timer.Stop()
			if err := s.sendPackets(); err != nil {
				s.closeLocal(err)
			}
		case err := <-s.closeChan:
			timer.Stop()
			s.closeLocal(err)
		case <-s.closed:
			timer.Stop()
			return s.closeErr
		}

		if s.state == stateClosed {
			return s.closeErr
		}
	}
}

func (s *Connection) nextTimeout() time.Time {
	if s.state == stateDraining {
		if !s.drainDeadline.IsZero() {
			return s.drainDeadline
		}
		return time.Now().Add(time.Second)
	}
	deadlines := make([]time.Time, 0, 3)
	if lossTimeout := s.sentPackets.GetLossDetectionTimeout(); !lossTimeout.IsZero() {
		deadlines = append(deadlines, lossTimeout)
	}
	if ackTimeout := s.receivedPackets.GetAlarmTimeout(); !ackTimeout.IsZero() {
		deadlines = append(deadlines, ackTimeout)
	}
	if s.idleTimeout > 0 {
		deadlines = append(deadlines, s.lastNetworkActivity.Add(s.idleTimeout))
	}
	if !s.pacingDeadline.IsZero() {
		deadlines = append(deadlines, s.pacingDeadline)
	}
	earliest := time.Now().Add(time.Minute)
	for _, d := range deadlines {
		if d.Before(earliest) {
			earliest = d
		}
	}
	return earliest
}

// handleTimeout fires whenever run's select wakes up on its timer rather
// than a datagram or an explicit signal. During the draining state the
// only thing it watches for is the drain deadline; every other timeout
// (loss detection, idle) is only meaningful to a live connection.
func (s *Connection) handleTimeout() error {
	now := time.Now()
	if s.state == stateDraining {
		if !s.drainDeadline.IsZero() && !now.Before(s.drainDeadline) {
			s.state = stateClosed
			metrics.Unregister(s.srcConnID.String())
			select {
			case <-s.closed:
			default:
				close(s.closed)
			}
		}
		return nil
	}
	if s.idleTimeout > 0 && now.Sub(s.lastNetworkActivity) >= s.idleTimeout {
		return &qerr.IdleTimeoutError{}
	}
	if !s.sentPackets.GetLossDetectionTimeout().IsZero() && !now.Before(s.sentPackets.GetLossDetectionTimeout()) {
		if err := s.sentPackets.OnLossDetectionTimeout(); err != nil {
			return err
		}
		s.scheduleSending()
	}
	if !s.pacingDeadline.IsZero() && !now.Before(s.pacingDeadline) {
		s.pacingDeadline = time.Time{}
		s.scheduleSending()
	}
	return nil
}

// handleDatagram dispatches one inbound UDP datagram, which may contain
// several coalesced QUIC packets.
func (s *Connection) handleDatagram(data []byte, rcvTime time.Time) error {
	for len(data) > 0 {
		n, err := s.handlePacket(data, rcvTime)
		if err != nil {
			var transportErr *qerr.TransportError
			var appErr *qerr.ApplicationError
			if errors.As(err, &transportErr) || errors.As(err, &appErr) {
				return err
			}
			s.logger.Debugf("dropping packet: %s", err)
			return nil
		}
		if n <= 0 || n > len(data) {
			return nil
		}
		data = data[n:]
	}
	return nil
}

func (s *Connection) handlePacket(data []byte, rcvTime time.Time) (int, error) {
	up, err := s.unpacker.Unpack(data, s.connIDGenerator.connIDLen, s.crypto)
	if err != nil {
		return 0, err
	}
	if up.isVersionNegotiation {
		return up.consumed, s.handleVersionNegotiation(up)
	}
	if up.header.Type == protocol.PacketTypeRetry {
		return up.consumed, s.handleRetry(up)
	}
	if !s.connIDManager.Validate(up.header.SrcConnectionID) && len(up.header.SrcConnectionID) > 0 {
		return up.consumed, fmt.Errorf("quic: source connection ID mismatch, dropping")
	}

	if s.state == stateWaitingHandshake && s.perspective == protocol.PerspectiveClient && up.header.Type == protocol.PacketTypeHandshake {
		if err := s.connIDManager.ChangeAfterFirstHandshake(up.header.SrcConnectionID); err != nil {
			s.logger.Debugf("%s", err)
		}
		s.state = stateHandshake
	}

	s.receivedPackets.ReceivedPacket(up.packetNumber, up.encLevel, rcvTime, ackhandler.HasAckElicitingFrames(up.frames))

	for _, f := range up.frames {
		if err := s.handleFrame(f, up.encLevel); err != nil {
			return up.consumed, err
		}
	}
	if s.crypto.HandshakeComplete() && s.state != stateInstalled && s.state != stateDraining && s.state != stateClosed {
		s.state = stateInstalled
		s.sentPackets.SetHandshakeConfirmed()
		close(s.handshakeDone)
		if err := s.connIDGenerator.Issue(); err != nil {
			s.logger.Errorf("issuing connection IDs: %s", err)
		}
		if peerParams := s.crypto.PeerTransportParameters(); peerParams != nil {
			s.streams.setInitialPeerMaxStreams(peerParams.InitialMaxStreamsBidi, peerParams.InitialMaxStreamsUni)
		}
	}
	s.scheduleSending()
	return up.consumed, nil
}

func (s *Connection) handleVersionNegotiation(up *unpackedPacket) error {
	if s.state != stateWaitingHandshake || s.perspective != protocol.PerspectiveClient {
		return nil
	}
	var theirs []protocol.VersionNumber
	for _, v := range up.header.SupportedVersions {
		theirs = append(theirs, protocol.VersionNumber(v))
	}
	for _, v := range theirs {
		if v == s.version {
			return nil // our version is in the list, ignore per the negotiation rule
		}
	}
	chosen, ok := protocol.ChooseSupportedVersion(theirs)
	if !ok {
		ours := make([]uint32, len(protocol.SupportedVersions))
		for i, v := range protocol.SupportedVersions {
			ours[i] = uint32(v)
		}
		return &qerr.VersionNegotiationError{Ours: ours, Theirs: up.header.SupportedVersions}
	}
	s.version = chosen
	return s.crypto.StartHandshake()
}

func (s *Connection) handleRetry(up *unpackedPacket) error {
	if s.perspective != protocol.PerspectiveClient || s.state != stateWaitingHandshake {
		return nil
	}
	if err := s.connIDManager.ChangeAfterRetry(up.header.SrcConnectionID); err != nil {
		s.logger.Debugf("%s", err)
		return nil
	}
	return s.crypto.StartHandshake()
}

func (s *Connection) handleFrame(f wire.Frame, level protocol.EncryptionLevel) error {
	switch frame := f.(type) {
	case *wire.CryptoFrame:
		return s.crypto.HandleMessage(frame.Data, level)
	case *wire.AckFrame:
		if err := s.sentPackets.ReceivedAck(frame, level, time.Now()); err != nil {
			return err
		}
		s.updateMetrics()
		return nil
	case *wire.StreamFrame:
		str, err := s.streams.getOrOpenReceiveStream(frame.StreamID)
		if err != nil {
			return err
		}
		if str == nil {
			return nil
		}
		return str.handleStreamFrame(frame)
	case *wire.RstStreamFrame:
		str, err := s.streams.getOrOpenReceiveStream(frame.StreamID)
		if err != nil {
			return err
		}
		if str != nil {
			str.handleRstStreamFrame(frame)
		}
	case *wire.StopSendingFrame:
		str, err := s.streams.getOrOpenReceiveStream(frame.StreamID)
		if err != nil {
			return err
		}
		if str != nil {
			str.handleStopSendingFrame(frame)
		}
	case *wire.MaxStreamDataFrame:
		str, err := s.streams.getOrOpenReceiveStream(frame.StreamID)
		if err != nil {
			return err
		}
		if str != nil {
			str.handleMaxStreamDataFrame(frame)
		}
	case *wire.MaxDataFrame:
		s.connFC.UpdateSendWindow(frame.MaximumData)
	case *wire.MaxStreamIDFrame:
		s.streams.handleMaxStreamIDFrame(frame)
	case *wire.NewConnectionIDFrame:
		s.connIDManager.AddFromFrame(frame)
	case *wire.PathChallengeFrame:
		s.queueControlFrame(&wire.PathResponseFrame{Data: frame.Data})
	case *wire.PathResponseFrame:
		// nothing outstanding to correlate it against in this simplified model
	case *wire.ConnectionCloseFrame:
		return &qerr.TransportError{Remote: true, ErrorCode: qerr.ErrorCode(frame.ErrorCode), ErrorMessage: frame.ReasonPhrase}
	case *wire.ApplicationCloseFrame:
		return &qerr.ApplicationError{Remote: true, ErrorCode: frame.ErrorCode, ErrorMessage: frame.ReasonPhrase}
	case *wire.PingFrame, *wire.PaddingFrame, *wire.BlockedFrame, *wire.StreamBlockedFrame, *wire.StreamIDBlockedFrame:
		// no action required beyond eliciting the ACK already recorded
	}
	return nil
}

// updateMetrics publishes the congestion controller's and RTT estimator's
// current values under this connection's source connection ID, so a running
// endpoint's window, in-flight bytes, ssthresh, and smoothed RTT can be
// scraped rather than only read through logs.
func (s *Connection) updateMetrics() {
	label := s.srcConnID.String()
	metrics.CongestionWindow.WithLabelValues(label).Set(float64(s.congestion.CongestionWindow()))
	metrics.BytesInFlight.WithLabelValues(label).Set(float64(s.congestion.BytesInFlight()))
	metrics.SlowStartThreshold.WithLabelValues(label).Set(float64(s.congestion.SlowStartThreshold()))
	metrics.SmoothedRTT.WithLabelValues(label).Set(s.rttStats.SmoothedRTT().Seconds())
}

// sendPackets packs and transmits every packet the current connection
// state has something to say in, across whichever epochs have both keys
// installed and pending data. Once bytes in flight reach the congestion
// window, only ACK-only packets keep going out; CRYPTO, control, and
// STREAM data wait for acks to free up room, per the congestion
// controller's CanSend gate. Below that window, the pacer spreads a
// cwnd's worth of sends across an RTT instead of releasing them in a
// single burst.
func (s *Connection) sendPackets() error {
	s.pacer.SetRate(s.congestion.CongestionWindow(), s.rttStats.SmoothedRTT())
	for _, level := range []protocol.EncryptionLevel{protocol.EncryptionInitial, protocol.EncryptionHandshake, protocol.Encryption1RTT} {
		for {
			congestionBlocked := !s.congestion.CanSend(protocol.MaxPacketBufferSize)
			pacingBlocked := !congestionBlocked && !s.pacer.Allow(protocol.MaxPacketBufferSize)
			packet, err := s.packer.PackPacket(level, congestionBlocked || pacingBlocked)
			if err != nil {
				return err
			}
			if packet == nil {
				break
			}
			if _, err := s.conn.WriteTo(packet, s.remoteAddr); err != nil {
				return err
			}
			if pacingBlocked {
				s.pacingDeadline = time.Now().Add(s.pacer.TimeUntilSend(protocol.MaxPacketBufferSize))
			}
			if congestionBlocked || pacingBlocked {
				break
			}
		}
	}
	s.updateMetrics()
	return nil
}

// drainControlFrames removes and returns every control frame queued for
// level, taken from that level's own queue. Only the 1-RTT queue is ever
// filled, so the Initial and Handshake levels get no control frames.
func (s *Connection) drainControlFrames(level protocol.EncryptionLevel) []wire.Frame {
	switch level {
	case protocol.EncryptionInitial:
		f := s.sendQueue.initial
		s.sendQueue.initial = nil
		return f
	case protocol.EncryptionHandshake:
		f := s.sendQueue.handshake
		s.sendQueue.handshake = nil
		return f
	default:
		f := s.sendQueue.oneRTT
		s.sendQueue.oneRTT = nil
		return f
	}
}

// OpenStream opens a new locally-initiated bidirectional stream.
func (s *Connection) OpenStream() (*Stream, error) { return s.streams.OpenStream() }

// OpenUniStream opens a new locally-initiated unidirectional stream.
func (s *Connection) OpenUniStream() (*Stream, error) { return s.streams.OpenUniStream() }

// AcceptStream blocks for the next peer-initiated bidirectional stream.
func (s *Connection) AcceptStream(ctx context.Context) (*Stream, error) { return s.streams.AcceptStream(ctx) }

// AcceptUniStream blocks for the next peer-initiated unidirectional stream.
func (s *Connection) AcceptUniStream(ctx context.Context) (*Stream, error) { return s.streams.AcceptUniStream(ctx) }

// HandshakeComplete is closed once the 1-RTT keys install.
func (s *Connection) HandshakeComplete() <-chan struct{} { return s.handshakeDone }

// CloseWithError sends an APPLICATION_CLOSE and blocks until the
// connection has finished draining. Safe to call from any goroutine: the
// actual state change happens on run's goroutine.
func (s *Connection) CloseWithError(code ApplicationErrorCode, msg string) error {
	select {
	case s.closeChan <- &qerr.ApplicationError{ErrorCode: uint16(code), ErrorMessage: msg}:
	case <-s.closed:
	}
	<-s.closed
	return nil
}

// ApplicationErrorCode is the application-defined code carried on a
// CloseWithError call.
type ApplicationErrorCode uint16

// closeLocal moves the connection into the draining state. It must only
// be called from run's goroutine.
func (s *Connection) closeLocal(err error) error {
	if s.closeOnce {
		return s.closeErr
	}
	s.closeOnce = true
	s.closeErr = err
	s.state = stateDraining
	s.streams.closeWithError(err)

	if appErr := (*qerr.ApplicationError)(nil); errors.As(err, &appErr) {
		s.queueControlFrame(&wire.ApplicationCloseFrame{ErrorCode: appErr.ErrorCode, ReasonPhrase: appErr.ErrorMessage})
	} else if transportErr := (*qerr.TransportError)(nil); errors.As(err, &transportErr) {
		s.queueControlFrame(&wire.ConnectionCloseFrame{ErrorCode: uint16(transportErr.ErrorCode), ReasonPhrase: transportErr.ErrorMessage})
	}
	pto := s.rttStats.PTO(true)
	if pto <= 0 {
		pto = protocol.DefaultInitialRTT
	}
	s.drainDeadline = time.Now().Add(3 * pto)
	return err
}

// deliver hands an inbound datagram to the run loop; called by the
// connection dispatcher that demultiplexes a shared socket by destination
// connection ID.
func (s *Connection) deliver(data []byte, addr net.Addr, rcvTime time.Time) {
	select {
	case s.receiveQueue <- receivedDatagram{data: data, addr: addr, rcvTime: rcvTime}:
	case <-s.closed:
	}
}
