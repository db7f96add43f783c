package quic

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/draftquic/draftquic/internal/handshake"
	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/wire"
)

// Server accepts incoming QUIC connections on a single shared UDP socket,
// demultiplexing inbound datagrams by destination connection ID.
type Server struct {
	pconn   net.PacketConn
	tlsConf *tls.Config
	config  *Config

	handlers *packetHandlerMap
	accept   chan *Connection
	errCh    chan error

	closeOnce sync.Once
	closed    chan struct{}
}

// ListenAddr starts a Server listening on addr.
func ListenAddr(addr string, tlsConf *tls.Config, config *Config) (*Server, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	pconn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	return Listen(pconn, tlsConf, config)
}

// Listen starts a Server on an already-open net.PacketConn. The caller
// retains ownership of pconn.
func Listen(pconn net.PacketConn, tlsConf *tls.Config, config *Config) (*Server, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if tlsConf == nil || len(tlsConf.Certificates) == 0 {
		return nil, fmt.Errorf("quic: Listen requires a tls.Config with at least one certificate")
	}
	config = populateConfig(config)

	s := &Server{
		pconn:    pconn,
		tlsConf:  tlsConf,
		config:   config,
		handlers: newPacketHandlerMap(),
		accept:   make(chan *Connection, 8),
		errCh:    make(chan error, 1),
		closed:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Accept blocks until a client completes the handshake, or ctx is
// canceled, or the server is closed.
func (s *Server) Accept(ctx context.Context) (*Connection, error) {
	select {
	case c := <-s.accept:
		return c, nil
	case err := <-s.errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, fmt.Errorf("quic: server closed")
	}
}

// Close shuts down every accepted connection and stops listening.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return s.handlers.Close()
}

// run is the server's read loop: parse just enough of each datagram's
// header to route it to an existing Connection, or to bootstrap a new one
// off an Initial packet.
func (s *Server) run() {
	buf := make([]byte, protocol.MaxPacketBufferSize)
	for {
		n, addr, err := s.pconn.ReadFrom(buf)
		if err != nil {
			select {
			case s.errCh <- err:
			default:
			}
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		s.handleDatagram(data, addr)
	}
}

func (s *Server) handleDatagram(data []byte, addr net.Addr) {
	h, _, err := wire.ParseHeader(data, s.config.ConnectionIDLength)
	if err != nil {
		s.config.Logger.Debugf("quic: dropping unparseable datagram from %s: %s", addr, err)
		return
	}
	if h.IsVersionNegotiation {
		return
	}
	if c, ok := s.handlers.Get(h.DestConnectionID); ok {
		c.deliver(data, addr, time.Now())
		return
	}
	if h.Type != protocol.PacketTypeInitial {
		return
	}
	c, err := s.acceptConnection(h, addr)
	if err != nil {
		s.config.Logger.Errorf("quic: rejecting new connection from %s: %s", addr, err)
		return
	}
	c.deliver(data, addr, time.Now())
}

func (s *Server) acceptConnection(h *wire.Header, addr net.Addr) (*Connection, error) {
	srcConnID, err := protocol.GenerateConnectionID(s.config.ConnectionIDLength)
	if err != nil {
		return nil, err
	}

	params := handshake.DefaultTransportParameters()
	params.InitialMaxStreamsBidi = uint64(s.config.MaxIncomingStreams)
	params.InitialMaxStreamsUni = uint64(s.config.MaxIncomingUniStreams)
	params.InitialMaxData = s.config.MaxReceiveConnectionFlowControlWindow
	params.InitialMaxStreamDataBidiLocal = s.config.MaxReceiveStreamFlowControlWindow
	params.InitialMaxStreamDataBidiRemote = s.config.MaxReceiveStreamFlowControlWindow
	params.InitialMaxStreamDataUni = s.config.MaxReceiveStreamFlowControlWindow
	params.IdleTimeout = s.config.MaxIdleTimeout
	params.OriginalConnectionID = h.DestConnectionID

	crypto, err := handshake.NewCryptoSetupServer(h.DestConnectionID, s.tlsConf, params, s.config.Logger)
	if err != nil {
		return nil, err
	}

	conn := newConnection(s.pconn, addr, protocol.PerspectiveServer, h.DestConnectionID, srcConnID, crypto, s.config)

	// Register under both the client's original destination ID (Initial
	// and early Handshake packets keep using it) and this connection's own
	// source ID (what the client switches its destination field to once it
	// sees the first Handshake packet).
	s.handlers.Add(h.DestConnectionID, conn)
	s.handlers.Add(srcConnID, conn)

	go func() {
		_ = conn.run()
		s.handlers.Remove(h.DestConnectionID)
		s.handlers.Remove(srcConnID)
	}()

	go s.waitForHandshake(conn)

	return conn, nil
}

func (s *Server) waitForHandshake(c *Connection) {
	select {
	case <-c.HandshakeComplete():
		select {
		case s.accept <- c:
		case <-s.closed:
		}
	case <-c.closed:
	}
}
