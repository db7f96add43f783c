package quic

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/draftquic/draftquic/internal/handshake"
	"github.com/draftquic/draftquic/internal/protocol"
)

// DialAddr resolves addr, opens a UDP socket to it, and runs the client
// side of the handshake. It blocks until the handshake completes or ctx is
// canceled.
func DialAddr(ctx context.Context, addr string, tlsConf *tls.Config, config *Config) (*Connection, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	pconn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, err
	}
	return Dial(ctx, pconn, udpAddr, tlsConf, config)
}

// Dial runs the client side of the handshake over an already-open
// net.PacketConn, sending to remoteAddr. The caller retains ownership of
// pconn; it is not closed when the returned Connection closes.
func Dial(ctx context.Context, pconn net.PacketConn, remoteAddr net.Addr, tlsConf *tls.Config, config *Config) (*Connection, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	config = populateConfig(config)

	serverName := tlsConf.ServerName
	if serverName == "" {
		if host, _, err := net.SplitHostPort(remoteAddr.String()); err == nil {
			serverName = host
		}
	}

	origDestConnID, err := protocol.GenerateConnectionID(protocol.MinConnectionIDLenInitial)
	if err != nil {
		return nil, fmt.Errorf("quic: generating initial destination connection ID: %w", err)
	}
	srcConnID, err := protocol.GenerateConnectionID(config.ConnectionIDLength)
	if err != nil {
		return nil, fmt.Errorf("quic: generating source connection ID: %w", err)
	}

	params := handshake.DefaultTransportParameters()
	params.InitialMaxStreamsBidi = uint64(config.MaxIncomingStreams)
	params.InitialMaxStreamsUni = uint64(config.MaxIncomingUniStreams)
	params.InitialMaxData = config.MaxReceiveConnectionFlowControlWindow
	params.InitialMaxStreamDataBidiLocal = config.MaxReceiveStreamFlowControlWindow
	params.InitialMaxStreamDataBidiRemote = config.MaxReceiveStreamFlowControlWindow
	params.InitialMaxStreamDataUni = config.MaxReceiveStreamFlowControlWindow
	params.IdleTimeout = config.MaxIdleTimeout

	crypto, err := handshake.NewCryptoSetupClient(origDestConnID, serverName, tlsConf, params, config.Logger)
	if err != nil {
		return nil, err
	}

	conn := newConnection(pconn, remoteAddr, protocol.PerspectiveClient, origDestConnID, srcConnID, crypto, config)

	runErr := make(chan error, 1)
	go func() { runErr <- conn.run() }()
	go readLoop(pconn, conn.deliver)

	select {
	case <-conn.HandshakeComplete():
		return conn, nil
	case err := <-runErr:
		return nil, err
	case <-ctx.Done():
		_ = conn.CloseWithError(0, "handshake canceled")
		return nil, ctx.Err()
	}
}

// readLoop reads datagrams off pconn until it errors, handing each one to
// deliver. Used by both the single-connection client dial path and, with a
// dispatching deliver func, the server's shared socket.
func readLoop(pconn net.PacketConn, deliver func(data []byte, addr net.Addr, rcvTime time.Time)) {
	buf := make([]byte, protocol.MaxPacketBufferSize)
	for {
		n, addr, err := pconn.ReadFrom(buf)
		if err != nil {
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		deliver(data, addr, time.Now())
	}
}
