package quic

import (
	"errors"
	"time"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/utils"
)

// Config configures a Client or Server. All fields are optional; zero
// values are replaced by defaults in populateConfig.
type Config struct {
	// Versions lists the QUIC versions offered, highest preference first.
	// Defaults to protocol.SupportedVersions.
	Versions []protocol.VersionNumber

	// HandshakeTimeout is given a default by populateConfig. The connection
	// does not read it, so the handshake is not aborted when it elapses.
	HandshakeTimeout time.Duration

	// MaxIdleTimeout closes the connection after this much time without
	// any network activity from the peer.
	MaxIdleTimeout time.Duration

	// ConnectionIDLength is the length, in bytes, of connection IDs this
	// endpoint generates for itself.
	ConnectionIDLength int

	// MaxIncomingStreams and MaxIncomingUniStreams cap how many
	// peer-initiated bidirectional/unidirectional streams may be open at
	// once before the local endpoint raises its advertised limit. A
	// negative value disables the corresponding stream type entirely.
	MaxIncomingStreams    int64
	MaxIncomingUniStreams int64

	// MaxReceiveStreamFlowControlWindow and
	// MaxReceiveConnectionFlowControlWindow are advertised to the peer as
	// this endpoint's initial stream and connection flow-control limits in
	// the transport parameters. They do not cap the local receive windows'
	// auto-tuning.
	MaxReceiveStreamFlowControlWindow     protocol.ByteCount
	MaxReceiveConnectionFlowControlWindow protocol.ByteCount

	// KeepAlivePeriod is carried in the configuration, but the connection
	// does not read it: no keep-alive PING frames are sent.
	KeepAlivePeriod time.Duration

	// Logger receives the connection's log output. Defaults to
	// utils.DefaultLogger().
	Logger utils.Logger
}

// Clone returns a shallow copy of c.
func (c *Config) Clone() *Config {
	copy := *c
	return &copy
}

func validateConfig(config *Config) error {
	if config == nil {
		return nil
	}
	if config.MaxIncomingStreams > 1<<60 {
		return errors.New("quic: invalid value for Config.MaxIncomingStreams")
	}
	if config.MaxIncomingUniStreams > 1<<60 {
		return errors.New("quic: invalid value for Config.MaxIncomingUniStreams")
	}
	return nil
}

// populateConfig fills in zero-valued fields with their defaults. May be
// called with nil.
func populateConfig(config *Config) *Config {
	if config == nil {
		config = &Config{}
	}

	versions := config.Versions
	if len(versions) == 0 {
		versions = protocol.SupportedVersions
	}
	handshakeTimeout := config.HandshakeTimeout
	if handshakeTimeout == 0 {
		handshakeTimeout = protocol.DefaultHandshakeTimeout
	}
	idleTimeout := config.MaxIdleTimeout
	if idleTimeout == 0 {
		idleTimeout = protocol.DefaultIdleTimeout
	}
	connIDLen := config.ConnectionIDLength
	if connIDLen == 0 {
		connIDLen = protocol.DefaultConnectionIDLength
	}
	maxIncomingStreams := config.MaxIncomingStreams
	if maxIncomingStreams == 0 {
		maxIncomingStreams = protocol.DefaultMaxIncomingStreams
	} else if maxIncomingStreams < 0 {
		maxIncomingStreams = 0
	}
	maxIncomingUniStreams := config.MaxIncomingUniStreams
	if maxIncomingUniStreams == 0 {
		maxIncomingUniStreams = protocol.DefaultMaxIncomingUniStreams
	} else if maxIncomingUniStreams < 0 {
		maxIncomingUniStreams = 0
	}
	maxStreamWindow := config.MaxReceiveStreamFlowControlWindow
	if maxStreamWindow == 0 {
		maxStreamWindow = protocol.DefaultMaxReceiveStreamWindow
	}
	maxConnWindow := config.MaxReceiveConnectionFlowControlWindow
	if maxConnWindow == 0 {
		maxConnWindow = protocol.DefaultMaxReceiveWindow
	}
	logger := config.Logger
	if logger == nil {
		logger = utils.DefaultLogger()
	}

	return &Config{
		Versions:                              versions,
		HandshakeTimeout:                       handshakeTimeout,
		MaxIdleTimeout:                         idleTimeout,
		ConnectionIDLength:                     connIDLen,
		MaxIncomingStreams:                     maxIncomingStreams,
		MaxIncomingUniStreams:                  maxIncomingUniStreams,
		MaxReceiveStreamFlowControlWindow:      maxStreamWindow,
		MaxReceiveConnectionFlowControlWindow:  maxConnWindow,
		KeepAlivePeriod:                        config.KeepAlivePeriod,
		Logger:                                 logger,
	}
}
