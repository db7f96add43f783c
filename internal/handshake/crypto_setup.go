package handshake

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/qerr"
	"github.com/draftquic/draftquic/internal/utils"
)

// CryptoSetup drives the TLS 1.3 handshake via crypto/tls's native QUIC
// support and hands out the packet-protection keys it derives at each
// encryption level as they become available. There is no vendored TLS
// stack in this tree: crypto/tls is the only implementation in the
// ecosystem that actually speaks the QUIC key schedule, so this is the
// one layer that leans on the standard library by necessity rather than
// choice.
type CryptoSetup struct {
	mutex sync.Mutex

	conn *tls.QUICConn
	pers protocol.Perspective
	logger utils.Logger

	initial   *InitialAEAD
	handshake *epochKeys
	oneRTT    *epochKeys

	clientParams *TransportParameters
	serverParams *TransportParameters
	peerParams   *TransportParameters

	handshakeComplete bool
	alert             error

	writeData map[protocol.EncryptionLevel][][]byte
}

// epochKeys holds the sealer/opener pair for a single encryption level
// past Initial, where read and write secrets are established separately
// rather than derived from one shared Initial secret.
type epochKeys struct {
	sealer LongHeaderSealer
	opener LongHeaderOpener
}

// NewCryptoSetupClient creates the client side of the handshake for the
// given server name and destination connection ID, used only to derive
// the Initial keys.
func NewCryptoSetupClient(destConnID protocol.ConnectionID, serverName string, tlsConf *tls.Config, params *TransportParameters, logger utils.Logger) (*CryptoSetup, error) {
	cs, err := newCryptoSetup(destConnID, protocol.PerspectiveClient, params, logger)
	if err != nil {
		return nil, err
	}
	conf := tlsConf.Clone()
	conf.ServerName = serverName
	cs.conn = tls.QUICClient(&tls.QUICConfig{TLSConfig: conf})
	return cs, nil
}

// NewCryptoSetupServer creates the server side of the handshake.
func NewCryptoSetupServer(destConnID protocol.ConnectionID, tlsConf *tls.Config, params *TransportParameters, logger utils.Logger) (*CryptoSetup, error) {
	cs, err := newCryptoSetup(destConnID, protocol.PerspectiveServer, params, logger)
	if err != nil {
		return nil, err
	}
	cs.conn = tls.QUICServer(&tls.QUICConfig{TLSConfig: tlsConf})
	return cs, nil
}

func newCryptoSetup(destConnID protocol.ConnectionID, pers protocol.Perspective, params *TransportParameters, logger utils.Logger) (*CryptoSetup, error) {
	initial, err := NewInitialAEAD(destConnID, pers)
	if err != nil {
		return nil, err
	}
	return &CryptoSetup{
		pers:         pers,
		logger:       logger,
		initial:      initial,
		clientParams: params,
		writeData:    make(map[protocol.EncryptionLevel][][]byte),
	}, nil
}

// StartHandshake begins the TLS handshake, sending transport parameters
// and returning once the first flight of CRYPTO data is ready to read
// via DrainCryptoData.
func (h *CryptoSetup) StartHandshake() error {
	h.conn.SetTransportParameters(h.clientParams.Marshal())
	if err := h.conn.Start(context.Background()); err != nil {
		return err
	}
	return h.processEvents()
}

// HandleMessage feeds CRYPTO frame payload received at the given
// encryption level into the TLS state machine.
func (h *CryptoSetup) HandleMessage(data []byte, level protocol.EncryptionLevel) error {
	if err := h.conn.HandleData(quicLevel(level), data); err != nil {
		return err
	}
	return h.processEvents()
}

// processEvents drains crypto/tls's QUIC event queue, installing keys and
// recording transport parameters and handshake completion as they occur.
func (h *CryptoSetup) processEvents() error {
	for {
		ev := h.conn.NextEvent()
		switch ev.Kind {
		case tls.QUICNoEvent:
			return nil
		case tls.QUICSetReadSecret:
			if err := h.installSecret(ev.Level, ev.Suite, ev.Data, false); err != nil {
				return err
			}
		case tls.QUICSetWriteSecret:
			if err := h.installSecret(ev.Level, ev.Suite, ev.Data, true); err != nil {
				return err
			}
		case tls.QUICTransportParameters:
			h.peerParams = &TransportParameters{}
			if err := h.peerParams.Unmarshal(ev.Data, h.pers.Opposite()); err != nil {
				return err
			}
		case tls.QUICHandshakeDone:
			h.mutex.Lock()
			h.handshakeComplete = true
			h.mutex.Unlock()
		case tls.QUICTransportParametersRequired:
			h.conn.SetTransportParameters(h.clientParams.Marshal())
		case tls.QUICWriteData:
			level := encryptionLevel(ev.Level)
			h.mutex.Lock()
			h.writeData[level] = append(h.writeData[level], append([]byte(nil), ev.Data...))
			h.mutex.Unlock()
		}
	}
}

// DrainCryptoData returns and clears any CRYPTO frame payload the TLS
// state machine has queued for level, for the packet packer to send.
func (h *CryptoSetup) DrainCryptoData(level protocol.EncryptionLevel) [][]byte {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	data := h.writeData[level]
	delete(h.writeData, level)
	return data
}

func encryptionLevel(level tls.QUICEncryptionLevel) protocol.EncryptionLevel {
	switch level {
	case tls.QUICEncryptionLevelInitial:
		return protocol.EncryptionInitial
	case tls.QUICEncryptionLevelHandshake:
		return protocol.EncryptionHandshake
	case tls.QUICEncryptionLevelEarly:
		return protocol.Encryption0RTT
	default:
		return protocol.Encryption1RTT
	}
}

func (h *CryptoSetup) installSecret(level tls.QUICEncryptionLevel, suiteID uint16, secret []byte, write bool) error {
	suite := cipherSuiteByID(suiteID)
	aead, iv, err := createAEAD(suite, secret)
	if err != nil {
		return err
	}
	hp, err := createHeaderProtector(suite, secret)
	if err != nil {
		return err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	var ek **epochKeys
	switch level {
	case tls.QUICEncryptionLevelHandshake:
		ek = &h.handshake
	case tls.QUICEncryptionLevelApplication:
		ek = &h.oneRTT
	default:
		return fmt.Errorf("handshake: unexpected secret install for level %v", level)
	}
	if *ek == nil {
		*ek = &epochKeys{}
	}
	if write {
		(*ek).sealer = newSealer(aead, iv, hp)
	} else {
		(*ek).opener = newOpener(aead, iv, hp)
	}
	return nil
}

// GetSealer returns the sealer for the highest encryption level currently
// installed, along with that level.
func (h *CryptoSetup) GetSealer() (protocol.EncryptionLevel, LongHeaderSealer) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.oneRTT != nil && h.oneRTT.sealer != nil {
		return protocol.Encryption1RTT, h.oneRTT.sealer
	}
	if h.handshake != nil && h.handshake.sealer != nil {
		return protocol.EncryptionHandshake, h.handshake.sealer
	}
	return protocol.EncryptionInitial, h.initial.Sealer
}

// GetSealerWithEncryptionLevel returns the sealer for a specific level.
func (h *CryptoSetup) GetSealerWithEncryptionLevel(level protocol.EncryptionLevel) (LongHeaderSealer, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	switch level {
	case protocol.EncryptionInitial:
		return h.initial.Sealer, nil
	case protocol.EncryptionHandshake:
		if h.handshake == nil || h.handshake.sealer == nil {
			return nil, errNoSealer(level)
		}
		return h.handshake.sealer, nil
	case protocol.Encryption1RTT:
		if h.oneRTT == nil || h.oneRTT.sealer == nil {
			return nil, errNoSealer(level)
		}
		return h.oneRTT.sealer, nil
	default:
		return nil, errNoSealer(level)
	}
}

// GetOpenerWithEncryptionLevel returns the opener for a specific level, for
// callers that need to remove header protection themselves before calling
// Open (the unpacker, which must learn the true packet number length from
// the now-unprotected first byte before it knows how many packet number
// bytes to pass to Open).
func (h *CryptoSetup) GetOpenerWithEncryptionLevel(level protocol.EncryptionLevel) (LongHeaderOpener, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	switch level {
	case protocol.EncryptionInitial:
		return h.initial.Opener, nil
	case protocol.EncryptionHandshake:
		if h.handshake == nil || h.handshake.opener == nil {
			return nil, errNoOpener(level)
		}
		return h.handshake.opener, nil
	case protocol.Encryption1RTT:
		if h.oneRTT == nil || h.oneRTT.opener == nil {
			return nil, errNoOpener(level)
		}
		return h.oneRTT.opener, nil
	default:
		return nil, errNoOpener(level)
	}
}

func errNoOpener(level protocol.EncryptionLevel) error {
	return qerr.NewError(qerr.InternalError, fmt.Sprintf("no opener for encryption level %s", level))
}

// OpenInitial, OpenHandshake and Open1RTT decrypt a packet protected at
// the named level, keeping the call sites in the packet unpacker free of
// epoch bookkeeping.
func (h *CryptoSetup) OpenInitial(dst, src []byte, pn protocol.PacketNumber, ad []byte) ([]byte, error) {
	return h.initial.Opener.Open(dst, src, pn, ad)
}

func (h *CryptoSetup) OpenHandshake(dst, src []byte, pn protocol.PacketNumber, ad []byte) ([]byte, error) {
	h.mutex.Lock()
	opener := h.handshake
	h.mutex.Unlock()
	if opener == nil || opener.opener == nil {
		return nil, errors.New("handshake: no handshake opener installed")
	}
	return opener.opener.Open(dst, src, pn, ad)
}

func (h *CryptoSetup) Open1RTT(dst, src []byte, pn protocol.PacketNumber, ad []byte) ([]byte, error) {
	h.mutex.Lock()
	opener := h.oneRTT
	h.mutex.Unlock()
	if opener == nil || opener.opener == nil {
		return nil, errors.New("handshake: no 1-RTT opener installed")
	}
	return opener.opener.Open(dst, src, pn, ad)
}

// PeerTransportParameters returns the parameters the peer advertised,
// or nil if they have not arrived yet.
func (h *CryptoSetup) PeerTransportParameters() *TransportParameters {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.peerParams
}

// HandshakeComplete reports whether the handshake has finished.
func (h *CryptoSetup) HandshakeComplete() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.handshakeComplete
}

func errNoSealer(level protocol.EncryptionLevel) error {
	return qerr.NewError(qerr.InternalError, fmt.Sprintf("no sealer for encryption level %s", level))
}

func quicLevel(level protocol.EncryptionLevel) tls.QUICEncryptionLevel {
	switch level {
	case protocol.EncryptionInitial:
		return tls.QUICEncryptionLevelInitial
	case protocol.EncryptionHandshake:
		return tls.QUICEncryptionLevelHandshake
	case protocol.Encryption0RTT:
		return tls.QUICEncryptionLevelEarly
	default:
		return tls.QUICEncryptionLevelApplication
	}
}

func cipherSuiteByID(id uint16) cipherSuite {
	return cipherSuiteByName(tls.CipherSuiteName(id))
}
