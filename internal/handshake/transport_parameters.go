package handshake

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/qerr"
)

type transportParameterID uint16

const (
	initialMaxStreamDataBidiLocalParameterID  transportParameterID = 0x0
	initialMaxStreamDataBidiRemoteParameterID transportParameterID = 0x1
	initialMaxStreamDataUniParameterID        transportParameterID = 0x2
	initialMaxDataParameterID                 transportParameterID = 0x3
	initialMaxStreamsBidiParameterID           transportParameterID = 0x4
	initialMaxStreamsUniParameterID            transportParameterID = 0x5
	idleTimeoutParameterID                    transportParameterID = 0x6
	maxAckDelayParameterID                    transportParameterID = 0x7
	ackDelayExponentParameterID               transportParameterID = 0x8
	disableMigrationParameterID               transportParameterID = 0x9
	activeConnectionIDLimitParameterID        transportParameterID = 0xa
	statelessResetTokenParameterID            transportParameterID = 0xb
	originalConnectionIDParameterID           transportParameterID = 0xc
)

// TransportParameters are the connection-wide limits and options each
// endpoint advertises to its peer during the handshake, carried as an
// extension on the TLS ClientHello/EncryptedExtensions.
type TransportParameters struct {
	InitialMaxStreamDataBidiLocal  protocol.ByteCount
	InitialMaxStreamDataBidiRemote protocol.ByteCount
	InitialMaxStreamDataUni        protocol.ByteCount
	InitialMaxData                 protocol.ByteCount

	InitialMaxStreamsBidi uint64
	InitialMaxStreamsUni  uint64

	IdleTimeout      time.Duration
	MaxAckDelay      time.Duration
	AckDelayExponent uint8

	DisableMigration bool

	ActiveConnectionIDLimit uint64

	StatelessResetToken  *[16]byte
	OriginalConnectionID protocol.ConnectionID
}

// DefaultTransportParameters returns the parameters populated from the
// module-wide defaults, suitable as a starting point before a caller
// overrides anything from its Config.
func DefaultTransportParameters() *TransportParameters {
	return &TransportParameters{
		InitialMaxStreamDataBidiLocal:  protocol.DefaultInitialMaxStreamData,
		InitialMaxStreamDataBidiRemote: protocol.DefaultInitialMaxStreamData,
		InitialMaxStreamDataUni:        protocol.DefaultInitialMaxStreamData,
		InitialMaxData:                 protocol.DefaultInitialMaxData,
		InitialMaxStreamsBidi:          protocol.DefaultMaxStreamsBidi,
		InitialMaxStreamsUni:           protocol.DefaultMaxStreamsUni,
		IdleTimeout:                    30 * time.Second,
		MaxAckDelay:                    25 * time.Millisecond,
		AckDelayExponent:               3,
		ActiveConnectionIDLimit:        4,
	}
}

func appendParam(b []byte, id transportParameterID, value []byte) []byte {
	b = binary.BigEndian.AppendUint16(b, uint16(id))
	b = binary.BigEndian.AppendUint16(b, uint16(len(value)))
	return append(b, value...)
}

func appendVarintParam(b []byte, id transportParameterID, value uint64) []byte {
	var tmp [8]byte
	n := binary.PutUvarint(tmp[:], value)
	return appendParam(b, id, tmp[:n])
}

// Marshal encodes p for inclusion in a TLS extension.
func (p *TransportParameters) Marshal() []byte {
	b := make([]byte, 0, 256)

	b = appendVarintParam(b, initialMaxStreamDataBidiLocalParameterID, uint64(p.InitialMaxStreamDataBidiLocal))
	b = appendVarintParam(b, initialMaxStreamDataBidiRemoteParameterID, uint64(p.InitialMaxStreamDataBidiRemote))
	b = appendVarintParam(b, initialMaxStreamDataUniParameterID, uint64(p.InitialMaxStreamDataUni))
	b = appendVarintParam(b, initialMaxDataParameterID, uint64(p.InitialMaxData))
	b = appendVarintParam(b, initialMaxStreamsBidiParameterID, p.InitialMaxStreamsBidi)
	b = appendVarintParam(b, initialMaxStreamsUniParameterID, p.InitialMaxStreamsUni)
	b = appendVarintParam(b, idleTimeoutParameterID, uint64(p.IdleTimeout/time.Millisecond))
	b = appendVarintParam(b, maxAckDelayParameterID, uint64(p.MaxAckDelay/time.Millisecond))
	b = appendParam(b, ackDelayExponentParameterID, []byte{p.AckDelayExponent})
	b = appendVarintParam(b, activeConnectionIDLimitParameterID, p.ActiveConnectionIDLimit)

	if p.DisableMigration {
		b = appendParam(b, disableMigrationParameterID, nil)
	}
	if p.StatelessResetToken != nil {
		b = appendParam(b, statelessResetTokenParameterID, p.StatelessResetToken[:])
	}
	if p.OriginalConnectionID != nil {
		b = appendParam(b, originalConnectionIDParameterID, p.OriginalConnectionID.Bytes())
	}

	return b
}

// Unmarshal decodes transport parameters received from sentBy. Unknown
// parameter IDs are skipped, per the extensibility rule that lets either
// side add parameters without breaking the other.
func (p *TransportParameters) Unmarshal(data []byte, sentBy protocol.Perspective) error {
	if err := p.unmarshal(data, sentBy); err != nil {
		return qerr.NewError(qerr.TransportParameterError, err.Error())
	}
	return nil
}

func (p *TransportParameters) unmarshal(data []byte, sentBy protocol.Perspective) error {
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		if r.Len() < 4 {
			return fmt.Errorf("transport parameter data too short")
		}
		var idBuf, lenBuf [2]byte
		if _, err := r.Read(idBuf[:]); err != nil {
			return err
		}
		if _, err := r.Read(lenBuf[:]); err != nil {
			return err
		}
		id := transportParameterID(binary.BigEndian.Uint16(idBuf[:]))
		length := int(binary.BigEndian.Uint16(lenBuf[:]))
		if r.Len() < length {
			return fmt.Errorf("transport parameter %#x: expected %d bytes, have %d", id, length, r.Len())
		}
		value := make([]byte, length)
		if _, err := r.Read(value); err != nil {
			return err
		}

		switch id {
		case initialMaxStreamDataBidiLocalParameterID:
			v, _ := binary.Uvarint(value)
			p.InitialMaxStreamDataBidiLocal = protocol.ByteCount(v)
		case initialMaxStreamDataBidiRemoteParameterID:
			v, _ := binary.Uvarint(value)
			p.InitialMaxStreamDataBidiRemote = protocol.ByteCount(v)
		case initialMaxStreamDataUniParameterID:
			v, _ := binary.Uvarint(value)
			p.InitialMaxStreamDataUni = protocol.ByteCount(v)
		case initialMaxDataParameterID:
			v, _ := binary.Uvarint(value)
			p.InitialMaxData = protocol.ByteCount(v)
		case initialMaxStreamsBidiParameterID:
			p.InitialMaxStreamsBidi, _ = binary.Uvarint(value)
		case initialMaxStreamsUniParameterID:
			p.InitialMaxStreamsUni, _ = binary.Uvarint(value)
		case idleTimeoutParameterID:
			v, _ := binary.Uvarint(value)
			p.IdleTimeout = time.Duration(v) * time.Millisecond
		case maxAckDelayParameterID:
			v, _ := binary.Uvarint(value)
			p.MaxAckDelay = time.Duration(v) * time.Millisecond
		case ackDelayExponentParameterID:
			if len(value) != 1 {
				return fmt.Errorf("invalid ack_delay_exponent length %d", len(value))
			}
			p.AckDelayExponent = value[0]
		case disableMigrationParameterID:
			if len(value) != 0 {
				return fmt.Errorf("disable_migration must be empty")
			}
			p.DisableMigration = true
		case activeConnectionIDLimitParameterID:
			p.ActiveConnectionIDLimit, _ = binary.Uvarint(value)
		case statelessResetTokenParameterID:
			if sentBy == protocol.PerspectiveClient {
				return fmt.Errorf("client must not send a stateless reset token")
			}
			if len(value) != 16 {
				return fmt.Errorf("invalid stateless_reset_token length %d", len(value))
			}
			var token [16]byte
			copy(token[:], value)
			p.StatelessResetToken = &token
		case originalConnectionIDParameterID:
			if sentBy == protocol.PerspectiveClient {
				return fmt.Errorf("client must not send original_connection_id")
			}
			p.OriginalConnectionID = protocol.ConnectionID(value)
		}
	}
	return nil
}

func (p *TransportParameters) String() string {
	return fmt.Sprintf(
		"&TransportParameters{InitialMaxStreamDataBidiLocal: %d, InitialMaxStreamDataBidiRemote: %d, InitialMaxStreamDataUni: %d, InitialMaxData: %d, MaxBidiStreams: %d, MaxUniStreams: %d, IdleTimeout: %s}",
		p.InitialMaxStreamDataBidiLocal, p.InitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataUni, p.InitialMaxData,
		p.InitialMaxStreamsBidi, p.InitialMaxStreamsUni, p.IdleTimeout,
	)
}
