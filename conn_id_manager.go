package quic

import (
	"fmt"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/wire"
)

// connIDManager tracks the destination connection ID this endpoint places
// on outgoing packets, plus any spares the peer has offered via
// NEW_CONNECTION_ID. The destination ID may legally change exactly once on
// a Retry and exactly once on the first Handshake packet; every later
// mismatch between an inbound source connection ID and the learned
// destination is a non-fatal error that only drops the offending packet.
type connIDManager struct {
	dest protocol.ConnectionID

	retryChangeUsed     bool
	handshakeChangeUsed bool

	spares map[uint64]connIDManagerEntry
}

type connIDManagerEntry struct {
	id                  protocol.ConnectionID
	statelessResetToken [16]byte
}

func newConnIDManager(initialDest protocol.ConnectionID) *connIDManager {
	return &connIDManager{
		dest:   initialDest,
		spares: make(map[uint64]connIDManagerEntry),
	}
}

// ChangeAfterRetry installs the connection ID carried in a Retry packet.
// Only the first Retry may do this; later ones return an error the caller
// should treat as "drop this packet", not as a connection error.
func (m *connIDManager) ChangeAfterRetry(id protocol.ConnectionID) error {
	if m.retryChangeUsed {
		return fmt.Errorf("quic: duplicate retry, destination connection ID already changed")
	}
	m.retryChangeUsed = true
	m.dest = id
	return nil
}

// ChangeAfterFirstHandshake installs the source connection ID carried in
// the peer's first Handshake-epoch packet. Only the first such packet may
// do this.
func (m *connIDManager) ChangeAfterFirstHandshake(id protocol.ConnectionID) error {
	if m.handshakeChangeUsed {
		return fmt.Errorf("quic: duplicate handshake source connection ID change")
	}
	m.handshakeChangeUsed = true
	m.dest = id
	return nil
}

// Validate reports whether a source connection ID observed on an inbound
// packet is consistent with the connection ID discipline: it must equal
// the currently learned destination ID. Packets that fail this check are
// dropped without affecting connection state.
func (m *connIDManager) Validate(srcConnID protocol.ConnectionID) bool {
	return m.dest.Equal(srcConnID)
}

// Current returns the connection ID to place in the destination field of
// outgoing packets.
func (m *connIDManager) Current() protocol.ConnectionID {
	return m.dest
}

// AddFromFrame records a spare connection ID offered by the peer. It does
// not switch the active destination ID; draft-12 has no signal to request
// or acknowledge a rotation, so spares are only consulted if a future path
// migration needs a fresh ID to present to the peer's on-path observers.
func (m *connIDManager) AddFromFrame(f *wire.NewConnectionIDFrame) {
	m.spares[f.Sequence] = connIDManagerEntry{id: f.ConnectionID, statelessResetToken: f.StatelessResetToken}
}

// MatchesResetToken reports whether token corresponds to any connection ID
// the peer has offered, meaning an incoming datagram carrying it is a
// stateless reset for this connection.
func (m *connIDManager) MatchesResetToken(token [16]byte) bool {
	for _, e := range m.spares {
		if e.statelessResetToken == token {
			return true
		}
	}
	return false
}
