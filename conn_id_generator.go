package quic

import (
	"crypto/sha256"
	"sync"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/wire"
	"golang.org/x/crypto/hkdf"
)

// statelessResetKey is the long-lived local secret stateless reset tokens
// are derived from, so a restarted endpoint can still recognize traffic
// addressed to a connection ID it issued before the restart.
type statelessResetKey [32]byte

const statelessResetHKDFInfo = "draftquic stateless reset"

// statelessResetToken derives the token advertised for cid. The derivation
// is deterministic in cid so the token survives process restarts without
// needing to persist per-ID state.
func (k statelessResetKey) statelessResetToken(cid protocol.ConnectionID) [16]byte {
	var token [16]byte
	r := hkdf.New(sha256.New, k[:], cid.Bytes(), []byte(statelessResetHKDFInfo))
	if _, err := r.Read(token[:]); err != nil {
		panic("quic: hkdf.Read failed: " + err.Error())
	}
	return token
}

// connIDGenerator owns the pool of connection IDs this endpoint hands out
// to its peer via NEW_CONNECTION_ID, so the peer always has a spare ID to
// switch to after this one is retired.
type connIDGenerator struct {
	mu sync.Mutex

	connIDLen   int
	nextSeq     uint64
	active      map[uint64]protocol.ConnectionID
	retired     map[uint64]bool
	activeLimit int

	resetKey statelessResetKey

	queueControlFrame func(wire.Frame)
}

func newConnIDGenerator(connIDLen, activeLimit int, initial protocol.ConnectionID, resetKey statelessResetKey, queueControlFrame func(wire.Frame)) *connIDGenerator {
	g := &connIDGenerator{
		connIDLen:         connIDLen,
		active:            make(map[uint64]protocol.ConnectionID),
		retired:           make(map[uint64]bool),
		activeLimit:       activeLimit,
		resetKey:          resetKey,
		queueControlFrame: queueControlFrame,
	}
	g.active[0] = initial
	g.nextSeq = 1
	return g
}

// Issue generates further connection IDs up to activeLimit (sequence 0 is
// the handshake ID) and queues a NEW_CONNECTION_ID for each.
func (g *connIDGenerator) Issue() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for len(g.active) < g.activeLimit {
		cid, err := protocol.GenerateConnectionID(g.connIDLen)
		if err != nil {
			return err
		}
		seq := g.nextSeq
		g.nextSeq++
		g.active[seq] = cid
		g.queueControlFrame(&wire.NewConnectionIDFrame{
			Sequence:            seq,
			ConnectionID:        cid,
			StatelessResetToken: g.resetKey.statelessResetToken(cid),
		})
	}
	return nil
}

// Retire marks seq as retired once the peer confirms it via
// RETIRE_CONNECTION_ID; it does not free the sequence number for reuse.
func (g *connIDGenerator) Retire(seq uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, seq)
	g.retired[seq] = true
}

// IsActive reports whether id is one of the connection IDs this endpoint
// currently advertises as valid.
func (g *connIDGenerator) IsActive(id protocol.ConnectionID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, cid := range g.active {
		if cid.Equal(id) {
			return true
		}
	}
	return false
}
