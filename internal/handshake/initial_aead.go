package handshake

import (
	"crypto"

	"github.com/draftquic/draftquic/internal/protocol"
)

// initialSalt is the fixed, publicly-known salt passed to HKDF-Extract
// together with the destination connection ID of the client's first
// Initial packet to derive the Initial secret. Both endpoints know it, so
// it provides no confidentiality.
var initialSalt = []byte{
	0x4f, 0x3a, 0xf0, 0xb9, 0xc2, 0xf5, 0x12, 0x7d,
	0xe5, 0x8b, 0xe3, 0x49, 0x1a, 0x7c, 0x6d, 0x2e,
	0x91, 0x07, 0x33,
}

// InitialAEAD holds the sealer/opener pair each endpoint uses for the
// Initial encryption level, derived from the client-chosen destination
// connection ID of the first packet of a connection.
type InitialAEAD struct {
	Sealer LongHeaderSealer
	Opener LongHeaderOpener
}

// NewInitialAEAD derives the client and server Initial secrets from connID
// and returns the pair appropriate for pers's role: a client seals with
// the client secret and opens with the server secret, and vice versa.
func NewInitialAEAD(connID protocol.ConnectionID, pers protocol.Perspective) (*InitialAEAD, error) {
	initialSecret := hkdfExtract(crypto.SHA256, connID.Bytes(), initialSalt)

	clientSecret := hkdfExpandLabel(crypto.SHA256, initialSecret, nil, "client in", crypto.SHA256.Size())
	serverSecret := hkdfExpandLabel(crypto.SHA256, initialSecret, nil, "server in", crypto.SHA256.Size())

	var ownSecret, otherSecret []byte
	if pers == protocol.PerspectiveClient {
		ownSecret, otherSecret = clientSecret, serverSecret
	} else {
		ownSecret, otherSecret = serverSecret, clientSecret
	}

	sealer, err := newLongHeaderSealer(suiteAES128GCMSHA256, ownSecret)
	if err != nil {
		return nil, err
	}
	opener, err := newLongHeaderOpener(suiteAES128GCMSHA256, otherSecret)
	if err != nil {
		return nil, err
	}

	return &InitialAEAD{Sealer: sealer, Opener: opener}, nil
}

func newLongHeaderSealer(suite cipherSuite, trafficSecret []byte) (LongHeaderSealer, error) {
	aead, iv, err := createAEAD(suite, trafficSecret)
	if err != nil {
		return nil, err
	}
	hp, err := createHeaderProtector(suite, trafficSecret)
	if err != nil {
		return nil, err
	}
	return newSealer(aead, iv, hp), nil
}

func newLongHeaderOpener(suite cipherSuite, trafficSecret []byte) (LongHeaderOpener, error) {
	aead, iv, err := createAEAD(suite, trafficSecret)
	if err != nil {
		return nil, err
	}
	hp, err := createHeaderProtector(suite, trafficSecret)
	if err != nil {
		return nil, err
	}
	return newOpener(aead, iv, hp), nil
}
