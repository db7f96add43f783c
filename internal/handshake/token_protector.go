package handshake

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/hkdf"
)

// tokenProtectorKey is the long-lived server secret used to seal both
// Retry and resumption tokens. It never leaves the process and is
// rotated whenever the server restarts.
type tokenProtectorKey [32]byte

const tokenNonceSize = 32

// tokenProtector seals and opens the opaque byte string carried inside a
// Retry or resumption token, so its contents can't be forged or replayed
// against a different remote address.
type tokenProtector struct {
	key tokenProtectorKey
}

func newTokenProtector() (*tokenProtector, error) {
	var key tokenProtectorKey
	if _, err := rand.Read(key[:]); err != nil {
		return nil, err
	}
	return &tokenProtector{key: key}, nil
}

// NewToken seals data into an opaque token.
func (s *tokenProtector) NewToken(data []byte) ([]byte, error) {
	var nonce [tokenNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	aead, aeadNonce, err := s.createAEAD(nonce[:])
	if err != nil {
		return nil, err
	}
	return append(nonce[:], aead.Seal(nil, aeadNonce, data, nil)...), nil
}

// DecodeToken recovers the data sealed by NewToken.
func (s *tokenProtector) DecodeToken(p []byte) ([]byte, error) {
	if len(p) < tokenNonceSize {
		return nil, fmt.Errorf("handshake: token too short: %d bytes", len(p))
	}
	nonce := p[:tokenNonceSize]
	aead, aeadNonce, err := s.createAEAD(nonce)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, aeadNonce, p[tokenNonceSize:], nil)
}

const tokenProtectorHKDFInfo = "draftquic token source"

func (s *tokenProtector) createAEAD(nonce []byte) (cipher.AEAD, []byte, error) {
	prk := hkdf.Extract(sha256.New, s.key[:], nonce)

	expanded := make([]byte, 32+12)
	if _, err := hkdf.Expand(sha256.New, prk, []byte(tokenProtectorHKDFInfo)).Read(expanded); err != nil {
		return nil, nil, err
	}

	key := expanded[:32]
	aeadNonce := expanded[32:]

	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	aead, err := cipher.NewGCM(c)
	if err != nil {
		return nil, nil, err
	}
	return aead, aeadNonce, nil
}
