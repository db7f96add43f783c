package handshake

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"
)

// cipherSuite bundles the AEAD, hash and key/IV sizes negotiated for the
// application data epoch. Initial and Handshake secrets always use
// AES-128-GCM/SHA-256, matching the fixed suite draft-12 mandates before
// negotiation completes.
type cipherSuite struct {
	name   string
	hash   crypto.Hash
	keyLen int
	aead   func(key []byte) (cipher.AEAD, error)
}

var (
	suiteAES128GCMSHA256 = cipherSuite{
		name:   "TLS_AES_128_GCM_SHA256",
		hash:   crypto.SHA256,
		keyLen: 16,
		aead: func(key []byte) (cipher.AEAD, error) {
			block, err := aes.NewCipher(key)
			if err != nil {
				return nil, err
			}
			return cipher.NewGCM(block)
		},
	}

	suiteAES256GCMSHA384 = cipherSuite{
		name:   "TLS_AES_256_GCM_SHA384",
		hash:   crypto.SHA384,
		keyLen: 32,
		aead: func(key []byte) (cipher.AEAD, error) {
			block, err := aes.NewCipher(key)
			if err != nil {
				return nil, err
			}
			return cipher.NewGCM(block)
		},
	}

	suiteChaCha20Poly1305SHA256 = cipherSuite{
		name:   "TLS_CHACHA20_POLY1305_SHA256",
		hash:   crypto.SHA256,
		keyLen: chacha20poly1305.KeySize,
		aead: func(key []byte) (cipher.AEAD, error) {
			return chacha20poly1305.New(key)
		},
	}
)

// cipherSuiteByName resolves a negotiated TLS 1.3 cipher suite name to the
// concrete AEAD constructor. Unknown names fall back to AES-128-GCM.
func cipherSuiteByName(name string) cipherSuite {
	switch name {
	case suiteAES256GCMSHA384.name:
		return suiteAES256GCMSHA384
	case suiteChaCha20Poly1305SHA256.name:
		return suiteChaCha20Poly1305SHA256
	default:
		return suiteAES128GCMSHA256
	}
}
