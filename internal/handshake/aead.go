package handshake

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"

	"github.com/draftquic/draftquic/internal/protocol"
)

// ErrDecryptionFailed is returned for any AEAD failure. Per the packet
// pipeline's error handling, this is deliberately not distinguishable from
// "wrong key" or "corrupted ciphertext" - both are silently dropped.
var ErrDecryptionFailed = errors.New("handshake: decryption failed")

// LongHeaderSealer seals Initial, 0-RTT and Handshake packets and applies
// header protection to the packet number length bits and the packet
// number itself; the long-header type bits are sent in the clear.
type LongHeaderSealer interface {
	Seal(dst, src []byte, pn protocol.PacketNumber, ad []byte) []byte
	EncryptHeader(sample []byte, firstByte *byte, pnBytes []byte)
	Overhead() int
}

// LongHeaderOpener is the receive-side counterpart of LongHeaderSealer.
type LongHeaderOpener interface {
	Open(dst, src []byte, pn protocol.PacketNumber, ad []byte) ([]byte, error)
	DecryptHeader(sample []byte, firstByte *byte, pnBytes []byte)
}

// sealer wraps a cipher.AEAD constructed with a fixed IV: every call XORs
// the packet number into the IV to build the per-packet nonce, as required
// by the AEAD envelope's nonce-XOR construction.
type sealer struct {
	aead cipher.AEAD
	iv   []byte

	hpEncrypter cipher.Block
	nonceBuf    []byte
	hpMask      []byte
}

var _ LongHeaderSealer = &sealer{}

func newSealer(aead cipher.AEAD, iv []byte, hpEncrypter cipher.Block) *sealer {
	return &sealer{
		aead:        aead,
		iv:          iv,
		hpEncrypter: hpEncrypter,
		nonceBuf:    make([]byte, aead.NonceSize()),
		hpMask:      make([]byte, hpEncrypter.BlockSize()),
	}
}

func (s *sealer) nonce(pn protocol.PacketNumber) []byte {
	clear(s.nonceBuf)
	binary.BigEndian.PutUint64(s.nonceBuf[len(s.nonceBuf)-8:], uint64(pn))
	for i := range s.nonceBuf {
		s.nonceBuf[i] ^= s.iv[i]
	}
	return s.nonceBuf
}

func (s *sealer) Seal(dst, src []byte, pn protocol.PacketNumber, ad []byte) []byte {
	return s.aead.Seal(dst, s.nonce(pn), src, ad)
}

func (s *sealer) EncryptHeader(sample []byte, firstByte *byte, pnBytes []byte) {
	if len(sample) != s.hpEncrypter.BlockSize() {
		panic("handshake: invalid header protection sample size")
	}
	s.hpEncrypter.Encrypt(s.hpMask, sample)
	*firstByte ^= s.hpMask[0] & 0x3
	for i := range pnBytes {
		pnBytes[i] ^= s.hpMask[i+1]
	}
}

func (s *sealer) Overhead() int { return s.aead.Overhead() }

type opener struct {
	aead cipher.AEAD
	iv   []byte

	hpDecrypter cipher.Block
	nonceBuf    []byte
	hpMask      []byte
}

var _ LongHeaderOpener = &opener{}

func newOpener(aead cipher.AEAD, iv []byte, hpDecrypter cipher.Block) *opener {
	return &opener{
		aead:        aead,
		iv:          iv,
		hpDecrypter: hpDecrypter,
		nonceBuf:    make([]byte, aead.NonceSize()),
		hpMask:      make([]byte, hpDecrypter.BlockSize()),
	}
}

func (o *opener) nonce(pn protocol.PacketNumber) []byte {
	clear(o.nonceBuf)
	binary.BigEndian.PutUint64(o.nonceBuf[len(o.nonceBuf)-8:], uint64(pn))
	for i := range o.nonceBuf {
		o.nonceBuf[i] ^= o.iv[i]
	}
	return o.nonceBuf
}

func (o *opener) Open(dst, src []byte, pn protocol.PacketNumber, ad []byte) ([]byte, error) {
	dec, err := o.aead.Open(dst, o.nonce(pn), src, ad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return dec, nil
}

func (o *opener) DecryptHeader(sample []byte, firstByte *byte, pnBytes []byte) {
	if len(sample) != o.hpDecrypter.BlockSize() {
		panic("handshake: invalid header protection sample size")
	}
	o.hpDecrypter.Encrypt(o.hpMask, sample)
	*firstByte ^= o.hpMask[0] & 0x3
	for i := range pnBytes {
		pnBytes[i] ^= o.hpMask[i+1]
	}
}

func createAEAD(suite cipherSuite, trafficSecret []byte) (cipher.AEAD, []byte, error) {
	key := hkdfExpandLabel(suite.hash, trafficSecret, nil, "quic key", suite.keyLen)
	iv := hkdfExpandLabel(suite.hash, trafficSecret, nil, "quic iv", 12)
	aead, err := suite.aead(key)
	if err != nil {
		return nil, nil, err
	}
	return aead, iv, nil
}

func createHeaderProtector(suite cipherSuite, trafficSecret []byte) (cipher.Block, error) {
	hpKey := hkdfExpandLabel(suite.hash, trafficSecret, nil, "quic hp", suite.keyLen)
	return aes.NewCipher(hpKey)
}
