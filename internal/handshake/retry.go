package handshake

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"sync"

	"github.com/draftquic/draftquic/internal/protocol"
)

var retryAEAD cipher.AEAD

// retryKey and retryNonce are fixed, publicly-known values: the integrity
// tag on a Retry packet only needs to prove the packet wasn't corrupted
// or forged by an off-path attacker who can't see the original
// connection ID, not to keep anything secret.
var retryKey = [16]byte{0x2f, 0x9e, 0x77, 0xa1, 0x0c, 0x4b, 0x88, 0xd3, 0x5e, 0x61, 0xa9, 0x02, 0xf6, 0x3d, 0x14, 0x8b}
var retryNonce = [12]byte{0x91, 0xc4, 0x0e, 0x2d, 0x7a, 0x3f, 0x5b, 0x88, 0x0a, 0x6e, 0x21, 0xd9}

func init() {
	block, err := aes.NewCipher(retryKey[:])
	if err != nil {
		panic(err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		panic(err)
	}
	retryAEAD = aead
}

var retryBuf bytes.Buffer
var retryMutex sync.Mutex

// GetRetryIntegrityTag computes the tag appended to a Retry packet so its
// recipient can detect tampering or a stray Retry from an off-path
// attacker.
func GetRetryIntegrityTag(retry []byte, origDestConnID protocol.ConnectionID) *[16]byte {
	retryMutex.Lock()
	defer retryMutex.Unlock()

	retryBuf.WriteByte(uint8(origDestConnID.Len()))
	retryBuf.Write(origDestConnID.Bytes())
	retryBuf.Write(retry)

	var tag [16]byte
	sealed := retryAEAD.Seal(tag[:0], retryNonce[:], nil, retryBuf.Bytes())
	if len(sealed) != 16 {
		panic(fmt.Sprintf("handshake: unexpected retry integrity tag length: %d", len(sealed)))
	}
	retryBuf.Reset()
	return &tag
}
