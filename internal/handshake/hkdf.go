package handshake

import (
	"crypto"
	"encoding/binary"

	"golang.org/x/crypto/hkdf"
)

// hkdfExpandLabel implements the RFC 8446 §7.1 HKDF-Expand-Label
// construction QUIC uses to derive its packet-protection keys from a
// traffic secret.
func hkdfExpandLabel(hash crypto.Hash, secret, context []byte, label string, length int) []byte {
	fullLabel := "tls13 " + label

	info := make([]byte, 0, 2+1+len(fullLabel)+1+len(context))
	info = binary.BigEndian.AppendUint16(info, uint16(length))
	info = append(info, uint8(len(fullLabel)))
	info = append(info, fullLabel...)
	info = append(info, uint8(len(context)))
	info = append(info, context...)

	out := make([]byte, length)
	r := hkdf.Expand(hash.New, secret, info)
	if _, err := r.Read(out); err != nil {
		panic("handshake: hkdf-expand-label failed: " + err.Error())
	}
	return out
}

// hkdfExtract is a thin wrapper for readability at call sites.
func hkdfExtract(hash crypto.Hash, secret, salt []byte) []byte {
	return hkdf.Extract(hash.New, secret, salt)
}
