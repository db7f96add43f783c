package handshake

import (
	"encoding/asn1"
	"fmt"
	"net"
	"time"

	"github.com/draftquic/draftquic/internal/protocol"
)

const (
	tokenPrefixIP byte = iota
	tokenPrefixString
)

// Token is the address-validation data recovered from a Retry token a
// returning client presented back to the server.
type Token struct {
	RemoteAddr               string
	SentTime                 time.Time
	OriginalDestConnectionID protocol.ConnectionID
}

type token struct {
	RemoteAddr               []byte
	Timestamp                int64
	OriginalDestConnectionID []byte
}

// TokenGenerator issues and validates the opaque tokens a server hands
// out in Retry packets, so it doesn't need to keep per-client state to
// verify a returning client actually owns its claimed address.
type TokenGenerator struct {
	tokenProtector *tokenProtector
}

// NewTokenGenerator creates a generator with a fresh, process-lifetime
// protector key.
func NewTokenGenerator() (*TokenGenerator, error) {
	protector, err := newTokenProtector()
	if err != nil {
		return nil, err
	}
	return &TokenGenerator{tokenProtector: protector}, nil
}

// NewRetryToken produces a token binding raddr and origConnID together,
// timestamped so expired tokens can be rejected later.
func (g *TokenGenerator) NewRetryToken(raddr net.Addr, origConnID protocol.ConnectionID) ([]byte, error) {
	data, err := asn1.Marshal(token{
		RemoteAddr:               encodeRemoteAddr(raddr),
		OriginalDestConnectionID: origConnID.Bytes(),
		Timestamp:                time.Now().UnixNano(),
	})
	if err != nil {
		return nil, err
	}
	return g.tokenProtector.NewToken(data)
}

// DecodeToken recovers the Token sealed by NewRetryToken. A nil or empty
// input, as sent by a client with no token, decodes to a nil Token.
func (g *TokenGenerator) DecodeToken(encrypted []byte) (*Token, error) {
	if len(encrypted) == 0 {
		return nil, nil
	}

	data, err := g.tokenProtector.DecodeToken(encrypted)
	if err != nil {
		return nil, err
	}
	t := &token{}
	rest, err := asn1.Unmarshal(data, t)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("handshake: %d trailing bytes unpacking token", len(rest))
	}
	result := &Token{
		RemoteAddr: decodeRemoteAddr(t.RemoteAddr),
		SentTime:   time.Unix(0, t.Timestamp),
	}
	if len(t.OriginalDestConnectionID) > 0 {
		result.OriginalDestConnectionID = protocol.ConnectionID(t.OriginalDestConnectionID)
	}
	return result, nil
}

func encodeRemoteAddr(remoteAddr net.Addr) []byte {
	if udpAddr, ok := remoteAddr.(*net.UDPAddr); ok {
		return append([]byte{tokenPrefixIP}, udpAddr.IP...)
	}
	return append([]byte{tokenPrefixString}, []byte(remoteAddr.String())...)
}

func decodeRemoteAddr(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if data[0] == tokenPrefixIP {
		return net.IP(data[1:]).String()
	}
	return string(data[1:])
}
