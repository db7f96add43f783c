package testdata

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"sync"
	"time"
)

var (
	certOnce sync.Once
	cert     tls.Certificate
)

// generate builds a throwaway self-signed certificate for localhost/127.0.0.1,
// cached for the lifetime of the process. There is nothing to load from disk
// here: this package only ever backs tests and the demo harness, neither of
// which has a real CA-issued certificate to point at.
func generate() tls.Certificate {
	certOnce.Do(func() {
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			panic(err)
		}
		serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
		if err != nil {
			panic(err)
		}
		template := &x509.Certificate{
			SerialNumber: serial,
			Subject:      pkix.Name{Organization: []string{"draftquic test"}},
			NotBefore:    time.Now().Add(-time.Hour),
			NotAfter:     time.Now().Add(100 * 365 * 24 * time.Hour),
			KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
			ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
			IsCA:         true,
			DNSNames:     []string{"localhost"},
			IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		}
		der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
		if err != nil {
			panic(err)
		}
		cert = tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}
	})
	return cert
}

// GetTLSConfig returns a server-side tls.Config backed by a self-signed
// certificate that is generated once and reused for the life of the process.
func GetTLSConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{generate()},
	}
}

// GetCertificate returns the same self-signed certificate GetTLSConfig
// configures a server with.
func GetCertificate() tls.Certificate {
	return generate()
}
