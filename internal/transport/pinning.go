package transport

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

// placeholderBackupPin satisfies the two-pin invariant when the host only
// configures a primary pin. It matches no real certificate.
const placeholderBackupPin = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="

// PinSet holds the SPKI SHA-256 pins accepted for one host.
type PinSet struct {
	Host string
	Pins []string
}

// NewPinSet builds a pin set from configuration. A backup pin is mandatory;
// when none is configured the placeholder is substituted so the two-pin
// invariant holds.
func NewPinSet(host, primary, backup string) (*PinSet, error) {
	if host == "" || primary == "" {
		return nil, fmt.Errorf("pinning requires a host and a primary pin")
	}
	if backup == "" {
		backup = placeholderBackupPin
	}
	for _, pin := range []string{primary, backup} {
		if _, err := base64.StdEncoding.DecodeString(pin); err != nil {
			return nil, fmt.Errorf("malformed pin %q: %w", pin, err)
		}
	}
	return &PinSet{Host: host, Pins: []string{primary, backup}}, nil
}

// TLSConfig returns a TLS configuration that rejects any certificate chain
// in which no certificate's SPKI digest matches a configured pin.
func (p *PinSet) TLSConfig() *tls.Config {
	return &tls.Config{
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			for _, raw := range rawCerts {
				cert, err := x509.ParseCertificate(raw)
				if err != nil {
					continue
				}
				digest := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
				encoded := base64.StdEncoding.EncodeToString(digest[:])
				for _, pin := range p.Pins {
					if encoded == pin {
						return nil
					}
				}
			}
			return fmt.Errorf("certificate pinning failed for %s", p.Host)
		},
	}
}
