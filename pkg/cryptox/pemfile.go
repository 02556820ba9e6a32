package cryptox

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	ErrCertificateMismatch    = errors.New("cryptox: certificate does not match private key")
	ErrCertificateExpired     = errors.New("cryptox: certificate has expired")
	ErrCertificateNotYetValid = errors.New("cryptox: certificate is not yet valid")
)

// KeyBundle is a signing key loaded from disk, with the certificate that
// accompanied it when one was present.
type KeyBundle struct {
	Key         crypto.Signer
	Certificate *x509.Certificate // nil when the file carried no certificate

	// PEM is the key re-encoded as PKCS8.
	PEM []byte
}

// LoadKeyBundle reads a PEM file holding a private key and an optional
// CERTIFICATE block. A certificate must carry the key's public half and be
// valid at now.
func LoadKeyBundle(path string, now time.Time) (*KeyBundle, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("cryptox: read key file: %w", err)
	}
	return ParseKeyBundle(data, now)
}

// ParseKeyBundle is LoadKeyBundle for in-memory PEM data.
func ParseKeyBundle(data []byte, now time.Time) (*KeyBundle, error) {
	key, err := ParsePrivateKeyPEM(data)
	if err != nil {
		return nil, err
	}

	normalized, err := EncodePrivateKeyPEM(key)
	if err != nil {
		return nil, err
	}
	bundle := &KeyBundle{Key: key, PEM: normalized}

	cert, err := firstCertificate(data)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return bundle, nil
	}

	if !samePublicKey(key.Public(), cert.PublicKey) {
		return nil, ErrCertificateMismatch
	}
	if now.Before(cert.NotBefore) {
		return nil, fmt.Errorf("%w: not before %s", ErrCertificateNotYetValid, cert.NotBefore.UTC().Format(time.RFC3339))
	}
	if now.After(cert.NotAfter) {
		return nil, fmt.Errorf("%w: not after %s", ErrCertificateExpired, cert.NotAfter.UTC().Format(time.RFC3339))
	}

	bundle.Certificate = cert
	return bundle, nil
}

func firstCertificate(data []byte) (*x509.Certificate, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, nil
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("cryptox: parse certificate: %w", err)
		}
		return cert, nil
	}
}

func samePublicKey(a, b crypto.PublicKey) bool {
	ad, err := x509.MarshalPKIXPublicKey(a)
	if err != nil {
		return false
	}
	bd, err := x509.MarshalPKIXPublicKey(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ad, bd)
}
