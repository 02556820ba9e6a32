package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/tokend/pkg/cryptox"
)

// Supported JWS algorithms.
const (
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

// DefaultRSABits is used when RS256 keys are generated without a size.
const DefaultRSABits = 4096

var ErrUnsupportedAlgorithm = errors.New("jwtx: unsupported algorithm")

// SupportedAlgorithms lists every algorithm this package signs and verifies.
func SupportedAlgorithms() []string {
	return []string{AlgorithmEdDSA, AlgorithmES256, AlgorithmRS256}
}

// AlgorithmForKey derives the JWS algorithm from the private key type.
func AlgorithmForKey(key crypto.Signer) (string, error) {
	switch key.(type) {
	case ed25519.PrivateKey:
		return AlgorithmEdDSA, nil
	case *ecdsa.PrivateKey:
		return AlgorithmES256, nil
	case *rsa.PrivateKey:
		return AlgorithmRS256, nil
	default:
		return "", fmt.Errorf("%w: key type %T", ErrUnsupportedAlgorithm, key)
	}
}

func signingMethod(alg string) (jwt.SigningMethod, error) {
	switch alg {
	case AlgorithmEdDSA:
		return jwt.SigningMethodEdDSA, nil
	case AlgorithmES256:
		return jwt.SigningMethodES256, nil
	case AlgorithmRS256:
		return jwt.SigningMethodRS256, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedAlgorithm, alg)
	}
}

// GenerateKey creates a fresh PKCS8 PEM private key for alg.
func GenerateKey(alg string, rsaBits int) ([]byte, error) {
	switch alg {
	case AlgorithmEdDSA:
		return cryptox.GenerateEd25519Key()
	case AlgorithmES256:
		return cryptox.GenerateES256Key()
	case AlgorithmRS256:
		if rsaBits == 0 {
			rsaBits = DefaultRSABits
		}
		return cryptox.GenerateRSAKey(rsaBits)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedAlgorithm, alg)
	}
}

// GenerateSigner creates a new key for alg and wraps it in a Signer keyed by
// its thumbprint. The PEM is returned so callers can persist it.
func GenerateSigner(alg string, rsaBits int) (Signer, []byte, error) {
	pemData, err := GenerateKey(alg, rsaBits)
	if err != nil {
		return nil, nil, err
	}
	s, err := NewSignerFromPEM("", pemData)
	if err != nil {
		return nil, nil, err
	}
	return s, pemData, nil
}
