package jwtx

import (
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/tokend/pkg/cryptox"
)

// Signer produces compact JWS tokens with a single private key.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
}

type keySigner struct {
	kid    string
	alg    string
	method jwt.SigningMethod
	key    crypto.Signer
	jwk    JWK
}

// NewSigner wraps key in a Signer. The algorithm follows the key type. An
// empty kid is replaced by the RFC 7638 thumbprint of the public key.
func NewSigner(kid string, key crypto.Signer) (Signer, error) {
	if key == nil {
		return nil, errors.New("jwtx: nil private key")
	}
	alg, err := AlgorithmForKey(key)
	if err != nil {
		return nil, err
	}
	method, err := signingMethod(alg)
	if err != nil {
		return nil, err
	}

	if kid == "" {
		if kid, err = Thumbprint(key.Public()); err != nil {
			return nil, err
		}
	}

	jwk, err := NewJWK(kid, alg, key.Public())
	if err != nil {
		return nil, err
	}

	return &keySigner{kid: kid, alg: alg, method: method, key: key, jwk: jwk}, nil
}

// NewSignerFromPEM parses a PEM private key and wraps it with NewSigner.
func NewSignerFromPEM(kid string, pemKey []byte) (Signer, error) {
	key, err := cryptox.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: %w", err)
	}
	return NewSigner(kid, key)
}

// NewCertifiedSigner is NewSigner with the certificate published as x5c.
func NewCertifiedSigner(key crypto.Signer, cert *x509.Certificate) (Signer, error) {
	s, err := NewSigner("", key)
	if err != nil {
		return nil, err
	}
	if cert != nil {
		ks := s.(*keySigner)
		ks.jwk.X5c = []string{base64.StdEncoding.EncodeToString(cert.Raw)}
	}
	return s, nil
}

func (s *keySigner) Alg() string    { return s.alg }
func (s *keySigner) KID() string    { return s.kid }
func (s *keySigner) PublicJWK() JWK { return s.jwk }

func (s *keySigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}
