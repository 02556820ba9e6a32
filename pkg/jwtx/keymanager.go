package jwtx

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aussiebroadwan/tokend/pkg/cryptox"
)

// ErrKeyUnavailable is returned when no signing key has been provisioned.
var ErrKeyUnavailable = errors.New("jwtx: signing key unavailable")

// Key sources.
const (
	KeySourceFile       = "file"
	KeySourcePersistent = "persistent"
	KeySourceEphemeral  = "ephemeral"
)

// KeyManager owns the single active signing key plus the published set of
// public keys that still verify. Every token is signed with ActiveKey.
type KeyManager struct {
	mu     sync.RWMutex
	active Signer

	source   string
	keys     *KeySet
	verifier *KeySetVerifier
}

// KeyManagerOptions configures generated keys and verification.
type KeyManagerOptions struct {
	// Algorithm for generated keys: RS256, ES256 or EdDSA.
	Algorithm string
	// RSABits for RS256 keys, DefaultRSABits when zero.
	RSABits int

	Issuer   string
	Audience []string
}

func newKeyManager(source string, verify VerifyOptions) *KeyManager {
	keys := NewKeySet()
	return &KeyManager{
		source:   source,
		keys:     keys,
		verifier: NewVerifier(keys, verify),
	}
}

// NewEphemeralKeyManager generates an in-memory key. Tokens it signs stop
// verifying once the process exits.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	signer, _, err := GenerateSigner(opts.Algorithm, opts.RSABits)
	if err != nil {
		return nil, fmt.Errorf("jwtx: generate ephemeral key: %w", err)
	}

	km := newKeyManager(KeySourceEphemeral, VerifyOptions{Issuer: opts.Issuer, Audience: opts.Audience})
	if err := km.Activate(signer); err != nil {
		return nil, err
	}
	return km, nil
}

// FileKeyManagerOptions configures a KeyManager backed by a PEM file.
type FileKeyManagerOptions struct {
	Path     string
	Issuer   string
	Audience []string
	// Now is the instant the certificate validity is checked against.
	Now time.Time
}

// NewFileKeyManager loads the signing key from opts.Path. The algorithm is
// taken from the key type and the kid is the key thumbprint. An accompanying
// certificate must match the key and be currently valid.
func NewFileKeyManager(opts FileKeyManagerOptions) (*KeyManager, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("%w: no key file configured", ErrKeyUnavailable)
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	bundle, err := cryptox.LoadKeyBundle(opts.Path, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}
	signer, err := NewCertifiedSigner(bundle.Key, bundle.Certificate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}

	km := newKeyManager(KeySourceFile, VerifyOptions{Issuer: opts.Issuer, Audience: opts.Audience})
	if err := km.Activate(signer); err != nil {
		return nil, err
	}
	return km, nil
}

// ActiveKey returns the key new tokens are signed with.
func (km *KeyManager) ActiveKey() (Signer, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()
	if km.active == nil {
		return nil, ErrKeyUnavailable
	}
	return km.active, nil
}

// Activate publishes s and makes it the signing key. The previous key stays
// published until Retire removes it.
func (km *KeyManager) Activate(s Signer) error {
	if s == nil {
		return errors.New("jwtx: nil signer")
	}
	if err := km.keys.AddSigner(s); err != nil {
		return fmt.Errorf("jwtx: publish key %s: %w", s.KID(), err)
	}
	km.mu.Lock()
	km.active = s
	km.mu.Unlock()
	return nil
}

// Publish adds a verification only key, such as a retired key still inside
// its grace period.
func (km *KeyManager) Publish(j JWK) error {
	return km.keys.AddJWK(j)
}

// Retire unpublishes kid. The active key cannot be retired.
func (km *KeyManager) Retire(kid string) error {
	km.mu.RLock()
	active := km.active
	km.mu.RUnlock()
	if active != nil && active.KID() == kid {
		return fmt.Errorf("jwtx: refusing to retire active key %s", kid)
	}
	km.keys.Remove(kid)
	return nil
}

func (km *KeyManager) Source() string { return km.source }

// Algorithm of the active key, or empty when none is loaded.
func (km *KeyManager) Algorithm() string {
	s, err := km.ActiveKey()
	if err != nil {
		return ""
	}
	return s.Alg()
}

func (km *KeyManager) Keys() *KeySet { return km.keys }

func (km *KeyManager) Verifier() Verifier { return km.verifier }

// IsReady reports whether a signing key is loaded.
func (km *KeyManager) IsReady() bool {
	_, err := km.ActiveKey()
	return err == nil
}
