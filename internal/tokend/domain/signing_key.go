package domain

import "time"

// SigningKey is a JWT signing key stored in the database. The private key PEM
// is sealed with AES-256-GCM. A retired key no longer signs but stays in the
// JWKS until ExpiresAt so tokens it issued can still be verified.
type SigningKey struct {
	ID                  string     // ULID
	Kid                 string     // RFC 7638 thumbprint
	Algorithm           string     // RS256, ES256 or EdDSA
	PrivateKeyEncrypted []byte
	CreatedAt           time.Time
	RetiredAt           *time.Time // nil while active
	ExpiresAt           *time.Time // set on retirement
}

// IsActive returns true if the key may sign new tokens.
func (k *SigningKey) IsActive() bool {
	return k.RetiredAt == nil
}

// IsExpired returns true once the key has left its verification window.
func (k *SigningKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}
