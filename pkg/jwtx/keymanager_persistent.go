package jwtx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/tokend/pkg/cryptox"
)

// SigningKeyRecord is a stored signing key. The private key is sealed.
type SigningKeyRecord struct {
	Kid                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	CreatedAt           time.Time
	RetiredAt           *time.Time
	ExpiresAt           *time.Time
}

// Active reports whether the record can still sign.
func (r SigningKeyRecord) Active() bool { return r.RetiredAt == nil }

// Expired reports whether the record has left its verification window.
func (r SigningKeyRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// ErrNoStoredKey is returned by a read-only persistent key manager when the
// store holds no active key.
var ErrNoStoredKey = fmt.Errorf("%w: no active key stored", ErrKeyUnavailable)

// KeyStore is the storage the persistent key manager needs.
type KeyStore interface {
	ListSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)
	CreateSigningKey(ctx context.Context, key SigningKeyRecord) error
}

// PersistentKeyManagerOptions configures a database backed KeyManager.
type PersistentKeyManagerOptions struct {
	Store  KeyStore
	Sealer *cryptox.Sealer

	KeyManagerOptions

	// ReadOnly loads existing keys only. With no active key stored the
	// constructor fails with ErrNoStoredKey instead of generating one.
	ReadOnly bool

	Now func() time.Time
}

// NewPersistentKeyManager loads sealed keys from the store. The newest
// unretired key signs; retired keys that have not expired stay published.
// When no active key exists a new one is generated and stored, unless
// ReadOnly is set.
func NewPersistentKeyManager(ctx context.Context, opts PersistentKeyManagerOptions) (*KeyManager, error) {
	if opts.Store == nil || opts.Sealer == nil {
		return nil, errors.New("jwtx: persistent key manager needs a store and a sealer")
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	records, err := opts.Store.ListSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: list signing keys: %w", err)
	}

	km := newKeyManager(KeySourcePersistent, VerifyOptions{Issuer: opts.Issuer, Audience: opts.Audience})

	var newest *SigningKeyRecord
	for i := range records {
		rec := records[i]
		if rec.Expired(now()) {
			continue
		}

		signer, err := OpenSigningKey(opts.Sealer, rec)
		if err != nil {
			return nil, err
		}
		if err := km.Publish(signer.PublicJWK()); err != nil {
			return nil, err
		}
		if rec.Active() && (newest == nil || rec.CreatedAt.After(newest.CreatedAt)) {
			newest = &records[i]
		}
	}

	if newest != nil {
		signer, err := OpenSigningKey(opts.Sealer, *newest)
		if err != nil {
			return nil, err
		}
		if err := km.Activate(signer); err != nil {
			return nil, err
		}
		return km, nil
	}
	if opts.ReadOnly {
		return nil, ErrNoStoredKey
	}

	signer, rec, err := NewSealedSigningKey(opts.Sealer, opts.Algorithm, opts.RSABits, now())
	if err != nil {
		return nil, err
	}
	if err := opts.Store.CreateSigningKey(ctx, rec); err != nil {
		return nil, fmt.Errorf("jwtx: store signing key: %w", err)
	}
	if err := km.Activate(signer); err != nil {
		return nil, err
	}
	return km, nil
}

// OpenSigningKey unseals rec into a Signer.
func OpenSigningKey(sealer *cryptox.Sealer, rec SigningKeyRecord) (Signer, error) {
	pemData, err := sealer.Open(rec.PrivateKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("jwtx: unseal key %s: %w", rec.Kid, err)
	}
	signer, err := NewSignerFromPEM(rec.Kid, pemData)
	if err != nil {
		return nil, fmt.Errorf("jwtx: load key %s: %w", rec.Kid, err)
	}
	if signer.Alg() != rec.Algorithm {
		return nil, fmt.Errorf("%w: key %s stored as %s but is %s", ErrAlgMismatch, rec.Kid, rec.Algorithm, signer.Alg())
	}
	return signer, nil
}

// NewSealedSigningKey generates a key for alg and returns it with a sealed
// record ready to store.
func NewSealedSigningKey(sealer *cryptox.Sealer, alg string, rsaBits int, now time.Time) (Signer, SigningKeyRecord, error) {
	signer, pemData, err := GenerateSigner(alg, rsaBits)
	if err != nil {
		return nil, SigningKeyRecord{}, err
	}
	sealed, err := sealer.Seal(pemData)
	if err != nil {
		return nil, SigningKeyRecord{}, err
	}
	return signer, SigningKeyRecord{
		Kid:                 signer.KID(),
		Algorithm:           signer.Alg(),
		PrivateKeyEncrypted: sealed,
		CreatedAt:           now.UTC(),
	}, nil
}
