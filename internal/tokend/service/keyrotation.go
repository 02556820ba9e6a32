package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/tokend/internal/tokend/domain"
	"github.com/aussiebroadwan/tokend/internal/tokend/store"
	"github.com/aussiebroadwan/tokend/pkg/cryptox"
	"github.com/aussiebroadwan/tokend/pkg/idx"
	"github.com/aussiebroadwan/tokend/pkg/jwtx"
)

// DefaultKeyGracePeriod keeps a retired key verifiable for 30 days.
const DefaultKeyGracePeriod = 30 * 24 * time.Hour

// ErrRotationUnsupported is returned when rotating a key that is not stored
// in the database.
var ErrRotationUnsupported = errors.New("key rotation requires the persistent key source")

// KeyRotationService replaces the active signing key. Only persistent keys
// rotate; file keys are rotated by replacing the file and ephemeral keys by
// restarting.
type KeyRotationService struct {
	Store       store.Store
	KeyManager  *jwtx.KeyManager
	Sealer      *cryptox.Sealer
	Algorithm   string
	RSABits     int
	GracePeriod time.Duration
	Now         func() time.Time
}

// RotateKeyResponse is the result of a rotation.
type RotateKeyResponse struct {
	NewKey      domain.SigningKey   `json:"new_key"`
	RetiredKeys []domain.SigningKey `json:"retired_keys,omitempty"`
}

// RotateKey generates and stores a new active key and retires every other
// active key. Retired keys stay published until their grace period ends.
func (s *KeyRotationService) RotateKey(ctx context.Context) (*RotateKeyResponse, error) {
	if s.KeyManager == nil {
		return nil, errors.New("KeyManager is required")
	}
	if s.Store == nil || s.Sealer == nil || s.KeyManager.Source() != jwtx.KeySourcePersistent {
		return nil, ErrRotationUnsupported
	}

	now := s.now()
	grace := s.GracePeriod
	if grace <= 0 {
		grace = DefaultKeyGracePeriod
	}
	alg := s.Algorithm
	if alg == "" {
		alg = s.KeyManager.Algorithm()
	}

	signer, rec, err := jwtx.NewSealedSigningKey(s.Sealer, alg, s.RSABits, now)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	newKey := domain.SigningKey{
		ID:                  idx.NewAt(now).String(),
		Kid:                 rec.Kid,
		Algorithm:           rec.Algorithm,
		PrivateKeyEncrypted: rec.PrivateKeyEncrypted,
		CreatedAt:           rec.CreatedAt,
	}

	var retired []domain.SigningKey
	expires := now.Add(grace)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.SigningKeys().ListSigningKeys(ctx)
		if err != nil {
			return fmt.Errorf("list signing keys: %w", err)
		}
		if err := tx.SigningKeys().CreateSigningKey(ctx, newKey); err != nil {
			return fmt.Errorf("create signing key: %w", err)
		}

		for _, key := range existing {
			if !key.IsActive() {
				continue
			}
			if err := tx.SigningKeys().RetireSigningKey(ctx, key.Kid, now, expires); err != nil {
				return fmt.Errorf("retire key %s: %w", key.Kid, err)
			}
			key.RetiredAt = &now
			key.ExpiresAt = &expires
			retired = append(retired, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.KeyManager.Activate(signer); err != nil {
		return nil, fmt.Errorf("activate signing key: %w", err)
	}

	return &RotateKeyResponse{NewKey: newKey, RetiredKeys: retired}, nil
}

// ListSigningKeys returns the stored keys in persistent mode, otherwise a
// single entry for the in-memory active key.
func (s *KeyRotationService) ListSigningKeys(ctx context.Context) ([]domain.SigningKey, error) {
	if s.Store != nil && s.KeyManager != nil && s.KeyManager.Source() == jwtx.KeySourcePersistent {
		return s.Store.SigningKeys().ListSigningKeys(ctx)
	}
	if s.KeyManager == nil {
		return nil, errors.New("KeyManager is required")
	}

	active, err := s.KeyManager.ActiveKey()
	if err != nil {
		return nil, err
	}
	return []domain.SigningKey{{Kid: active.KID(), Algorithm: active.Alg()}}, nil
}

func (s *KeyRotationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
