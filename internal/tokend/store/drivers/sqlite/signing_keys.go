package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/tokend/internal/tokend/domain"
	"github.com/aussiebroadwan/tokend/internal/tokend/store"
	"github.com/aussiebroadwan/tokend/internal/tokend/store/drivers/sqlite/gen"
)

type signingKeysRepo struct {
	q *gen.Queries
}

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, key domain.SigningKey) error {
	err := r.q.CreateSigningKey(ctx, gen.CreateSigningKeyParams{
		ID:                  key.ID,
		Kid:                 key.Kid,
		Algorithm:           key.Algorithm,
		PrivateKeyEncrypted: key.PrivateKeyEncrypted,
		CreatedAt:           utc(key.CreatedAt),
		RetiredAt:           mapOptionalTime(key.RetiredAt),
		ExpiresAt:           mapOptionalTime(key.ExpiresAt),
	})
	return mapConstraint(err)
}

func (r *signingKeysRepo) GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error) {
	row, err := r.q.GetSigningKeyByKid(ctx, kid)
	if err != nil {
		return domain.SigningKey{}, mapNotFound(err)
	}
	return mapSigningKey(row), nil
}

func (r *signingKeysRepo) ListSigningKeys(ctx context.Context) ([]domain.SigningKey, error) {
	rows, err := r.q.ListSigningKeys(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]domain.SigningKey, len(rows))
	for i, row := range rows {
		keys[i] = mapSigningKey(row)
	}
	return keys, nil
}

// RetireSigningKey returns ErrNotFound when no active key has the kid.
func (r *signingKeysRepo) RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error {
	n, err := r.q.RetireSigningKey(ctx, gen.RetireSigningKeyParams{
		RetiredAt: sql.NullTime{Time: utc(retiredAt), Valid: true},
		ExpiresAt: sql.NullTime{Time: utc(expiresAt), Valid: true},
		Kid:       kid,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *signingKeysRepo) DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error) {
	return r.q.DeleteExpiredSigningKeys(ctx, sql.NullTime{Time: utc(now), Valid: true})
}
