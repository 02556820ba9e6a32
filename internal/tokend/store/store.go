package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/tokend/internal/tokend/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Drivers implement it and expose
// sub-repositories so a Tx-scoped store can hand out the same repos.
type Store interface {
	Users() Users
	SigningKeys() SigningKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Users is the credential store. The token endpoint only reads from it.
type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during the password grant.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user. Returns ErrAlreadyExists when the
	// username is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	CountUsers(ctx context.Context) (int64, error)
}

type SigningKeys interface {
	// CreateSigningKey stores a new signing key with sealed private key material.
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error)

	// ListSigningKeys returns every key, newest first.
	ListSigningKeys(ctx context.Context) ([]domain.SigningKey, error)

	// RetireSigningKey stops a key from signing. It stays verifiable until
	// expiresAt.
	RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error

	// DeleteExpiredSigningKeys removes keys whose expires_at is before now and
	// returns how many were removed.
	DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error)
}
