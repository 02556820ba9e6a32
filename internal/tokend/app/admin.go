package app

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/tokend/internal/tokend/domain"
	"github.com/aussiebroadwan/tokend/internal/tokend/service"
	"github.com/aussiebroadwan/tokend/internal/tokend/store/drivers/sqlite"
)

// Admin runs operator commands against the database without starting the
// HTTP server.
type Admin struct {
	cfg    Config
	logger *slog.Logger
	db     *sqlite.Store
}

func OpenAdmin(cfg Config, logger *slog.Logger) (*Admin, error) {
	db, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	return &Admin{cfg: cfg, logger: logger, db: db}, nil
}

func (a *Admin) Close() error { return a.db.Close() }

func (a *Admin) users() (*service.UserService, error) {
	hasher, err := LoadHasher(a.cfg)
	if err != nil {
		return nil, err
	}
	return &service.UserService{Store: a.db, Hasher: hasher}, nil
}

// AddUser creates a credential.
func (a *Admin) AddUser(ctx context.Context, username, password string) (domain.User, error) {
	users, err := a.users()
	if err != nil {
		return domain.User{}, err
	}
	return users.CreateUser(ctx, username, password)
}

// SetPassword replaces the password of an existing user.
func (a *Admin) SetPassword(ctx context.Context, username, password string) error {
	users, err := a.users()
	if err != nil {
		return err
	}
	return users.SetPassword(ctx, username, password)
}

func (a *Admin) keys(ctx context.Context) (*service.KeyRotationService, error) {
	km, sealer, err := InitAuthKeys(ctx, a.cfg, a.db, a.logger)
	if err != nil {
		return nil, err
	}
	return &service.KeyRotationService{
		Store:       a.db,
		KeyManager:  km,
		Sealer:      sealer,
		Algorithm:   a.cfg.Algorithm,
		RSABits:     a.cfg.RSABits,
		GracePeriod: a.cfg.KeyGracePeriod,
	}, nil
}

// ListKeys returns the signing keys of the configured key source.
func (a *Admin) ListKeys(ctx context.Context) ([]domain.SigningKey, error) {
	rotation, err := a.keys(ctx)
	if err != nil {
		return nil, err
	}
	return rotation.ListSigningKeys(ctx)
}

// RotateKey replaces the active persistent key. Running servers keep
// signing with the previous key until they restart.
func (a *Admin) RotateKey(ctx context.Context) (*service.RotateKeyResponse, error) {
	rotation, err := a.keys(ctx)
	if err != nil {
		return nil, err
	}
	return rotation.RotateKey(ctx)
}
