package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tokend/internal/tokend/store"
	"github.com/aussiebroadwan/tokend/pkg/cryptox"
	"github.com/aussiebroadwan/tokend/pkg/jwtx"
)

// ResolveKeySource picks the key source. An explicit AUTH_KEY_SOURCE wins;
// otherwise a configured key file is used, then ephemeral keys when the
// operator allowed them. Ephemeral keys are never chosen in prod.
func ResolveKeySource(cfg Config) (string, error) {
	source := cfg.KeySource
	if source == "" {
		switch {
		case cfg.SigningKeyFile != "":
			source = jwtx.KeySourceFile
		case cfg.AllowDevelopmentKeys:
			source = jwtx.KeySourceEphemeral
		default:
			return "", fmt.Errorf("%w: set AUTH_SIGNING_KEY_FILE, AUTH_KEY_SOURCE=persistent or allow development keys",
				jwtx.ErrKeyUnavailable)
		}
	}

	if source == jwtx.KeySourceEphemeral && (!cfg.AllowDevelopmentKeys || cfg.IsProduction()) {
		return "", fmt.Errorf("%w: ephemeral keys need AUTH_ALLOW_DEVELOPMENT_KEYS=true outside prod",
			jwtx.ErrKeyUnavailable)
	}
	return source, nil
}

// LoadSealer returns the master key sealer for persistent keys. The key file
// takes precedence over the inline AUTH_MASTER_KEY value.
func LoadSealer(cfg Config) (*cryptox.Sealer, error) {
	switch {
	case cfg.MasterKeyPath != "":
		return cryptox.LoadSealer(cfg.MasterKeyPath)
	case cfg.MasterKey != "":
		return cryptox.NewSealer([]byte(cfg.MasterKey))
	}
	return nil, errors.New("persistent keys need AUTH_MASTER_KEY_PATH or AUTH_MASTER_KEY")
}

// InitAuthKeys builds the KeyManager for the resolved key source. The
// returned sealer is nil unless the source is persistent. Any failure wraps
// jwtx.ErrKeyUnavailable and must stop the service from starting.
func InitAuthKeys(ctx context.Context, cfg Config, db store.Store, logger *slog.Logger) (*jwtx.KeyManager, *cryptox.Sealer, error) {
	return loadAuthKeys(ctx, cfg, db, logger, false)
}

// loadAuthKeys is InitAuthKeys with an option to never write to the store.
// A read-only persistent load with no stored key fails with
// jwtx.ErrNoStoredKey.
func loadAuthKeys(ctx context.Context, cfg Config, db store.Store, logger *slog.Logger, readOnly bool) (*jwtx.KeyManager, *cryptox.Sealer, error) {
	source, err := ResolveKeySource(cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		RSABits:   cfg.RSABits,
		Issuer:    cfg.Issuer,
		Audience:  cfg.Audience,
	}

	var (
		km     *jwtx.KeyManager
		sealer *cryptox.Sealer
	)
	switch source {
	case jwtx.KeySourceFile:
		km, err = jwtx.NewFileKeyManager(jwtx.FileKeyManagerOptions{
			Path:     cfg.SigningKeyFile,
			Issuer:   cfg.Issuer,
			Audience: cfg.Audience,
			Now:      time.Now(),
		})

	case jwtx.KeySourcePersistent:
		sealer, err = LoadSealer(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", jwtx.ErrKeyUnavailable, err)
		}
		km, err = jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
			Store:             store.NewKeyStoreAdapter(db),
			Sealer:            sealer,
			KeyManagerOptions: opts,
			ReadOnly:          readOnly,
		})

	case jwtx.KeySourceEphemeral:
		km, err = jwtx.NewEphemeralKeyManager(opts)
		if err == nil {
			logger.Warn("using an ephemeral signing key; tokens stop verifying on restart")
		}
	}
	if err != nil {
		if !errors.Is(err, jwtx.ErrKeyUnavailable) {
			err = fmt.Errorf("%w: %w", jwtx.ErrKeyUnavailable, err)
		}
		return nil, nil, err
	}

	active, err := km.ActiveKey()
	if err != nil {
		return nil, nil, err
	}
	logger.Info("signing key loaded",
		"source", source,
		"kid", active.KID(),
		"algorithm", active.Alg(),
		"published_keys", km.Keys().Len(),
	)
	return km, sealer, nil
}
