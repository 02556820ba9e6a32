package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tokend/pkg/jwtx"
)

// CheckResult is the outcome of one startup check.
type CheckResult struct {
	Name   string
	Detail string
	Err    error
}

func (r CheckResult) OK() bool { return r.Err == nil }

// Check performs the same verification New does before serving: the
// configuration is valid, the database opens and migrates, the pepper is
// readable and a signing key can be loaded. Persistent keys are only read;
// Check never generates one. It stops at the first failed check and returns
// every result collected so far.
func Check(ctx context.Context, cfg Config, logger *slog.Logger) ([]CheckResult, error) {
	var results []CheckResult
	record := func(name, detail string, err error) bool {
		results = append(results, CheckResult{Name: name, Detail: detail, Err: err})
		return err == nil
	}

	if !record("config", fmt.Sprintf("env=%s issuer=%s", cfg.Env, cfg.Issuer), cfg.Validate()) {
		return results, failed(results)
	}

	db, err := OpenStore(cfg)
	if !record("database", cfg.DatabaseFile, err) {
		return results, failed(results)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	err = db.Ping(pingCtx)
	cancel()
	if !record("database ping", "", err) {
		return results, failed(results)
	}

	version, _, err := db.SchemaVersion()
	if !record("schema", fmt.Sprintf("version %d", version), err) {
		return results, failed(results)
	}

	users, err := db.Users().CountUsers(ctx)
	if !record("users", fmt.Sprintf("%d credentials", users), err) {
		return results, failed(results)
	}

	_, err = LoadHasher(cfg)
	if !record("pepper", cfg.PepperFile, err) {
		return results, failed(results)
	}

	km, _, err := loadAuthKeys(ctx, cfg, db, logger, true)
	if errors.Is(err, jwtx.ErrNoStoredKey) {
		record("signing key", "source=persistent no active key stored; serve generates one on start", nil)
		return results, nil
	}
	detail := ""
	if err == nil {
		active, _ := km.ActiveKey()
		detail = fmt.Sprintf("source=%s kid=%s alg=%s", km.Source(), active.KID(), active.Alg())
	}
	if !record("signing key", detail, err) {
		return results, failed(results)
	}

	if km.Source() == jwtx.KeySourcePersistent {
		active, _ := km.ActiveKey()
		key, err := db.SigningKeys().GetSigningKeyByKid(ctx, active.KID())
		detail := ""
		if err == nil {
			detail = "created " + key.CreatedAt.Format(time.RFC3339)
		}
		if !record("key record", detail, err) {
			return results, failed(results)
		}
	}

	return results, nil
}

func failed(results []CheckResult) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return errors.Join(errs...)
}
