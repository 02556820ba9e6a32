package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tokend/internal/tokend/domain"
	"github.com/aussiebroadwan/tokend/internal/tokend/store"
	"github.com/aussiebroadwan/tokend/pkg/cryptox"
	"github.com/aussiebroadwan/tokend/pkg/metricx"
	"github.com/aussiebroadwan/tokend/pkg/slogx"
)

// DefaultCredentialTimeout bounds a single credential store lookup.
const DefaultCredentialTimeout = 3 * time.Second

// CredentialValidator checks a username and password against the user store.
type CredentialValidator struct {
	Users   store.Users
	Hasher  *cryptox.Hasher
	Timeout time.Duration
	Metrics *metricx.Metrics // optional
}

func NewCredentialValidator(users store.Users, hasher *cryptox.Hasher, timeout time.Duration) *CredentialValidator {
	if timeout <= 0 {
		timeout = DefaultCredentialTimeout
	}
	return &CredentialValidator{Users: users, Hasher: hasher, Timeout: timeout}
}

// Validate returns the subject for a matching username and password.
//
// An unknown username is indistinguishable from a wrong password: both pay
// for one argon2id verification and both return ErrInvalidCredentials. A
// lookup that runs past Timeout returns ErrUpstreamTimeout.
func (v *CredentialValidator) Validate(ctx context.Context, username, password string) (domain.Subject, error) {
	start := time.Now()
	subject, err := v.validate(ctx, username, password)
	v.observe(err, time.Since(start))
	return subject, err
}

func (v *CredentialValidator) validate(ctx context.Context, username, password string) (domain.Subject, error) {
	log := slogx.FromContext(ctx)

	lookupCtx, cancel := context.WithTimeout(ctx, v.Timeout)
	user, err := v.Users.GetUserByUsername(lookupCtx, username)
	deadline := lookupCtx.Err()
	cancel()

	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		_ = v.Hasher.VerifyDummy(password)
		log.Info("password grant for unknown user", slog.String("username", username))
		return domain.Subject{}, ErrInvalidCredentials
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(deadline, context.DeadlineExceeded):
		return domain.Subject{}, fmt.Errorf("%w: user lookup exceeded %s", ErrUpstreamTimeout, v.Timeout)
	default:
		return domain.Subject{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := v.Hasher.Verify(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			log.Info("password grant with wrong password", slog.String("username", username))
			return domain.Subject{}, ErrInvalidCredentials
		}
		return domain.Subject{}, fmt.Errorf("verify password for %s: %w", user.ID, err)
	}

	return domain.Subject{ID: user.ID, Username: user.Username}, nil
}

func (v *CredentialValidator) observe(err error, d time.Duration) {
	if v.Metrics == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidCredentials):
		result = "invalid"
	case errors.Is(err, ErrUpstreamTimeout):
		result = "timeout"
	default:
		result = "error"
	}
	v.Metrics.CredentialCheck(result, d)
}
