package service

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokend/internal/tokend/domain"
	"github.com/aussiebroadwan/tokend/pkg/jwtx"
	"github.com/aussiebroadwan/tokend/pkg/metricx"
)

// Accepted access token lifetimes.
const (
	MinTokenLifetime = 60 * time.Second
	MaxTokenLifetime = 3600 * time.Second
)

// KeyProvider hands out the key new tokens are signed with.
type KeyProvider interface {
	ActiveKey() (jwtx.Signer, error)
}

// TokenIssuer mints stateless signed access tokens. Nothing it issues is
// stored; a token is valid as long as its signature and exp check out.
type TokenIssuer struct {
	Keys     KeyProvider
	Verifier jwtx.Verifier
	Issuer   string
	Audience []string
	Metrics  *metricx.Metrics // optional
	Now      func() time.Time
}

func NewTokenIssuer(keys *jwtx.KeyManager, issuer string, audience []string) *TokenIssuer {
	return &TokenIssuer{
		Keys:     keys,
		Verifier: keys.Verifier(),
		Issuer:   issuer,
		Audience: audience,
	}
}

// ValidateLifetime reports ErrInvalidConfiguration for lifetimes outside
// [MinTokenLifetime, MaxTokenLifetime].
func ValidateLifetime(lifetime time.Duration) error {
	if lifetime < MinTokenLifetime || lifetime > MaxTokenLifetime {
		return fmt.Errorf("%w: token lifetime %s outside [%s, %s]",
			ErrInvalidConfiguration, lifetime, MinTokenLifetime, MaxTokenLifetime)
	}
	return nil
}

// Issue signs an access token for subject. Duplicate scopes are dropped,
// keeping first occurrence order.
func (i *TokenIssuer) Issue(subject domain.Subject, scopes []string, lifetime time.Duration) (domain.AccessToken, error) {
	if err := ValidateLifetime(lifetime); err != nil {
		return domain.AccessToken{}, err
	}
	if subject.ID == "" {
		return domain.AccessToken{}, fmt.Errorf("%w: empty subject", ErrInvalidRequest)
	}

	signer, err := i.Keys.ActiveKey()
	if err != nil {
		return domain.AccessToken{}, err
	}

	now := time.Now()
	if i.Now != nil {
		now = i.Now()
	}
	scopes = dedupe(scopes)

	claims, err := jwtx.NewAccessClaims(jwtx.AccessClaimsParams{
		Subject:  subject.ID,
		Username: subject.Username,
		Scopes:   scopes,
		Issuer:   i.Issuer,
		Audience: i.Audience,
		TTL:      lifetime,
		Now:      now,
	})
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("build claims: %w", err)
	}

	token, err := signer.Sign(claims)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("sign access token: %w", err)
	}
	if i.Metrics != nil {
		i.Metrics.TokenIssued(signer.Alg())
	}

	return domain.AccessToken{
		Token:     token,
		ID:        claims.ID,
		Issuer:    claims.Issuer,
		Audience:  claims.Audience,
		Subject:   subject,
		Scopes:    scopes,
		IssuedAt:  claims.IssuedAt.Time,
		NotBefore: claims.NotBefore.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		KeyID:     signer.KID(),
	}, nil
}

// Decode verifies token against the published keys and returns its view.
// Introspection reports tokens through it.
func (i *TokenIssuer) Decode(token string) (domain.AccessToken, error) {
	claims, err := i.Verifier.Verify(token)
	if err != nil {
		return domain.AccessToken{}, err
	}
	kid, err := jwtx.TokenKID(token)
	if err != nil {
		return domain.AccessToken{}, err
	}
	return AccessTokenFromClaims(token, kid, claims), nil
}

// AccessTokenFromClaims maps verified claims onto an AccessToken.
func AccessTokenFromClaims(token, kid string, claims jwtx.Claims) domain.AccessToken {
	at := domain.AccessToken{
		Token:    token,
		ID:       claims.ID,
		Issuer:   claims.Issuer,
		Audience: claims.Audience,
		Subject:  domain.Subject{ID: claims.Subject, Username: claims.Username},
		Scopes:   claims.ScopeList(),
		KeyID:    kid,
	}
	if claims.IssuedAt != nil {
		at.IssuedAt = claims.IssuedAt.Time
	}
	if claims.NotBefore != nil {
		at.NotBefore = claims.NotBefore.Time
	}
	if claims.ExpiresAt != nil {
		at.ExpiresAt = claims.ExpiresAt.Time
	}
	return at
}

// JoinScopes renders scopes in the space delimited wire form.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}
