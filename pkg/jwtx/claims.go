package jwtx

import (
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/tokend/pkg/cryptox"
)

// Claims are the access token claims. Scope is the RFC 8693 space
// delimited string form.
type Claims struct {
	jwt.RegisteredClaims

	Scope    string `json:"scope,omitempty"`
	Username string `json:"username,omitempty"`
}

// AccessClaimsParams describes a token about to be minted.
type AccessClaimsParams struct {
	Subject  string
	Username string
	Scopes   []string
	Issuer   string
	Audience []string
	TTL      time.Duration
	Now      time.Time
}

// NewAccessClaims builds claims with iat and nbf at p.Now and a fresh jti.
func NewAccessClaims(p AccessClaimsParams) (Claims, error) {
	jti, err := NewJTI()
	if err != nil {
		return Claims{}, err
	}

	now := p.Now.UTC().Truncate(time.Second)
	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.Issuer,
			Subject:   p.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.TTL)),
			ID:        jti,
		},
		Scope:    strings.Join(p.Scopes, " "),
		Username: p.Username,
	}
	if len(p.Audience) > 0 {
		c.Audience = jwt.ClaimStrings(p.Audience)
	}
	return c, nil
}

// NewJTI returns a random 128 bit token identifier.
func NewJTI() (string, error) {
	return cryptox.GenerateToken(cryptox.TokenSize128)
}

// ScopeList splits the scope claim.
func (c *Claims) ScopeList() []string {
	return strings.Fields(c.Scope)
}

// ValidateIssuer enforces iss when expected is set.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected != "" && c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience requires at least one of expected in aud when expected
// is non-empty.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateTimes checks exp and nbf against now, allowing leeway for skew.
// A token without exp is rejected.
func (c *Claims) ValidateTimes(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt == nil {
		return ErrInvalidClaim
	}
	if !now.Before(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
