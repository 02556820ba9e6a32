package domain

import "time"

// Subject is the authenticated resource owner a token is issued for.
type Subject struct {
	ID       string
	Username string
}

// AccessToken is a signed, stateless bearer token. Nothing about it is
// persisted; ExpiresAt is always IssuedAt plus the configured lifetime.
type AccessToken struct {
	Token     string
	ID        string // jti
	Issuer    string
	Audience  []string
	Subject   Subject
	Scopes    []string
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
	KeyID     string
}

// Lifetime is the validity window of the token.
func (t AccessToken) Lifetime() time.Duration {
	return t.ExpiresAt.Sub(t.IssuedAt)
}
