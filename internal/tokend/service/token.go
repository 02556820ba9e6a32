package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokend/internal/tokend/domain"
)

// GrantTypePassword is the only grant the token endpoint serves.
const GrantTypePassword = "password"

// TokenRequest is one parsed call to the token endpoint.
type TokenRequest struct {
	GrantType string
	Username  string
	Password  string
	Scopes    []string
}

// Authenticator resolves a username and password to a subject.
type Authenticator interface {
	Validate(ctx context.Context, username, password string) (domain.Subject, error)
}

// Minter signs access tokens.
type Minter interface {
	Issue(subject domain.Subject, scopes []string, lifetime time.Duration) (domain.AccessToken, error)
}

// TokenService runs the password grant: check the request, validate the
// credentials, then issue.
type TokenService struct {
	Credentials Authenticator
	Issuer      Minter
	Lifetime    time.Duration

	// AllowedGrants narrows the grants accepted; only "password" is
	// recognised. Empty means password.
	AllowedGrants []string
	// AllowedScopes, when set, is the full set of scopes a caller may ask
	// for.
	AllowedScopes []string
}

// Exchange handles a token request. Failures are wrapped in a PhaseError
// naming the phase they happened in.
func (s *TokenService) Exchange(ctx context.Context, req TokenRequest) (domain.AccessToken, error) {
	if err := s.CheckRequest(req); err != nil {
		return domain.AccessToken{}, failAt(PhaseReceived, err)
	}

	subject, err := s.Credentials.Validate(ctx, req.Username, req.Password)
	if err != nil {
		return domain.AccessToken{}, failAt(PhaseValidating, err)
	}

	token, err := s.Issuer.Issue(subject, req.Scopes, s.Lifetime)
	if err != nil {
		return domain.AccessToken{}, failAt(PhaseIssuing, err)
	}
	return token, nil
}

// CheckRequest applies the checks that need no store access.
func (s *TokenService) CheckRequest(req TokenRequest) error {
	grant := strings.TrimSpace(req.GrantType)
	if grant == "" {
		return fmt.Errorf("%w: grant_type is required", ErrInvalidRequest)
	}
	if !s.grantAllowed(grant) {
		return fmt.Errorf("%w: %q", ErrUnsupportedGrantType, grant)
	}
	if req.Username == "" || req.Password == "" {
		return fmt.Errorf("%w: username and password are required", ErrInvalidRequest)
	}
	if len(s.AllowedScopes) > 0 {
		for _, scope := range req.Scopes {
			if !slices.Contains(s.AllowedScopes, scope) {
				return fmt.Errorf("%w: %q", ErrInvalidScope, scope)
			}
		}
	}
	return nil
}

func (s *TokenService) grantAllowed(grant string) bool {
	if grant != GrantTypePassword {
		return false
	}
	return len(s.AllowedGrants) == 0 || slices.Contains(s.AllowedGrants, grant)
}
