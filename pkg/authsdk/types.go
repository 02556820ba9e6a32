package authsdk

import "github.com/aussiebroadwan/tokend/pkg/jwtx"

// TokenResponse is a successful token endpoint response (RFC 6749 5.1).
type TokenResponse struct {
	AccessToken string `json:"access_token" example:"eyJhbGciOiJFZERTQSIsImtpZCI6Ii4uLiJ9..."`
	TokenType   string `json:"token_type" example:"bearer"`
	ExpiresIn   int    `json:"expires_in" example:"90"`
	Scope       string `json:"scope,omitempty" example:"read"`
}

// ErrorResponse documents the OAuth2 error body for the API docs.
type ErrorResponse struct {
	Error            string `json:"error" example:"invalid_grant"`
	ErrorDescription string `json:"error_description,omitempty" example:"invalid username or password"`
}

// IntrospectionResponse is an RFC 7662 response. Only Active is set for
// inactive tokens.
type IntrospectionResponse struct {
	Active    bool     `json:"active"`
	Scope     string   `json:"scope,omitempty"`
	Username  string   `json:"username,omitempty"`
	TokenType string   `json:"token_type,omitempty"`
	Exp       int64    `json:"exp,omitempty"`
	Iat       int64    `json:"iat,omitempty"`
	Nbf       int64    `json:"nbf,omitempty"`
	Sub       string   `json:"sub,omitempty"`
	Aud       []string `json:"aud,omitempty"`
	Iss       string   `json:"iss,omitempty"`
	Jti       string   `json:"jti,omitempty"`
}

// ServerMetadata is the RFC 8414 authorization server metadata document.
type ServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	TokenEndpointAuthSigningAlgValues []string `json:"token_endpoint_auth_signing_alg_values_supported,omitempty"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status" example:"ok"`
	Version string        `json:"version,omitempty" example:"1.0.0"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks are the readiness checks. Each is "ok" or "error".
type HealthChecks struct {
	Database string `json:"database" example:"ok"`
	Signer   string `json:"signer" example:"ok"`
}

// JWKSResponse is the public key set.
type JWKSResponse jwtx.JWKS
