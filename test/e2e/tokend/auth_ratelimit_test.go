package tokend_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/tokend/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestRateLimitTokenEndpoint verifies that /connect/token is rate limited.
// The strict profile allows 5 requests per minute per client and username.
func TestRateLimitTokenEndpoint(t *testing.T) {
	c := setupTokendContainerWithDefaultRateLimits(t)
	client := c.Client()

	for i := range 5 {
		_, err := client.PasswordGrant(t.Context(), "wronguser", "wrongpass", nil)
		assertOAuth2Error(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidGrant)
		t.Logf("request %d rejected as invalid_grant", i+1)
	}

	_, err := client.PasswordGrant(t.Context(), "wronguser", "wrongpass", nil)
	oerr := assertOAuth2Error(t, err, http.StatusTooManyRequests, authsdk.ErrorCodeTemporarilyUnavailable)
	require.Positive(t, oerr.RetryAfter, "Rate limited responses carry Retry-After")
}

// TestRateLimitPerUsername verifies one username being guessed does not
// lock out another from the same client.
func TestRateLimitPerUsername(t *testing.T) {
	c := setupTokendContainerWithDefaultRateLimits(t)
	c.AddUser(t, testUsername, testPassword)
	client := c.Client()

	for range 6 {
		_, _ = client.PasswordGrant(t.Context(), "mallory", "guess", nil)
	}
	_, err := client.PasswordGrant(t.Context(), "mallory", "guess", nil)
	assertOAuth2Error(t, err, http.StatusTooManyRequests, authsdk.ErrorCodeTemporarilyUnavailable)

	resp, err := client.PasswordGrant(t.Context(), testUsername, testPassword, nil)
	require.NoError(t, err)
	assertTokenResponse(t, resp)
}

// TestRateLimitJWKSEndpoint verifies the JWKS endpoint has a high public
// limit since it is polled by every resource server.
func TestRateLimitJWKSEndpoint(t *testing.T) {
	c := setupTokendContainerWithDefaultRateLimits(t)
	client := c.Client()

	for i := range 50 {
		jwks, err := client.GetJWKS(t.Context())
		require.NoError(t, err, "Request %d should not be rate limited", i+1)
		require.NotEmpty(t, jwks.Keys)
	}
}

// TestRateLimitHealthEndpoints verifies probes are never rate limited.
func TestRateLimitHealthEndpoints(t *testing.T) {
	c := setupTokendContainerWithDefaultRateLimits(t)
	client := c.Client()

	for i := range 30 {
		health, err := client.GetLiveness(t.Context())
		require.NoError(t, err, "Liveness request %d should not be rate limited", i+1)
		require.Equal(t, "ok", health.Status)

		health, err = client.GetReadiness(t.Context())
		require.NoError(t, err, "Readiness request %d should not be rate limited", i+1)
		require.Equal(t, "ok", health.Status)
	}
}
