package tokend_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/aussiebroadwan/tokend/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestIntrospection verifies RFC 7662 responses for active and inactive
// tokens.
func TestIntrospection(t *testing.T) {
	c := setupTokendContainer(t, nil)
	c.AddUser(t, testUsername, testPassword)
	client := c.Client()

	resp, err := client.PasswordGrant(t.Context(), testUsername, testPassword, []string{"read"})
	require.NoError(t, err)

	info, err := client.Introspect(t.Context(), resp.AccessToken, resp.AccessToken)
	require.NoError(t, err)
	require.True(t, info.Active)
	require.Equal(t, "read", info.Scope)
	require.Equal(t, testUsername, info.Username)
	require.Equal(t, testIssuer, info.Iss)
	require.Equal(t, "bearer", info.TokenType)
	require.NotEmpty(t, info.Sub)
	require.Equal(t, int64(90), info.Exp-info.Iat)

	info, err = client.Introspect(t.Context(), resp.AccessToken, "not-a-token")
	require.NoError(t, err)
	require.False(t, info.Active)
	require.Empty(t, info.Username)
}

// TestIntrospection_RequiresBearer verifies callers must present a valid
// access token.
func TestIntrospection_RequiresBearer(t *testing.T) {
	c := setupTokendContainer(t, nil)
	c.AddUser(t, testUsername, testPassword)

	resp, err := c.Client().PasswordGrant(t.Context(), testUsername, testPassword, nil)
	require.NoError(t, err)

	_, err = c.Client().Introspect(t.Context(), "invalid-token-12345", resp.AccessToken)
	assertOAuth2Error(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)

	raw := postForm(t, c.BaseURL, authsdk.PathIntrospect, url.Values{"token": {resp.AccessToken}}.Encode(), nil)
	require.Equal(t, http.StatusUnauthorized, raw.StatusCode)
	require.Contains(t, raw.Header.Get("WWW-Authenticate"), "Bearer")
}
