package tokend_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/aussiebroadwan/tokend/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestPasswordGrant verifies the happy path of the token endpoint.
func TestPasswordGrant(t *testing.T) {
	c := setupTokendContainer(t, nil)
	c.AddUser(t, testUsername, testPassword)

	resp, err := c.Client().PasswordGrant(t.Context(), testUsername, testPassword, []string{"read"})
	require.NoError(t, err)
	assertTokenResponse(t, resp)
	require.Equal(t, "read", resp.Scope)

	// No scope requested, no scope granted.
	resp, err = c.Client().PasswordGrant(t.Context(), testUsername, testPassword, nil)
	require.NoError(t, err)
	assertTokenResponse(t, resp)
	require.Empty(t, resp.Scope)
}

// TestPasswordGrant_CacheHeaders verifies token responses are never cached.
func TestPasswordGrant_CacheHeaders(t *testing.T) {
	c := setupTokendContainer(t, nil)
	c.AddUser(t, testUsername, testPassword)

	form := url.Values{
		"grant_type": {"password"},
		"username":   {testUsername},
		"password":   {testPassword},
	}
	resp := postForm(t, c.BaseURL, authsdk.PathToken, form.Encode(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	require.Equal(t, "no-cache", resp.Header.Get("Pragma"))
}

// TestInvalidCredentials verifies a wrong password and an unknown user get
// byte-identical responses.
func TestInvalidCredentials(t *testing.T) {
	c := setupTokendContainer(t, nil)
	c.AddUser(t, testUsername, testPassword)

	body := func(username, password string) (int, string) {
		form := url.Values{
			"grant_type": {"password"},
			"username":   {username},
			"password":   {password},
		}
		resp := postForm(t, c.BaseURL, authsdk.PathToken, form.Encode(), nil)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(raw)
	}

	wrongStatus, wrongBody := body(testUsername, "wrong-password")
	unknownStatus, unknownBody := body("mallory", "wrong-password")

	require.Equal(t, http.StatusBadRequest, wrongStatus)
	require.Equal(t, wrongStatus, unknownStatus)
	require.Equal(t, wrongBody, unknownBody)

	var oerr authsdk.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(wrongBody), &oerr))
	require.Equal(t, authsdk.ErrorCodeInvalidGrant, oerr.Error)

	_, err := c.Client().PasswordGrant(t.Context(), testUsername, "wrong-password", nil)
	assertOAuth2Error(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidGrant)
}

// TestTokenRequestErrors covers request validation failures.
func TestTokenRequestErrors(t *testing.T) {
	c := setupTokendContainer(t, nil)
	c.AddUser(t, testUsername, testPassword)

	tests := []struct {
		name string
		form url.Values
		code string
	}{
		{"missing grant type", url.Values{"username": {testUsername}, "password": {testPassword}}, authsdk.ErrorCodeInvalidRequest},
		{"client credentials", url.Values{"grant_type": {"client_credentials"}}, authsdk.ErrorCodeUnsupportedGrantType},
		{"missing password", url.Values{"grant_type": {"password"}, "username": {testUsername}}, authsdk.ErrorCodeInvalidRequest},
		{"scope not allowed", url.Values{
			"grant_type": {"password"},
			"username":   {testUsername},
			"password":   {testPassword},
			"scope":      {"admin"},
		}, authsdk.ErrorCodeInvalidScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postForm(t, c.BaseURL, authsdk.PathToken, tt.form.Encode(), nil)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var oerr authsdk.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&oerr))
			require.Equal(t, tt.code, oerr.Error)
		})
	}
}
