package tokend_test

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/aussiebroadwan/tokend/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestPlainHTTPRejected verifies credentials are refused over plain HTTP
// unless the operator opted in.
func TestPlainHTTPRejected(t *testing.T) {
	c := setupTokendContainer(t, map[string]string{"AUTH_ALLOW_INSECURE_TRANSPORT": ""})
	c.AddUser(t, testUsername, testPassword)

	form := url.Values{
		"grant_type": {"password"},
		"username":   {testUsername},
		"password":   {testPassword},
	}.Encode()

	resp := postForm(t, c.BaseURL, authsdk.PathToken, form, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var oerr authsdk.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&oerr))
	require.Equal(t, authsdk.ErrorCodeInvalidRequest, oerr.Error)

	// Clients cannot claim TLS for themselves.
	resp = postForm(t, c.BaseURL, authsdk.PathToken, form, map[string]string{"X-Forwarded-Proto": "https"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestForwardedProtoFromTrustedProxy verifies a TLS terminating proxy in
// a trusted range can mark requests as secure.
func TestForwardedProtoFromTrustedProxy(t *testing.T) {
	c := setupTokendContainer(t, map[string]string{
		"AUTH_ALLOW_INSECURE_TRANSPORT": "",
		// The test client reaches the container through the Docker gateway.
		"AUTH_TRUSTED_PROXIES": "0.0.0.0/0,::/0",
	})
	c.AddUser(t, testUsername, testPassword)

	form := url.Values{
		"grant_type": {"password"},
		"username":   {testUsername},
		"password":   {testPassword},
	}.Encode()

	resp := postForm(t, c.BaseURL, authsdk.PathToken, form, map[string]string{"X-Forwarded-Proto": "https"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postForm(t, c.BaseURL, authsdk.PathToken, form, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestProductionRefusesDevelopmentKeys verifies the service will not start
// in prod with ephemeral keys.
func TestProductionRefusesDevelopmentKeys(t *testing.T) {
	c := setupTokendContainer(t, nil)

	code, _, err := c.Exec(t.Context(), []string{"sh", "-c",
		"ENV=prod AUTH_ALLOW_INSECURE_TRANSPORT=false AUTH_KEY_SOURCE=ephemeral AUTH_ALLOW_DEVELOPMENT_KEYS=true tokend check"})
	require.NoError(t, err)
	require.NotEqual(t, 0, code)
}

// TestWrongContentType verifies JSON bodies are rejected.
func TestWrongContentType(t *testing.T) {
	c := setupTokendContainer(t, nil)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, c.BaseURL+authsdk.PathToken,
		strings.NewReader(`{"grant_type":"password","username":"alice","password":"x"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var oerr authsdk.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&oerr))
	require.Equal(t, authsdk.ErrorCodeInvalidRequest, oerr.Error)
}
