package authsdk_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tokend/pkg/authsdk"
	"github.com/aussiebroadwan/tokend/pkg/httpx"
)

func TestPasswordGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, authsdk.PathToken, r.URL.Path)
		require.True(t, httpx.IsFormEncoded(r))
		require.NoError(t, r.ParseForm())
		require.Equal(t, "password", r.PostForm.Get("grant_type"))

		if r.PostForm.Get("password") != "correct" {
			authsdk.ErrInvalidGrant.WriteError(w)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
			AccessToken: "tok",
			TokenType:   "bearer",
			ExpiresIn:   90,
			Scope:       r.PostForm.Get("scope"),
		})
	}))
	defer srv.Close()

	c := authsdk.NewSDKClient(srv.URL + "/")

	tok, err := c.PasswordGrant(context.Background(), "alice", "correct", []string{"read", "write"})
	require.NoError(t, err)
	require.Equal(t, "bearer", tok.TokenType)
	require.Equal(t, 90, tok.ExpiresIn)
	require.Equal(t, "read write", tok.Scope)

	_, err = c.PasswordGrant(context.Background(), "alice", "wrong", nil)
	var oerr *authsdk.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	require.Equal(t, http.StatusBadRequest, oerr.StatusCode)
	require.Equal(t, authsdk.ErrorCodeInvalidGrant, oerr.Code)
	require.True(t, errors.Is(err, authsdk.ErrInvalidGrant))
}

func TestErrorParsing(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode string
		retry    time.Duration
	}{
		{
			name:     "temporarily unavailable",
			handler:  func(w http.ResponseWriter, _ *http.Request) { authsdk.ErrTemporarilyUnavailable.WriteError(w) },
			wantCode: authsdk.ErrorCodeTemporarilyUnavailable,
			retry:    5 * time.Second,
		},
		{
			name:     "plain text 500",
			handler:  func(w http.ResponseWriter, _ *http.Request) { http.Error(w, "boom", http.StatusInternalServerError) },
			wantCode: authsdk.ErrorCodeServerError,
		},
		{
			name:     "bare 401",
			handler:  func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
			wantCode: authsdk.ErrorCodeInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := authsdk.NewSDKClient(srv.URL).GetJWKS(context.Background())
			var oerr *authsdk.OAuth2Error
			require.ErrorAs(t, err, &oerr)
			require.Equal(t, tt.wantCode, oerr.Code)
			require.Equal(t, tt.retry, oerr.RetryAfter)
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	authsdk.ErrInvalidScope.WithDescription("scope admin is not allowed").WriteError(rec)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"error":"invalid_scope","error_description":"scope admin is not allowed"}`, rec.Body.String())
	require.Equal(t, "requested scope is invalid", authsdk.ErrInvalidScope.Description, "predefined errors are not mutated")
}
