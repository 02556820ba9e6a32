package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// PasswordGrant exchanges a username and password for an access token.
// Empty scopes requests no scope.
func (c *SDKClient) PasswordGrant(ctx context.Context, username, password string, scopes []string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
	}
	if len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}
	return c.requestToken(ctx, form)
}

func (c *SDKClient) requestToken(ctx context.Context, form url.Values) (*TokenResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, PathToken, strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
	if err != nil {
		return nil, err
	}
	var out TokenResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Introspect asks the server about token, authenticating with bearer.
func (c *SDKClient) Introspect(ctx context.Context, bearer, token string) (*IntrospectionResponse, error) {
	form := url.Values{"token": {token}}
	resp, err := c.do(ctx, http.MethodPost, PathIntrospect, strings.NewReader(form.Encode()), map[string]string{
		"Content-Type":  "application/x-www-form-urlencoded",
		"Authorization": "Bearer " + bearer,
	})
	if err != nil {
		return nil, err
	}
	var out IntrospectionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
