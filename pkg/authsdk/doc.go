/*
Package authsdk is the Go client for tokend and the home of the OAuth2
wire types the server writes.

Obtain an access token with the resource owner password grant:

	client := authsdk.NewSDKClient("https://tokens.example.com")

	tok, err := client.PasswordGrant(ctx, "alice", "correct", []string{"read"})
	if err != nil {
		var oerr *authsdk.OAuth2Error
		if errors.As(err, &oerr) && oerr.Code == authsdk.ErrorCodeInvalidGrant {
			// wrong username or password
		}
	}

Resource servers fetch the verification keys from the JWKS endpoint:

	jwks, err := client.GetJWKS(ctx)

Errors returned for non-2xx responses are *OAuth2Error values carrying the
HTTP status, the RFC 6749 error code and, for 503 responses, Retry-After.
*/
package authsdk
