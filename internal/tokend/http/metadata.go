package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tokend/internal/tokend/service"
	"github.com/aussiebroadwan/tokend/pkg/authsdk"
	"github.com/aussiebroadwan/tokend/pkg/httpx"
	"github.com/aussiebroadwan/tokend/pkg/jwtx"
)

// MetadataHandler serves the RFC 8414 authorization server metadata.
// Endpoint URLs are absolute and built from the request host unless
// publicURL is set.
//
//	@Summary		Authorization server metadata
//	@Description	RFC 8414 discovery document.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.ServerMetadata
//	@Router			/.well-known/oauth-authorization-server [get].
func MetadataHandler(issuer, publicURL string, scopes []string, trusted httpx.TrustedProxies, km *jwtx.KeyManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		base := strings.TrimRight(publicURL, "/")
		if base == "" {
			scheme := "http"
			if httpx.IsSecure(r, trusted) {
				scheme = "https"
			}
			base = scheme + "://" + r.Host
		}

		var algs []string
		if alg := km.Algorithm(); alg != "" {
			algs = []string{alg}
		}

		httpx.WriteJSON(w, http.StatusOK, authsdk.ServerMetadata{
			Issuer:                            issuer,
			TokenEndpoint:                     base + authsdk.PathToken,
			JWKSURI:                           base + authsdk.PathJWKS,
			IntrospectionEndpoint:             base + authsdk.PathIntrospect,
			GrantTypesSupported:               []string{service.GrantTypePassword},
			ResponseTypesSupported:            []string{},
			ScopesSupported:                   scopes,
			TokenEndpointAuthMethodsSupported: []string{"none"},
			TokenEndpointAuthSigningAlgValues: algs,
		})
	}
}
