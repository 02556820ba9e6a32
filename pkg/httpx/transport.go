package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tokend/pkg/slogx"
)

// IsSecure reports whether the request arrived over TLS, either directly or
// through a trusted proxy that set X-Forwarded-Proto.
func IsSecure(r *http.Request, trusted TrustedProxies) bool {
	if r.TLS != nil {
		return true
	}
	if !trusted.Trusts(r) {
		return false
	}
	proto, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Proto"), ",")
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}

// RequireSecureTransport rejects plain HTTP requests with an OAuth2
// invalid_request error. allowInsecure exists only for local development.
func RequireSecureTransport(allowInsecure bool, trusted TrustedProxies) Middleware {
	return func(next http.Handler) http.Handler {
		if allowInsecure {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsSecure(r, trusted) {
				slogx.FromContext(r.Context()).Warn("rejected request over insecure transport",
					"forwarded_proto", r.Header.Get("X-Forwarded-Proto"))
				WriteJSON(w, http.StatusBadRequest, map[string]string{
					"error":             "invalid_request",
					"error_description": "TLS is required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
