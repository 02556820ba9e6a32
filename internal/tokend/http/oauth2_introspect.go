package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokend/internal/tokend/domain"
	"github.com/aussiebroadwan/tokend/pkg/authsdk"
	"github.com/aussiebroadwan/tokend/pkg/httpx"
	"github.com/aussiebroadwan/tokend/pkg/slogx"
)

// TokenDecoder verifies an access token and returns its view.
type TokenDecoder interface {
	Decode(token string) (domain.AccessToken, error)
}

// IntrospectHandler serves POST /connect/introspect (RFC 7662). The caller
// authenticates with its own bearer token.
type IntrospectHandler struct {
	Tokens TokenDecoder
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Introspection Endpoint
//	@Description	Reports whether an access token is active and returns its claims (RFC 7662).
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Security		BearerAuth
//	@Param			token			formData	string							true	"The token to introspect"
//	@Param			token_type_hint	formData	string							false	"Only access_token is supported"	Enums(access_token)
//	@Success		200				{object}	authsdk.IntrospectionResponse	"Token introspection result"
//	@Failure		400				{object}	authsdk.ErrorResponse			"error, error_description"
//	@Failure		401				{object}	authsdk.ErrorResponse			"error, error_description"
//	@Header			200				{string}	Cache-Control					"no-store"
//	@Header			200				{string}	Pragma							"no-cache"
//	@Router			/connect/introspect [post].
func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	if !httpx.IsFormEncoded(r) {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	token := r.PostForm.Get("token")
	if token == "" {
		authsdk.ErrInvalidRequest.WithDescription("token is required").WriteError(w)
		return
	}

	// Inactive tokens get {"active":false} without a reason.
	if hint := r.PostForm.Get("token_type_hint"); hint != "" && hint != "access_token" {
		httpx.WriteJSON(w, http.StatusOK, authsdk.IntrospectionResponse{Active: false})
		return
	}

	at, err := h.Tokens.Decode(token)
	if err != nil {
		log.Debug("introspected token is inactive", "error", err)
		httpx.WriteJSON(w, http.StatusOK, authsdk.IntrospectionResponse{Active: false})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.IntrospectionResponse{
		Active:    true,
		Scope:     strings.Join(at.Scopes, " "),
		Username:  at.Subject.Username,
		TokenType: "bearer",
		Sub:       at.Subject.ID,
		Aud:       at.Audience,
		Iss:       at.Issuer,
		Jti:       at.ID,
		Exp:       unix(at.ExpiresAt),
		Iat:       unix(at.IssuedAt),
		Nbf:       unix(at.NotBefore),
	})
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
