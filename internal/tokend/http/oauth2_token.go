package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokend/internal/tokend/service"
	"github.com/aussiebroadwan/tokend/pkg/authsdk"
	"github.com/aussiebroadwan/tokend/pkg/httpx"
	"github.com/aussiebroadwan/tokend/pkg/jwtx"
	"github.com/aussiebroadwan/tokend/pkg/metricx"
	"github.com/aussiebroadwan/tokend/pkg/slogx"
)

// TokenHandler serves POST /connect/token for the password grant.
type TokenHandler struct {
	TokenService *service.TokenService
	Metrics      *metricx.Metrics // optional
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Issues a signed access token for the resource owner password grant.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type	formData	string					true	"Grant type"	Enums(password)
//	@Param			username	formData	string					true	"Resource owner username"
//	@Param			password	formData	string					true	"Resource owner password"
//	@Param			scope		formData	string					false	"Space-delimited list of scopes"
//	@Success		200			{object}	authsdk.TokenResponse	"access_token, token_type, expires_in, scope"
//	@Failure		400			{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		429			{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		500			{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		503			{object}	authsdk.ErrorResponse	"error, error_description"
//	@Header			200			{string}	Cache-Control			"no-store"
//	@Header			200			{string}	Pragma					"no-cache"
//	@Router			/connect/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !httpx.IsFormEncoded(r) {
		h.fail(w, authsdk.ErrInvalidContentType)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.fail(w, authsdk.ErrInvalidRequest.WithDescription("request body is not a valid form"))
		return
	}

	req := service.TokenRequest{
		GrantType: strings.TrimSpace(r.PostForm.Get("grant_type")),
		Username:  r.PostForm.Get("username"),
		Password:  r.PostForm.Get("password"),
		Scopes:    httpx.ParseSpaceDelimitedFields(r.PostForm.Get("scope")),
	}

	token, err := h.TokenService.Exchange(ctx, req)
	if err != nil {
		phase := service.FailedPhase(err)
		log := slogx.FromContext(ctx).With(
			slog.String("state", string(service.PhaseFailed)),
			slog.String("phase", string(phase)),
			slog.String("grant_type", req.GrantType),
		)
		oerr := mapTokenError(err)
		if oerr.Code == authsdk.ErrorCodeServerError {
			log.Error("token request failed", slog.Any("error", err))
		} else {
			log.Info("token request rejected", slog.String("error_code", oerr.Code), slog.Any("error", err))
		}
		h.fail(w, oerr)
		return
	}

	if h.Metrics != nil {
		h.Metrics.TokenRequest("ok")
	}
	slogx.FromContext(ctx).Info("access token issued",
		slog.String("state", string(service.PhaseResponded)),
		slog.String("sub", token.Subject.ID),
		slog.String("kid", token.KeyID),
	)

	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken: token.Token,
		TokenType:   "bearer",
		ExpiresIn:   int(token.Lifetime() / time.Second),
		Scope:       service.JoinScopes(token.Scopes),
	})
}

func (h *TokenHandler) fail(w http.ResponseWriter, oerr *authsdk.OAuth2Error) {
	if h.Metrics != nil {
		h.Metrics.TokenRequest(oerr.Code)
	}
	oerr.WriteError(w)
}

// mapTokenError turns a token service error into the OAuth2 response.
// Unknown errors become server_error and their cause is never echoed.
func mapTokenError(err error) *authsdk.OAuth2Error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return authsdk.ErrInvalidRequest
	case errors.Is(err, service.ErrUnsupportedGrantType):
		return authsdk.ErrUnsupportedGrantType
	case errors.Is(err, service.ErrInvalidScope):
		return authsdk.ErrInvalidScope
	case errors.Is(err, service.ErrInvalidCredentials):
		return authsdk.ErrInvalidGrant
	case errors.Is(err, service.ErrUpstreamTimeout):
		return authsdk.ErrTemporarilyUnavailable
	case errors.Is(err, jwtx.ErrKeyUnavailable):
		return authsdk.ErrTemporarilyUnavailable
	default:
		return authsdk.ErrServerError
	}
}
