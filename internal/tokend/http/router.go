package http

import (
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/tokend/internal/tokend/service"
	"github.com/aussiebroadwan/tokend/internal/tokend/store"
	"github.com/aussiebroadwan/tokend/pkg/authsdk"
	"github.com/aussiebroadwan/tokend/pkg/httpx"
	"github.com/aussiebroadwan/tokend/pkg/jwtx"
	"github.com/aussiebroadwan/tokend/pkg/metricx"
	"github.com/aussiebroadwan/tokend/pkg/slogx"

	_ "github.com/aussiebroadwan/tokend/api/tokend" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterOptions are the HTTP facing settings.
type RouterOptions struct {
	Issuer    string
	PublicURL string
	Version   string

	// AllowInsecureTransport accepts credentials over plain HTTP. Never set
	// in production.
	AllowInsecureTransport bool

	// TrustedProxies may set X-Forwarded-Proto and X-Forwarded-For. Those
	// headers are ignored from every other peer.
	TrustedProxies httpx.TrustedProxies

	// ScopesSupported is advertised in the metadata document.
	ScopesSupported []string

	TokenLimit      httpx.RateLimitConfig
	IntrospectLimit httpx.RateLimitConfig
	PublicLimit     httpx.RateLimitConfig
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	opts    RouterOptions
	keys    *jwtx.KeyManager
	store   store.Store
	metrics *metricx.Metrics
	logger  *slog.Logger

	TokenService *service.TokenService
	// Tokens decodes introspected tokens. Defaults to a TokenIssuer over
	// the key manager's verifier.
	Tokens TokenDecoder
}

func NewRouter(
	opts RouterOptions,
	keys *jwtx.KeyManager,
	st store.Store,
	metrics *metricx.Metrics,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:     http.NewServeMux(),
		opts:    opts,
		keys:    keys,
		store:   st,
		metrics: metrics,
		logger:  logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}
	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerWellKnown()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			tokend
//	@version		0.1.0
//	@description	OAuth2 resource owner password grant token service. Access tokens are JWTs signed with EdDSA, ES256 or RS256 and can be verified with the JWKS endpoint.
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		https http
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth2() {
	// Brute force guard: limited per client IP and username.
	tokenHandler := &TokenHandler{TokenService: r.TokenService, Metrics: r.metrics}
	r.Mux.Handle("POST "+authsdk.PathToken, r.instrument("token",
		httpx.Chain(tokenHandler,
			httpx.RequireSecureTransport(r.opts.AllowInsecureTransport, r.opts.TrustedProxies),
			httpx.RateLimitByIPAndFormField(r.opts.TokenLimit, r.opts.TrustedProxies, "username", r.onLimited("token")),
		),
	))
	r.Mux.Handle(authsdk.PathToken, methodNotAllowed(http.MethodPost))

	tokens := r.Tokens
	if tokens == nil {
		tokens = &service.TokenIssuer{Verifier: r.keys.Verifier()}
	}
	introspectHandler := &IntrospectHandler{Tokens: tokens}
	r.Mux.Handle("POST "+authsdk.PathIntrospect, r.instrument("introspect",
		httpx.Chain(introspectHandler,
			httpx.RequireSecureTransport(r.opts.AllowInsecureTransport, r.opts.TrustedProxies),
			httpx.RateLimitByIP(r.opts.IntrospectLimit, r.opts.TrustedProxies, r.onLimited("introspect")),
			httpx.AuthnMiddleware(r.keys.Verifier()),
		),
	))
	r.Mux.Handle(authsdk.PathIntrospect, methodNotAllowed(http.MethodPost))
}

func (r *Router) registerWellKnown() {
	r.Mux.Handle("GET "+authsdk.PathJWKS, r.instrument("jwks",
		httpx.Chain(JWKSHandler(r.keys.Keys()),
			httpx.RateLimitByIP(r.opts.PublicLimit, r.opts.TrustedProxies, r.onLimited("jwks")),
		),
	))
	r.Mux.Handle("GET "+authsdk.PathMetadata, r.instrument("metadata",
		httpx.Chain(MetadataHandler(r.opts.Issuer, r.opts.PublicURL, r.opts.ScopesSupported, r.opts.TrustedProxies, r.keys),
			httpx.RateLimitByIP(r.opts.PublicLimit, r.opts.TrustedProxies, r.onLimited("metadata")),
		),
	))
}

func (r *Router) registerSystem() {
	// Probes and scrapes are not rate limited.
	r.Mux.Handle("GET "+authsdk.PathLivez, LivezHandler(r.opts.Version))
	r.Mux.Handle("GET "+authsdk.PathReadyz, ReadyzHandler(r.opts.Version, r.store, r.keys))
	if r.metrics != nil {
		r.Mux.Handle("GET /metrics", r.metrics.Handler())
	}
}

func (r *Router) instrument(route string, h http.Handler) http.Handler {
	if r.metrics == nil {
		return h
	}
	return r.metrics.Instrument(route, h)
}

func (r *Router) onLimited(route string) httpx.RateLimitOption {
	return httpx.OnLimited(func(*http.Request) {
		if r.metrics != nil {
			r.metrics.RateLimited(route)
		}
	})
}

func methodNotAllowed(allow string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", allow)
		authsdk.ErrMethodNotAllowed.WriteError(w)
	})
}
