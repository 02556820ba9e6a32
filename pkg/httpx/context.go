package httpx

import (
	"context"

	"github.com/aussiebroadwan/tokend/pkg/jwtx"
)

type ctxKey string

const ctxKeyClaims ctxKey = "claims"

// ClaimsFromContext returns the verified bearer claims placed by
// AuthnMiddleware.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(jwtx.Claims)
	return c, ok
}

func contextWithClaims(ctx context.Context, c jwtx.Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, c)
}
