package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokend/internal/tokend/store"
	"github.com/aussiebroadwan/tokend/pkg/authsdk"
	"github.com/aussiebroadwan/tokend/pkg/httpx"
	"github.com/aussiebroadwan/tokend/pkg/jwtx"
	"github.com/aussiebroadwan/tokend/pkg/slogx"
)

const readinessTimeout = 2 * time.Second

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Checks the database connection and that a signing key is loaded.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, version, checks"
//	@Router			/readyz [get].
func ReadyzHandler(version string, st store.Store, km *jwtx.KeyManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := slogx.FromContext(r.Context())
		checks := &authsdk.HealthChecks{Database: "ok", Signer: "ok"}
		status, code := "ok", http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			log.Warn("readiness: database ping failed", "error", err)
			checks.Database = "error"
			status, code = "degraded", http.StatusServiceUnavailable
		}

		if !km.IsReady() {
			checks.Signer = "error"
			status, code = "degraded", http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, authsdk.HealthResponse{
			Status:  status,
			Version: version,
			Checks:  checks,
		})
	}
}
