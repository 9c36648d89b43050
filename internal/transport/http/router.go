// Package httptransport assembles the HTTP surface: the shared middleware
// chain, the domain handlers, and the operational endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	patienthandler "verimed/internal/patient/handler"
	"verimed/internal/platform/metrics"
	"verimed/internal/platform/middleware"
	sensitivehandler "verimed/internal/sensitive/handler"
	verificationhandler "verimed/internal/verification/handler"
)

// Registrar is implemented by each domain handler.
type Registrar interface {
	Register(r chi.Router)
}

// Deps are the wired collaborators the router mounts.
type Deps struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	JWTValidator middleware.JWTValidator

	Verification *verificationhandler.Handler
	Sensitive    *sensitivehandler.Handler
	Patient      *patienthandler.Handler
}

// NewRouter builds the full router. All domain routes sit behind
// authentication; health and metrics do not.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.LatencyMiddleware(deps.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		api.Use(middleware.ContentTypeJSON)
		api.Use(middleware.RequireAuth(deps.JWTValidator, deps.Logger))
		for _, registrar := range []Registrar{deps.Verification, deps.Sensitive, deps.Patient} {
			registrar.Register(api)
		}
	})

	return r
}
