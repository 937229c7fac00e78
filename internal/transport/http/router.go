package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nidapi/internal/admin"
	extraction "nidapi/internal/extraction/handler"
	"nidapi/internal/platform/middleware"
	ratelimit "nidapi/internal/ratelimit/middleware"
	"nidapi/pkg/platform/httputil"
	adminmw "nidapi/pkg/platform/middleware/admin"
	"nidapi/pkg/platform/middleware/metadata"
	"nidapi/pkg/platform/middleware/recovery"
	"nidapi/pkg/platform/middleware/request"
	"nidapi/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether one backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies are the handlers and middleware the router mounts.
type Dependencies struct {
	Logger         *slog.Logger
	APIKeys        middleware.APIKeyValidator
	RateLimit      *ratelimit.Middleware
	Extraction     *extraction.Handler
	Admin          *admin.Handler
	AdminTokenHash string
	Metrics        http.Handler
	HealthChecks   map[string]HealthCheck
}

// NewRouter wires the public API, the admin API and the operational
// endpoints. Middleware order matters: request metadata first, then API key
// authentication, then the per-principal rate limit.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.AccessLog(deps.Logger))
	r.Use(recovery.Recovery(deps.Logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", healthHandler(deps.HealthChecks))
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.RequireAPIKey(deps.APIKeys, deps.Logger))
		if deps.RateLimit != nil {
			api.Use(deps.RateLimit.RateLimitPrincipal())
		}
		deps.Extraction.Register(api)
	})

	if deps.Admin != nil {
		r.Group(func(ar chi.Router) {
			ar.Use(adminmw.RequireAdminToken(deps.AdminTokenHash, deps.Logger))
			deps.Admin.Register(ar)
		})
	}
	return r
}

type healthResponse struct {
	Status   string            `json:"status"`
	Backends map[string]string `json:"backends,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Backends = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				resp.Backends[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Backends[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
