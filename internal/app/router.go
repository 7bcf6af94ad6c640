package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medisys/hms/internal/auth"
	"github.com/medisys/hms/internal/facility/rooms"
	"github.com/medisys/hms/internal/observability"
	"github.com/medisys/hms/internal/platform/httpx"
	"github.com/medisys/hms/internal/rbac"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Verifier auth.Verifier
	Filter   *rbac.Filter
	Metrics  *observability.Metrics

	RBACHandler  *rbac.Handler
	RoomsHandler *rooms.Handler
}

// NewRouter constructs the chi router. Every route mounted here must be
// declared in DeclareRoutes; startup verifies the two agree.
func NewRouter(params RouterParams) chi.Router {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Verifier: params.Verifier,
		Metrics:  params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.Filter != nil {
		r.Use(params.Filter.Middleware(r))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.OK(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.RBACHandler != nil {
		r.Route("/permissions", params.RBACHandler.MountPermissions)
		r.Route("/roles", params.RBACHandler.MountRoles)
	}
	if params.RoomsHandler != nil {
		r.Route("/rooms", params.RoomsHandler.Mount)
	}

	return r
}
