package rbac

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/medisys/hms/internal/auth"
	"github.com/medisys/hms/internal/platform/httpx"
)

// Filter enforces Authorizer decisions on HTTP requests.
type Filter struct {
	authorizer *Authorizer
	logger     *slog.Logger
	metrics    *Metrics
}

// NewFilter constructs a Filter. logger and metrics may be nil.
func NewFilter(authorizer *Authorizer, logger *slog.Logger, metrics *Metrics) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{authorizer: authorizer, logger: logger, metrics: metrics}
}

// Middleware resolves each request against routes and lets it through only
// on Allow. Requests that match no endpoint are passed on so the router can
// answer 404/405 itself.
func (f *Filter) Middleware(routes chi.Routes) func(http.Handler) http.Handler {
	// Routes are registered after the middleware, so the index is built on
	// the first request.
	mounts := sync.OnceValue(func() mountIndex { return indexMounts(routes) })
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.RawPath
			if path == "" {
				path = r.URL.Path
			}
			pattern, ok := findEndpoint(routes, mounts(), r.Method, path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			principal, authenticated := auth.PrincipalFromContext(r.Context())
			decision := f.authorizer.Decide(r.Context(), Route{Method: r.Method, Pattern: pattern}, principal, authenticated)
			f.metrics.observeDecision(decision.Outcome)
			if decision.Allowed() {
				next.ServeHTTP(w, r)
				return
			}
			f.log(r, decision)
			if decision.Outcome == OutcomeUnauthenticated {
				w.Header().Set("WWW-Authenticate", `Bearer realm="hms"`)
			}
			httpx.Fail(w, decision.Outcome.HTTPStatus(), denyMessage(decision.Outcome))
		})
	}
}

// findEndpoint returns the full pattern of the endpoint serving method and
// path. Mount registers catch-all stubs at its own prefix that match every
// method, so a hit on a stub is resolved inside the mounted router.
func findEndpoint(routes chi.Routes, mounts mountIndex, method, path string) (string, bool) {
	pattern := routes.Find(chi.NewRouteContext(), method, path)
	if pattern == "" {
		return "", false
	}
	prefix := strings.TrimSuffix(pattern, "/")
	sub, ok := mounts[prefix+"/*"]
	if !ok {
		return pattern, true
	}
	subPattern, ok := findEndpoint(sub, indexMounts(sub), method, "/")
	if !ok {
		return "", false
	}
	return prefix + subPattern, true
}

// mountIndex maps a mount's catch-all pattern to the mounted router.
type mountIndex map[string]chi.Routes

func indexMounts(routes chi.Routes) mountIndex {
	idx := make(mountIndex)
	for _, rt := range routes.Routes() {
		if rt.SubRoutes != nil && strings.HasSuffix(rt.Pattern, "/*") {
			idx[rt.Pattern] = rt.SubRoutes
		}
	}
	return idx
}

func (f *Filter) log(r *http.Request, d Decision) {
	attrs := []any{
		slog.String("outcome", d.Outcome.String()),
		slog.String("route", d.Route),
		slog.String("required", d.Required),
		slog.Int64("role_id", d.RoleID),
		slog.String("reason", d.Reason),
	}
	ctx := r.Context()
	switch d.Outcome {
	case OutcomeUnauthenticated:
		f.logger.DebugContext(ctx, "authorization denied", attrs...)
	case OutcomeForbidden:
		f.logger.InfoContext(ctx, "authorization denied", attrs...)
	case OutcomeMisconfigured:
		f.logger.ErrorContext(ctx, "authorization misconfigured", attrs...)
	default:
		f.logger.ErrorContext(ctx, "authorization unavailable", append(attrs, slog.Any("error", d.Err))...)
	}
}

func denyMessage(o Outcome) string {
	switch o {
	case OutcomeUnauthenticated:
		return "authentication required"
	case OutcomeForbidden:
		return "insufficient permissions"
	case OutcomeMisconfigured:
		return "access denied"
	default:
		return "authorization temporarily unavailable"
	}
}
