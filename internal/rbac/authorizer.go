package rbac

import (
	"context"
	"errors"
	"net/http"

	"github.com/medisys/hms/internal/auth"
)

// Outcome is the terminal state of an authorization decision.
type Outcome int

const (
	OutcomeAllow Outcome = iota
	OutcomeUnauthenticated
	OutcomeForbidden
	// OutcomeMisconfigured signals operator error: the route is undeclared
	// or requires a key missing from the catalog.
	OutcomeMisconfigured
	// OutcomeUnavailable is returned when grants could not be loaded.
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeUnauthenticated:
		return "unauthenticated"
	case OutcomeForbidden:
		return "forbidden"
	case OutcomeMisconfigured:
		return "misconfigured"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// HTTPStatus maps the outcome to its wire status.
func (o Outcome) HTTPStatus() int {
	switch o {
	case OutcomeAllow:
		return http.StatusOK
	case OutcomeUnauthenticated:
		return http.StatusUnauthorized
	case OutcomeForbidden, OutcomeMisconfigured:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Route identifies the matched route of a request.
type Route struct {
	Method  string
	Pattern string
}

func (r Route) String() string {
	return RouteKey(r.Method, r.Pattern)
}

// Decision is the result of Authorizer.Decide.
type Decision struct {
	Outcome  Outcome
	Route    string
	Required string
	RoleID   int64
	Reason   string
	Err      error
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// Resolver answers grant and catalog lookups; *Cache implements it.
type Resolver interface {
	Resolve(ctx context.Context, roleID int64) (KeySet, error)
	Known(ctx context.Context, key string) (bool, error)
}

// Authorizer runs the per-request decision procedure. It holds no
// per-request state and is safe for concurrent use.
type Authorizer struct {
	registry *Registry
	resolver Resolver
}

// NewAuthorizer constructs an Authorizer.
func NewAuthorizer(registry *Registry, resolver Resolver) *Authorizer {
	return &Authorizer{registry: registry, resolver: resolver}
}

// Decide evaluates route for principal. authenticated is false when the
// request carries no verified identity.
func (a *Authorizer) Decide(ctx context.Context, route Route, principal auth.Principal, authenticated bool) Decision {
	d := Decision{Route: route.String(), RoleID: principal.RoleID}

	required, public, found := a.registry.Lookup(route.Method, route.Pattern)
	switch {
	case public:
		d.Outcome, d.Reason = OutcomeAllow, "public route"
		return d
	case !found:
		d.Outcome, d.Reason = OutcomeMisconfigured, "route has no declared permission"
		return d
	}
	d.Required = required

	if !authenticated {
		d.Outcome, d.Reason = OutcomeUnauthenticated, "no verified identity"
		return d
	}

	known, err := a.resolver.Known(ctx, required)
	if err != nil {
		return unavailable(d, err)
	}
	if !known {
		d.Outcome, d.Reason = OutcomeMisconfigured, "required permission missing from catalog"
		return d
	}

	if !principal.HasRole() {
		d.Outcome, d.Reason = OutcomeForbidden, "principal has no role"
		return d
	}

	granted, err := a.resolver.Resolve(ctx, principal.RoleID)
	if err != nil {
		return unavailable(d, err)
	}
	if granted.Has(required) {
		d.Outcome, d.Reason = OutcomeAllow, "granted"
		return d
	}
	d.Outcome, d.Reason = OutcomeForbidden, "role lacks permission"
	return d
}

func unavailable(d Decision, err error) Decision {
	if !errors.Is(err, ErrStoreUnavailable) {
		err = errors.Join(ErrStoreUnavailable, err)
	}
	d.Outcome, d.Reason, d.Err = OutcomeUnavailable, "permission store unavailable", err
	return d
}
