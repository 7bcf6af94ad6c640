package auth

import "context"

// Principal is the verified identity attached to a request.
type Principal struct {
	Subject string
	// RoleID is zero when the principal carries no role.
	RoleID int64
}

// HasRole reports whether a role claim is present.
func (p Principal) HasRole() bool {
	return p.RoleID > 0
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
