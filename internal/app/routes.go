package app

import (
	"net/http"

	"github.com/medisys/hms/internal/facility/rooms"
	"github.com/medisys/hms/internal/rbac"
	"github.com/medisys/hms/internal/shared"
)

// DeclareRoutes records the permission of every route NewRouter mounts,
// plus the public allow-list.
func DeclareRoutes(reg *rbac.Registry) *rbac.Registry {
	reg.Public(http.MethodGet, "/healthz").
		Public(http.MethodGet, "/metrics").
		ProtectAll("/permissions", rbac.PermissionRoutes).
		ProtectAll("/roles", rbac.RoleRoutes).
		ProtectAll("/rooms", rooms.Routes)
	for key, desc := range shared.ScopeDescriptions() {
		reg.Describe(key, desc)
	}
	return reg
}
