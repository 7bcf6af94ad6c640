package shared

// Core platform permissions.
const (
	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"

	PermPermissionsView = "permissions.view"
)

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermRolesView,
		PermRolesEdit,
		PermPermissionsView,
	}
}

// ScopeDescriptions returns the catalog description of every known scope.
func ScopeDescriptions() map[string]string {
	return map[string]string{
		PermRolesView:       "View roles and their grants",
		PermRolesEdit:       "Create roles and change grants",
		PermPermissionsView: "View the permission catalog",
		PermRoomsRead:       "View rooms",
		PermRoomsWrite:      "Manage rooms",
	}
}
