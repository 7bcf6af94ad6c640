package rbac

import "errors"

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrInvalidKey is returned for permission keys that are not resource.action tokens.
	ErrInvalidKey = errors.New("rbac: invalid permission key")
	// ErrUnknownPermission is returned when a key is absent from the catalog.
	ErrUnknownPermission = errors.New("rbac: unknown permission")
	// ErrDuplicateRole is returned when a role name is already taken.
	ErrDuplicateRole = errors.New("rbac: role already exists")
	// ErrInvalidRole is returned for empty role names.
	ErrInvalidRole = errors.New("rbac: role name required")
	// ErrStoreUnavailable wraps any persistence failure seen while resolving grants.
	ErrStoreUnavailable = errors.New("rbac: store unavailable")
)
