package rbac

import (
	"context"
	"fmt"
)

// Service orchestrates catalog and role mutations. Every grant change
// invalidates the affected role before returning.
type Service struct {
	store       Store
	invalidator Invalidator
}

// NewService constructs a Service. invalidator may be nil when no cache is
// in use.
func NewService(store Store, invalidator Invalidator) *Service {
	return &Service{store: store, invalidator: invalidator}
}

// ListPermissions returns the catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.store.GetRole(ctx, id)
}

// CreateRole inserts a new role without permissions.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = NormalizeRoleName(name)
	if name == "" {
		return Role{}, ErrInvalidRole
	}
	return s.store.CreateRole(ctx, name, description)
}

// RolePermissions returns the keys attached to a role, read from the store.
func (s *Service) RolePermissions(ctx context.Context, roleID int64) ([]string, error) {
	if _, err := s.store.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	keys, err := s.store.GetPermissionsForRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return keys.Keys(), nil
}

// AttachPermissionToRole grants key to roleID and invalidates the role's
// cached set.
func (s *Service) AttachPermissionToRole(ctx context.Context, roleID int64, key string) error {
	key = NormalizeKey(key)
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if err := s.store.AttachPermissionToRole(ctx, roleID, key); err != nil {
		return err
	}
	return s.invalidate(ctx, roleID)
}

// DetachPermissionFromRole revokes key from roleID and invalidates the
// role's cached set.
func (s *Service) DetachPermissionFromRole(ctx context.Context, roleID int64, key string) error {
	key = NormalizeKey(key)
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if err := s.store.DetachPermissionFromRole(ctx, roleID, key); err != nil {
		return err
	}
	return s.invalidate(ctx, roleID)
}

func (s *Service) invalidate(ctx context.Context, roleID int64) error {
	if s.invalidator == nil {
		return nil
	}
	if err := s.invalidator.InvalidateRole(ctx, roleID); err != nil {
		return fmt.Errorf("rbac: invalidate role %d: %w", roleID, err)
	}
	return nil
}
