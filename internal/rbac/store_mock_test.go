package rbac

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// ============================================================================
// MOCK STORE
// ============================================================================

type mockStore struct {
	mu sync.Mutex

	perms      map[string]Permission
	nextPermID int64
	roles      map[int64]Role
	nextRoleID int64
	grants     map[int64]KeySet

	roleLoads    atomic.Int64
	catalogLoads atomic.Int64
	upserts      atomic.Int64

	// Error injection
	catalogErr  error
	roleLoadErr error
	upsertErr   error
	attachErr   error
	ensureErr   error
	// attachErrs fails grants of individual keys.
	attachErrs map[string]error

	// loadHook runs inside GetPermissionsForRole before the grants are read.
	loadHook func()
}

func newMockStore() *mockStore {
	return &mockStore{
		perms:      make(map[string]Permission),
		roles:      make(map[int64]Role),
		grants:     make(map[int64]KeySet),
		nextPermID: 1,
		nextRoleID: 1,
	}
}

func (m *mockStore) addRole(name string, keys ...string) Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	role := Role{ID: m.nextRoleID, Name: name}
	m.nextRoleID++
	m.roles[role.ID] = role
	m.grants[role.ID] = NewKeySet()
	for _, k := range keys {
		if _, ok := m.perms[k]; !ok {
			m.perms[k] = Permission{ID: m.nextPermID, Key: k}
			m.nextPermID++
		}
		m.grants[role.ID].Add(k)
	}
	return role
}

func (m *mockStore) addPermission(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if _, ok := m.perms[k]; !ok {
			m.perms[k] = Permission{ID: m.nextPermID, Key: k}
			m.nextPermID++
		}
	}
}

func (m *mockStore) GetAllPermissions(ctx context.Context) (KeySet, error) {
	m.catalogLoads.Add(1)
	if m.catalogErr != nil {
		return nil, m.catalogErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set := NewKeySet()
	for k := range m.perms {
		set.Add(k)
	}
	return set, nil
}

func (m *mockStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Permission, 0, len(m.perms))
	for _, p := range m.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *mockStore) UpsertPermission(ctx context.Context, key, description string) (Permission, error) {
	m.upserts.Add(1)
	if m.upsertErr != nil {
		return Permission{}, m.upsertErr
	}
	key = NormalizeKey(key)
	if !ValidKey(key) {
		return Permission{}, ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.perms[key]; ok {
		return p, nil
	}
	p := Permission{ID: m.nextPermID, Key: key, Description: description}
	m.nextPermID++
	m.perms[key] = p
	return p, nil
}

func (m *mockStore) SeedPermission(ctx context.Context, key, description string, grantTo int64) (Permission, error) {
	key = NormalizeKey(key)
	if grantTo > 0 {
		if err := m.attachFailure(key); err != nil {
			m.upserts.Add(1)
			return Permission{}, err
		}
	}
	p, err := m.UpsertPermission(ctx, key, description)
	if err != nil || grantTo <= 0 {
		return p, err
	}
	return p, m.grant(grantTo, key)
}

func (m *mockStore) attachFailure(key string) error {
	if m.attachErr != nil {
		return m.attachErr
	}
	return m.attachErrs[key]
}

func (m *mockStore) grant(roleID int64, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.perms[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPermission, key)
	}
	if _, ok := m.roles[roleID]; !ok {
		return ErrNotFound
	}
	m.grants[roleID].Add(key)
	return nil
}

func (m *mockStore) GetPermissionsForRole(ctx context.Context, roleID int64) (KeySet, error) {
	m.roleLoads.Add(1)
	if m.loadHook != nil {
		m.loadHook()
	}
	if m.roleLoadErr != nil {
		return nil, m.roleLoadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set := NewKeySet()
	for k := range m.grants[roleID] {
		set.Add(k)
	}
	return set, nil
}

func (m *mockStore) AttachPermissionToRole(ctx context.Context, roleID int64, key string) error {
	if err := m.attachFailure(key); err != nil {
		return err
	}
	return m.grant(roleID, key)
}

func (m *mockStore) DetachPermissionFromRole(ctx context.Context, roleID int64, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.perms[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPermission, key)
	}
	if grants, ok := m.grants[roleID]; ok {
		delete(grants, key)
	}
	return nil
}

func (m *mockStore) ListRoles(ctx context.Context) ([]Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockStore) GetRole(ctx context.Context, id int64) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (m *mockStore) GetRoleByName(ctx context.Context, name string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, role := range m.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return Role{}, ErrNotFound
}

func (m *mockStore) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = NormalizeRoleName(name)
	if _, err := m.GetRoleByName(ctx, name); err == nil {
		return Role{}, ErrDuplicateRole
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	role := Role{ID: m.nextRoleID, Name: name, Description: description}
	m.nextRoleID++
	m.roles[role.ID] = role
	m.grants[role.ID] = NewKeySet()
	return role, nil
}

func (m *mockStore) EnsureRole(ctx context.Context, name, description string, grants ...string) (Role, bool, error) {
	if m.ensureErr != nil {
		return Role{}, false, m.ensureErr
	}
	if role, err := m.GetRoleByName(ctx, NormalizeRoleName(name)); err == nil {
		return role, false, nil
	}
	// All grants must succeed or the role is not created.
	for _, key := range grants {
		if err := m.attachFailure(key); err != nil {
			return Role{}, false, err
		}
	}
	role, err := m.CreateRole(ctx, name, description)
	if err != nil {
		return Role{}, false, err
	}
	for _, key := range grants {
		if err := m.grant(role.ID, key); err != nil {
			return Role{}, false, err
		}
	}
	return role, true, nil
}

func (m *mockStore) roleKeys(roleID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grants[roleID].Keys()
}

func (m *mockStore) permissionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.perms)
}

var _ Store = (*mockStore)(nil)
