package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medisys/hms/internal/platform/db"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Store is the persistence boundary for the permission catalog and roles.
type Store interface {
	GetAllPermissions(ctx context.Context) (KeySet, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	// UpsertPermission inserts key or returns the existing record unchanged.
	UpsertPermission(ctx context.Context, key, description string) (Permission, error)
	// SeedPermission upserts key and, when grantTo is positive, grants it to
	// that role in the same transaction.
	SeedPermission(ctx context.Context, key, description string, grantTo int64) (Permission, error)
	GetPermissionsForRole(ctx context.Context, roleID int64) (KeySet, error)
	// AttachPermissionToRole is idempotent.
	AttachPermissionToRole(ctx context.Context, roleID int64, key string) error
	DetachPermissionFromRole(ctx context.Context, roleID int64, key string) error

	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)
	// EnsureRole returns the named role, creating it when missing. The bool
	// reports whether this call created it. grants are attached only to a
	// role created by this call, in the same transaction.
	EnsureRole(ctx context.Context, name, description string, grants ...string) (Role, bool, error)
}

// PGStore implements Store on PostgreSQL. Key uniqueness is enforced by the
// uq_permissions_key constraint, so concurrent upserts never duplicate rows.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PostgreSQL backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// GetAllPermissions returns every key in the catalog.
func (s *PGStore) GetAllPermissions(ctx context.Context) (KeySet, error) {
	rows, err := s.pool.Query(ctx, `SELECT key FROM permissions`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permission keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("rbac: scan permission keys: %w", err)
	}
	return NewKeySet(keys...), nil
}

// ListPermissions returns all permissions ordered by key.
func (s *PGStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, key, description, created_at FROM permissions ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UpsertPermission inserts the key if missing. The no-op update on conflict
// makes RETURNING yield the existing row without touching its description.
func (s *PGStore) UpsertPermission(ctx context.Context, key, description string) (Permission, error) {
	return upsertPermission(ctx, s.pool, key, description)
}

// SeedPermission upserts key and grants it to grantTo atomically, so a failed
// grant leaves the key missing and the next seeding run retries both.
func (s *PGStore) SeedPermission(ctx context.Context, key, description string, grantTo int64) (Permission, error) {
	var p Permission
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		if p, err = upsertPermission(ctx, tx, key, description); err != nil {
			return err
		}
		if grantTo <= 0 {
			return nil
		}
		return grant(ctx, tx, grantTo, p.ID, p.Key)
	})
	if err != nil {
		return Permission{}, err
	}
	return p, nil
}

func upsertPermission(ctx context.Context, q rowQuerier, key, description string) (Permission, error) {
	key = NormalizeKey(key)
	if !ValidKey(key) {
		return Permission{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	var p Permission
	err := q.QueryRow(ctx, `
		INSERT INTO permissions (key, description)
		VALUES ($1, $2)
		ON CONFLICT ON CONSTRAINT uq_permissions_key DO UPDATE SET key = EXCLUDED.key
		RETURNING id, key, description, created_at`,
		key, strings.TrimSpace(description),
	).Scan(&p.ID, &p.Key, &p.Description, &p.CreatedAt)
	if err != nil {
		return Permission{}, fmt.Errorf("rbac: upsert permission %s: %w", key, err)
	}
	return p, nil
}

// GetPermissionsForRole returns the keys attached to roleID. Unknown roles
// resolve to an empty set.
func (s *PGStore) GetPermissionsForRole(ctx context.Context, roleID int64) (KeySet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.key
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1`, roleID)
	if err != nil {
		return nil, fmt.Errorf("rbac: role %d permissions: %w", roleID, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("rbac: scan role %d permissions: %w", roleID, err)
	}
	return NewKeySet(keys...), nil
}

// AttachPermissionToRole grants key to roleID.
func (s *PGStore) AttachPermissionToRole(ctx context.Context, roleID int64, key string) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return attachKeys(ctx, tx, roleID, []string{key})
	})
}

func attachKeys(ctx context.Context, tx pgx.Tx, roleID int64, keys []string) error {
	for _, key := range keys {
		key = NormalizeKey(key)
		permID, err := permissionID(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := grant(ctx, tx, roleID, permID, key); err != nil {
			return err
		}
	}
	return nil
}

func grant(ctx context.Context, tx pgx.Tx, roleID, permID int64, key string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, permID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("rbac: role %d: %w", roleID, ErrNotFound)
		}
		return fmt.Errorf("rbac: attach %s to role %d: %w", key, roleID, err)
	}
	return nil
}

// DetachPermissionFromRole revokes key from roleID. Revoking a grant the
// role does not hold is a no-op.
func (s *PGStore) DetachPermissionFromRole(ctx context.Context, roleID int64, key string) error {
	key = NormalizeKey(key)
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		permID, err := permissionID(ctx, tx, key)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permID); err != nil {
			return fmt.Errorf("rbac: detach %s from role %d: %w", key, roleID, err)
		}
		return nil
	})
}

func permissionID(ctx context.Context, tx pgx.Tx, key string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM permissions WHERE key = $1`, key).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrUnknownPermission, key)
		}
		return 0, fmt.Errorf("rbac: lookup permission %s: %w", key, err)
	}
	return id, nil
}

// ListRoles returns all roles ordered by name.
func (s *PGStore) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches a role by ID.
func (s *PGStore) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.scanRole(ctx, `SELECT id, name, description, created_at, updated_at FROM roles WHERE id = $1`, id)
}

// GetRoleByName fetches a role by its unique name.
func (s *PGStore) GetRoleByName(ctx context.Context, name string) (Role, error) {
	return s.scanRole(ctx, `SELECT id, name, description, created_at, updated_at FROM roles WHERE name = $1`, NormalizeRoleName(name))
}

func (s *PGStore) scanRole(ctx context.Context, query string, arg any) (Role, error) {
	var role Role
	err := s.pool.QueryRow(ctx, query, arg).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, fmt.Errorf("rbac: get role: %w", err)
	}
	return role, nil
}

// CreateRole inserts a new role.
func (s *PGStore) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = NormalizeRoleName(name)
	if name == "" {
		return Role{}, ErrInvalidRole
	}
	var role Role
	err := s.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description)
		VALUES ($1, $2)
		RETURNING id, name, description, created_at, updated_at`,
		name, strings.TrimSpace(description),
	).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Role{}, fmt.Errorf("%w: %s", ErrDuplicateRole, name)
		}
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}
	return role, nil
}

// EnsureRole returns the named role, inserting it if missing. A concurrent
// creator blocks on the name constraint until the first transaction settles.
func (s *PGStore) EnsureRole(ctx context.Context, name, description string, grants ...string) (Role, bool, error) {
	name = NormalizeRoleName(name)
	if name == "" {
		return Role{}, false, ErrInvalidRole
	}
	var role Role
	var created bool
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO roles (name, description)
			VALUES ($1, $2)
			ON CONFLICT ON CONSTRAINT uq_roles_name DO UPDATE SET name = EXCLUDED.name
			RETURNING id, name, description, created_at, updated_at, (xmax = 0) AS inserted`,
			name, strings.TrimSpace(description),
		).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt, &created)
		if err != nil {
			return fmt.Errorf("rbac: ensure role %s: %w", name, err)
		}
		if !created {
			return nil
		}
		return attachKeys(ctx, tx, role.ID, grants)
	})
	if err != nil {
		return Role{}, false, err
	}
	return role, created, nil
}

var _ Store = (*PGStore)(nil)
