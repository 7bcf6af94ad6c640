package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// DefaultAdminRole names the bootstrap administrative role.
const DefaultAdminRole = "admin"

// KeySource enumerates the declared permission keys; *Registry implements it.
type KeySource interface {
	Keys() KeySet
	Description(key string) string
}

// SeederConfig tunes Seed.
type SeederConfig struct {
	// AdminRole receives newly inserted permissions. Empty uses DefaultAdminRole.
	AdminRole string
	// CreateAdmin creates AdminRole when it does not exist yet.
	CreateAdmin bool
}

// SeedReport summarises one Seed run.
type SeedReport struct {
	Declared    int
	Inserted    []string
	Attached    []string
	Stale       []string
	AdminRoleID int64
}

// Seeder reconciles the declared permission set with the persisted catalog.
// It only ever adds: catalog entries that are no longer declared are left in
// place. Retries and concurrent runs rely on the key uniqueness constraint.
type Seeder struct {
	store       Store
	source      KeySource
	svc         *Service
	invalidator Invalidator
	cfg         SeederConfig
	logger      *slog.Logger
}

// NewSeeder constructs a Seeder. Admin grants are invalidated through a
// Service so that the cache sees them.
func NewSeeder(store Store, source KeySource, invalidator Invalidator, cfg SeederConfig, logger *slog.Logger) *Seeder {
	if strings.TrimSpace(cfg.AdminRole) == "" {
		cfg.AdminRole = DefaultAdminRole
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		store:       store,
		source:      source,
		svc:         NewService(store, invalidator),
		invalidator: invalidator,
		cfg:         cfg,
		logger:      logger,
	}
}

// Seed runs the reconciliation. Any store failure is returned; callers must
// treat it as fatal to startup. Each key is inserted together with its admin
// grant, and a newly created admin role together with its initial grants,
// so a failed run leaves the work undone and the next run repeats it.
func (s *Seeder) Seed(ctx context.Context) (SeedReport, error) {
	declared := s.source.Keys()
	report := SeedReport{Declared: declared.Len()}

	persisted, err := s.store.GetAllPermissions(ctx)
	if err != nil {
		return report, fmt.Errorf("rbac: seed: load catalog: %w", err)
	}

	// A freshly created admin role gets the whole declared set since nothing
	// else could have granted it.
	existing := declared.Intersect(persisted)
	admin, adminCreated, err := s.adminRole(ctx, existing.Keys())
	if err != nil {
		return report, fmt.Errorf("rbac: seed: admin role: %w", err)
	}
	report.AdminRoleID = admin.ID
	if adminCreated {
		report.Attached = append(report.Attached, existing.Keys()...)
	}

	// New keys default to admin-only.
	missing := declared.Difference(persisted)
	for _, key := range missing.Keys() {
		if _, err := s.store.SeedPermission(ctx, key, s.source.Description(key), admin.ID); err != nil {
			return report, fmt.Errorf("rbac: seed: %s: %w", key, err)
		}
		report.Inserted = append(report.Inserted, key)
		if admin.ID > 0 {
			report.Attached = append(report.Attached, key)
		}
	}
	sort.Strings(report.Attached)

	report.Stale = persisted.Difference(declared).Keys()

	if len(report.Attached) > 0 {
		if err := s.svc.invalidate(ctx, admin.ID); err != nil {
			return report, fmt.Errorf("rbac: seed: %w", err)
		}
	}
	if len(report.Inserted) > 0 && s.invalidator != nil {
		if err := s.invalidator.InvalidateCatalog(ctx); err != nil {
			return report, fmt.Errorf("rbac: seed: invalidate catalog: %w", err)
		}
	}

	s.logger.Info("permission catalog seeded",
		slog.Int("declared", report.Declared),
		slog.Int("inserted", len(report.Inserted)),
		slog.Int("attached", len(report.Attached)),
		slog.Int("stale", len(report.Stale)),
		slog.String("admin_role", s.cfg.AdminRole),
	)
	if len(report.Stale) > 0 {
		s.logger.Warn("catalog holds undeclared permissions", slog.Any("keys", report.Stale))
	}
	return report, nil
}

func (s *Seeder) adminRole(ctx context.Context, initial []string) (Role, bool, error) {
	if s.cfg.CreateAdmin {
		return s.store.EnsureRole(ctx, s.cfg.AdminRole, "Bootstrap administrator", initial...)
	}
	role, err := s.store.GetRoleByName(ctx, s.cfg.AdminRole)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn("bootstrap admin role missing, new permissions stay ungranted", slog.String("admin_role", s.cfg.AdminRole))
		return Role{}, false, nil
	}
	return role, false, err
}
