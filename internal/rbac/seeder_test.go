package rbac

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roomsRegistry() *Registry {
	return NewRegistry().
		Protect(http.MethodGet, "/rooms", "rooms.read").
		Protect(http.MethodGet, "/rooms/{id}", "rooms.read").
		Protect(http.MethodPost, "/rooms", "rooms.write").
		Describe("rooms.read", "View rooms")
}

func TestSeedEmptyCatalogGrantsAdmin(t *testing.T) {
	store := newMockStore()
	admin := store.addRole("admin")
	seeder := NewSeeder(store, roomsRegistry(), nil, SeederConfig{}, nil)

	report, err := seeder.Seed(context.Background())
	require.NoError(t, err)

	all, err := store.GetAllPermissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"rooms.read", "rooms.write"}, all.Keys())
	assert.Equal(t, []string{"rooms.read", "rooms.write"}, store.roleKeys(admin.ID))
	assert.Equal(t, 2, report.Declared)
	assert.Equal(t, []string{"rooms.read", "rooms.write"}, report.Inserted)
	assert.Equal(t, admin.ID, report.AdminRoleID)

	perms, err := store.ListPermissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "View rooms", perms[0].Description)
}

func TestSeedIsIdempotent(t *testing.T) {
	store := newMockStore()
	store.addRole("admin")
	seeder := NewSeeder(store, roomsRegistry(), nil, SeederConfig{}, nil)

	_, err := seeder.Seed(context.Background())
	require.NoError(t, err)
	report, err := seeder.Seed(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Inserted)
	assert.Empty(t, report.Attached)
	assert.Equal(t, 2, store.permissionCount())
	assert.Equal(t, int64(2), store.upserts.Load())
}

func TestSeedOnlyGrantsNewPermissionsToAdmin(t *testing.T) {
	store := newMockStore()
	store.addPermission("rooms.read")
	admin := store.addRole("admin")
	nurse := store.addRole("Nurse", "rooms.read")
	seeder := NewSeeder(store, roomsRegistry(), nil, SeederConfig{}, nil)

	report, err := seeder.Seed(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"rooms.write"}, report.Inserted)
	assert.Equal(t, []string{"rooms.write"}, store.roleKeys(admin.ID))
	assert.Equal(t, []string{"rooms.read"}, store.roleKeys(nurse.ID))
}

func TestSeedLeavesStalePermissions(t *testing.T) {
	store := newMockStore()
	store.addPermission("wards.legacy")
	store.addRole("admin")
	seeder := NewSeeder(store, roomsRegistry(), nil, SeederConfig{}, nil)

	report, err := seeder.Seed(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"wards.legacy"}, report.Stale)
	all, _ := store.GetAllPermissions(context.Background())
	assert.True(t, all.Has("wards.legacy"))
}

func TestSeedWithoutAdminRole(t *testing.T) {
	store := newMockStore()
	seeder := NewSeeder(store, roomsRegistry(), nil, SeederConfig{}, nil)

	report, err := seeder.Seed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.AdminRoleID)
	assert.Empty(t, report.Attached)
	assert.Equal(t, 2, store.permissionCount())
}

func TestSeedCreatesAdminRole(t *testing.T) {
	store := newMockStore()
	store.addPermission("rooms.read")
	seeder := NewSeeder(store, roomsRegistry(), nil, SeederConfig{AdminRole: "superuser", CreateAdmin: true}, nil)

	report, err := seeder.Seed(context.Background())
	require.NoError(t, err)

	admin, err := store.GetRoleByName(context.Background(), "superuser")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, report.AdminRoleID)
	assert.Equal(t, []string{"rooms.read", "rooms.write"}, store.roleKeys(admin.ID))
}

func TestSeedStoreFailureIsFatal(t *testing.T) {
	cases := map[string]func(*mockStore){
		"catalog": func(m *mockStore) { m.catalogErr = errors.New("db down") },
		"upsert":  func(m *mockStore) { m.upsertErr = errors.New("db down") },
		"attach":  func(m *mockStore) { m.attachErr = errors.New("db down") },
		"ensure":  func(m *mockStore) { m.ensureErr = errors.New("db down") },
	}
	for name, inject := range cases {
		t.Run(name, func(t *testing.T) {
			store := newMockStore()
			store.addRole("admin")
			inject(store)
			seeder := NewSeeder(store, roomsRegistry(), nil, SeederConfig{CreateAdmin: true}, nil)

			_, err := seeder.Seed(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestSeedRetryAfterFailedGrant(t *testing.T) {
	store := newMockStore()
	admin := store.addRole("admin")
	seeder := NewSeeder(store, roomsRegistry(), nil, SeederConfig{}, nil)

	store.attachErr = errors.New("connection reset")
	_, err := seeder.Seed(context.Background())
	require.Error(t, err)
	assert.Zero(t, store.permissionCount())

	store.attachErr = nil
	report, err := seeder.Seed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"rooms.read", "rooms.write"}, report.Inserted)
	assert.Equal(t, []string{"rooms.read", "rooms.write"}, store.roleKeys(admin.ID))
}

func TestSeedRetryAfterPartialRun(t *testing.T) {
	store := newMockStore()
	admin := store.addRole("admin")
	seeder := NewSeeder(store, roomsRegistry(), nil, SeederConfig{}, nil)

	store.attachErrs = map[string]error{"rooms.write": errors.New("connection reset")}
	_, err := seeder.Seed(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"rooms.read"}, store.roleKeys(admin.ID))

	store.attachErrs = nil
	report, err := seeder.Seed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"rooms.write"}, report.Inserted)
	assert.Equal(t, []string{"rooms.read", "rooms.write"}, store.roleKeys(admin.ID))
}

func TestSeedRetryAfterFailedAdminBootstrap(t *testing.T) {
	store := newMockStore()
	store.addPermission("rooms.read")
	seeder := NewSeeder(store, roomsRegistry(), nil, SeederConfig{CreateAdmin: true}, nil)

	store.attachErrs = map[string]error{"rooms.read": errors.New("connection reset")}
	_, err := seeder.Seed(context.Background())
	require.Error(t, err)
	_, err = store.GetRoleByName(context.Background(), "admin")
	require.ErrorIs(t, err, ErrNotFound)

	store.attachErrs = nil
	report, err := seeder.Seed(context.Background())
	require.NoError(t, err)
	admin, err := store.GetRoleByName(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, []string{"rooms.read", "rooms.write"}, store.roleKeys(admin.ID))
	assert.Equal(t, []string{"rooms.read", "rooms.write"}, report.Attached)
}

func TestSeedRefreshesCatalogSnapshot(t *testing.T) {
	store := newMockStore()
	store.addRole("admin")
	cache := NewCache(store, time.Hour)
	ctx := context.Background()

	known, err := cache.Known(ctx, "rooms.write")
	require.NoError(t, err)
	require.False(t, known)

	_, err = NewSeeder(store, roomsRegistry(), cache, SeederConfig{}, nil).Seed(ctx)
	require.NoError(t, err)

	known, err = cache.Known(ctx, "rooms.write")
	require.NoError(t, err)
	assert.True(t, known)
}
