package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisys/hms/internal/auth"
	"github.com/medisys/hms/internal/shared"
)

func newAdminRouter(store *mockStore, inv Invalidator) http.Handler {
	h := NewHandler(nil, NewService(store, inv))
	r := chi.NewRouter()
	r.Route("/permissions", h.MountPermissions)
	r.Route("/roles", h.MountRoles)
	return r
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerAttachInvalidatesCachedRole(t *testing.T) {
	store := newMockStore()
	store.addPermission("rooms.write")
	nurse := store.addRole("Nurse", "rooms.read")
	cache := NewCache(store, time.Hour)
	router := newAdminRouter(store, cache)

	before, err := cache.Resolve(context.Background(), nurse.ID)
	require.NoError(t, err)
	require.False(t, before.Has("rooms.write"))

	rec := serve(router, http.MethodPut, "/roles/1/permissions/rooms.write", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	after, err := cache.Resolve(context.Background(), nurse.ID)
	require.NoError(t, err)
	assert.True(t, after.Has("rooms.write"))

	rec = serve(router, http.MethodGet, "/roles/1/permissions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"status":200,"message":"OK","data":["rooms.read","rooms.write"]}`, rec.Body.String())

	rec = serve(router, http.MethodDelete, "/roles/1/permissions/rooms.write", "")
	require.Equal(t, http.StatusOK, rec.Code)
	after, err = cache.Resolve(context.Background(), nurse.ID)
	require.NoError(t, err)
	assert.False(t, after.Has("rooms.write"))
}

func TestHandlerAttachErrors(t *testing.T) {
	store := newMockStore()
	store.addRole("Nurse", "rooms.read")
	router := newAdminRouter(store, NewCache(store, time.Hour))

	rec := serve(router, http.MethodPut, "/roles/1/permissions/beds.read", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(router, http.MethodPut, "/roles/99/permissions/rooms.read", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(router, http.MethodPut, "/roles/1/permissions/rooms", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodPut, "/roles/abc/permissions/rooms.read", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodGet, "/roles/42/permissions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerCreateRole(t *testing.T) {
	store := newMockStore()
	router := newAdminRouter(store, nil)

	rec := serve(router, http.MethodPost, "/roles", `{"name":"Pharmacist","description":"Dispensary"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"name":"Pharmacist"`)

	rec = serve(router, http.MethodPost, "/roles", `{"name":"Pharmacist"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(router, http.MethodPost, "/roles", `{"description":"missing name"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodPost, "/roles", `{"name":"x","unknown":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodGet, "/roles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pharmacist")
}

func TestHandlerListPermissions(t *testing.T) {
	store := newMockStore()
	router := newAdminRouter(store, nil)

	rec := serve(router, http.MethodGet, "/permissions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)

	store.addPermission("rooms.read")
	rec = serve(router, http.MethodGet, "/permissions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"key":"rooms.read"`)
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []shared.AuditLog
}

func (m *memoryAudit) Record(_ context.Context, log shared.AuditLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, log)
	return nil
}

func TestHandlerAuditsGrantChanges(t *testing.T) {
	store := newMockStore()
	store.addPermission("rooms.write")
	nurse := store.addRole("Nurse")
	audit := &memoryAudit{}
	h := NewHandler(nil, NewService(store, nil)).WithAudit(audit)
	r := chi.NewRouter()
	r.Route("/roles", h.MountRoles)

	req := httptest.NewRequest(http.MethodPut, "/roles/1/permissions/Rooms.Write", nil)
	req = req.WithContext(auth.ContextWithPrincipal(req.Context(), auth.Principal{Subject: "chief", RoleID: 9}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, http.MethodPut, "/roles/1/permissions/beds.read", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	assert.Equal(t, "chief", entry.Actor)
	assert.Equal(t, "rbac.grant", entry.Action)
	assert.Equal(t, "1", entry.EntityID)
	assert.Equal(t, "rooms.write", entry.Meta["key"])
	assert.Equal(t, []string{"rooms.write"}, store.roleKeys(nurse.ID))
}
