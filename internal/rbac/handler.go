package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medisys/hms/internal/auth"
	"github.com/medisys/hms/internal/platform/httpx"
	"github.com/medisys/hms/internal/shared"
)

// PermissionRoutes declares the routes mounted by Handler.MountPermissions.
var PermissionRoutes = []RoutePermission{
	{Method: http.MethodGet, Pattern: "/", Permission: shared.PermPermissionsView},
}

// RoleRoutes declares the routes mounted by Handler.MountRoles.
var RoleRoutes = []RoutePermission{
	{Method: http.MethodGet, Pattern: "/", Permission: shared.PermRolesView},
	{Method: http.MethodPost, Pattern: "/", Permission: shared.PermRolesEdit},
	{Method: http.MethodGet, Pattern: "/{id}/permissions", Permission: shared.PermRolesView},
	{Method: http.MethodPut, Pattern: "/{id}/permissions/{key}", Permission: shared.PermRolesEdit},
	{Method: http.MethodDelete, Pattern: "/{id}/permissions/{key}", Permission: shared.PermRolesEdit},
}

// AuditRecorder persists administrative changes; *shared.AuditLogger
// implements it.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Handler exposes role and permission administration as JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	audit     AuditRecorder
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// WithAudit records role and grant changes through recorder.
func (h *Handler) WithAudit(recorder AuditRecorder) *Handler {
	h.audit = recorder
	return h
}

// MountPermissions registers permission routes.
func (h *Handler) MountPermissions(r chi.Router) {
	r.Get("/", h.listPermissions)
}

// MountRoles registers role routes.
func (h *Handler) MountRoles(r chi.Router) {
	r.Get("/", h.listRoles)
	r.Post("/", h.createRole)
	r.Get("/{id}/permissions", h.rolePermissions)
	r.Put("/{id}/permissions/{key}", h.attachPermission)
	r.Delete("/{id}/permissions/{key}", h.detachPermission)
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=255"`
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, r, "list permissions", err)
		return
	}
	if perms == nil {
		perms = []Permission{}
	}
	httpx.OK(w, http.StatusOK, perms)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, r, "list roles", err)
		return
	}
	if roles == nil {
		roles = []Role{}
	}
	httpx.OK(w, http.StatusOK, roles)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		h.fail(w, r, "create role", err)
		return
	}
	h.record(r, "rbac.role.create", role.ID, map[string]any{"name": role.Name})
	httpx.OK(w, http.StatusCreated, role)
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, ok := roleIDParam(w, r)
	if !ok {
		return
	}
	keys, err := h.service.RolePermissions(r.Context(), roleID)
	if err != nil {
		h.fail(w, r, "role permissions", err)
		return
	}
	httpx.OK(w, http.StatusOK, keys)
}

func (h *Handler) attachPermission(w http.ResponseWriter, r *http.Request) {
	roleID, ok := roleIDParam(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	if err := h.service.AttachPermissionToRole(r.Context(), roleID, key); err != nil {
		h.fail(w, r, "attach permission", err)
		return
	}
	h.logger.Info("permission granted", slog.Int64("role_id", roleID), slog.String("key", key))
	h.record(r, "rbac.grant", roleID, map[string]any{"key": NormalizeKey(key)})
	httpx.OK(w, http.StatusOK, nil)
}

func (h *Handler) detachPermission(w http.ResponseWriter, r *http.Request) {
	roleID, ok := roleIDParam(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	if err := h.service.DetachPermissionFromRole(r.Context(), roleID, key); err != nil {
		h.fail(w, r, "detach permission", err)
		return
	}
	h.logger.Info("permission revoked", slog.Int64("role_id", roleID), slog.String("key", key))
	h.record(r, "rbac.revoke", roleID, map[string]any{"key": NormalizeKey(key)})
	httpx.OK(w, http.StatusOK, nil)
}

func (h *Handler) record(r *http.Request, action string, roleID int64, meta map[string]any) {
	if h.audit == nil {
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	entry := shared.AuditLog{
		Actor:    principal.Subject,
		Action:   action,
		Entity:   "role",
		EntityID: strconv.FormatInt(roleID, 10),
		Meta:     meta,
	}
	if err := h.audit.Record(r.Context(), entry); err != nil {
		h.logger.WarnContext(r.Context(), "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func roleIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, http.StatusBadRequest, "invalid role id")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Fail(w, http.StatusNotFound, "role not found")
	case errors.Is(err, ErrUnknownPermission):
		httpx.Fail(w, http.StatusNotFound, "unknown permission")
	case errors.Is(err, ErrInvalidKey), errors.Is(err, ErrInvalidRole):
		httpx.Fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDuplicateRole):
		httpx.Fail(w, http.StatusConflict, "role already exists")
	default:
		h.logger.ErrorContext(r.Context(), op, slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}
