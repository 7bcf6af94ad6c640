package rooms

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medisys/hms/internal/platform/httpx"
	"github.com/medisys/hms/internal/rbac"
	"github.com/medisys/hms/internal/shared"
)

// Routes declares the permission each route mounted by Handler.Mount requires.
var Routes = []rbac.RoutePermission{
	{Method: http.MethodGet, Pattern: "/", Permission: shared.PermRoomsRead},
	{Method: http.MethodGet, Pattern: "/{id}", Permission: shared.PermRoomsRead},
	{Method: http.MethodPost, Pattern: "/", Permission: shared.PermRoomsWrite},
	{Method: http.MethodPut, Pattern: "/{id}", Permission: shared.PermRoomsWrite},
	{Method: http.MethodDelete, Pattern: "/{id}", Permission: shared.PermRoomsWrite},
}

type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// Mount registers room routes.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type listResponse struct {
	Items      []Room            `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window := shared.ParsePageRequest(q)
	filters := ListFilters{
		Window:  window,
		Search:  q.Get("search"),
		Kind:    q.Get("kind"),
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
	}
	if raw := q.Get("floor"); raw != "" {
		floor, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "invalid floor")
			return
		}
		filters.Floor = &floor
	}

	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, r, "list rooms", err)
		return
	}
	if items == nil {
		items = []Room{}
	}
	httpx.OK(w, http.StatusOK, listResponse{Items: items, Pagination: window.Result(total)})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := roomID(w, r)
	if !ok {
		return
	}
	room, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get room", err)
		return
	}
	httpx.OK(w, http.StatusOK, room)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	form, ok := h.decode(w, r)
	if !ok {
		return
	}
	room, err := h.service.Create(r.Context(), form.toRoom())
	if err != nil {
		h.fail(w, r, "create room", err)
		return
	}
	h.logger.Info("room created", slog.Int64("id", room.ID), slog.String("code", room.Code))
	httpx.OK(w, http.StatusCreated, room)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := roomID(w, r)
	if !ok {
		return
	}
	form, ok := h.decode(w, r)
	if !ok {
		return
	}
	room, err := h.service.Update(r.Context(), id, form.toRoom())
	if err != nil {
		h.fail(w, r, "update room", err)
		return
	}
	httpx.OK(w, http.StatusOK, room)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := roomID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, "delete room", err)
		return
	}
	h.logger.Info("room deleted", slog.Int64("id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (RoomForm, bool) {
	var form RoomForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return form, false
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return form, false
	}
	return form, true
}

func roomID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, http.StatusBadRequest, "invalid room id")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, httpx.ErrNotFound) {
		httpx.Fail(w, http.StatusNotFound, "room not found")
		return
	}
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
