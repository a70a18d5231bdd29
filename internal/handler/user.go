package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aithera/therapy-server-go/internal/audit"
	"github.com/aithera/therapy-server-go/internal/httputil"
	"github.com/aithera/therapy-server-go/internal/middleware"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/service"
)

type userService interface {
	List(ctx context.Context, limit, offset int) (*service.UserList, error)
	Get(ctx context.Context, id int64) (*model.User, error)
	Create(ctx context.Context, in service.CreateUserInput) (*model.User, error)
	Update(ctx context.Context, id int64, in service.UpdateUserInput) (*model.User, error)
	Delete(ctx context.Context, id int64) error
}

type UserHandler struct {
	userService userService
	auth        *AuthHandler
}

func NewUserHandler(userService userService, auth *AuthHandler) *UserHandler {
	return &UserHandler{
		userService: userService,
		auth:        auth,
	}
}

// Routes expects the auth middleware to run before it.
func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/current", h.auth.CurrentUser)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})

	return r
}

// GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page := ParsePagination(r)

	list, err := h.userService.List(r.Context(), page.Limit, page.Offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users":  list.Users,
		"total":  list.Total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

// GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.userService.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// POST /api/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserInput
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.userService.Create(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.audit(r, audit.EventUserCreate, user.ID)
	writeJSON(w, http.StatusCreated, user)
}

// PUT /api/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req service.UpdateUserInput
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.userService.Update(r.Context(), id, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.audit(r, audit.EventUserUpdate, id)
	writeJSON(w, http.StatusOK, user)
}

// DELETE /api/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.userService.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.audit(r, audit.EventUserDelete, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func (h *UserHandler) audit(r *http.Request, eventType audit.EventType, userID int64) {
	event := audit.Event{Type: eventType, UserID: userID}
	if p := middleware.PrincipalFrom(r.Context()); p != nil {
		event.ActorID = p.UserID
	}
	audit.LogFromRequest(r, event)
}
