package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aithera/therapy-server-go/internal/httputil"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/service"
)

type profileService interface {
	Get(ctx context.Context, userID int64) (*model.Profile, error)
	Check(ctx context.Context, userID int64) (*service.ProfileStatus, error)
	Create(ctx context.Context, userID int64, in service.ProfileInput) (*model.Profile, error)
	Update(ctx context.Context, userID int64, in service.ProfileInput) (*model.Profile, error)
}

type ProfileHandler struct {
	profileService profileService
}

func NewProfileHandler(profileService profileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

func (h *ProfileHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Get)
	r.Get("/check", h.Check)
	r.Post("/", h.Create)
	r.Patch("/", h.Update)
	r.Put("/", h.Update)

	return r
}

// GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	profile, err := h.profileService.Get(r.Context(), p.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// GET /api/profile/check
func (h *ProfileHandler) Check(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	status, err := h.profileService.Check(r.Context(), p.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// POST /api/profile
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req service.ProfileInput
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	profile, err := h.profileService.Create(r.Context(), p.UserID, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}

// PATCH /api/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req service.ProfileInput
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	profile, err := h.profileService.Update(r.Context(), p.UserID, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
