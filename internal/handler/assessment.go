package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aithera/therapy-server-go/internal/httputil"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/service"
)

type assessmentService interface {
	Create(ctx context.Context, userID int64, in service.GAD7Input) (*model.GAD7Result, error)
	Check(ctx context.Context, userID int64) (*service.GAD7Status, error)
	Results(ctx context.Context, userID int64) (*model.GAD7Result, error)
}

type AssessmentHandler struct {
	assessmentService assessmentService
}

func NewAssessmentHandler(assessmentService assessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessmentService: assessmentService}
}

func (h *AssessmentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/check", h.Check)
	r.Get("/results", h.Results)

	return r
}

// POST /api/gad7
func (h *AssessmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req service.GAD7Input
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.assessmentService.Create(r.Context(), p.UserID, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// GET /api/gad7/check
func (h *AssessmentHandler) Check(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	status, err := h.assessmentService.Check(r.Context(), p.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// GET /api/gad7/results
func (h *AssessmentHandler) Results(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	result, err := h.assessmentService.Results(r.Context(), p.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
