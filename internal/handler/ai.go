package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aithera/therapy-server-go/internal/httputil"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/service"
)

// AIHandler exposes the model-backed session operations. Mount it behind the
// per-user rate limiter.
type AIHandler struct {
	therapyService therapyService
}

func NewAIHandler(therapyService therapyService) *AIHandler {
	return &AIHandler{therapyService: therapyService}
}

func (h *AIHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/start-session", h.StartSession)
	r.Post("/chat", h.Chat)

	return r
}

type startSessionRequest struct {
	SessionNumber *model.FlexInt `json:"sessionNumber"`
}

// POST /api/ai/start-session
func (h *AIHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	number := 0
	if req.SessionNumber != nil {
		number = int(*req.SessionNumber)
	}

	message, err := h.therapyService.StartSession(r.Context(), p.UserID, number)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

// POST /api/ai/chat
func (h *AIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req service.ChatInput
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	reply, err := h.therapyService.Chat(r.Context(), p.UserID, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reply)
}
