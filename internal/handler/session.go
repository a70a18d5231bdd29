package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aithera/therapy-server-go/internal/httputil"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/service"
)

type therapyService interface {
	ListSessions(ctx context.Context, userID int64) ([]model.TherapySession, error)
	Messages(ctx context.Context, userID, sessionID int64) ([]model.TherapyMessage, error)
	StartSession(ctx context.Context, userID int64, number int) (string, error)
	Chat(ctx context.Context, userID int64, in service.ChatInput) (*service.ChatReply, error)
}

type SessionHandler struct {
	therapyService therapyService
	events         http.Handler
}

func NewSessionHandler(therapyService therapyService, events http.Handler) *SessionHandler {
	return &SessionHandler{
		therapyService: therapyService,
		events:         events,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListSessions)
	r.Get("/messages/{sessionId}", h.Messages)
	if h.events != nil {
		r.Get("/events", h.events.ServeHTTP)
	}

	return r
}

// GET /api/sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	sessions, err := h.therapyService.ListSessions(r.Context(), p.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

// GET /api/sessions/messages/{sessionId}
func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	sessionID, err := pathID(r, "sessionId")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	messages, err := h.therapyService.Messages(r.Context(), p.UserID, sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if messages == nil {
		messages = []model.TherapyMessage{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}
