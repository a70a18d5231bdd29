package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aithera/therapy-server-go/internal/middleware"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/sse"
)

func TestEventsHandler_ServeHTTP(t *testing.T) {
	t.Run("returns 401 without principal", func(t *testing.T) {
		handler := NewEventsHandler(nil)

		req := httptest.NewRequest(http.MethodGet, "/api/sessions/events", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("streams connected event until client leaves", func(t *testing.T) {
		broker := sse.NewBroker(nil)
		defer broker.Close()
		handler := NewEventsHandler(broker)

		ctx, cancel := context.WithCancel(middleware.WithPrincipal(context.Background(), &model.Principal{UserID: 7}))
		req := httptest.NewRequest(http.MethodGet, "/api/sessions/events", nil).WithContext(ctx)
		rec := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			handler.ServeHTTP(rec, req)
			close(done)
		}()

		require.Eventually(t, func() bool { return broker.ClientCount(7) == 1 }, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler did not return after client disconnect")
		}

		assert.Equal(t, 0, broker.ClientCount(7))
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
		assert.Contains(t, rec.Body.String(), "event: connected\n")
		assert.Contains(t, rec.Body.String(), `"userId":7`)
	})

	t.Run("returns when broker closes", func(t *testing.T) {
		broker := sse.NewBroker(nil)
		handler := NewEventsHandler(broker)

		req := httptest.NewRequest(http.MethodGet, "/api/sessions/events", nil)
		req = req.WithContext(middleware.WithPrincipal(req.Context(), &model.Principal{UserID: 8}))
		rec := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			handler.ServeHTTP(rec, req)
			close(done)
		}()

		require.Eventually(t, func() bool { return broker.ClientCount(8) == 1 }, time.Second, 5*time.Millisecond)
		broker.Close()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler did not return after broker close")
		}
	})
}

func TestEventsHandler_sendRawEvent(t *testing.T) {
	handler := &EventsHandler{}
	rec := httptest.NewRecorder()

	event := sse.Event{
		Type: sse.EventSummaryReady,
		Data: json.RawMessage(`{"sessionNumber":1,"wellnessScore":62}`),
	}

	err := handler.sendRawEvent(rec, rec, event)

	assert.NoError(t, err)
	assert.Equal(t, "event: summary_ready\ndata: {\"sessionNumber\":1,\"wellnessScore\":62}\n\n", rec.Body.String())
}

func TestSSEEventFormat(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		data      map[string]any
		wantEvent string
	}{
		{"plan ready", sse.EventPlanReady, map[string]any{"sessionCount": 4}, "event: plan_ready\n"},
		{"session completed", sse.EventSessionCompleted, map[string]any{"sessionNumber": 1}, "event: session_completed\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := &EventsHandler{}
			rec := httptest.NewRecorder()

			err := handler.sendEvent(rec, rec, tc.eventType, tc.data)

			assert.NoError(t, err)
			assert.Contains(t, rec.Body.String(), tc.wantEvent)
			assert.Contains(t, rec.Body.String(), "data: {")
		})
	}
}
