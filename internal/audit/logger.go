package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventSignup          EventType = "signup"
	EventLoginSuccess    EventType = "login_success"
	EventLoginFailure    EventType = "login_failure"
	EventLogout          EventType = "logout"
	EventRefreshFailure  EventType = "refresh_failure"
	EventUserCreate      EventType = "user_create"
	EventUserUpdate      EventType = "user_update"
	EventUserDelete      EventType = "user_delete"
	EventRateLimitExceed EventType = "rate_limit_exceeded"
	EventAuthFailure     EventType = "auth_failure"
)

type Event struct {
	Type EventType
	// UserID is the subject of the event; zero when unknown.
	UserID    int64
	ActorID   int64
	IP        string
	UserAgent string
	Details   map[string]any
}

// Log writes a security audit line. It uses the request-scoped logger from
// ctx when one is attached, so audit lines share the request id.
func Log(ctx context.Context, event Event) {
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &log.Logger
	}

	e := logger.Info().
		Str("audit", "security").
		Str("eventType", string(event.Type)).
		Time("timestamp", time.Now())

	if event.UserID != 0 {
		e = e.Int64("userId", event.UserID)
	}
	if event.ActorID != 0 {
		e = e.Int64("actorId", event.ActorID)
	}
	if event.IP != "" {
		e = e.Str("ip", event.IP)
	}
	if event.UserAgent != "" {
		e = e.Str("userAgent", event.UserAgent)
	}
	if len(event.Details) > 0 {
		e = e.Fields(event.Details)
	}

	e.Msg("security audit event")
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = ClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote address without port.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
