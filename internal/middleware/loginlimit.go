package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aithera/therapy-server-go/internal/audit"
	apperrors "github.com/aithera/therapy-server-go/internal/errors"
	"github.com/aithera/therapy-server-go/internal/httputil"
)

const loginVisitorTTL = 5 * time.Minute

type loginVisitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginRateLimiter is a per-IP token bucket: burst attempts at once, refilled
// at burst per minute.
type LoginRateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*loginVisitor
	every       rate.Limit
	burst       int
	lastCleanup time.Time
}

func NewLoginRateLimiter(perMinute int) *LoginRateLimiter {
	if perMinute <= 0 {
		perMinute = 5
	}
	return &LoginRateLimiter{
		visitors:    make(map[string]*loginVisitor),
		every:       rate.Every(time.Minute / time.Duration(perMinute)),
		burst:       perMinute,
		lastCleanup: time.Now(),
	}
}

func (l *LoginRateLimiter) cleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < loginVisitorTTL {
		return
	}
	l.lastCleanup = now

	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > loginVisitorTTL {
			delete(l.visitors, ip)
		}
	}
}

func (l *LoginRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.cleanup(now)

	v, ok := l.visitors[ip]
	if !ok {
		v = &loginVisitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *LoginRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(audit.ClientIP(r)) {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]any{"scope": "login"},
			})
			w.Header().Set("Retry-After", "60")
			httputil.WriteError(w, apperrors.New(apperrors.ErrCodeRateLimitExceeded, "Too many login attempts. Please try again later."))
			return
		}

		next.ServeHTTP(w, r)
	})
}
