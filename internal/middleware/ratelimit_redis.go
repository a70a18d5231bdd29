package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/aithera/therapy-server-go/internal/audit"
	apperrors "github.com/aithera/therapy-server-go/internal/errors"
	"github.com/aithera/therapy-server-go/internal/httputil"
)

const (
	rateLimitKeyPrefix = "ratelimit:user:"
	rateLimitWindow    = 60 * time.Second
)

var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local windowStart = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = 0
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    else
        resetAt = now + window
    end
    return {0, 0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)

local remaining = limit - count - 1
local resetAt = now + window

return {1, remaining, resetAt}
`)

// RedisRateLimiter shares per-user windows across instances. When Redis
// fails it falls back to a local window instead of letting traffic through
// unmetered.
type RedisRateLimiter struct {
	client   redis.Scripter
	fallback *MemoryRateLimiter
}

func NewRedisRateLimiter(client redis.Scripter) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:   client,
		fallback: NewMemoryRateLimiter(),
	}
}

func (rl *RedisRateLimiter) Check(ctx context.Context, key string, limit int) (allowed bool, remaining int, resetAt int64) {
	if rl.client == nil {
		return rl.fallback.Check(key, limit)
	}

	now := time.Now().Unix()
	result, err := rateLimitScript.Run(ctx, rl.client, []string{rateLimitKeyPrefix + key}, now, int64(rateLimitWindow.Seconds()), limit).Int64Slice()
	if err != nil || len(result) != 3 {
		log.Warn().Err(err).Str("key", key).Msg("redis rate limit check failed, using local window")
		return rl.fallback.Check(key, limit)
	}

	return result[0] == 1, int(result[1]), result[2]
}

// UserRateLimitMiddleware limits each authenticated user to limit requests
// per minute. It must run after AuthMiddleware.
type UserRateLimitMiddleware struct {
	limiter *RedisRateLimiter
	limit   int
	scope   string
}

func NewUserRateLimitMiddleware(limiter *RedisRateLimiter, limit int, scope string) *UserRateLimitMiddleware {
	return &UserRateLimitMiddleware{
		limiter: limiter,
		limit:   limit,
		scope:   scope,
	}
}

func (m *UserRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := PrincipalFrom(r.Context())
		if principal == nil || m.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		key := m.scope + ":" + strconv.FormatInt(principal.UserID, 10)
		allowed, remaining, resetAt := m.limiter.Check(r.Context(), key, m.limit)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if !allowed {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				UserID:  principal.UserID,
				Details: map[string]any{"scope": m.scope},
			})
			w.Header().Set("Retry-After", "60")
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
