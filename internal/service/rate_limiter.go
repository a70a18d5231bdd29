package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// fixedWindowScript counts hits in a window that starts with the first hit
// and returns {count, milliseconds until the window closes}.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
    ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RateLimiter is a Redis fixed-window counter shared by all instances. It
// guards signups, so a Redis failure denies the request.
type RateLimiter struct {
	client redis.Scripter
	now    func() time.Time
}

func NewRateLimiter(client redis.Scripter) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// CheckLimit records one hit for key and reports whether it fits in limit
// per window, plus when the window frees up.
func (rl *RateLimiter) CheckLimit(
	ctx context.Context,
	key string,
	limit int,
	window time.Duration,
) (allowed bool, resetAt time.Time) {
	result, err := fixedWindowScript.Run(
		ctx,
		rl.client,
		[]string{fmt.Sprintf("ratelimit:%s", key)},
		window.Milliseconds(),
	).Int64Slice()
	if err != nil || len(result) != 2 {
		log.Warn().Err(err).Str("key", key).Msg("rate limit check failed, denying request")
		return false, rl.now().Add(window)
	}

	resetAt = rl.now().Add(time.Duration(result[1]) * time.Millisecond)
	return result[0] <= int64(limit), resetAt
}
