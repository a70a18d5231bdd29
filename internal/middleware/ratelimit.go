package middleware

import (
	"sync"
	"time"
)

const (
	localMaxKeys   = 10000
	localWindow    = time.Minute
	localSweepEach = time.Minute
)

type windowCounter struct {
	start time.Time
	count int
}

// MemoryRateLimiter keeps one fixed window per key inside this process. It
// backs the Redis limiter when Redis is unreachable, so limits are
// per-instance while it is in use.
type MemoryRateLimiter struct {
	mu        sync.Mutex
	windows   map[string]*windowCounter
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		windows:   make(map[string]*windowCounter),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// sweep drops closed windows. If the map is still over capacity every
// window is dropped; users regain a fresh budget, which is acceptable for a
// fallback.
func (rl *MemoryRateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < localSweepEach && len(rl.windows) < localMaxKeys {
		return
	}
	rl.lastSweep = now

	for key, win := range rl.windows {
		if now.Sub(win.start) >= localWindow {
			delete(rl.windows, key)
		}
	}
	if len(rl.windows) >= localMaxKeys {
		clear(rl.windows)
	}
}

func (rl *MemoryRateLimiter) Check(key string, limit int) (allowed bool, remaining int, resetAt int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	win, ok := rl.windows[key]
	if !ok || now.Sub(win.start) >= localWindow {
		win = &windowCounter{start: now}
		rl.windows[key] = win
	}
	resetAt = win.start.Add(localWindow).Unix()

	if win.count >= limit {
		return false, 0, resetAt
	}
	win.count++
	return true, limit - win.count, resetAt
}
