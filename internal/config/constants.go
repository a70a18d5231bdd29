package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 120 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const (
	CleanupJobInterval = 5 * time.Minute
	OrphanPlanGrace    = time.Minute
	QueuePollTimeout   = 2 * time.Second
	TaskTimeout        = 2 * time.Minute
)

// Rate limiting
const (
	DefaultRateLimitPerMin = 60
	SignupLimitPerHour     = 10
	LoginAttemptsPerMinute = 5
)

// Refresh token cookie
const (
	RefreshCookieName = "refreshToken"
	RefreshCookiePath = "/api/auth"
)

// Admin user listing
const (
	UserPageDefault = 50
	UserPageMax     = 100
)

// Request body caps; AI routes only ever carry one chat message.
const (
	MaxRequestBodyBytes = 1 << 20
	AIRequestBodyBytes  = 16 << 10
)
