package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port               int           `env:"PORT" envDefault:"8080"`
	AppEnv             string        `env:"APP_ENV" envDefault:"development"`
	DatabaseURL        string        `env:"DATABASE_URL,required"`
	RedisURL           string        `env:"REDIS_URL,required"`
	JWTSecret          string        `env:"JWT_SECRET,required"`
	JWTRefreshSecret   string        `env:"JWT_REFRESH_SECRET,required"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	GeminiAPIKey       string        `env:"GEMINI_API_KEY,required"`
	GeminiModel        string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	AITimeout          time.Duration `env:"AI_TIMEOUT" envDefault:"60s"`
	ChatTurnLimit      int           `env:"CHAT_TURN_LIMIT" envDefault:"1"`
	MessageMinLength   int           `env:"MESSAGE_MIN_LENGTH" envDefault:"50"`
	MessageMaxLength   int           `env:"MESSAGE_MAX_LENGTH" envDefault:"500"`
	ReflectionMinLen   int           `env:"REFLECTION_MIN_LENGTH" envDefault:"20"`
	MaxSessionCount    int           `env:"MAX_SESSION_COUNT" envDefault:"20"`
	PlannerMaxAttempts int           `env:"PLANNER_MAX_ATTEMPTS" envDefault:"2"`
	JobWorkers         int           `env:"JOB_WORKERS" envDefault:"2"`
	JobMaxAttempts     int           `env:"JOB_MAX_ATTEMPTS" envDefault:"3"`
	AIRateLimitPerMin  int           `env:"AI_RATE_LIMIT_PER_MIN" envDefault:"20"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://127.0.0.1:5173"`
	EncryptionKey      string        `env:"ENCRYPTION_KEY"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) Validate(isProduction bool) error {
	if c.JWTSecret == c.JWTRefreshSecret {
		return fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if c.MessageMinLength < 1 || c.MessageMaxLength < c.MessageMinLength {
		return fmt.Errorf("invalid message length window %d..%d", c.MessageMinLength, c.MessageMaxLength)
	}

	if c.ChatTurnLimit < 1 {
		return fmt.Errorf("CHAT_TURN_LIMIT must be at least 1")
	}

	if c.PlannerMaxAttempts < 1 {
		return fmt.Errorf("PLANNER_MAX_ATTEMPTS must be at least 1")
	}

	if c.MaxSessionCount < 1 {
		return fmt.Errorf("MAX_SESSION_COUNT must be at least 1")
	}

	if c.EncryptionKey != "" {
		key, err := hex.DecodeString(c.EncryptionKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters (generate with: openssl rand -hex 32)")
		}
	}

	if isProduction {
		if err := validateSecret("JWT_SECRET", c.JWTSecret); err != nil {
			return err
		}
		if err := validateSecret("JWT_REFRESH_SECRET", c.JWTRefreshSecret); err != nil {
			return err
		}

		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.EncryptionKey == "" {
			log.Warn().Msg("ENCRYPTION_KEY is empty in production: GAD-7 reflections will not be encrypted at rest")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
