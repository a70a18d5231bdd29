package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aithera/therapy-server-go/internal/ai"
	"github.com/aithera/therapy-server-go/internal/auth"
	"github.com/aithera/therapy-server-go/internal/config"
	"github.com/aithera/therapy-server-go/internal/database"
	"github.com/aithera/therapy-server-go/internal/handler"
	"github.com/aithera/therapy-server-go/internal/httputil"
	"github.com/aithera/therapy-server-go/internal/jobs"
	"github.com/aithera/therapy-server-go/internal/middleware"
	"github.com/aithera/therapy-server-go/internal/redis"
	"github.com/aithera/therapy-server-go/internal/repository"
	"github.com/aithera/therapy-server-go/internal/service"
	"github.com/aithera/therapy-server-go/internal/sse"
	"github.com/aithera/therapy-server-go/internal/util"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(cfg.IsProduction()); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	gemini, err := ai.NewGeminiGenerator(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, cfg.AITimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create ai client")
	}
	generator := ai.Instrument(gemini)

	var cipher *util.FieldCipher
	if cfg.EncryptionKey != "" {
		cipher, err = util.NewFieldCipher(cfg.EncryptionKey)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid encryption key")
		}
	} else {
		log.Warn().Msg("ENCRYPTION_KEY not set, reflections are stored in plaintext")
	}

	userRepo := repository.NewUserRepository(db.DB)
	refreshRepo := repository.NewRefreshTokenRepository(db.DB)
	profileRepo := repository.NewProfileRepository(db.DB)
	gad7Repo := repository.NewGAD7Repository(db.DB)
	sessionRepo := repository.NewTherapySessionRepository(db.DB)
	messageRepo := repository.NewTherapyMessageRepository(db.DB)

	broker := sse.NewBroker(redisClient)

	queue := jobs.NewRedisQueue(redisClient.Client)
	enqueuer := jobs.NewEnqueuer(queue)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := service.NewAuthService(userRepo, refreshRepo, tokens)
	userService := service.NewUserService(userRepo)
	profileService := service.NewProfileService(profileRepo)
	planner := service.NewPlanner(generator, cfg.MaxSessionCount, cfg.PlannerMaxAttempts)
	assessmentService := service.NewAssessmentService(
		gad7Repo, profileRepo, planner, enqueuer, cipher, cfg.ReflectionMinLen,
	)
	therapyService := service.NewTherapyService(
		db, sessionRepo, messageRepo, gad7Repo, generator, enqueuer, broker,
		service.TherapyConfig{
			TurnLimit:        cfg.ChatTurnLimit,
			MessageMinLength: cfg.MessageMinLength,
			MessageMaxLength: cfg.MessageMaxLength,
		},
	)
	summarizer := service.NewSummarizer(sessionRepo, messageRepo, generator, broker)

	worker := jobs.NewWorker(queue, jobs.WorkerOptions{
		Concurrency:  cfg.JobWorkers,
		MaxAttempts:  cfg.JobMaxAttempts,
		PollTimeout:  config.QueuePollTimeout,
		TaskTimeout:  config.TaskTimeout,
		RetryBackoff: time.Second,
	})
	worker.Handle(jobs.KindMaterializePlan, func(ctx context.Context, task *jobs.Task) error {
		payload, err := jobs.Decode[jobs.MaterializePlanPayload](task)
		if err != nil {
			return err
		}
		return therapyService.MaterializePlan(ctx, payload.GAD7ResultID)
	})
	worker.Handle(jobs.KindSummarizeSession, func(ctx context.Context, task *jobs.Task) error {
		payload, err := jobs.Decode[jobs.SummarizeSessionPayload](task)
		if err != nil {
			return err
		}
		return summarizer.SummarizeSession(ctx, payload.SessionID)
	})

	authMiddleware := middleware.NewAuthMiddleware(authService)
	aiRateLimit := middleware.NewUserRateLimitMiddleware(
		middleware.NewRedisRateLimiter(redisClient.Client), cfg.AIRateLimitPerMin, "ai",
	)
	signupRateLimit := middleware.NewIPRateLimitMiddleware(
		service.NewRateLimiter(redisClient.Client), config.SignupLimitPerHour, time.Hour, "signup",
	)
	loginRateLimit := middleware.NewLoginRateLimiter(config.LoginAttemptsPerMinute)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(config.MaxRequestBodyBytes)
	aiBodyLimit := middleware.NewBodyLimitMiddleware(config.AIRequestBodyBytes)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(cfg.IsProduction())
	corsMiddleware := middleware.NewCORSMiddleware(cfg.CORSAllowedOrigins)

	authHandler := handler.NewAuthHandler(authService, cfg.IsProduction())
	userHandler := handler.NewUserHandler(userService, authHandler)
	profileHandler := handler.NewProfileHandler(profileService)
	assessmentHandler := handler.NewAssessmentHandler(assessmentService)
	sessionHandler := handler.NewSessionHandler(therapyService, handler.NewEventsHandler(broker))
	aiHandler := handler.NewAIHandler(therapyService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", healthHandler(db, redisClient))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes(authMiddleware.Handler, signupRateLimit.Handler, loginRateLimit.Handler))

		// Event streams outlive the request timeout, so they are mounted
		// before it.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)
			r.Mount("/sessions", sessionHandler.Routes())
		})

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
			r.Use(authMiddleware.Handler)
			r.Mount("/users", userHandler.Routes())
			r.Mount("/profile", profileHandler.Routes())
			r.Mount("/gad7", assessmentHandler.Routes())
			r.With(aiRateLimit.Handler, aiBodyLimit.Handler).Mount("/ai", aiHandler.Routes())
		})
	})

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	worker.Start(workerCtx)

	cleanupJob := jobs.NewCleanupJob(refreshRepo, gad7Repo, enqueuer, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("env", cfg.AppEnv).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	// Close streams first; Shutdown waits for active handlers to return.
	broker.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	if err := worker.Stop(); err != nil {
		log.Error().Err(err).Msg("worker stopped with error")
	}

	log.Info().Msg("server stopped")
}

func healthHandler(db *database.DB, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}
		status := http.StatusOK

		if err := db.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("health check: database unreachable")
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("health check: redis unreachable")
			checks["redis"] = "unavailable"
			status = http.StatusServiceUnavailable
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status":    state,
			"checks":    checks,
			"timestamp": time.Now().UnixMilli(),
		})
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
