// Package main is the entry point for the geo challenge API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"geo-challenge/internal/api"
	"geo-challenge/internal/config"
	"geo-challenge/internal/geofence"
	"geo-challenge/internal/handler"
	"geo-challenge/internal/notify"
	"geo-challenge/internal/photo"
	"geo-challenge/internal/pkg/db"
	"geo-challenge/internal/pkg/lock"
	"geo-challenge/internal/repository"
	"geo-challenge/internal/scoring"
	"geo-challenge/internal/service"
)

// announcer is a solve announcer that can be drained on shutdown.
type announcer interface {
	service.Announcer
	Close(timeout time.Duration)
}

// challengeStore and attemptStore are what both storage drivers provide.
type challengeStore interface {
	service.ChallengeStore
	service.CreatorCounter
}

type attemptStore interface {
	service.AttemptStore
	service.SolveLog
	service.GuessCounter
}

func main() {
	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.Log)
	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize repositories
	var (
		challengeRepo challengeStore
		attemptRepo   attemptStore
		pinger        handler.Pinger
	)
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		dbPool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer dbPool.Close()

		if err := db.Migrate(ctx, dbPool.Pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}

		challengeRepo = repository.NewChallengeRepository(dbPool.Pool)
		attemptRepo = repository.NewAttemptRepository(dbPool.Pool)
		pinger = dbPool
	default:
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		memChallenges := repository.NewMemoryChallengeRepository()
		challengeRepo = memChallenges
		attemptRepo = repository.NewMemoryAttemptRepository(memChallenges)
	}

	// Initialize photo storage
	var (
		photos   service.PhotoStore
		photoDir string
	)
	switch cfg.Photo.Driver {
	case config.PhotoCloudinary:
		store, err := photo.NewCloudinaryStore(cfg.Photo.Cloudinary)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize photo storage")
		}
		photos = store
	default:
		store := photo.NewFilesystemStore(cfg.Photo.Filesystem.Dir, cfg.Photo.Filesystem.BaseURL)
		photos = store
		photoDir = store.Dir()
	}
	validator := photo.NewValidator(cfg.Photo.MaxBytes, cfg.Photo.AllowedTypes)

	// Initialize solve announcements
	var solves announcer = notify.Noop{}
	if cfg.Notify.Telegram.Token != "" {
		tg, err := notify.NewTelegramAnnouncer(cfg.Notify.Telegram)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Telegram announcer")
		}
		solves = tg
		log.Info().Int64("chat_id", cfg.Notify.Telegram.ChatID).Msg("Solve announcements enabled")
	}

	var scorer service.Scorer
	if cfg.Scoring.Endpoint != "" {
		scorer = scoring.NewClient(cfg.Scoring.Endpoint, cfg.Scoring.Timeout)
	} else {
		log.Warn().Msg("No similarity scorer configured, photo-only guesses will be refused")
	}

	evaluator := geofence.NewEvaluator(cfg.Geofence.ToleranceMeters)
	log.Info().
		Float64("tolerance_m", evaluator.Tolerance()).
		Dur("lock_timeout", cfg.Ledger.LockTimeout).
		Msg("Guess evaluation configured")

	// Initialize services
	challengeService := service.NewChallengeService(challengeRepo, photos, validator)
	rankingService := service.NewRankingService(challengeRepo, attemptRepo)
	statsService := service.NewStatsService(challengeRepo, attemptRepo)
	ledger := service.NewLedger(attemptRepo, lock.NewKeyLock(), cfg.Ledger.LockTimeout)
	guessService := service.NewGuessService(service.GuessDependencies{
		Challenges: challengeRepo,
		Ledger:     ledger,
		Evaluator:  evaluator,
		Scorer:     scorer,
		Threshold:  cfg.Scoring.Threshold,
		Photos:     photos,
		Validator:  validator,
		Announcer:  solves,
	})

	limiter := api.NewRateLimiter(cfg.RateLimit.GuessesPerSecond, cfg.RateLimit.Burst)
	stopCleanup := make(chan struct{})
	go limiter.Run(stopCleanup)

	router := api.NewRouter(api.Dependencies{
		Challenges:     handler.NewChallengeHandler(challengeService, rankingService, cfg.Photo.MaxBytes, cfg.Leaderboard.DefaultLimit),
		Guesses:        handler.NewGuessHandler(challengeService, guessService, ledger, cfg.Photo.MaxBytes),
		Users:          handler.NewUserHandler(statsService),
		Health:         handler.Health(pinger),
		Limiter:        limiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		PhotoDir:       photoDir,
		PhotoPrefix:    cfg.Photo.Filesystem.PathPrefix(),
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("storage", cfg.Storage.Driver).Msg("Server is starting...")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	close(stopCleanup)
	solves.Close(5 * time.Second)
	log.Info().Msg("Server stopped gracefully")
}

func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
