package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/solvex/internal/config"
	"github.com/stemsi/solvex/internal/database"
	"github.com/stemsi/solvex/internal/handler"
	"github.com/stemsi/solvex/internal/logger"
	"github.com/stemsi/solvex/internal/middleware"
	"github.com/stemsi/solvex/internal/repository"
	"github.com/stemsi/solvex/internal/router"
	"github.com/stemsi/solvex/internal/service"
	"github.com/stemsi/solvex/internal/store"
	"github.com/stemsi/solvex/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", string(cfg.StoreBackend)).
		Str("exam_api", cfg.ExamAPIURL).
		Msg("Starting Solvex session host")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Session Store ────────────────────────────────────────────
	backend, err := database.OpenStoreBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer backend.Close()
	sessionStore := store.New(backend.Backend, log)

	// ─── Initialize Repositories ───────────────────────────────────────
	examClient := repository.NewClient(cfg.ExamAPIURL, cfg.ExamAPITimeout)
	examRepo := repository.NewExamRepository(examClient)
	submissionRepo := repository.NewSubmissionRepository(examClient)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	attemptService := service.NewAttemptService(examRepo, submissionRepo, sessionStore, cfg.SubmitTimeout, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	wsHandler := handler.NewWSHandler(attemptService, cfg.TickInterval, log, cfg.AllowedOrigins)
	wsHandler.SetKeepAlive(cfg.WSPingInterval, cfg.WSReadWait)
	handlers := &router.Handlers{
		Attempt: handler.NewAttemptHandler(attemptService, log),
		WS:      wsHandler,
		Health:  handler.NewHealthHandler(backend.Checks, log),
	}

	// 20 mounts per minute per student absorbs reloads, not reload loops.
	mountLimiter := middleware.NewRateLimiter(20, time.Minute)
	go mountLimiter.Run(ctx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, mountLimiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Hijacked streams are not covered by Shutdown. Close them so clients
	// reconnect elsewhere, then let in-flight submissions complete.
	closed := wsHandler.Shutdown()
	log.Info().Int("streams", closed).Msg("Exam streams closed")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.SubmitTimeout+time.Second)
	defer drainCancel()
	if !wsHandler.Wait(drainCtx) {
		log.Warn().Msg("Exam streams still running at exit; pending submissions resume on reconnect")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
