package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/meetingflow/backend/internal/config"
	"github.com/meetingflow/backend/internal/handler"
	"github.com/meetingflow/backend/internal/service/ai"
	"github.com/meetingflow/backend/internal/service/transcription"
	"github.com/meetingflow/backend/internal/storage"
	"github.com/meetingflow/backend/internal/ws"
	"github.com/meetingflow/backend/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file if present, otherwise rely on the system environment
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", "development")
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.Server.LogLevel, cfg.Server.Environment)

	store := storage.NewMemStorage()

	var textService transcription.TextService
	var chatStreamer ws.ChatStreamer
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize AI service, continuing without AI functionality")
		} else {
			logger.Info().Str("model", cfg.AI.Model).Msg("AI service initialized")
			textService = aiService
			chatStreamer = aiService
		}
	} else {
		logger.Warn().Msg("Ark credentials not configured, transcription will echo raw text")
	}

	transcriptionService := transcription.NewService(store, textService, logger)

	hub := ws.NewHub(cfg.Realtime.PingInterval, logger)
	wsHandler := ws.NewHandler(hub, transcriptionService, chatStreamer, logger)

	router := handler.NewRouter(store, hub, transcriptionService, wsHandler)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		hub.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("server stopped")
}
