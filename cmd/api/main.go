package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"sceneflow/internal/frames"
	"sceneflow/internal/http/handlers"
	"sceneflow/internal/http/httpapi"
	"sceneflow/internal/infra"
	"sceneflow/internal/orchestrator"
	"sceneflow/internal/providers/genai"
	"sceneflow/internal/providers/image"
	"sceneflow/internal/providers/video"
	"sceneflow/internal/queue"
	"sceneflow/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storagePath, err := filepath.Abs(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("resolve storage path")
	}
	store, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("init storage")
	}

	client, err := genai.NewClient(genai.Options{
		APIKey:       cfg.GeminiAPIKey,
		BaseURL:      cfg.GeminiBaseURL,
		Logger:       &logger,
		PollInterval: cfg.VideoPollInterval,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init gemini client")
	}

	q := queue.New()
	orch := orchestrator.New(q, video.NewGeminiGenerator(client), frames.NewFFmpegExtractor(), store, logger)

	app := handlers.NewApp(ctx, q, orch, image.NewGeminiEditor(client), store, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		DefaultLocale:  cfg.DefaultLocale,
		GenerateLimit:  cfg.GenerateLimit,
	})
	server := infra.NewHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}
