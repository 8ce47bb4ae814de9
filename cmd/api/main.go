package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"mediaserver/internal/adapter/repo"
	"mediaserver/internal/http/handlers"
	httpapi "mediaserver/internal/http/httpapi"
	"mediaserver/internal/infra"
	"mediaserver/internal/providers/image"
	"mediaserver/internal/providers/video"
	"mediaserver/internal/storage"
	"mediaserver/internal/sweep"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	history := repo.NewHistoryRepository(dbpool)

	store, err := storage.NewFileStore(cfg.StoragePath, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure artifact storage")
	}

	imageClient, err := image.NewClient(image.Options{
		APIKey:  cfg.ImageGenAPIKey,
		BaseURL: cfg.ImageGenBaseURL,
		Model:   cfg.ImageGenModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure image generator")
	}
	videoClient, err := video.NewClient(video.Options{
		APIKey:  cfg.VideoGenAPIKey,
		BaseURL: cfg.VideoGenBaseURL,
		Model:   cfg.VideoGenModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure video generator")
	}

	app := handlers.NewApp(cfg, logger, history, store, imageClient, videoClient)
	router := httpapi.NewRouter(app, allowedOrigins(cfg))
	server := infra.NewHTTPServer(cfg, router)

	// Stale-job sweep runs for the life of the process: jobs whose webhook
	// never arrives must not stay processing forever.
	sweeper := sweep.New(history, logger, cfg.SweepInterval, cfg.JobTTL)
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("sweeper exited")
		}
	}()

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *infra.Config) []string {
	if cfg.PublicBaseURL != "" {
		return []string{cfg.PublicBaseURL}
	}
	return []string{"http://localhost:3000"}
}
