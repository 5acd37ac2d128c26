package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/infra"
	"server/internal/jobstore"
	"server/internal/storage"
	"server/internal/synthesis"
	"server/internal/worker"
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

	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: redis connection failed")
	}
	defer redisClient.Close()
	store := jobstore.NewRedisStore(redisClient)

	scratch, err := storage.NewScratchStore(cfg.JobImagesDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure scratch storage")
	}
	artifacts, err := storage.NewArtifactStore(cfg.OutputDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure output storage")
	}

	if cfg.FalKey == "" {
		logger.Warn().Msg("worker: FAL_KEY missing, generation requests will be rejected upstream")
	}
	gateway := synthesis.NewFalClient(synthesis.FalOptions{
		APIKey: cfg.FalKey,
		Logger: &logger,
	})

	reaper := worker.NewReaper(store, artifacts, cfg.ImageExpiry, logger)
	go reaper.Run(ctx)

	proc := worker.NewProcessor(store, gateway, scratch, artifacts, cfg.ImageExpiry, cfg.APIBaseURL, logger)
	proc.Run(ctx)

	logger.Info().Msg("worker: stopped")
}
