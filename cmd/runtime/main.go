package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/wonny/quantengine/internal/app"
	"github.com/wonny/quantengine/internal/pkg/config"
	"github.com/wonny/quantengine/internal/pkg/logger"
)

const (
	serviceName    = "quantengine-runtime"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	if err := logger.Init(logger.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FileEnabled:    cfg.Logging.FileEnabled,
		FilePath:       cfg.Logging.FilePath,
		RotationSize:   cfg.Logging.RotationSize,
		RetentionDays:  cfg.Logging.RetentionDays,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("version", serviceVersion).
		Msg("🚀 Starting Quant Decision Engine Runtime...")

	// Cancelled on SIGINT / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runtime, err := app.New(ctx, cfg, serviceVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize runtime")
	}

	log.Info().Msg("🎯 All runtime services are running")
	log.Info().Msg("📊 Monitoring:")
	log.Info().Msg("  - Fusion Engine: strategy signals → fused decisions")
	log.Info().Msg("  - Position Manager: stop-loss / take-profit / daily loss limit")
	log.Info().Msg("  - Risk Scheduler: portfolio VaR, drawdown, stress tests")

	if err := runtime.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Runtime stopped with error")
		os.Exit(1)
	}

	log.Info().Msg("👋 Quant Decision Engine Runtime stopped")
}
