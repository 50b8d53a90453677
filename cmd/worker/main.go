package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nflpicks/tracker/internal/bootstrap"
	"nflpicks/tracker/internal/client"
	"nflpicks/tracker/internal/config"
	"nflpicks/tracker/internal/ingestion"
	"nflpicks/tracker/internal/metrics"
	"nflpicks/tracker/internal/scheduler"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.MustLoad()
	bootstrap.SetupLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().Msg("Starting NFL score ingestion worker")
	log.Info().
		Str("env", cfg.AppEnv).
		Str("registry", cfg.RegistryBackend).
		Int("season", cfg.Season).
		Int("season_type", cfg.SeasonType).
		Msg("Configuration loaded")

	// Create context that listens for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	espn := client.NewESPNClient(cfg.ESPNBaseURL, cfg.ESPNTimeout)
	log.Info().Str("base_url", cfg.ESPNBaseURL).Msg("ESPN client initialized")

	reg, err := bootstrap.OpenRegistry(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open schedule registry")
	}
	defer reg.Close()

	if cfg.EnableMetrics {
		go bootstrap.StartMetricsServer(ctx, cfg.MetricsPort, reg.Health)
	}

	updater := ingestion.NewUpdater(espn, reg, cfg.Season, cfg.SeasonType)
	sched := scheduler.NewScheduler(updater, cfg.ScoreRefreshCron, cfg.LivePollInterval)

	if cfg.EnableScheduler {
		log.Info().Msg("Starting scheduler...")
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	}

	// Catch up on every week that kicked off without a final result
	if cfg.InitialSyncEnabled {
		log.Info().Msg("Running initial score refresh...")
		if err := sched.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("Initial refresh failed, continuing anyway...")
		} else {
			log.Info().Bool("live_games", sched.LiveGamesSeen()).Msg("Initial refresh completed")
		}
	}

	// Update system uptime metric
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SystemUptime.Set(time.Since(startTime).Seconds())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Keep running until context is cancelled
	<-ctx.Done()

	log.Info().Msg("Shutting down scheduler...")
	sched.Stop()

	log.Info().Msg("Worker shutdown complete")
}
