package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nflpicks/tracker/internal/api"
	"nflpicks/tracker/internal/bootstrap"
	"nflpicks/tracker/internal/cloudsync"
	"nflpicks/tracker/internal/config"
	"nflpicks/tracker/internal/metrics"
	"nflpicks/tracker/internal/predictions"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.MustLoad()
	bootstrap.SetupLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Str("env", cfg.AppEnv).
		Str("storage", cfg.StorageBackend).
		Str("registry", cfg.RegistryBackend).
		Msg("Starting NFL prediction tracker API")

	// Create context that listens for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	kv, closeKV, err := bootstrap.OpenKV(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local storage")
	}
	defer closeKV()

	reg, err := bootstrap.OpenRegistry(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open schedule registry")
	}
	defer reg.Close()

	notifier := cloudsync.NewNotifier(cloudsync.DefaultFeedSize)
	store, err := predictions.NewStore(ctx, kv, predictions.WithValidationHook(cfg.DebounceDelay, func(problems []error) {
		for _, p := range problems {
			notifier.Warn("validate", p.Error())
		}
	}))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load predictions")
	}
	defer store.Close()
	metrics.UpdatePredictionStats(len(store.GetAll()), len(store.TeamRecords()))

	coord, err := cloudsync.NewCoordinator(ctx, kv, store, cloudsync.Options{
		Factory: func(kind cloudsync.ProviderKind) (cloudsync.Provider, error) {
			return cloudsync.NewProvider(kind, cloudsync.ProviderOptions{
				GitHubAPIURL: cfg.GitHubAPIURL,
				Timeout:      cfg.SyncTimeout,
			})
		},
		Notifier: notifier,
		Timeout:  cfg.SyncTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create cloud sync coordinator")
	}

	connectCloud(ctx, cfg, coord)
	go resyncLoop(ctx, coord, cfg.ResyncInterval)

	if cfg.EnableMetrics {
		go bootstrap.StartMetricsServer(ctx, cfg.MetricsPort, reg.Health)
	}

	srv := api.NewServer(api.Deps{
		Store:          store,
		Coordinator:    coord,
		Registry:       reg,
		AllowedOrigins: cfg.AllowedOrigins(),
	})
	go func() {
		if err := srv.Start(cfg.HTTPPort); err != nil {
			log.Error().Err(err).Msg("API server stopped")
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.SyncTimeout+5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API server shutdown incomplete")
	}
	coord.Shutdown(shutdownCtx)

	log.Info().Msg("Tracker shutdown complete")
}

// connectCloud restores a previous session's sync configuration, or
// configures the provider from the environment on first run.
func connectCloud(ctx context.Context, cfg *config.Config, coord *cloudsync.Coordinator) {
	restored, err := coord.Restore(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to restore cloud sync, continuing offline")
		return
	}
	if restored {
		res, err := coord.Resync(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Startup resync failed")
			return
		}
		log.Info().Str("action", string(res.Action)).Msg("Cloud sync restored")
		return
	}

	if cfg.GitHubToken == "" {
		log.Info().Msg("Cloud sync not configured")
		return
	}

	ident, err := coord.Configure(ctx, cfg.ProviderKind(), cloudsync.Credentials{
		Token:        cfg.GitHubToken,
		RemoteHandle: cfg.GistID,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Cloud sync configuration failed, continuing offline")
		return
	}
	if err := coord.SetAutoBackup(ctx, cfg.AutoBackupInterval()); err != nil {
		log.Warn().Err(err).Msg("Failed to set automatic backups")
	}

	res, err := coord.Reconcile(ctx, "")
	if err != nil {
		log.Warn().Err(err).Msg("Initial reconcile failed")
		return
	}
	log.Info().
		Str("account", ident.Account).
		Str("remote", ident.RemoteHandle).
		Str("action", string(res.Action)).
		Msg("Cloud sync configured")
}

// resyncLoop pulls newer remote backups while a provider is connected.
func resyncLoop(ctx context.Context, coord *cloudsync.Coordinator, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if coord.Status().State != cloudsync.StateConnected {
				continue
			}
			if _, err := coord.Resync(ctx); err != nil {
				log.Warn().Err(err).Msg("Periodic resync failed")
			}
		case <-ctx.Done():
			return
		}
	}
}
