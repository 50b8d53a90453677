// Package bootstrap builds the runtime dependencies shared by the binaries.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"nflpicks/tracker/internal/config"
	"nflpicks/tracker/internal/registry"
	"nflpicks/tracker/internal/repository"
	"nflpicks/tracker/internal/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger configures the global zerolog logger
func SetupLogger(appEnv, logLevel string) {
	// Pretty console logging in development
	if appEnv == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	level := zerolog.InfoLevel
	if logLevel != "" {
		if parsed, err := zerolog.ParseLevel(logLevel); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// OpenKV opens the configured local persistence backend. The returned close
// function is never nil.
func OpenKV(ctx context.Context, cfg *config.Config) (storage.KV, func(), error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		log.Warn().Msg("Using in-memory storage, predictions will not survive a restart")
		return storage.NewMemoryStore(), func() {}, nil
	case config.StorageRedis:
		rs, err := storage.NewRedisStore(ctx, cfg.RedisConfig())
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", cfg.RedisAddr()).Msg("Redis storage connected")
		return rs, func() {
			if err := rs.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Redis storage")
			}
		}, nil
	default:
		fs, err := storage.NewFileStore(cfg.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.StoragePath).Msg("File storage opened")
		return fs, func() {}, nil
	}
}

// Registry couples a schedule source with its health check.
type Registry struct {
	registry.Source
	Health func(ctx context.Context) error
	Close  func()
}

// OpenRegistry opens the configured schedule registry source.
func OpenRegistry(ctx context.Context, cfg *config.Config) (*Registry, error) {
	if cfg.RegistryBackend != config.RegistryPostgres {
		log.Info().Str("path", cfg.SchedulePath).Msg("Using file schedule registry")
		return &Registry{
			Source: registry.NewFileSource(cfg.SchedulePath),
			Health: func(context.Context) error { return nil },
			Close:  func() {},
		}, nil
	}

	db, err := repository.NewDatabase(ctx, cfg.DatabaseConfig())
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Registry{Source: db, Health: db.Health, Close: db.Close}, nil
}

// StartMetricsServer serves /metrics and /health until ctx is cancelled.
func StartMetricsServer(ctx context.Context, port int, health func(ctx context.Context) error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler(health))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", port).Msg("Starting metrics server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}

func healthHandler(health func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := map[string]string{"status": "healthy"}
		code := http.StatusOK
		if health != nil {
			if err := health(r.Context()); err != nil {
				status = map[string]string{"status": "unhealthy", "error": err.Error()}
				code = http.StatusServiceUnavailable
			}
		}
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}
