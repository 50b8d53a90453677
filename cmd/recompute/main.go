// Command recompute scores stored predictions against the current results
// and writes an accuracy report. It runs once and exits.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"nflpicks/tracker/internal/accuracy"
	"nflpicks/tracker/internal/bootstrap"
	"nflpicks/tracker/internal/config"
	"nflpicks/tracker/internal/metrics"
	"nflpicks/tracker/internal/predictions"
	"nflpicks/tracker/internal/registry"

	"go.uber.org/zap"
)

// Recompute builds accuracy reports from the prediction store and registry
type Recompute struct {
	store      *predictions.Store
	source     registry.Source
	logger     *zap.Logger
	reportPath string
	now        func() time.Time
}

// NewRecompute creates a new recompute job
func NewRecompute(store *predictions.Store, source registry.Source, logger *zap.Logger, reportPath string) *Recompute {
	return &Recompute{
		store:      store,
		source:     source,
		logger:     logger,
		reportPath: reportPath,
		now:        time.Now,
	}
}

// Run computes the report and writes it to the report path
func (r *Recompute) Run(ctx context.Context) (accuracy.Report, error) {
	reg, err := r.source.Load(ctx)
	if err != nil {
		return accuracy.Report{}, fmt.Errorf("loading registry: %w", err)
	}

	report := accuracy.Build(reg, r.store.GetAll(), r.store.TeamRecords(), r.now())
	metrics.UpdateAccuracy(report.Games.Percent, report.Records.Percent)

	for _, w := range report.Weeks {
		r.logger.Debug("Week accuracy",
			zap.Int("week", w.Week),
			zap.Int("correct", w.Correct),
			zap.Int("total", w.Total),
			zap.Int("percent", w.Percent))
	}

	if err := writeReport(r.reportPath, report); err != nil {
		return report, err
	}

	r.logger.Info("Accuracy recomputed",
		zap.Int("season", report.Season),
		zap.Int("games_correct", report.Games.Correct),
		zap.Int("games_total", report.Games.Total),
		zap.Int("games_percent", report.Games.Percent),
		zap.Int("records_correct", report.Records.Correct),
		zap.Int("records_total", report.Records.Total),
		zap.Int("records_percent", report.Records.Percent),
		zap.String("report", r.reportPath))
	return report, nil
}

// writeReport replaces path with the encoded report (tmp file + rename)
func writeReport(path string, report accuracy.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing report: %w", err)
	}
	return nil
}

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	bootstrap.SetupLogger(cfg.AppEnv, cfg.LogLevel)

	logger.Info("Starting accuracy recompute",
		zap.String("storage", cfg.StorageBackend),
		zap.String("registry", cfg.RegistryBackend))

	ctx := context.Background()

	kv, closeKV, err := bootstrap.OpenKV(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open local storage", zap.Error(err))
	}
	defer closeKV()

	reg, err := bootstrap.OpenRegistry(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open schedule registry", zap.Error(err))
	}
	defer reg.Close()

	store, err := predictions.NewStore(ctx, kv)
	if err != nil {
		logger.Fatal("Failed to load predictions", zap.Error(err))
	}
	defer store.Close()

	if _, err := NewRecompute(store, reg, logger, cfg.ReportPath).Run(ctx); err != nil {
		logger.Fatal("Recompute failed", zap.Error(err))
	}
}
