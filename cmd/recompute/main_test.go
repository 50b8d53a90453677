package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nflpicks/tracker/internal/accuracy"
	"nflpicks/tracker/internal/models"
	"nflpicks/tracker/internal/predictions"
	"nflpicks/tracker/internal/registry"
	"nflpicks/tracker/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecompute_WritesReport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	source := registry.NewFileSource(filepath.Join(dir, "schedule.json"))
	reg, err := source.Load(ctx)
	require.NoError(t, err)
	g := reg.GamesByWeek(1)[0]
	_, err = reg.ApplyResult(models.GameResult{
		Week: g.Week, HomeTeam: g.HomeTeam, AwayTeam: g.AwayTeam,
		HomeScore: models.IntPtr(21), AwayScore: models.IntPtr(14), Completed: true,
	})
	require.NoError(t, err)
	reg.RecomputeRecords()
	require.NoError(t, source.Save(ctx, reg))

	store, err := predictions.NewStore(ctx, storage.NewMemoryStore())
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, g.ID, g.AwayTeam))

	path := filepath.Join(dir, "reports", "accuracy.json")
	job := NewRecompute(store, source, zap.NewNop(), path)
	job.now = func() time.Time { return time.Date(2025, 9, 10, 8, 0, 0, 0, time.UTC) }

	report, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Games.Total)
	assert.Equal(t, 0, report.Games.Correct)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk accuracy.Report
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, report.Games, onDisk.Games)
	assert.Equal(t, job.now(), onDisk.GeneratedAt)
}
