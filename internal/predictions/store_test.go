package predictions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nflpicks/tracker/internal/models"
	"nflpicks/tracker/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingKV fails writes to one key.
type failingKV struct {
	*storage.MemoryStore
	failKey string
}

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	if key == f.failKey {
		return errors.New("disk full")
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func TestStore_SetGetClear(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	s, err := NewStore(ctx, kv)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "w1", "BUF"))
	team, ok := s.Get("w1")
	assert.True(t, ok)
	assert.Equal(t, "BUF", team)

	raw, ok, err := kv.Get(ctx, storage.KeyPredictions)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"w1":"BUF"}`, raw)

	// Changing a prediction overwrites the previous one
	require.NoError(t, s.Set(ctx, "w1", "MIA"))
	team, _ = s.Get("w1")
	assert.Equal(t, "MIA", team)

	require.NoError(t, s.Clear(ctx, "w1"))
	_, ok = s.Get("w1")
	assert.False(t, ok)
	assert.Empty(t, s.GetAll())
}

func TestStore_ReloadsPersistedState(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	s, err := NewStore(ctx, kv)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "w1", "BUF"))
	_, err = s.SetTeamRecord(ctx, "KC", models.Record{Wins: 12, Losses: 5})
	require.NoError(t, err)
	require.NoError(t, s.SetSuperBowl(ctx, []string{"KC", "PHI"}))

	reloaded, err := NewStore(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"w1": "BUF"}, reloaded.GetAll())
	rec, ok := reloaded.TeamRecord("KC")
	assert.True(t, ok)
	assert.Equal(t, models.Record{Wins: 12, Losses: 5}, rec)
	assert.Equal(t, []string{"KC", "PHI"}, reloaded.Postseason().SuperBowl)
}

func TestNewStore_MalformedValueFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, storage.KeyPredictions, "{not json"))
	require.NoError(t, kv.Set(ctx, storage.KeyTeamRecordPredictions, `{"KC":{"wins":10,"losses":7}}`))

	s, err := NewStore(ctx, kv)
	require.NoError(t, err)
	assert.Empty(t, s.GetAll())
	assert.Len(t, s.TeamRecords(), 1)
}

func TestStore_SetTeamRecordAlwaysSaves(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(ctx, storage.NewMemoryStore())
	require.NoError(t, err)

	problems, err := s.SetTeamRecord(ctx, "NYJ", models.Record{Wins: 12, Losses: 12})
	require.NoError(t, err)
	assert.NotEmpty(t, problems)

	rec, ok := s.TeamRecord("NYJ")
	assert.True(t, ok)
	assert.Equal(t, 12, rec.Losses)

	problems, err = s.SetTeamRecord(ctx, "NYJ", models.Record{Wins: 9, Losses: 8})
	require.NoError(t, err)
	assert.Empty(t, problems)
	assert.Empty(t, s.RecordProblems())

	require.NoError(t, s.ClearTeamRecord(ctx, "NYJ"))
	assert.Empty(t, s.TeamRecords())
}

func TestStore_DebouncedValidationHook(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var calls int
	var last []error
	s, err := NewStore(ctx, storage.NewMemoryStore(), WithValidationHook(20*time.Millisecond, func(problems []error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		last = problems
	}))
	require.NoError(t, err)
	defer s.Close()

	for wins := 10; wins <= 14; wins++ {
		_, err := s.SetTeamRecord(ctx, "DAL", models.Record{Wins: wins, Losses: 10})
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, last, 1)
}

func TestStore_PostseasonRounds(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(ctx, storage.NewMemoryStore())
	require.NoError(t, err)

	require.NoError(t, s.SetPostseasonRound(ctx, models.AFC, models.WildCard, []string{"BUF", "KC", "BAL"}))
	require.NoError(t, s.SetPostseasonRound(ctx, models.AFC, models.Divisional, []string{"BUF"}))

	bracket := s.Postseason()
	assert.Equal(t, []string{"BUF"}, bracket.Conferences[models.AFC][models.Divisional])
	assert.Empty(t, bracket.Problems())

	// Mutating the copy leaves the store untouched
	bracket.Conferences[models.AFC][models.WildCard][0] = "NE"
	assert.Equal(t, "BUF", s.Postseason().Conferences[models.AFC][models.WildCard][0])

	assert.Error(t, s.SetPostseasonRound(ctx, models.Conference("XFL"), models.WildCard, nil))
}

func TestStore_SnapshotAndReplace(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(ctx, storage.NewMemoryStore())
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "w1", "BUF"))

	now := time.Date(2025, 9, 8, 12, 0, 0, 0, time.UTC)
	snap := s.Snapshot(now)
	assert.Equal(t, now, snap.Timestamp)
	assert.Equal(t, models.PayloadVersion, snap.Version)
	assert.Equal(t, "BUF", snap.Predictions["w1"])

	incoming := models.Payload{
		Predictions:           map[string]string{"w2": "KC"},
		TeamRecordPredictions: map[string]models.Record{"KC": {Wins: 14, Losses: 3}},
	}
	require.NoError(t, s.Replace(ctx, incoming))
	assert.Equal(t, map[string]string{"w2": "KC"}, s.GetAll())
	assert.Len(t, s.TeamRecords(), 1)

	require.NoError(t, s.ClearAll(ctx))
	assert.Empty(t, s.GetAll())
	assert.Empty(t, s.TeamRecords())
	assert.True(t, s.Postseason().IsEmpty())
}

func TestStore_ReplaceFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{MemoryStore: storage.NewMemoryStore()}
	s, err := NewStore(ctx, kv)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "w1", "BUF"))

	kv.failKey = storage.KeyPostseasonPredictions
	err = s.Replace(ctx, models.Payload{Predictions: map[string]string{"w1": "MIA"}})
	require.Error(t, err)

	team, _ := s.Get("w1")
	assert.Equal(t, "BUF", team)

	raw, _, _ := kv.Get(ctx, storage.KeyPredictions)
	assert.JSONEq(t, `{"w1":"BUF"}`, raw, "earlier writes are rolled back")
}

func TestStore_SetFailureLeavesMemoryUnchanged(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{MemoryStore: storage.NewMemoryStore(), failKey: storage.KeyPredictions}
	s, err := NewStore(ctx, kv)
	require.NoError(t, err)

	require.Error(t, s.Set(ctx, "w1", "BUF"))
	_, ok := s.Get("w1")
	assert.False(t, ok)
}
