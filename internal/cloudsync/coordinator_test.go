package cloudsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nflpicks/tracker/internal/apperr"
	"nflpicks/tracker/internal/models"
	"nflpicks/tracker/internal/predictions"
	"nflpicks/tracker/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memProvider keeps the latest payload in memory.
type memProvider struct {
	mu           sync.Mutex
	payload      *models.Payload
	saves        int
	provisioned  int
	configureErr error
	loadErr      error
	saveErr      error
	delay        time.Duration
}

func (p *memProvider) Kind() ProviderKind { return ProviderGist }

func (p *memProvider) Configure(_ context.Context, creds Credentials) (Identity, error) {
	if p.configureErr != nil {
		return Identity{}, p.configureErr
	}
	handle := creds.RemoteHandle
	if handle == "" {
		p.provisioned++
		handle = "gist-new"
	}
	return Identity{Account: "octocat", RemoteHandle: handle}, nil
}

func (p *memProvider) Save(_ context.Context, payload models.Payload, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	cp := payload.Clone()
	p.payload = &cp
	p.saves++
	return nil
}

func (p *memProvider) Load(ctx context.Context, _ string) (*models.Payload, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	if p.payload == nil {
		return nil, nil
	}
	cp := p.payload.Clone()
	return &cp, nil
}

var t0 = time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	kv       *storage.MemoryStore
	store    *predictions.Store
	provider *memProvider
	coord    *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	store, err := predictions.NewStore(ctx, kv)
	require.NoError(t, err)

	provider := &memProvider{}
	coord, err := NewCoordinator(ctx, kv, store, Options{
		Factory: func(ProviderKind) (Provider, error) { return provider, nil },
		Timeout: 200 * time.Millisecond,
		Now:     func() time.Time { return t0 },
	})
	require.NoError(t, err)
	t.Cleanup(func() { <-coord.cron.Stop().Done() })

	return &fixture{kv: kv, store: store, provider: provider, coord: coord}
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	_, err := f.coord.Configure(context.Background(), ProviderGist, Credentials{Token: "tok"})
	require.NoError(t, err)
}

func TestCoordinator_ConfigurePersistsHandle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, StateUnconfigured, f.coord.Status().State)
	ident, err := f.coord.Configure(ctx, ProviderGist, Credentials{Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "gist-new", ident.RemoteHandle)

	st := f.coord.Status()
	assert.Equal(t, StateConnected, st.State)
	assert.Equal(t, "gist-new", st.RemoteHandle)
	assert.Equal(t, "octocat", st.Account)

	var cfg storedConfig
	found, err := storage.GetJSON(ctx, f.kv, storage.KeyCloudSyncConfig, &cfg)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "gist-new", cfg.Credentials.RemoteHandle)
	assert.Equal(t, ProviderGist, cfg.Provider)
}

func TestCoordinator_RestoreReusesHandle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, storage.SetJSON(ctx, f.kv, storage.KeyCloudSyncConfig, storedConfig{
		Provider:    ProviderGist,
		Credentials: Credentials{Token: "tok", RemoteHandle: "gist-123"},
		AutoBackup:  IntervalDaily,
	}))

	restored, err := f.coord.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, restored)

	st := f.coord.Status()
	assert.Equal(t, StateConnected, st.State)
	assert.Equal(t, "gist-123", st.RemoteHandle)
	assert.Equal(t, IntervalDaily, st.AutoBackup)
	assert.Len(t, f.coord.cron.Entries(), 1)
}

func TestCoordinator_ReconfigureReusesHandle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.Configure(ctx, ProviderGist, Credentials{Token: "tok1"})
	require.NoError(t, err)
	ident, err := f.coord.Configure(ctx, ProviderGist, Credentials{Token: "tok2"})
	require.NoError(t, err)

	assert.Equal(t, "gist-new", ident.RemoteHandle)
	assert.Equal(t, 1, f.provider.provisioned)

	var cfg storedConfig
	_, err = storage.GetJSON(ctx, f.kv, storage.KeyCloudSyncConfig, &cfg)
	require.NoError(t, err)
	assert.Equal(t, "tok2", cfg.Credentials.Token)
	assert.Equal(t, "gist-new", cfg.Credentials.RemoteHandle)
}

func TestCoordinator_ConfigureReusesHandleFromEarlierSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, storage.SetJSON(ctx, f.kv, storage.KeyCloudSyncConfig, storedConfig{
		Provider:    ProviderGist,
		Credentials: Credentials{Token: "old", RemoteHandle: "gist-123"},
	}))

	ident, err := f.coord.Configure(ctx, ProviderGist, Credentials{Token: "new"})
	require.NoError(t, err)
	assert.Equal(t, "gist-123", ident.RemoteHandle)
	assert.Zero(t, f.provider.provisioned)
}

func TestCoordinator_ConfigureAfterDisconnectProvisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t)
	require.NoError(t, f.coord.Disconnect(ctx))

	f.connect(t)
	assert.Equal(t, 2, f.provider.provisioned)
}

func TestCoordinator_RestoreWithoutConfig(t *testing.T) {
	f := newFixture(t)
	restored, err := f.coord.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, StateUnconfigured, f.coord.Status().State)
}

func TestCoordinator_ConfigureFailureReturnsToUnconfigured(t *testing.T) {
	f := newFixture(t)
	f.provider.configureErr = &apperr.ConfigurationError{Field: "token", Reason: "rejected"}

	_, err := f.coord.Configure(context.Background(), ProviderGist, Credentials{Token: "bad"})
	require.Error(t, err)
	assert.True(t, apperr.IsConfiguration(err))
	assert.Equal(t, StateUnconfigured, f.coord.Status().State)

	feed := f.coord.Notifier().Recent()
	require.NotEmpty(t, feed)
	assert.Equal(t, LevelError, feed[0].Level)
}

func TestCoordinator_OperationsRequireConfiguration(t *testing.T) {
	f := newFixture(t)
	err := f.coord.SyncNow(context.Background())
	assert.True(t, apperr.IsConfiguration(err))
	_, err = f.coord.Resync(context.Background())
	assert.True(t, apperr.IsConfiguration(err))
}

func TestCoordinator_ReconcilePushesWhenRemoteEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, "w1", "BUF"))
	f.connect(t)

	res, err := f.coord.Reconcile(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, ActionPushedLocal, res.Action)
	require.NotNil(t, f.provider.payload)
	assert.Equal(t, "BUF", f.provider.payload.Predictions["w1"])
	assert.Equal(t, t0, *f.coord.Status().LastSync)
}

func TestCoordinator_ReconcileNeedsDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, "A", "X"))
	f.provider.payload = &models.Payload{Predictions: map[string]string{"A": "Y", "B": "Z"}, Timestamp: t0.Add(-time.Hour)}
	f.connect(t)

	res, err := f.coord.Reconcile(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, ActionNeedsDecision, res.Action)
	assert.Equal(t, map[string]string{"A": "X"}, f.store.GetAll())
	assert.Equal(t, 0, f.provider.saves)
}

func TestCoordinator_ReconcileMerge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, "A", "X"))
	f.provider.payload = &models.Payload{Predictions: map[string]string{"A": "Y", "B": "Z"}, Timestamp: t0.Add(-time.Hour)}
	f.connect(t)

	res, err := f.coord.Reconcile(ctx, StrategyMerge)
	require.NoError(t, err)
	assert.Equal(t, ActionMerged, res.Action)
	assert.Equal(t, map[string]string{"A": "X", "B": "Z"}, f.store.GetAll())
	assert.Equal(t, map[string]string{"A": "X", "B": "Z"}, f.provider.payload.Predictions)
}

func TestCoordinator_ReconcileMergeFailedPushKeepsLocal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, "A", "X"))
	f.provider.payload = &models.Payload{Predictions: map[string]string{"A": "Y", "B": "Z"}, Timestamp: t0.Add(-time.Hour)}
	f.connect(t)
	f.provider.saveErr = &apperr.NetworkError{Op: "save", Err: errors.New("network down")}

	_, err := f.coord.Reconcile(ctx, StrategyMerge)
	require.Error(t, err)
	assert.Equal(t, map[string]string{"A": "X"}, f.store.GetAll())
	assert.Nil(t, f.coord.Status().LastSync)
	assert.Equal(t, map[string]string{"A": "Y", "B": "Z"}, f.provider.payload.Predictions)
}

func TestCoordinator_ReconcileFailureLeavesLocalUnchanged(t *testing.T) {
	remote := models.Payload{
		Predictions:           map[string]string{"A": "Y", "B": "Z"},
		TeamRecordPredictions: map[string]models.Record{"MIA": {Wins: 3, Losses: 14}},
		PostseasonPredictions: models.PostseasonPredictions{
			Conferences: map[models.Conference]map[models.Round][]string{},
			SuperBowl:   []string{"DET"},
		},
		Timestamp: t0.Add(-time.Hour),
	}
	loadErr := &apperr.NetworkError{Op: "load", StatusCode: 502, Err: errors.New("bad gateway")}
	saveErr := &apperr.NetworkError{Op: "save", Err: errors.New("network down")}

	tests := []struct {
		name     string
		strategy Strategy
		loadErr  error
		saveErr  error
	}{
		{"use-remote load fails", StrategyUseRemote, loadErr, nil},
		{"use-local load fails", StrategyUseLocal, loadErr, nil},
		{"use-local save fails", StrategyUseLocal, nil, saveErr},
		{"merge load fails", StrategyMerge, loadErr, nil},
		{"merge save fails", StrategyMerge, nil, saveErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			require.NoError(t, f.store.Set(ctx, "A", "X"))
			_, err := f.store.SetTeamRecord(ctx, "BUF", models.Record{Wins: 13, Losses: 4})
			require.NoError(t, err)
			require.NoError(t, f.store.SetSuperBowl(ctx, []string{"BUF", "PHI"}))

			cp := remote.Clone()
			f.provider.payload = &cp
			f.connect(t)
			f.provider.loadErr = tt.loadErr
			f.provider.saveErr = tt.saveErr

			beforePredictions := f.store.GetAll()
			beforeRecords := f.store.TeamRecords()
			beforePostseason := f.store.Postseason()

			_, err = f.coord.Reconcile(ctx, tt.strategy)
			require.Error(t, err)

			assert.Equal(t, beforePredictions, f.store.GetAll())
			assert.Equal(t, beforeRecords, f.store.TeamRecords())
			assert.Equal(t, beforePostseason, f.store.Postseason())
			assert.Nil(t, f.coord.Status().LastSync)
			assert.Equal(t, StateConnected, f.coord.Status().State)

			_, found, err := f.kv.Get(ctx, storage.KeyLastSyncTimestamp)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestCoordinator_ReconcileUseRemoteAndUseLocal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, "A", "X"))
	remoteTS := t0.Add(-time.Hour)
	f.provider.payload = &models.Payload{Predictions: map[string]string{"A": "Y", "B": "Z"}, Timestamp: remoteTS}
	f.connect(t)

	res, err := f.coord.Reconcile(ctx, StrategyUseRemote)
	require.NoError(t, err)
	assert.Equal(t, ActionAdoptedRemote, res.Action)
	assert.Equal(t, map[string]string{"A": "Y", "B": "Z"}, f.store.GetAll())
	assert.Equal(t, remoteTS, *f.coord.Status().LastSync)

	require.NoError(t, f.store.Set(ctx, "A", "X"))
	res, err = f.coord.Reconcile(ctx, StrategyUseLocal)
	require.NoError(t, err)
	assert.Equal(t, ActionPushedLocal, res.Action)
	assert.Equal(t, "X", f.provider.payload.Predictions["A"])
}

func TestCoordinator_ResyncOlderRemoteIsNoSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, storage.SetJSON(ctx, f.kv, storage.KeyLastSyncTimestamp, t0))
	f.coord.lastSync = t0
	require.NoError(t, f.store.Set(ctx, "w1", "BUF"))
	f.provider.payload = &models.Payload{Predictions: map[string]string{"w1": "MIA"}, Timestamp: t0.Add(-time.Minute)}
	f.connect(t)

	res, err := f.coord.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionNoSync, res.Action)
	team, _ := f.store.Get("w1")
	assert.Equal(t, "BUF", team)

	// Equal timestamps are not newer either
	f.provider.payload.Timestamp = t0
	res, err = f.coord.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionNoSync, res.Action)
}

func TestCoordinator_ResyncNewerRemoteIsAdopted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.coord.lastSync = t0
	require.NoError(t, f.store.Set(ctx, "w1", "BUF"))
	f.provider.payload = &models.Payload{Predictions: map[string]string{"w1": "MIA"}, Timestamp: t0.Add(time.Minute)}
	f.connect(t)

	res, err := f.coord.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionAdoptedRemote, res.Action)
	team, _ := f.store.Get("w1")
	assert.Equal(t, "MIA", team)

	var persisted time.Time
	_, err = storage.GetJSON(ctx, f.kv, storage.KeyLastSyncTimestamp, &persisted)
	require.NoError(t, err)
	assert.True(t, persisted.Equal(t0.Add(time.Minute)))
}

func TestCoordinator_TimeoutNeverApplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, "w1", "BUF"))
	f.provider.payload = &models.Payload{Predictions: map[string]string{"w1": "MIA"}, Timestamp: t0.Add(time.Hour)}
	f.connect(t)
	f.provider.delay = 400 * time.Millisecond

	_, err := f.coord.Resync(ctx)
	require.Error(t, err)
	assert.True(t, apperr.IsTimeout(err))
	nErr, ok := apperr.AsNetworkError(err)
	require.True(t, ok)
	assert.True(t, nErr.Timeout)

	team, _ := f.store.Get("w1")
	assert.Equal(t, "BUF", team)
	assert.Equal(t, StateConnected, f.coord.Status().State)
	assert.Equal(t, LevelError, f.coord.Notifier().Recent()[0].Level)
}

func TestCoordinator_SyncFailureKeepsConnected(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	f.provider.saveErr = &apperr.NetworkError{Op: "save", StatusCode: 502, Err: errors.New("bad gateway")}

	err := f.coord.SyncNow(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateConnected, f.coord.Status().State)
	assert.Nil(t, f.coord.Status().LastSync)
}

func TestCoordinator_AutoBackupEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t)

	require.NoError(t, f.coord.SetAutoBackup(ctx, IntervalHourly))
	assert.Len(t, f.coord.cron.Entries(), 1)

	require.NoError(t, f.coord.SetAutoBackup(ctx, IntervalWeekly))
	assert.Len(t, f.coord.cron.Entries(), 1)

	require.NoError(t, f.coord.SetAutoBackup(ctx, IntervalImmediate))
	assert.Empty(t, f.coord.cron.Entries())

	require.NoError(t, f.coord.SetAutoBackup(ctx, IntervalDaily))
	require.NoError(t, f.coord.SetAutoBackup(ctx, IntervalNone))
	assert.Empty(t, f.coord.cron.Entries())
	assert.Equal(t, IntervalNone, f.coord.Status().AutoBackup)

	assert.Error(t, f.coord.SetAutoBackup(ctx, Interval("monthly")))
}

func TestCoordinator_AutoBackupBeforeConfigure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.coord.SetAutoBackup(ctx, IntervalDaily))
	assert.Empty(t, f.coord.cron.Entries())

	f.connect(t)
	assert.Equal(t, IntervalDaily, f.coord.Status().AutoBackup)
	assert.Len(t, f.coord.cron.Entries(), 1)

	var cfg storedConfig
	_, err := storage.GetJSON(ctx, f.kv, storage.KeyCloudSyncConfig, &cfg)
	require.NoError(t, err)
	assert.Equal(t, IntervalDaily, cfg.AutoBackup)
}

func TestCoordinator_Disconnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t)
	require.NoError(t, f.coord.SetAutoBackup(ctx, IntervalDaily))

	require.NoError(t, f.coord.Disconnect(ctx))
	assert.Equal(t, StateUnconfigured, f.coord.Status().State)
	assert.Empty(t, f.coord.cron.Entries())
	_, found, _ := f.kv.Get(ctx, storage.KeyCloudSyncConfig)
	assert.False(t, found)
}

func TestCoordinator_ShutdownSyncs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t)
	require.NoError(t, f.store.Set(ctx, "w1", "BUF"))

	f.coord.Shutdown(ctx)
	assert.Equal(t, 1, f.provider.saves)
}

func TestParseHelpers(t *testing.T) {
	_, err := ParseStrategy("merge")
	assert.NoError(t, err)
	_, err = ParseStrategy("newest")
	assert.Error(t, err)

	iv, err := ParseInterval("")
	require.NoError(t, err)
	assert.Equal(t, IntervalNone, iv)

	kind, err := ParseProviderKind(" Gist ")
	require.NoError(t, err)
	assert.Equal(t, ProviderGist, kind)
	_, err = ParseProviderKind("dropbox")
	assert.Error(t, err)
}

func TestPlaceholderProviders(t *testing.T) {
	for _, kind := range []ProviderKind{ProviderFirebase, ProviderSupabase} {
		p, err := NewProvider(kind, ProviderOptions{})
		require.NoError(t, err)
		assert.Equal(t, kind, p.Kind())
		_, err = p.Configure(context.Background(), Credentials{Token: "x"})
		assert.ErrorIs(t, err, ErrProviderNotImplemented)
	}
}

func TestNotifier_BoundedNewestFirst(t *testing.T) {
	n := NewNotifier(2)
	n.Info("a", "first")
	n.Warn("b", "second")
	n.Error("c", &apperr.NetworkError{Op: "save", Timeout: true})

	feed := n.Recent()
	require.Len(t, feed, 2)
	assert.Equal(t, "c", feed[0].Op)
	assert.Contains(t, feed[0].Message, "timed out")
	assert.Equal(t, "b", feed[1].Op)
	assert.NotEmpty(t, feed[0].ID)
}
