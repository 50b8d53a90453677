package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"nflpicks/tracker/internal/apperr"
	"nflpicks/tracker/internal/metrics"
	"nflpicks/tracker/internal/models"
	"nflpicks/tracker/internal/predictions"
	"nflpicks/tracker/internal/storage"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// State is the coordinator's connection state.
type State string

const (
	StateUnconfigured State = "unconfigured"
	StateConfiguring  State = "configuring"
	StateConnected    State = "connected"
	StateSyncing      State = "syncing"
)

// Strategy resolves a conflict between local and remote data.
type Strategy string

const (
	StrategyUseRemote Strategy = "use-remote"
	StrategyUseLocal  Strategy = "use-local"
	StrategyMerge     Strategy = "merge"
)

// ParseStrategy validates a strategy name; "" is allowed and means no
// decision yet.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case "", StrategyUseRemote, StrategyUseLocal, StrategyMerge:
		return st, nil
	default:
		return "", fmt.Errorf("unknown reconcile strategy %q", s)
	}
}

// Action reports what a sync operation did.
type Action string

const (
	ActionPushedLocal   Action = "pushed-local"
	ActionAdoptedRemote Action = "adopted-remote"
	ActionMerged        Action = "merged"
	ActionNeedsDecision Action = "needs-decision"
	ActionNoSync        Action = "no-sync"
)

// Result is the outcome of a sync operation.
type Result struct {
	Action          Action     `json:"action"`
	RemoteTimestamp *time.Time `json:"remoteTimestamp,omitempty"`
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	State        State        `json:"state"`
	Provider     ProviderKind `json:"provider,omitempty"`
	Account      string       `json:"account,omitempty"`
	RemoteHandle string       `json:"remoteHandle,omitempty"`
	AutoBackup   Interval     `json:"autoBackup"`
	LastSync     *time.Time   `json:"lastSync,omitempty"`
}

// storedConfig is persisted under storage.KeyCloudSyncConfig.
type storedConfig struct {
	Provider    ProviderKind `json:"provider"`
	Credentials Credentials  `json:"credentials"`
	Account     string       `json:"account,omitempty"`
	AutoBackup  Interval     `json:"autoBackup"`
}

// ProviderFactory builds a provider for kind.
type ProviderFactory func(kind ProviderKind) (Provider, error)

// Options configure a Coordinator.
type Options struct {
	Factory  ProviderFactory
	Notifier *Notifier
	Timeout  time.Duration
	Category string
	Now      func() time.Time
}

// Coordinator owns the cloud connection for one prediction store.
type Coordinator struct {
	kv       storage.KV
	store    *predictions.Store
	factory  ProviderFactory
	notifier *Notifier
	timeout  time.Duration
	category string
	now      func() time.Time

	// opMu serializes operations that touch the remote.
	opMu sync.Mutex

	mu        sync.RWMutex
	state     State
	providers map[ProviderKind]Provider
	provider  Provider
	cfg       storedConfig
	lastSync  time.Time

	cron        *cron.Cron
	backupEntry cron.EntryID
}

// NewCoordinator creates an unconfigured coordinator and loads the
// last-applied sync timestamp.
func NewCoordinator(ctx context.Context, kv storage.KV, store *predictions.Store, opts Options) (*Coordinator, error) {
	if opts.Factory == nil {
		return nil, errors.New("provider factory is required")
	}
	if opts.Notifier == nil {
		opts.Notifier = NewNotifier(DefaultFeedSize)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Category == "" {
		opts.Category = DefaultCategory
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Coordinator{
		kv:        kv,
		store:     store,
		factory:   opts.Factory,
		notifier:  opts.Notifier,
		timeout:   opts.Timeout,
		category:  opts.Category,
		now:       opts.Now,
		state:     StateUnconfigured,
		providers: make(map[ProviderKind]Provider),
		cfg:       storedConfig{AutoBackup: IntervalNone},
		cron:      cron.New(),
	}

	var last time.Time
	found, err := storage.GetJSON(ctx, kv, storage.KeyLastSyncTimestamp, &last)
	switch {
	case apperr.IsDataFormat(err):
		log.Warn().Err(err).Msg("Ignoring malformed last sync timestamp")
	case err != nil:
		return nil, err
	case found:
		c.lastSync = last
	}

	c.cron.Start()
	return c, nil
}

// Notifier returns the coordinator's notification feed.
func (c *Coordinator) Notifier() *Notifier {
	return c.notifier
}

// Status reports the current connection state.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := Status{
		State:        c.state,
		Provider:     c.cfg.Provider,
		Account:      c.cfg.Account,
		RemoteHandle: c.cfg.Credentials.RemoteHandle,
		AutoBackup:   c.cfg.AutoBackup,
	}
	if !c.lastSync.IsZero() {
		last := c.lastSync
		st.LastSync = &last
	}
	return st
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Configure activates kind with creds. On success the remote handle, the
// credentials and the provider kind are persisted for later sessions. When
// creds carries no remote handle, the handle persisted for the same provider
// kind is reused so a token change keeps the existing backups.
func (c *Coordinator) Configure(ctx context.Context, kind ProviderKind, creds Credentials) (Identity, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if creds.RemoteHandle == "" {
		prev, err := c.persistedConfig(ctx)
		if err != nil {
			return Identity{}, err
		}
		if prev.Provider == kind {
			creds.RemoteHandle = prev.Credentials.RemoteHandle
		}
	}
	return c.configureLocked(ctx, kind, creds, IntervalNone)
}

// persistedConfig returns the active configuration, falling back to the one
// stored by an earlier session.
func (c *Coordinator) persistedConfig(ctx context.Context) (storedConfig, error) {
	c.mu.RLock()
	cfg := c.cfg
	c.mu.RUnlock()
	if cfg.Provider != "" {
		return cfg, nil
	}

	var stored storedConfig
	_, err := storage.GetJSON(ctx, c.kv, storage.KeyCloudSyncConfig, &stored)
	if apperr.IsDataFormat(err) {
		log.Warn().Err(err).Msg("Ignoring malformed cloud sync configuration")
		return storedConfig{}, nil
	}
	return stored, err
}

func (c *Coordinator) configureLocked(ctx context.Context, kind ProviderKind, creds Credentials, backup Interval) (Identity, error) {
	c.setState(StateConfiguring)

	provider, err := c.providerFor(kind)
	if err != nil {
		c.fail("configure", err)
		return Identity{}, err
	}

	var ident Identity
	start := time.Now()
	err = c.remote(ctx, "configure", func(rctx context.Context) error {
		var cErr error
		ident, cErr = provider.Configure(rctx, creds)
		return cErr
	})
	if err != nil {
		metrics.RecordSync("configure", "error", time.Since(start).Seconds())
		c.fail("configure", err)
		return Identity{}, err
	}
	metrics.RecordSync("configure", "success", time.Since(start).Seconds())

	c.mu.Lock()
	// Keep the cadence of the same provider, or one chosen before the
	// first configure.
	if backup == IntervalNone && (c.cfg.Provider == kind || c.cfg.Provider == "") {
		backup = c.cfg.AutoBackup
	}
	cfg := storedConfig{
		Provider:    kind,
		Credentials: Credentials{Token: creds.Token, RemoteHandle: ident.RemoteHandle},
		Account:     ident.Account,
		AutoBackup:  backup,
	}
	c.mu.Unlock()

	if err := storage.SetJSON(ctx, c.kv, storage.KeyCloudSyncConfig, cfg); err != nil {
		c.fail("configure", err)
		return Identity{}, err
	}

	c.mu.Lock()
	c.provider = provider
	c.cfg = cfg
	c.state = StateConnected
	c.mu.Unlock()

	if err := c.scheduleBackup(cfg.AutoBackup); err != nil {
		log.Warn().Err(err).Msg("Failed to schedule automatic backups")
	}

	c.notifier.Info("configure", fmt.Sprintf("Connected to %s cloud sync as %s", kind, ident.Account))
	return ident, nil
}

func (c *Coordinator) providerFor(kind ProviderKind) (Provider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.providers[kind]; ok {
		return p, nil
	}
	p, err := c.factory(kind)
	if err != nil {
		return nil, &apperr.ConfigurationError{Field: "provider", Reason: err.Error()}
	}
	c.providers[kind] = p
	return p, nil
}

// fail records a failed configure and returns to Unconfigured.
func (c *Coordinator) fail(op string, err error) {
	c.mu.Lock()
	c.state = StateUnconfigured
	c.provider = nil
	c.mu.Unlock()
	c.notifier.Error(op, err)
}

// Restore reconnects using a configuration persisted by an earlier session.
// It reports false when nothing was persisted.
func (c *Coordinator) Restore(ctx context.Context) (bool, error) {
	var cfg storedConfig
	found, err := storage.GetJSON(ctx, c.kv, storage.KeyCloudSyncConfig, &cfg)
	if apperr.IsDataFormat(err) {
		log.Warn().Err(err).Msg("Discarding malformed cloud sync configuration")
		return false, nil
	}
	if err != nil || !found || cfg.Provider == "" {
		return false, err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	backup := cfg.AutoBackup
	if backup == "" {
		backup = IntervalNone
	}
	if _, err := c.configureLocked(ctx, cfg.Provider, cfg.Credentials, backup); err != nil {
		return false, err
	}
	return true, nil
}

// Reconcile performs the initial-connect reconciliation. With no remote
// data, local data is pushed. With remote prediction data, strategy decides;
// an empty strategy returns ActionNeedsDecision and changes nothing.
func (c *Coordinator) Reconcile(ctx context.Context, strategy Strategy) (Result, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	provider, err := c.begin()
	if err != nil {
		return Result{}, err
	}
	defer c.end()

	start := time.Now()
	res, err := c.reconcileLocked(ctx, provider, strategy)
	c.record("reconcile", start, err)
	return res, err
}

func (c *Coordinator) reconcileLocked(ctx context.Context, provider Provider, strategy Strategy) (Result, error) {
	remote, err := c.load(ctx, provider)
	if err != nil {
		return Result{}, err
	}

	if !remote.HasPredictionData() {
		if err := c.push(ctx, provider); err != nil {
			return Result{}, err
		}
		return Result{Action: ActionPushedLocal}, nil
	}

	ts := remote.Timestamp
	switch strategy {
	case "":
		return Result{Action: ActionNeedsDecision, RemoteTimestamp: &ts}, nil

	case StrategyUseRemote:
		if err := c.adopt(ctx, *remote); err != nil {
			return Result{}, err
		}
		c.notifier.Info("reconcile", "Replaced local predictions with the cloud backup")
		return Result{Action: ActionAdoptedRemote, RemoteTimestamp: &ts}, nil

	case StrategyUseLocal:
		if err := c.push(ctx, provider); err != nil {
			return Result{}, err
		}
		c.notifier.Info("reconcile", "Replaced the cloud backup with local predictions")
		return Result{Action: ActionPushedLocal, RemoteTimestamp: &ts}, nil

	case StrategyMerge:
		merged := predictions.Merge(c.store.Snapshot(c.now()), *remote)
		if err := c.pushPayload(ctx, provider, merged); err != nil {
			return Result{}, err
		}
		if err := c.store.Replace(ctx, merged); err != nil {
			return Result{}, err
		}
		c.notifier.Info("reconcile", "Merged local predictions with the cloud backup")
		return Result{Action: ActionMerged, RemoteTimestamp: &ts}, nil

	default:
		return Result{}, fmt.Errorf("unknown reconcile strategy %q", strategy)
	}
}

// Resync adopts the remote payload wholesale only when it is strictly newer
// than the last payload applied locally.
func (c *Coordinator) Resync(ctx context.Context) (Result, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	provider, err := c.begin()
	if err != nil {
		return Result{}, err
	}
	defer c.end()

	start := time.Now()
	res, err := c.resyncLocked(ctx, provider)
	c.record("resync", start, err)
	return res, err
}

func (c *Coordinator) resyncLocked(ctx context.Context, provider Provider) (Result, error) {
	remote, err := c.load(ctx, provider)
	if err != nil {
		return Result{}, err
	}
	if remote == nil {
		return Result{Action: ActionNoSync}, nil
	}

	ts := remote.Timestamp
	c.mu.RLock()
	last := c.lastSync
	c.mu.RUnlock()
	if !ts.After(last) {
		log.Debug().Time("remote", ts).Time("last_applied", last).Msg("Remote backup is not newer, no sync performed")
		return Result{Action: ActionNoSync, RemoteTimestamp: &ts}, nil
	}

	if err := c.adopt(ctx, *remote); err != nil {
		return Result{}, err
	}
	return Result{Action: ActionAdoptedRemote, RemoteTimestamp: &ts}, nil
}

// SyncNow pushes the local payload.
func (c *Coordinator) SyncNow(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	provider, err := c.begin()
	if err != nil {
		return err
	}
	defer c.end()

	start := time.Now()
	err = c.push(ctx, provider)
	c.record("push", start, err)
	return err
}

// Disconnect forgets the provider and its persisted configuration.
func (c *Coordinator) Disconnect(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.removeBackup()
	if err := c.kv.Remove(ctx, storage.KeyCloudSyncConfig); err != nil {
		return fmt.Errorf("failed to remove sync configuration: %w", err)
	}

	c.mu.Lock()
	c.state = StateUnconfigured
	c.provider = nil
	c.cfg = storedConfig{AutoBackup: IntervalNone}
	c.mu.Unlock()

	c.notifier.Info("disconnect", "Cloud sync disconnected")
	return nil
}

// SetAutoBackup changes the automatic backup cadence. Periodic cadences run
// as cron entries; immediate is accepted and has no schedule. A cadence set
// while unconfigured is held and applied by the next Configure.
func (c *Coordinator) SetAutoBackup(ctx context.Context, iv Interval) error {
	if _, err := ParseInterval(string(iv)); err != nil {
		return err
	}

	c.mu.Lock()
	c.cfg.AutoBackup = iv
	cfg := c.cfg
	connected := c.state != StateUnconfigured
	c.mu.Unlock()

	if connected {
		if err := storage.SetJSON(ctx, c.kv, storage.KeyCloudSyncConfig, cfg); err != nil {
			return err
		}
		return c.scheduleBackup(iv)
	}
	return nil
}

func (c *Coordinator) scheduleBackup(iv Interval) error {
	c.removeBackup()
	spec, ok := iv.cronSpec()
	if !ok {
		return nil
	}

	id, err := c.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*c.timeout)
		defer cancel()
		if err := c.SyncNow(ctx); err != nil {
			log.Error().Err(err).Str("interval", string(iv)).Msg("Automatic backup failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s backup: %w", iv, err)
	}

	c.mu.Lock()
	c.backupEntry = id
	c.mu.Unlock()
	log.Info().Str("interval", string(iv)).Str("schedule", spec).Msg("Automatic backup scheduled")
	return nil
}

func (c *Coordinator) removeBackup() {
	c.mu.Lock()
	id := c.backupEntry
	c.backupEntry = 0
	c.mu.Unlock()
	if id != 0 {
		c.cron.Remove(id)
	}
}

// Shutdown stops scheduled backups and makes one best-effort sync.
func (c *Coordinator) Shutdown(ctx context.Context) {
	<-c.cron.Stop().Done()

	if c.Status().State == StateUnconfigured {
		return
	}
	if err := c.SyncNow(ctx); err != nil {
		log.Warn().Err(err).Msg("Final sync on shutdown failed")
	}
}

// begin marks a remote operation as in flight.
func (c *Coordinator) begin() (Provider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.provider == nil || c.state == StateUnconfigured || c.state == StateConfiguring {
		return nil, &apperr.ConfigurationError{Field: "provider", Reason: "cloud sync is not configured"}
	}
	c.state = StateSyncing
	return c.provider, nil
}

func (c *Coordinator) end() {
	c.mu.Lock()
	if c.state == StateSyncing {
		c.state = StateConnected
	}
	c.mu.Unlock()
}

func (c *Coordinator) record(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		if apperr.IsTimeout(err) {
			status = "timeout"
		}
		c.notifier.Error(op, err)
	}
	metrics.RecordSync(op, status, time.Since(start).Seconds())
}

func (c *Coordinator) load(ctx context.Context, provider Provider) (*models.Payload, error) {
	var remote *models.Payload
	err := c.remote(ctx, "load", func(rctx context.Context) error {
		var lErr error
		remote, lErr = provider.Load(rctx, c.category)
		return lErr
	})
	return remote, err
}

func (c *Coordinator) push(ctx context.Context, provider Provider) error {
	return c.pushPayload(ctx, provider, c.store.Snapshot(c.now()))
}

// pushPayload saves payload remotely and records its timestamp once the
// save succeeded.
func (c *Coordinator) pushPayload(ctx context.Context, provider Provider, payload models.Payload) error {
	if err := c.remote(ctx, "save", func(rctx context.Context) error {
		return provider.Save(rctx, payload, c.category)
	}); err != nil {
		return err
	}
	return c.markSynced(ctx, payload.Timestamp)
}

// adopt replaces local state with remote and records its timestamp.
func (c *Coordinator) adopt(ctx context.Context, remote models.Payload) error {
	if err := c.store.Replace(ctx, remote); err != nil {
		return err
	}
	return c.markSynced(ctx, remote.Timestamp)
}

func (c *Coordinator) markSynced(ctx context.Context, ts time.Time) error {
	if err := storage.SetJSON(ctx, c.kv, storage.KeyLastSyncTimestamp, ts); err != nil {
		return err
	}
	c.mu.Lock()
	c.lastSync = ts
	c.mu.Unlock()
	return nil
}

// remote runs fn bounded by the sync timeout. A result that arrives after
// the deadline is discarded and reported as a timeout.
func (c *Coordinator) remote(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := fn(rctx)
	if err == nil {
		err = rctx.Err()
	}
	if err == nil {
		return nil
	}
	if errors.Is(rctx.Err(), context.DeadlineExceeded) && !apperr.IsTimeout(err) {
		return &apperr.NetworkError{Op: op, Timeout: true, Err: err}
	}
	if _, ok := apperr.AsNetworkError(err); !ok && apperr.IsTimeout(err) {
		return apperr.NewNetworkError(op, err)
	}
	return err
}
