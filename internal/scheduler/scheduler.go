package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nflpicks/tracker/internal/ingestion"
	"nflpicks/tracker/internal/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Refresher runs one score refresh. nil weeks means the currently active
// weeks.
type Refresher interface {
	Run(ctx context.Context, weeks []int) (ingestion.Summary, error)
}

// Scheduler drives score refreshes:
// - a cron schedule for the regular refresh
// - a ticker that polls while any game is live
type Scheduler struct {
	refresher    Refresher
	refreshCron  string
	pollInterval time.Duration
	cron         *cron.Cron
	ticker       *time.Ticker
	stopChan     chan struct{}
	stopOnce     sync.Once

	mu       sync.Mutex
	running  bool
	liveSeen bool
	lastRun  time.Time
}

// NewScheduler creates a new scheduler instance
func NewScheduler(refresher Refresher, refreshCron string, pollInterval time.Duration) *Scheduler {
	return &Scheduler{
		refresher:    refresher,
		refreshCron:  refreshCron,
		pollInterval: pollInterval,
		cron:         cron.New(),
		stopChan:     make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.refreshCron, func() {
		log.Info().Msg("Running scheduled score refresh...")
		if err := s.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduled score refresh failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule score refresh: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.refreshCron).
		Msg("Score refresh scheduled")

	if s.pollInterval > 0 {
		s.ticker = time.NewTicker(s.pollInterval)
		log.Info().
			Dur("interval", s.pollInterval).
			Msg("Live game polling started")
		go s.pollLiveGames(ctx)
	}

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		log.Info().Msg("Stopping scheduler...")

		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
		if s.ticker != nil {
			s.ticker.Stop()
		}

		close(s.stopChan)
		log.Info().Msg("Scheduler stopped")
	})
}

// RunOnce performs a refresh unless one is already in progress.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Debug().Msg("Score refresh already running, skipping")
		return nil
	}
	s.running = true
	s.mu.Unlock()

	start := time.Now()
	sum, err := s.refresher.Run(ctx, nil)
	metrics.RecordWorkerIteration(time.Since(start).Seconds())

	s.mu.Lock()
	s.running = false
	s.lastRun = start
	if err == nil {
		s.liveSeen = sum.Live > 0
	}
	s.mu.Unlock()
	return err
}

// LiveGamesSeen reports whether the last successful refresh found live games.
func (s *Scheduler) LiveGamesSeen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveSeen
}

func (s *Scheduler) pollLiveGames(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Context cancelled, stopping live game polling")
			return
		case <-s.stopChan:
			log.Info().Msg("Stop signal received, stopping live game polling")
			return
		case <-s.ticker.C:
			if !s.LiveGamesSeen() {
				log.Debug().Msg("No live games, skipping poll")
				continue
			}
			if err := s.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to refresh live games")
			}
		}
	}
}
