package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"nflpicks/tracker/internal/client"
	"nflpicks/tracker/internal/metrics"
	"nflpicks/tracker/internal/models"
	"nflpicks/tracker/internal/registry"

	"github.com/rs/zerolog/log"
)

// ScoreboardFetcher fetches one week of scores.
type ScoreboardFetcher interface {
	FetchScoreboard(ctx context.Context, season, seasonType, week int) (*client.Scoreboard, error)
}

// Summary reports the outcome of one refresh run.
type Summary struct {
	Weeks     []int         `json:"weeks"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Unmatched int           `json:"unmatched"`
	Dropped   []Dropped     `json:"dropped"`
	Live      int           `json:"live"`
	Saved     bool          `json:"saved"`
	Duration  time.Duration `json:"duration"`
}

// Updater pulls scores and writes them into the registry source.
type Updater struct {
	fetcher    ScoreboardFetcher
	source     registry.Source
	season     int
	seasonType int
	now        func() time.Time
}

// NewUpdater creates an Updater. season 0 uses the registry's season.
func NewUpdater(fetcher ScoreboardFetcher, source registry.Source, season, seasonType int) *Updater {
	if seasonType == 0 {
		seasonType = client.SeasonTypeRegular
	}
	return &Updater{
		fetcher:    fetcher,
		source:     source,
		season:     season,
		seasonType: seasonType,
		now:        time.Now,
	}
}

// Run refreshes the given weeks; with no weeks it refreshes ActiveWeeks. A
// failed week is logged and skipped; the registry is saved only when at
// least one game changed.
func (u *Updater) Run(ctx context.Context, weeks []int) (Summary, error) {
	start := time.Now()
	var sum Summary

	reg, err := u.source.Load(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to load registry: %w", err)
	}
	if len(weeks) == 0 {
		weeks = ActiveWeeks(reg, u.now())
	}
	sum.Weeks = weeks

	season := u.season
	if season == 0 {
		season = reg.Season()
	}
	known := func(code string) bool {
		_, ok := reg.Team(code)
		return ok
	}

	var fetchErrs []error
	for _, week := range weeks {
		board, err := u.fetcher.FetchScoreboard(ctx, season, u.seasonType, week)
		if err != nil {
			log.Error().Err(err).Int("week", week).Msg("Failed to fetch scoreboard")
			metrics.RecordError("ingestion", "fetch")
			fetchErrs = append(fetchErrs, err)
			continue
		}

		results, dropped := MapScoreboard(board, known)
		for _, d := range dropped {
			log.Warn().
				Str("event_id", d.EventID).
				Str("name", d.Name).
				Str("reason", d.Reason).
				Msg("Dropped scoreboard event")
		}
		sum.Dropped = append(sum.Dropped, dropped...)

		for _, res := range results {
			changed, err := reg.ApplyResult(res)
			switch {
			case errors.Is(err, registry.ErrGameNotFound):
				log.Debug().Err(err).Msg("Scoreboard game not in registry")
				sum.Unmatched++
			case err != nil:
				return sum, err
			case changed:
				sum.Updated++
			default:
				sum.Unchanged++
			}
		}
	}

	if sum.Updated > 0 {
		reg.RecomputeRecords()
		if err := u.source.Save(ctx, reg); err != nil {
			return sum, fmt.Errorf("failed to save registry: %w", err)
		}
		sum.Saved = true
	}
	sum.Live = len(reg.LiveGames())
	sum.Duration = time.Since(start)

	metrics.RecordIngestion(sum.Updated, sum.Unchanged, sum.Unmatched, len(sum.Dropped))
	metrics.UpdateGameStats(len(reg.CompletedGames()), sum.Live)

	log.Info().
		Ints("weeks", sum.Weeks).
		Int("updated", sum.Updated).
		Int("unchanged", sum.Unchanged).
		Int("unmatched", sum.Unmatched).
		Int("dropped", len(sum.Dropped)).
		Int("live", sum.Live).
		Dur("duration", sum.Duration).
		Msg("Score refresh completed")

	if len(fetchErrs) == len(weeks) && len(weeks) > 0 {
		return sum, fmt.Errorf("all scoreboard fetches failed: %w", errors.Join(fetchErrs...))
	}
	return sum, nil
}

// ActiveWeeks returns the weeks holding a game that has kicked off (by
// calendar date) but is not yet final.
func ActiveWeeks(reg *registry.Registry, now time.Time) []int {
	today := now.In(eastern).Format("2006-01-02")
	set := make(map[int]bool)
	for _, g := range reg.Games() {
		if g.Status == models.StatusFinal {
			continue
		}
		if g.Date != "" && g.Date <= today {
			set[g.Week] = true
		}
	}
	weeks := make([]int, 0, len(set))
	for w := range set {
		weeks = append(weeks, w)
	}
	sort.Ints(weeks)
	return weeks
}
