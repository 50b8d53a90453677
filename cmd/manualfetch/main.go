// Command manualfetch refreshes scores for chosen weeks once and exits.
// The registry is only written when a game changed, so reruns are safe.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"nflpicks/tracker/internal/bootstrap"
	"nflpicks/tracker/internal/client"
	"nflpicks/tracker/internal/config"
	"nflpicks/tracker/internal/ingestion"
	"nflpicks/tracker/internal/models"

	"github.com/rs/zerolog/log"
)

func main() {
	weeksFlag := flag.String("weeks", "", "comma-separated weeks to refresh, e.g. 1,2,3 (default: active weeks)")
	flag.Parse()

	cfg := config.MustLoad()
	bootstrap.SetupLogger(cfg.AppEnv, cfg.LogLevel)

	weeks, err := parseWeeks(*weeksFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -weeks: %v\n", err)
		os.Exit(2)
	}

	ctx := context.Background()
	reg, err := bootstrap.OpenRegistry(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open schedule registry")
	}
	defer reg.Close()

	// 1. Validate registry connectivity
	log.Info().Msg("Validating registry health...")
	if err := reg.Health(ctx); err != nil {
		log.Fatal().Err(err).Msg("Registry health check failed")
	}

	// 2. Refresh
	espn := client.NewESPNClient(cfg.ESPNBaseURL, cfg.ESPNTimeout)
	updater := ingestion.NewUpdater(espn, reg, cfg.Season, cfg.SeasonType)
	sum, err := updater.Run(ctx, weeks)
	if err != nil {
		log.Fatal().Err(err).Msg("Score refresh failed")
	}

	// 3. Summary
	for _, d := range sum.Dropped {
		log.Warn().Str("event_id", d.EventID).Str("reason", d.Reason).Msg("Dropped event")
	}
	log.Info().
		Ints("weeks", sum.Weeks).
		Int("updated", sum.Updated).
		Int("unchanged", sum.Unchanged).
		Int("unmatched", sum.Unmatched).
		Bool("saved", sum.Saved).
		Msg("Manual fetch complete")
}

// parseWeeks accepts "" (active weeks) or a comma-separated list of weeks.
func parseWeeks(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var weeks []int
	for _, part := range strings.Split(raw, ",") {
		w, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		if w < models.FirstWeek || w > models.LastWeek {
			return nil, fmt.Errorf("week %d outside %d-%d", w, models.FirstWeek, models.LastWeek)
		}
		weeks = append(weeks, w)
	}
	return weeks, nil
}
