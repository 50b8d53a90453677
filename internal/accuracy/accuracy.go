// Package accuracy scores predictions against completed results.
package accuracy

import (
	"math"
	"sort"
	"time"

	"nflpicks/tracker/internal/models"
	"nflpicks/tracker/internal/registry"
)

// RecordTolerance is the largest win difference still counted as correct.
const RecordTolerance = 2

// GameReport summarizes game-winner accuracy.
type GameReport struct {
	Correct   int `json:"correct"`
	Total     int `json:"total"`
	Predicted int `json:"predicted"`
	Percent   int `json:"percent"`
}

// TeamRecordResult compares one team's predicted and actual records.
type TeamRecordResult struct {
	Team       string        `json:"team"`
	Predicted  models.Record `json:"predicted"`
	Actual     models.Record `json:"actual"`
	Difference int           `json:"difference"`
	Correct    bool          `json:"correct"`
}

// RecordReport summarizes team-record accuracy.
type RecordReport struct {
	Correct int                `json:"correct"`
	Total   int                `json:"total"`
	Percent int                `json:"percent"`
	Teams   []TeamRecordResult `json:"teams"`
}

// WeekReport is game accuracy restricted to one week.
type WeekReport struct {
	Week int `json:"week"`
	GameReport
}

// Percent rounds 100*correct/total half away from zero; zero totals yield 0.
func Percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// GameAccuracy scores predictions against completed games. A game counts
// once it is final with a winner; ties never count. Games without a
// prediction count toward the total as misses.
func GameAccuracy(games []models.Game, predictions map[string]string) GameReport {
	var r GameReport
	for i := range games {
		g := &games[i]
		if !g.IsCompleted() {
			continue
		}
		r.Total++
		pick, ok := predictions[g.ID]
		if !ok || pick == "" {
			continue
		}
		r.Predicted++
		if pick == g.Winner {
			r.Correct++
		}
	}
	r.Percent = Percent(r.Correct, r.Total)
	return r
}

// RecordAccuracy compares predicted wins to actual wins per team. Teams with
// no actual record are skipped entirely.
func RecordAccuracy(actual map[string]models.Record, predictions map[string]models.Record) RecordReport {
	codes := make([]string, 0, len(predictions))
	for code := range predictions {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	r := RecordReport{Teams: []TeamRecordResult{}}
	for _, code := range codes {
		act, ok := actual[code]
		if !ok {
			continue
		}
		pred := predictions[code]
		diff := pred.Wins - act.Wins
		if diff < 0 {
			diff = -diff
		}
		res := TeamRecordResult{
			Team:       code,
			Predicted:  pred,
			Actual:     act,
			Difference: diff,
			Correct:    diff <= RecordTolerance,
		}
		r.Total++
		if res.Correct {
			r.Correct++
		}
		r.Teams = append(r.Teams, res)
	}
	r.Percent = Percent(r.Correct, r.Total)
	return r
}

// WeeklyBreakdown applies GameAccuracy per week, in week order. Weeks with no
// completed games are omitted.
func WeeklyBreakdown(games []models.Game, predictions map[string]string) []WeekReport {
	byWeek := make(map[int][]models.Game)
	for _, g := range games {
		if g.IsCompleted() {
			byWeek[g.Week] = append(byWeek[g.Week], g)
		}
	}
	weeks := make([]int, 0, len(byWeek))
	for w := range byWeek {
		weeks = append(weeks, w)
	}
	sort.Ints(weeks)

	out := make([]WeekReport, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, WeekReport{Week: w, GameReport: GameAccuracy(byWeek[w], predictions)})
	}
	return out
}

// Report bundles every accuracy view for one point in time.
type Report struct {
	Season      int          `json:"season"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Games       GameReport   `json:"games"`
	Records     RecordReport `json:"records"`
	Weeks       []WeekReport `json:"weeks"`
}

// Build scores game and record predictions against the registry's
// current results.
func Build(reg *registry.Registry, games map[string]string, records map[string]models.Record, now time.Time) Report {
	all := reg.Games()
	return Report{
		Season:      reg.Season(),
		GeneratedAt: now.UTC(),
		Games:       GameAccuracy(all, games),
		Records:     RecordAccuracy(reg.ActualRecords(), records),
		Weeks:       WeeklyBreakdown(all, games),
	}
}
