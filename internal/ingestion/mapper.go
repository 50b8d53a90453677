// Package ingestion turns external scoreboards into registry updates.
package ingestion

import (
	"fmt"
	"strings"
	"time"

	"nflpicks/tracker/internal/client"
	"nflpicks/tracker/internal/models"
)

// Dropped is a scoreboard event that could not be mapped.
type Dropped struct {
	EventID string `json:"eventId"`
	Name    string `json:"name"`
	Reason  string `json:"reason"`
}

// abbreviationAliases maps ESPN abbreviations to registry codes where they
// differ.
var abbreviationAliases = map[string]string{
	"WSH": "WAS",
	"LA":  "LAR",
	"JAC": "JAX",
	"OAK": "LV",
	"SD":  "LAC",
	"STL": "LAR",
}

// NormalizeTeamCode maps an ESPN abbreviation to a registry team code.
func NormalizeTeamCode(abbr string) string {
	code := strings.ToUpper(strings.TrimSpace(abbr))
	if alias, ok := abbreviationAliases[code]; ok {
		return alias
	}
	return code
}

var eastern = loadEastern()

func loadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// MapScoreboard converts scoreboard events into game results. known reports
// whether a team code exists in the registry; events involving unknown teams
// are dropped with a reason.
func MapScoreboard(board *client.Scoreboard, known func(code string) bool) ([]models.GameResult, []Dropped) {
	if board == nil {
		return nil, nil
	}

	var results []models.GameResult
	var dropped []Dropped
	for _, ev := range board.Events {
		res, err := mapEvent(ev, board.Week.Number, known)
		if err != nil {
			dropped = append(dropped, Dropped{EventID: ev.ID, Name: ev.Name, Reason: err.Error()})
			continue
		}
		results = append(results, res)
	}
	return results, dropped
}

func mapEvent(ev client.Event, boardWeek int, known func(string) bool) (models.GameResult, error) {
	if len(ev.Competitions) == 0 {
		return models.GameResult{}, fmt.Errorf("event has no competition")
	}

	var home, away *client.Competitor
	for i := range ev.Competitions[0].Competitors {
		c := &ev.Competitions[0].Competitors[i]
		switch c.HomeAway {
		case "home":
			home = c
		case "away":
			away = c
		}
	}
	if home == nil || away == nil {
		return models.GameResult{}, fmt.Errorf("event is missing a home or away competitor")
	}

	homeCode := NormalizeTeamCode(home.Team.Abbreviation)
	awayCode := NormalizeTeamCode(away.Team.Abbreviation)
	for _, code := range []string{homeCode, awayCode} {
		if code == "" || (known != nil && !known(code)) {
			return models.GameResult{}, fmt.Errorf("unknown team %q", code)
		}
	}

	week := ev.Week.Number
	if week == 0 {
		week = boardWeek
	}

	res := models.GameResult{
		Week:      week,
		HomeTeam:  homeCode,
		AwayTeam:  awayCode,
		Status:    mapStatus(ev.Status),
		Completed: ev.Status.Type.Completed,
		Date:      eventDate(ev.Date),
	}
	if res.Status != models.StatusUpcoming {
		if v, ok := home.ScoreValue(); ok {
			res.HomeScore = models.IntPtr(v)
		}
		if v, ok := away.ScoreValue(); ok {
			res.AwayScore = models.IntPtr(v)
		}
	}
	if res.Completed && (res.HomeScore == nil || res.AwayScore == nil) {
		return models.GameResult{}, fmt.Errorf("completed event without scores")
	}
	return res, nil
}

func mapStatus(st client.EventStatus) models.GameStatus {
	if st.Type.Completed {
		return models.StatusFinal
	}
	switch st.Type.State {
	case "in":
		return models.StatusLive
	case "post":
		return models.StatusFinal
	default:
		return models.StatusUpcoming
	}
}

// eventDate converts an ESPN UTC timestamp into the Eastern calendar date
// the schedule uses. Unparseable input yields "".
func eventDate(raw string) string {
	for _, layout := range []string{"2006-01-02T15:04Z", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.In(eastern).Format("2006-01-02")
		}
	}
	return ""
}
