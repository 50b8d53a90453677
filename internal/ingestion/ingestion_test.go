package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"nflpicks/tracker/internal/client"
	"nflpicks/tracker/internal/models"
	"nflpicks/tracker/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSource struct {
	reg   *registry.Registry
	saves int
}

func (m *memSource) Load(context.Context) (*registry.Registry, error) { return m.reg, nil }

func (m *memSource) Save(_ context.Context, reg *registry.Registry) error {
	m.reg = reg
	m.saves++
	return nil
}

type fakeFetcher struct {
	boards map[int]*client.Scoreboard
	err    error
	weeks  []int
}

func (f *fakeFetcher) FetchScoreboard(_ context.Context, _, _, week int) (*client.Scoreboard, error) {
	f.weeks = append(f.weeks, week)
	if f.err != nil {
		return nil, f.err
	}
	return f.boards[week], nil
}

func event(id, home, away, homeScore, awayScore, state string, completed bool) client.Event {
	ev := client.Event{ID: id, Date: "2025-09-07T17:00Z", Name: away + " at " + home}
	ev.Status.Type.State = state
	ev.Status.Type.Completed = completed
	h := client.Competitor{HomeAway: "home", Score: homeScore}
	h.Team.Abbreviation = home
	a := client.Competitor{HomeAway: "away", Score: awayScore}
	a.Team.Abbreviation = away
	ev.Competitions = []client.Competition{{ID: id, Competitors: []client.Competitor{h, a}}}
	return ev
}

func board(week int, events ...client.Event) *client.Scoreboard {
	b := &client.Scoreboard{Events: events}
	b.Week.Number = week
	return b
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(registry.Document{
		Season: 2025,
		Teams: []models.Team{
			{Code: "MIA", Name: "Miami Dolphins", Conference: models.AFC, Division: models.East},
			{Code: "BUF", Name: "Buffalo Bills", Conference: models.AFC, Division: models.East},
			{Code: "WAS", Name: "Washington Commanders", Conference: models.NFC, Division: models.East},
			{Code: "LAR", Name: "Los Angeles Rams", Conference: models.NFC, Division: models.West},
		},
		Games: []models.Game{
			{ID: "w1a", Week: 1, HomeTeam: "MIA", AwayTeam: "BUF", Date: "2025-09-07", Status: models.StatusUpcoming},
			{ID: "w1b", Week: 1, HomeTeam: "WAS", AwayTeam: "LAR", Date: "2025-09-07", Status: models.StatusUpcoming},
			{ID: "w2a", Week: 2, HomeTeam: "BUF", AwayTeam: "WAS", Date: "2025-09-14", Status: models.StatusUpcoming},
		},
	})
	require.NoError(t, err)
	return reg
}

func TestNormalizeTeamCode(t *testing.T) {
	assert.Equal(t, "WAS", NormalizeTeamCode("WSH"))
	assert.Equal(t, "LAR", NormalizeTeamCode("LA"))
	assert.Equal(t, "KC", NormalizeTeamCode(" kc "))
}

func TestMapScoreboard(t *testing.T) {
	reg := testRegistry(t)
	known := func(code string) bool { _, ok := reg.Team(code); return ok }

	results, dropped := MapScoreboard(board(1,
		event("1", "MIA", "BUF", "24", "31", "post", true),
		event("2", "WSH", "LA", "7", "3", "in", false),
		event("3", "MIA", "XYZ", "0", "0", "pre", false),
	), known)

	require.Len(t, results, 2)
	require.Len(t, dropped, 1)
	assert.Equal(t, "3", dropped[0].EventID)
	assert.Contains(t, dropped[0].Reason, "XYZ")

	final := results[0]
	assert.Equal(t, 1, final.Week)
	assert.Equal(t, models.StatusFinal, final.Status)
	assert.True(t, final.Completed)
	assert.Equal(t, 31, *final.AwayScore)
	assert.Equal(t, "2025-09-07", final.Date)

	live := results[1]
	assert.Equal(t, "WAS", live.HomeTeam)
	assert.Equal(t, "LAR", live.AwayTeam)
	assert.Equal(t, models.StatusLive, live.Status)
}

func TestMapScoreboard_UpcomingHasNoScores(t *testing.T) {
	results, dropped := MapScoreboard(board(1, event("1", "MIA", "BUF", "0", "0", "pre", false)), nil)
	require.Empty(t, dropped)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].HomeScore)
	assert.Equal(t, models.StatusUpcoming, results[0].Status)
}

func TestUpdater_RunAppliesAndSaves(t *testing.T) {
	src := &memSource{reg: testRegistry(t)}
	fetcher := &fakeFetcher{boards: map[int]*client.Scoreboard{
		1: board(1,
			event("1", "MIA", "BUF", "24", "31", "post", true),
			event("2", "WSH", "LA", "7", "3", "in", false),
			event("9", "BUF", "MIA", "10", "0", "post", true),
			event("3", "MIA", "XYZ", "0", "0", "pre", false),
		),
	}}

	u := NewUpdater(fetcher, src, 0, 0)
	sum, err := u.Run(context.Background(), []int{1})
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Updated)
	assert.Equal(t, 1, sum.Unmatched)
	assert.Len(t, sum.Dropped, 1)
	assert.Equal(t, 1, sum.Live)
	assert.True(t, sum.Saved)
	assert.Equal(t, 1, src.saves)

	g, ok := src.reg.Game("w1a")
	require.True(t, ok)
	assert.Equal(t, "BUF", g.Winner)
	assert.Equal(t, models.Record{Wins: 1}, src.reg.ActualRecords()["BUF"])

	// A second identical run changes nothing and skips the save
	sum, err = u.Run(context.Background(), []int{1})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Updated)
	assert.Equal(t, 2, sum.Unchanged)
	assert.Equal(t, 1, src.saves)
}

func TestUpdater_DefaultsToActiveWeeks(t *testing.T) {
	src := &memSource{reg: testRegistry(t)}
	fetcher := &fakeFetcher{boards: map[int]*client.Scoreboard{1: board(1)}}

	u := NewUpdater(fetcher, src, 2025, client.SeasonTypeRegular)
	u.now = func() time.Time { return time.Date(2025, 9, 8, 12, 0, 0, 0, time.UTC) }

	sum, err := u.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, sum.Weeks)
	assert.Equal(t, []int{1}, fetcher.weeks)
}

func TestUpdater_AllFetchesFail(t *testing.T) {
	src := &memSource{reg: testRegistry(t)}
	fetcher := &fakeFetcher{err: errors.New("boom")}

	_, err := NewUpdater(fetcher, src, 2025, 2).Run(context.Background(), []int{1, 2})
	require.Error(t, err)
	assert.Equal(t, 0, src.saves)
}

func TestActiveWeeks(t *testing.T) {
	reg := testRegistry(t)
	now := time.Date(2025, 9, 20, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, []int{1, 2}, ActiveWeeks(reg, now))

	before := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	assert.Empty(t, ActiveWeeks(reg, before))
}
