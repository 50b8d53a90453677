package registry

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"nflpicks/tracker/internal/apperr"
	"nflpicks/tracker/internal/models"
)

//go:embed seed/schedule.json
var seedSchedule []byte

// ErrGameNotFound is returned when a result matches no scheduled game.
var ErrGameNotFound = errors.New("game not found")

// Document is the serialized registry shape (schedule data file).
type Document struct {
	Season    int           `json:"season"`
	Teams     []models.Team `json:"teams"`
	Games     []models.Game `json:"games"`
	UpdatedAt time.Time     `json:"updatedAt,omitempty"`
}

// Registry is the in-memory table of teams and games.
type Registry struct {
	mu        sync.RWMutex
	season    int
	updatedAt time.Time
	teams     map[string]*models.Team
	teamOrder []string
	games     map[string]*models.Game
	gameOrder []string
}

// New builds a registry from a document after validating it.
func New(doc Document) (*Registry, error) {
	r := &Registry{
		season:    doc.Season,
		updatedAt: doc.UpdatedAt,
		teams:     make(map[string]*models.Team, len(doc.Teams)),
		games:     make(map[string]*models.Game, len(doc.Games)),
	}
	for i := range doc.Teams {
		t := doc.Teams[i]
		if _, dup := r.teams[t.Code]; dup {
			return nil, &apperr.DataFormatError{Source: "schedule", Err: fmt.Errorf("duplicate team code %q", t.Code)}
		}
		r.teams[t.Code] = &t
		r.teamOrder = append(r.teamOrder, t.Code)
	}
	for i := range doc.Games {
		g := doc.Games[i]
		if _, dup := r.games[g.ID]; dup {
			return nil, &apperr.DataFormatError{Source: "schedule", Err: fmt.Errorf("duplicate game id %q", g.ID)}
		}
		if g.Status == "" {
			g.Status = models.StatusUpcoming
		}
		r.games[g.ID] = &g
		r.gameOrder = append(r.gameOrder, g.ID)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Decode reads a registry document from r.
func Decode(rd io.Reader) (*Registry, error) {
	var doc Document
	if err := json.NewDecoder(rd).Decode(&doc); err != nil {
		return nil, &apperr.DataFormatError{Source: "schedule", Err: err}
	}
	return New(doc)
}

// Default returns the registry built from the embedded season schedule.
func Default() (*Registry, error) {
	return Decode(bytes.NewReader(seedSchedule))
}

// Validate checks structural invariants of the registry.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var problems []error
	for _, code := range r.teamOrder {
		t := r.teams[code]
		if t.Code == "" {
			problems = append(problems, errors.New("team with empty code"))
		}
		if !t.Conference.Valid() || !t.Division.Valid() {
			problems = append(problems, fmt.Errorf("team %s: invalid conference/division %s/%s", t.Code, t.Conference, t.Division))
		}
		if t.Record.Wins < 0 || t.Record.Losses < 0 || t.Record.Games() > models.SeasonGames {
			problems = append(problems, fmt.Errorf("team %s: record %s out of range", t.Code, t.Record))
		}
	}
	for _, id := range r.gameOrder {
		g := r.games[id]
		if g.Week < models.FirstWeek || g.Week > models.LastWeek {
			problems = append(problems, fmt.Errorf("game %s: week %d out of range", id, g.Week))
		}
		if g.HomeTeam == g.AwayTeam {
			problems = append(problems, fmt.Errorf("game %s: home and away team are both %s", id, g.HomeTeam))
		}
		if _, ok := r.teams[g.HomeTeam]; !ok {
			problems = append(problems, fmt.Errorf("game %s: unknown home team %s", id, g.HomeTeam))
		}
		if _, ok := r.teams[g.AwayTeam]; !ok {
			problems = append(problems, fmt.Errorf("game %s: unknown away team %s", id, g.AwayTeam))
		}
		if g.Winner != "" && g.Winner != g.DetermineWinner() {
			problems = append(problems, fmt.Errorf("game %s: winner %s does not match score", id, g.Winner))
		}
	}
	if len(problems) > 0 {
		return &apperr.DataFormatError{Source: "schedule", Err: errors.Join(problems...)}
	}
	return nil
}

// Season returns the season year.
func (r *Registry) Season() int {
	return r.season
}

// Document snapshots the registry for persistence.
func (r *Registry) Document() Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Document{
		Season:    r.season,
		Teams:     r.teamsLocked(),
		Games:     r.gamesLocked(func(*models.Game) bool { return true }),
		UpdatedAt: r.updatedAt,
	}
}

// Team looks up a team by code.
func (r *Registry) Team(code string) (models.Team, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.teams[code]
	if !ok {
		return models.Team{}, false
	}
	return *t, true
}

// Teams returns all teams in seed order.
func (r *Registry) Teams() []models.Team {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.teamsLocked()
}

func (r *Registry) teamsLocked() []models.Team {
	out := make([]models.Team, 0, len(r.teamOrder))
	for _, code := range r.teamOrder {
		out = append(out, *r.teams[code])
	}
	return out
}

// Game looks up a game by id.
func (r *Registry) Game(id string) (models.Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[id]
	if !ok {
		return models.Game{}, false
	}
	return *g, true
}

// Games returns every game in schedule order.
func (r *Registry) Games() []models.Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gamesLocked(func(*models.Game) bool { return true })
}

// GamesByWeek returns the games scheduled in week.
func (r *Registry) GamesByWeek(week int) []models.Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gamesLocked(func(g *models.Game) bool { return g.Week == week })
}

// CompletedGames returns final games with a decided winner.
func (r *Registry) CompletedGames() []models.Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gamesLocked(func(g *models.Game) bool { return g.IsCompleted() })
}

// LiveGames returns games currently in progress.
func (r *Registry) LiveGames() []models.Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gamesLocked(func(g *models.Game) bool { return g.IsActive() })
}

// Weeks returns the distinct weeks that have games, ascending.
func (r *Registry) Weeks() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[int]bool)
	var weeks []int
	for _, g := range r.games {
		if !seen[g.Week] {
			seen[g.Week] = true
			weeks = append(weeks, g.Week)
		}
	}
	sort.Ints(weeks)
	return weeks
}

func (r *Registry) gamesLocked(keep func(*models.Game) bool) []models.Game {
	out := make([]models.Game, 0)
	for _, id := range r.gameOrder {
		g := r.games[id]
		if keep(g) {
			out = append(out, *g)
		}
	}
	return out
}

// FindGame finds the game for a week and matchup.
func (r *Registry) FindGame(week int, home, away string) (models.Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if g := r.findLocked(week, home, away); g != nil {
		return *g, true
	}
	return models.Game{}, false
}

func (r *Registry) findLocked(week int, home, away string) *models.Game {
	for _, id := range r.gameOrder {
		g := r.games[id]
		if g.Week == week && g.HomeTeam == home && g.AwayTeam == away {
			return g
		}
	}
	return nil
}

// ApplyResult patches score, status and winner of the matching game. It
// reports whether anything changed.
func (r *Registry) ApplyResult(res models.GameResult) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := r.findLocked(res.Week, res.HomeTeam, res.AwayTeam)
	if g == nil {
		return false, fmt.Errorf("%w: week %d %s@%s", ErrGameNotFound, res.Week, res.AwayTeam, res.HomeTeam)
	}

	updated := *g
	updated.HomeScore = copyInt(res.HomeScore)
	updated.AwayScore = copyInt(res.AwayScore)
	updated.Status = res.Status
	if res.Completed {
		updated.Status = models.StatusFinal
	}
	if updated.Status == "" {
		updated.Status = models.StatusUpcoming
	}
	if res.Date != "" {
		updated.Date = res.Date
	}
	updated.Winner = updated.DetermineWinner()

	if sameGame(*g, updated) {
		return false, nil
	}
	*g = updated
	r.updatedAt = time.Now().UTC()
	return true, nil
}

// RecomputeRecords rebuilds every team's record from final games.
func (r *Registry) RecomputeRecords() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.teams {
		t.Record = models.Record{}
	}
	for _, id := range r.gameOrder {
		g := r.games[id]
		if !g.IsCompleted() {
			continue
		}
		loser := g.HomeTeam
		if g.Winner == g.HomeTeam {
			loser = g.AwayTeam
		}
		if t, ok := r.teams[g.Winner]; ok {
			t.Record.Wins++
		}
		if t, ok := r.teams[loser]; ok {
			t.Record.Losses++
		}
	}
}

// ActualRecords returns the current record keyed by code of every team that
// has completed at least one game. Teams yet to play have no entry.
func (r *Registry) ActualRecords() map[string]models.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]models.Record, len(r.teams))
	for _, g := range r.games {
		if !g.IsCompleted() {
			continue
		}
		for _, code := range []string{g.HomeTeam, g.AwayTeam} {
			if t, ok := r.teams[code]; ok {
				out[code] = t.Record
			}
		}
	}
	return out
}

// UpdatedAt returns when results were last applied.
func (r *Registry) UpdatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updatedAt
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameGame(a, b models.Game) bool {
	return a.Status == b.Status &&
		a.Winner == b.Winner &&
		a.Date == b.Date &&
		equalInt(a.HomeScore, b.HomeScore) &&
		equalInt(a.AwayScore, b.AwayScore)
}
