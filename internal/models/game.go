package models

import "time"

// GameStatus is the lifecycle state of a game.
type GameStatus string

const (
	StatusUpcoming GameStatus = "upcoming"
	StatusLive     GameStatus = "live"
	StatusFinal    GameStatus = "final"
)

const (
	FirstWeek = 1
	LastWeek  = 18
)

// Game represents a scheduled NFL game
type Game struct {
	ID        string     `json:"id" db:"game_id"`
	Week      int        `json:"week" db:"week"`
	HomeTeam  string     `json:"homeTeam" db:"home_team"`
	AwayTeam  string     `json:"awayTeam" db:"away_team"`
	Date      string     `json:"date" db:"game_date"` // YYYY-MM-DD
	Time      string     `json:"time,omitempty" db:"game_time"`
	Status    GameStatus `json:"status" db:"status"`
	HomeScore *int       `json:"homeScore" db:"home_score"`
	AwayScore *int       `json:"awayScore" db:"away_score"`
	Winner    string     `json:"winner,omitempty" db:"winner"`
}

// GameResult is one normalized record produced by score ingestion.
type GameResult struct {
	Week      int        `json:"week"`
	HomeTeam  string     `json:"homeTeam"`
	AwayTeam  string     `json:"awayTeam"`
	HomeScore *int       `json:"homeScore"`
	AwayScore *int       `json:"awayScore"`
	Status    GameStatus `json:"status"`
	Date      string     `json:"date"`
	Completed bool       `json:"completed"`
}

// DetermineWinner returns the code of the strictly higher-scoring team for a
// final game, or "" for ties, missing scores and unfinished games.
func (g *Game) DetermineWinner() string {
	if g.Status != StatusFinal || g.HomeScore == nil || g.AwayScore == nil {
		return ""
	}
	switch {
	case *g.HomeScore > *g.AwayScore:
		return g.HomeTeam
	case *g.AwayScore > *g.HomeScore:
		return g.AwayTeam
	default:
		return ""
	}
}

// IsCompleted reports whether the game is final with a decided winner.
func (g *Game) IsCompleted() bool {
	return g.Status == StatusFinal && g.Winner != ""
}

// IsActive returns true if the game is currently in progress
func (g *Game) IsActive() bool {
	return g.Status == StatusLive
}

// Involves reports whether team plays in the game.
func (g *Game) Involves(team string) bool {
	return g.HomeTeam == team || g.AwayTeam == team
}

// Kickoff parses Date (and Time when present) in UTC.
func (g *Game) Kickoff() (time.Time, error) {
	if g.Time == "" {
		return time.Parse("2006-01-02", g.Date)
	}
	return time.Parse("2006-01-02 15:04", g.Date+" "+g.Time)
}

// IntPtr is a convenience for building scores.
func IntPtr(v int) *int {
	return &v
}
