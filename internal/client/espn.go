package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"nflpicks/tracker/internal/apperr"
)

// DefaultESPNBaseURL is the public ESPN site API root for the NFL.
const DefaultESPNBaseURL = "https://site.api.espn.com/apis/site/v2/sports/football/nfl"

// Season types as ESPN numbers them.
const (
	SeasonTypePreseason  = 1
	SeasonTypeRegular    = 2
	SeasonTypePostseason = 3
)

// ESPNClient reads the ESPN scoreboard.
type ESPNClient struct {
	*Client
}

// NewESPNClient creates a scoreboard client.
func NewESPNClient(baseURL string, timeout time.Duration, opts ...Option) *ESPNClient {
	if baseURL == "" {
		baseURL = DefaultESPNBaseURL
	}
	return &ESPNClient{Client: New(baseURL, timeout, opts...)}
}

// Scoreboard is the subset of the ESPN scoreboard response the tracker reads.
type Scoreboard struct {
	Season struct {
		Year int `json:"year"`
		Type int `json:"type"`
	} `json:"season"`
	Week struct {
		Number int `json:"number"`
	} `json:"week"`
	Events []Event `json:"events"`
}

// Event is one game on the scoreboard.
type Event struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	Name string `json:"name"`
	Week struct {
		Number int `json:"number"`
	} `json:"week"`
	Status       EventStatus   `json:"status"`
	Competitions []Competition `json:"competitions"`
}

// EventStatus carries the game state.
type EventStatus struct {
	Type struct {
		Name      string `json:"name"`
		State     string `json:"state"` // pre, in, post
		Completed bool   `json:"completed"`
	} `json:"type"`
}

// Competition holds the two competitors of an event.
type Competition struct {
	ID          string       `json:"id"`
	Competitors []Competitor `json:"competitors"`
}

// Competitor is one side of a competition.
type Competitor struct {
	HomeAway string `json:"homeAway"`
	Score    string `json:"score"`
	Winner   bool   `json:"winner"`
	Team     struct {
		ID           string `json:"id"`
		Abbreviation string `json:"abbreviation"`
		DisplayName  string `json:"displayName"`
	} `json:"team"`
}

// ScoreValue parses the competitor score; absent or non-numeric scores
// return ok=false.
func (c Competitor) ScoreValue() (int, bool) {
	if c.Score == "" {
		return 0, false
	}
	v, err := strconv.Atoi(c.Score)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FetchScoreboard fetches one week of the scoreboard.
func (c *ESPNClient) FetchScoreboard(ctx context.Context, season, seasonType, week int) (*Scoreboard, error) {
	resp, err := c.Do(ctx, Request{
		Endpoint: "espn_scoreboard",
		Path:     "scoreboard",
		Query: map[string]string{
			"dates":      strconv.Itoa(season),
			"seasontype": strconv.Itoa(seasonType),
			"week":       strconv.Itoa(week),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scoreboard week %d: %w", week, err)
	}

	var board Scoreboard
	if err := json.Unmarshal(resp.Body, &board); err != nil {
		return nil, &apperr.DataFormatError{Source: "espn scoreboard", Err: err}
	}
	if board.Week.Number == 0 {
		board.Week.Number = week
	}
	return &board, nil
}
