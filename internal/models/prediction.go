package models

import (
	"fmt"
	"time"

	"nflpicks/tracker/internal/apperr"
)

// PayloadVersion tags cloud payloads and exported backups.
const PayloadVersion = "1.0"

// Round is a postseason round within a conference.
type Round string

const (
	WildCard     Round = "wildCard"
	Divisional   Round = "divisional"
	Championship Round = "championship"
)

// Rounds lists conference rounds in playing order.
var Rounds = []Round{WildCard, Divisional, Championship}

// PostseasonPredictions maps conference -> round -> ordered slot list, plus
// the Super Bowl slots.
type PostseasonPredictions struct {
	Conferences map[Conference]map[Round][]string `json:"conferences"`
	SuperBowl   []string                          `json:"superBowl"`
}

// NewPostseasonPredictions returns an empty bracket.
func NewPostseasonPredictions() PostseasonPredictions {
	return PostseasonPredictions{Conferences: map[Conference]map[Round][]string{}}
}

// IsEmpty reports whether no slot has been filled.
func (p PostseasonPredictions) IsEmpty() bool {
	if len(p.SuperBowl) > 0 {
		return false
	}
	for _, rounds := range p.Conferences {
		for _, slots := range rounds {
			if len(slots) > 0 {
				return false
			}
		}
	}
	return true
}

// Clone deep-copies the bracket.
func (p PostseasonPredictions) Clone() PostseasonPredictions {
	out := NewPostseasonPredictions()
	for conf, rounds := range p.Conferences {
		copied := make(map[Round][]string, len(rounds))
		for round, slots := range rounds {
			copied[round] = append([]string(nil), slots...)
		}
		out.Conferences[conf] = copied
	}
	out.SuperBowl = append([]string(nil), p.SuperBowl...)
	return out
}

// Problems lists teams advanced to a round without appearing in the previous
// round of the same conference. The store accepts such brackets; callers
// surface these as feedback.
func (p PostseasonPredictions) Problems() []string {
	var problems []string
	for conf, rounds := range p.Conferences {
		for i := 1; i < len(Rounds); i++ {
			prev := make(map[string]bool)
			for _, code := range rounds[Rounds[i-1]] {
				prev[code] = true
			}
			for _, code := range rounds[Rounds[i]] {
				if code != "" && !prev[code] {
					problems = append(problems, fmt.Sprintf("%s %s: %s did not advance from %s", conf, Rounds[i], code, Rounds[i-1]))
				}
			}
		}
	}
	return problems
}

// Payload is the cloud backup unit.
type Payload struct {
	Predictions           map[string]string     `json:"predictions"`
	PostseasonPredictions PostseasonPredictions `json:"postseasonPredictions"`
	TeamRecordPredictions map[string]Record     `json:"teamRecordPredictions"`
	Timestamp             time.Time             `json:"timestamp"`
	Version               string                `json:"version"`
}

// HasPredictionData reports whether any prediction category is non-empty.
func (p *Payload) HasPredictionData() bool {
	if p == nil {
		return false
	}
	return len(p.Predictions) > 0 || len(p.TeamRecordPredictions) > 0 || !p.PostseasonPredictions.IsEmpty()
}

// Clone deep-copies the payload.
func (p Payload) Clone() Payload {
	out := Payload{
		Predictions:           make(map[string]string, len(p.Predictions)),
		PostseasonPredictions: p.PostseasonPredictions.Clone(),
		TeamRecordPredictions: make(map[string]Record, len(p.TeamRecordPredictions)),
		Timestamp:             p.Timestamp,
		Version:               p.Version,
	}
	for k, v := range p.Predictions {
		out.Predictions[k] = v
	}
	for k, v := range p.TeamRecordPredictions {
		out.TeamRecordPredictions[k] = v
	}
	return out
}

// ValidateRecordPrediction checks a team-record prediction against the
// season length. The result is advisory.
func ValidateRecordPrediction(team string, r Record) error {
	var problems []string
	if r.Wins < 0 || r.Wins > SeasonGames {
		problems = append(problems, fmt.Sprintf("wins must be between 0 and %d", SeasonGames))
	}
	if r.Losses < 0 || r.Losses > SeasonGames {
		problems = append(problems, fmt.Sprintf("losses must be between 0 and %d", SeasonGames))
	}
	if r.Games() != SeasonGames {
		problems = append(problems, fmt.Sprintf("wins and losses total %d, expected %d", r.Games(), SeasonGames))
	}
	if len(problems) == 0 {
		return nil
	}
	return &apperr.ValidationError{Subject: team, Problems: problems}
}
