package models

import "fmt"

// SeasonGames is the number of regular-season games per team.
const SeasonGames = 17

// Conference is AFC or NFC.
type Conference string

const (
	AFC Conference = "AFC"
	NFC Conference = "NFC"
)

// Valid reports whether c is a known conference.
func (c Conference) Valid() bool {
	return c == AFC || c == NFC
}

// Division within a conference.
type Division string

const (
	East  Division = "East"
	North Division = "North"
	South Division = "South"
	West  Division = "West"
)

// Valid reports whether d is a known division.
func (d Division) Valid() bool {
	switch d {
	case East, North, South, West:
		return true
	}
	return false
}

// Record is a win/loss total.
type Record struct {
	Wins   int `json:"wins" db:"wins"`
	Losses int `json:"losses" db:"losses"`
}

// Games returns the number of decided games in the record.
func (r Record) Games() int {
	return r.Wins + r.Losses
}

// String renders the record as W-L.
func (r Record) String() string {
	return fmt.Sprintf("%d-%d", r.Wins, r.Losses)
}

// Team represents an NFL team
type Team struct {
	Code       string     `json:"code" db:"team_code"`
	Name       string     `json:"name" db:"name"`
	Conference Conference `json:"conference" db:"conference"`
	Division   Division   `json:"division" db:"division"`
	Record     Record     `json:"record"`
}
