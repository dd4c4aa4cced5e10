// Package model holds the domain entities shared by every layer: teams,
// standings snapshots, games, trained models and predictions.
package model

import (
	"encoding/json"
	"time"
)

// GameType is the upstream game classifier.
type GameType int

// Game type codes.
const (
	Preseason     GameType = 1
	RegularSeason GameType = 2
	Playoffs      GameType = 3
)

// GameTypes lists every game type code in order.
var GameTypes = []GameType{Preseason, RegularSeason, Playoffs}

func (t GameType) String() string {
	switch t {
	case Preseason:
		return "preseason"
	case RegularSeason:
		return "regular season"
	case Playoffs:
		return "playoffs"
	default:
		return "unknown"
	}
}

// Franchise is the persistent identity behind one or more team names.
type Franchise struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Team is a named club belonging to a franchise.
type Team struct {
	ID           int    `json:"id"`
	FranchiseID  int    `json:"franchise_id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

// TeamData is a team's cumulative record as of a calendar date.
type TeamData struct {
	ID      int64           `json:"id"`
	TeamID  int             `json:"team_id"`
	Date    time.Time       `json:"date"`
	Payload json.RawMessage `json:"data"`
}

// Standings decodes the snapshot payload. Undecodable payloads read as a
// zero record so the extractor never fails on a bad row.
func (d *TeamData) Standings() StandingsPayload {
	if d == nil {
		return StandingsPayload{}
	}
	p, err := DecodeStandings(d.Payload)
	if err != nil {
		return StandingsPayload{}
	}
	return p
}

// Game is one scheduled or played matchup.
type Game struct {
	ID            int64           `json:"id"`
	Season        int             `json:"season"`
	HomeTeam      Team            `json:"home_team"`
	AwayTeam      Team            `json:"away_team"`
	WinningTeamID *int            `json:"winning_team,omitempty"`
	Date          time.Time       `json:"date"`
	Type          GameType        `json:"game_type"`
	HomeGoals     int             `json:"home_goals"`
	AwayGoals     int             `json:"away_goals"`
	State         string          `json:"game_state,omitempty"`
	Payload       json.RawMessage `json:"data,omitempty"`

	HomeTeamData *TeamData `json:"home_team_data,omitempty"`
	AwayTeamData *TeamData `json:"away_team_data,omitempty"`
}

// HomeWin reports whether the recorded winner is the home team.
func (g *Game) HomeWin() bool {
	return g.WinningTeamID != nil && *g.WinningTeamID == g.HomeTeam.ID
}

// Decided reports whether a winner has been recorded.
func (g *Game) Decided() bool { return g.WinningTeamID != nil }

// HasSnapshots reports whether both pre-game snapshots are resolved.
func (g *Game) HasSnapshots() bool { return g.HomeTeamData != nil && g.AwayTeamData != nil }

// SetWinner records the winner from the current score. A winner, once
// recorded, is never cleared; ties leave the game undecided.
func (g *Game) SetWinner() {
	if g.WinningTeamID != nil {
		return
	}
	switch {
	case g.HomeGoals > g.AwayGoals:
		id := g.HomeTeam.ID
		g.WinningTeamID = &id
	case g.AwayGoals > g.HomeGoals:
		id := g.AwayTeam.ID
		g.WinningTeamID = &id
	}
}

// SnapshotDate is the day whose standings describe the teams before the game.
func (g *Game) SnapshotDate() time.Time {
	return DateOnly(g.Date).AddDate(0, 0, -1)
}

// Weekday returns the weekday index with Monday as 0.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}
