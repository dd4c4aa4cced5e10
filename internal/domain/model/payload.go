package model

import (
	"encoding/json"
)

// LocalizedString is the upstream {"default": "..."} wrapper. Older
// payloads send a bare string instead.
type LocalizedString string

// UnmarshalJSON accepts either a bare string or an object with "default".
func (s *LocalizedString) UnmarshalJSON(b []byte) error {
	var plain string
	if err := json.Unmarshal(b, &plain); err == nil {
		*s = LocalizedString(plain)
		return nil
	}
	var obj struct {
		Default string `json:"default"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*s = LocalizedString(obj.Default)
	return nil
}

// StandingsPayload is one team's row of the upstream standings response.
// Every counter is optional upstream; a missing key decodes to zero.
type StandingsPayload struct {
	TeamAbbrev LocalizedString `json:"teamAbbrev"`
	TeamName   LocalizedString `json:"teamName"`
	SeasonID   int             `json:"seasonId"`

	GamesPlayed      int `json:"gamesPlayed"`
	Wins             int `json:"wins"`
	Losses           int `json:"losses"`
	OTLosses         int `json:"otLosses"`
	Points           int `json:"points"`
	GoalFor          int `json:"goalFor"`
	GoalAgainst      int `json:"goalAgainst"`
	GoalDifferential int `json:"goalDifferential"`

	L10GamesPlayed      int `json:"l10GamesPlayed"`
	L10Wins             int `json:"l10Wins"`
	L10Losses           int `json:"l10Losses"`
	L10OTLosses         int `json:"l10OtLosses"`
	L10GoalsFor         int `json:"l10GoalsFor"`
	L10GoalsAgainst     int `json:"l10GoalsAgainst"`
	L10GoalDifferential int `json:"l10GoalDifferential"`

	HomeGamesPlayed      int `json:"homeGamesPlayed"`
	HomeWins             int `json:"homeWins"`
	HomeLosses           int `json:"homeLosses"`
	HomeOTLosses         int `json:"homeOtLosses"`
	HomeGoalsFor         int `json:"homeGoalsFor"`
	HomeGoalsAgainst     int `json:"homeGoalsAgainst"`
	HomeGoalDifferential int `json:"homeGoalDifferential"`

	RoadGamesPlayed      int `json:"roadGamesPlayed"`
	RoadWins             int `json:"roadWins"`
	RoadLosses           int `json:"roadLosses"`
	RoadOTLosses         int `json:"roadOtLosses"`
	RoadGoalsFor         int `json:"roadGoalsFor"`
	RoadGoalsAgainst     int `json:"roadGoalsAgainst"`
	RoadGoalDifferential int `json:"roadGoalDifferential"`

	StreakCode  string `json:"streakCode"`
	StreakCount int    `json:"streakCount"`
}

// DecodeStandings decodes a raw standings row. Empty input is a zero row.
func DecodeStandings(raw json.RawMessage) (StandingsPayload, error) {
	var p StandingsPayload
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}
	err := json.Unmarshal(raw, &p)
	return p, err
}

// PayloadTeam is one side of an upstream game.
type PayloadTeam struct {
	ID     int             `json:"id"`
	Abbrev string          `json:"abbrev"`
	Name   LocalizedString `json:"placeName"`
	Score  int             `json:"score"`
}

// GamePayload is the subset of the upstream game object the service reads.
type GamePayload struct {
	ID           int64       `json:"id"`
	Season       int         `json:"season"`
	GameType     int         `json:"gameType"`
	GameTypeID   int         `json:"gameTypeId"`
	GameDate     string      `json:"gameDate"`
	StartTimeUTC string      `json:"startTimeUTC"`
	GameState    string      `json:"gameState"`
	HomeTeam     PayloadTeam `json:"homeTeam"`
	AwayTeam     PayloadTeam `json:"awayTeam"`
	GameOutcome  struct {
		LastPeriodType string `json:"lastPeriodType"`
	} `json:"gameOutcome"`
}

// Type returns the game type code, preferring gameType over the older
// gameTypeId key and defaulting to preseason.
func (p GamePayload) Type() GameType {
	switch {
	case p.GameType > 0:
		return GameType(p.GameType)
	case p.GameTypeID > 0:
		return GameType(p.GameTypeID)
	default:
		return Preseason
	}
}

// DecodeGame decodes a raw game payload. Empty input is a zero payload.
func DecodeGame(raw json.RawMessage) (GamePayload, error) {
	var p GamePayload
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}
	err := json.Unmarshal(raw, &p)
	return p, err
}
