package model

import (
	"strings"
	"time"
)

// CompletionPolicy decides whether a game's outcome is final.
type CompletionPolicy interface {
	Name() string
	IsDecided(g *Game, today time.Time) bool
}

// ScoreCompletion treats a past game with any goals scored as decided.
// A 0-0 score reads as "not yet confirmed", which also rejects a genuine
// scoreless final; FinalStateCompletion avoids that ambiguity.
type ScoreCompletion struct{}

// Name implements CompletionPolicy.
func (ScoreCompletion) Name() string { return "score" }

// IsDecided implements CompletionPolicy.
func (ScoreCompletion) IsDecided(g *Game, today time.Time) bool {
	if !DateOnly(g.Date).Before(DateOnly(today)) {
		return false
	}
	return g.HomeGoals != 0 || g.AwayGoals != 0
}

// FinalStateCompletion trusts the upstream game state only.
type FinalStateCompletion struct{}

// Name implements CompletionPolicy.
func (FinalStateCompletion) Name() string { return "final_state" }

// IsDecided implements CompletionPolicy.
func (FinalStateCompletion) IsDecided(g *Game, _ time.Time) bool {
	switch strings.ToUpper(g.State) {
	case "OFF", "FINAL":
		return g.HomeGoals != g.AwayGoals
	default:
		return false
	}
}

// PolicyByName maps a configured policy name to its implementation.
func PolicyByName(name string) (CompletionPolicy, bool) {
	switch name {
	case "", "score":
		return ScoreCompletion{}, true
	case "final_state":
		return FinalStateCompletion{}, true
	default:
		return nil, false
	}
}
