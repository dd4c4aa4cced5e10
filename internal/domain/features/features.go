// Package features turns a game and its two pre-game standings snapshots
// into a flat, named feature row.
package features

import (
	"github.com/okian/puckcast/internal/domain/model"
)

// Categorical feature names.
const (
	HomeTeam      = "home_team"
	AwayTeam      = "away_team"
	GameType      = "game_type"
	GameMonth     = "game_month"
	GameDayOfWeek = "game_day_of_week"
)

// Label is the target column name.
const Label = "home_team_win"

var categorical = []string{HomeTeam, AwayTeam, GameType, GameMonth, GameDayOfWeek}

// CategoricalNames returns the categorical feature names in extraction order.
func CategoricalNames() []string {
	return append([]string(nil), categorical...)
}

// IsCategorical reports whether name is a categorical feature.
func IsCategorical(name string) bool {
	for _, c := range categorical {
		if c == name {
			return true
		}
	}
	return false
}

// counts is one granularity's slice of a standings row.
type counts struct {
	gp, wins, losses, otLosses, goalsFor, goalsAgainst, goalDiff int
}

type granularity struct {
	// label is the name infix; empty for season-to-date.
	label  string
	phrase string
	pick   func(p model.StandingsPayload) counts
}

func seasonCounts(p model.StandingsPayload) counts {
	return counts{p.GamesPlayed, p.Wins, p.Losses, p.OTLosses, p.GoalFor, p.GoalAgainst, p.GoalDifferential}
}

func l10Counts(p model.StandingsPayload) counts {
	return counts{p.L10GamesPlayed, p.L10Wins, p.L10Losses, p.L10OTLosses, p.L10GoalsFor, p.L10GoalsAgainst, p.L10GoalDifferential}
}

func homeCounts(p model.StandingsPayload) counts {
	return counts{p.HomeGamesPlayed, p.HomeWins, p.HomeLosses, p.HomeOTLosses, p.HomeGoalsFor, p.HomeGoalsAgainst, p.HomeGoalDifferential}
}

func roadCounts(p model.StandingsPayload) counts {
	return counts{p.RoadGamesPlayed, p.RoadWins, p.RoadLosses, p.RoadOTLosses, p.RoadGoalsFor, p.RoadGoalsAgainst, p.RoadGoalDifferential}
}

type side struct {
	prefix string
	grans  []granularity
}

// The home side reads its home split and the away side its road split.
var sides = []side{
	{prefix: HomeTeam, grans: []granularity{
		{label: "", phrase: "", pick: seasonCounts},
		{label: "l10", phrase: "In the last 10 games, ", pick: l10Counts},
		{label: "home", phrase: "At home, ", pick: homeCounts},
	}},
	{prefix: AwayTeam, grans: []granularity{
		{label: "", phrase: "", pick: seasonCounts},
		{label: "l10", phrase: "In the last 10 games, ", pick: l10Counts},
		{label: "road", phrase: "On the road, ", pick: roadCounts},
	}},
}

type metric struct {
	suffix  string
	percent bool
	// verb completes "The <team> ..." with a %.2f placeholder.
	verb string
	raw  func(c counts) int
}

var metrics = []metric{
	{"win_percentage", true, "have a win percentage of %.2f%%", func(c counts) int { return c.wins }},
	{"loss_percentage", true, "have a regulation loss percentage of %.2f%%", func(c counts) int { return c.losses }},
	{"ot_loss_percentage", true, "have an overtime loss percentage of %.2f%%", func(c counts) int { return c.otLosses }},
	{"goals_for_per_game", false, "score an average of %.2f goals per game", func(c counts) int { return c.goalsFor }},
	{"goals_against_per_game", false, "allow an average of %.2f goals against per game", func(c counts) int { return c.goalsAgainst }},
	{"goal_differential_per_game", false, "have a goal differential of %.2f per game", func(c counts) int { return c.goalDiff }},
}

func featureName(prefix string, g granularity, m metric) string {
	if g.label == "" {
		return prefix + "_" + m.suffix
	}
	return prefix + "_" + g.label + "_" + m.suffix
}

// rate divides by the games played floor of one.
func rate(n, gp int) float64 {
	return float64(n) / float64(max(1, gp))
}

var numericNames = func() []string {
	var out []string
	for _, s := range sides {
		for _, g := range s.grans {
			for _, m := range metrics {
				out = append(out, featureName(s.prefix, g, m))
			}
		}
	}
	return out
}()

// NumericNames returns the numeric feature names in extraction order.
func NumericNames() []string {
	return append([]string(nil), numericNames...)
}

// Names returns every feature name, categorical first.
func Names() []string {
	return append(CategoricalNames(), numericNames...)
}

// Row is one extracted game.
type Row struct {
	Categorical map[string]int
	Numeric     map[string]float64
	HomeWin     bool
}

// Target returns the label as 0 or 1.
func (r Row) Target() int {
	if r.HomeWin {
		return 1
	}
	return 0
}

// Extract derives the feature row for g. Both snapshots must be resolved;
// missing keys inside them read as zero.
func Extract(g *model.Game) (Row, error) {
	const op = "features.Extract"
	if g == nil || !g.HasSnapshots() {
		return Row{}, model.Kind(op, model.ErrData, "game is missing a pre-game snapshot")
	}

	row := Row{
		Categorical: map[string]int{
			HomeTeam:      g.HomeTeam.FranchiseID,
			AwayTeam:      g.AwayTeam.FranchiseID,
			GameType:      int(gameType(g)),
			GameMonth:     int(g.Date.Month()),
			GameDayOfWeek: model.Weekday(g.Date),
		},
		Numeric: make(map[string]float64, len(numericNames)),
		HomeWin: g.HomeWin(),
	}

	payloads := [2]model.StandingsPayload{g.HomeTeamData.Standings(), g.AwayTeamData.Standings()}
	for i, s := range sides {
		for _, gr := range s.grans {
			c := gr.pick(payloads[i])
			for _, m := range metrics {
				row.Numeric[featureName(s.prefix, gr, m)] = rate(m.raw(c), c.gp)
			}
		}
	}
	return row, nil
}

func gameType(g *model.Game) model.GameType {
	if g.Type != 0 {
		return g.Type
	}
	p, err := model.DecodeGame(g.Payload)
	if err != nil {
		return model.Preseason
	}
	return p.Type()
}
