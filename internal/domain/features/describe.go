package features

import (
	"fmt"
	"sync"

	"github.com/okian/puckcast/internal/domain/model"
)

var weekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

type describer func(g *model.Game) string

var describers = sync.OnceValue(func() map[string]describer {
	d := map[string]describer{
		HomeTeam: func(g *model.Game) string { return fmt.Sprintf("The %s are the home team", g.HomeTeam.Name) },
		AwayTeam: func(g *model.Game) string { return fmt.Sprintf("The %s are the away team", g.AwayTeam.Name) },
		GameType: func(g *model.Game) string { return fmt.Sprintf("The game is a %s game", gameType(g)) },
		GameMonth: func(g *model.Game) string {
			return fmt.Sprintf("The game is in %s", g.Date.Month())
		},
		GameDayOfWeek: func(g *model.Game) string {
			return fmt.Sprintf("The game is on a %s", weekdayNames[model.Weekday(g.Date)])
		},
	}
	for i, s := range sides {
		for _, gr := range s.grans {
			for _, m := range metrics {
				d[featureName(s.prefix, gr, m)] = numericDescriber(i, gr, m)
			}
		}
	}
	return d
})

// numericDescriber binds one (side, granularity, metric) triple. Each call
// gets its own copies so no entry shares loop state.
func numericDescriber(sideIdx int, gr granularity, m metric) describer {
	return func(g *model.Game) string {
		team, data := g.HomeTeam, g.HomeTeamData
		if sideIdx == 1 {
			team, data = g.AwayTeam, g.AwayTeamData
		}
		c := gr.pick(data.Standings())
		v := rate(m.raw(c), c.gp)
		if m.percent {
			v *= 100
		}
		subject := "The " + team.Name
		if gr.phrase != "" {
			subject = gr.phrase + "the " + team.Name
		}
		return subject + " " + fmt.Sprintf(m.verb, v)
	}
}

// Describe renders a human-readable sentence for a feature of g.
func Describe(name string, g *model.Game) (string, bool) {
	d, ok := describers()[name]
	if !ok || g == nil {
		return "", false
	}
	return d(g), true
}
