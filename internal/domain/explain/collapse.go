package explain

import (
	"regexp"
	"strings"

	"github.com/okian/puckcast/internal/domain/encoding"
	"github.com/okian/puckcast/internal/domain/features"
	"github.com/okian/puckcast/internal/domain/model"
)

var oneHotToken = regexp.MustCompile(`^(home_team|away_team|game_type|game_day_of_week|game_month)_\d+$`)

// Collapse maps encoded conditions back onto source feature names. A one-hot
// token collapses to its categorical family and takes the level that is hot
// in this instance, never the level named by the token. Each feature keeps
// its largest absolute weight; the top k survive.
func Collapse(conds []Condition, instance []float64, columns []string, row features.Row, k int) model.Contributions {
	best := make(map[string]model.Contribution)
	for _, c := range conds {
		name, value, ok := resolve(c.Text, instance, columns, row)
		if !ok {
			continue
		}
		if prev, seen := best[name]; seen && abs(prev.Importance) >= abs(c.Weight) {
			continue
		}
		best[name] = model.Contribution{Feature: name, Value: value, Importance: c.Weight}
	}

	out := make(model.Contributions, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	model.SortContributions(out)
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

func resolve(text string, instance []float64, columns []string, row features.Row) (string, float64, bool) {
	for _, tok := range strings.Fields(text) {
		if oneHotToken.MatchString(tok) {
			family, _, _ := encoding.Family(tok)
			return family, float64(hotLevel(family, instance, columns, row)), true
		}
		if v, ok := row.Numeric[tok]; ok {
			return tok, v, true
		}
	}
	return "", 0, false
}

// hotLevel reads the level set in the instance. A level dropped at encoding
// time has no hot column, so the row's own value is used.
func hotLevel(family string, instance []float64, columns []string, row features.Row) int {
	for j, col := range columns {
		if instance[j] != 1 {
			continue
		}
		if f, lvl, ok := encoding.Family(col); ok && f == family {
			return lvl
		}
	}
	return row.Categorical[family]
}

// Categorize sums column importances per source feature, folding one-hot
// columns into their categorical family.
func Categorize(columns []string, importances []float64) map[string]float64 {
	out := make(map[string]float64)
	for j, col := range columns {
		if j >= len(importances) {
			break
		}
		name := col
		if oneHotToken.MatchString(col) {
			name, _, _ = encoding.Family(col)
		}
		out[name] += importances[j]
	}
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
