// Package correlation ranks encoded features by their standardized
// single-variable regression coefficient against the home-win label.
package correlation

import (
	"math"
	"sort"

	"github.com/sajari/regression"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/puckcast/internal/domain/model"
)

// Coefficient is one feature's standardized slope.
type Coefficient struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"coefficient"`
}

// Report lists coefficients in descending order and flags weak features:
// those whose absolute coefficient is below mean(|c|) - std(|c|).
type Report struct {
	Coefficients []Coefficient `json:"coefficients"`
	Threshold    float64       `json:"threshold"`
	Weak         []string      `json:"features_to_remove"`
}

// Analyze fits one regression per column. Constant columns score zero.
func Analyze(columns []string, rows [][]float64, labels []int) (*Report, error) {
	const op = "correlation.Analyze"
	if len(rows) < 3 || len(rows) != len(labels) {
		return nil, model.Kind(op, model.ErrData, "need at least three labelled rows, got %d", len(rows))
	}

	y := make([]float64, len(labels))
	for i, l := range labels {
		y[i] = float64(l)
	}
	ys, ok := standardize(y)
	if !ok {
		return nil, model.Kind(op, model.ErrData, "labels contain a single class")
	}

	rep := &Report{Coefficients: make([]Coefficient, 0, len(columns))}
	col := make([]float64, len(rows))
	for j, name := range columns {
		for i, r := range rows {
			col[i] = r[j]
		}
		xs, ok := standardize(col)
		if !ok {
			rep.Coefficients = append(rep.Coefficients, Coefficient{Feature: name})
			continue
		}

		var r regression.Regression
		r.SetObserved("home_team_win")
		r.SetVar(0, name)
		for i := range xs {
			r.Train(regression.DataPoint(ys[i], []float64{xs[i]}))
		}
		if err := r.Run(); err != nil {
			return nil, model.Wrap(op, model.ErrData, err)
		}
		c := r.GetCoeffs()
		v := 0.0
		if len(c) > 1 && !math.IsNaN(c[1]) {
			v = c[1]
		}
		rep.Coefficients = append(rep.Coefficients, Coefficient{Feature: name, Value: v})
	}

	sort.SliceStable(rep.Coefficients, func(a, b int) bool {
		return rep.Coefficients[a].Value > rep.Coefficients[b].Value
	})

	abs := make([]float64, len(rep.Coefficients))
	for i, c := range rep.Coefficients {
		abs[i] = math.Abs(c.Value)
	}
	mean, sd := stat.PopMeanStdDev(abs, nil)
	rep.Threshold = mean - sd
	for i, c := range rep.Coefficients {
		if abs[i] < rep.Threshold {
			rep.Weak = append(rep.Weak, c.Feature)
		}
	}
	return rep, nil
}

func standardize(x []float64) ([]float64, bool) {
	mean, sd := stat.MeanStdDev(x, nil)
	if sd == 0 || math.IsNaN(sd) {
		return nil, false
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - mean) / sd
	}
	return out, true
}
