package explain

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/puckcast/internal/domain/features"
)

var columns = []string{"away_team_win_percentage", "home_team_1", "home_team_7", "home_team_win_percentage"}

func reference(n int) [][]float64 {
	r := rand.New(rand.NewPCG(3, 4))
	out := make([][]float64, n)
	for i := range out {
		hot := r.IntN(2)
		out[i] = []float64{r.Float64(), float64(1 - hot), float64(hot), r.Float64()}
	}
	return out
}

// homeStrength depends on the home win percentage column only.
func homeStrength(x []float64) float64 { return x[3] }

func TestExplain(t *testing.T) {
	ctx := context.Background()

	Convey("Given an explainer over a reference matrix", t, func() {
		e, err := New(reference(400), columns, WithSamples(1500), WithSeed(42))
		So(err, ShouldBeNil)
		instance := []float64{0.3, 0, 1, 0.7}

		Convey("When explaining an instance", func() {
			conds, err := e.Explain(ctx, instance, homeStrength)
			So(err, ShouldBeNil)

			Convey("Then the driving column ranks first with a positive weight", func() {
				So(len(conds), ShouldEqual, len(columns))
				So(conds[0].Column, ShouldEqual, 3)
				So(conds[0].Weight, ShouldBeGreaterThan, 0)
				So(conds[0].Text, ShouldContainSubstring, "home_team_win_percentage")
			})

			Convey("Then conditions use the quartile templates", func() {
				for _, c := range conds {
					ok := strings.Contains(c.Text, " <= ") || strings.Contains(c.Text, " > ")
					So(ok, ShouldBeTrue)
				}
			})

			Convey("Then a second call is identical", func() {
				again, err := e.Explain(ctx, instance, homeStrength)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, conds)
			})
		})

		Convey("When fewer features are requested than columns", func() {
			e2, _ := New(reference(400), columns, WithSamples(1000), WithFeatures(2))
			conds, err := e2.Explain(ctx, instance, homeStrength)
			So(err, ShouldBeNil)
			So(len(conds), ShouldEqual, 2)
		})

		Convey("When the instance has the wrong width", func() {
			_, err := e.Explain(ctx, []float64{1}, homeStrength)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given mismatched column names", t, func() {
		_, err := New(reference(10), columns[:2])
		So(err, ShouldNotBeNil)
		_, err = New(nil, columns)
		So(err, ShouldNotBeNil)
	})
}

func TestCollapse(t *testing.T) {
	Convey("Given conditions over one-hot columns of franchise 7", t, func() {
		instance := []float64{0.3, 0, 1, 0.7}
		row := features.Row{
			Categorical: map[string]int{features.HomeTeam: 7},
			Numeric:     map[string]float64{"home_team_win_percentage": 0.7, "away_team_win_percentage": 0.3},
		}
		conds := []Condition{
			{Column: 1, Text: "home_team_1 <= 0.00", Weight: 0.02},
			{Column: 2, Text: "home_team_7 > 0.00", Weight: -0.05},
			{Column: 3, Text: "0.50 < home_team_win_percentage <= 0.75", Weight: 0.2},
			{Column: 0, Text: "away_team_win_percentage <= 0.30", Weight: 0.01},
		}

		out := Collapse(conds, instance, columns, row, 5)

		Convey("Then all home_team tokens collapse to one entry valued 7", func() {
			var homes int
			for _, c := range out {
				if c.Feature == features.HomeTeam {
					homes++
					So(c.Value, ShouldEqual, 7)
					So(c.Importance, ShouldEqual, -0.05)
				}
			}
			So(homes, ShouldEqual, 1)
		})

		Convey("Then entries are ranked by absolute weight", func() {
			So(len(out), ShouldEqual, 3)
			So(out[0].Feature, ShouldEqual, "home_team_win_percentage")
			So(out[0].Value, ShouldEqual, 0.7)
			So(out[1].Feature, ShouldEqual, features.HomeTeam)
			So(out[2].Feature, ShouldEqual, "away_team_win_percentage")
		})

		Convey("Then k truncates", func() {
			So(len(Collapse(conds, instance, columns, row, 1)), ShouldEqual, 1)
		})
	})

	Convey("Given an instance whose franchise was dropped at encoding", t, func() {
		row := features.Row{Categorical: map[string]int{features.HomeTeam: 42}}
		out := Collapse([]Condition{{Text: "home_team_1 <= 0.00", Weight: 0.1}}, []float64{0, 0, 0, 0}, columns, row, 5)
		So(out[0].Value, ShouldEqual, 42)
	})
}

func TestCategorize(t *testing.T) {
	Convey("Given column importances", t, func() {
		got := Categorize(columns, []float64{0.1, 0.2, 0.3, 0.4})
		So(got[features.HomeTeam], ShouldAlmostEqual, 0.5)
		So(got["home_team_win_percentage"], ShouldEqual, 0.4)
		So(got["away_team_win_percentage"], ShouldEqual, 0.1)
		So(len(got), ShouldEqual, 3)
	})
}
