package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/puckcast/internal/domain/encoding"
	"github.com/okian/puckcast/internal/domain/forest"
	"github.com/okian/puckcast/internal/domain/model"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a file store in a temp dir", t, func() {
		dir := t.TempDir()
		s, err := NewFileStore(filepath.Join(dir, "models"))
		So(err, ShouldBeNil)

		X := [][]float64{{0}, {1}, {0.1}, {0.9}}
		y := []int{0, 1, 0, 1}
		f, err := forest.Fit(ctx, X, y, forest.WithTrees(5))
		So(err, ShouldBeNil)

		a := &Artifact{
			Name:       "Random Forest",
			Version:    "1.10",
			Seasons:    []int{20222023},
			Columns:    []string{"home_team_win_percentage"},
			Vocabulary: encoding.NewVocabulary([]int{1, 2}),
			Forest:     f,
		}

		Convey("When saved", func() {
			path, err := s.Save(ctx, a)
			So(err, ShouldBeNil)

			Convey("Then the path follows the name and version", func() {
				So(filepath.Base(path), ShouldEqual, "random-forest-v-1-10.gob")
			})

			Convey("Then loading returns an equivalent model", func() {
				got, err := s.Load(ctx, path)
				So(err, ShouldBeNil)
				So(got.Version, ShouldEqual, "1.10")
				So(got.Vocabulary, ShouldResemble, a.Vocabulary)
				So(got.Forest.Proba([]float64{0.95}), ShouldEqual, f.Proba([]float64{0.95}))
			})

			Convey("Then the same version is never overwritten", func() {
				_, err := s.Save(ctx, a)
				So(errors.Is(err, model.ErrStorage), ShouldBeTrue)
			})

			Convey("Then no temp files are left behind", func() {
				entries, _ := os.ReadDir(filepath.Dir(path))
				So(len(entries), ShouldEqual, 1)
			})
		})

		Convey("When loading a missing artifact", func() {
			_, err := s.Load(ctx, filepath.Join(dir, "nope.gob"))
			So(errors.Is(err, model.ErrModelNotFound), ShouldBeTrue)
		})

		Convey("Slugs are lowercase and dashed", func() {
			So(Slug("  Random Forest!! v2 "), ShouldEqual, "random-forest-v2")
		})
	})
}
