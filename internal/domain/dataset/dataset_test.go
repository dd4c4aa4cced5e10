package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/puckcast/internal/domain/model"
)

type fakeGames struct {
	games []*model.Game
	err   error
}

func (f *fakeGames) GamesBySeasons(_ context.Context, seasons []int) ([]*model.Game, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.Game
	for _, g := range f.games {
		for _, s := range seasons {
			if g.Season == s {
				out = append(out, g)
			}
		}
	}
	return out, nil
}

func (f *fakeGames) ParticipatingFranchises(context.Context) ([]int, error) {
	var out []int
	for _, g := range f.games {
		out = append(out, g.HomeTeam.FranchiseID, g.AwayTeam.FranchiseID)
	}
	return out, f.err
}

func game(id int64, season int, winnerHome *bool, withSnapshots bool) *model.Game {
	g := &model.Game{
		ID:       id,
		Season:   season,
		HomeTeam: model.Team{ID: 1, FranchiseID: 1},
		AwayTeam: model.Team{ID: 2, FranchiseID: 2},
		Date:     time.Date(2023, time.January, 1+int(id%28), 0, 0, 0, 0, time.UTC),
		Type:     model.RegularSeason,
	}
	if winnerHome != nil {
		w := 2
		if *winnerHome {
			w = 1
		}
		g.WinningTeamID = &w
	}
	if withSnapshots {
		payload := json.RawMessage(fmt.Sprintf(`{"gamesPlayed": 10, "wins": %d}`, id%10))
		g.HomeTeamData = &model.TeamData{Payload: payload}
		g.AwayTeamData = &model.TeamData{Payload: payload}
	}
	return g
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	yes, no := true, false

	Convey("Given stored games across seasons", t, func() {
		src := &fakeGames{games: []*model.Game{
			game(1, 20222023, &yes, true),
			game(2, 20222023, &no, true),
			game(3, 20222023, nil, true),
			game(4, 20222023, &yes, false),
			game(5, 20232024, &no, true),
			game(6, 20212022, &yes, true),
		}}
		b := NewBuilder(src)

		Convey("When building two seasons", func() {
			ds, err := b.Build(ctx, []int{20222023, 20232024})
			So(err, ShouldBeNil)

			Convey("Then only decided games with both snapshots are kept", func() {
				So(ds.Len(), ShouldEqual, 3)
				So(ds.Labels, ShouldResemble, []int{1, 0, 0})
				So(len(ds.Matrix.Rows), ShouldEqual, 3)
				So(len(ds.Matrix.Rows[0]), ShouldEqual, len(ds.Encoder.Columns()))
			})
		})

		Convey("When every game is undecided", func() {
			src := &fakeGames{games: []*model.Game{game(1, 2022, nil, true), game(2, 2023, nil, true)}}
			ds, err := NewBuilder(src).Build(ctx, []int{2022, 2023})
			So(err, ShouldBeNil)
			So(ds.Len(), ShouldEqual, 0)
		})

		Convey("When the repository fails", func() {
			_, err := NewBuilder(&fakeGames{err: errors.New("down")}).Build(ctx, []int{1})
			So(errors.Is(err, model.ErrStorage), ShouldBeTrue)
		})
	})
}

func TestSplit(t *testing.T) {
	ctx := context.Background()

	Convey("Given a dataset of twenty rows", t, func() {
		var games []*model.Game
		for i := int64(1); i <= 20; i++ {
			home := i%2 == 0
			games = append(games, game(i, 1, &home, true))
		}
		ds, err := NewBuilder(&fakeGames{games: games}).Build(ctx, []int{1})
		So(err, ShouldBeNil)

		s := ds.Split(0.2, 31)

		Convey("Then it holds out a fifth", func() {
			So(len(s.TrainX), ShouldEqual, 16)
			So(len(s.ValidX), ShouldEqual, 4)
			So(len(s.TrainY), ShouldEqual, 16)
			So(len(s.ValidY), ShouldEqual, 4)
		})

		Convey("Then the same seed gives the same partition", func() {
			So(ds.Split(0.2, 31), ShouldResemble, s)
		})
	})
}
