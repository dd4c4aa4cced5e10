package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestVersion(t *testing.T) {
	Convey("Given model versions", t, func() {
		Convey("When parsing a well formed version", func() {
			v, err := ParseVersion("1.9")
			So(err, ShouldBeNil)
			So(v, ShouldResemble, Version{Major: 1, Minor: 9})

			Convey("Then the next version bumps minor numerically", func() {
				So(v.Next().String(), ShouldEqual, "1.10")
				So(v.Less(v.Next()), ShouldBeTrue)
				So(Version{2, 0}.Less(Version{1, 99}), ShouldBeFalse)
			})
		})

		Convey("When parsing malformed versions", func() {
			for _, s := range []string{"", "1", "a.b", "1.-2", "1.2.x"} {
				_, err := ParseVersion(s)
				So(errors.Is(err, ErrData), ShouldBeTrue)
			}
		})

		Convey("The first version is 1.0", func() {
			So(FirstVersion.String(), ShouldEqual, "1.0")
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given wrapped errors", t, func() {
		cause := errors.New("disk full")
		err := Wrap("artifact.Save", ErrStorage, cause)

		So(errors.Is(err, ErrStorage), ShouldBeTrue)
		So(errors.Is(err, cause), ShouldBeTrue)
		So(err.Error(), ShouldEqual, "artifact.Save: storage error: disk full")
		So(Wrap("x", ErrStorage, nil), ShouldBeNil)

		k := Kind("app.Predict", ErrModelNotFound, "")
		So(errors.Is(k, ErrModelNotFound), ShouldBeTrue)
		So(k.Error(), ShouldContainSubstring, "train a model first")
	})
}

func TestPayloadDecoding(t *testing.T) {
	Convey("Given standings payloads", t, func() {
		Convey("Missing keys decode to zero", func() {
			p, err := DecodeStandings(json.RawMessage(`{"wins": 4}`))
			So(err, ShouldBeNil)
			So(p.Wins, ShouldEqual, 4)
			So(p.GamesPlayed, ShouldEqual, 0)
			So(p.RoadGoalDifferential, ShouldEqual, 0)
		})

		Convey("Team abbreviations decode from string or object", func() {
			a, err := DecodeStandings(json.RawMessage(`{"teamAbbrev": {"default": "WSH"}}`))
			So(err, ShouldBeNil)
			So(string(a.TeamAbbrev), ShouldEqual, "WSH")
			b, err := DecodeStandings(json.RawMessage(`{"teamAbbrev": "TOR"}`))
			So(err, ShouldBeNil)
			So(string(b.TeamAbbrev), ShouldEqual, "TOR")
		})

		Convey("Empty payloads decode to a zero row", func() {
			p, err := DecodeStandings(nil)
			So(err, ShouldBeNil)
			So(p, ShouldResemble, StandingsPayload{})
			var td *TeamData
			So(td.Standings(), ShouldResemble, StandingsPayload{})
		})
	})

	Convey("Given game payloads", t, func() {
		p, _ := DecodeGame(json.RawMessage(`{"gameType": 3, "gameTypeId": 2}`))
		So(p.Type(), ShouldEqual, Playoffs)
		p, _ = DecodeGame(json.RawMessage(`{"gameTypeId": 2}`))
		So(p.Type(), ShouldEqual, RegularSeason)
		p, _ = DecodeGame(nil)
		So(p.Type(), ShouldEqual, Preseason)
	})
}

func TestGame(t *testing.T) {
	Convey("Given a game", t, func() {
		g := &Game{
			HomeTeam: Team{ID: 15},
			AwayTeam: Team{ID: 10},
			Date:     time.Date(2023, time.October, 14, 19, 0, 0, 0, time.UTC),
		}

		Convey("Weekday counts Monday as zero", func() {
			So(Weekday(g.Date), ShouldEqual, 5)
			So(Weekday(time.Date(2023, time.October, 16, 0, 0, 0, 0, time.UTC)), ShouldEqual, 0)
		})

		Convey("The snapshot date is the previous day", func() {
			So(g.SnapshotDate(), ShouldEqual, time.Date(2023, time.October, 13, 0, 0, 0, 0, time.UTC))
		})

		Convey("A winner, once set, is never cleared", func() {
			g.HomeGoals, g.AwayGoals = 3, 1
			g.SetWinner()
			So(g.HomeWin(), ShouldBeTrue)
			g.HomeGoals, g.AwayGoals = 0, 0
			g.SetWinner()
			So(g.Decided(), ShouldBeTrue)
			So(*g.WinningTeamID, ShouldEqual, 15)
		})

		Convey("A tie leaves the game undecided", func() {
			g.HomeGoals, g.AwayGoals = 2, 2
			g.SetWinner()
			So(g.Decided(), ShouldBeFalse)
		})
	})
}

func TestCompletionPolicies(t *testing.T) {
	Convey("Given completion policies", t, func() {
		today := time.Date(2023, time.October, 20, 0, 0, 0, 0, time.UTC)
		past := time.Date(2023, time.October, 14, 0, 0, 0, 0, time.UTC)

		Convey("Score completion needs a past date and a non 0-0 score", func() {
			p := ScoreCompletion{}
			So(p.IsDecided(&Game{Date: past, HomeGoals: 2, AwayGoals: 1}, today), ShouldBeTrue)
			So(p.IsDecided(&Game{Date: past}, today), ShouldBeFalse)
			So(p.IsDecided(&Game{Date: today, HomeGoals: 2}, today), ShouldBeFalse)
		})

		Convey("Final state completion trusts the upstream state", func() {
			p := FinalStateCompletion{}
			So(p.IsDecided(&Game{State: "OFF", HomeGoals: 1}, today), ShouldBeTrue)
			So(p.IsDecided(&Game{State: "LIVE", HomeGoals: 1}, today), ShouldBeFalse)
		})

		Convey("Policies resolve by name", func() {
			p, ok := PolicyByName("final_state")
			So(ok, ShouldBeTrue)
			So(p.Name(), ShouldEqual, "final_state")
			_, ok = PolicyByName("coin_flip")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestContributionsJSON(t *testing.T) {
	Convey("Given ranked contributions", t, func() {
		c := Contributions{
			{Feature: "home_team", Value: 7, Importance: -0.3},
			{Feature: "home_team_win_percentage", Value: 0.7, Importance: 0.1},
		}
		b, err := json.Marshal(c)
		So(err, ShouldBeNil)
		So(string(b), ShouldEqual, `{"home_team":[7,-0.3],"home_team_win_percentage":[0.7,0.1]}`)

		var back Contributions
		So(json.Unmarshal(b, &back), ShouldBeNil)
		So(back[0].Feature, ShouldEqual, "home_team")
		So(back[1].Value, ShouldEqual, 0.7)
	})
}
