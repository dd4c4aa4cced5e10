package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/puckcast/internal/adapters/nhl"
	"github.com/okian/puckcast/internal/adapters/repository"
	"github.com/okian/puckcast/internal/domain/model"
)

var errUpstreamDown = errors.New("upstream down")

var testTeams = []model.Team{
	{ID: 101, FranchiseID: 1, Name: "Alpha", Abbreviation: "AAA"},
	{ID: 102, FranchiseID: 2, Name: "Bravo", Abbreviation: "BBB"},
	{ID: 103, FranchiseID: 3, Name: "Charlie", Abbreviation: "CCC"},
	{ID: 104, FranchiseID: 4, Name: "Delta", Abbreviation: "DDD"},
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func standingsJSON(abbrev string, gp, wins int) []byte {
	return []byte(fmt.Sprintf(`{"teamAbbrev":{"default":%q},"gamesPlayed":%d,"wins":%d,"losses":%d}`, abbrev, gp, wins, gp-wins))
}

func standing(abbrev string, gp, wins int) nhl.Standing {
	raw := standingsJSON(abbrev, gp, wins)
	p, _ := model.DecodeStandings(raw)
	return nhl.Standing{Abbrev: abbrev, Payload: p, Raw: raw}
}

type fakeUpstream struct {
	mu             sync.Mutex
	teams          []nhl.TeamInfo
	schedule       map[string][]nhl.ScheduledGame
	standings      map[string][]nhl.Standing
	failStandings  map[string]bool
	standingsCalls int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		schedule:      make(map[string][]nhl.ScheduledGame),
		standings:     make(map[string][]nhl.Standing),
		failStandings: make(map[string]bool),
	}
}

func (f *fakeUpstream) Teams(context.Context) ([]nhl.TeamInfo, error) {
	return f.teams, nil
}

func (f *fakeUpstream) Schedule(_ context.Context, date time.Time) ([]nhl.ScheduledGame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedule[date.Format(time.DateOnly)], nil
}

func (f *fakeUpstream) Standings(_ context.Context, date time.Time) ([]nhl.Standing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.standingsCalls++
	key := date.Format(time.DateOnly)
	if f.failStandings[key] {
		return nil, model.Wrap("fake.Standings", model.ErrUpstreamFetch, errUpstreamDown)
	}
	return f.standings[key], nil
}

func scheduled(id int64, season int, gameType int, date string, home, away model.Team, hs, as int, state string) nhl.ScheduledGame {
	raw := []byte(fmt.Sprintf(`{"id":%d,"season":%d,"gameType":%d,"gameDate":%q,"gameState":%q,`+
		`"homeTeam":{"id":%d,"abbrev":%q,"score":%d},"awayTeam":{"id":%d,"abbrev":%q,"score":%d}}`,
		id, season, gameType, date, state, home.ID, home.Abbreviation, hs, away.ID, away.Abbreviation, as))
	p, _ := model.DecodeGame(raw)
	return nhl.ScheduledGame{Payload: p, Raw: raw}
}

// seedSeason stores n decided games of season 20232024 whose outcome
// follows the teams' win percentages.
func seedSeason(ctx context.Context, st *repository.MemoryStore, n int) error {
	if err := st.UpsertFranchises(ctx, []model.Franchise{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}); err != nil {
		return err
	}
	if err := st.UpsertTeams(ctx, testTeams); err != nil {
		return err
	}

	start := day(2023, time.October, 1)
	for i := 0; i < n; i++ {
		home, away := testTeams[i%4], testTeams[(i+1)%4]
		date := start.AddDate(0, 0, i)
		hw, aw := (i*7)%11, (i*3+5)%11
		hd := &model.TeamData{TeamID: home.ID, Date: date.AddDate(0, 0, -1), Payload: standingsJSON(home.Abbreviation, 10, hw)}
		ad := &model.TeamData{TeamID: away.ID, Date: date.AddDate(0, 0, -1), Payload: standingsJSON(away.Abbreviation, 10, aw)}
		if err := st.CreateTeamData(ctx, []*model.TeamData{hd, ad}); err != nil {
			return err
		}
		g := &model.Game{
			ID: int64(2023020001 + i), Season: 20232024, HomeTeam: home, AwayTeam: away,
			Date: date, Type: model.RegularSeason, HomeGoals: 1, AwayGoals: 3,
			HomeTeamData: hd, AwayTeamData: ad,
		}
		if hw >= aw {
			g.HomeGoals, g.AwayGoals = 4, 2
		}
		g.SetWinner()
		if err := st.CreateGames(ctx, []*model.Game{g}); err != nil {
			return err
		}
	}
	return nil
}

type refusingLock struct{}

func (refusingLock) Acquire(context.Context) (func(context.Context) error, error) {
	return nil, errors.New("held elsewhere")
}
