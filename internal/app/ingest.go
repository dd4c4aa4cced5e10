package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/okian/puckcast/internal/adapters/nhl"
	"github.com/okian/puckcast/internal/domain/model"
	"github.com/okian/puckcast/pkg/logger"
)

// LoadTeams upserts every franchise and team the upstream lists.
func (s *Service) LoadTeams(ctx context.Context) (int, error) {
	const op = "service.LoadTeams"
	infos, err := s.upstream.Teams(ctx)
	if err != nil {
		return 0, err
	}

	seen := make(map[int]bool)
	var franchises []model.Franchise
	teams := make([]model.Team, 0, len(infos))
	for _, t := range infos {
		if t.FranchiseID == nil {
			continue
		}
		fid := *t.FranchiseID
		if !seen[fid] {
			seen[fid] = true
			franchises = append(franchises, model.Franchise{ID: fid, Name: t.FullName})
		}
		teams = append(teams, model.Team{ID: t.ID, FranchiseID: fid, Name: t.FullName, Abbreviation: t.TriCode})
	}
	if err := s.store.UpsertFranchises(ctx, franchises); err != nil {
		return 0, model.Wrap(op, model.ErrStorage, err)
	}
	if err := s.store.UpsertTeams(ctx, teams); err != nil {
		return 0, model.Wrap(op, model.ErrStorage, err)
	}
	s.logger.Info(ctx, "teams loaded", logger.Int("teams", len(teams)), logger.Int("franchises", len(franchises)))
	return len(teams), nil
}

// teamIndex looks teams up by id with an abbreviation fallback.
type teamIndex struct {
	byID     map[int]model.Team
	byAbbrev map[string]model.Team
}

func (s *Service) teamIndex(ctx context.Context) (*teamIndex, error) {
	teams, err := s.store.Teams(ctx)
	if err != nil {
		return nil, model.Wrap("service.teamIndex", model.ErrStorage, err)
	}
	idx := &teamIndex{byID: make(map[int]model.Team, len(teams)), byAbbrev: make(map[string]model.Team, len(teams))}
	for _, t := range teams {
		idx.byID[t.ID] = t
		idx.byAbbrev[t.Abbreviation] = t
	}
	return idx, nil
}

func (idx *teamIndex) lookup(p model.PayloadTeam) (model.Team, bool) {
	if t, ok := idx.byID[p.ID]; ok {
		return t, true
	}
	t, ok := idx.byAbbrev[p.Abbrev]
	return t, ok
}

// FetchGames stores the upstream schedule for date. Preseason games are
// skipped. Games the completion policy considers decided get a winner and
// both pre-game snapshots.
func (s *Service) FetchGames(ctx context.Context, date time.Time) (model.IngestResult, error) {
	const op = "service.FetchGames"
	var res model.IngestResult

	sched, err := s.upstream.Schedule(ctx, date)
	if err != nil {
		return res, err
	}
	idx, err := s.teamIndex(ctx)
	if err != nil {
		return res, err
	}

	today := model.DateOnly(s.now())
	batch := s.newSnapshotBatch()
	var create, update []*model.Game
	for _, sg := range sched {
		p := sg.Payload
		if p.Type() == model.Preseason {
			continue
		}
		home, okH := idx.lookup(p.HomeTeam)
		away, okA := idx.lookup(p.AwayTeam)
		if !okH || !okA {
			res.Skipped++
			s.logger.Warn(ctx, "game references unknown team; skipped",
				logger.Int64("game", p.ID), logger.String("home", p.HomeTeam.Abbrev), logger.String("away", p.AwayTeam.Abbrev))
			continue
		}
		day, err := model.ParseDate(p.GameDate)
		if err != nil {
			day = model.DateOnly(date)
		}

		g := &model.Game{
			ID: p.ID, Season: p.Season, HomeTeam: home, AwayTeam: away, Date: day,
			Type: p.Type(), State: p.GameState, Payload: sg.Raw,
		}
		stored, err := s.store.Game(ctx, p.ID)
		switch {
		case errors.Is(err, model.ErrNotFound):
			create = append(create, g)
		case err != nil:
			return res, model.Wrap(op, model.ErrStorage, err)
		default:
			g.WinningTeamID = stored.WinningTeamID
			g.HomeTeamData, g.AwayTeamData = stored.HomeTeamData, stored.AwayTeamData
			update = append(update, g)
		}

		g.HomeGoals, g.AwayGoals = p.HomeTeam.Score, p.AwayTeam.Score
		if s.policy.IsDecided(g, today) {
			g.SetWinner()
			batch.attach(ctx, g)
		}
	}

	if err := batch.flush(ctx, create, update); err != nil {
		return res, err
	}
	res.Created, res.Updated = len(create), len(update)
	s.logger.Info(ctx, "schedule ingested",
		logger.Time("date", date), logger.Int("created", res.Created),
		logger.Int("updated", res.Updated), logger.Int("skipped", res.Skipped))
	return res, nil
}

// UpdateCompletedGames re-reads the upstream schedule for every stored game
// without a winner dated before today, records the winner of the ones the
// completion policy considers decided and resolves their snapshots.
func (s *Service) UpdateCompletedGames(ctx context.Context, today time.Time) (model.IngestResult, error) {
	const op = "service.UpdateCompletedGames"
	var res model.IngestResult
	today = model.DateOnly(today)

	pending, err := s.store.UndecidedGamesBefore(ctx, today)
	if err != nil {
		return res, model.Wrap(op, model.ErrStorage, err)
	}

	byDate := make(map[time.Time][]*model.Game)
	for _, g := range pending {
		day := model.DateOnly(g.Date)
		byDate[day] = append(byDate[day], g)
	}
	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	batch := s.newSnapshotBatch()
	var update []*model.Game
	for _, day := range dates {
		sched, err := s.upstream.Schedule(ctx, day)
		if err != nil {
			res.Skipped += len(byDate[day])
			s.logger.Warn(ctx, "schedule fetch failed; games left undecided", logger.Time("date", day), logger.Error(err))
			continue
		}
		payloads := make(map[int64]nhl.ScheduledGame, len(sched))
		for _, sg := range sched {
			payloads[sg.Payload.ID] = sg
		}

		for _, g := range byDate[day] {
			sg, ok := payloads[g.ID]
			if !ok {
				res.Skipped++
				continue
			}
			g.HomeGoals, g.AwayGoals = sg.Payload.HomeTeam.Score, sg.Payload.AwayTeam.Score
			g.State = sg.Payload.GameState
			g.Type = sg.Payload.Type()
			g.Payload = sg.Raw
			if !s.policy.IsDecided(g, today) {
				continue
			}
			g.SetWinner()
			if !g.Decided() {
				continue
			}
			batch.attach(ctx, g)
			update = append(update, g)
		}
	}

	if err := batch.flush(ctx, nil, update); err != nil {
		return res, err
	}
	res.Updated = len(update)
	s.logger.Info(ctx, "completed games updated", logger.Int("updated", res.Updated), logger.Int("skipped", res.Skipped))
	return res, nil
}
