package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/okian/puckcast/internal/adapters/nhl"
	"github.com/okian/puckcast/internal/domain/model"
	"github.com/okian/puckcast/pkg/logger"
	"github.com/okian/puckcast/pkg/metrics"
)

// zeroStandings is the payload of a snapshot taken before a team's first
// game of the season, when upstream standings are still empty.
var zeroStandings = json.RawMessage(`{}`)

type snapshotKey struct {
	team int
	date time.Time
}

// snapshotBatch resolves pre-game snapshots for a batch of games. Standings
// are fetched at most once per date and new snapshots are held until flush.
type snapshotBatch struct {
	s         *Service
	standings map[time.Time][]nhl.Standing
	failed    map[time.Time]bool
	pending   map[snapshotKey]*model.TeamData
	created   []*model.TeamData
}

func (s *Service) newSnapshotBatch() *snapshotBatch {
	return &snapshotBatch{
		s:         s,
		standings: make(map[time.Time][]nhl.Standing),
		failed:    make(map[time.Time]bool),
		pending:   make(map[snapshotKey]*model.TeamData),
	}
}

// attach fills any missing snapshot of g and reports whether g changed.
func (b *snapshotBatch) attach(ctx context.Context, g *model.Game) bool {
	changed := false
	if g.HomeTeamData == nil {
		if d := b.resolve(ctx, g.HomeTeam, g.SnapshotDate()); d != nil {
			g.HomeTeamData = d
			changed = true
		}
	}
	if g.AwayTeamData == nil {
		if d := b.resolve(ctx, g.AwayTeam, g.SnapshotDate()); d != nil {
			g.AwayTeamData = d
			changed = true
		}
	}
	return changed
}

// resolve returns the team's snapshot for day. A stored snapshot wins.
// Otherwise the day's standings are fetched: empty standings give a zero
// snapshot, a team absent from non-empty standings or a failed fetch give
// none.
func (b *snapshotBatch) resolve(ctx context.Context, team model.Team, day time.Time) *model.TeamData {
	log := b.s.logger.With(logger.Int("team", team.ID), logger.Time("date", day))

	d, err := b.s.store.TeamData(ctx, team.ID, day)
	switch {
	case err == nil:
		return d
	case !errors.Is(err, model.ErrNotFound):
		log.Warn(ctx, "reading stored snapshot", logger.Error(err))
		return nil
	}

	key := snapshotKey{team.ID, day}
	if d, ok := b.pending[key]; ok {
		return d
	}
	if b.failed[day] {
		return nil
	}

	rows, ok := b.standings[day]
	if !ok {
		rows, err = b.s.upstream.Standings(ctx, day)
		if err != nil {
			b.failed[day] = true
			metrics.RecordErrorByComponent("snapshots", "upstream_fetch")
			log.Warn(ctx, "standings fetch failed; no snapshot", logger.Error(err))
			return nil
		}
		b.standings[day] = rows
	}

	var payload json.RawMessage
	if len(rows) == 0 {
		payload = zeroStandings
	} else {
		for _, r := range rows {
			if r.Abbrev == team.Abbreviation {
				payload = r.Raw
				break
			}
		}
		if payload == nil {
			log.Warn(ctx, "team missing from standings; no snapshot", logger.String("abbrev", team.Abbreviation))
			return nil
		}
	}

	d = &model.TeamData{TeamID: team.ID, Date: day, Payload: payload}
	b.pending[key] = d
	b.created = append(b.created, d)
	return d
}

// flush writes new snapshots, then the games that reference them. The
// order keeps every stored game reference valid if the second write fails.
func (b *snapshotBatch) flush(ctx context.Context, create, update []*model.Game) error {
	const op = "service.flushSnapshots"
	if len(b.created) > 0 {
		if err := b.s.store.CreateTeamData(ctx, b.created); err != nil {
			return model.Wrap(op, model.ErrStorage, err)
		}
		metrics.RecordSnapshotsCreated(len(b.created))
	}
	if len(create) > 0 {
		if err := b.s.store.CreateGames(ctx, create); err != nil {
			return model.Wrap(op, model.ErrStorage, err)
		}
	}
	if len(update) > 0 {
		if err := b.s.store.UpdateGames(ctx, update); err != nil {
			return model.Wrap(op, model.ErrStorage, err)
		}
	}
	return nil
}
