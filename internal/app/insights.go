package service

import (
	"context"
	"errors"
	"time"

	"github.com/okian/puckcast/internal/domain/correlation"
	"github.com/okian/puckcast/internal/domain/model"
)

// LatestModel returns the newest registered model.
func (s *Service) LatestModel(ctx context.Context) (*model.PredictionModel, error) {
	const op = "service.LatestModel"
	m, err := s.store.LatestModel(ctx)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return nil, model.Wrap(op, model.ErrModelNotFound, err)
	case err != nil:
		return nil, model.Wrap(op, model.ErrStorage, err)
	}
	return m, nil
}

// FeatureImportances returns the latest model's importances summed per
// source feature, one-hot columns folded into their categorical family.
func (s *Service) FeatureImportances(ctx context.Context) (map[string]float64, error) {
	m, err := s.LatestModel(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(m.FeatureImportances))
	for k, v := range m.FeatureImportances {
		out[k] = v
	}
	return out, nil
}

// FeatureCorrelations reports how strongly each encoded column tracks the
// home-win label over seasons.
func (s *Service) FeatureCorrelations(ctx context.Context, seasons []int) (*correlation.Report, error) {
	const op = "service.FeatureCorrelations"
	if len(seasons) == 0 {
		seasons = s.defaultSeasons
	}
	ds, err := s.builder().Build(ctx, seasons)
	if err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, model.Kind(op, model.ErrData, "seasons %v have no decided games with snapshots", seasons)
	}
	return correlation.Analyze(ds.Matrix.Columns, ds.Matrix.Rows, ds.Labels)
}

// Game returns one stored game.
func (s *Service) Game(ctx context.Context, id int64) (*model.Game, error) {
	g, err := s.store.Game(ctx, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, model.Wrap("service.Game", model.ErrStorage, err)
	}
	return g, err
}

// GamesByDate returns the stored games on date.
func (s *Service) GamesByDate(ctx context.Context, date time.Time) ([]*model.Game, error) {
	gs, err := s.store.GamesByDate(ctx, date)
	if err != nil {
		return nil, model.Wrap("service.GamesByDate", model.ErrStorage, err)
	}
	return gs, nil
}

// PredictionsByGame returns every model's prediction for a game.
func (s *Service) PredictionsByGame(ctx context.Context, gameID int64) ([]*model.Prediction, error) {
	const op = "service.PredictionsByGame"
	g, err := s.Game(ctx, gameID)
	if err != nil {
		return nil, err
	}
	ps, err := s.store.PredictionsByGame(ctx, gameID)
	if err != nil {
		return nil, model.Wrap(op, model.ErrStorage, err)
	}
	out := make([]*model.Prediction, len(ps))
	for i, p := range ps {
		out[i] = s.describe(p, g)
	}
	return out, nil
}

// PredictionsByDate returns the predictions of games played on date.
func (s *Service) PredictionsByDate(ctx context.Context, date time.Time) ([]*model.Prediction, error) {
	const op = "service.PredictionsByDate"
	ps, err := s.store.PredictionsByDate(ctx, date)
	if err != nil {
		return nil, model.Wrap(op, model.ErrStorage, err)
	}
	games := make(map[int64]*model.Game)
	out := make([]*model.Prediction, len(ps))
	for i, p := range ps {
		g, ok := games[p.GameID]
		if !ok {
			g, err = s.store.Game(ctx, p.GameID)
			if err != nil && !errors.Is(err, model.ErrNotFound) {
				return nil, model.Wrap(op, model.ErrStorage, err)
			}
			games[p.GameID] = g
		}
		out[i] = s.describe(p, g)
	}
	return out, nil
}
