package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/okian/puckcast/internal/adapters/artifact"
	"github.com/okian/puckcast/internal/domain/encoding"
	"github.com/okian/puckcast/internal/domain/explain"
	"github.com/okian/puckcast/internal/domain/features"
	"github.com/okian/puckcast/internal/domain/model"
	"github.com/okian/puckcast/pkg/logger"
	"github.com/okian/puckcast/pkg/metrics"
)

// loadedModel is a registered model with its artifact, encoder and
// explainer ready for inference.
type loadedModel struct {
	meta      *model.PredictionModel
	art       *artifact.Artifact
	encoder   *encoding.Encoder
	explainer *explain.Explainer
}

// Predict predicts every game with the latest model. Missing pre-game
// snapshots are resolved first and written before the games that reference
// them. A game that already has a prediction from the latest model gets the
// stored one back. Games whose snapshots cannot be resolved are skipped.
func (s *Service) Predict(ctx context.Context, games []*model.Game) ([]*model.Prediction, error) {
	lm, err := s.latest(ctx)
	if err != nil {
		return nil, err
	}

	batch := s.newSnapshotBatch()
	var touched []*model.Game
	for _, g := range games {
		if batch.attach(ctx, g) {
			touched = append(touched, g)
		}
	}
	if err := batch.flush(ctx, nil, touched); err != nil {
		return nil, err
	}

	out := make([]*model.Prediction, 0, len(games))
	for _, g := range games {
		p, err := s.predictOne(ctx, lm, g)
		if errors.Is(err, model.ErrData) {
			s.logger.Warn(ctx, "game skipped", logger.Int64("game", g.ID), logger.Error(err))
			continue
		}
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}

// PredictDate predicts every stored game on date.
func (s *Service) PredictDate(ctx context.Context, date time.Time) ([]*model.Prediction, error) {
	games, err := s.store.GamesByDate(ctx, date)
	if err != nil {
		return nil, model.Wrap("service.PredictDate", model.ErrStorage, err)
	}
	return s.Predict(ctx, games)
}

func (s *Service) predictOne(ctx context.Context, lm *loadedModel, g *model.Game) (*model.Prediction, error) {
	const op = "service.predictOne"
	if p, err := s.existing(ctx, g.ID, lm.meta.ID); err != nil || p != nil {
		return s.describe(p, g), err
	}

	row, err := features.Extract(g)
	if err != nil {
		return nil, err
	}
	x := lm.encoder.EncodeRow(row)

	start := time.Now()
	class, confidence := lm.art.Forest.Predict(x)
	metrics.RecordPredictionLatency(elapsedMS(start))

	start = time.Now()
	conds, err := lm.explainer.Explain(ctx, x, lm.art.Forest.Proba)
	if err != nil {
		return nil, err
	}
	metrics.RecordExplainLatency(elapsedMS(start))

	p := &model.Prediction{
		ID:                   uuid.NewString(),
		GameID:               g.ID,
		ModelID:              lm.meta.ID,
		ModelVersion:         lm.meta.Version,
		PredictedHomeTeamWin: class == 1,
		ConfidenceScore:      confidence,
		TopFeatures:          explain.Collapse(conds, x, lm.art.Columns, row, s.topK),
		CreatedAt:            s.now(),
	}
	stored, created, err := s.store.CreatePrediction(ctx, p)
	if err != nil {
		return nil, model.Wrap(op, model.ErrStorage, err)
	}
	if created {
		metrics.RecordPredictionCreated(lm.meta.Version)
	} else {
		metrics.RecordPredictionReused("conflict")
	}
	s.cachePut(ctx, stored)
	return s.describe(stored, g), nil
}

// existing returns a stored prediction for (game, model), checking the
// cache before the store.
func (s *Service) existing(ctx context.Context, gameID, modelID int64) (*model.Prediction, error) {
	if s.cache != nil {
		p, err := s.cache.Get(ctx, gameID, modelID)
		if err != nil {
			s.logger.Warn(ctx, "prediction cache read failed", logger.Error(err))
		} else if p != nil {
			metrics.RecordPredictionReused("cache")
			return p, nil
		}
	}
	p, err := s.store.Prediction(ctx, gameID, modelID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, model.Wrap("service.existing", model.ErrStorage, err)
	}
	metrics.RecordPredictionReused("store")
	s.cachePut(ctx, p)
	return p, nil
}

func (s *Service) cachePut(ctx context.Context, p *model.Prediction) {
	if s.cache == nil || p == nil {
		return
	}
	if err := s.cache.Put(ctx, p); err != nil {
		s.logger.Warn(ctx, "prediction cache write failed", logger.Error(err))
	}
}

// describe returns a copy of p carrying a sentence per top feature.
func (s *Service) describe(p *model.Prediction, g *model.Game) *model.Prediction {
	if p == nil {
		return nil
	}
	out := *p
	out.TopFeaturesDescriptions = nil
	if g == nil {
		return &out
	}
	for _, c := range p.TopFeatures {
		if text, ok := features.Describe(c.Feature, g); ok {
			out.TopFeaturesDescriptions = append(out.TopFeaturesDescriptions, text)
		}
	}
	return &out
}

// latest returns the newest registered model ready for inference.
func (s *Service) latest(ctx context.Context) (*loadedModel, error) {
	const op = "service.latest"
	meta, err := s.store.LatestModel(ctx)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return nil, model.Wrap(op, model.ErrModelNotFound, err)
	case err != nil:
		return nil, model.Wrap(op, model.ErrStorage, err)
	}
	return s.load(ctx, meta)
}

// load reads the artifact of meta and rebuilds the explainer's reference
// matrix from the model's own seasons and vocabulary. Results are kept per
// model id.
func (s *Service) load(ctx context.Context, meta *model.PredictionModel) (*loadedModel, error) {
	const op = "service.load"
	s.modelMu.Lock()
	defer s.modelMu.Unlock()
	if lm, ok := s.loaded[meta.ID]; ok {
		return lm, nil
	}

	arts, err := s.artifactStoreLocked()
	if err != nil {
		return nil, err
	}
	art, err := arts.Load(ctx, meta.ArtifactPath)
	if err != nil {
		return nil, err
	}

	enc := encoding.NewEncoder(art.Vocabulary, encoding.WithUnseenHook(s.unseenLevel))
	if !slices.Equal(enc.Columns(), art.Columns) {
		return nil, model.Kind(op, model.ErrData, "artifact %s columns do not match its vocabulary", meta.ArtifactPath)
	}

	ds, err := s.builder().BuildWith(ctx, art.Seasons, art.Vocabulary)
	if err != nil {
		return nil, err
	}
	split := ds.Split(s.validationRatio, s.splitSeed)
	exp, err := explain.New(split.TrainX, art.Columns,
		explain.WithSamples(s.explainSamples),
		explain.WithSeed(s.explainSeed),
		explain.WithFeatures(s.explainFeatures))
	if err != nil {
		return nil, err
	}

	lm := &loadedModel{meta: meta, art: art, encoder: enc, explainer: exp}
	s.loaded[meta.ID] = lm
	s.logger.Info(ctx, "model loaded",
		logger.String("version", meta.Version),
		logger.Int("referenceRows", len(split.TrainX)))
	return lm, nil
}
