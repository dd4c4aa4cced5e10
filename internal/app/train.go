package service

import (
	"context"
	"errors"
	"time"

	"github.com/okian/puckcast/internal/adapters/artifact"
	"github.com/okian/puckcast/internal/domain/dataset"
	"github.com/okian/puckcast/internal/domain/encoding"
	"github.com/okian/puckcast/internal/domain/explain"
	"github.com/okian/puckcast/internal/domain/forest"
	"github.com/okian/puckcast/internal/domain/model"
	"github.com/okian/puckcast/pkg/logger"
	"github.com/okian/puckcast/pkg/metrics"
)

// Train fits a forest on the decided games of seasons, stores the artifact
// under the next version and registers the model. Runs never overlap.
func (s *Service) Train(ctx context.Context, seasons []int) (*model.PredictionModel, error) {
	const op = "service.Train"
	start := s.now()
	if len(seasons) == 0 {
		seasons = s.defaultSeasons
	}
	if len(seasons) == 0 {
		return nil, model.Kind(op, model.ErrData, "no seasons to train on")
	}

	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	if s.lock != nil {
		release, err := s.lock.Acquire(ctx)
		if err != nil {
			metrics.RecordTrainingRun("locked")
			return nil, model.Wrap(op, model.ErrConflict, err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn(ctx, "releasing training lock", logger.Error(err))
			}
		}()
	}

	m, err := s.train(ctx, seasons)
	if err != nil {
		metrics.RecordTrainingRun("failed")
		s.logger.Error(ctx, "training failed", logger.Any("seasons", seasons), logger.Error(err))
		return nil, err
	}

	took := s.now().Sub(start)
	metrics.RecordTrainingRun("succeeded")
	metrics.RecordTrainingDuration(took)
	metrics.UpdateTrainingAccuracy(m.Accuracy)
	metrics.UpdateTrainingRows(m.TrainedRows)
	metrics.SetLatestModel(m.Name, m.Version)
	s.logger.Info(ctx, "model trained",
		logger.String("version", m.Version),
		logger.Float64("accuracy", m.Accuracy),
		logger.Int("rows", m.TrainedRows),
		logger.Duration("took", took))
	return m, nil
}

func (s *Service) train(ctx context.Context, seasons []int) (*model.PredictionModel, error) {
	const op = "service.train"
	arts, err := s.artifactStore()
	if err != nil {
		return nil, err
	}

	ds, err := s.builder().Build(ctx, seasons)
	if err != nil {
		return nil, err
	}
	if ds.Len() < 2 {
		return nil, model.Kind(op, model.ErrData, "seasons %v have %d decided games with snapshots", seasons, ds.Len())
	}

	split := ds.Split(s.validationRatio, s.splitSeed)
	f, err := forest.Fit(ctx, split.TrainX, split.TrainY,
		forest.WithTrees(s.trees),
		forest.WithMaxDepth(s.maxDepth),
		forest.WithSeed(s.forestSeed))
	if err != nil {
		return nil, err
	}
	accuracy := f.Accuracy(split.ValidX, split.ValidY)

	version, err := s.nextVersion(ctx)
	if err != nil {
		return nil, err
	}

	columns := ds.Encoder.Columns()
	path, err := arts.Save(ctx, &artifact.Artifact{
		Name:       s.modelName,
		Version:    version.String(),
		Seasons:    append([]int(nil), seasons...),
		Columns:    columns,
		Vocabulary: ds.Encoder.Vocabulary(),
		Forest:     f,
	})
	if err != nil {
		return nil, err
	}

	m := &model.PredictionModel{
		Name:               s.modelName,
		Version:            version.String(),
		TrainedSeasons:     append([]int(nil), seasons...),
		FeatureImportances: explain.Categorize(columns, f.Importances),
		Accuracy:           accuracy,
		TrainedRows:        ds.Len(),
		ArtifactPath:       path,
		CreatedAt:          s.now(),
	}
	if err := s.store.CreateModel(ctx, m); err != nil {
		return nil, model.Wrap(op, model.ErrStorage, err)
	}
	return m, nil
}

// nextVersion bumps the minor part of the latest registered version.
func (s *Service) nextVersion(ctx context.Context) (model.Version, error) {
	latest, err := s.store.LatestModel(ctx)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return model.FirstVersion, nil
	case err != nil:
		return model.Version{}, model.Wrap("service.nextVersion", model.ErrStorage, err)
	}
	return latest.ParsedVersion().Next(), nil
}

// builder returns a dataset builder whose encoders report unseen levels.
func (s *Service) builder() *dataset.Builder {
	return dataset.NewBuilder(s.store, encoding.WithUnseenHook(s.unseenLevel))
}

func (s *Service) unseenLevel(feature string, level int) {
	metrics.RecordUnseenCategory(feature)
	s.logger.Warn(context.Background(), "categorical level not in vocabulary; dropped",
		logger.String("feature", feature), logger.Int("level", level))
}

// elapsedMS is the time since start in milliseconds.
func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
