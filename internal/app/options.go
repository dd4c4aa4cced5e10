package service

import (
	"time"

	"github.com/okian/puckcast/internal/adapters/artifact"
	"github.com/okian/puckcast/internal/adapters/repository"
	"github.com/okian/puckcast/internal/domain/model"
	"github.com/okian/puckcast/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. The default is an in-memory store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithUpstream sets the NHL data source.
func WithUpstream(u Upstream) Option {
	return func(s *Service) {
		if u != nil {
			s.upstream = u
		}
	}
}

// WithArtifacts sets the model artifact store.
func WithArtifacts(a artifact.Store) Option {
	return func(s *Service) {
		if a != nil {
			s.artifacts = a
		}
	}
}

// WithArtifactDir sets where the default artifact store writes.
func WithArtifactDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.artifactDir = dir
		}
	}
}

// WithPredictionCache enables the prediction read-through cache.
func WithPredictionCache(c PredictionCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithTrainingLock adds a cross-process lock around training.
func WithTrainingLock(l TrainingLock) Option {
	return func(s *Service) { s.lock = l }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithModelName names trained models and their artifacts.
func WithModelName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.modelName = name
		}
	}
}

// WithForestParams sets the random forest hyperparameters.
func WithForestParams(trees, maxDepth int, seed int64) Option {
	return func(s *Service) {
		if trees > 0 {
			s.trees = trees
		}
		if maxDepth > 0 {
			s.maxDepth = maxDepth
		}
		s.forestSeed = seed
	}
}

// WithValidation sets the held-out share and the shuffle seed.
func WithValidation(ratio float64, seed int64) Option {
	return func(s *Service) {
		if ratio > 0 && ratio < 1 {
			s.validationRatio = ratio
		}
		s.splitSeed = seed
	}
}

// WithExplainerParams sets the explainer sample count, seed, number of
// selected features and how many contributions a prediction keeps.
func WithExplainerParams(samples int, seed int64, features, topK int) Option {
	return func(s *Service) {
		if samples > 0 {
			s.explainSamples = samples
		}
		s.explainSeed = seed
		if features > 0 {
			s.explainFeatures = features
		}
		if topK > 0 {
			s.topK = topK
		}
	}
}

// WithCompletionPolicy decides when a stored game counts as played.
func WithCompletionPolicy(p model.CompletionPolicy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithDefaultSeasons is used when a training request names no seasons.
func WithDefaultSeasons(seasons []int) Option {
	return func(s *Service) {
		s.defaultSeasons = append([]int(nil), seasons...)
	}
}

// WithQueueSize bounds pending training jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
