// Package service wires storage, the upstream NHL client, training and
// prediction into the operations the HTTP API and CLI expose.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/puckcast/internal/adapters/artifact"
	"github.com/okian/puckcast/internal/adapters/mq/queue"
	"github.com/okian/puckcast/internal/adapters/mq/worker"
	"github.com/okian/puckcast/internal/adapters/nhl"
	"github.com/okian/puckcast/internal/adapters/repository"
	"github.com/okian/puckcast/internal/domain/dataset"
	"github.com/okian/puckcast/internal/domain/explain"
	"github.com/okian/puckcast/internal/domain/forest"
	"github.com/okian/puckcast/internal/domain/model"
	"github.com/okian/puckcast/pkg/logger"
	"github.com/okian/puckcast/pkg/metrics"
)

const shutdownTimeout = 30 * time.Second

// Upstream is the NHL data source.
type Upstream interface {
	Teams(ctx context.Context) ([]nhl.TeamInfo, error)
	Schedule(ctx context.Context, date time.Time) ([]nhl.ScheduledGame, error)
	Standings(ctx context.Context, date time.Time) ([]nhl.Standing, error)
}

// PredictionCache is a read-through cache in front of the prediction store.
type PredictionCache interface {
	Get(ctx context.Context, gameID, modelID int64) (*model.Prediction, error)
	Put(ctx context.Context, p *model.Prediction) error
}

// TrainingLock serializes training across processes.
type TrainingLock interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// Service implements the prediction system's operations.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	upstream  Upstream
	artifacts artifact.Store
	cache     PredictionCache
	lock      TrainingLock

	artifactDir     string
	modelName       string
	trees           int
	maxDepth        int
	forestSeed      int64
	validationRatio float64
	splitSeed       int64
	explainSamples  int
	explainSeed     int64
	explainFeatures int
	topK            int
	policy          model.CompletionPolicy
	defaultSeasons  []int
	queueSize       int
	now             func() time.Time

	// trainMu serializes training inside this process.
	trainMu sync.Mutex

	modelMu sync.Mutex
	loaded  map[int64]*loadedModel

	jobs    *queue.InMemoryQueue
	tracker *worker.Tracker
	worker  *worker.Worker
	cancel  context.CancelFunc
	started bool

	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		artifactDir:     "./trained_models",
		modelName:       "Random Forest",
		trees:           forest.DefaultTrees,
		maxDepth:        forest.DefaultMaxDepth,
		forestSeed:      forest.DefaultSeed,
		validationRatio: dataset.DefaultValidationRatio,
		splitSeed:       dataset.DefaultSplitSeed,
		explainSamples:  explain.DefaultSamples,
		explainSeed:     explain.DefaultSeed,
		explainFeatures: explain.DefaultFeatures,
		topK:            explain.DefaultTopK,
		policy:          model.ScoreCompletion{},
		queueSize:       16,
		now:             time.Now,
		loaded:          make(map[int64]*loadedModel),
		tracker:         worker.NewTracker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.upstream == nil {
		s.upstream = nhl.NewClient()
	}
	return s
}

// Start opens the artifact store and starts the training worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if _, err := s.artifactStore(); err != nil {
		return err
	}

	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.worker = worker.New(s.jobs, s, s.tracker, worker.WithLogger(s.logger.Named("trainer")))
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.worker.Run(runCtx)

	s.started = true
	s.logger.Info(ctx, "prediction service started",
		logger.Int("queueSize", s.queueSize),
		logger.String("model", s.modelName),
		logger.String("completionPolicy", s.policy.Name()))
	return nil
}

// Stop drains the training worker and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping prediction service...")

	_ = s.jobs.Close()
	sctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	if err := s.worker.Shutdown(sctx); err != nil {
		s.logger.Warn(ctx, "training worker did not stop in time", logger.Error(err))
	}
	cancel()
	s.cancel()

	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store", logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "prediction service stopped")
}

// artifactStore returns the configured store, opening the default file
// store on first use.
func (s *Service) artifactStore() (artifact.Store, error) {
	s.modelMu.Lock()
	defer s.modelMu.Unlock()
	return s.artifactStoreLocked()
}

// artifactStoreLocked is artifactStore for callers holding modelMu.
func (s *Service) artifactStoreLocked() (artifact.Store, error) {
	if s.artifacts != nil {
		return s.artifacts, nil
	}
	fs, err := artifact.NewFileStore(s.artifactDir)
	if err != nil {
		return nil, err
	}
	s.artifacts = fs
	return fs, nil
}

// EnqueueTraining schedules a training run. A full queue returns an error
// wrapping queue.ErrFull.
func (s *Service) EnqueueTraining(ctx context.Context, seasons []int) (model.TrainingJob, error) {
	const op = "service.EnqueueTraining"
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.TrainingJob{}, fmt.Errorf("%s: %w", op, queue.ErrClosed)
	}
	if len(seasons) == 0 {
		seasons = s.defaultSeasons
	}

	job := model.TrainingJob{
		ID:         uuid.NewString(),
		Seasons:    append([]int(nil), seasons...),
		Status:     model.JobQueued,
		EnqueuedAt: s.now(),
	}
	s.tracker.Put(job)
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		job.Status = model.JobFailed
		job.Error = err.Error()
		s.tracker.Put(job)
		return job, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info(ctx, "training job queued", logger.String("job", job.ID), logger.Any("seasons", job.Seasons))
	return job, nil
}

// TrainingJob returns the latest state of a queued job.
func (s *Service) TrainingJob(_ context.Context, id string) (model.TrainingJob, error) {
	j, ok := s.tracker.Get(id)
	if !ok {
		return model.TrainingJob{}, model.Kind("service.TrainingJob", model.ErrNotFound, "job %s", id)
	}
	return j, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":          s.started,
		"queueSize":        s.queueSize,
		"modelName":        s.modelName,
		"completionPolicy": s.policy.Name(),
	}
	counts := s.tracker.Counts()
	stats["jobs"] = map[string]int{
		string(model.JobQueued):    counts[model.JobQueued],
		string(model.JobRunning):   counts[model.JobRunning],
		string(model.JobSucceeded): counts[model.JobSucceeded],
		string(model.JobFailed):    counts[model.JobFailed],
	}

	if s.started {
		stats["queueLength"] = s.jobs.Len(ctx)
	}
	if m, err := s.store.LatestModel(ctx); err == nil {
		stats["latestModel"] = m.Version
		stats["latestAccuracy"] = m.Accuracy
	} else if !errors.Is(err, model.ErrNotFound) {
		s.logger.Warn(ctx, "reading latest model for stats", logger.Error(err))
	}

	s.modelMu.Lock()
	stats["loadedModels"] = len(s.loaded)
	s.modelMu.Unlock()

	metrics.UpdateQueueCapacity(s.queueSize)
	return stats
}
