package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/puckcast/internal/adapters/mq/queue"
	"github.com/okian/puckcast/internal/domain/model"
	"github.com/okian/puckcast/pkg/logger"
)

// Trainer fits and stores a model from the given seasons.
type Trainer interface {
	Train(ctx context.Context, seasons []int) (*model.PredictionModel, error)
}

// Queue defines how the worker receives jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker executes training jobs sequentially. Running a single worker is
// what serializes training inside one process.
type Worker struct {
	queue   Queue
	trainer Trainer
	tracker *Tracker
	name    string
	now     func() time.Time

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// New creates a worker that reports job progress to tracker.
func New(q Queue, trainer Trainer, tracker *Tracker, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		trainer:  trainer,
		tracker:  tracker,
		name:     "trainer",
		now:      time.Now,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logger.String("worker", w.name))
	return w
}

// Run processes jobs until ctx is cancelled, Shutdown is called, or the
// queue is closed and drained.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, j)
		}
	}
}

// Shutdown stops the worker after the job in progress, if any.
func (w *Worker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *Worker) process(ctx context.Context, j queue.Job) { //nolint:gocritic // hugeParam: jobs travel by value
	started := w.now()
	j.Status = model.JobRunning
	j.StartedAt = &started
	w.tracker.Put(j)
	w.logger.Info(ctx, "training job started", logger.String("job", j.ID), logger.Any("seasons", j.Seasons))

	m, err := w.trainer.Train(ctx, j.Seasons)

	finished := w.now()
	j.FinishedAt = &finished
	if err != nil {
		j.Status = model.JobFailed
		j.Error = err.Error()
		w.tracker.Put(j)
		w.logger.Error(ctx, "training job failed", logger.String("job", j.ID), logger.Error(err))
		return
	}
	j.Status = model.JobSucceeded
	j.ModelVersion = m.Version
	j.Accuracy = m.Accuracy
	w.tracker.Put(j)
	w.logger.Info(ctx, "training job finished",
		logger.String("job", j.ID),
		logger.String("version", m.Version),
		logger.Float64("accuracy", m.Accuracy),
		logger.Duration("took", finished.Sub(started)))
}
