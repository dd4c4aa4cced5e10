package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/puckcast/internal/adapters/mq/queue"
	"github.com/okian/puckcast/internal/domain/model"
	"github.com/okian/puckcast/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type fakeTrainer struct {
	mu      sync.Mutex
	active  int
	maxSeen int
	calls   [][]int
	fail    map[int]error
}

func (f *fakeTrainer) Train(_ context.Context, seasons []int) (*model.PredictionModel, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	f.calls = append(f.calls, seasons)
	n := len(f.calls)
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	if err := f.fail[seasons[0]]; err != nil {
		return nil, err
	}
	return &model.PredictionModel{Version: model.Version{Major: 1, Minor: n - 1}.String(), Accuracy: 0.6}, nil
}

func waitDone(tr *Tracker, id string) model.TrainingJob {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if j, ok := tr.Get(id); ok && j.Done() {
			return j
		}
		time.Sleep(2 * time.Millisecond)
	}
	j, _ := tr.Get(id)
	return j
}

func TestWorker(t *testing.T) {
	ctx := context.Background()

	Convey("Given a worker draining a training queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		trainer := &fakeTrainer{fail: map[int]error{20192020: errors.New("no games")}}
		tracker := NewTracker()
		w := New(q, trainer, tracker, WithName("test"))

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go w.Run(runCtx)

		for _, j := range []model.TrainingJob{
			{ID: "a", Seasons: []int{20222023}, Status: model.JobQueued},
			{ID: "b", Seasons: []int{20192020}, Status: model.JobQueued},
			{ID: "c", Seasons: []int{20232024}, Status: model.JobQueued},
		} {
			tracker.Put(j)
			So(q.Enqueue(ctx, j), ShouldBeNil)
		}

		a, b, c := waitDone(tracker, "a"), waitDone(tracker, "b"), waitDone(tracker, "c")

		Convey("Then every job reaches a terminal state with its outcome", func() {
			So(a.Status, ShouldEqual, model.JobSucceeded)
			So(a.ModelVersion, ShouldEqual, "1.0")
			So(a.StartedAt, ShouldNotBeNil)
			So(a.FinishedAt, ShouldNotBeNil)

			So(b.Status, ShouldEqual, model.JobFailed)
			So(b.Error, ShouldEqual, "no games")

			So(c.Status, ShouldEqual, model.JobSucceeded)
			So(c.ModelVersion, ShouldEqual, "1.2")
		})

		Convey("Then jobs never overlap", func() {
			trainer.mu.Lock()
			defer trainer.mu.Unlock()
			So(trainer.maxSeen, ShouldEqual, 1)
			So(len(trainer.calls), ShouldEqual, 3)
		})

		Convey("Then the tracker counts statuses", func() {
			counts := tracker.Counts()
			So(counts[model.JobSucceeded], ShouldEqual, 2)
			So(counts[model.JobFailed], ShouldEqual, 1)
		})

		Convey("Then Shutdown returns once the loop exits", func() {
			sctx, scancel := context.WithTimeout(ctx, time.Second)
			defer scancel()
			So(w.Shutdown(sctx), ShouldBeNil)
			So(w.Shutdown(sctx), ShouldBeNil)
		})
	})
}
