package worker

import (
	"sync"

	"github.com/okian/puckcast/internal/domain/model"
)

// Tracker records the latest state of every job it has seen.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]model.TrainingJob
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{jobs: make(map[string]model.TrainingJob)}
}

// Put stores j, replacing any earlier state for the same id.
func (t *Tracker) Put(j model.TrainingJob) { //nolint:gocritic // hugeParam: stored by value
	j.Seasons = append([]int(nil), j.Seasons...)
	t.mu.Lock()
	t.jobs[j.ID] = j
	t.mu.Unlock()
}

// Get returns the job with id.
func (t *Tracker) Get(id string) (model.TrainingJob, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	j, ok := t.jobs[id]
	return j, ok
}

// Counts returns the number of jobs per status.
func (t *Tracker) Counts() map[model.JobStatus]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[model.JobStatus]int, 4)
	for _, j := range t.jobs {
		out[j.Status]++
	}
	return out
}
