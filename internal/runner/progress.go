package runner

import (
	"sync"

	"github.com/schollz/progressbar/v3"
)

// WorkerProgress is a point-in-time view of one worker's march through its
// shard.
type WorkerProgress struct {
	Device       string `json:"device"`
	TasksTotal   int    `json:"tasks_total"`
	TasksDone    int    `json:"tasks_done"`
	SamplesTotal int    `json:"samples_total"`
	SamplesDone  int    `json:"samples_done"`
	Failed       bool   `json:"failed"`
}

// Tracker aggregates per-worker progress counters and optionally renders a
// single run-wide progress bar. All methods are safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	workers []WorkerProgress
}

func NewTracker(description string, showBar bool) *Tracker {
	t := &Tracker{}
	if showBar {
		t.bar = progressbar.NewOptions(0,
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
	}
	return t
}

// RegisterWorker reserves a progress slot for the worker about to be
// dispatched. Workers must be registered in dispatch order, before Run starts.
func (t *Tracker) RegisterWorker(dev string, numTasks, numSamples int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.workers = append(t.workers, WorkerProgress{
		Device:       dev,
		TasksTotal:   numTasks,
		SamplesTotal: numSamples,
	})
	if t.bar != nil {
		t.bar.ChangeMax(t.bar.GetMax() + numSamples)
	}
}

func (t *Tracker) SamplesDone(worker, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.workers[worker].SamplesDone += n
	if t.bar != nil {
		_ = t.bar.Add(n)
	}
}

func (t *Tracker) TaskDone(worker int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.workers[worker].TasksDone++
}

func (t *Tracker) WorkerFailed(worker int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.workers[worker].Failed = true
}

func (t *Tracker) Snapshot() []WorkerProgress {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]WorkerProgress, len(t.workers))
	copy(out, t.workers)
	return out
}

func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bar != nil {
		_ = t.bar.Finish()
	}
}
