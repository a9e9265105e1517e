package runner

import (
	"context"

	"github.com/google/uuid"
)

// RunInfo describes one sampling run for bookkeeping.
type RunInfo struct {
	Id         uuid.UUID
	Mode       string
	ModelName  string
	Epoch      int
	OutDir     string
	NumDevices int
}

// TaskInfo describes one task at dispatch time. Index is the task's position
// in the full (pre-partition) task list.
type TaskInfo struct {
	Index  int
	Name   string
	Device string
	Total  int
}

// Recorder observes the lifecycle of a run. Implementations must be safe for
// concurrent use by workers, and must swallow their own failures: recording
// is best-effort bookkeeping and never fails a run.
type Recorder interface {
	RunStarted(ctx context.Context, run RunInfo, tasks []TaskInfo)
	TaskStarted(ctx context.Context, runId uuid.UUID, index int)
	TaskProgress(ctx context.Context, runId uuid.UUID, index int, completedSamples int)
	TaskFinished(ctx context.Context, runId uuid.UUID, index int, taskErr error)
	RunFinished(ctx context.Context, runId uuid.UUID, runErr error)
}

type NoopRecorder struct{}

func (NoopRecorder) RunStarted(context.Context, RunInfo, []TaskInfo) {}

func (NoopRecorder) TaskStarted(context.Context, uuid.UUID, int) {}

func (NoopRecorder) TaskProgress(context.Context, uuid.UUID, int, int) {}

func (NoopRecorder) TaskFinished(context.Context, uuid.UUID, int, error) {}

func (NoopRecorder) RunFinished(context.Context, uuid.UUID, error) {}
