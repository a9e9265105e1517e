package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"sampling-backend/internal/runner"
)

// Recorder persists run and task lifecycle events to the manifest database.
// Failures are logged and swallowed: bookkeeping never fails a run.
type Recorder struct {
	db *gorm.DB
}

var _ runner.Recorder = (*Recorder)(nil)

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) RunStarted(ctx context.Context, run runner.RunInfo, tasks []runner.TaskInfo) {
	row := SamplingRun{
		Id:           run.Id,
		Mode:         run.Mode,
		ModelName:    run.ModelName,
		Epoch:        run.Epoch,
		OutDir:       run.OutDir,
		NumDevices:   run.NumDevices,
		Status:       JobRunning,
		CreationTime: time.Now().UTC(),
	}
	for _, task := range tasks {
		row.Tasks = append(row.Tasks, SampleTask{
			RunId:        run.Id,
			TaskId:       task.Index,
			Name:         task.Name,
			Device:       task.Device,
			Status:       JobQueued,
			TotalSamples: task.Total,
		})
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		slog.Error("error recording run start", "run_id", run.Id, "error", err)
	}
}

func (r *Recorder) TaskStarted(ctx context.Context, runId uuid.UUID, index int) {
	r.updateTask(ctx, runId, index, map[string]any{"status": JobRunning})
}

func (r *Recorder) TaskProgress(ctx context.Context, runId uuid.UUID, index int, completedSamples int) {
	r.updateTask(ctx, runId, index, map[string]any{"completed_samples": completedSamples})
}

func (r *Recorder) TaskFinished(ctx context.Context, runId uuid.UUID, index int, taskErr error) {
	status := JobCompleted
	if taskErr != nil {
		status = JobFailed
		r.saveError(ctx, runId, taskErr)
	}

	r.updateTask(ctx, runId, index, map[string]any{
		"status":          status,
		"completion_time": time.Now().UTC(),
	})
}

func (r *Recorder) RunFinished(ctx context.Context, runId uuid.UUID, runErr error) {
	status := JobCompleted
	if runErr != nil {
		status = JobFailed
		r.saveError(ctx, runId, runErr)
	}

	if err := r.db.WithContext(ctx).Model(&SamplingRun{Id: runId}).Updates(map[string]any{
		"status":          status,
		"completion_time": time.Now().UTC(),
	}).Error; err != nil {
		slog.Error("error recording run completion", "run_id", runId, "status", status, "error", err)
	}
}

func (r *Recorder) updateTask(ctx context.Context, runId uuid.UUID, index int, updates map[string]any) {
	if err := r.db.WithContext(ctx).Model(&SampleTask{RunId: runId, TaskId: index}).Updates(updates).Error; err != nil {
		slog.Error("error updating sample task", "run_id", runId, "task_id", index, "error", err)
	}
}

func (r *Recorder) saveError(ctx context.Context, runId uuid.UUID, cause error) {
	row := RunError{
		RunId:     runId,
		ErrorId:   uuid.New(),
		Error:     cause.Error(),
		Timestamp: time.Now().UTC(),
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		slog.Error("error saving run error", "run_id", runId, "error", err)
	}
}
