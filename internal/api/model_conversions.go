package api

import (
	"database/sql"
	"time"

	"sampling-backend/internal/database"
	"sampling-backend/internal/runner"
	"sampling-backend/pkg/api"
)

func convertTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func convertRun(r database.SamplingRun) api.SamplingRun {
	return api.SamplingRun{
		Id:             r.Id,
		Mode:           r.Mode,
		ModelName:      r.ModelName,
		Epoch:          r.Epoch,
		OutDir:         r.OutDir,
		Status:         r.Status,
		NumDevices:     r.NumDevices,
		CreationTime:   r.CreationTime,
		CompletionTime: convertTime(r.CompletionTime),
		Tasks:          convertTasks(r.Tasks),
	}
}

func convertRuns(rs []database.SamplingRun) []api.SamplingRun {
	runs := make([]api.SamplingRun, 0, len(rs))
	for _, r := range rs {
		runs = append(runs, convertRun(r))
	}
	return runs
}

func convertTask(t database.SampleTask) api.SampleTask {
	return api.SampleTask{
		TaskId:           t.TaskId,
		Name:             t.Name,
		Device:           t.Device,
		Status:           t.Status,
		TotalSamples:     t.TotalSamples,
		CompletedSamples: t.CompletedSamples,
		CompletionTime:   convertTime(t.CompletionTime),
	}
}

func convertTasks(ts []database.SampleTask) []api.SampleTask {
	var tasks []api.SampleTask
	for _, t := range ts {
		tasks = append(tasks, convertTask(t))
	}
	return tasks
}

func convertErrors(es []database.RunError) []api.RunError {
	var errs []api.RunError
	for _, e := range es {
		errs = append(errs, api.RunError{Error: e.Error, Timestamp: e.Timestamp})
	}
	return errs
}

func convertProgress(ws []runner.WorkerProgress) []api.WorkerProgress {
	workers := make([]api.WorkerProgress, 0, len(ws))
	for _, w := range ws {
		workers = append(workers, api.WorkerProgress{
			Device:       w.Device,
			TasksTotal:   w.TasksTotal,
			TasksDone:    w.TasksDone,
			SamplesTotal: w.SamplesTotal,
			SamplesDone:  w.SamplesDone,
			Failed:       w.Failed,
		})
	}
	return workers
}
