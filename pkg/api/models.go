package api

import (
	"time"

	"github.com/google/uuid"
)

// SamplingRun is one dispatch of the sampling pipeline: a model checkpoint, a
// mode, and the set of tasks partitioned across devices.
type SamplingRun struct {
	Id uuid.UUID

	Mode      string
	ModelName string
	Epoch     int
	OutDir    string

	Status         string
	NumDevices     int
	CreationTime   time.Time
	CompletionTime *time.Time `json:"CompletionTime,omitempty"`

	Tasks []SampleTask `json:"Tasks,omitempty"`
}

// SampleTask is one unit of sampling work within a run: a motif name for
// scaffold runs, a target backbone length for unconditional runs.
type SampleTask struct {
	TaskId int

	Name   string
	Device string

	Status           string
	TotalSamples     int
	CompletedSamples int
	CompletionTime   *time.Time `json:"CompletionTime,omitempty"`
}

type RunError struct {
	Error     string
	Timestamp time.Time
}

// ListRunsRequest is the query surface of GET /runs.
type ListRunsRequest struct {
	Status string `schema:"status"`
	Limit  int    `schema:"limit"`
	Offset int    `schema:"offset"`
}

type ListRunsResponse struct {
	Runs  []SamplingRun
	Total int64
}

// ListTasksRequest is the query surface of GET /runs/{run_id}/tasks.
type ListTasksRequest struct {
	Status string `schema:"status"`
}

type ListTasksResponse struct {
	Tasks []SampleTask
}

type GetRunResponse struct {
	Run    SamplingRun
	Errors []RunError `json:"Errors,omitempty"`
}

// WorkerProgress mirrors the live per-device counters of an in-flight run.
type WorkerProgress struct {
	Device       string `json:"device"`
	TasksTotal   int    `json:"tasks_total"`
	TasksDone    int    `json:"tasks_done"`
	SamplesTotal int    `json:"samples_total"`
	SamplesDone  int    `json:"samples_done"`
	Failed       bool   `json:"failed"`
}

type ProgressResponse struct {
	Workers []WorkerProgress
}
