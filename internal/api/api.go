package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"sampling-backend/internal/database"
	"sampling-backend/internal/runner"
	"sampling-backend/pkg/api"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 100
)

// StatusService serves a read-only view of the run manifest plus, when a run
// is in flight, the live per-device progress counters. It never mutates
// anything: dispatch happens on the command line, not over HTTP.
type StatusService struct {
	db      *gorm.DB
	tracker *runner.Tracker
}

// NewStatusService wires the service. tracker may be nil when no run is in
// flight in this process (for example a standalone status server over a
// shared manifest database).
func NewStatusService(db *gorm.DB, tracker *runner.Tracker) *StatusService {
	return &StatusService{db: db, tracker: tracker}
}

func (s *StatusService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListRuns))
		r.Get("/{run_id}", RestHandler(s.GetRun))
		r.Get("/{run_id}/tasks", RestHandler(s.ListTasks))
	})
	r.Get("/progress", RestHandler(s.GetProgress))
}

func (s *StatusService) ListRuns(r *http.Request) (any, error) {
	req, err := ParseRequestQueryParams[api.ListRunsRequest](r)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}
	if limit > maxRunLimit {
		limit = maxRunLimit
	}

	ctx := r.Context()

	query := s.db.WithContext(ctx).Model(&database.SamplingRun{})
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		slog.Error("error counting sampling runs", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving sampling runs")
	}

	var runs []database.SamplingRun
	if err := query.Order("creation_time DESC").Limit(limit).Offset(req.Offset).Find(&runs).Error; err != nil {
		slog.Error("error listing sampling runs", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving sampling runs")
	}

	return api.ListRunsResponse{Runs: convertRuns(runs), Total: total}, nil
}

func (s *StatusService) GetRun(r *http.Request) (any, error) {
	runId, err := URLParamUUID(r, "run_id")
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	var run database.SamplingRun
	if err := s.db.WithContext(ctx).Preload("Tasks").First(&run, "id = ?", runId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "sampling run not found")
		}
		slog.Error("error getting sampling run", "run_id", runId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving sampling run")
	}

	var runErrors []database.RunError
	if err := s.db.WithContext(ctx).Order("timestamp").Find(&runErrors, "run_id = ?", runId).Error; err != nil {
		slog.Error("error getting run errors", "run_id", runId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving sampling run")
	}

	return api.GetRunResponse{Run: convertRun(run), Errors: convertErrors(runErrors)}, nil
}

func (s *StatusService) ListTasks(r *http.Request) (any, error) {
	runId, err := URLParamUUID(r, "run_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequestQueryParams[api.ListTasksRequest](r)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	var run database.SamplingRun
	if err := s.db.WithContext(ctx).First(&run, "id = ?", runId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "sampling run not found")
		}
		slog.Error("error getting sampling run", "run_id", runId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving tasks")
	}

	query := s.db.WithContext(ctx).Where("run_id = ?", runId)
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	var tasks []database.SampleTask
	if err := query.Order("task_id").Find(&tasks).Error; err != nil {
		slog.Error("error listing sample tasks", "run_id", runId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving tasks")
	}

	return api.ListTasksResponse{Tasks: convertTasks(tasks)}, nil
}

func (s *StatusService) GetProgress(r *http.Request) (any, error) {
	if s.tracker == nil {
		return api.ProgressResponse{}, nil
	}
	return api.ProgressResponse{Workers: convertProgress(s.tracker.Snapshot())}, nil
}
