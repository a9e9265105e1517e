package api_test

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	backend "sampling-backend/internal/api"
	"sampling-backend/internal/database"
	"sampling-backend/internal/runner"
	"sampling-backend/pkg/api"
)

func createDB(t *testing.T, create ...any) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	for _, c := range create {
		require.NoError(t, db.Create(c).Error)
	}

	return db
}

func createRouter(db *gorm.DB, tracker *runner.Tracker) chi.Router {
	router := chi.NewRouter()
	backend.NewStatusService(db, tracker).AddRoutes(router)
	return router
}

func get(t *testing.T, router chi.Router, endpoint string, dest any) int {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, endpoint, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if dest != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
	}
	return rec.Code
}

func TestHealth(t *testing.T) {
	router := createRouter(createDB(t), nil)
	assert.Equal(t, http.StatusOK, get(t, router, "/health", nil))
}

func TestListRuns(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	db := createDB(t,
		&database.SamplingRun{Id: id1, Mode: "scaffold", ModelName: "scope-l30", Epoch: 40, Status: database.JobCompleted, CreationTime: time.Now().Add(-time.Hour)},
		&database.SamplingRun{Id: id2, Mode: "unconditional", ModelName: "base", Epoch: 30, Status: database.JobRunning, CreationTime: time.Now()},
	)
	router := createRouter(db, nil)

	var response api.ListRunsResponse
	assert.Equal(t, http.StatusOK, get(t, router, "/runs", &response))

	require.Len(t, response.Runs, 2)
	assert.Equal(t, int64(2), response.Total)
	assert.Equal(t, id2, response.Runs[0].Id, "newest run first")
	assert.Equal(t, id1, response.Runs[1].Id)
}

func TestListRunsStatusFilter(t *testing.T) {
	id := uuid.New()
	db := createDB(t,
		&database.SamplingRun{Id: uuid.New(), Mode: "scaffold", ModelName: "m", Status: database.JobCompleted, CreationTime: time.Now()},
		&database.SamplingRun{Id: id, Mode: "scaffold", ModelName: "m", Status: database.JobFailed, CreationTime: time.Now()},
	)
	router := createRouter(db, nil)

	var response api.ListRunsResponse
	assert.Equal(t, http.StatusOK, get(t, router, "/runs?status=FAILED", &response))

	require.Len(t, response.Runs, 1)
	assert.Equal(t, id, response.Runs[0].Id)
	assert.Equal(t, int64(1), response.Total)
}

func TestListRunsPaging(t *testing.T) {
	db := createDB(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Create(&database.SamplingRun{
			Id: uuid.New(), Mode: "scaffold", ModelName: "m",
			Status: database.JobCompleted, CreationTime: time.Now().Add(time.Duration(i) * time.Minute),
		}).Error)
	}
	router := createRouter(db, nil)

	var response api.ListRunsResponse
	assert.Equal(t, http.StatusOK, get(t, router, "/runs?limit=2&offset=2", &response))

	assert.Len(t, response.Runs, 2)
	assert.Equal(t, int64(5), response.Total)
}

func TestGetRun(t *testing.T) {
	runId := uuid.New()
	done := time.Now().UTC().Truncate(time.Second)
	db := createDB(t, &database.SamplingRun{
		Id: runId, Mode: "scaffold", ModelName: "scope-l30", Epoch: 40, OutDir: "runs/test",
		Status: database.JobFailed, NumDevices: 2, CreationTime: time.Now(),
		Tasks: []database.SampleTask{
			{RunId: runId, TaskId: 0, Name: "1PRW", Device: "cuda:0", Status: database.JobCompleted, TotalSamples: 5, CompletedSamples: 5, CompletionTime: sql.NullTime{Time: done, Valid: true}},
			{RunId: runId, TaskId: 1, Name: "3IXT", Device: "cuda:1", Status: database.JobFailed, TotalSamples: 5, CompletedSamples: 2},
		},
		Errors: []database.RunError{
			{RunId: runId, ErrorId: uuid.New(), Error: "sampling failed: task 3IXT at offset 2", Timestamp: time.Now()},
		},
	})
	router := createRouter(db, nil)

	var response api.GetRunResponse
	assert.Equal(t, http.StatusOK, get(t, router, "/runs/"+runId.String(), &response))

	assert.Equal(t, runId, response.Run.Id)
	assert.Equal(t, database.JobFailed, response.Run.Status)
	require.Len(t, response.Run.Tasks, 2)
	assert.Equal(t, "1PRW", response.Run.Tasks[0].Name)
	assert.NotNil(t, response.Run.Tasks[0].CompletionTime)
	assert.Nil(t, response.Run.Tasks[1].CompletionTime)
	require.Len(t, response.Errors, 1)
	assert.Contains(t, response.Errors[0].Error, "3IXT")
}

func TestGetRunNotFound(t *testing.T) {
	router := createRouter(createDB(t), nil)
	assert.Equal(t, http.StatusNotFound, get(t, router, "/runs/"+uuid.NewString(), nil))
}

func TestGetRunBadId(t *testing.T) {
	router := createRouter(createDB(t), nil)
	assert.Equal(t, http.StatusBadRequest, get(t, router, "/runs/not-a-uuid", nil))
}

func TestListTasks(t *testing.T) {
	runId := uuid.New()
	db := createDB(t, &database.SamplingRun{
		Id: runId, Mode: "scaffold", ModelName: "m", Status: database.JobRunning, CreationTime: time.Now(),
		Tasks: []database.SampleTask{
			{RunId: runId, TaskId: 0, Name: "1PRW", Device: "cuda:0", Status: database.JobCompleted, TotalSamples: 5, CompletedSamples: 5},
			{RunId: runId, TaskId: 1, Name: "3IXT", Device: "cuda:1", Status: database.JobRunning, TotalSamples: 5, CompletedSamples: 2},
			{RunId: runId, TaskId: 2, Name: "5TPN", Device: "cuda:0", Status: database.JobQueued, TotalSamples: 5},
		},
	})
	router := createRouter(db, nil)

	var response api.ListTasksResponse
	assert.Equal(t, http.StatusOK, get(t, router, "/runs/"+runId.String()+"/tasks", &response))
	require.Len(t, response.Tasks, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{response.Tasks[0].TaskId, response.Tasks[1].TaskId, response.Tasks[2].TaskId})

	var queued api.ListTasksResponse
	assert.Equal(t, http.StatusOK, get(t, router, "/runs/"+runId.String()+"/tasks?status=QUEUED", &queued))
	require.Len(t, queued.Tasks, 1)
	assert.Equal(t, "5TPN", queued.Tasks[0].Name)
}

func TestListTasksRunNotFound(t *testing.T) {
	router := createRouter(createDB(t), nil)
	assert.Equal(t, http.StatusNotFound, get(t, router, "/runs/"+uuid.NewString()+"/tasks", nil))
}

func TestGetProgress(t *testing.T) {
	tracker := runner.NewTracker("sampling", false)
	tracker.RegisterWorker("cuda:0", 2, 10)
	tracker.SamplesDone(0, 4)

	router := createRouter(createDB(t), tracker)

	var response api.ProgressResponse
	assert.Equal(t, http.StatusOK, get(t, router, "/progress", &response))

	require.Len(t, response.Workers, 1)
	assert.Equal(t, "cuda:0", response.Workers[0].Device)
	assert.Equal(t, 4, response.Workers[0].SamplesDone)
	assert.Equal(t, 10, response.Workers[0].SamplesTotal)
}

func TestGetProgressNoTracker(t *testing.T) {
	router := createRouter(createDB(t), nil)

	var response api.ProgressResponse
	assert.Equal(t, http.StatusOK, get(t, router, "/progress", &response))
	assert.Empty(t, response.Workers)
}
