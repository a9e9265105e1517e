package integrationtests

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sampling-backend/internal/api"
	"sampling-backend/internal/config"
	"sampling-backend/internal/core"
	"sampling-backend/internal/database"
	"sampling-backend/internal/device"
	"sampling-backend/internal/runner"
	pkgapi "sampling-backend/pkg/api"
)

const fileBackend core.Backend = "file"

func scaffoldTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Name = "scope-l30"
	cfg.Epoch = 40
	cfg.RootDir = t.TempDir()
	cfg.Scale = 0.6
	cfg.OutDir = t.TempDir()
	cfg.DataDir = t.TempDir()
	cfg.NumSamples = 5
	cfg.BatchSize = 2
	cfg.NumDevices = 2
	cfg.DeviceKind = device.KindCPU

	stageCheckpoint(t, cfg.RootDir, cfg.Name, cfg.Epoch)
	for _, name := range []string{"1PRW", "3IXT"} {
		motif := filepath.Join(cfg.DataDir, name+".pdb")
		require.NoError(t, os.WriteFile(motif, []byte("ATOM      1  CA  ALA A   1       0.000   0.000   0.000  1.00  0.00           C\nEND\n"), os.ModePerm))
	}

	return &cfg
}

func TestSamplingWorkflow(t *testing.T) {
	db := createDB(t)
	cfg := scaffoldTestConfig(t)

	tracker := runner.NewTracker("sampling "+cfg.Name, false)
	loaders := map[core.Backend]core.ModelLoader{fileBackend: loadFileModel}
	driver := core.NewDriver(fileBackend, loaders, nil, "", database.NewRecorder(db), tracker)

	require.NoError(t, driver.RunScaffold(context.Background(), cfg))

	// Every motif got its full sample quota, with dense artifact indices.
	for _, motif := range []string{"1PRW", "3IXT"} {
		for i := 0; i < cfg.NumSamples; i++ {
			_, err := os.Stat(filepath.Join(cfg.OutDir, fmt.Sprintf("%s_%d.pdb", motif, i)))
			assert.NoError(t, err, "missing artifact %s_%d.pdb", motif, i)
		}
	}

	var runs []database.SamplingRun
	require.NoError(t, db.Preload("Tasks").Find(&runs).Error)
	require.Len(t, runs, 1)

	run := runs[0]
	assert.Equal(t, config.ModeScaffold, run.Mode)
	assert.Equal(t, "scope-l30", run.ModelName)
	assert.Equal(t, database.JobCompleted, run.Status)
	assert.True(t, run.CompletionTime.Valid)

	require.Len(t, run.Tasks, 2)
	for _, task := range run.Tasks {
		assert.Equal(t, database.JobCompleted, task.Status)
		assert.Equal(t, cfg.NumSamples, task.TotalSamples)
		assert.Equal(t, cfg.NumSamples, task.CompletedSamples)
		assert.True(t, task.CompletionTime.Valid)
	}

	// The status API serves the manifest and the live counters.
	router := chi.NewRouter()
	api.NewStatusService(db, tracker).AddRoutes(router)

	var listed pkgapi.ListRunsResponse
	require.NoError(t, httpRequest(router, http.MethodGet, "/runs", nil, &listed))
	require.Len(t, listed.Runs, 1)
	assert.Equal(t, int64(1), listed.Total)
	assert.Equal(t, run.Id, listed.Runs[0].Id)

	var got pkgapi.GetRunResponse
	require.NoError(t, httpRequest(router, http.MethodGet, "/runs/"+run.Id.String(), nil, &got))
	assert.Equal(t, database.JobCompleted, got.Run.Status)
	assert.Len(t, got.Run.Tasks, 2)
	assert.Empty(t, got.Errors)

	var progress pkgapi.ProgressResponse
	require.NoError(t, httpRequest(router, http.MethodGet, "/progress", nil, &progress))
	require.Len(t, progress.Workers, 2)
	for _, worker := range progress.Workers {
		assert.Equal(t, 1, worker.TasksDone)
		assert.Equal(t, cfg.NumSamples, worker.SamplesDone)
		assert.False(t, worker.Failed)
	}
}

func TestSamplingWorkflowRecordsFailure(t *testing.T) {
	db := createDB(t)
	cfg := scaffoldTestConfig(t)

	// The worker on device 0 cannot load its model; its sibling still runs.
	loaders := map[core.Backend]core.ModelLoader{
		fileBackend: func(ckpt core.Checkpoint, dev device.Handle) (core.Model, error) {
			if dev.Index == 0 {
				return nil, errors.New("CUDA out of memory")
			}
			return loadFileModel(ckpt, dev)
		},
	}
	driver := core.NewDriver(fileBackend, loaders, nil, "", database.NewRecorder(db), nil)

	err := driver.RunScaffold(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrModelLoad)

	var run database.SamplingRun
	require.NoError(t, db.Preload("Tasks").Preload("Errors").First(&run).Error)

	assert.Equal(t, database.JobFailed, run.Status)
	assert.True(t, run.CompletionTime.Valid)

	require.Len(t, run.Errors, 1)
	assert.Contains(t, run.Errors[0].Error, "CUDA out of memory")

	// One task finished on the surviving worker, the other never started.
	statuses := map[string]int{}
	completed := 0
	for _, task := range run.Tasks {
		statuses[task.Status]++
		completed += task.CompletedSamples
	}
	assert.Equal(t, 1, statuses[database.JobCompleted])
	assert.Equal(t, 1, statuses[database.JobQueued])
	assert.Equal(t, cfg.NumSamples, completed)
}

func TestUnconditionalWorkflow(t *testing.T) {
	db := createDB(t)

	cfg := config.Default()
	cfg.Name = "base"
	cfg.Epoch = 30
	cfg.RootDir = t.TempDir()
	cfg.Scale = 1
	cfg.OutDir = t.TempDir()
	cfg.MinLength = 50
	cfg.MaxLength = 100
	cfg.LengthStep = 50
	cfg.NumSamples = 2
	cfg.BatchSize = 2
	cfg.NumDevices = 1
	cfg.DeviceKind = device.KindCPU

	stageCheckpoint(t, cfg.RootDir, cfg.Name, cfg.Epoch)

	loaders := map[core.Backend]core.ModelLoader{fileBackend: loadFileModel}
	driver := core.NewDriver(fileBackend, loaders, nil, "", database.NewRecorder(db), nil)

	require.NoError(t, driver.RunUnconditional(context.Background(), &cfg))

	// Unconditional runs nest artifacts per length.
	for _, length := range []int{50, 100} {
		for i := 0; i < cfg.NumSamples; i++ {
			path := filepath.Join(cfg.OutDir, fmt.Sprintf("%d", length), fmt.Sprintf("%d_%d.pdb", length, i))
			_, err := os.Stat(path)
			assert.NoError(t, err, "missing artifact for length %d sample %d", length, i)
		}
	}

	var run database.SamplingRun
	require.NoError(t, db.Preload("Tasks").First(&run).Error)
	assert.Equal(t, config.ModeUnconditional, run.Mode)
	assert.Equal(t, database.JobCompleted, run.Status)

	names := make([]string, 0, len(run.Tasks))
	for _, task := range run.Tasks {
		names = append(names, task.Name)
	}
	assert.ElementsMatch(t, []string{"50", "100"}, names)
}
