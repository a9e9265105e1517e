package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"sampling-backend/internal/config"
	"sampling-backend/internal/core/types"
)

const motifExt = ".pdb"

// ScaffoldConstants is the read-only bundle shared by every worker of a
// motif-scaffolding run.
type ScaffoldConstants struct {
	RootDir    string
	Name       string
	Epoch      int
	Scale      float64
	Strength   float64
	OutDir     string
	NumSamples int
	BatchSize  int
	DataDir    string
	Structures string
}

// ExtractScaffoldConstants projects the configuration down to the values
// scaffold workers share. It is pure; a missing required value fails before
// any worker starts.
func ExtractScaffoldConstants(cfg *config.Config) (ScaffoldConstants, error) {
	consts := ScaffoldConstants{
		RootDir:    cfg.RootDir,
		Name:       cfg.Name,
		Epoch:      cfg.Epoch,
		Scale:      cfg.Scale,
		Strength:   cfg.Strength,
		OutDir:     cfg.OutDir,
		NumSamples: cfg.NumSamples,
		BatchSize:  cfg.BatchSize,
		DataDir:    cfg.DataDir,
		Structures: cfg.Structures,
	}

	switch {
	case consts.Name == "":
		return ScaffoldConstants{}, config.Errorf("model name is required")
	case consts.Epoch < 0:
		return ScaffoldConstants{}, config.Errorf("epoch must be non-negative, got %d", consts.Epoch)
	case consts.RootDir == "":
		return ScaffoldConstants{}, config.Errorf("root directory is required")
	case consts.Scale <= 0:
		return ScaffoldConstants{}, config.Errorf("sampling noise scale must be positive, got %v", consts.Scale)
	case consts.OutDir == "":
		return ScaffoldConstants{}, config.Errorf("output directory is required")
	case consts.NumSamples <= 0:
		return ScaffoldConstants{}, config.Errorf("samples per task must be positive, got %d", consts.NumSamples)
	case consts.BatchSize <= 0:
		return ScaffoldConstants{}, config.Errorf("batch size must be positive, got %d", consts.BatchSize)
	case consts.DataDir == "":
		return ScaffoldConstants{}, config.Errorf("data directory is required for scaffold sampling")
	}

	return consts, nil
}

// Request derives the parameter bundle for one batch of one motif task.
func (c ScaffoldConstants) Request(task Task, batch Batch) types.SampleRequest {
	return types.SampleRequest{
		MotifPath:  filepath.Join(c.DataDir, task.Name+motifExt),
		Structures: c.Structures,
		Strength:   c.Strength,
		Scale:      c.Scale,
		NumSamples: batch.NumSamples,
		Offset:     batch.Offset,
		OutDir:     c.OutDir,
		Prefix:     task.Name,
	}
}

// BuildScaffoldTasks returns one task per motif. An explicit name list is
// taken as-is, in listed order; otherwise every motif file in the data
// directory becomes a task, in directory order.
func BuildScaffoldTasks(motifNames []string, dataDir string) ([]Task, error) {
	names := motifNames
	if len(names) == 0 {
		var err error
		if names, err = scanMotifDir(dataDir); err != nil {
			return nil, config.Errorf("cannot scan motif directory %s: %v", dataDir, err)
		}
	}

	tasks := make([]Task, len(names))
	for i, name := range names {
		tasks[i] = Task{Index: i, Name: name}
	}
	return tasks, nil
}

func scanMotifDir(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), motifExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), motifExt))
	}
	return names, nil
}

// RunScaffold samples scaffolds for every motif task across the configured
// device pool.
func (d *Driver) RunScaffold(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(config.ModeScaffold); err != nil {
		return err
	}

	consts, err := ExtractScaffoldConstants(cfg)
	if err != nil {
		return err
	}

	tasks, err := BuildScaffoldTasks(cfg.MotifNames, consts.DataDir)
	if err != nil {
		return err
	}

	return d.run(ctx, plan{
		mode:       config.ModeScaffold,
		rootDir:    consts.RootDir,
		modelName:  consts.Name,
		epoch:      consts.Epoch,
		outDir:     consts.OutDir,
		numSamples: consts.NumSamples,
		batchSize:  consts.BatchSize,
		deviceKind: cfg.DeviceKind,
		numDevices: cfg.NumDevices,
		tasks:      tasks,
		request:    consts.Request,
	})
}
