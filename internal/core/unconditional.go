package core

import (
	"context"
	"path/filepath"
	"strconv"

	"sampling-backend/internal/config"
	"sampling-backend/internal/core/types"
)

// UnconditionalConstants is the read-only bundle shared by every worker of an
// unconditional run. Target lengths live on the tasks, not here.
type UnconditionalConstants struct {
	RootDir    string
	Name       string
	Epoch      int
	Scale      float64
	OutDir     string
	NumSamples int
	BatchSize  int
}

// ExtractUnconditionalConstants projects the configuration down to the values
// unconditional workers share. It is pure; a missing required value fails
// before any worker starts.
func ExtractUnconditionalConstants(cfg *config.Config) (UnconditionalConstants, error) {
	consts := UnconditionalConstants{
		RootDir:    cfg.RootDir,
		Name:       cfg.Name,
		Epoch:      cfg.Epoch,
		Scale:      cfg.Scale,
		OutDir:     cfg.OutDir,
		NumSamples: cfg.NumSamples,
		BatchSize:  cfg.BatchSize,
	}

	switch {
	case consts.Name == "":
		return UnconditionalConstants{}, config.Errorf("model name is required")
	case consts.Epoch < 0:
		return UnconditionalConstants{}, config.Errorf("epoch must be non-negative, got %d", consts.Epoch)
	case consts.RootDir == "":
		return UnconditionalConstants{}, config.Errorf("root directory is required")
	case consts.Scale <= 0:
		return UnconditionalConstants{}, config.Errorf("sampling noise scale must be positive, got %v", consts.Scale)
	case consts.OutDir == "":
		return UnconditionalConstants{}, config.Errorf("output directory is required")
	case consts.NumSamples <= 0:
		return UnconditionalConstants{}, config.Errorf("samples per task must be positive, got %d", consts.NumSamples)
	case consts.BatchSize <= 0:
		return UnconditionalConstants{}, config.Errorf("batch size must be positive, got %d", consts.BatchSize)
	}

	return consts, nil
}

// Request derives the parameter bundle for one batch of one length task.
// Samples for each length land in their own subdirectory of the output dir.
func (c UnconditionalConstants) Request(task Task, batch Batch) types.SampleRequest {
	return types.SampleRequest{
		Length:     task.Length,
		Scale:      c.Scale,
		NumSamples: batch.NumSamples,
		Offset:     batch.Offset,
		OutDir:     filepath.Join(c.OutDir, task.Name),
		Prefix:     task.Name,
	}
}

// BuildLengthTasks returns one task per backbone length in the configured
// sweep, smallest first.
func BuildLengthTasks(minLength, maxLength, lengthStep int) []Task {
	var tasks []Task
	for length := minLength; length <= maxLength; length += lengthStep {
		tasks = append(tasks, Task{
			Index:  len(tasks),
			Name:   strconv.Itoa(length),
			Length: length,
		})
	}
	return tasks
}

// RunUnconditional samples backbones for every length in the configured sweep
// across the configured device pool.
func (d *Driver) RunUnconditional(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(config.ModeUnconditional); err != nil {
		return err
	}

	consts, err := ExtractUnconditionalConstants(cfg)
	if err != nil {
		return err
	}

	return d.run(ctx, plan{
		mode:       config.ModeUnconditional,
		rootDir:    consts.RootDir,
		modelName:  consts.Name,
		epoch:      consts.Epoch,
		outDir:     consts.OutDir,
		numSamples: consts.NumSamples,
		batchSize:  consts.BatchSize,
		deviceKind: cfg.DeviceKind,
		numDevices: cfg.NumDevices,
		tasks:      BuildLengthTasks(cfg.MinLength, cfg.MaxLength, cfg.LengthStep),
		request:    consts.Request,
	})
}
