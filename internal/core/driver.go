package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"sampling-backend/internal/config"
	"sampling-backend/internal/core/types"
	"sampling-backend/internal/device"
	"sampling-backend/internal/runner"
	"sampling-backend/internal/storage"
)

// Task is one unit of sampling work. Name identifies the target: a motif id
// for scaffold runs, a backbone length for unconditional runs. Index is the
// task's position in the pre-partition order.
type Task struct {
	Index  int
	Name   string
	Length int
}

// plan is a fully resolved run: everything the driver and its workers need,
// independent of sampling mode. request derives the parameter bundle for one
// batch of one task; it must be pure.
type plan struct {
	mode       string
	rootDir    string
	modelName  string
	epoch      int
	outDir     string
	numSamples int
	batchSize  int
	deviceKind string
	numDevices int
	tasks      []Task
	request    func(Task, Batch) types.SampleRequest
}

// Driver partitions sampling tasks across device-bound workers. Each worker
// loads the model once, then walks its shard drawing batches until every
// task's sample quota is spent.
type Driver struct {
	backend  Backend
	loaders  map[Backend]ModelLoader
	store    storage.ObjectStore
	bucket   string
	recorder runner.Recorder
	tracker  *runner.Tracker
}

// NewDriver wires a driver. store may be nil when checkpoints live on local
// disk only; recorder may be runner.NoopRecorder when no manifest database is
// configured; a nil tracker disables progress reporting.
func NewDriver(backend Backend, loaders map[Backend]ModelLoader, store storage.ObjectStore, checkpointBucket string, recorder runner.Recorder, tracker *runner.Tracker) *Driver {
	if tracker == nil {
		tracker = runner.NewTracker("sampling", false)
	}

	return &Driver{
		backend:  backend,
		loaders:  loaders,
		store:    store,
		bucket:   checkpointBucket,
		recorder: recorder,
		tracker:  tracker,
	}
}

// Generate dispatches to the sampling mode named by the config.
func (d *Driver) Generate(ctx context.Context, cfg *config.Config) error {
	switch cfg.Mode {
	case config.ModeScaffold:
		return d.RunScaffold(ctx, cfg)
	case config.ModeUnconditional:
		return d.RunUnconditional(ctx, cfg)
	default:
		return config.Errorf("unknown sampling mode %q", cfg.Mode)
	}
}

func (d *Driver) run(ctx context.Context, p plan) error {
	ckpt := ResolveCheckpoint(p.rootDir, p.modelName, p.epoch)
	if err := ckpt.Materialize(ctx, d.store, d.bucket, p.modelName); err != nil {
		return err
	}

	devices, err := device.Pool(p.deviceKind, p.numDevices)
	if err != nil {
		return err
	}
	device.WarnIfOversubscribed(p.deviceKind, p.numDevices)

	shards := runner.Partition(p.tasks, len(devices))

	runId := uuid.New()
	slog.Info("starting sampling run",
		"run_id", runId, "mode", p.mode, "model", p.modelName, "epoch", p.epoch,
		"tasks", len(p.tasks), "devices", len(devices), "batch_size", p.batchSize)

	infos := make([]runner.TaskInfo, 0, len(p.tasks))
	for i, shard := range shards {
		for _, task := range shard {
			infos = append(infos, runner.TaskInfo{
				Index:  task.Index,
				Name:   task.Name,
				Device: devices[i].String(),
				Total:  p.numSamples,
			})
		}
	}
	d.recorder.RunStarted(ctx, runner.RunInfo{
		Id:         runId,
		Mode:       p.mode,
		ModelName:  p.modelName,
		Epoch:      p.epoch,
		OutDir:     p.outDir,
		NumDevices: len(devices),
	}, infos)

	for i, shard := range shards {
		d.tracker.RegisterWorker(devices[i].String(), len(shard), len(shard)*p.numSamples)
	}

	err = runner.Run(ctx, p.tasks, devices, d.worker(runId, ckpt, p))
	d.tracker.Finish()
	d.recorder.RunFinished(ctx, runId, err)

	return err
}

func (d *Driver) worker(runId uuid.UUID, ckpt Checkpoint, p plan) runner.WorkerFunc[Task] {
	return func(ctx context.Context, worker int, dev device.Handle, shard []Task) error {
		loader, ok := d.loaders[d.backend]
		if !ok {
			return fmt.Errorf("%w: no loader for backend %q", ErrModelLoad, d.backend)
		}

		model, err := loader(ckpt, dev)
		if err != nil {
			d.tracker.WorkerFailed(worker)
			return fmt.Errorf("%w: %v", ErrModelLoad, err)
		}
		defer model.Release()

		for _, task := range shard {
			d.recorder.TaskStarted(ctx, runId, task.Index)

			if err := d.sampleTask(ctx, runId, worker, model, task, p); err != nil {
				d.recorder.TaskFinished(ctx, runId, task.Index, err)
				d.tracker.WorkerFailed(worker)
				return err
			}

			d.recorder.TaskFinished(ctx, runId, task.Index, nil)
			d.tracker.TaskDone(worker)
		}

		return nil
	}
}

func (d *Driver) sampleTask(ctx context.Context, runId uuid.UUID, worker int, model Model, task Task, p plan) error {
	completed := 0
	for _, batch := range Batches(p.numSamples, p.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}

		req := p.request(task, batch)

		if err := os.MkdirAll(req.OutDir, os.ModePerm); err != nil {
			return fmt.Errorf("%w: creating output directory %s: %v", ErrSampling, req.OutDir, err)
		}

		if err := model.Sample(ctx, req); err != nil {
			return fmt.Errorf("%w: task %s at offset %d: %v", ErrSampling, task.Name, batch.Offset, err)
		}

		completed += batch.NumSamples
		d.tracker.SamplesDone(worker, batch.NumSamples)
		d.recorder.TaskProgress(ctx, runId, task.Index, completed)
	}

	return nil
}
