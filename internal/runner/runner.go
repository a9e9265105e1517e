package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"sampling-backend/internal/device"
)

// WorkerFunc executes one shard of tasks bound to a single device. A worker
// owns its device and its shard exclusively; it must not touch state shared
// with sibling workers. The worker argument is the shard index.
type WorkerFunc[T any] func(ctx context.Context, worker int, dev device.Handle, shard []T) error

// Run partitions tasks across the given devices and executes one worker per
// device, returning once every worker has finished. A failing worker never
// disturbs its siblings: there is no cancellation fan-out and no
// redistribution of its remaining shard. The joined worker errors are
// returned for logging and exit status only.
func Run[T any](ctx context.Context, tasks []T, devices []device.Handle, work WorkerFunc[T]) error {
	if len(devices) == 0 {
		return errors.New("no devices to run on")
	}

	shards := Partition(tasks, len(devices))

	var wg sync.WaitGroup
	errs := make([]error, len(devices))

	for i := range devices {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			dev, shard := devices[i], shards[i]
			slog.Info("worker starting", "worker", i, "device", dev.String(), "tasks", len(shard))

			if err := work(ctx, i, dev, shard); err != nil {
				slog.Error("worker failed", "worker", i, "device", dev.String(), "error", err)
				errs[i] = fmt.Errorf("worker %d (%s): %w", i, dev, err)
				return
			}

			slog.Info("worker finished", "worker", i, "device", dev.String())
		}(i)
	}

	wg.Wait()
	return errors.Join(errs...)
}
