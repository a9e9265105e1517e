package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"sampling-backend/internal/storage"
)

// Checkpoint locates a pretrained model under <rootdir>/<name>: the training
// configuration file next to a checkpoints directory of per-epoch weights.
type Checkpoint struct {
	Dir         string
	ConfigPath  string
	WeightsPath string
}

func ResolveCheckpoint(rootDir, name string, epoch int) Checkpoint {
	dir := filepath.Join(rootDir, name)
	return Checkpoint{
		Dir:         dir,
		ConfigPath:  filepath.Join(dir, "configuration"),
		WeightsPath: filepath.Join(dir, "checkpoints", fmt.Sprintf("epoch=%d.ckpt", epoch)),
	}
}

// Verify checks that both the configuration and the requested epoch's weights
// exist on disk.
func (c Checkpoint) Verify() error {
	if _, err := os.Stat(c.ConfigPath); err != nil {
		return fmt.Errorf("%w: model configuration not found at %s", ErrModelLoad, c.ConfigPath)
	}
	if _, err := os.Stat(c.WeightsPath); err != nil {
		return fmt.Errorf("%w: checkpoint weights not found at %s", ErrModelLoad, c.WeightsPath)
	}
	return nil
}

// Materialize downloads the model directory from the object store when it is
// not present locally. A nil store means checkpoints are local only.
func (c Checkpoint) Materialize(ctx context.Context, store storage.ObjectStore, bucket, name string) error {
	if store != nil {
		if _, err := os.Stat(c.Dir); os.IsNotExist(err) {
			slog.Info("model not found locally, downloading from object store", "model", name, "dir", c.Dir)

			if err := store.DownloadDir(ctx, bucket, name, c.Dir, false); err != nil {
				return fmt.Errorf("%w: downloading model %s: %v", ErrModelLoad, name, err)
			}
		}
	}

	return c.Verify()
}
