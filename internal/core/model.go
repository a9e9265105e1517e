package core

import (
	"context"
	"errors"
	"fmt"

	"sampling-backend/internal/core/python"
	"sampling-backend/internal/core/types"
	"sampling-backend/internal/device"
)

// Backend represents how the diffusion model is executed
type Backend string

// Available model backends
const (
	PythonPlugin Backend = "python"
	RemoteServer Backend = "remote"
	OnnxRuntime  Backend = "onnx"
)

var (
	// ErrModelLoad marks a worker that could not load its model. The worker
	// stops before drawing any samples; sibling workers are unaffected.
	ErrModelLoad = errors.New("model load failed")

	// ErrSampling marks a failed sampling call. The worker abandons the rest
	// of its shard; batches already written stay on disk.
	ErrSampling = errors.New("sampling failed")
)

type Model interface {
	// Sample draws req.NumSamples backbones and writes one PDB file per
	// sample under req.OutDir.
	Sample(ctx context.Context, req types.SampleRequest) error

	Release()
}

type ModelLoader func(ckpt Checkpoint, dev device.Handle) (Model, error)

func NewModelLoaders(pythonExec, pluginScript, remoteURL, onnxLibrary string) map[Backend]ModelLoader {
	return map[Backend]ModelLoader{
		PythonPlugin: func(ckpt Checkpoint, dev device.Handle) (Model, error) {
			cfgJSON := fmt.Sprintf(
				`{"config_path":"%s","checkpoint_path":"%s","device":"%s"}`,
				ckpt.ConfigPath, ckpt.WeightsPath, dev,
			)
			return python.LoadSampler(pythonExec, pluginScript, cfgJSON)
		},
		RemoteServer: func(ckpt Checkpoint, dev device.Handle) (Model, error) {
			return LoadRemoteModel(remoteURL, ckpt, dev)
		},
		OnnxRuntime: func(ckpt Checkpoint, dev device.Handle) (Model, error) {
			return LoadOnnxModel(onnxLibrary, ckpt, dev)
		},
	}
}
