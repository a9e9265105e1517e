//go:build !windows

package core

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"sampling-backend/internal/core/types"
	"sampling-backend/internal/device"
)

var (
	initOnce sync.Once
	initErr  error
)

func initOnnxRuntime(libraryPath string) error {
	initOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

// OnnxModel runs an exported unconditional sampler graph in-process. The
// graph maps an initial noise tensor and a noise scale to backbone CA
// coordinates; this side draws the noise and writes the PDB files. Motif
// scaffolding needs the full pytorch sampler and is not supported here.
type OnnxModel struct {
	session *ort.DynamicAdvancedSession
}

func LoadOnnxModel(libraryPath string, ckpt Checkpoint, dev device.Handle) (Model, error) {
	if err := initOnnxRuntime(libraryPath); err != nil {
		return nil, fmt.Errorf("onnxruntime init error: %w", err)
	}

	onnxPath := filepath.Join(ckpt.Dir, "model.onnx")
	if _, err := os.Stat(onnxPath); err != nil {
		return nil, fmt.Errorf("onnx export not found at %s, export %s first", onnxPath, ckpt.WeightsPath)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if dev.Kind == device.KindCUDA {
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("failed to create CUDA provider options: %w", err)
		}
		defer cudaOptions.Destroy()

		if err := cudaOptions.Update(map[string]string{"device_id": strconv.Itoa(dev.Index)}); err != nil {
			return nil, fmt.Errorf("failed to select CUDA device %d: %w", dev.Index, err)
		}
		if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			return nil, fmt.Errorf("failed to enable CUDA execution provider: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		onnxPath,
		[]string{"noise", "scale"},
		[]string{"coords"},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &OnnxModel{session: session}, nil
}

func (m *OnnxModel) Sample(ctx context.Context, req types.SampleRequest) error {
	if req.MotifPath != "" || req.Structures != "" {
		return fmt.Errorf("motif scaffolding is not supported by the onnx backend")
	}
	if req.Length <= 0 {
		return fmt.Errorf("unconditional sampling requires a positive length, got %d", req.Length)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	B, L := int64(req.NumSamples), int64(req.Length)

	noise := make([]float32, B*L*3)
	for i := range noise {
		noise[i] = float32(rand.NormFloat64())
	}

	noiseT, err := ort.NewTensor(ort.NewShape(B, L, 3), noise)
	if err != nil {
		return err
	}
	defer noiseT.Destroy()

	scaleT, err := ort.NewTensor(ort.NewShape(1), []float32{float32(req.Scale)})
	if err != nil {
		return err
	}
	defer scaleT.Destroy()

	outT, err := ort.NewEmptyTensor[float32](ort.NewShape(B, L, 3))
	if err != nil {
		return err
	}
	defer outT.Destroy()

	if err := m.session.Run([]ort.Value{noiseT, scaleT}, []ort.Value{outT}); err != nil {
		return fmt.Errorf("session run error: %w", err)
	}

	flat := outT.GetData()
	for b := int64(0); b < B; b++ {
		coords := make([][3]float32, L)
		for l := int64(0); l < L; l++ {
			base := (b*L + l) * 3
			coords[l] = [3]float32{flat[base], flat[base+1], flat[base+2]}
		}

		path := filepath.Join(req.OutDir, req.SampleName(int(b))+".pdb")
		if err := WriteCATrace(path, coords); err != nil {
			return fmt.Errorf("error writing sample %s: %w", path, err)
		}
	}

	return nil
}

func (m *OnnxModel) Release() {
	m.session.Destroy()
}
