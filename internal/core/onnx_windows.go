//go:build windows

package core

import (
	"context"
	"errors"

	"sampling-backend/internal/core/types"
	"sampling-backend/internal/device"
)

var ErrOnnxNotSupportedOnWindows = errors.New("the onnx backend is not supported on Windows")

type OnnxModel struct{}

func LoadOnnxModel(libraryPath string, ckpt Checkpoint, dev device.Handle) (Model, error) {
	return nil, ErrOnnxNotSupportedOnWindows
}

func (m *OnnxModel) Sample(ctx context.Context, req types.SampleRequest) error {
	return ErrOnnxNotSupportedOnWindows
}

func (m *OnnxModel) Release() {
	// no-op
}
