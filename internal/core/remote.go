package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"sampling-backend/internal/core/types"
	"sampling-backend/internal/device"
)

const remoteLoadTimeout = 5 * time.Minute

// RemoteModel drives a sampler hosted by a standalone model server. Loading
// creates a server-side session pinned to one device; sampling references the
// session until Release drops it. The server writes artifacts itself, so it
// must share a filesystem with the configured output directory.
type RemoteModel struct {
	client    *resty.Client
	sessionId string
}

type remoteLoadRequest struct {
	ConfigPath     string `json:"config_path"`
	CheckpointPath string `json:"checkpoint_path"`
	Device         string `json:"device"`
}

type remoteLoadResponse struct {
	SessionId string `json:"session_id"`
}

type remoteSampleRequest struct {
	MotifPath  string  `json:"motif_path,omitempty"`
	Structures string  `json:"structures,omitempty"`
	Strength   float64 `json:"strength"`
	Length     int     `json:"length,omitempty"`
	Scale      float64 `json:"scale"`
	NumSamples int     `json:"num_samples"`
	Offset     int     `json:"offset"`
	OutDir     string  `json:"outdir"`
	Prefix     string  `json:"prefix"`
}

func LoadRemoteModel(baseURL string, ckpt Checkpoint, dev device.Handle) (*RemoteModel, error) {
	client := resty.New().SetBaseURL(baseURL)

	ctx, cancel := context.WithTimeout(context.Background(), remoteLoadTimeout)
	defer cancel()

	res, err := client.R().
		SetContext(ctx).
		SetBody(remoteLoadRequest{
			ConfigPath:     ckpt.ConfigPath,
			CheckpointPath: ckpt.WeightsPath,
			Device:         dev.String(),
		}).
		Post("/api/v1/models/load")
	if err != nil {
		return nil, fmt.Errorf("error loading model on remote server: %w", err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("remote server returned %d loading model: %s", res.StatusCode(), res.String())
	}

	var loaded remoteLoadResponse
	if err := json.Unmarshal(res.Body(), &loaded); err != nil {
		return nil, fmt.Errorf("error parsing response from remote server: %w", err)
	}
	if loaded.SessionId == "" {
		return nil, fmt.Errorf("remote server returned no session id")
	}

	return &RemoteModel{client: client, sessionId: loaded.SessionId}, nil
}

func (m *RemoteModel) Sample(ctx context.Context, req types.SampleRequest) error {
	res, err := m.client.R().
		SetContext(ctx).
		SetBody(remoteSampleRequest{
			MotifPath:  req.MotifPath,
			Structures: req.Structures,
			Strength:   req.Strength,
			Length:     req.Length,
			Scale:      req.Scale,
			NumSamples: req.NumSamples,
			Offset:     req.Offset,
			OutDir:     req.OutDir,
			Prefix:     req.Prefix,
		}).
		Post(fmt.Sprintf("/api/v1/models/%s/sample", m.sessionId))
	if err != nil {
		return fmt.Errorf("error sampling on remote server: %w", err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("remote server returned %d sampling: %s", res.StatusCode(), res.String())
	}

	return nil
}

func (m *RemoteModel) Release() {
	if m.sessionId == "" {
		return
	}

	res, err := m.client.R().Post(fmt.Sprintf("/api/v1/models/%s/unload", m.sessionId))
	if err != nil {
		slog.Error("error releasing remote model session", "session_id", m.sessionId, "error", err)
		return
	}
	if !res.IsSuccess() {
		slog.Error("remote server returned error releasing session", "session_id", m.sessionId, "status_code", res.StatusCode())
	}

	m.sessionId = ""
}
