package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sampling-backend/internal/core/types"
	"sampling-backend/internal/device"
)

type remoteServer struct {
	*httptest.Server

	loads   []remoteLoadRequest
	samples []remoteSampleRequest
	unloads []string
}

func newRemoteServer(t *testing.T) *remoteServer {
	t.Helper()

	server := &remoteServer{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/models/load", func(w http.ResponseWriter, r *http.Request) {
		var req remoteLoadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		server.loads = append(server.loads, req)

		json.NewEncoder(w).Encode(remoteLoadResponse{SessionId: fmt.Sprintf("session-%d", len(server.loads))})
	})

	mux.HandleFunc("POST /api/v1/models/{session}/sample", func(w http.ResponseWriter, r *http.Request) {
		var req remoteSampleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		server.samples = append(server.samples, req)
	})

	mux.HandleFunc("POST /api/v1/models/{session}/unload", func(w http.ResponseWriter, r *http.Request) {
		server.unloads = append(server.unloads, r.PathValue("session"))
	})

	server.Server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRemoteModelLifecycle(t *testing.T) {
	server := newRemoteServer(t)

	ckpt := ResolveCheckpoint("results", "scope-l30", 40)
	model, err := LoadRemoteModel(server.URL, ckpt, device.Handle{Kind: device.KindCUDA, Index: 1})
	require.NoError(t, err)

	require.Len(t, server.loads, 1)
	assert.Equal(t, ckpt.ConfigPath, server.loads[0].ConfigPath)
	assert.Equal(t, ckpt.WeightsPath, server.loads[0].CheckpointPath)
	assert.Equal(t, "cuda:1", server.loads[0].Device)

	err = model.Sample(context.Background(), types.SampleRequest{
		MotifPath:  "data/design25/1PRW.pdb",
		Strength:   0.5,
		Scale:      0.6,
		NumSamples: 4,
		Offset:     8,
		OutDir:     "runs/scaffolds",
		Prefix:     "1PRW",
	})
	require.NoError(t, err)

	require.Len(t, server.samples, 1)
	assert.Equal(t, "data/design25/1PRW.pdb", server.samples[0].MotifPath)
	assert.Equal(t, 0.6, server.samples[0].Scale)
	assert.Equal(t, 4, server.samples[0].NumSamples)
	assert.Equal(t, 8, server.samples[0].Offset)
	assert.Equal(t, "1PRW", server.samples[0].Prefix)

	model.Release()
	assert.Equal(t, []string{"session-1"}, server.unloads)

	// Releasing an already released session is a no-op.
	model.Release()
	assert.Len(t, server.unloads, 1)
}

func TestLoadRemoteModelServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model weights not found", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := LoadRemoteModel(server.URL, ResolveCheckpoint("results", "scope-l30", 40), device.Handle{Kind: device.KindCPU})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestLoadRemoteModelMissingSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	_, err := LoadRemoteModel(server.URL, ResolveCheckpoint("results", "scope-l30", 40), device.Handle{Kind: device.KindCPU})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no session id")
}

func TestRemoteModelSampleServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/models/load", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(remoteLoadResponse{SessionId: "session-1"})
	})
	mux.HandleFunc("POST /api/v1/models/session-1/sample", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "sampler crashed", http.StatusBadGateway)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	model, err := LoadRemoteModel(server.URL, ResolveCheckpoint("results", "scope-l30", 40), device.Handle{Kind: device.KindCPU})
	require.NoError(t, err)

	err = model.Sample(context.Background(), types.SampleRequest{NumSamples: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sampler crashed")
}
