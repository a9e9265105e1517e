package python

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/hashicorp/go-plugin"

	"sampling-backend/internal/core/types"
	"sampling-backend/plugin/shared"
)

// Sampler drives the pytorch sampler in a plugin subprocess. The subprocess
// loads the checkpoint onto its device at startup and holds it for the life
// of the worker; each Sample call is one RPC round trip, with the subprocess
// writing the artifact files itself.
type Sampler struct {
	client *plugin.Client
	model  shared.Model
}

func LoadSampler(pythonExecutable, pluginScript, configJSON string) (*Sampler, error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: shared.Handshake,
		Plugins:         shared.PluginMap,
		Cmd: exec.Command(
			pythonExecutable,
			pluginScript,
			"--model-config", configJSON,
		),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		return nil, fmt.Errorf("error establishing RPC connection: %w", err)
	}

	raw, err := rpcClient.Dispense("model")
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("error dispensing '%s': %w", "model", err)
	}

	model, ok := raw.(shared.Model)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("dispensed interface '%s' is not of expected type shared.Model (actual type: %T)", "model", raw)
	}

	return &Sampler{
		client: client,
		model:  model,
	}, nil
}

func (s *Sampler) Sample(ctx context.Context, req types.SampleRequest) error {
	return s.model.Sample(sampleArgs(req))
}

func (s *Sampler) Release() {
	if s.client == nil {
		return
	}

	s.client.Kill()
	s.client = nil
	s.model = nil
}

func sampleArgs(req types.SampleRequest) shared.SampleArgs {
	return shared.SampleArgs{
		MotifPath:  req.MotifPath,
		Structures: req.Structures,
		Strength:   req.Strength,
		Length:     req.Length,
		Scale:      req.Scale,
		NumSamples: req.NumSamples,
		Offset:     req.Offset,
		OutDir:     req.OutDir,
		Prefix:     req.Prefix,
	}
}
