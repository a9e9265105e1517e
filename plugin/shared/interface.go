package shared

import (
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

// Handshake is a common handshake that is shared by plugin and host.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "SAMPLER_PLUGIN",
	MagicCookieValue: "structure-sampler",
}

// PluginMap is the map of plugins we can dispense.
var PluginMap = map[string]plugin.Plugin{
	"model": &SamplerPlugin{},
}

// SampleArgs is the wire form of one batched sampling call. The plugin draws
// NumSamples structures and writes one PDB file per sample under OutDir.
type SampleArgs struct {
	MotifPath  string
	Structures string
	Strength   float64
	Length     int
	Scale      float64
	NumSamples int
	Offset     int
	OutDir     string
	Prefix     string
}

// SampleReply is the (empty) response; artifacts flow through the filesystem.
type SampleReply struct{}

// Model is the interface the sampler plugin serves.
type Model interface {
	Sample(args SampleArgs) error
}

// SamplerPlugin is the plugin.Plugin implementation dispensed as "model".
type SamplerPlugin struct {
	Impl Model
}

func (p *SamplerPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

func (p *SamplerPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}
