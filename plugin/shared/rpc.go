package shared

import (
	"net/rpc"
)

// RPCClient is an implementation of Model that talks over RPC.
type RPCClient struct{ client *rpc.Client }

func (m *RPCClient) Sample(args SampleArgs) error {
	var resp SampleReply
	return m.client.Call("Plugin.Sample", args, &resp)
}

// Here is the RPC server that RPCClient talks to, conforming to
// the requirements of net/rpc
type RPCServer struct {
	// This is the real implementation
	Impl Model
}

func (m *RPCServer) Sample(args SampleArgs, resp *SampleReply) error {
	return m.Impl.Sample(args)
}
