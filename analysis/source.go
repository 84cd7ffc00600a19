package analysis

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

// RPCCodeSource fetches deployed bytecode over JSON-RPC. It works at the raw
// RPC layer rather than through ethclient so the hex payload reaches the
// codec exactly as the node returned it. rpc.Client is safe for concurrent
// use, so one source can back a whole batch.
type RPCCodeSource struct {
	client *rpc.Client
}

// NewRPCCodeSource connects to the endpoint at url.
func NewRPCCodeSource(ctx context.Context, url string) (*RPCCodeSource, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "dialing rpc endpoint")
	}
	return &RPCCodeSource{client: client}, nil
}

// Code returns the deployed bytecode at the latest block as a hex string.
// A non-contract account yields "0x".
func (s *RPCCodeSource) Code(ctx context.Context, addr common.Address) (string, error) {
	var code string
	if err := s.client.CallContext(ctx, &code, "eth_getCode", addr, "latest"); err != nil {
		return "", errors.Wrapf(err, "eth_getCode %s", addr.Hex())
	}
	return code, nil
}

// Close tears down the underlying RPC connection.
func (s *RPCCodeSource) Close() {
	s.client.Close()
}
