package address

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthereumOptions parameterise the EVM lookup.
type EthereumOptions struct {
	RPCURL  string
	Timeout time.Duration
}

// ethereum treats any address with deployed bytecode as a token contract.
type ethereum struct {
	opts      EthereumOptions
	client    *ethclient.Client
	clientMux sync.Mutex
}

func newEthereum(opts EthereumOptions) *ethereum {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &ethereum{opts: opts}
}

func (e *ethereum) classify(ctx context.Context, addr string) (Kind, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	client, err := e.getClient(ctx)
	if err != nil {
		return KindUnknown, err
	}

	code, err := client.CodeAt(ctx, common.HexToAddress(addr), nil)
	if err != nil {
		return KindUnknown, err
	}
	if len(code) > 0 {
		return KindToken, nil
	}
	return KindWallet, nil
}

func (e *ethereum) getClient(ctx context.Context) (*ethclient.Client, error) {
	e.clientMux.Lock()
	defer e.clientMux.Unlock()

	if e.client != nil {
		return e.client, nil
	}

	client, err := ethclient.DialContext(ctx, e.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	e.client = client
	return client, nil
}
