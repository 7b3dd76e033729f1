// Package address classifies on-chain addresses as wallets or tokens.
package address

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
)

// Kind is the classification verdict for an address.
type Kind string

const (
	KindWallet  Kind = "wallet"
	KindToken   Kind = "token"
	KindUnknown Kind = "unknown"
)

// Chain names the network an address format belongs to.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainSolana   Chain = "solana"
	ChainUnknown  Chain = "unknown"
)

const solanaPublicKeyLen = 32

// Classification is the result of classifying one address.
type Classification struct {
	Address string `json:"address"`
	Kind    Kind   `json:"kind"`
	Chain   Chain  `json:"chain"`
}

// DetectChain infers the chain from the address encoding alone.
func DetectChain(addr string) Chain {
	addr = strings.TrimSpace(addr)
	if common.IsHexAddress(addr) && strings.HasPrefix(strings.ToLower(addr), "0x") {
		return ChainEthereum
	}
	if decoded, err := base58.Decode(addr); err == nil && len(decoded) == solanaPublicKeyLen {
		return ChainSolana
	}
	return ChainUnknown
}

type chainClassifier interface {
	classify(ctx context.Context, addr string) (Kind, error)
}

// Options configure the per-chain lookups. An empty RPC URL disables
// lookups for that chain; its addresses classify as unknown.
type Options struct {
	Ethereum EthereumOptions
	Solana   SolanaOptions
}

// Classifier resolves address kinds through chain RPC endpoints.
type Classifier struct {
	byChain map[Chain]chainClassifier
	logger  zerolog.Logger
}

// NewClassifier builds a classifier for the configured chains.
func NewClassifier(opts Options, logger zerolog.Logger) *Classifier {
	logger = logger.With().Str("component", "address_classifier").Logger()
	c := &Classifier{byChain: make(map[Chain]chainClassifier), logger: logger}
	if opts.Ethereum.RPCURL != "" {
		c.byChain[ChainEthereum] = newEthereum(opts.Ethereum)
	}
	if opts.Solana.RPCURL != "" {
		c.byChain[ChainSolana] = newSolana(opts.Solana)
	}
	return c
}

// Classify reports whether addr is a wallet or a token. The returned
// Classification is always usable; err describes a failed lookup, in
// which case Kind is KindUnknown.
func (c *Classifier) Classify(ctx context.Context, addr string) (Classification, error) {
	addr = strings.TrimSpace(addr)
	result := Classification{Address: addr, Kind: KindUnknown, Chain: DetectChain(addr)}

	lookup, ok := c.byChain[result.Chain]
	if !ok {
		c.logger.Debug().Str("address", addr).Str("chain", string(result.Chain)).Msg("no lookup for chain")
		return result, nil
	}

	kind, err := lookup.classify(ctx, addr)
	if err != nil {
		c.logger.Warn().Err(err).Str("address", addr).Str("chain", string(result.Chain)).Msg("address lookup failed")
		return result, err
	}
	result.Kind = kind
	return result, nil
}
