package address

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	evmAddr     = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	solanaMint  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	solanaOwner = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

type rpcCall struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params []any           `json:"params"`
}

// rpcServer answers every JSON-RPC call with result(method, params).
func rpcServer(t *testing.T, result func(method string, params []any) any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call rpcCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      call.ID,
			"result":  result(call.Method, call.Params),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDetectChain(t *testing.T) {
	assert.Equal(t, ChainEthereum, DetectChain(evmAddr))
	assert.Equal(t, ChainSolana, DetectChain(solanaMint))
	assert.Equal(t, ChainSolana, DetectChain(" "+solanaOwner+" "))
	assert.Equal(t, ChainUnknown, DetectChain("6B175474E89094C44Da98b954EedeAC495271d0F"))
	assert.Equal(t, ChainUnknown, DetectChain("MUSK"))
	assert.Equal(t, ChainUnknown, DetectChain(""))
}

func TestClassifyWithoutRPCIsUnknown(t *testing.T) {
	c := NewClassifier(Options{}, zerolog.Nop())
	got, err := c.Classify(context.Background(), evmAddr)
	require.NoError(t, err)
	assert.Equal(t, Classification{Address: evmAddr, Kind: KindUnknown, Chain: ChainEthereum}, got)
}

func TestClassifyEthereum(t *testing.T) {
	var methods []string
	srv := rpcServer(t, func(method string, params []any) any {
		methods = append(methods, method)
		if len(params) > 0 && params[0] == "0x6b175474e89094c44da98b954eedeac495271d0f" {
			return "0x6080604052"
		}
		return "0x"
	})

	c := NewClassifier(Options{Ethereum: EthereumOptions{RPCURL: srv.URL}}, zerolog.Nop())

	got, err := c.Classify(context.Background(), evmAddr)
	require.NoError(t, err)
	assert.Equal(t, KindToken, got.Kind)

	got, err = c.Classify(context.Background(), "0x00000000219ab540356cBB839Cbe05303d7705Fa")
	require.NoError(t, err)
	assert.Equal(t, KindWallet, got.Kind)
	assert.Equal(t, []string{"eth_getCode", "eth_getCode"}, methods)
}

func TestClassifySolana(t *testing.T) {
	srv := rpcServer(t, func(method string, params []any) any {
		assert.Equal(t, "getAccountInfo", method)
		switch params[0] {
		case solanaMint:
			return map[string]any{"value": map[string]any{
				"owner": tokenProgramID,
				"data":  map[string]any{"program": "spl-token", "parsed": map[string]any{"type": "mint"}},
			}}
		case solanaOwner:
			return map[string]any{"value": map[string]any{
				"owner": systemProgramID,
				"data":  []string{"", "base64"},
			}}
		default:
			return map[string]any{"value": nil}
		}
	})

	c := NewClassifier(Options{Solana: SolanaOptions{RPCURL: srv.URL}}, zerolog.Nop())
	ctx := context.Background()

	got, err := c.Classify(ctx, solanaMint)
	require.NoError(t, err)
	assert.Equal(t, KindToken, got.Kind)
	assert.Equal(t, ChainSolana, got.Chain)

	got, err = c.Classify(ctx, solanaOwner)
	require.NoError(t, err)
	assert.Equal(t, KindWallet, got.Kind)

	got, err = c.Classify(ctx, "So11111111111111111111111111111111111111112")
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, got.Kind)
}

func TestClassifySolanaRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   map[string]any{"code": -32005, "message": "node is behind"},
		})
	}))
	defer srv.Close()

	c := NewClassifier(Options{Solana: SolanaOptions{RPCURL: srv.URL}}, zerolog.Nop())
	got, err := c.Classify(context.Background(), solanaMint)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node is behind")
	assert.Equal(t, KindUnknown, got.Kind)
}
