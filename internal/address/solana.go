package address

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	systemProgramID    = "11111111111111111111111111111111"
	tokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PWnZ4Ka2sxGb1Ht"

	maxRPCBodyBytes = 1 << 20
)

// SolanaOptions parameterise the Solana lookup.
type SolanaOptions struct {
	RPCURL  string
	Timeout time.Duration
}

type solana struct {
	endpoint  string
	client    *http.Client
	requestID atomic.Uint64
}

func newSolana(opts SolanaOptions) *solana {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &solana{endpoint: opts.RPCURL, client: &http.Client{Timeout: timeout}}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

type accountInfoResult struct {
	Value *struct {
		Owner string          `json:"owner"`
		Data  json.RawMessage `json:"data"`
	} `json:"value"`
}

type parsedAccountData struct {
	Parsed struct {
		Type string `json:"type"`
	} `json:"parsed"`
}

// classify distinguishes mints from wallets by account owner. Token
// program accounts that are not mints hold balances and are not tokens.
func (s *solana) classify(ctx context.Context, addr string) (Kind, error) {
	var info accountInfoResult
	params := []any{addr, map[string]string{"encoding": "jsonParsed"}}
	if err := s.call(ctx, "getAccountInfo", params, &info); err != nil {
		return KindUnknown, err
	}
	if info.Value == nil {
		return KindUnknown, nil
	}

	switch info.Value.Owner {
	case systemProgramID:
		return KindWallet, nil
	case tokenProgramID, token2022ProgramID:
		var data parsedAccountData
		if err := json.Unmarshal(info.Value.Data, &data); err == nil && data.Parsed.Type == "mint" {
			return KindToken, nil
		}
		return KindUnknown, nil
	default:
		return KindUnknown, nil
	}
}

func (s *solana) call(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      s.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxRPCBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: HTTP %d: %s", method, resp.StatusCode, bytes.TrimSpace(payload))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(payload, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}
