// internal/infra/solana/rpc_client.go
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blocto/solana-go-sdk/rpc"
)

// SPL Token Program ID (Tokenkeg...)
const TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

const defaultRPCTimeout = 12 * time.Second

// JSONRPCClient is a simple HTTP JSON-RPC client for Solana.
// blocto の client が返さない形（生の err / jsonParsed）が必要な呼び出しだけをここで扱う。
type JSONRPCClient struct {
	Endpoint string
	HTTP     *http.Client
}

// NewJSONRPCClient creates a Solana JSON-RPC client. An empty endpoint means devnet.
func NewJSONRPCClient(endpoint string, timeout time.Duration) *JSONRPCClient {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		ep = rpc.DevnetRPCEndpoint
	}
	if timeout <= 0 {
		timeout = defaultRPCTimeout
	}
	return &JSONRPCClient{
		Endpoint: ep,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (c *JSONRPCClient) call(ctx context.Context, method string, params any, out any) error {
	if c == nil || c.Endpoint == "" || c.HTTP == nil {
		return fmt.Errorf("solana rpc: client not configured")
	}

	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("solana rpc: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("solana rpc: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("solana rpc: http do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("solana rpc: http status=%d", resp.StatusCode)
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("solana rpc: decode response: %w", err)
	}
	if rr.Error != nil {
		return fmt.Errorf("solana rpc: error code=%d message=%s", rr.Error.Code, rr.Error.Message)
	}

	if out != nil {
		if err := json.Unmarshal(rr.Result, out); err != nil {
			return fmt.Errorf("solana rpc: unmarshal result: %w", err)
		}
	}
	return nil
}

// ============================================================
// getSignatureStatuses
// ============================================================

// SignatureStatusValue is one entry of getSignatureStatuses (null when unknown).
type SignatureStatusValue struct {
	Slot               uint64  `json:"slot"`
	Confirmations      *uint64 `json:"confirmations"`
	ConfirmationStatus *string `json:"confirmationStatus"`
	// Err は TransactionError の生 JSON（例: {"InstructionError":[4,{"Custom":311}]}）
	Err any `json:"err"`
}

type GetSignatureStatusesResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value []*SignatureStatusValue `json:"value"`
}

func (c *JSONRPCClient) GetSignatureStatuses(ctx context.Context, signatures []string, searchHistory bool) (GetSignatureStatusesResult, error) {
	var out GetSignatureStatusesResult
	if len(signatures) == 0 {
		return out, fmt.Errorf("solana rpc: no signatures")
	}

	params := []any{
		signatures,
		map[string]any{"searchTransactionHistory": searchHistory},
	}
	if err := c.call(ctx, "getSignatureStatuses", params, &out); err != nil {
		return GetSignatureStatusesResult{}, err
	}
	return out, nil
}

// ============================================================
// getTokenAccountsByOwner (mint filter)
// ============================================================

// GetTokenAccountsByOwnerResult is the decoded `result` object for getTokenAccountsByOwner (jsonParsed).
type GetTokenAccountsByOwnerResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value []struct {
		Pubkey  string `json:"pubkey"`
		Account struct {
			Data struct {
				Program string `json:"program"`
				Parsed  struct {
					Info struct {
						Mint        string `json:"mint"`
						Owner       string `json:"owner"`
						TokenAmount struct {
							Amount   string `json:"amount"`   // string integer
							Decimals int    `json:"decimals"` // for UI conversion
						} `json:"tokenAmount"`
					} `json:"info"`
					Type string `json:"type"`
				} `json:"parsed"`
			} `json:"data"`
			Owner string `json:"owner"`
		} `json:"account"`
	} `json:"value"`
}

// GetTokenAccountsByOwner lists owner's token accounts for one mint.
func (c *JSONRPCClient) GetTokenAccountsByOwner(ctx context.Context, owner, mint, commitment string) (GetTokenAccountsByOwnerResult, error) {
	var out GetTokenAccountsByOwnerResult

	owner = strings.TrimSpace(owner)
	mint = strings.TrimSpace(mint)
	if owner == "" {
		return out, fmt.Errorf("solana rpc: owner is empty")
	}
	if mint == "" {
		return out, fmt.Errorf("solana rpc: mint is empty")
	}
	if commitment == "" {
		commitment = "confirmed"
	}

	params := []any{
		owner,
		map[string]any{"mint": mint},
		map[string]any{
			"commitment": commitment,
			"encoding":   "jsonParsed",
		},
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &out); err != nil {
		return GetTokenAccountsByOwnerResult{}, err
	}
	return out, nil
}

// TotalAmount sums the raw token amounts across all returned accounts.
func (r GetTokenAccountsByOwnerResult) TotalAmount() (uint64, error) {
	var total uint64
	for _, v := range r.Value {
		s := strings.TrimSpace(v.Account.Data.Parsed.Info.TokenAmount.Amount)
		if s == "" {
			continue
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("solana rpc: token amount %q: %w", s, err)
		}
		total += n
	}
	return total, nil
}
