// internal/infra/solana/transport.go
package solana

import (
	"context"
	"fmt"
	"strings"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/rs/zerolog"

	appmint "candymint/internal/application/mint"
)

// Transport は mint.Transport の Solana 実装です。
//   - 残高: blocto client
//   - 署名ステータス: JSON-RPC getSignatureStatuses（err を生のまま受け取るため）
//   - account-change: websocket accountSubscribe
type Transport struct {
	RPC        *client.Client
	JSON       *JSONRPCClient
	Subscriber *AccountSubscriber
	log        zerolog.Logger
}

var _ appmint.Transport = (*Transport)(nil)

func NewTransport(rpcURL, wsURL, commitment string, log zerolog.Logger) *Transport {
	u := strings.TrimSpace(rpcURL)
	j := NewJSONRPCClient(u, 0)
	ws := strings.TrimSpace(wsURL)
	if ws == "" {
		ws = WebsocketEndpoint(j.Endpoint)
	}
	return &Transport{
		RPC:        client.NewClient(j.Endpoint),
		JSON:       j,
		Subscriber: NewAccountSubscriber(ws, commitment, log),
		log:        log.With().Str("component", "transport").Logger(),
	}
}

func (t *Transport) GetBalance(ctx context.Context, key string) (uint64, error) {
	if t == nil || t.RPC == nil {
		return 0, fmt.Errorf("transport: not configured")
	}
	k := strings.TrimSpace(key)
	if k == "" {
		return 0, fmt.Errorf("transport: key is empty")
	}
	lamports, err := t.RPC.GetBalance(ctx, k)
	if err != nil {
		return 0, fmt.Errorf("transport: GetBalance: %w", err)
	}
	return lamports, nil
}

// GetSignatureStatus returns nil (no error) while the cluster has not seen txID yet.
func (t *Transport) GetSignatureStatus(ctx context.Context, txID string) (*appmint.SignatureStatus, error) {
	if t == nil || t.JSON == nil {
		return nil, fmt.Errorf("transport: not configured")
	}
	res, err := t.JSON.GetSignatureStatuses(ctx, []string{strings.TrimSpace(txID)}, false)
	if err != nil {
		return nil, err
	}
	if len(res.Value) == 0 || res.Value[0] == nil {
		return nil, nil
	}
	v := res.Value[0]

	st := &appmint.SignatureStatus{
		Slot:          v.Slot,
		Confirmations: v.Confirmations,
		Err:           v.Err,
	}
	if v.ConfirmationStatus != nil {
		if c, err := appmint.ParseCommitment(*v.ConfirmationStatus); err == nil {
			st.ConfirmationStatus = c
		}
	} else if v.Confirmations == nil {
		// confirmations=null は root 済み
		st.ConfirmationStatus = appmint.CommitmentFinalized
	}
	return st, nil
}

func (t *Transport) OnAccountChange(ctx context.Context, key string, fn func()) (func(), error) {
	if t == nil || t.Subscriber == nil {
		return nil, fmt.Errorf("transport: subscriber not configured")
	}
	return t.Subscriber.Subscribe(ctx, key, func(n AccountNotification) {
		t.log.Debug().Str("account", maskShort(key)).Uint64("slot", n.Slot).Uint64("lamports", n.Lamports).Msg("account changed")
		fn()
	})
}
