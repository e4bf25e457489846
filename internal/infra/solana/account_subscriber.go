// internal/infra/solana/account_subscriber.go
package solana

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var ErrSubscriptionRejected = errors.New("account_subscriber: subscription rejected")

const subscribeAckTimeout = 10 * time.Second

// WebsocketEndpoint derives the pubsub URL from an RPC URL (https→wss, http→ws).
func WebsocketEndpoint(rpcURL string) string {
	u, err := url.Parse(strings.TrimSpace(rpcURL))
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	return u.String()
}

// AccountNotification is the part of an accountNotification payload we use.
type AccountNotification struct {
	Slot     uint64
	Lamports uint64
}

type wsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Lamports uint64 `json:"lamports"`
			} `json:"value"`
		} `json:"result"`
		Subscription uint64 `json:"subscription"`
	} `json:"params"`
}

type wsAck struct {
	ID     int       `json:"id"`
	Result *uint64   `json:"result"`
	Error  *rpcError `json:"error"`
}

// AccountSubscriber opens one websocket per accountSubscribe.
type AccountSubscriber struct {
	Endpoint   string
	Commitment string
	Dialer     *websocket.Dialer
	log        zerolog.Logger
}

func NewAccountSubscriber(endpoint, commitment string, log zerolog.Logger) *AccountSubscriber {
	if strings.TrimSpace(commitment) == "" {
		commitment = "confirmed"
	}
	return &AccountSubscriber{
		Endpoint:   strings.TrimSpace(endpoint),
		Commitment: commitment,
		Dialer:     websocket.DefaultDialer,
		log:        log.With().Str("component", "account_subscriber").Logger(),
	}
}

// Subscribe calls fn for every change of account until the returned cancel
// is called or ctx is done. fn runs on the reader goroutine and must not call cancel.
func (s *AccountSubscriber) Subscribe(ctx context.Context, account string, fn func(AccountNotification)) (func(), error) {
	if s == nil || s.Endpoint == "" {
		return nil, fmt.Errorf("account_subscriber: endpoint not configured")
	}
	acct := strings.TrimSpace(account)
	if acct == "" {
		return nil, fmt.Errorf("account_subscriber: account is empty")
	}

	conn, _, err := s.Dialer.DialContext(ctx, s.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("account_subscriber: dial %s: %w", s.Endpoint, err)
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "accountSubscribe",
		Params: []any{
			acct,
			map[string]any{"encoding": "base64", "commitment": s.Commitment},
		},
	}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("account_subscriber: write subscribe: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(subscribeAckTimeout))
	var ack wsAck
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, fmt.Errorf("account_subscriber: read ack: %w", err)
	}
	if ack.Error != nil || ack.Result == nil {
		conn.Close()
		if ack.Error != nil {
			return nil, fmt.Errorf("%w: code=%d message=%s", ErrSubscriptionRejected, ack.Error.Code, ack.Error.Message)
		}
		return nil, ErrSubscriptionRejected
	}
	_ = conn.SetReadDeadline(time.Time{})

	subID := *ack.Result
	s.log.Info().Str("account", maskShort(acct)).Uint64("subscription", subID).Msg("subscribed")

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			var msg wsNotification
			if err := conn.ReadJSON(&msg); err != nil {
				if subCtx.Err() == nil {
					s.log.Warn().Err(err).Uint64("subscription", subID).Msg("subscription closed")
				}
				return
			}
			if msg.Method != "accountNotification" || msg.Params.Subscription != subID {
				continue
			}
			fn(AccountNotification{
				Slot:     msg.Params.Result.Context.Slot,
				Lamports: msg.Params.Result.Value.Lamports,
			})
		}
	}()

	go func() {
		<-subCtx.Done()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}
