// internal/infra/civic/gateway.go
package civic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/near/borsh-go"
	"github.com/rs/zerolog"

	appmint "candymint/internal/application/mint"
)

// Civic gateway program.
const ProgramID = "gatem74V238djXdzWnJf94Wo1DcnuGkfijbf3AuBhfs"

const DefaultPollInterval = 2 * time.Second

var (
	ErrGatewayNotConfigured = errors.New("civic: gateway not configured")
	ErrInvalidToken         = errors.New("civic: invalid gateway token data")
)

// ============================================================
// PDA
// ============================================================

// TokenAddress は owner × network の gateway token PDA。
//
//	seeds = [owner, "gateway", 0x00 * 8, network]
func TokenAddress(owner, network common.PublicKey) (common.PublicKey, error) {
	seeds := [][]byte{owner.Bytes(), []byte("gateway"), make([]byte, 8), network.Bytes()}
	addr, _, err := common.FindProgramAddress(seeds, common.PublicKeyFromString(ProgramID))
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("civic: derive gateway token: %w", err)
	}
	return addr, nil
}

// ExpireFeatureAddress is the network's expire-on-use feature account.
func ExpireFeatureAddress(network common.PublicKey) (common.PublicKey, error) {
	seeds := [][]byte{network.Bytes(), []byte("expire")}
	addr, _, err := common.FindProgramAddress(seeds, common.PublicKeyFromString(ProgramID))
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("civic: derive expire feature: %w", err)
	}
	return addr, nil
}

// ============================================================
// Token layout (borsh)
// ============================================================

type TokenState uint8

const (
	TokenActive TokenState = iota
	TokenRevoked
	TokenFrozen
)

type TokenLayout struct {
	Features          uint8
	ParentToken       *common.PublicKey
	OwnerWallet       common.PublicKey
	OwnerIdentity     *common.PublicKey
	GatekeeperNetwork common.PublicKey
	IssuingGatekeeper common.PublicKey
	State             uint8
	ExpireTime        *int64
}

func DecodeToken(data []byte) (TokenLayout, error) {
	var t TokenLayout
	if len(data) == 0 {
		return t, ErrInvalidToken
	}
	if err := borsh.Deserialize(&t, data); err != nil {
		return t, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return t, nil
}

// Valid: state が Active かつ期限切れでない。
func (t TokenLayout) Valid(now time.Time) bool {
	if TokenState(t.State) != TokenActive {
		return false
	}
	return t.ExpireTime == nil || *t.ExpireTime > now.Unix()
}

// ============================================================
// Gateway (appmint.Gateway 実装)
// ============================================================

// AccountReader is satisfied by *client.Client.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, base58Addr string) (client.AccountInfo, error)
}

type Gateway struct {
	rpc        AccountReader
	httpClient *http.Client
	requestURL string

	owner   common.PublicKey
	network common.PublicKey
	token   common.PublicKey

	now func() time.Time
	log zerolog.Logger

	mu      sync.Mutex
	status  appmint.GatewayStatus
	subs    map[int]chan appmint.GatewayStatus
	nextSub int
}

var _ appmint.Gateway = (*Gateway)(nil)

// NewGateway watches the gateway token of owner on network.
// requestURL is optional; when empty RequestToken only waits for the token to appear on chain.
func NewGateway(rpc AccountReader, owner, network, requestURL string, log zerolog.Logger) (*Gateway, error) {
	if rpc == nil {
		return nil, ErrGatewayNotConfigured
	}
	o := strings.TrimSpace(owner)
	n := strings.TrimSpace(network)
	if o == "" || n == "" {
		return nil, fmt.Errorf("%w: owner/network is empty", ErrGatewayNotConfigured)
	}
	ownerPK := common.PublicKeyFromString(o)
	networkPK := common.PublicKeyFromString(n)
	tok, err := TokenAddress(ownerPK, networkPK)
	if err != nil {
		return nil, err
	}
	return &Gateway{
		rpc:        rpc,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		requestURL: strings.TrimSpace(requestURL),
		owner:      ownerPK,
		network:    networkPK,
		token:      tok,
		now:        time.Now,
		log:        log.With().Str("component", "civic").Logger(),
		subs:       map[int]chan appmint.GatewayStatus{},
	}, nil
}

func (g *Gateway) TokenAddress() string { return g.token.ToBase58() }

func (g *Gateway) Status() appmint.GatewayStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *Gateway) Subscribe() (<-chan appmint.GatewayStatus, func()) {
	ch := make(chan appmint.GatewayStatus, 4)
	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = ch
	g.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.subs, id)
			close(ch)
			g.mu.Unlock()
		})
	}
}

// setStatus notifies subscribers under g.mu so cancel cannot close a channel mid-send.
// Sends never block; a full subscriber drops the update.
func (g *Gateway) setStatus(st appmint.GatewayStatus) {
	g.mu.Lock()
	if g.status == st {
		g.mu.Unlock()
		return
	}
	g.status = st
	dropped := 0
	for _, ch := range g.subs {
		select {
		case ch <- st:
		default:
			dropped++
		}
	}
	g.mu.Unlock()

	g.log.Info().Str("status", st.String()).Msg("gateway status changed")
	if dropped > 0 {
		g.log.Warn().Int("dropped", dropped).Msg("gateway subscriber is slow; status dropped")
	}
}

type tokenRequest struct {
	Address string `json:"address"`
	Network string `json:"gatekeeperNetwork"`
}

// RequestToken asks the gatekeeper to issue a token. Issuance is observed by Refresh/Watch.
func (g *Gateway) RequestToken(ctx context.Context) error {
	if g == nil {
		return ErrGatewayNotConfigured
	}
	g.setStatus(appmint.GatewayRequesting)

	if g.requestURL == "" {
		g.log.Info().Str("token", g.token.ToBase58()).Msg("no gatekeeper endpoint; waiting for on-chain token")
		return nil
	}

	body, err := json.Marshal(tokenRequest{Address: g.owner.ToBase58(), Network: g.network.ToBase58()})
	if err != nil {
		g.setStatus(appmint.GatewayNone)
		return fmt.Errorf("civic: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.requestURL, bytes.NewReader(body))
	if err != nil {
		g.setStatus(appmint.GatewayNone)
		return fmt.Errorf("civic: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.setStatus(appmint.GatewayNone)
		return fmt.Errorf("civic: request token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.setStatus(appmint.GatewayNone)
		return fmt.Errorf("civic: request token: http status=%d", resp.StatusCode)
	}
	return nil
}

// Refresh reads the token account once and updates the status.
func (g *Gateway) Refresh(ctx context.Context) (appmint.GatewayStatus, error) {
	info, err := g.rpc.GetAccountInfo(ctx, g.token.ToBase58())
	if err != nil {
		return g.Status(), fmt.Errorf("civic: GetAccountInfo: %w", err)
	}

	if len(info.Data) == 0 {
		// 未発行: 要求中ならそのまま待つ
		if g.Status() == appmint.GatewayActive {
			g.setStatus(appmint.GatewayNone)
		}
		return g.Status(), nil
	}

	tok, err := DecodeToken(info.Data)
	if err != nil {
		return g.Status(), err
	}
	if tok.Valid(g.now()) {
		g.setStatus(appmint.GatewayActive)
	} else if g.Status() == appmint.GatewayActive {
		g.setStatus(appmint.GatewayNone)
	}
	return g.Status(), nil
}

// Watch refreshes every interval until ctx is done.
func (g *Gateway) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := g.Refresh(ctx); err != nil && ctx.Err() == nil {
			g.log.Debug().Err(err).Msg("gateway refresh failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
