// internal/platform/di/container.go
package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	appmint "candymint/internal/application/mint"
	cmdom "candymint/internal/domain/candymachine"
	civicinfra "candymint/internal/infra/civic"
	appcfg "candymint/internal/infra/config"
	mailinfra "candymint/internal/infra/mail"
	solanainfra "candymint/internal/infra/solana"
)

// Container は cmd から使う依存オブジェクトの束です。
// cmd 側を薄く保つため、組み立てはすべてここで行う。
type Container struct {
	Config appcfg.Config
	Log    zerolog.Logger

	Transport    *solanainfra.Transport
	Wallet       *solanainfra.KeypairWallet
	Program      *solanainfra.CandyMachineClient
	Session      *appmint.Session
	Poller       *appmint.Poller
	Orchestrator *appmint.Orchestrator

	Registry *prometheus.Registry
	Metrics  *appmint.Metrics
	Notifier *mailinfra.Notifier

	// gatekeeper 付きの candy machine でだけ組み立てる（EnsureGate）
	gateMu  sync.Mutex
	gateway *civicinfra.Gateway
	gate    *appmint.GateCoordinator

	cleanupFn []func()
}

// New wires the whole graph. Nothing here dials the cluster; the first RPC
// happens in Bootstrap.
func New(ctx context.Context, cfg appcfg.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Log: log}

	commitment := string(cfg.Commitment)
	c.Transport = solanainfra.NewTransport(cfg.RPCHost, cfg.WSEndpoint, commitment, log)
	log.Info().
		Str("component", "di").
		Str("rpc", c.Transport.JSON.Endpoint).
		Str("network", cfg.Network).
		Msg("solana transport initialized")

	wallet, err := c.loadWallet(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Wallet = wallet

	c.Program = solanainfra.NewCandyMachineClient(c.Transport.RPC, c.Transport.JSON, wallet, commitment, log)
	c.Session = appmint.NewSession(cfg.CandyMachineID, c.Program, c.Transport, wallet, cfg.Resolver(), log)
	c.Poller = appmint.NewPoller(c.Transport, cfg.PollInterval, log)

	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.Metrics = appmint.NewMetrics(c.Registry)

	c.Orchestrator = appmint.NewOrchestrator(c.Session, wallet, c.Program, c.Poller, appmint.OrchestratorConfig{
		TxTimeout:  cfg.TxTimeout,
		Commitment: cfg.Commitment,
		Relaxed:    cfg.Relaxed,
	}, log)
	c.Orchestrator.SetMetrics(c.Metrics)

	if cfg.MailEnabled() {
		c.Notifier = mailinfra.NewNotifier(mailinfra.NewSendGridClient(cfg.SendGridAPIKey, log), cfg.NotifyFrom, cfg.NotifyTo, log)
		unsubscribe := c.Notifier.Attach(c.Session)
		c.cleanupFn = append(c.cleanupFn, unsubscribe, c.Notifier.Wait)
		log.Info().Str("component", "di").Msg("mail notifier enabled")
	}

	return c, nil
}

// loadWallet: ファイル → base58 → Secret Manager の順に見る。どれもなければ未接続。
func (c *Container) loadWallet(ctx context.Context) (*solanainfra.KeypairWallet, error) {
	cfg := c.Config
	l := c.Log.With().Str("component", "di").Logger()

	var (
		acc    types.Account
		err    error
		source string
	)
	switch {
	case cfg.WalletKeypair != "":
		source = "file"
		acc, err = solanainfra.LoadKeypairFile(cfg.WalletKeypair)
	case cfg.WalletPrivateKey != "":
		source = "env"
		acc, err = solanainfra.ParsePrivateKey(cfg.WalletPrivateKey)
	case cfg.WalletKeySecret != "":
		source = "secretmanager"
		var sm *solanainfra.WalletSecretProviderSM
		sm, err = solanainfra.NewWalletSecretProviderSM(ctx, cfg.GCPProjectID, cfg.WalletKeySecret, cfg.GCPCreds)
		if err == nil {
			c.cleanupFn = append(c.cleanupFn, func() { _ = sm.Close() })
			acc, err = sm.LoadAccount(ctx)
		}
	default:
		l.Info().Msg("no wallet configured; running read-only")
		return solanainfra.DisconnectedWallet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("di: load wallet (%s): %w", source, err)
	}

	w := solanainfra.NewKeypairWallet(acc)
	l.Info().Str("source", source).Str("wallet", appmint.ShortKey(w.PublicKey(), 4)).Msg("wallet loaded")
	return w, nil
}

// Bootstrap performs the initial reads: snapshot, gate wiring, balances.
func (c *Container) Bootstrap(ctx context.Context) (cmdom.Snapshot, error) {
	if err := c.Config.RequireCandyMachine(); err != nil {
		return cmdom.Snapshot{}, err
	}
	snap, err := c.Session.RefreshSnapshot(ctx)
	if err != nil {
		return cmdom.Snapshot{}, err
	}
	if _, err := c.EnsureGate(snap); err != nil && !errors.Is(err, civicinfra.ErrGatewayNotConfigured) {
		return cmdom.Snapshot{}, err
	}
	if c.Wallet.Connected() {
		if _, err := c.Session.RefreshBalance(ctx); err != nil {
			c.Log.Warn().Err(err).Str("component", "di").Msg("initial balance read failed")
		}
		c.Session.RefreshWhitelistBalance(ctx)
	}
	return snap, nil
}

// EnsureGate builds the civic gateway + coordinator once the snapshot names a gatekeeper.
// It returns nil (no error) for candy machines without one.
func (c *Container) EnsureGate(snap cmdom.Snapshot) (*appmint.GateCoordinator, error) {
	c.gateMu.Lock()
	defer c.gateMu.Unlock()

	if c.gate != nil || snap.Gatekeeper == nil {
		return c.gate, nil
	}
	if !c.Wallet.Connected() {
		return nil, fmt.Errorf("%w: wallet not connected", civicinfra.ErrGatewayNotConfigured)
	}

	gw, err := civicinfra.NewGateway(c.Transport.RPC, c.Wallet.PublicKey(), snap.Gatekeeper.Network, c.Config.GatekeeperURL, c.Log)
	if err != nil {
		return nil, err
	}
	gate := appmint.NewGateCoordinator(gw, c.Log)
	c.Orchestrator.SetGate(gate)
	c.gateway = gw
	c.gate = gate

	c.Log.Info().
		Str("component", "di").
		Str("network", appmint.ShortKey(snap.Gatekeeper.Network, 4)).
		Str("token", appmint.ShortKey(gw.TokenAddress(), 4)).
		Bool("expireOnUse", snap.Gatekeeper.ExpireOnUse).
		Msg("gateway wired")
	return gate, nil
}

func (c *Container) Gateway() *civicinfra.Gateway {
	c.gateMu.Lock()
	defer c.gateMu.Unlock()
	return c.gateway
}

func (c *Container) Gate() *appmint.GateCoordinator {
	c.gateMu.Lock()
	defer c.gateMu.Unlock()
	return c.gate
}

// Close releases owned clients in reverse order.
func (c *Container) Close() {
	if c == nil {
		return
	}
	for i := len(c.cleanupFn) - 1; i >= 0; i-- {
		c.cleanupFn[i]()
	}
	c.cleanupFn = nil
}

// Describe は status 出力用の 1 行サマリです。
func (c *Container) Describe() string {
	parts := []string{
		"network=" + c.Config.Network,
		"commitment=" + string(c.Config.Commitment),
	}
	if c.Wallet.Connected() {
		parts = append(parts, "wallet="+appmint.ShortKey(c.Wallet.PublicKey(), 4))
	} else {
		parts = append(parts, "wallet=none")
	}
	return strings.Join(parts, " ")
}
