package di

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/rs/zerolog"

	appmint "candymint/internal/application/mint"
	cmdom "candymint/internal/domain/candymachine"
	civicinfra "candymint/internal/infra/civic"
	appcfg "candymint/internal/infra/config"
	solanainfra "candymint/internal/infra/solana"
)

func baseConfig() appcfg.Config {
	return appcfg.Config{
		CandyMachineID: "",
		RPCHost:        "http://127.0.0.1:1",
		Network:        "devnet",
		TxTimeout:      time.Second,
		PollInterval:   10 * time.Millisecond,
		Commitment:     appmint.CommitmentConfirmed,
	}
}

func TestNewWithoutWallet(t *testing.T) {
	c, err := New(context.Background(), baseConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if c.Wallet.Connected() {
		t.Error("wallet should be disconnected")
	}
	if c.Notifier != nil {
		t.Error("mail is not configured")
	}
	if a := c.Orchestrator.AttemptMint(context.Background()); a != nil {
		t.Errorf("mint without a wallet should be a no-op, got %+v", a)
	}
	if !strings.Contains(c.Describe(), "wallet=none") {
		t.Errorf("describe = %q", c.Describe())
	}
	if _, err := c.Bootstrap(context.Background()); !errors.Is(err, appcfg.ErrCandyMachineIDMissing) {
		t.Errorf("err = %v, want ErrCandyMachineIDMissing", err)
	}
}

func TestNewWalletSources(t *testing.T) {
	acc := types.NewAccount()

	cfg := baseConfig()
	cfg.WalletPrivateKey = solanainfra.EncodePrivateKeyBase58(acc)
	c, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New(base58): %v", err)
	}
	if c.Wallet.PublicKey() != acc.PublicKey.ToBase58() {
		t.Errorf("wallet = %q", c.Wallet.PublicKey())
	}
	c.Close()

	raw, err := solanainfra.EncodeKeypairJSON(acc)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "id.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg = baseConfig()
	cfg.WalletKeypair = path
	c, err = New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New(file): %v", err)
	}
	if c.Wallet.PublicKey() != acc.PublicKey.ToBase58() {
		t.Errorf("wallet = %q", c.Wallet.PublicKey())
	}
	c.Close()

	cfg = baseConfig()
	cfg.WalletPrivateKey = "not-a-key"
	if _, err := New(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("invalid key should fail")
	}
}

func TestEnsureGate(t *testing.T) {
	acc := types.NewAccount()
	cfg := baseConfig()
	cfg.WalletPrivateKey = solanainfra.EncodePrivateKeyBase58(acc)
	c, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	gate, err := c.EnsureGate(cmdom.Snapshot{})
	if err != nil || gate != nil {
		t.Fatalf("no gatekeeper: gate = %v err = %v", gate, err)
	}

	network := types.NewAccount().PublicKey.ToBase58()
	snap := cmdom.Snapshot{Gatekeeper: &cmdom.Gatekeeper{Network: network}}
	gate, err = c.EnsureGate(snap)
	if err != nil || gate == nil {
		t.Fatalf("gatekeeper: gate = %v err = %v", gate, err)
	}
	again, _ := c.EnsureGate(snap)
	if again != gate || c.Gate() != gate || c.Gateway() == nil {
		t.Error("gate must be built once")
	}
}

func TestEnsureGateNeedsWallet(t *testing.T) {
	c, err := New(context.Background(), baseConfig(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	snap := cmdom.Snapshot{Gatekeeper: &cmdom.Gatekeeper{Network: types.NewAccount().PublicKey.ToBase58()}}
	if _, err := c.EnsureGate(snap); !errors.Is(err, civicinfra.ErrGatewayNotConfigured) {
		t.Errorf("err = %v, want ErrGatewayNotConfigured", err)
	}
}

func TestNewMailNotifier(t *testing.T) {
	cfg := baseConfig()
	cfg.SendGridAPIKey = "SG.test"
	cfg.NotifyFrom = "a@example.com"
	cfg.NotifyTo = "b@example.com"
	c, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Notifier == nil {
		t.Error("notifier should be wired")
	}
}
