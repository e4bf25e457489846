// internal/infra/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	appmint "candymint/internal/application/mint"
	cmdom "candymint/internal/domain/candymachine"
)

var (
	ErrCandyMachineIDMissing = errors.New("config: CANDY_MACHINE_ID is not set")
	ErrInvalidTimeout        = errors.New("config: TX_TIMEOUT_MS must be positive")
	ErrInvalidPollInterval   = errors.New("config: CONFIRM_POLL_INTERVAL_MS must be positive and below the timeout")
	ErrInvalidCommitment     = errors.New("config: CONFIRM_COMMITMENT is not a known commitment")
	ErrInvalidNetwork        = errors.New("config: SOLANA_NETWORK is not a known cluster")
)

// Config は起動時に 1 回だけ読み込む設定です（以後は値として渡す）。
type Config struct {
	CandyMachineID string
	RPCHost        string
	WSEndpoint     string
	Network        string

	// PublicSaleStart は解釈できなければ nil（= Welcome のまま）
	PublicSaleStart *time.Time

	TxTimeout    time.Duration
	PollInterval time.Duration
	Commitment   appmint.Commitment
	// Relaxed は confirmations > 0 でも確定扱いにする
	Relaxed bool

	Panic   cmdom.PhaseSettings
	PanicOn bool
	Welcome cmdom.PhaseSettings

	// ★ 署名鍵（どれか 1 つ）: ファイル / base58 / Secret Manager
	WalletKeypair    string
	WalletPrivateKey string
	WalletKeySecret  string
	GCPProjectID     string
	GCPCreds         string

	GatekeeperURL string

	SendGridAPIKey string
	NotifyFrom     string
	NotifyTo       string

	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

// key → 環境変数
var envKeys = map[string]string{
	"candy_machine_id":         "CANDY_MACHINE_ID",
	"solana_rpc_host":          "SOLANA_RPC_HOST",
	"solana_ws_endpoint":       "SOLANA_WS_ENDPOINT",
	"solana_network":           "SOLANA_NETWORK",
	"candy_start_date":         "CANDY_START_DATE",
	"tx_timeout_ms":            "TX_TIMEOUT_MS",
	"confirm_poll_interval_ms": "CONFIRM_POLL_INTERVAL_MS",
	"confirm_commitment":       "CONFIRM_COMMITMENT",
	"confirm_relaxed":          "CONFIRM_RELAXED",
	"mint_panic_enabled":       "MINT_PANIC_ENABLED",
	"mint_panic_title":         "MINT_PANIC_TITLE",
	"mint_panic_desc":          "MINT_PANIC_DESC",
	"welcome_title":            "WELCOME_TITLE",
	"welcome_desc":             "WELCOME_DESC",
	"welcome_countdown":        "WELCOME_COUNTDOWN",
	"wallet_keypair":           "WALLET_KEYPAIR",
	"wallet_private_key":       "WALLET_PRIVATE_KEY",
	"wallet_key_secret":        "WALLET_KEY_SECRET",
	"gcp_project_id":           "GOOGLE_CLOUD_PROJECT",
	"gcp_credentials":          "GOOGLE_APPLICATION_CREDENTIALS",
	"gatekeeper_url":           "GATEKEEPER_URL",
	"sendgrid_api_key":         "SENDGRID_API_KEY",
	"notify_email_from":        "NOTIFY_EMAIL_FROM",
	"notify_email_to":          "NOTIFY_EMAIL_TO",
	"metrics_addr":             "METRICS_ADDR",
	"log_level":                "LOG_LEVEL",
	"log_format":               "LOG_FORMAT",
}

var clusterURLs = map[string]string{
	"devnet":       "https://api.devnet.solana.com",
	"testnet":      "https://api.testnet.solana.com",
	"mainnet-beta": "https://api.mainnet-beta.solana.com",
}

// SetDefaults registers env bindings and defaults on v.
func SetDefaults(v *viper.Viper) {
	for key, env := range envKeys {
		_ = v.BindEnv(key, env)
	}
	v.SetDefault("solana_network", "devnet")
	v.SetDefault("tx_timeout_ms", 30000)
	v.SetDefault("confirm_poll_interval_ms", 500)
	v.SetDefault("confirm_commitment", "singleGossip")
	v.SetDefault("confirm_relaxed", true)
	v.SetDefault("mint_panic_enabled", false)
	v.SetDefault("mint_panic_title", "Minting is paused")
	v.SetDefault("mint_panic_desc", "Minting is temporarily unavailable. Please check back soon.")
	v.SetDefault("welcome_title", "Welcome")
	v.SetDefault("welcome_desc", "The public sale has not started yet.")
	v.SetDefault("welcome_countdown", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// Load reads everything once into an immutable Config.
// CANDY_MACHINE_ID is not required here; commands that need it call RequireCandyMachine.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	network := strings.ToLower(strings.TrimSpace(v.GetString("solana_network")))
	rpcHost := strings.TrimSpace(v.GetString("solana_rpc_host"))
	if rpcHost == "" {
		u, ok := clusterURLs[network]
		if !ok {
			return Config{}, fmt.Errorf("%w: %q", ErrInvalidNetwork, network)
		}
		rpcHost = u
	}

	timeout := time.Duration(v.GetInt64("tx_timeout_ms")) * time.Millisecond
	if timeout <= 0 {
		return Config{}, ErrInvalidTimeout
	}
	poll := time.Duration(v.GetInt64("confirm_poll_interval_ms")) * time.Millisecond
	if poll <= 0 || poll >= timeout {
		return Config{}, ErrInvalidPollInterval
	}
	commitment, err := appmint.ParseCommitment(v.GetString("confirm_commitment"))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidCommitment, err)
	}

	var start *time.Time
	if t, ok := cmdom.ParseSaleStart(v.GetString("candy_start_date")); ok {
		start = &t
	}

	cfg := Config{
		CandyMachineID:  strings.TrimSpace(v.GetString("candy_machine_id")),
		RPCHost:         rpcHost,
		WSEndpoint:      strings.TrimSpace(v.GetString("solana_ws_endpoint")),
		Network:         network,
		PublicSaleStart: start,
		TxTimeout:       timeout,
		PollInterval:    poll,
		Commitment:      commitment,
		Relaxed:         v.GetBool("confirm_relaxed"),
		PanicOn:         v.GetBool("mint_panic_enabled"),
		Panic: cmdom.PhaseSettings{
			Title:       v.GetString("mint_panic_title"),
			Description: v.GetString("mint_panic_desc"),
		},
		Welcome: cmdom.PhaseSettings{
			Title:            v.GetString("welcome_title"),
			Description:      v.GetString("welcome_desc"),
			CountdownEnabled: v.GetBool("welcome_countdown"),
		},
		WalletKeypair:    strings.TrimSpace(v.GetString("wallet_keypair")),
		WalletPrivateKey: strings.TrimSpace(v.GetString("wallet_private_key")),
		WalletKeySecret:  strings.TrimSpace(v.GetString("wallet_key_secret")),
		GCPProjectID:     strings.TrimSpace(v.GetString("gcp_project_id")),
		GCPCreds:         strings.TrimSpace(v.GetString("gcp_credentials")),
		GatekeeperURL:    strings.TrimSpace(v.GetString("gatekeeper_url")),
		SendGridAPIKey:   strings.TrimSpace(v.GetString("sendgrid_api_key")),
		NotifyFrom:       strings.TrimSpace(v.GetString("notify_email_from")),
		NotifyTo:         strings.TrimSpace(v.GetString("notify_email_to")),
		MetricsAddr:      strings.TrimSpace(v.GetString("metrics_addr")),
		LogLevel:         v.GetString("log_level"),
		LogFormat:        v.GetString("log_format"),
	}
	return cfg, nil
}

func (c Config) RequireCandyMachine() error {
	if c.CandyMachineID == "" {
		return ErrCandyMachineIDMissing
	}
	return nil
}

// Resolver は Phase 判定器を設定から組み立てます。
func (c Config) Resolver() cmdom.Resolver {
	return cmdom.Resolver{
		PanicEnabled:    c.PanicOn,
		PublicSaleStart: c.PublicSaleStart,
		Welcome:         c.Welcome,
		Panic:           c.Panic,
	}
}

// HasWallet reports whether any signer source is configured.
func (c Config) HasWallet() bool {
	return c.WalletKeypair != "" || c.WalletPrivateKey != "" || c.WalletKeySecret != ""
}

// MailEnabled: API キーと宛先が揃っている場合のみ通知メールを送る。
func (c Config) MailEnabled() bool {
	return c.SendGridAPIKey != "" && c.NotifyFrom != "" && c.NotifyTo != ""
}
