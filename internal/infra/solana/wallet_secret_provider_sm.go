// internal/infra/solana/wallet_secret_provider_sm.go
package solana

import (
	"context"
	"errors"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	smpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/blocto/solana-go-sdk/types"
	"google.golang.org/api/option"
)

var (
	ErrWalletSecretNotConfigured = errors.New("wallet_secret_provider: not configured")
	ErrWalletSecretNotFound      = errors.New("wallet_secret_provider: secret not found")
)

// WalletSecretProviderSM は Secret Manager に保存した鍵（[int,...] または base58）を読みます。
type WalletSecretProviderSM struct {
	Client *secretmanager.Client
	// projects/<p>/secrets/<s>/versions/<v>
	Name string
}

// SecretVersionName resolves secret into a full version resource name.
// A bare secret id needs projectID and resolves to the latest version.
func SecretVersionName(projectID, secret string) (string, error) {
	s := strings.TrimSpace(secret)
	if s == "" {
		return "", fmt.Errorf("%w: secret is empty", ErrWalletSecretNotConfigured)
	}
	if strings.HasPrefix(s, "projects/") {
		if !strings.Contains(s, "/versions/") {
			s += "/versions/latest"
		}
		return s, nil
	}
	pid := strings.TrimSpace(projectID)
	if pid == "" {
		return "", fmt.Errorf("%w: projectID is empty", ErrWalletSecretNotConfigured)
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", pid, s), nil
}

func NewWalletSecretProviderSM(ctx context.Context, projectID, secret, credentialsFile string) (*WalletSecretProviderSM, error) {
	name, err := SecretVersionName(projectID, secret)
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if cf := strings.TrimSpace(credentialsFile); cf != "" {
		opts = append(opts, option.WithCredentialsFile(cf))
	}
	c, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secretmanager.NewClient: %w", err)
	}
	return &WalletSecretProviderSM{Client: c, Name: name}, nil
}

func (p *WalletSecretProviderSM) LoadAccount(ctx context.Context) (types.Account, error) {
	if p == nil || p.Client == nil {
		return types.Account{}, ErrWalletSecretNotConfigured
	}
	res, err := p.Client.AccessSecretVersion(ctx, &smpb.AccessSecretVersionRequest{Name: p.Name})
	if err != nil {
		return types.Account{}, fmt.Errorf("%w: %v", ErrWalletSecretNotFound, err)
	}
	if res == nil || res.Payload == nil || len(res.Payload.Data) == 0 {
		return types.Account{}, ErrWalletSecretNotFound
	}
	return ParsePrivateKey(string(res.Payload.Data))
}

func (p *WalletSecretProviderSM) Close() error {
	if p == nil || p.Client == nil {
		return nil
	}
	return p.Client.Close()
}
