// internal/infra/solana/keypair_wallet.go
package solana

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"

	appmint "candymint/internal/application/mint"
)

var (
	ErrWalletNoKey          = errors.New("keypair_wallet: no key loaded")
	ErrWalletInvalidKey     = errors.New("keypair_wallet: invalid private key bytes")
	ErrWalletInvalidEncoded = errors.New("keypair_wallet: key is neither json int array nor base58")
)

// KeypairWallet は秘密鍵を保持するローカルウォレットです（CLI 用）。
// 鍵がなければ「未接続」として振る舞う。
type KeypairWallet struct {
	account *types.Account
}

var _ appmint.Wallet = (*KeypairWallet)(nil)

func NewKeypairWallet(acc types.Account) *KeypairWallet {
	return &KeypairWallet{account: &acc}
}

// DisconnectedWallet has no key; every mint attempt is a no-op.
func DisconnectedWallet() *KeypairWallet {
	return &KeypairWallet{}
}

func (w *KeypairWallet) PublicKey() string {
	if w == nil || w.account == nil {
		return ""
	}
	return w.account.PublicKey.ToBase58()
}

func (w *KeypairWallet) Connected() bool { return w != nil && w.account != nil }

func (w *KeypairWallet) CanSign() bool { return w.Connected() }

func (w *KeypairWallet) SignMessage(msg []byte) ([]byte, error) {
	if !w.Connected() {
		return nil, ErrWalletNoKey
	}
	return w.account.Sign(msg), nil
}

// Account exposes the raw keypair (keygen / tests).
func (w *KeypairWallet) Account() (types.Account, bool) {
	if !w.Connected() {
		return types.Account{}, false
	}
	return *w.account, true
}

// ParsePrivateKey accepts either:
//   - JSON int array "[12,34,...]" (solana-keygen の keypair ファイル形式)
//   - base58 文字列（Phantom などのエクスポート形式）
//
// どちらも 64 byte（seed + public key）であること。
func ParsePrivateKey(raw string) (types.Account, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return types.Account{}, ErrWalletNoKey
	}

	var b []byte
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return types.Account{}, fmt.Errorf("%w: %v", ErrWalletInvalidEncoded, err)
		}
		b = make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return types.Account{}, fmt.Errorf("%w: byte out of range at %d: %d", ErrWalletInvalidKey, i, v)
			}
			b[i] = byte(v)
		}
	} else {
		decoded, err := base58.Decode(s)
		if err != nil {
			return types.Account{}, fmt.Errorf("%w: %v", ErrWalletInvalidEncoded, err)
		}
		b = decoded
	}

	if len(b) != 64 {
		return types.Account{}, fmt.Errorf("%w: want 64 bytes, got %d", ErrWalletInvalidKey, len(b))
	}
	acc, err := types.AccountFromBytes(b)
	if err != nil {
		return types.Account{}, fmt.Errorf("keypair_wallet: AccountFromBytes: %w", err)
	}
	return acc, nil
}

// LoadKeypairFile reads a solana-keygen style JSON keypair file.
func LoadKeypairFile(path string) (types.Account, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return types.Account{}, ErrWalletNoKey
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return types.Account{}, fmt.Errorf("keypair_wallet: read %s: %w", p, err)
	}
	return ParsePrivateKey(string(b))
}

// EncodeKeypairJSON は solana-keygen 互換の [int,...] 形式で鍵を書き出します。
func EncodeKeypairJSON(acc types.Account) ([]byte, error) {
	ints := make([]int, len(acc.PrivateKey))
	for i, v := range acc.PrivateKey {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

// EncodePrivateKeyBase58 returns the 64-byte secret in base58.
func EncodePrivateKeyBase58(acc types.Account) string {
	return base58.Encode(acc.PrivateKey)
}
