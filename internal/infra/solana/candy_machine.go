// internal/infra/solana/candy_machine.go
package solana

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/rs/zerolog"

	appmint "candymint/internal/application/mint"
	cmdom "candymint/internal/domain/candymachine"
)

var (
	ErrCandyMachineNotConfigured = errors.New("candy_machine: not configured")
	ErrPayerMismatch             = errors.New("candy_machine: payer is not the signing wallet")
	ErrSignerNotRequired         = errors.New("candy_machine: wallet is not a required signer")
)

// Signer は tx メッセージに署名できるウォレットです（KeypairWallet が実装）。
type Signer interface {
	PublicKey() string
	SignMessage(msg []byte) ([]byte, error)
}

// ChainClient is the subset of *client.Client the candy machine client uses.
type ChainClient interface {
	GetAccountInfo(ctx context.Context, base58Addr string) (client.AccountInfo, error)
	GetLatestBlockhash(ctx context.Context) (rpc.GetLatestBlockhashValue, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataLen uint64) (uint64, error)
	SendTransaction(ctx context.Context, tx types.Transaction) (string, error)
}

// TokenAccountReader is satisfied by *JSONRPCClient.
type TokenAccountReader interface {
	GetTokenAccountsByOwner(ctx context.Context, owner, mint, commitment string) (GetTokenAccountsByOwnerResult, error)
}

// CandyMachineClient は mint.ProgramClient の candy machine v2 実装です。
type CandyMachineClient struct {
	RPC        ChainClient
	Tokens     TokenAccountReader
	Signer     Signer
	Commitment string

	now func() time.Time
	log zerolog.Logger
}

var _ appmint.ProgramClient = (*CandyMachineClient)(nil)

func NewCandyMachineClient(rpcClient ChainClient, tokens TokenAccountReader, signer Signer, commitment string, log zerolog.Logger) *CandyMachineClient {
	return &CandyMachineClient{
		RPC:        rpcClient,
		Tokens:     tokens,
		Signer:     signer,
		Commitment: commitment,
		now:        time.Now,
		log:        log.With().Str("component", "candy_machine").Logger(),
	}
}

// GetState reads and decodes the candy machine account.
func (c *CandyMachineClient) GetState(ctx context.Context, candyMachineID string) (cmdom.Snapshot, error) {
	if c == nil || c.RPC == nil {
		return cmdom.Snapshot{}, ErrCandyMachineNotConfigured
	}
	id := strings.TrimSpace(candyMachineID)
	if id == "" {
		return cmdom.Snapshot{}, cmdom.ErrInvalidAddress
	}

	info, err := c.RPC.GetAccountInfo(ctx, id)
	if err != nil {
		return cmdom.Snapshot{}, fmt.Errorf("candy_machine: GetAccountInfo: %w", err)
	}
	if len(info.Data) == 0 {
		return cmdom.Snapshot{}, cmdom.ErrNotFound
	}

	acc, err := DecodeCandyMachineAccount(info.Data)
	if err != nil {
		return cmdom.Snapshot{}, err
	}
	return acc.ToSnapshot(id, c.now())
}

// TokenBalance sums owner's token accounts for mint (whitelist tokens).
func (c *CandyMachineClient) TokenBalance(ctx context.Context, owner, mint string) (uint64, error) {
	if c == nil || c.Tokens == nil {
		return 0, ErrCandyMachineNotConfigured
	}
	res, err := c.Tokens.GetTokenAccountsByOwner(ctx, owner, mint, c.Commitment)
	if err != nil {
		return 0, err
	}
	return res.TotalAmount()
}

// MintOneToken builds, signs and sends the mint transaction.
// 戻り値: [mint tx signature]
func (c *CandyMachineClient) MintOneToken(ctx context.Context, snap cmdom.Snapshot, payer string) ([]string, error) {
	if c == nil || c.RPC == nil || c.Signer == nil {
		return nil, ErrCandyMachineNotConfigured
	}
	p := strings.TrimSpace(payer)
	if p == "" || p != c.Signer.PublicKey() {
		return nil, ErrPayerMismatch
	}

	payerPK := common.PublicKeyFromString(p)
	mint := types.NewAccount() // NFT用Mintアカウント新規作成

	mintRent, err := c.RPC.GetMinimumBalanceForRentExemption(ctx, token.MintAccountSize)
	if err != nil {
		return nil, fmt.Errorf("candy_machine: GetMinimumBalanceForRentExemption: %w", err)
	}

	ins, err := BuildMintInstructions(MintTxParam{
		CandyMachine: common.PublicKeyFromString(snap.Address),
		Payer:        payerPK,
		Mint:         mint.PublicKey,
		MintRent:     mintRent,
		Snapshot:     snap,
	})
	if err != nil {
		return nil, err
	}

	recent, err := c.RPC.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("candy_machine: GetLatestBlockhash: %w", err)
	}

	// mint は SDK で署名し、payer はウォレット側で署名する
	tx, err := types.NewTransaction(types.NewTransactionParam{
		Signers: []types.Account{mint},
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        payerPK,
			RecentBlockhash: recent.Blockhash,
			Instructions:    ins,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("candy_machine: NewTransaction: %w", err)
	}
	if err := signWith(&tx, c.Signer); err != nil {
		return nil, err
	}

	c.log.Info().
		Str("candyMachine", maskShort(snap.Address)).
		Str("mint", maskShort(mint.PublicKey.ToBase58())).
		Str("payer", maskShort(p)).
		Msg("sending mint transaction")

	sig, err := c.RPC.SendTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("candy_machine: SendTransaction: %w", err)
	}
	return []string{sig}, nil
}

// signWith places the signer's signature at its slot among the required signers.
func signWith(tx *types.Transaction, s Signer) error {
	data, err := tx.Message.Serialize()
	if err != nil {
		return fmt.Errorf("candy_machine: serialize message: %w", err)
	}
	pub := common.PublicKeyFromString(s.PublicKey())
	n := int(tx.Message.Header.NumRequireSignatures)
	for i := 0; i < n && i < len(tx.Message.Accounts) && i < len(tx.Signatures); i++ {
		if tx.Message.Accounts[i] != pub {
			continue
		}
		sig, err := s.SignMessage(data)
		if err != nil {
			return fmt.Errorf("candy_machine: sign: %w", err)
		}
		tx.Signatures[i] = sig
		return nil
	}
	return ErrSignerNotRequired
}

func maskShort(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return ""
	}
	if len(t) <= 10 {
		return t
	}
	return t[:4] + "***" + t[len(t)-4:]
}
