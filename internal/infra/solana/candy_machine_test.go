package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/rs/zerolog"

	cmdom "candymint/internal/domain/candymachine"
)

type fakeChain struct {
	accounts map[string][]byte
	infoErr  error
	sendErr  error
	sent     []types.Transaction
}

func (f *fakeChain) GetAccountInfo(_ context.Context, addr string) (client.AccountInfo, error) {
	if f.infoErr != nil {
		return client.AccountInfo{}, f.infoErr
	}
	return client.AccountInfo{Data: f.accounts[addr]}, nil
}

func (f *fakeChain) GetLatestBlockhash(context.Context) (rpc.GetLatestBlockhashValue, error) {
	return rpc.GetLatestBlockhashValue{Blockhash: "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"}, nil
}

func (f *fakeChain) GetMinimumBalanceForRentExemption(context.Context, uint64) (uint64, error) {
	return 1_461_600, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx types.Transaction) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, tx)
	return "5sig", nil
}

type fakeTokens struct {
	res GetTokenAccountsByOwnerResult
	err error
}

func (f fakeTokens) GetTokenAccountsByOwner(context.Context, string, string, string) (GetTokenAccountsByOwnerResult, error) {
	return f.res, f.err
}

func TestCandyMachineGetState(t *testing.T) {
	raw, err := EncodeCandyMachineAccount(sampleAccount(i64(time.Now().Add(-time.Hour).Unix())))
	if err != nil {
		t.Fatal(err)
	}
	chain := &fakeChain{accounts: map[string][]byte{"cm111": raw}}
	c := NewCandyMachineClient(chain, fakeTokens{}, nil, "confirmed", zerolog.Nop())

	snap, err := c.GetState(context.Background(), " cm111 ")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if snap.Address != "cm111" || snap.RedeemedCount != 999 || !snap.IsActive {
		t.Errorf("snapshot = %+v", snap)
	}

	if _, err := c.GetState(context.Background(), "missing"); !errors.Is(err, cmdom.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := c.GetState(context.Background(), ""); !errors.Is(err, cmdom.ErrInvalidAddress) {
		t.Errorf("err = %v, want ErrInvalidAddress", err)
	}
	chain.infoErr = errors.New("rpc down")
	if _, err := c.GetState(context.Background(), "cm111"); err == nil {
		t.Error("rpc error should propagate")
	}
}

func TestCandyMachineMintOneToken(t *testing.T) {
	wallet := NewKeypairWallet(types.NewAccount())
	chain := &fakeChain{}
	c := NewCandyMachineClient(chain, fakeTokens{}, wallet, "confirmed", zerolog.Nop())

	ids, err := c.MintOneToken(context.Background(), baseSnapshot(), wallet.PublicKey())
	if err != nil {
		t.Fatalf("MintOneToken: %v", err)
	}
	if len(ids) != 1 || ids[0] != "5sig" {
		t.Errorf("ids = %v", ids)
	}
	if len(chain.sent) != 1 {
		t.Fatalf("sent = %d", len(chain.sent))
	}

	tx := chain.sent[0]
	msg, err := tx.Message.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	n := int(tx.Message.Header.NumRequireSignatures)
	if n != 2 {
		t.Fatalf("required signatures = %d, want payer + mint", n)
	}
	for i := 0; i < n; i++ {
		pub := ed25519.PublicKey(tx.Message.Accounts[i].Bytes())
		if !ed25519.Verify(pub, msg, tx.Signatures[i]) {
			t.Errorf("signature %d does not verify", i)
		}
	}
	if tx.Message.Accounts[0].ToBase58() != wallet.PublicKey() {
		t.Error("payer must be the fee payer")
	}
}

func TestCandyMachineMintErrors(t *testing.T) {
	wallet := NewKeypairWallet(types.NewAccount())

	c := NewCandyMachineClient(&fakeChain{}, fakeTokens{}, wallet, "", zerolog.Nop())
	if _, err := c.MintOneToken(context.Background(), baseSnapshot(), types.NewAccount().PublicKey.ToBase58()); !errors.Is(err, ErrPayerMismatch) {
		t.Errorf("err = %v, want ErrPayerMismatch", err)
	}

	sendErr := errors.New("Transaction simulation failed: custom program error: 0x135")
	c = NewCandyMachineClient(&fakeChain{sendErr: sendErr}, fakeTokens{}, wallet, "", zerolog.Nop())
	if _, err := c.MintOneToken(context.Background(), baseSnapshot(), wallet.PublicKey()); !errors.Is(err, sendErr) {
		t.Errorf("err = %v, want wrapped send error", err)
	}

	c = NewCandyMachineClient(&fakeChain{}, fakeTokens{}, nil, "", zerolog.Nop())
	if _, err := c.MintOneToken(context.Background(), baseSnapshot(), wallet.PublicKey()); !errors.Is(err, ErrCandyMachineNotConfigured) {
		t.Errorf("err = %v, want ErrCandyMachineNotConfigured", err)
	}
}

func TestCandyMachineTokenBalance(t *testing.T) {
	var res GetTokenAccountsByOwnerResult
	raw := `{"value":[{"pubkey":"a","account":{"data":{"parsed":{"info":{"tokenAmount":{"amount":"4","decimals":0}}}}}}]}`
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		t.Fatal(err)
	}

	c := NewCandyMachineClient(&fakeChain{}, fakeTokens{res: res}, nil, "", zerolog.Nop())
	got, err := c.TokenBalance(context.Background(), "owner", "mint")
	if err != nil || got != 4 {
		t.Errorf("TokenBalance = %d, %v; want 4", got, err)
	}

	c = NewCandyMachineClient(&fakeChain{}, fakeTokens{err: errors.New("boom")}, nil, "", zerolog.Nop())
	if _, err := c.TokenBalance(context.Background(), "owner", "mint"); err == nil {
		t.Error("want error")
	}
}
