package solana

import (
	"bytes"
	"testing"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"

	cmdom "candymint/internal/domain/candymachine"
	"candymint/internal/infra/civic"
)

func mintParam(snap cmdom.Snapshot) MintTxParam {
	return MintTxParam{
		CandyMachine: common.PublicKeyFromString(snap.Address),
		Payer:        types.NewAccount().PublicKey,
		Mint:         types.NewAccount().PublicKey,
		MintRent:     1_461_600,
		Snapshot:     snap,
	}
}

func baseSnapshot() cmdom.Snapshot {
	return cmdom.Snapshot{
		Address:     types.NewAccount().PublicKey.ToBase58(),
		Treasury:    types.NewAccount().PublicKey.ToBase58(),
		TotalSupply: 10,
		IsActive:    true,
	}
}

func TestBuildMintInstructionsPlain(t *testing.T) {
	p := mintParam(baseSnapshot())
	ins, err := BuildMintInstructions(p)
	if err != nil {
		t.Fatalf("BuildMintInstructions: %v", err)
	}
	if len(ins) != 5 {
		t.Fatalf("instructions = %d, want 5", len(ins))
	}

	mintIx := ins[4]
	if mintIx.ProgramID != common.PublicKeyFromString(CandyMachineProgramID) {
		t.Errorf("program = %s", mintIx.ProgramID.ToBase58())
	}
	if len(mintIx.Accounts) != 16 {
		t.Fatalf("accounts = %d, want 16 without remaining accounts", len(mintIx.Accounts))
	}

	creator, bump, err := CreatorAddress(p.CandyMachine)
	if err != nil {
		t.Fatal(err)
	}
	want := append(append([]byte{}, mintNFTDiscriminator...), bump)
	if !bytes.Equal(mintIx.Data, want) {
		t.Errorf("data = %x, want %x", mintIx.Data, want)
	}

	acc := mintIx.Accounts
	if acc[0].PubKey != p.CandyMachine || !acc[0].IsWritable {
		t.Error("account 0 must be the writable candy machine")
	}
	if acc[1].PubKey != creator {
		t.Error("account 1 must be the creator PDA")
	}
	if acc[2].PubKey != p.Payer || !acc[2].IsSigner || !acc[2].IsWritable {
		t.Error("account 2 must be the signing payer")
	}
	if acc[3].PubKey.ToBase58() != p.Snapshot.Treasury {
		t.Error("account 3 must be the treasury")
	}
	if acc[5].PubKey != p.Mint {
		t.Error("account 5 must be the new mint")
	}
	if acc[15].PubKey != common.PublicKeyFromString(instructionsSysvarID) {
		t.Error("last fixed account must be the instructions sysvar")
	}
}

func TestBuildMintInstructionsRemainingAccounts(t *testing.T) {
	network := types.NewAccount().PublicKey
	wlMint := types.NewAccount().PublicKey
	payMint := types.NewAccount().PublicKey.ToBase58()

	snap := baseSnapshot()
	snap.Gatekeeper = &cmdom.Gatekeeper{Network: network.ToBase58(), ExpireOnUse: true}
	snap.Whitelist = &cmdom.WhitelistSettings{Mode: cmdom.WhitelistBurnEveryTime, Mint: wlMint.ToBase58()}
	snap.TokenMint = &payMint

	p := mintParam(snap)
	ins, err := BuildMintInstructions(p)
	if err != nil {
		t.Fatal(err)
	}
	rem := ins[4].Accounts[16:]
	// gateway token, gateway program, expire PDA, whitelist ATA, whitelist mint, payer, payment ATA, payer
	if len(rem) != 8 {
		t.Fatalf("remaining = %d, want 8", len(rem))
	}

	gt, _ := civic.TokenAddress(p.Payer, network)
	expire, _ := civic.ExpireFeatureAddress(network)
	wlATA, _, _ := common.FindAssociatedTokenAddress(p.Payer, wlMint)
	payATA, _, _ := common.FindAssociatedTokenAddress(p.Payer, common.PublicKeyFromString(payMint))

	wantKeys := []common.PublicKey{
		gt, common.PublicKeyFromString(civic.ProgramID), expire,
		wlATA, wlMint, p.Payer,
		payATA, p.Payer,
	}
	for i, k := range wantKeys {
		if rem[i].PubKey != k {
			t.Errorf("remaining[%d] = %s, want %s", i, rem[i].PubKey.ToBase58(), k.ToBase58())
		}
	}
	if !rem[0].IsWritable || !rem[3].IsWritable || !rem[4].IsWritable || !rem[6].IsWritable {
		t.Error("token accounts must be writable")
	}
	if !rem[5].IsSigner || !rem[7].IsSigner {
		t.Error("payer must sign burn and payment")
	}
}

func TestBuildMintInstructionsNeverBurn(t *testing.T) {
	snap := baseSnapshot()
	snap.Whitelist = &cmdom.WhitelistSettings{Mode: cmdom.WhitelistNeverBurn, Mint: types.NewAccount().PublicKey.ToBase58()}
	ins, err := BuildMintInstructions(mintParam(snap))
	if err != nil {
		t.Fatal(err)
	}
	if n := len(ins[4].Accounts) - 16; n != 1 {
		t.Errorf("remaining = %d, want only the whitelist ATA", n)
	}
}

func TestBuildMintInstructionsRequiresAddress(t *testing.T) {
	if _, err := BuildMintInstructions(MintTxParam{}); err == nil {
		t.Error("want error without a candy machine address")
	}
}
