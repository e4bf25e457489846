// internal/infra/solana/mint_tx.go
package solana

import (
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/types"

	cmdom "candymint/internal/domain/candymachine"
	"candymint/internal/infra/civic"
)

// well-known program/sysvar ids
const (
	systemProgramID        = "11111111111111111111111111111111"
	tokenMetadataProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
	rentSysvarID           = "SysvarRent111111111111111111111111111111111"
	clockSysvarID          = "SysvarC1ock11111111111111111111111111111111"
	slotHashesSysvarID     = "SysvarS1otHashes111111111111111111111111111"
	instructionsSysvarID   = "Sysvar1nstructions1111111111111111111111111"
)

var mintNFTDiscriminator = anchorDiscriminator("global", "mint_nft")

// MintTxParam は 1 枚ミントする tx の入力です。
type MintTxParam struct {
	CandyMachine common.PublicKey
	Payer        common.PublicKey
	Mint         common.PublicKey
	MintRent     uint64
	Snapshot     cmdom.Snapshot
}

// CreatorAddress は candy machine の creator PDA（seeds = ["candy_machine", candyMachine]）。
func CreatorAddress(candyMachine common.PublicKey) (common.PublicKey, uint8, error) {
	return common.FindProgramAddress(
		[][]byte{[]byte("candy_machine"), candyMachine.Bytes()},
		common.PublicKeyFromString(CandyMachineProgramID),
	)
}

// BuildMintInstructions returns, in order:
//  1. create mint account
//  2. initialize mint (decimals = 0)
//  3. create payer ATA
//  4. mint 1 token to the ATA
//  5. candy machine mint_nft
func BuildMintInstructions(p MintTxParam) ([]types.Instruction, error) {
	snap := p.Snapshot
	if snap.Address == "" {
		return nil, fmt.Errorf("mint_tx: snapshot address is empty")
	}

	ata, _, err := common.FindAssociatedTokenAddress(p.Payer, p.Mint)
	if err != nil {
		return nil, fmt.Errorf("mint_tx: FindAssociatedTokenAddress: %w", err)
	}
	metadata, err := token_metadata.GetTokenMetaPubkey(p.Mint)
	if err != nil {
		return nil, fmt.Errorf("mint_tx: GetTokenMetaPubkey: %w", err)
	}
	masterEdition, err := token_metadata.GetMasterEdition(p.Mint)
	if err != nil {
		return nil, fmt.Errorf("mint_tx: GetMasterEdition: %w", err)
	}
	creator, creatorBump, err := CreatorAddress(p.CandyMachine)
	if err != nil {
		return nil, fmt.Errorf("mint_tx: creator PDA: %w", err)
	}
	remaining, err := remainingAccounts(p.Payer, snap)
	if err != nil {
		return nil, err
	}

	return []types.Instruction{
		system.CreateAccount(system.CreateAccountParam{
			From:     p.Payer,
			New:      p.Mint,
			Owner:    common.TokenProgramID,
			Lamports: p.MintRent,
			Space:    token.MintAccountSize,
		}),
		token.InitializeMint(token.InitializeMintParam{
			Decimals:   0,
			Mint:       p.Mint,
			MintAuth:   p.Payer,
			FreezeAuth: &p.Payer,
		}),
		associated_token_account.CreateAssociatedTokenAccount(
			associated_token_account.CreateAssociatedTokenAccountParam{
				Funder:                 p.Payer,
				Owner:                  p.Payer,
				Mint:                   p.Mint,
				AssociatedTokenAccount: ata,
			},
		),
		token.MintTo(token.MintToParam{
			Mint:   p.Mint,
			To:     ata,
			Auth:   p.Payer,
			Amount: 1,
		}),
		mintNFTInstruction(mintNFTAccounts{
			candyMachine:  p.CandyMachine,
			creator:       creator,
			payer:         p.Payer,
			treasury:      common.PublicKeyFromString(snap.Treasury),
			metadata:      metadata,
			mint:          p.Mint,
			masterEdition: masterEdition,
		}, creatorBump, remaining),
	}, nil
}

type mintNFTAccounts struct {
	candyMachine  common.PublicKey
	creator       common.PublicKey
	payer         common.PublicKey
	treasury      common.PublicKey
	metadata      common.PublicKey
	mint          common.PublicKey
	masterEdition common.PublicKey
}

// Accounts:
//
//	0. [writable] candy machine
//	1. [] creator PDA
//	2. [writable,signer] payer
//	3. [writable] treasury wallet
//	4. [writable] metadata
//	5. [writable] mint
//	6. [signer] mint authority (= payer)
//	7. [signer] update authority (= payer)
//	8. [writable] master edition
//	9.. token metadata / token / system programs, rent / clock / slot hashes / instructions sysvars
//	+ remaining accounts (gateway / whitelist / token payment)
func mintNFTInstruction(a mintNFTAccounts, creatorBump uint8, remaining []types.AccountMeta) types.Instruction {
	accounts := []types.AccountMeta{
		{PubKey: a.candyMachine, IsSigner: false, IsWritable: true},
		{PubKey: a.creator, IsSigner: false, IsWritable: false},
		{PubKey: a.payer, IsSigner: true, IsWritable: true},
		{PubKey: a.treasury, IsSigner: false, IsWritable: true},
		{PubKey: a.metadata, IsSigner: false, IsWritable: true},
		{PubKey: a.mint, IsSigner: false, IsWritable: true},
		{PubKey: a.payer, IsSigner: true, IsWritable: false},
		{PubKey: a.payer, IsSigner: true, IsWritable: false},
		{PubKey: a.masterEdition, IsSigner: false, IsWritable: true},
		{PubKey: common.PublicKeyFromString(tokenMetadataProgramID), IsSigner: false, IsWritable: false},
		{PubKey: common.TokenProgramID, IsSigner: false, IsWritable: false},
		{PubKey: common.PublicKeyFromString(systemProgramID), IsSigner: false, IsWritable: false},
		{PubKey: common.PublicKeyFromString(rentSysvarID), IsSigner: false, IsWritable: false},
		{PubKey: common.PublicKeyFromString(clockSysvarID), IsSigner: false, IsWritable: false},
		{PubKey: common.PublicKeyFromString(slotHashesSysvarID), IsSigner: false, IsWritable: false},
		{PubKey: common.PublicKeyFromString(instructionsSysvarID), IsSigner: false, IsWritable: false},
	}
	accounts = append(accounts, remaining...)

	data := make([]byte, 0, len(mintNFTDiscriminator)+1)
	data = append(data, mintNFTDiscriminator...)
	data = append(data, creatorBump)

	return types.Instruction{
		ProgramID: common.PublicKeyFromString(CandyMachineProgramID),
		Accounts:  accounts,
		Data:      data,
	}
}

// remainingAccounts は gatekeeper → whitelist → SPL トークン支払いの順。
func remainingAccounts(payer common.PublicKey, snap cmdom.Snapshot) ([]types.AccountMeta, error) {
	var out []types.AccountMeta

	if gk := snap.Gatekeeper; gk != nil {
		network := common.PublicKeyFromString(gk.Network)
		tok, err := civic.TokenAddress(payer, network)
		if err != nil {
			return nil, err
		}
		out = append(out, types.AccountMeta{PubKey: tok, IsSigner: false, IsWritable: true})

		if gk.ExpireOnUse {
			expire, err := civic.ExpireFeatureAddress(network)
			if err != nil {
				return nil, err
			}
			out = append(out,
				types.AccountMeta{PubKey: common.PublicKeyFromString(civic.ProgramID), IsSigner: false, IsWritable: false},
				types.AccountMeta{PubKey: expire, IsSigner: false, IsWritable: false},
			)
		}
	}

	if wlMint, ok := snap.WhitelistMint(); ok {
		mint := common.PublicKeyFromString(wlMint)
		wlATA, _, err := common.FindAssociatedTokenAddress(payer, mint)
		if err != nil {
			return nil, fmt.Errorf("mint_tx: whitelist ATA: %w", err)
		}
		out = append(out, types.AccountMeta{PubKey: wlATA, IsSigner: false, IsWritable: true})

		if snap.Whitelist.Mode == cmdom.WhitelistBurnEveryTime {
			out = append(out,
				types.AccountMeta{PubKey: mint, IsSigner: false, IsWritable: true},
				types.AccountMeta{PubKey: payer, IsSigner: true, IsWritable: false},
			)
		}
	}

	if snap.TokenMint != nil {
		payMint := common.PublicKeyFromString(*snap.TokenMint)
		payATA, _, err := common.FindAssociatedTokenAddress(payer, payMint)
		if err != nil {
			return nil, fmt.Errorf("mint_tx: payment ATA: %w", err)
		}
		out = append(out,
			types.AccountMeta{PubKey: payATA, IsSigner: false, IsWritable: true},
			types.AccountMeta{PubKey: payer, IsSigner: true, IsWritable: false},
		)
	}

	return out, nil
}
