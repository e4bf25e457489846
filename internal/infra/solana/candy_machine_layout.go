// internal/infra/solana/candy_machine_layout.go
package solana

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/near/borsh-go"

	cmdom "candymint/internal/domain/candymachine"
)

// ============================================================
// candy machine v2 account layout (borsh)
// ============================================================
//
// [8]  anchor discriminator = sha256("account:CandyMachine")[:8]
// [..] CandyMachineAccount
//
// 後ろに config lines が続くが、ここでは読まない。

// CandyMachineProgramID is the Metaplex candy machine v2 program.
const CandyMachineProgramID = "cndy3Z4yapfJBmL3ShUp5exZKqR3z33thTzeNMm2gRZ"

type CandyMachineAccount struct {
	Authority     common.PublicKey
	Wallet        common.PublicKey
	TokenMint     *common.PublicKey
	ItemsRedeemed uint64
	Data          CandyMachineData
}

type CandyMachineData struct {
	UUID                  string
	Price                 uint64
	Symbol                string
	SellerFeeBasisPoints  uint16
	MaxSupply             uint64
	IsMutable             bool
	RetainAuthority       bool
	GoLiveDate            *int64
	EndSettings           *EndSettingsLayout
	Creators              []CreatorLayout
	HiddenSettings        *HiddenSettingsLayout
	WhitelistMintSettings *WhitelistMintSettingsLayout
	ItemsAvailable        uint64
	Gatekeeper            *GatekeeperLayout
}

type EndSettingsLayout struct {
	EndSettingType uint8
	Number         uint64
}

type CreatorLayout struct {
	Address  common.PublicKey
	Verified bool
	Share    uint8
}

type HiddenSettingsLayout struct {
	Name string
	URI  string
	Hash [32]byte
}

type WhitelistMintSettingsLayout struct {
	Mode          uint8
	Mint          common.PublicKey
	Presale       bool
	DiscountPrice *uint64
}

type GatekeeperLayout struct {
	GatekeeperNetwork common.PublicKey
	ExpireOnUse       bool
}

// anchorDiscriminator は anchor の 8 byte prefix（"account:<Name>" / "global:<ix>"）。
func anchorDiscriminator(namespace, name string) []byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	return sum[:8]
}

var candyMachineDiscriminator = anchorDiscriminator("account", "CandyMachine")

// DecodeCandyMachineAccount parses raw account data.
func DecodeCandyMachineAccount(data []byte) (CandyMachineAccount, error) {
	var acc CandyMachineAccount
	if len(data) < 8 {
		return acc, cmdom.ErrInvalidAccountData
	}
	if !bytes.Equal(data[:8], candyMachineDiscriminator) {
		return acc, cmdom.ErrUnexpectedDiscriminator
	}
	if err := borsh.Deserialize(&acc, data[8:]); err != nil {
		return acc, fmt.Errorf("%w: %v", cmdom.ErrInvalidAccountData, err)
	}
	return acc, nil
}

// EncodeCandyMachineAccount は DecodeCandyMachineAccount の逆（テスト・ローカル検証用）。
func EncodeCandyMachineAccount(acc CandyMachineAccount) ([]byte, error) {
	b, err := borsh.Serialize(acc)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, candyMachineDiscriminator...), b...), nil
}

// ToSnapshot derives the domain snapshot as of now.
func (a CandyMachineAccount) ToSnapshot(address string, now time.Time) (cmdom.Snapshot, error) {
	d := a.Data

	var goLive *time.Time
	if d.GoLiveDate != nil {
		t := time.Unix(*d.GoLiveDate, 0).UTC()
		goLive = &t
	}

	var end *cmdom.EndSettings
	if d.EndSettings != nil {
		end = &cmdom.EndSettings{
			Type:   cmdom.EndSettingType(d.EndSettings.EndSettingType),
			Number: d.EndSettings.Number,
		}
	}

	var wl *cmdom.WhitelistSettings
	if w := d.WhitelistMintSettings; w != nil {
		wl = &cmdom.WhitelistSettings{
			Mode:          cmdom.WhitelistMode(w.Mode),
			Mint:          w.Mint.ToBase58(),
			Presale:       w.Presale,
			DiscountPrice: w.DiscountPrice,
		}
	}

	var gk *cmdom.Gatekeeper
	if g := d.Gatekeeper; g != nil {
		gk = &cmdom.Gatekeeper{
			Network:     g.GatekeeperNetwork.ToBase58(),
			ExpireOnUse: g.ExpireOnUse,
		}
	}

	var tokenMint *string
	if a.TokenMint != nil {
		s := a.TokenMint.ToBase58()
		tokenMint = &s
	}

	// redeemed <= available
	redeemed := a.ItemsRedeemed
	if redeemed > d.ItemsAvailable {
		redeemed = d.ItemsAvailable
	}

	presale := cmdom.DerivePresale(now, goLive, wl)

	return cmdom.NewSnapshot(cmdom.Snapshot{
		Address:       address,
		Authority:     a.Authority.ToBase58(),
		Treasury:      a.Wallet.ToBase58(),
		TokenMint:     tokenMint,
		TotalSupply:   d.ItemsAvailable,
		RedeemedCount: redeemed,
		UnitPrice:     d.Price,
		IsActive:      cmdom.DeriveActive(now, goLive, presale, end, redeemed),
		IsPresale:     presale,
		GoLiveDate:    goLive,
		EndSettings:   end,
		Whitelist:     wl,
		Gatekeeper:    gk,
	})
}
