// internal/domain/candymachine/entity.go
package candymachine

import (
	"errors"
	"strings"
	"time"
)

// ------------------------------------------------------
// Entity: Snapshot（candy machine アカウントのある時点の読み取り結果）
// ------------------------------------------------------
//
// Snapshot は不変値として扱う。更新は常に丸ごと差し替える（部分更新しない）。
//
// 不変条件:
//   - RedeemedCount <= TotalSupply
//   - IsSoldOut == (RedeemedCount >= TotalSupply)
type Snapshot struct {
	// candy machine アカウントのアドレス (base58)
	Address string `json:"address"`
	// candy machine の authority / 売上受取ウォレット (treasury)
	Authority string `json:"authority"`
	Treasury  string `json:"treasury"`
	// SPL トークン支払いの場合の mint（SOL 支払いなら nil）
	TokenMint *string `json:"tokenMint,omitempty"`

	TotalSupply   uint64 `json:"totalSupply"`   // itemsAvailable
	RedeemedCount uint64 `json:"redeemedCount"` // itemsRedeemed
	UnitPrice     uint64 `json:"unitPrice"`     // lamports

	IsActive  bool `json:"isActive"`
	IsPresale bool `json:"isPresale"`
	IsSoldOut bool `json:"isSoldOut"`

	GoLiveDate  *time.Time         `json:"goLiveDate,omitempty"`
	EndSettings *EndSettings       `json:"endSettings,omitempty"`
	Whitelist   *WhitelistSettings `json:"whitelist,omitempty"`
	Gatekeeper  *Gatekeeper        `json:"gatekeeper,omitempty"`
}

// Gatekeeper は人間確認（gateway token）の設定です。
type Gatekeeper struct {
	Network     string `json:"network"`
	ExpireOnUse bool   `json:"expireOnUse"`
}

type WhitelistMode uint8

const (
	WhitelistBurnEveryTime WhitelistMode = iota
	WhitelistNeverBurn
)

type WhitelistSettings struct {
	Mode          WhitelistMode `json:"mode"`
	Mint          string        `json:"mint"`
	Presale       bool          `json:"presale"`
	DiscountPrice *uint64       `json:"discountPrice,omitempty"`
}

type EndSettingType uint8

const (
	EndByDate EndSettingType = iota
	EndByAmount
)

type EndSettings struct {
	Type   EndSettingType `json:"type"`
	Number uint64         `json:"number"`
}

// ------------------------------------------------------
// Errors
// ------------------------------------------------------

var (
	ErrInvalidAddress          = errors.New("candymachine: invalid address")
	ErrRedeemedExceedsSupply   = errors.New("candymachine: redeemed count exceeds total supply")
	ErrNotFound                = errors.New("candymachine: account not found")
	ErrInvalidAccountData      = errors.New("candymachine: invalid account data")
	ErrUnexpectedDiscriminator = errors.New("candymachine: account is not a candy machine")
)

// ------------------------------------------------------
// Constructors
// ------------------------------------------------------

// NewSnapshot は不変条件を検証し、IsSoldOut を導出した Snapshot を返します。
func NewSnapshot(s Snapshot) (Snapshot, error) {
	s.Address = strings.TrimSpace(s.Address)
	if s.Address == "" {
		return Snapshot{}, ErrInvalidAddress
	}
	if s.RedeemedCount > s.TotalSupply {
		return Snapshot{}, ErrRedeemedExceedsSupply
	}
	s.IsSoldOut = s.RedeemedCount >= s.TotalSupply
	return s, nil
}

// WithRedeemed returns a copy with RedeemedCount replaced, clamped to TotalSupply.
func (s Snapshot) WithRedeemed(n uint64) Snapshot {
	if n > s.TotalSupply {
		n = s.TotalSupply
	}
	s.RedeemedCount = n
	s.IsSoldOut = n >= s.TotalSupply
	return s
}

func (s Snapshot) ItemsRemaining() uint64 {
	return s.TotalSupply - s.RedeemedCount
}

// WhitelistMint は whitelist トークンの mint を返します（未設定なら ok=false）。
func (s Snapshot) WhitelistMint() (string, bool) {
	if s.Whitelist == nil || strings.TrimSpace(s.Whitelist.Mint) == "" {
		return "", false
	}
	return s.Whitelist.Mint, true
}

// ShouldGate reports whether a mint attempt needs a verification token first.
func ShouldGate(s Snapshot) bool {
	return s.IsActive && s.Gatekeeper != nil
}

// DeriveActive は go-live 日時 / presale / end settings から isActive を導出します。
//
//	isActive = (presale || goLive < now) && (endSettings 未設定 || 終了条件に未到達)
func DeriveActive(now time.Time, goLive *time.Time, presale bool, end *EndSettings, redeemed uint64) bool {
	started := presale || (goLive != nil && goLive.Before(now))
	if !started {
		return false
	}
	if end == nil {
		return true
	}
	switch end.Type {
	case EndByDate:
		return int64(end.Number) > now.Unix()
	default:
		return redeemed < end.Number
	}
}

// DerivePresale: whitelist が presale 指定かつ go-live 前（または未設定）なら presale 中。
func DerivePresale(now time.Time, goLive *time.Time, wl *WhitelistSettings) bool {
	if wl == nil || !wl.Presale {
		return false
	}
	return goLive == nil || goLive.After(now)
}
