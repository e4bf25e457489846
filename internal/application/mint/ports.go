// internal/application/mint/ports.go
package mint

import (
	"context"
	"fmt"
	"strings"

	cmdom "candymint/internal/domain/candymachine"
)

// ============================================================
// Wallet Port
// ============================================================

// Wallet は接続中ウォレットの最小インターフェースです。
// 署名そのものは ProgramClient 側（infra）が扱い、ここでは前提条件の確認だけに使う。
type Wallet interface {
	PublicKey() string
	Connected() bool
	CanSign() bool
}

// ============================================================
// On-chain Program Port
// ============================================================

type ProgramClient interface {
	// GetState reads the candy machine account and returns a fresh snapshot.
	GetState(ctx context.Context, candyMachineID string) (cmdom.Snapshot, error)
	// MintOneToken builds, signs and submits the mint transaction.
	// The first element is the mint transaction id; it may be empty when
	// submission silently failed.
	MintOneToken(ctx context.Context, snap cmdom.Snapshot, payer string) ([]string, error)
	// TokenBalance returns the amount of mint held by owner.
	TokenBalance(ctx context.Context, owner, mint string) (uint64, error)
}

// ============================================================
// Verification Gateway Port
// ============================================================

type GatewayStatus int

const (
	GatewayNone GatewayStatus = iota
	GatewayRequesting
	GatewayActive
)

func (s GatewayStatus) String() string {
	switch s {
	case GatewayRequesting:
		return "requesting"
	case GatewayActive:
		return "active"
	default:
		return "none"
	}
}

// Gateway は人間確認（gateway token）の取得能力です。テストでは差し替える。
type Gateway interface {
	RequestToken(ctx context.Context) error
	Status() GatewayStatus
	// Subscribe delivers status changes until cancel is called.
	Subscribe() (<-chan GatewayStatus, func())
}

// ============================================================
// Transport Port
// ============================================================

type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// ParseCommitment accepts the current names and the legacy aliases.
func ParseCommitment(s string) (Commitment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "processed", "recent":
		return CommitmentProcessed, nil
	case "confirmed", "singlegossip", "single":
		return CommitmentConfirmed, nil
	case "finalized", "max", "root":
		return CommitmentFinalized, nil
	default:
		return "", fmt.Errorf("mint: unknown commitment %q", s)
	}
}

func (c Commitment) rank() int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether c is the same as or stronger than want.
func (c Commitment) AtLeast(want Commitment) bool {
	return c.rank() > 0 && c.rank() >= want.rank()
}

// SignatureStatus mirrors one entry of getSignatureStatuses.
// Err carries the raw on-chain error (nil when the transaction succeeded).
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64
	ConfirmationStatus Commitment
	Err                any
}

// StatusQuerier is the part of the transport the confirmation poller needs.
type StatusQuerier interface {
	GetSignatureStatus(ctx context.Context, txID string) (*SignatureStatus, error)
}

type Transport interface {
	StatusQuerier
	GetBalance(ctx context.Context, key string) (uint64, error)
	// OnAccountChange pushes a callback whenever the account changes.
	OnAccountChange(ctx context.Context, key string, fn func()) (unsubscribe func(), err error)
}
