// internal/domain/mint/entity.go
package mint

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ------------------------------------------------------
// Entity: Attempt（ユーザー操作 1 回分のミント試行）
// ------------------------------------------------------
//
// Attempt は MintOrchestrator だけが保持し、Outcome 記録後に破棄する。
type Attempt struct {
	ID          string    `json:"id"`
	WalletKey   string    `json:"walletKey"`
	RequestedAt time.Time `json:"requestedAt"`

	VerificationTokenRequired bool `json:"verificationTokenRequired"`
	VerificationTokenActive   bool `json:"verificationTokenActive"`

	TransactionID string   `json:"transactionId,omitempty"`
	Outcome       *Outcome `json:"outcome,omitempty"`
}

// NewAttempt creates an attempt for walletKey with a fresh id.
func NewAttempt(walletKey string, now time.Time) *Attempt {
	return &Attempt{
		ID:          uuid.NewString(),
		WalletKey:   strings.TrimSpace(walletKey),
		RequestedAt: now.UTC(),
	}
}

// Deferred は gateway token 待ちで提出を保留している状態かどうか。
func (a *Attempt) Deferred() bool {
	return a != nil && a.Outcome == nil && a.VerificationTokenRequired && !a.VerificationTokenActive
}

// ------------------------------------------------------
// Notification（単一スロット・最新優先）
// ------------------------------------------------------

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

type Notification struct {
	Open     bool     `json:"open"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity,omitempty"`
}

// ------------------------------------------------------
// WalletBalance
// ------------------------------------------------------

type WalletBalance struct {
	Lamports uint64 `json:"lamports"`
	Loading  bool   `json:"loading"`
}
