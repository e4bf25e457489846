// internal/domain/mint/outcome.go
package mint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ------------------------------------------------------
// Outcome
// ------------------------------------------------------

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeSoldOut
	OutcomeNotStarted
	OutcomeInsufficientFunds
	OutcomeTimeout
	OutcomeUnknown
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeSoldOut:
		return "sold_out"
	case OutcomeNotStarted:
		return "not_started"
	case OutcomeInsufficientFunds:
		return "insufficient_funds"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Outcome は 1 回の試行の最終結果です。
// Reload が true の場合、ローカルの snapshot は古いことが確定しているので全再読込する。
type Outcome struct {
	Kind    OutcomeKind `json:"kind"`
	Message string      `json:"message"`
	Reload  bool        `json:"reload,omitempty"`
	Raw     any         `json:"raw,omitempty"`
}

// User-facing messages.
const (
	MsgSuccess           = "Congratulations! Mint succeeded! Please wait a few seconds for the wallet to update."
	MsgMintFailed        = "Mint failed! Please try again!"
	MsgMintingFailed     = "Minting failed! Please try again!"
	MsgSoldOut           = "SOLD OUT!"
	MsgNotStarted        = "Minting period hasn't started yet."
	MsgInsufficientFunds = "Insufficient funds to mint. Please fund your wallet."
	MsgTimeout           = "Transaction Timeout! Please try again."
)

// Program error codes and log markers reported by the candy machine program.
const (
	CodeSoldOut    = 311
	CodeNotStarted = 312

	markerSoldOut           = "0x137"
	markerInsufficientFunds = "0x135"
	// 0x138 は敢えて汎用メッセージのまま扱う
	markerNotLive = "0x138"
)

// Severity: 確定したミントのみ success、それ以外の終端はすべて error。
func (o Outcome) Severity() Severity {
	if o.Kind == OutcomeSuccess {
		return SeveritySuccess
	}
	return SeverityError
}

func (o Outcome) Notification() Notification {
	return Notification{Open: true, Message: o.Message, Severity: o.Severity()}
}

func Succeeded() Outcome {
	return Outcome{Kind: OutcomeSuccess, Message: MsgSuccess}
}

// StatusFailure は確定ステータスが失敗だった場合（送信が黙って失敗した場合を含む）の Outcome。
func StatusFailure(raw any) Outcome {
	return Outcome{Kind: OutcomeUnknown, Message: MsgMintFailed, Raw: raw}
}

// ------------------------------------------------------
// Errors
// ------------------------------------------------------

var (
	// ErrConfirmationTimeout has no user-facing text of its own; it classifies as a timeout.
	ErrConfirmationTimeout = errors.New("mint: confirmation timeout")
	ErrWalletNotConnected  = errors.New("mint: wallet not connected")
	ErrNoSnapshot          = errors.New("mint: candy machine state not loaded")
	ErrGateNotConfigured   = errors.New("mint: verification gateway not configured")
)

// ProgramError is a structured error carrying the on-chain program error code.
type ProgramError struct {
	Code int
	Msg  string
}

func (e *ProgramError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("program error %d (0x%x)", e.Code, e.Code)
	}
	return fmt.Sprintf("program error %d (0x%x): %s", e.Code, e.Code, e.Msg)
}

var programMessages = map[int]string{
	CodeSoldOut:    "Candy machine is empty!",
	CodeNotStarted: "Candy machine is not live yet!",
}

// TransactionError wraps the `err` field of a confirmed signature status.
type TransactionError struct {
	Raw any
}

func (e *TransactionError) Error() string {
	b, err := json.Marshal(e.Raw)
	if err != nil {
		return fmt.Sprintf("mint: transaction failed: %v", e.Raw)
	}
	return "mint: transaction failed: " + string(b)
}

// Unwrap exposes an InstructionError{Custom: n} as a *ProgramError.
func (e *TransactionError) Unwrap() error {
	code, ok := customCode(e.Raw)
	if !ok {
		return nil
	}
	return &ProgramError{Code: code, Msg: programMessages[code]}
}

// customCode は {"InstructionError":[idx,{"Custom":n}]} から n を取り出します。
func customCode(raw any) (int, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return 0, false
	}
	ie, ok := m["InstructionError"].([]any)
	if !ok || len(ie) != 2 {
		return 0, false
	}
	detail, ok := ie[1].(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := detail["Custom"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}

// ------------------------------------------------------
// Classification
// ------------------------------------------------------

// Classify maps a caught submission/confirmation error to an Outcome.
// Precedence:
//
//	code 311 -> SoldOut (+reload), code 312 -> NotStarted,
//	"0x137" -> SoldOut, "0x135" -> InsufficientFunds,
//	no message -> Timeout, anything else -> Unknown.
func Classify(err error) Outcome {
	var pe *ProgramError
	if errors.As(err, &pe) {
		switch pe.Code {
		case CodeSoldOut:
			return Outcome{Kind: OutcomeSoldOut, Message: MsgSoldOut, Reload: true, Raw: pe}
		case CodeNotStarted:
			return Outcome{Kind: OutcomeNotStarted, Message: MsgNotStarted, Raw: pe}
		}
		msg := strings.TrimSpace(pe.Msg)
		if msg == "" {
			msg = MsgMintingFailed
		}
		return Outcome{Kind: OutcomeUnknown, Message: msg, Raw: pe}
	}

	if err == nil || errors.Is(err, ErrConfirmationTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return Outcome{Kind: OutcomeTimeout, Message: MsgTimeout, Raw: err}
	}

	msg := err.Error()
	switch {
	case strings.TrimSpace(msg) == "":
		return Outcome{Kind: OutcomeTimeout, Message: MsgTimeout, Raw: err}
	case strings.Contains(msg, markerNotLive):
		return Outcome{Kind: OutcomeUnknown, Message: MsgMintingFailed, Raw: msg}
	case strings.Contains(msg, markerSoldOut):
		return Outcome{Kind: OutcomeSoldOut, Message: MsgSoldOut, Raw: msg}
	case strings.Contains(msg, markerInsufficientFunds):
		return Outcome{Kind: OutcomeInsufficientFunds, Message: MsgInsufficientFunds, Raw: msg}
	default:
		return Outcome{Kind: OutcomeUnknown, Message: MsgMintingFailed, Raw: msg}
	}
}
