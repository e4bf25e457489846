// internal/domain/candymachine/phase.go
package candymachine

import (
	"strconv"
	"strings"
	"time"
)

// Phase は現在ミント可能かどうかを表す区分です。常に導出され、保存しない。
type Phase int

const (
	PhaseWelcome Phase = iota
	PhasePublicMint
	PhasePanic
	PhaseSoldOut
)

func (p Phase) String() string {
	switch p {
	case PhaseWelcome:
		return "welcome"
	case PhasePublicMint:
		return "public_mint"
	case PhasePanic:
		return "panic"
	case PhaseSoldOut:
		return "sold_out"
	default:
		return "unknown"
	}
}

// ResolvePhase maps the current time to a phase. First match wins:
//  1. panic enabled -> Panic
//  2. now > publicSaleStart -> PublicMint
//  3. otherwise -> Welcome
//
// A nil publicSaleStart means the sale start was absent or unparseable.
func ResolvePhase(now time.Time, panicEnabled bool, publicSaleStart *time.Time) Phase {
	if panicEnabled {
		return PhasePanic
	}
	if publicSaleStart != nil && now.After(*publicSaleStart) {
		return PhasePublicMint
	}
	return PhaseWelcome
}

// PhaseSettings は welcome / panic フェーズで表示する文言です。
type PhaseSettings struct {
	Title            string
	Description      string
	CountdownEnabled bool
}

// Resolver は設定を束ねた Phase 判定器です（判定自体は毎回やり直す）。
type Resolver struct {
	PanicEnabled    bool
	PublicSaleStart *time.Time
	Welcome         PhaseSettings
	Panic           PhaseSettings
}

// Phase は ResolvePhase に SoldOut を重ねた判定です。
// PublicMint 中に snapshot が売り切れなら SoldOut。Panic は常に優先。
func (r Resolver) Phase(now time.Time, snap *Snapshot) Phase {
	p := ResolvePhase(now, r.PanicEnabled, r.PublicSaleStart)
	if p == PhasePublicMint && snap != nil && snap.IsSoldOut {
		return PhaseSoldOut
	}
	return p
}

// Countdown returns the time left until the public sale start (0 once reached).
func (r Resolver) Countdown(now time.Time) (time.Duration, bool) {
	if r.PublicSaleStart == nil {
		return 0, false
	}
	d := r.PublicSaleStart.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// ParseSaleStart accepts unix seconds, unix milliseconds or RFC 3339.
// Anything else reports ok=false so the resolver stays in Welcome.
func ParseSaleStart(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return time.Time{}, false
		}
		// 13 桁以上はミリ秒とみなす
		if n >= 1e12 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
