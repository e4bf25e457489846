// internal/application/mint/session.go
package mint

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	cmdom "candymint/internal/domain/candymachine"
	mintdom "candymint/internal/domain/mint"
)

/*
Session の責務:
- 最新の candy machine snapshot / ウォレット残高 / whitelist 残高 / 最後の通知 を保持する。
- 値は常に丸ごと差し替える（部分更新しない）。
- 変更のたびに Event を発行し、表示側などの observer はそれを購読する。
- 残高は account-change の push 通知でも再取得する（ポーリングしない）。
*/

type EventKind int

const (
	EventSnapshotChanged EventKind = iota
	EventBalanceChanged
	EventWhitelistChanged
	EventNotificationChanged
	EventInFlightChanged
)

func (k EventKind) String() string {
	switch k {
	case EventSnapshotChanged:
		return "snapshot"
	case EventBalanceChanged:
		return "balance"
	case EventWhitelistChanged:
		return "whitelist"
	case EventNotificationChanged:
		return "notification"
	case EventInFlightChanged:
		return "in_flight"
	default:
		return "unknown"
	}
}

// Event は変更の種類と、その時点の通知スロットを運びます。
type Event struct {
	Kind         EventKind
	Notification mintdom.Notification
}

const lamportsPerSOL = 9

type Session struct {
	candyMachineID string
	program        ProgramClient
	transport      Transport
	wallet         Wallet
	resolver       cmdom.Resolver
	log            zerolog.Logger

	mu        sync.RWMutex
	snapshot  *cmdom.Snapshot
	balance   mintdom.WalletBalance
	whitelist uint64
	note      mintdom.Notification
	inFlight  bool

	obsMu     sync.Mutex
	observers map[int]func(Event)
	nextObs   int
}

func NewSession(
	candyMachineID string,
	program ProgramClient,
	transport Transport,
	wallet Wallet,
	resolver cmdom.Resolver,
	log zerolog.Logger,
) *Session {
	return &Session{
		candyMachineID: strings.TrimSpace(candyMachineID),
		program:        program,
		transport:      transport,
		wallet:         wallet,
		resolver:       resolver,
		log:            log.With().Str("component", "session").Logger(),
		observers:      map[int]func(Event){},
	}
}

// ============================================================
// Observers
// ============================================================

// Subscribe registers fn for every session event. Observers run outside the lock.
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Session) emit(kind EventKind) {
	ev := Event{Kind: kind, Notification: s.Notification()}

	s.obsMu.Lock()
	fns := make([]func(Event), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// ============================================================
// Refresh
// ============================================================

// RefreshSnapshot replaces the snapshot with a fresh on-chain read.
func (s *Session) RefreshSnapshot(ctx context.Context) (cmdom.Snapshot, error) {
	if s.candyMachineID == "" {
		return cmdom.Snapshot{}, fmt.Errorf("session: candy machine id is not configured")
	}
	snap, err := s.program.GetState(ctx, s.candyMachineID)
	if err != nil {
		s.log.Warn().Err(err).Msg("problem getting candy machine state")
		return cmdom.Snapshot{}, err
	}

	s.mu.Lock()
	s.snapshot = &snap
	s.mu.Unlock()

	s.log.Debug().
		Uint64("redeemed", snap.RedeemedCount).
		Uint64("available", snap.TotalSupply).
		Bool("active", snap.IsActive).
		Msg("snapshot refreshed")
	s.emit(EventSnapshotChanged)
	return snap, nil
}

// RefreshBalance re-reads the wallet's lamport balance.
func (s *Session) RefreshBalance(ctx context.Context) (mintdom.WalletBalance, error) {
	key := s.walletKey()
	if key == "" {
		return s.Balance(), nil
	}

	s.mu.Lock()
	s.balance = mintdom.WalletBalance{Lamports: s.balance.Lamports, Loading: true}
	s.mu.Unlock()
	s.emit(EventBalanceChanged)

	lamports, err := s.transport.GetBalance(ctx, key)

	s.mu.Lock()
	if err != nil {
		s.balance = mintdom.WalletBalance{Lamports: s.balance.Lamports, Loading: false}
	} else {
		s.balance = mintdom.WalletBalance{Lamports: lamports, Loading: false}
	}
	b := s.balance
	s.mu.Unlock()
	s.emit(EventBalanceChanged)

	if err != nil {
		return b, fmt.Errorf("session: get balance: %w", err)
	}
	return b, nil
}

// RefreshWhitelistBalance reads the whitelist token count; any failure counts as 0.
func (s *Session) RefreshWhitelistBalance(ctx context.Context) uint64 {
	key := s.walletKey()
	snap, ok := s.Snapshot()
	if key == "" || !ok {
		return s.WhitelistBalance()
	}
	wlMint, ok := snap.WhitelistMint()
	if !ok {
		return s.WhitelistBalance()
	}

	amt, err := s.program.TokenBalance(ctx, key, wlMint)
	if err != nil {
		s.log.Debug().Err(err).Msg("whitelist balance unavailable; using 0")
		amt = 0
	}

	s.mu.Lock()
	s.whitelist = amt
	s.mu.Unlock()
	s.emit(EventWhitelistChanged)
	return amt
}

// WatchAccount refreshes the balance whenever the transport reports the wallet changed.
func (s *Session) WatchAccount(ctx context.Context) (func(), error) {
	key := s.walletKey()
	if key == "" {
		return func() {}, nil
	}
	return s.transport.OnAccountChange(ctx, key, func() {
		if _, err := s.RefreshBalance(ctx); err != nil {
			s.log.Warn().Err(err).Msg("balance refresh after account change failed")
		}
	})
}

// ============================================================
// Notification
// ============================================================

func (s *Session) SetNotification(n mintdom.Notification) {
	s.mu.Lock()
	s.note = n
	s.mu.Unlock()
	s.emit(EventNotificationChanged)
}

func (s *Session) DismissNotification() {
	s.mu.Lock()
	n := s.note
	n.Open = false
	s.note = n
	s.mu.Unlock()
	s.emit(EventNotificationChanged)
}

func (s *Session) Notification() mintdom.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.note
}

// ============================================================
// Orchestrator 用の書き込み
// ============================================================

// recordMint は成功時の楽観的更新です（チェーンを再読込しない）。
func (s *Session) recordMint() {
	s.mu.Lock()
	if s.snapshot != nil {
		next := s.snapshot.WithRedeemed(s.snapshot.RedeemedCount + 1)
		s.snapshot = &next
	}
	wlChanged := false
	if s.whitelist > 0 {
		s.whitelist--
		wlChanged = true
	}
	s.mu.Unlock()

	s.emit(EventSnapshotChanged)
	if wlChanged {
		s.emit(EventWhitelistChanged)
	}
}

func (s *Session) setInFlight(v bool) {
	s.mu.Lock()
	s.inFlight = v
	s.mu.Unlock()
	s.emit(EventInFlightChanged)
}

// ============================================================
// Getters
// ============================================================

func (s *Session) Snapshot() (cmdom.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return cmdom.Snapshot{}, false
	}
	return *s.snapshot, true
}

func (s *Session) MintedTotal() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return 0
	}
	return s.snapshot.RedeemedCount
}

func (s *Session) ItemsAvailable() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return 0
	}
	return s.snapshot.TotalSupply
}

// PriceInDisplayUnits = unitPrice / 1e9 (SOL).
func (s *Session) PriceInDisplayUnits() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return decimal.Zero
	}
	return LamportsToSOL(s.snapshot.UnitPrice)
}

func (s *Session) Balance() mintdom.WalletBalance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance
}

// BalanceInDisplayUnits は SOL 換算し小数 5 桁に丸めた残高です。
func (s *Session) BalanceInDisplayUnits() decimal.Decimal {
	return LamportsToSOL(s.Balance().Lamports).Round(5)
}

func (s *Session) WhitelistBalance() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.whitelist
}

func (s *Session) InFlight() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight
}

// Phase is re-derived on every call; nothing is cached.
func (s *Session) Phase(now time.Time) cmdom.Phase {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()
	return s.resolver.Phase(now, snap)
}

func (s *Session) Resolver() cmdom.Resolver {
	return s.resolver
}

func (s *Session) WalletKey() string {
	return s.walletKey()
}

func (s *Session) walletKey() string {
	if s.wallet == nil || !s.wallet.Connected() {
		return ""
	}
	return strings.TrimSpace(s.wallet.PublicKey())
}

// ============================================================
// Helpers
// ============================================================

func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -lamportsPerSOL)
}

// ShortKey renders an address as "abcd...wxyz".
func ShortKey(address string, chars int) string {
	a := strings.TrimSpace(address)
	if chars <= 0 {
		chars = 4
	}
	if len(a) <= chars*2 {
		return a
	}
	return a[:chars] + "..." + a[len(a)-chars:]
}
