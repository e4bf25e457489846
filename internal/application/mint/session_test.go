package mint

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	cmdom "candymint/internal/domain/candymachine"
	mintdom "candymint/internal/domain/mint"
)

func newTestSession(p *fakeProgram, tr *fakeTransport, w Wallet) *Session {
	return NewSession("cm", p, tr, w, cmdom.Resolver{}, zerolog.Nop())
}

func TestRefreshSnapshotIdempotent(t *testing.T) {
	p := &fakeProgram{snap: mustSnapshot(cmdom.Snapshot{Address: "cm", TotalSupply: 1000, RedeemedCount: 10})}
	s := newTestSession(p, &fakeTransport{}, newFakeWallet())

	first, err := s.RefreshSnapshot(context.Background())
	if err != nil {
		t.Fatalf("RefreshSnapshot: %v", err)
	}
	second, err := s.RefreshSnapshot(context.Background())
	if err != nil {
		t.Fatalf("RefreshSnapshot: %v", err)
	}
	if first != second {
		t.Errorf("refresh with unchanged chain state differs: %+v vs %+v", first, second)
	}
	if got, _ := s.Snapshot(); got != second {
		t.Errorf("Snapshot() = %+v, want %+v", got, second)
	}
}

func TestRefreshSnapshotErrorKeepsState(t *testing.T) {
	p := &fakeProgram{snap: mustSnapshot(cmdom.Snapshot{Address: "cm", TotalSupply: 5, RedeemedCount: 1})}
	s := newTestSession(p, &fakeTransport{}, newFakeWallet())
	if _, err := s.RefreshSnapshot(context.Background()); err != nil {
		t.Fatal(err)
	}

	p.mu.Lock()
	p.stateErr = errors.New("rpc down")
	p.mu.Unlock()

	if _, err := s.RefreshSnapshot(context.Background()); err == nil {
		t.Fatal("want error")
	}
	if s.MintedTotal() != 1 || s.ItemsAvailable() != 5 {
		t.Errorf("state changed after failed refresh: %d/%d", s.MintedTotal(), s.ItemsAvailable())
	}
}

func TestRefreshSnapshotRequiresID(t *testing.T) {
	s := NewSession("  ", &fakeProgram{}, &fakeTransport{}, newFakeWallet(), cmdom.Resolver{}, zerolog.Nop())
	if _, err := s.RefreshSnapshot(context.Background()); err == nil {
		t.Fatal("want error without candy machine id")
	}
}

func TestSessionObservers(t *testing.T) {
	p := &fakeProgram{snap: mustSnapshot(cmdom.Snapshot{Address: "cm", TotalSupply: 3})}
	s := newTestSession(p, &fakeTransport{}, newFakeWallet())

	var mu sync.Mutex
	var kinds []EventKind
	unsubscribe := s.Subscribe(func(ev Event) {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
	})

	if _, err := s.RefreshSnapshot(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.SetNotification(mintdom.Notification{Open: true, Message: "hi", Severity: mintdom.SeveritySuccess})
	unsubscribe()
	s.DismissNotification()

	mu.Lock()
	defer mu.Unlock()
	want := []EventKind{EventSnapshotChanged, EventNotificationChanged}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event[%d] = %v, want %v", i, kinds[i], want[i])
		}
	}
	if n := s.Notification(); n.Open || n.Message != "hi" {
		t.Errorf("Notification() = %+v, want closed with message kept", n)
	}
}

func TestRefreshBalance(t *testing.T) {
	tr := &fakeTransport{balance: 2_500_000_000}
	s := newTestSession(&fakeProgram{}, tr, newFakeWallet())

	var sawLoading bool
	s.Subscribe(func(ev Event) {
		if ev.Kind == EventBalanceChanged && s.Balance().Loading {
			sawLoading = true
		}
	})

	b, err := s.RefreshBalance(context.Background())
	if err != nil {
		t.Fatalf("RefreshBalance: %v", err)
	}
	if b.Lamports != 2_500_000_000 || b.Loading {
		t.Errorf("balance = %+v", b)
	}
	if !sawLoading {
		t.Error("loading flag should be raised while the read is outstanding")
	}
	if got := s.BalanceInDisplayUnits().String(); got != "2.5" {
		t.Errorf("BalanceInDisplayUnits() = %s, want 2.5", got)
	}

	tr.mu.Lock()
	tr.balanceErr = errors.New("boom")
	tr.mu.Unlock()
	b, err = s.RefreshBalance(context.Background())
	if err == nil {
		t.Fatal("want error")
	}
	if b.Lamports != 2_500_000_000 || b.Loading {
		t.Errorf("failed read should keep the last value: %+v", b)
	}
}

func TestRefreshBalanceNoWallet(t *testing.T) {
	tr := &fakeTransport{balance: 1}
	s := newTestSession(&fakeProgram{}, tr, &fakeWallet{})
	if _, err := s.RefreshBalance(context.Background()); err != nil {
		t.Fatal(err)
	}
	if tr.balCalls != 0 {
		t.Error("no balance read without a connected wallet")
	}
}

func TestRefreshWhitelistBalance(t *testing.T) {
	wl := &cmdom.WhitelistSettings{Mode: cmdom.WhitelistBurnEveryTime, Mint: "WLmint111"}
	p := &fakeProgram{
		snap:         mustSnapshot(cmdom.Snapshot{Address: "cm", TotalSupply: 10, Whitelist: wl}),
		tokenBalance: 3,
	}
	s := newTestSession(p, &fakeTransport{}, newFakeWallet())
	if _, err := s.RefreshSnapshot(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := s.RefreshWhitelistBalance(context.Background()); got != 3 {
		t.Errorf("whitelist = %d, want 3", got)
	}

	p.mu.Lock()
	p.tokenErr = errors.New("no token account")
	p.mu.Unlock()
	if got := s.RefreshWhitelistBalance(context.Background()); got != 0 {
		t.Errorf("whitelist = %d, want 0 on failure", got)
	}
}

func TestPriceInDisplayUnits(t *testing.T) {
	p := &fakeProgram{snap: mustSnapshot(cmdom.Snapshot{Address: "cm", TotalSupply: 1, UnitPrice: 1_000_000_000})}
	s := newTestSession(p, &fakeTransport{}, newFakeWallet())
	if !s.PriceInDisplayUnits().IsZero() {
		t.Error("price should be zero before the first refresh")
	}
	if _, err := s.RefreshSnapshot(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.PriceInDisplayUnits().String(); got != "1" {
		t.Errorf("PriceInDisplayUnits() = %s, want 1", got)
	}
}

func TestWatchAccountRefreshesBalance(t *testing.T) {
	tr := &fakeTransport{balance: 42}
	s := newTestSession(&fakeProgram{}, tr, newFakeWallet())

	stop, err := s.WatchAccount(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	tr.pushAccountChange()
	if s.Balance().Lamports != 42 {
		t.Errorf("balance = %d, want 42 after account change", s.Balance().Lamports)
	}
}

func TestSessionPhase(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &fakeProgram{snap: mustSnapshot(cmdom.Snapshot{Address: "cm", TotalSupply: 2, RedeemedCount: 2})}
	s := NewSession("cm", p, &fakeTransport{}, newFakeWallet(), cmdom.Resolver{PublicSaleStart: &start}, zerolog.Nop())

	if got := s.Phase(start.Add(time.Hour)); got != cmdom.PhasePublicMint {
		t.Errorf("Phase before refresh = %v, want PublicMint", got)
	}
	if _, err := s.RefreshSnapshot(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.Phase(start.Add(time.Hour)); got != cmdom.PhaseSoldOut {
		t.Errorf("Phase = %v, want SoldOut", got)
	}
	if got := s.Phase(start.Add(-time.Hour)); got != cmdom.PhaseWelcome {
		t.Errorf("Phase = %v, want Welcome", got)
	}
}

func TestShortKey(t *testing.T) {
	if got := ShortKey(testWallet, 4); got != "7xKX...gAsU" {
		t.Errorf("ShortKey = %q", got)
	}
	if got := ShortKey("abc", 4); got != "abc" {
		t.Errorf("ShortKey short = %q", got)
	}
}
