package candymachine

import (
	"errors"
	"testing"
	"time"
)

func TestNewSnapshot(t *testing.T) {
	s, err := NewSnapshot(Snapshot{Address: " cm ", TotalSupply: 1000, RedeemedCount: 999})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	if s.Address != "cm" {
		t.Errorf("Address = %q, want %q", s.Address, "cm")
	}
	if s.IsSoldOut {
		t.Error("IsSoldOut should be false with 1 item left")
	}
	if s.ItemsRemaining() != 1 {
		t.Errorf("ItemsRemaining() = %d, want 1", s.ItemsRemaining())
	}

	if _, err := NewSnapshot(Snapshot{Address: "cm", TotalSupply: 1, RedeemedCount: 2}); !errors.Is(err, ErrRedeemedExceedsSupply) {
		t.Errorf("err = %v, want ErrRedeemedExceedsSupply", err)
	}
	if _, err := NewSnapshot(Snapshot{TotalSupply: 1}); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("err = %v, want ErrInvalidAddress", err)
	}

	full, err := NewSnapshot(Snapshot{Address: "cm", TotalSupply: 5, RedeemedCount: 5, IsSoldOut: false})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	if !full.IsSoldOut {
		t.Error("IsSoldOut must be derived from counts")
	}
}

func TestWithRedeemed(t *testing.T) {
	s, _ := NewSnapshot(Snapshot{Address: "cm", TotalSupply: 1000, RedeemedCount: 999})

	next := s.WithRedeemed(s.RedeemedCount + 1)
	if next.RedeemedCount != 1000 || !next.IsSoldOut {
		t.Errorf("next = %d sold=%v, want 1000 sold=true", next.RedeemedCount, next.IsSoldOut)
	}
	if s.RedeemedCount != 999 || s.IsSoldOut {
		t.Error("WithRedeemed must not mutate the receiver")
	}

	clamped := next.WithRedeemed(next.RedeemedCount + 1)
	if clamped.RedeemedCount != 1000 {
		t.Errorf("RedeemedCount = %d, want clamp at 1000", clamped.RedeemedCount)
	}
}

func TestShouldGate(t *testing.T) {
	gk := &Gatekeeper{Network: "ignREusXmGrscGNUesoU9mxfds9AiYTezUKex2PsZV6"}
	tests := []struct {
		name string
		snap Snapshot
		want bool
	}{
		{"active with gate", Snapshot{IsActive: true, Gatekeeper: gk}, true},
		{"inactive with gate", Snapshot{IsActive: false, Gatekeeper: gk}, false},
		{"active without gate", Snapshot{IsActive: true}, false},
		{"neither", Snapshot{}, false},
	}
	for _, tt := range tests {
		if got := ShouldGate(tt.snap); got != tt.want {
			t.Errorf("%s: ShouldGate() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestWhitelistMint(t *testing.T) {
	if _, ok := (Snapshot{}).WhitelistMint(); ok {
		t.Error("WhitelistMint() without settings should be absent")
	}
	s := Snapshot{Whitelist: &WhitelistSettings{Mint: "wl"}}
	if m, ok := s.WhitelistMint(); !ok || m != "wl" {
		t.Errorf("WhitelistMint() = %q, %v", m, ok)
	}
}

func TestDeriveActive(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		goLive   *time.Time
		presale  bool
		end      *EndSettings
		redeemed uint64
		want     bool
	}{
		{"no go-live", nil, false, nil, 0, false},
		{"go-live passed", &past, false, nil, 0, true},
		{"go-live pending", &future, false, nil, 0, false},
		{"presale before go-live", &future, true, nil, 0, true},
		{"end date ahead", &past, false, &EndSettings{Type: EndByDate, Number: uint64(future.Unix())}, 0, true},
		{"end date passed", &past, false, &EndSettings{Type: EndByDate, Number: uint64(past.Unix())}, 0, false},
		{"end amount not reached", &past, false, &EndSettings{Type: EndByAmount, Number: 10}, 9, true},
		{"end amount reached", &past, false, &EndSettings{Type: EndByAmount, Number: 10}, 10, false},
	}
	for _, tt := range tests {
		if got := DeriveActive(now, tt.goLive, tt.presale, tt.end, tt.redeemed); got != tt.want {
			t.Errorf("%s: DeriveActive() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDerivePresale(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	if DerivePresale(now, nil, nil) {
		t.Error("no whitelist is never presale")
	}
	if !DerivePresale(now, nil, &WhitelistSettings{Presale: true}) {
		t.Error("presale whitelist without go-live should be presale")
	}
	if !DerivePresale(now, &future, &WhitelistSettings{Presale: true}) {
		t.Error("presale whitelist before go-live should be presale")
	}
	if DerivePresale(now, &past, &WhitelistSettings{Presale: true}) {
		t.Error("presale ends at go-live")
	}
}
