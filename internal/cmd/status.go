package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	appmint "candymint/internal/application/mint"
	cmdom "candymint/internal/domain/candymachine"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show candy machine state and the current phase",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := newContainer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.Bootstrap(cmd.Context()); err != nil {
		return fmt.Errorf("failed to load candy machine: %w", err)
	}
	printStatus(cmd.OutOrStdout(), c.Session, c.Gate(), time.Now())
	return nil
}

func printStatus(w io.Writer, s *appmint.Session, gate *appmint.GateCoordinator, now time.Time) {
	snap, ok := s.Snapshot()
	if !ok {
		fmt.Fprintln(w, "No candy machine state")
		return
	}

	phase := s.Phase(now)
	fmt.Fprintf(w, "Candy machine: %s\n", snap.Address)
	fmt.Fprintf(w, "Phase: %s\n", phase)
	r := s.Resolver()
	switch phase {
	case cmdom.PhasePanic:
		fmt.Fprintf(w, "  %s\n  %s\n", r.Panic.Title, r.Panic.Description)
	case cmdom.PhaseWelcome:
		fmt.Fprintf(w, "  %s\n  %s\n", r.Welcome.Title, r.Welcome.Description)
		if d, ok := r.Countdown(now); ok && r.Welcome.CountdownEnabled {
			fmt.Fprintf(w, "  Starts in: %s\n", d.Truncate(time.Second))
		}
	}

	fmt.Fprintf(w, "Redeemed: %d / %d (remaining %d)\n", s.MintedTotal(), s.ItemsAvailable(), snap.ItemsRemaining())
	fmt.Fprintf(w, "Price: %s SOL\n", s.PriceInDisplayUnits().String())
	fmt.Fprintf(w, "Active: %t  Presale: %t  Sold out: %t\n", snap.IsActive, snap.IsPresale, snap.IsSoldOut)
	if snap.GoLiveDate != nil {
		fmt.Fprintf(w, "Go live: %s\n", snap.GoLiveDate.Format(time.RFC3339))
	}

	if key := s.WalletKey(); key != "" {
		fmt.Fprintf(w, "Wallet: %s\n", appmint.ShortKey(key, 4))
		fmt.Fprintf(w, "Balance: %s SOL\n", s.BalanceInDisplayUnits().String())
		if snap.Whitelist != nil {
			fmt.Fprintf(w, "Whitelist tokens: %d\n", s.WhitelistBalance())
		}
	} else {
		fmt.Fprintln(w, "Wallet: not connected")
	}

	if snap.Gatekeeper != nil {
		state := "not wired"
		if gate != nil {
			state = gate.State().String()
		}
		fmt.Fprintf(w, "Gatekeeper: %s (gate %s)\n", appmint.ShortKey(snap.Gatekeeper.Network, 4), state)
	}
}
