package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	appmint "candymint/internal/application/mint"
	cmdom "candymint/internal/domain/candymachine"
	mintdom "candymint/internal/domain/mint"
	"candymint/internal/platform/di"
)

var (
	errMintNotCompleted = errors.New("mint did not complete")
	errMintClosed       = errors.New("mint is not open")
)

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint one token with the configured wallet",
	Long: `Mint one token from the candy machine. When the candy machine requires a
gateway token and none is active, a token is requested and the mint is
submitted automatically once it becomes active (bounded by --wait).`,
	RunE: runMint,
}

func init() {
	mintCmd.Flags().Duration("wait", 3*time.Minute, "how long to wait for a gateway token before giving up")
	rootCmd.AddCommand(mintCmd)
}

func runMint(cmd *cobra.Command, args []string) error {
	wait, _ := cmd.Flags().GetDuration("wait")

	c, err := newContainer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	if _, err := c.Bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to load candy machine: %w", err)
	}
	if !c.Wallet.Connected() {
		return errors.New("no wallet configured (WALLET_KEYPAIR, WALLET_PRIVATE_KEY or WALLET_KEY_SECRET)")
	}

	if err := mintOpen(c.Session, time.Now()); err != nil {
		return err
	}

	note, err := mintOnce(ctx, c, wait)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), note.Message)
	if note.Severity != mintdom.SeveritySuccess {
		return errMintNotCompleted
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Redeemed: %d / %d\n", c.Session.MintedTotal(), c.Session.ItemsAvailable())
	return nil
}

// mintOpen reports why the current phase does not accept a mint.
func mintOpen(s *appmint.Session, now time.Time) error {
	r := s.Resolver()
	switch phase := s.Phase(now); phase {
	case cmdom.PhasePublicMint:
		return nil
	case cmdom.PhasePanic:
		return fmt.Errorf("%w: %s", errMintClosed, r.Panic.Title)
	case cmdom.PhaseSoldOut:
		return fmt.Errorf("%w: %s", errMintClosed, mintdom.MsgSoldOut)
	default:
		if d, ok := r.Countdown(now); ok {
			return fmt.Errorf("%w: public sale starts in %s", errMintClosed, d.Truncate(time.Second))
		}
		return fmt.Errorf("%w: public sale start is not set", errMintClosed)
	}
}

// mintOnce runs a single attempt and returns the notification it produced.
func mintOnce(ctx context.Context, c *di.Container, wait time.Duration) (mintdom.Notification, error) {
	notes := make(chan mintdom.Notification, 1)
	unsubscribe := c.Session.Subscribe(func(ev appmint.Event) {
		if ev.Kind != appmint.EventNotificationChanged || !ev.Notification.Open {
			return
		}
		select {
		case notes <- ev.Notification:
		default:
		}
	})
	defer unsubscribe()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	startGate(runCtx, c)

	a := c.Orchestrator.AttemptMint(ctx)
	if a == nil {
		return mintdom.Notification{}, errors.New("mint ignored (wallet not ready, state not loaded or already in flight)")
	}
	if a.Outcome != nil {
		return c.Session.Notification(), nil
	}

	// gateway token 待ち
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case n := <-notes:
		return n, nil
	case <-timer.C:
		return mintdom.Notification{}, fmt.Errorf("gateway token not active after %s", wait)
	case <-ctx.Done():
		return mintdom.Notification{}, ctx.Err()
	}
}
