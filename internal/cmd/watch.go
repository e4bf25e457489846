package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	appmint "candymint/internal/application/mint"
	cmdom "candymint/internal/domain/candymachine"
	mintdom "candymint/internal/domain/mint"
	"candymint/internal/platform/di"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow candy machine and wallet state until interrupted",
	Long: `Keep the session state current: wallet balance through the account-change
subscription, candy machine state on an interval, and the gateway token
when the candy machine is gated. Serves Prometheus metrics on METRICS_ADDR.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Duration("refresh", 30*time.Second, "candy machine state refresh interval")
	watchCmd.Flags().Bool("mint", false, "mint as soon as the phase is public_mint")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	refresh, _ := cmd.Flags().GetDuration("refresh")
	autoMint, _ := cmd.Flags().GetBool("mint")

	c, err := newContainer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	if _, err := c.Bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to load candy machine: %w", err)
	}

	l := c.Log.With().Str("component", "watch").Logger()

	unsubscribe := c.Session.Subscribe(func(ev appmint.Event) {
		switch ev.Kind {
		case appmint.EventNotificationChanged:
			if ev.Notification.Open {
				l.Info().Str("severity", string(ev.Notification.Severity)).Msg(ev.Notification.Message)
			}
		case appmint.EventBalanceChanged:
			l.Info().Str("balance", c.Session.BalanceInDisplayUnits().String()).Msg("balance changed")
		case appmint.EventSnapshotChanged:
			l.Debug().Uint64("redeemed", c.Session.MintedTotal()).Uint64("available", c.Session.ItemsAvailable()).Msg("snapshot changed")
		}
	})
	defer unsubscribe()

	stopAccount, err := c.Session.WatchAccount(ctx)
	if err != nil {
		l.Warn().Err(err).Msg("account subscription unavailable; balance refreshes after mints only")
	} else {
		defer stopAccount()
	}

	if addr := c.Config.MetricsAddr; addr != "" {
		srv := metricsServer(c, addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		l.Info().Str("addr", addr).Msg("metrics listening")
	}

	gateStarted := startGate(ctx, c)

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()
	for {
		if autoMint && c.Session.Phase(time.Now()) == cmdom.PhasePublicMint && !c.Orchestrator.InFlight() {
			// 成功するか保留になったら以後は自動ミントしない
			if a := c.Orchestrator.AttemptMint(ctx); a != nil && (a.Deferred() || (a.Outcome != nil && a.Outcome.Kind == mintdom.OutcomeSuccess)) {
				autoMint = false
			}
		}
		select {
		case <-ctx.Done():
			l.Info().Msg("stopping")
			return nil
		case <-ticker.C:
			snap, err := c.Session.RefreshSnapshot(ctx)
			if err != nil {
				continue
			}
			if !gateStarted {
				if _, err := c.EnsureGate(snap); err == nil {
					gateStarted = startGate(ctx, c)
				}
			}
		}
	}
}

// startGate runs the gateway watcher and the coordinator loop when the candy machine is gated.
func startGate(ctx context.Context, c *di.Container) bool {
	gate, gw := c.Gate(), c.Gateway()
	if gate == nil || gw == nil {
		return false
	}
	go gw.Watch(ctx, 0)
	go gate.Run(ctx)
	return true
}

func metricsServer(c *di.Container, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}))
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
