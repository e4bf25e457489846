// internal/application/mint/gate.go
package mint

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	mintdom "candymint/internal/domain/mint"
)

type GateState int

const (
	GateIdle GateState = iota
	GateAwaiting
	GateSubmitting
)

func (s GateState) String() string {
	switch s {
	case GateAwaiting:
		return "awaiting_gate"
	case GateSubmitting:
		return "submitting"
	default:
		return "idle"
	}
}

// GateCoordinator は gateway token の取得状況を追跡し、
// token が active になった時点で保留中の試行を提出させます。
//
//	Idle -> AwaitingGate (token 要求) -> Submitting -> Idle
//
// 保留中の試行がないときの Active 通知は無視する。
type GateCoordinator struct {
	gateway Gateway
	log     zerolog.Logger

	mu      sync.Mutex
	state   GateState
	pending *mintdom.Attempt
	submit  func(ctx context.Context, a *mintdom.Attempt)
}

func NewGateCoordinator(gw Gateway, log zerolog.Logger) *GateCoordinator {
	return &GateCoordinator{
		gateway: gw,
		log:     log.With().Str("component", "gate").Logger(),
	}
}

// bind は Orchestrator が提出処理を差し込むために使う。
func (g *GateCoordinator) bind(submit func(ctx context.Context, a *mintdom.Attempt)) {
	g.mu.Lock()
	g.submit = submit
	g.mu.Unlock()
}

func (g *GateCoordinator) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Active reports whether the gateway currently holds an active token.
func (g *GateCoordinator) Active() bool {
	return g.gateway != nil && g.gateway.Status() == GatewayActive
}

// Await parks the attempt and requests a token unless one is already being requested.
// If the token is already active, the attempt is submitted right away.
func (g *GateCoordinator) Await(ctx context.Context, a *mintdom.Attempt) error {
	if g.gateway == nil {
		return mintdom.ErrGateNotConfigured
	}

	g.mu.Lock()
	g.state = GateAwaiting
	g.pending = a
	g.mu.Unlock()

	switch g.gateway.Status() {
	case GatewayActive:
		g.HandleStatus(ctx, GatewayActive)
		return nil
	case GatewayRequesting:
		g.log.Debug().Str("attempt", a.ID).Msg("token request already in progress")
		return nil
	}

	g.log.Info().Str("attempt", a.ID).Msg("requesting gateway token")
	if err := g.gateway.RequestToken(ctx); err != nil {
		g.mu.Lock()
		if g.pending == a {
			g.pending = nil
			g.state = GateIdle
		}
		g.mu.Unlock()
		return err
	}
	return nil
}

// HandleStatus reacts to a gateway status change.
func (g *GateCoordinator) HandleStatus(ctx context.Context, status GatewayStatus) {
	if status != GatewayActive {
		return
	}

	g.mu.Lock()
	a := g.pending
	submit := g.submit
	if a == nil || submit == nil {
		g.mu.Unlock()
		g.log.Debug().Msg("token active with no pending attempt; ignored")
		return
	}
	g.pending = nil
	g.state = GateSubmitting
	g.mu.Unlock()

	a.VerificationTokenActive = true
	g.log.Info().Str("attempt", a.ID).Msg("gateway token active; submitting")
	submit(ctx, a)

	g.mu.Lock()
	if g.state == GateSubmitting {
		g.state = GateIdle
	}
	g.mu.Unlock()
}

// Run consumes gateway status changes until ctx is done.
func (g *GateCoordinator) Run(ctx context.Context) {
	if g.gateway == nil {
		return
	}
	ch, cancel := g.gateway.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-ch:
			if !ok {
				return
			}
			g.HandleStatus(ctx, st)
		}
	}
}

// Reset drops any pending attempt (e.g. when the session's wallet changes).
func (g *GateCoordinator) Reset() {
	g.mu.Lock()
	g.pending = nil
	g.state = GateIdle
	g.mu.Unlock()
}
