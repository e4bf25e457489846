// internal/application/mint/usecase.go
package mint

/*
責任と機能:
- ユーザーの「ミントする」操作 1 回を、確定した Outcome と 1 件の Notification に変換する。
- 手順: 前提条件確認 → (必要なら) gateway token 待ち → ミント tx 提出 → 確認待ち → 状態更新 → 分類。
- 失敗はすべてここで捕捉する（下位から例外・panic を漏らさない）。
- in-flight フラグで同一ウォレットの試行を直列化する（提出中の 2 回目は no-op）。
- 完了時は成否に関わらずウォレット残高を再取得する。
*/

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	cmdom "candymint/internal/domain/candymachine"
	mintdom "candymint/internal/domain/mint"
)

const DefaultTxTimeout = 30 * time.Second

type OrchestratorConfig struct {
	TxTimeout  time.Duration
	Commitment Commitment
	// Relaxed accepts a status with confirmations even below Commitment.
	Relaxed bool
}

// ============================================================
// Orchestrator 本体
// ============================================================

type Orchestrator struct {
	session *Session
	wallet  Wallet
	program ProgramClient
	poller  *Poller
	cfg     OrchestratorConfig
	log     zerolog.Logger

	// 任意依存（Setter で後から差し込む）
	gate    *GateCoordinator
	metrics *Metrics
	now     func() time.Time

	inFlight atomic.Bool
}

func NewOrchestrator(
	session *Session,
	wallet Wallet,
	program ProgramClient,
	poller *Poller,
	cfg OrchestratorConfig,
	log zerolog.Logger,
) *Orchestrator {
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = DefaultTxTimeout
	}
	if cfg.Commitment == "" {
		cfg.Commitment = CommitmentConfirmed
	}
	return &Orchestrator{
		session: session,
		wallet:  wallet,
		program: program,
		poller:  poller,
		cfg:     cfg,
		log:     log.With().Str("component", "mint").Logger(),
		now:     time.Now,
	}
}

// SetGate wires the gate coordinator; it re-invokes submission on token activation.
func (o *Orchestrator) SetGate(g *GateCoordinator) {
	if o == nil || g == nil {
		return
	}
	g.bind(func(ctx context.Context, a *mintdom.Attempt) {
		o.submit(ctx, a)
	})
	o.gate = g
}

func (o *Orchestrator) SetMetrics(m *Metrics) {
	if o == nil {
		return
	}
	o.metrics = m
}

func (o *Orchestrator) SetClock(now func() time.Time) {
	if o == nil || now == nil {
		return
	}
	o.now = now
}

func (o *Orchestrator) InFlight() bool {
	return o.inFlight.Load()
}

// AttemptMint handles one user mint request. It never returns an error.
//
// Return value:
//   - nil: no-op (wallet not ready, no state loaded, phase is not public_mint,
//     or another attempt in flight)
//   - Deferred() attempt: parked until the gateway token becomes active
//   - otherwise: the attempt with its Outcome recorded
func (o *Orchestrator) AttemptMint(ctx context.Context) *mintdom.Attempt {
	if !o.walletReady() {
		o.log.Debug().Msg("wallet not connected; mint ignored")
		return nil
	}
	if o.inFlight.Load() {
		o.log.Debug().Msg("mint already in flight; ignored")
		return nil
	}
	snap, ok := o.session.Snapshot()
	if !ok {
		o.log.Warn().Msg("candy machine state not loaded; mint ignored")
		return nil
	}
	// Panic / Welcome / SoldOut ではミントできない
	if phase := o.session.Phase(o.now()); phase != cmdom.PhasePublicMint {
		o.log.Info().Str("phase", phase.String()).Msg("mint not open; ignored")
		return nil
	}

	a := mintdom.NewAttempt(o.wallet.PublicKey(), o.now())

	if cmdom.ShouldGate(snap) {
		a.VerificationTokenRequired = true
		if o.gate == nil {
			return o.fail(ctx, a, mintdom.ErrGateNotConfigured)
		}
		if !o.gate.Active() {
			if err := o.gate.Await(ctx, a); err != nil {
				o.log.Warn().Err(err).Str("attempt", a.ID).Msg("gateway token request failed")
				return o.fail(ctx, a, err)
			}
			// Await 中に token が active になった場合は提出済み
			if a.Outcome == nil {
				o.metrics.observeDeferred()
			}
			return a
		}
		a.VerificationTokenActive = true
	}

	return o.submit(ctx, a)
}

func (o *Orchestrator) walletReady() bool {
	return o.wallet != nil &&
		o.wallet.Connected() &&
		o.wallet.CanSign() &&
		strings.TrimSpace(o.wallet.PublicKey()) != ""
}

// submit は Submitting → Done。in-flight を取れなければ no-op。
func (o *Orchestrator) submit(ctx context.Context, a *mintdom.Attempt) *mintdom.Attempt {
	if !o.inFlight.CompareAndSwap(false, true) {
		o.log.Debug().Str("attempt", a.ID).Msg("mint already in flight; ignored")
		return nil
	}
	o.metrics.setInFlight(true)
	o.session.setInFlight(true)

	defer func() {
		o.inFlight.Store(false)
		o.metrics.setInFlight(false)
		o.session.setInFlight(false)
		if _, err := o.session.RefreshBalance(ctx); err != nil {
			o.log.Warn().Err(err).Msg("balance refresh after mint failed")
		}
	}()

	start := o.now()
	out := o.execute(ctx, a)
	a.Outcome = &out
	o.finish(ctx, a, o.now().Sub(start))
	return a
}

func (o *Orchestrator) execute(ctx context.Context, a *mintdom.Attempt) (out mintdom.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Str("attempt", a.ID).Msg("mint pipeline panicked")
			out = mintdom.Outcome{Kind: mintdom.OutcomeUnknown, Message: mintdom.MsgMintingFailed, Raw: r}
		}
	}()

	snap, ok := o.session.Snapshot()
	if !ok {
		return mintdom.Classify(mintdom.ErrNoSnapshot)
	}

	ids, err := o.program.MintOneToken(ctx, snap, a.WalletKey)
	if err != nil {
		o.log.Warn().Err(err).Str("attempt", a.ID).Msg("mint submission failed")
		return mintdom.Classify(err)
	}
	if len(ids) == 0 || strings.TrimSpace(ids[0]) == "" {
		o.log.Warn().Str("attempt", a.ID).Msg("submission returned no transaction id")
		return mintdom.StatusFailure(map[string]any{"err": true})
	}
	a.TransactionID = ids[0]

	o.log.Info().Str("attempt", a.ID).Str("tx", maskShort(a.TransactionID)).Msg("mint submitted; awaiting confirmation")
	conf := o.poller.Await(ctx, a.TransactionID, o.cfg.TxTimeout, o.cfg.Commitment, o.cfg.Relaxed)
	return outcomeFromConfirmation(conf)
}

func outcomeFromConfirmation(c Confirmation) mintdom.Outcome {
	if c.Err == nil {
		return mintdom.Succeeded()
	}
	if errors.Is(c.Err, mintdom.ErrConfirmationTimeout) || errors.Is(c.Err, context.DeadlineExceeded) {
		return mintdom.Classify(c.Err)
	}
	var pe *mintdom.ProgramError
	if errors.As(c.Err, &pe) {
		return mintdom.Classify(c.Err)
	}
	return mintdom.StatusFailure(c.Err)
}

// finish は Outcome をセッションへ反映する（楽観的カウンタ / 再読込 / 通知 / メトリクス）。
func (o *Orchestrator) finish(ctx context.Context, a *mintdom.Attempt, took time.Duration) {
	out := *a.Outcome

	if out.Kind == mintdom.OutcomeSuccess {
		o.session.recordMint()
	}
	if out.Reload {
		if _, err := o.session.RefreshSnapshot(ctx); err != nil {
			o.log.Warn().Err(err).Msg("state reload after sold out failed")
		}
	}
	o.session.SetNotification(out.Notification())
	o.metrics.observeOutcome(out, took)

	o.log.Info().
		Str("attempt", a.ID).
		Str("outcome", out.Kind.String()).
		Str("tx", maskShort(a.TransactionID)).
		Dur("took", took).
		Msg(out.Message)
}

// fail records a terminal outcome for an attempt that never reached submission.
// The in-flight flag is not taken: nothing was submitted.
func (o *Orchestrator) fail(ctx context.Context, a *mintdom.Attempt, err error) *mintdom.Attempt {
	out := mintdom.Classify(err)
	a.Outcome = &out
	o.session.SetNotification(out.Notification())
	o.metrics.observeOutcome(out, 0)
	if _, err := o.session.RefreshBalance(ctx); err != nil {
		o.log.Warn().Err(err).Msg("balance refresh after failed attempt")
	}
	return a
}

func maskShort(s string) string {
	t := strings.TrimSpace(s)
	if len(t) <= 10 {
		return t
	}
	return t[:4] + "***" + t[len(t)-4:]
}
