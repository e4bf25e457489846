// internal/application/mint/confirm.go
package mint

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	mintdom "candymint/internal/domain/mint"
)

// DefaultPollInterval は確認ポーリングの固定間隔です（タイムアウトより十分小さい）。
const DefaultPollInterval = 500 * time.Millisecond

// Confirmation is the result of waiting for a signature.
// Err is nil on success, mintdom.ErrConfirmationTimeout when the deadline
// passed, or a *mintdom.TransactionError for a definitive on-chain failure.
type Confirmation struct {
	Err    error
	Status *SignatureStatus
}

// Poller polls the transport for one signature until a terminal status or the deadline.
type Poller struct {
	transport StatusQuerier
	interval  time.Duration
	log       zerolog.Logger
}

func NewPoller(transport StatusQuerier, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		transport: transport,
		interval:  interval,
		log:       log.With().Str("component", "confirm").Logger(),
	}
}

// AwaitConfirmation waits with the default poll interval and a no-op logger.
func AwaitConfirmation(
	ctx context.Context,
	txID string,
	timeout time.Duration,
	transport StatusQuerier,
	commitment Commitment,
	relaxed bool,
) Confirmation {
	return NewPoller(transport, DefaultPollInterval, zerolog.Nop()).Await(ctx, txID, timeout, commitment, relaxed)
}

// Await polls until success at or above commitment, an on-chain error, or
// until timeout elapses. The timeout is an absolute wall-clock deadline; a
// status query still in flight at the deadline is cancelled.
//
// relaxed additionally accepts a status with a non-zero confirmation count
// even when its commitment label is below the requested one.
func (p *Poller) Await(
	ctx context.Context,
	txID string,
	timeout time.Duration,
	commitment Commitment,
	relaxed bool,
) Confirmation {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	polls := 0
	for {
		polls++
		st, err := p.transport.GetSignatureStatus(ctx, txID)
		if ctx.Err() != nil {
			return p.expired(parent, txID, polls)
		}

		switch {
		case err != nil:
			p.log.Debug().Err(err).Str("tx", txID).Msg("status query failed; retrying")
		case st == nil:
			p.log.Debug().Str("tx", txID).Msg("no status yet")
		case st.Err != nil:
			p.log.Info().Str("tx", txID).Interface("err", st.Err).Msg("transaction failed on chain")
			return Confirmation{Err: &mintdom.TransactionError{Raw: st.Err}, Status: st}
		case reached(st, commitment, relaxed):
			p.log.Info().Str("tx", txID).Str("commitment", string(st.ConfirmationStatus)).Int("polls", polls).Msg("transaction confirmed")
			return Confirmation{Status: st}
		default:
			p.log.Debug().Str("tx", txID).Str("commitment", string(st.ConfirmationStatus)).Msg("not yet at requested commitment")
		}

		select {
		case <-ctx.Done():
			return p.expired(parent, txID, polls)
		case <-ticker.C:
		}
	}
}

func (p *Poller) expired(parent context.Context, txID string, polls int) Confirmation {
	if err := parent.Err(); err != nil {
		return Confirmation{Err: err}
	}
	p.log.Warn().Str("tx", txID).Int("polls", polls).Msg("confirmation timed out")
	return Confirmation{Err: mintdom.ErrConfirmationTimeout}
}

func reached(st *SignatureStatus, want Commitment, relaxed bool) bool {
	if st.ConfirmationStatus.AtLeast(want) {
		return true
	}
	return relaxed && st.Confirmations != nil && *st.Confirmations > 0
}
