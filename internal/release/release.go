package release

import (
	"context"
	"time"

	"github.com/trustvault/settlement/internal/audit"
	"github.com/trustvault/settlement/internal/ledger"
	"github.com/trustvault/settlement/internal/platform/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
)

// Config bounds the retry policy of an Executor.
type Config struct {
	// MaxAttempts is the total number of ledger calls, including the first.
	MaxAttempts    int
	AttemptTimeout time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns the policy used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    4,
		AttemptTimeout: 5 * time.Second,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

// Executor instructs the ledger to release escrowed funds. It trusts its caller to have verified
// the payment.
type Executor struct {
	ledger ledger.Ledger
	cfg    Config
	audit  audit.Sink
}

// New returns an Executor. Zero values in cfg fall back to DefaultConfig.
func New(l ledger.Ledger, cfg Config, sink audit.Sink) *Executor {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	return &Executor{
		ledger: l,
		cfg:    cfg,
		audit:  sink,
	}
}

// Release releases the escrow to recipient.
//
// The ledger call is detached from the cancellation of ctx: once started, a release runs to
// completion or to the end of its retry budget even if the caller goes away. Only
// ErrLedgerUnavailable, which includes an attempt timing out, is retried. ErrAlreadyReleased and
// ErrEscrowNotFound are returned as they are.
func (e *Executor) Release(ctx context.Context, escrowID, recipient string) (*ledger.Receipt, error) {
	ctx = context.WithoutCancel(ctx)

	ctx, span := trace.StartSpan(ctx, "internal.release.Executor.Release")
	defer span.End()

	ctx = logger.ContextWithEscrowID(ctx, escrowID)
	log := logger.NewLoggerFromContext(ctx)
	start := time.Now()

	var (
		receipt     *ledger.Receipt
		attempt     int
		unavailable bool
	)

	op := func() error {
		attempt++

		actx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
		defer cancel()

		r, err := e.ledger.Release(actx, escrowID, recipient)
		if err == nil {
			receipt = r
			return nil
		}

		if errors.Cause(err) == context.DeadlineExceeded ||
			(actx.Err() == context.DeadlineExceeded && !isLedgerOutcome(err)) {
			err = errors.Wrapf(ledger.ErrLedgerUnavailable, "attempt timed out after %s",
				e.cfg.AttemptTimeout)
		}

		if ledger.IsRetryable(err) {
			unavailable = true
			return err
		}

		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		log.Warn("ledger release retry", zap.Int("attempt", attempt), zap.Duration("wait", wait),
			zap.Error(err))
		audit.Emit(ctx, e.audit, audit.Event{
			Type:    audit.EventReleaseRetry,
			Attempt: attempt,
			Error:   err.Error(),
		})
	}

	err := backoff.RetryNotify(op, e.policy(), notify)
	if err != nil {
		if unavailable && errors.Cause(err) == ledger.ErrAlreadyReleased {
			// An earlier attempt may have been applied by the ledger after it timed out.
			log.Warn("escrow already released after an unavailable attempt")
		}

		log.Error("ledger release failed", zap.Int("attempts", attempt), zap.Error(err))
		audit.Emit(ctx, e.audit, audit.Event{
			Type:    audit.EventReleaseFailed,
			Attempt: attempt,
			Error:   errors.Cause(err).Error(),
		})
		return nil, err
	}

	logger.Elapsed(ctx, start, "escrow released")
	audit.Emit(ctx, e.audit, audit.Event{
		Type:      audit.EventReleaseSucceeded,
		Attempt:   attempt,
		Amount:    receipt.Amount.String(),
		ReceiptID: receipt.ReceiptID,
	})

	return receipt, nil
}

func (e *Executor) policy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.InitialBackoff
	b.MaxInterval = e.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	return backoff.WithMaxRetries(b, uint64(e.cfg.MaxAttempts-1))
}

// isLedgerOutcome reports whether err is a definitive answer from the ledger.
func isLedgerOutcome(err error) bool {
	switch errors.Cause(err) {
	case ledger.ErrEscrowNotFound, ledger.ErrAlreadyReleased, ledger.ErrAlreadyRefunded,
		ledger.ErrRecipientMismatch:
		return true
	}
	return false
}
