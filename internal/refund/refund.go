// Package refund returns expired, unreleased escrows to their payers.
package refund

import (
	"context"
	"time"

	"github.com/trustvault/settlement/internal/audit"
	"github.com/trustvault/settlement/internal/ledger"
	"github.com/trustvault/settlement/internal/platform/logger"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
)

// Ledger is an escrow ledger whose escrows can be listed and refunded.
type Ledger interface {
	List(ctx context.Context) ([]*ledger.Escrow, error)
	Refund(ctx context.Context, escrowID string) (*ledger.Escrow, error)
}

// Sweeper refunds every escrow past its expiry that was neither released nor refunded.
type Sweeper struct {
	ledger Ledger
	audit  audit.Sink
	now    func() time.Time
}

// NewSweeper returns a Sweeper over l.
func NewSweeper(l Ledger, sink audit.Sink) *Sweeper {
	return &Sweeper{
		ledger: l,
		audit:  sink,
		now:    time.Now,
	}
}

// Run implements scheduler.PeriodicProcessInterface.
func (s *Sweeper) Run(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		logger.NewLoggerFromContext(ctx).Warn("refund sweep failed", zap.Error(err))
	}
}

// Sweep refunds the expired escrows and returns the ids refunded. A release that lands between
// listing and refunding wins; the escrow is then skipped.
func (s *Sweeper) Sweep(ctx context.Context) ([]string, error) {
	ctx, span := trace.StartSpan(ctx, "internal.refund.Sweeper.Sweep")
	defer span.End()

	escrows, err := s.ledger.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list escrows")
	}

	now := s.now()
	var refunded []string
	for _, e := range escrows {
		if e.Released || e.Refunded || !now.After(e.Expiry) {
			continue
		}

		ectx := logger.ContextWithEscrowID(ctx, e.ID)

		r, err := s.ledger.Refund(ectx, e.ID)
		if err != nil {
			switch errors.Cause(err) {
			case ledger.ErrAlreadyReleased, ledger.ErrAlreadyRefunded, ledger.ErrNotExpired:
				continue
			}
			return refunded, errors.Wrapf(err, "refund %s", e.ID)
		}

		audit.Emit(ectx, s.audit, audit.Event{
			Type:   audit.EventEscrowRefund,
			Amount: r.Amount.String(),
		})
		logger.NewLoggerFromContext(ectx).Info("expired escrow refunded", zap.String("payer", r.Payer))

		refunded = append(refunded, e.ID)
	}

	return refunded, nil
}
