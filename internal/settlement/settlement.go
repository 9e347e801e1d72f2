package settlement

import (
	"context"

	"github.com/trustvault/settlement/internal/assertion"
	"github.com/trustvault/settlement/internal/audit"
	"github.com/trustvault/settlement/internal/ledger"
	"github.com/trustvault/settlement/internal/platform/logger"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
)

var (
	// ErrPaymentRequired is returned when the token or its signature is missing.
	ErrPaymentRequired = errors.New("Payment required")

	// errInvalidTransition marks a processing bug, never a caller error.
	errInvalidTransition = errors.New("Invalid state transition")
)

// Verifier authenticates and decodes payment assertions.
type Verifier interface {
	Verify(ctx context.Context, rawPayment, rawSignature string) (*assertion.PaymentAssertion, error)
}

// Releaser releases escrowed funds.
type Releaser interface {
	Release(ctx context.Context, escrowID, recipient string) (*ledger.Receipt, error)
}

// Outcome is the result of processing one settlement request.
type Outcome struct {
	State       State
	Transitions []State
	Assertion   *assertion.PaymentAssertion
	Receipt     *ledger.Receipt
	Err         error
}

// SettlementID returns the bridge settlement id carried by the assertion, or the ledger receipt id
// when the assertion carries none.
func (o *Outcome) SettlementID() string {
	if o.Assertion != nil && len(o.Assertion.SettlementID) > 0 {
		return o.Assertion.SettlementID
	}
	if o.Receipt != nil {
		return o.Receipt.ReceiptID
	}
	return ""
}

func (o *Outcome) advance(to State) {
	if !canTransition(o.State, to) {
		o.Err = errors.Wrapf(errInvalidTransition, "%s to %s", o.State, to)
		o.State = StateFailed
		o.Transitions = append(o.Transitions, StateFailed)
		return
	}

	o.State = to
	o.Transitions = append(o.Transitions, to)
}

// Processor runs the settlement state machine: a payment assertion is verified and, only when
// verification succeeds, the escrow it names is released.
type Processor struct {
	verifier Verifier
	releaser Releaser
	audit    audit.Sink
}

// NewProcessor returns a Processor.
func NewProcessor(v Verifier, r Releaser, sink audit.Sink) *Processor {
	return &Processor{
		verifier: v,
		releaser: r,
		audit:    sink,
	}
}

// Settle processes one settlement request. The returned Outcome is always in a terminal state
// and Err is set unless the escrow was released.
func (p *Processor) Settle(ctx context.Context, rawPayment, rawSignature string) *Outcome {
	ctx, span := trace.StartSpan(ctx, "internal.settlement.Settle")
	defer span.End()

	o := &Outcome{
		State:       StateReceived,
		Transitions: []State{StateReceived},
	}
	defer p.record(ctx, o)

	if len(rawPayment) == 0 || len(rawSignature) == 0 {
		o.Err = ErrPaymentRequired
		o.advance(StateRejected)
		return o
	}

	o.advance(StateVerifying)

	a, err := p.verifier.Verify(ctx, rawPayment, rawSignature)
	if err != nil {
		o.Err = err
		o.advance(StateRejected)
		return o
	}

	o.Assertion = a
	o.advance(StateVerified)

	ctx = logger.ContextWithEscrowID(ctx, a.EscrowID)
	if len(a.SettlementID) > 0 {
		ctx = logger.ContextWithSettlementID(ctx, a.SettlementID)
	}

	o.advance(StateReleasing)

	receipt, err := p.releaser.Release(ctx, a.EscrowID, a.Recipient)
	if err != nil {
		o.Err = err
		o.advance(StateFailed)
		return o
	}

	o.Receipt = receipt
	o.advance(StateReleased)
	return o
}

func (p *Processor) record(ctx context.Context, o *Outcome) {
	e := audit.Event{
		Type:  audit.EventStateChanged,
		State: string(o.State),
	}
	fields := []zap.Field{zap.String("state", string(o.State))}

	if o.Assertion != nil {
		e.EscrowID = o.Assertion.EscrowID
		e.SettlementID = o.Assertion.SettlementID
		e.Amount = o.Assertion.Amount.String()
		fields = append(fields, zap.String("escrow_id", o.Assertion.EscrowID))
	}
	if o.Receipt != nil {
		e.ReceiptID = o.Receipt.ReceiptID
	}
	if o.Err != nil {
		e.Error = errors.Cause(o.Err).Error()
		fields = append(fields, zap.Error(o.Err))
	}

	logger.NewLoggerFromContext(ctx).Info("settlement processed", fields...)
	audit.Emit(ctx, p.audit, e)
}
