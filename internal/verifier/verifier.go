package verifier

import (
	"context"

	"github.com/trustvault/settlement/internal/assertion"
	"github.com/trustvault/settlement/internal/audit"
	"github.com/trustvault/settlement/internal/platform/logger"
	"github.com/trustvault/settlement/pkg/signing"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
)

var (
	// ErrMalformedPayment is returned when the token is empty or cannot be decoded.
	ErrMalformedPayment = errors.New("Malformed payment")

	// ErrInvalidSignature is returned when the signature does not verify against a trusted key.
	ErrInvalidSignature = errors.New("Invalid signature")

	// ErrInsufficientPayment is returned when an authentic assertion pays less than expected.
	ErrInsufficientPayment = errors.New("Insufficient payment")
)

// Verifier checks payment assertions against the trusted rail keys. It holds no mutable state and
// is safe for concurrent use.
type Verifier struct {
	keys  *signing.KeySet
	audit audit.Sink
}

// New returns a Verifier trusting keys.
func New(keys *signing.KeySet, sink audit.Sink) *Verifier {
	return &Verifier{
		keys:  keys,
		audit: sink,
	}
}

// Verify authenticates and decodes a payment assertion.
//
// The signature is checked over the raw token before anything in the token is parsed, so a
// forged token learns nothing about which of its fields would have been accepted. Only then is
// the token decoded and the amount compared.
func (v *Verifier) Verify(ctx context.Context, rawPayment, rawSignature string) (*assertion.PaymentAssertion, error) {
	ctx, span := trace.StartSpan(ctx, "internal.verifier.Verify")
	defer span.End()

	if len(rawPayment) == 0 || len(rawSignature) == 0 {
		return nil, v.reject(ctx, errors.Wrap(ErrMalformedPayment, "empty input"), "")
	}

	sig, err := signing.DecodeSignatureString(rawSignature)
	if err != nil {
		return nil, v.reject(ctx, errors.Wrap(ErrInvalidSignature, err.Error()), "")
	}

	key, err := v.keys.Verify(assertion.SigHash(rawPayment), sig)
	if err != nil {
		return nil, v.reject(ctx, errors.Wrap(ErrInvalidSignature, err.Error()), "")
	}

	a, err := assertion.Decode(rawPayment)
	if err != nil {
		return nil, v.reject(ctx, errors.Wrap(ErrMalformedPayment, err.Error()), key.ID())
	}
	a.Signature = rawSignature

	ctx = logger.ContextWithEscrowID(ctx, a.EscrowID)

	if !a.Sufficient() {
		err := errors.Wrapf(ErrInsufficientPayment, "paid %s, expected %s",
			a.Amount.String(), a.ExpectedAmount.String())
		return nil, v.reject(ctx, err, key.ID())
	}

	audit.Emit(ctx, v.audit, audit.Event{
		Type:         audit.EventVerificationPassed,
		SettlementID: a.SettlementID,
		KeyID:        key.ID(),
		Amount:       a.Amount.String(),
	})

	return a, nil
}

func (v *Verifier) reject(ctx context.Context, err error, keyID string) error {
	logger.NewLoggerFromContext(ctx).Warn("payment verification failed", zap.Error(err))

	audit.Emit(ctx, v.audit, audit.Event{
		Type:  audit.EventVerificationFailed,
		KeyID: keyID,
		Error: errors.Cause(err).Error(),
	})

	return err
}
