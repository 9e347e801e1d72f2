package handlers

import (
	"context"
	"net/http"

	"github.com/trustvault/settlement/internal/bridge"
	"github.com/trustvault/settlement/internal/ledger"
	"github.com/trustvault/settlement/internal/platform/logger"
	"github.com/trustvault/settlement/internal/platform/web"
	"github.com/trustvault/settlement/internal/settlement"
	"github.com/trustvault/settlement/internal/verifier"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
)

// x402 request headers.
const (
	HeaderPayment          = "X-PAYMENT"
	HeaderPaymentSignature = "X-PAYMENT-SIGNATURE"
)

const releasedMessage = "Payment verified. Escrow released."

// Settle handles x402 settlement requests.
type Settle struct {
	Settler bridge.Settler
}

// SettleRequest is the body form of a settlement request, used when the headers are absent.
type SettleRequest struct {
	Payment   string `json:"payment"`
	Signature string `json:"signature"`
}

// SettleResponse is returned for a released escrow.
type SettleResponse struct {
	Success      bool   `json:"success"`
	SettlementID string `json:"settlementId"`
	ReceiptID    string `json:"receiptId"`
	Message      string `json:"message"`
}

// Settle verifies the payment assertion and releases its escrow.
func (s *Settle) Settle(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ctx, span := trace.StartSpan(ctx, "handlers.Settle.Settle")
	defer span.End()

	payment := r.Header.Get(HeaderPayment)
	signature := r.Header.Get(HeaderPaymentSignature)

	// A body that is not a JSON settlement request leaves the missing fields empty, which settles as
	// payment required.
	if len(payment) == 0 || len(signature) == 0 {
		var req SettleRequest
		if _, err := web.DecodeOptional(r, &req); err != nil {
			logger.NewLoggerFromContext(ctx).Debug("settlement body ignored", zap.Error(err))
			req = SettleRequest{}
		}
		if len(payment) == 0 {
			payment = req.Payment
		}
		if len(signature) == 0 {
			signature = req.Signature
		}
	}

	o := s.Settler.Settle(ctx, payment, signature)
	if o.State != settlement.StateReleased {
		return outcomeError(o)
	}

	return web.Respond(ctx, w, SettleResponse{
		Success:      true,
		SettlementID: o.SettlementID(),
		ReceiptID:    o.Receipt.ReceiptID,
		Message:      releasedMessage,
	}, http.StatusOK)
}

// outcomeError maps a settlement that did not release to the caller facing error. Ledger detail
// never reaches the response.
func outcomeError(o *settlement.Outcome) error {
	err := o.Err
	if err == nil {
		err = errors.Errorf("settlement ended in state %s", o.State)
	}

	switch errors.Cause(err) {
	case settlement.ErrPaymentRequired:
		return web.NewRequestError(err, http.StatusPaymentRequired, "payment required")
	case verifier.ErrMalformedPayment, verifier.ErrInvalidSignature, verifier.ErrInsufficientPayment:
		return web.NewRequestError(err, http.StatusForbidden, "invalid payment")
	case ledger.ErrEscrowNotFound:
		return web.NewRequestError(err, http.StatusNotFound, "escrow not found")
	case ledger.ErrAlreadyReleased:
		return web.NewRequestError(err, http.StatusConflict, "escrow already released")
	case ledger.ErrAlreadyRefunded:
		return web.NewRequestError(err, http.StatusConflict, "escrow refunded")
	case ledger.ErrRecipientMismatch:
		return web.NewRequestError(err, http.StatusConflict, "recipient mismatch")
	}

	return errors.Wrap(err, "settle")
}
