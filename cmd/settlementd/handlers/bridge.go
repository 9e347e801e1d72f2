package handlers

import (
	"context"
	"net/http"

	"github.com/trustvault/settlement/internal/bridge"
	"github.com/trustvault/settlement/internal/cardrail"
	"github.com/trustvault/settlement/internal/platform/web"
	"github.com/trustvault/settlement/internal/settlement"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opencensus.io/trace"
)

// Bridge handles card charges settled through the bridge.
type Bridge struct {
	Bridge *bridge.Bridge
	Rail   cardrail.Rail
}

// ChargeRequest asks for a card charge and, optionally, the release of an escrow it pays.
type ChargeRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Reference  string          `json:"reference"`
	CustomerID string          `json:"customerId"`

	EscrowID       string              `json:"escrowId"`
	Recipient      string              `json:"recipient"`
	ExpectedAmount decimal.NullDecimal `json:"expectedAmount"`
}

// ChargeResponse describes a settled charge.
type ChargeResponse struct {
	Success          bool            `json:"success"`
	SettlementID     string          `json:"settlementId"`
	StablecoinAmount decimal.Decimal `json:"stablecoinAmount"`
	Asset            string          `json:"asset"`

	Released  *bool  `json:"released,omitempty"`
	ReceiptID string `json:"receiptId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Charge captures a card charge, converts it and, when an escrow is named and relay is enabled,
// relays the resulting assertion for settlement.
func (b *Bridge) Charge(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ctx, span := trace.StartSpan(ctx, "handlers.Bridge.Charge")
	defer span.End()

	var req ChargeRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	charge, err := b.Rail.Capture(ctx, cardrail.ChargeRequest{
		Amount:     req.Amount,
		Currency:   req.Currency,
		Reference:  req.Reference,
		CustomerID: req.CustomerID,
	})
	if err != nil {
		return chargeError(err)
	}

	result, err := b.Bridge.Convert(ctx, *charge)
	if err != nil {
		return chargeError(err)
	}

	resp := ChargeResponse{
		Success:          true,
		SettlementID:     result.SettlementID,
		StablecoinAmount: result.SettledAmount,
		Asset:            result.SettledAsset,
	}

	if len(req.EscrowID) == 0 || !b.Bridge.CanRelay() {
		return web.Respond(ctx, w, resp, http.StatusOK)
	}

	expected := result.SettledAmount
	if req.ExpectedAmount.Valid {
		expected = req.ExpectedAmount.Decimal
	}

	o, err := b.Bridge.Relay(ctx, result, bridge.EmitRequest{
		EscrowID:       req.EscrowID,
		Recipient:      req.Recipient,
		ExpectedAmount: expected,
	})
	if err != nil {
		return err
	}

	released := o.State == settlement.StateReleased
	resp.Released = &released
	if released {
		resp.ReceiptID = o.Receipt.ReceiptID
	} else {
		resp.Error = "escrow not released"
		if webErr, ok := errors.Cause(outcomeError(o)).(*web.Error); ok {
			resp.Error = webErr.Message
		}
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SettlementList names the recorded settlements.
type SettlementList struct {
	Settlements []string `json:"settlements"`
}

// List returns the ids of the recorded settlements.
func (b *Bridge) List(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ctx, span := trace.StartSpan(ctx, "handlers.Bridge.List")
	defer span.End()

	ids, err := b.Bridge.List(ctx)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, SettlementList{Settlements: ids}, http.StatusOK)
}

// Retrieve returns a recorded settlement.
func (b *Bridge) Retrieve(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ctx, span := trace.StartSpan(ctx, "handlers.Bridge.Retrieve")
	defer span.End()

	result, err := b.Bridge.Fetch(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Cause(err) == bridge.ErrSettlementNotFound {
			return web.NewRequestError(err, http.StatusNotFound, "settlement not found")
		}
		return err
	}

	return web.Respond(ctx, w, result, http.StatusOK)
}

func chargeError(err error) error {
	switch errors.Cause(err) {
	case cardrail.ErrInvalidCharge, bridge.ErrInvalidAmount, bridge.ErrUnsupportedCurrency:
		return web.NewRequestError(err, http.StatusBadRequest, errors.Cause(err).Error())
	case cardrail.ErrDeclined:
		return web.NewRequestError(err, http.StatusPaymentRequired, "charge declined")
	case cardrail.ErrRailUnavailable:
		return web.NewRequestError(err, http.StatusServiceUnavailable, "card rail unavailable")
	}

	return errors.Wrap(err, "charge")
}
