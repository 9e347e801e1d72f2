package cardrail

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Status is the state of a card charge.
type Status string

const (
	StatusCaptured Status = "captured"
	StatusPending  Status = "pending"
	StatusDeclined Status = "declined"
)

var (
	// ErrInvalidCharge is returned for a charge request the rail will not attempt.
	ErrInvalidCharge = errors.New("Invalid charge request")

	// ErrDeclined is returned when the card network declines a charge.
	ErrDeclined = errors.New("Charge declined")

	// ErrRailUnavailable is returned when the card network cannot be reached.
	ErrRailUnavailable = errors.New("Card rail unavailable")
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ChargeRequest asks the rail to charge a customer's card.
type ChargeRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Reference  string          `json:"reference"`
	CustomerID string          `json:"customer_id"`
}

// Validate checks the request before it is sent to a rail.
func (r ChargeRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return errors.Wrap(ErrInvalidCharge, "amount must be positive")
	}
	if !currencyPattern.MatchString(r.Currency) {
		return errors.Wrapf(ErrInvalidCharge, "currency %q", r.Currency)
	}
	if len(r.Reference) == 0 {
		return errors.Wrap(ErrInvalidCharge, "reference required")
	}
	if len(r.CustomerID) == 0 {
		return errors.Wrap(ErrInvalidCharge, "customer required")
	}
	return nil
}

// Charge is the rail's record of a charge.
type Charge struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Reference  string          `json:"reference"`
	CustomerID string          `json:"customer_id"`
	Status     Status          `json:"status"`
	CapturedAt time.Time       `json:"captured_at"`
}

// Captured reports whether the funds have been captured.
func (c Charge) Captured() bool {
	return c.Status == StatusCaptured
}

// Rail captures card charges.
type Rail interface {
	Capture(ctx context.Context, req ChargeRequest) (*Charge, error)
}
