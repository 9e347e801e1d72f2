package cardrail

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opencensus.io/trace"
)

// SandboxRail captures every valid charge immediately. It stands in for the card network in
// development and tests.
type SandboxRail struct {
	now func() time.Time
}

// NewSandboxRail returns a SandboxRail.
func NewSandboxRail() *SandboxRail {
	return &SandboxRail{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Capture implements Rail.
func (s *SandboxRail) Capture(ctx context.Context, req ChargeRequest) (*Charge, error) {
	_, span := trace.StartSpan(ctx, "internal.cardrail.SandboxRail.Capture")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	return &Charge{
		ID:         "ch_" + uuid.NewString(),
		Amount:     req.Amount,
		Currency:   req.Currency,
		Reference:  req.Reference,
		CustomerID: req.CustomerID,
		Status:     StatusCaptured,
		CapturedAt: s.now(),
	}, nil
}
