package ledger

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrEscrowNotFound is returned when no escrow exists for an id.
	ErrEscrowNotFound = errors.New("Escrow not found")

	// ErrAlreadyReleased is returned when an escrow's funds have already been released.
	ErrAlreadyReleased = errors.New("Escrow already released")

	// ErrAlreadyRefunded is returned when an escrow's funds have been returned to the payer.
	ErrAlreadyRefunded = errors.New("Escrow already refunded")

	// ErrRecipientMismatch is returned when a release names someone other than the payee.
	ErrRecipientMismatch = errors.New("Recipient does not match escrow payee")

	// ErrNotExpired is returned when a refund is requested before the escrow expires.
	ErrNotExpired = errors.New("Escrow has not expired")

	// ErrEscrowExists is returned when creating an escrow with an id already in use.
	ErrEscrowExists = errors.New("Escrow already exists")

	// ErrInvalidEscrow is returned when an escrow is missing required fields.
	ErrInvalidEscrow = errors.New("Invalid escrow")

	// ErrLedgerUnavailable is returned when the ledger could not be reached or did not answer in
	// time. It is the only retryable ledger error.
	ErrLedgerUnavailable = errors.New("Ledger unavailable")
)

var escrowIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,127}$`)

// Escrow is a custodial hold of funds from a payer for a payee.
type Escrow struct {
	ID         string          `json:"id"`
	Payer      string          `json:"payer"`
	Payee      string          `json:"payee"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency,omitempty"`
	Expiry     time.Time       `json:"expiry"`
	Released   bool            `json:"released"`
	ReleasedTo string          `json:"released_to,omitempty"`
	ReleasedAt time.Time       `json:"released_at,omitempty"`
	ReceiptID  string          `json:"receipt_id,omitempty"`
	Refunded   bool            `json:"refunded"`
	RefundedAt time.Time       `json:"refunded_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Validate checks the fields required to create an escrow.
func (e *Escrow) Validate() error {
	if !ValidID(e.ID) {
		return errors.Wrapf(ErrInvalidEscrow, "id %q", e.ID)
	}
	if len(e.Payer) == 0 || len(e.Payee) == 0 {
		return errors.Wrap(ErrInvalidEscrow, "payer and payee required")
	}
	if !e.Amount.IsPositive() {
		return errors.Wrap(ErrInvalidEscrow, "amount must be positive")
	}
	if e.Expiry.IsZero() {
		return errors.Wrap(ErrInvalidEscrow, "expiry required")
	}
	return nil
}

// release applies a release to the escrow, enforcing the release rules.
func (e *Escrow) release(recipient string, now time.Time) (*Receipt, error) {
	if e.Released {
		return nil, ErrAlreadyReleased
	}
	if e.Refunded {
		return nil, ErrAlreadyRefunded
	}
	if recipient != e.Payee {
		return nil, ErrRecipientMismatch
	}

	e.Released = true
	e.ReleasedTo = recipient
	e.ReleasedAt = now
	e.ReceiptID = newReceiptID()

	return &Receipt{
		ReceiptID:  e.ReceiptID,
		EscrowID:   e.ID,
		Recipient:  recipient,
		Amount:     e.Amount,
		ReleasedAt: now,
	}, nil
}

// refund returns the funds to the payer once the escrow has expired.
func (e *Escrow) refund(now time.Time) error {
	if e.Released {
		return ErrAlreadyReleased
	}
	if e.Refunded {
		return ErrAlreadyRefunded
	}
	if !now.After(e.Expiry) {
		return ErrNotExpired
	}

	e.Refunded = true
	e.RefundedAt = now
	return nil
}

// Receipt confirms a release.
type Receipt struct {
	ReceiptID  string          `json:"receipt_id"`
	EscrowID   string          `json:"escrow_id"`
	Recipient  string          `json:"recipient"`
	Amount     decimal.Decimal `json:"amount"`
	ReleasedAt time.Time       `json:"released_at"`
}

// Ledger releases escrowed funds. Release must be atomic per escrow id: of any number of
// concurrent releases of one escrow, at most one succeeds.
type Ledger interface {
	Release(ctx context.Context, escrowID, recipient string) (*Receipt, error)
}

// Escrows is a ledger that also manages the escrow records themselves.
type Escrows interface {
	Ledger
	Create(ctx context.Context, e *Escrow) error
	Fetch(ctx context.Context, escrowID string) (*Escrow, error)
	Refund(ctx context.Context, escrowID string) (*Escrow, error)
}

// ValidID reports whether id can name an escrow.
func ValidID(id string) bool {
	return escrowIDPattern.MatchString(id)
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	return errors.Cause(err) == ErrLedgerUnavailable
}

func newReceiptID() string {
	return "rcpt_" + uuid.NewString()
}

// unavailable wraps a backend failure as ErrLedgerUnavailable, keeping the backend message.
func unavailable(err error, op string) error {
	return errors.Wrapf(ErrLedgerUnavailable, "%s: %s", op, err)
}
