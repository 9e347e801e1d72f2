package assertion

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/trustvault/settlement/pkg/signing"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	// Version is the only token version accepted.
	Version = 1

	// domainTag prefixes every signed token so a rail signature cannot be replayed as a signature
	// over some other message type.
	domainTag = "trustvault/x402/v1"
)

var (
	// ErrMalformed is returned when a token cannot be decoded into a usable assertion.
	ErrMalformed = errors.New("Malformed payment assertion")
)

// PaymentAssertion is a rail's claim that a payment toward an escrow has been made.
type PaymentAssertion struct {
	Version        int             `json:"version"`
	EscrowID       string          `json:"escrow_id"`
	Amount         decimal.Decimal `json:"amount"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	Currency       string          `json:"currency,omitempty"`
	Recipient      string          `json:"recipient"`
	SettlementID   string          `json:"settlement_id,omitempty"`
	Nonce          string          `json:"nonce,omitempty"`
	IssuedAt       int64           `json:"issued_at,omitempty"`

	// Signature and RawPayment are the values exactly as received.
	Signature  string `json:"-"`
	RawPayment string `json:"-"`
}

// Sufficient reports whether the paid amount covers the expected amount.
func (a PaymentAssertion) Sufficient() bool {
	return a.Amount.GreaterThanOrEqual(a.ExpectedAmount)
}

// Issued returns IssuedAt as a time, or the zero time when unset.
func (a PaymentAssertion) Issued() time.Time {
	if a.IssuedAt == 0 {
		return time.Time{}
	}
	return time.Unix(a.IssuedAt, 0).UTC()
}

// Encode serializes the assertion into the token carried by the X-PAYMENT header.
func Encode(a PaymentAssertion) (string, error) {
	if a.Version == 0 {
		a.Version = Version
	}

	b, err := sonic.Marshal(a)
	if err != nil {
		return "", errors.Wrap(err, "marshal assertion")
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Decode parses a token. Both URL safe and standard base64 are accepted, with or without padding.
// Every failure is wrapped around ErrMalformed.
func Decode(raw string) (*PaymentAssertion, error) {
	b, err := decodeBase64(strings.TrimSpace(raw))
	if err != nil {
		return nil, errors.Wrap(ErrMalformed, "base64")
	}

	var a PaymentAssertion
	if err := sonic.Unmarshal(b, &a); err != nil {
		return nil, errors.Wrap(ErrMalformed, "json")
	}

	if a.Version != Version {
		return nil, errors.Wrapf(ErrMalformed, "unsupported version %d", a.Version)
	}
	if len(a.EscrowID) == 0 {
		return nil, errors.Wrap(ErrMalformed, "missing escrow id")
	}
	if len(a.Recipient) == 0 {
		return nil, errors.Wrap(ErrMalformed, "missing recipient")
	}
	if a.Amount.IsNegative() || a.ExpectedAmount.IsNegative() {
		return nil, errors.Wrap(ErrMalformed, "negative amount")
	}

	a.RawPayment = raw
	return &a, nil
}

// SigHash is the hash a rail signs for a token. The token text is signed as received so that
// authenticity is established before any of its content is parsed.
func SigHash(raw string) []byte {
	msg := make([]byte, 0, len(domainTag)+len(raw))
	msg = append(msg, domainTag...)
	msg = append(msg, raw...)

	return signing.DoubleSha256(msg)
}

// Sign returns the X-PAYMENT-SIGNATURE value for a token.
func Sign(key *signing.Key, raw string) (string, error) {
	sig, err := key.Sign(SigHash(raw))
	if err != nil {
		return "", err
	}

	return sig.String(), nil
}

// EncodeAndSign encodes the assertion and signs the resulting token.
func EncodeAndSign(key *signing.Key, a PaymentAssertion) (token, signature string, err error) {
	token, err = Encode(a)
	if err != nil {
		return "", "", err
	}

	signature, err = Sign(key, token)
	if err != nil {
		return "", "", err
	}

	return token, signature, nil
}

func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.StdEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}

	return nil, errors.New("invalid base64")
}
