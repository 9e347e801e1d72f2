package assertion

import (
	"encoding/base64"
	"testing"

	"github.com/trustvault/settlement/pkg/signing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var equateDecimal = cmp.Comparer(func(x, y decimal.Decimal) bool {
	return x.Equal(y)
})

func TestEncodeDecode(t *testing.T) {
	a := PaymentAssertion{
		EscrowID:       "esc-1",
		Amount:         decimal.RequireFromString("100.50"),
		ExpectedAmount: decimal.RequireFromString("100"),
		Currency:       "USD",
		Recipient:      "payee-1",
		SettlementID:   "tap_1",
		Nonce:          "n-1",
		IssuedAt:       1700000000,
	}

	token, err := Encode(a)
	if err != nil {
		t.Fatalf("\t%s\tEncode : %s", "✗", err)
	}

	got, err := Decode(token)
	if err != nil {
		t.Fatalf("\t%s\tDecode : %s", "✗", err)
	}

	a.Version = Version
	a.RawPayment = token
	if diff := cmp.Diff(&a, got, equateDecimal); diff != "" {
		t.Fatalf("\t%s\tAssertion mismatch (-want +got):\n%s", "✗", diff)
	}

	if !got.Sufficient() {
		t.Errorf("\t%s\tShould be sufficient", "✗")
	}
	t.Logf("\t%s\tToken decodes to the encoded assertion", "✓")
}

func TestDecodeNumericAmounts(t *testing.T) {
	body := `{"version":1,"escrow_id":"e","amount":99.99,"expected_amount":100,"recipient":"r"}`
	token := base64.StdEncoding.EncodeToString([]byte(body))

	a, err := Decode(token)
	if err != nil {
		t.Fatalf("\t%s\tDecode : %s", "✗", err)
	}

	if a.Sufficient() {
		t.Fatalf("\t%s\t99.99 should not cover 100", "✗")
	}
}

func TestDecodeMalformed(t *testing.T) {
	enc := func(s string) string {
		return base64.RawURLEncoding.EncodeToString([]byte(s))
	}

	tests := []struct {
		name  string
		token string
	}{
		{"not base64", "%%%"},
		{"not json", enc("escrow")},
		{"wrong version", enc(`{"version":2,"escrow_id":"e","amount":"1","expected_amount":"1","recipient":"r"}`)},
		{"missing escrow", enc(`{"version":1,"amount":"1","expected_amount":"1","recipient":"r"}`)},
		{"missing recipient", enc(`{"version":1,"escrow_id":"e","amount":"1","expected_amount":"1"}`)},
		{"negative", enc(`{"version":1,"escrow_id":"e","amount":"-1","expected_amount":"1","recipient":"r"}`)},
		{"bad amount", enc(`{"version":1,"escrow_id":"e","amount":"ten","expected_amount":"1","recipient":"r"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.token); errors.Cause(err) != ErrMalformed {
				t.Fatalf("\t%s\tgot %v, want %v", "✗", err, ErrMalformed)
			}
		})
	}
}

func TestSign(t *testing.T) {
	key, err := signing.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	token, sig, err := EncodeAndSign(key, PaymentAssertion{
		EscrowID:       "e",
		Amount:         decimal.NewFromInt(5),
		ExpectedAmount: decimal.NewFromInt(5),
		Recipient:      "r",
	})
	if err != nil {
		t.Fatal(err)
	}

	s, err := signing.DecodeSignatureString(sig)
	if err != nil {
		t.Fatal(err)
	}

	if !s.Verify(SigHash(token), key.PublicKey()) {
		t.Fatalf("\t%s\tSignature should verify over the token", "✗")
	}

	if s.Verify(SigHash(token+"x"), key.PublicKey()) {
		t.Fatalf("\t%s\tSignature should not verify over a different token", "✗")
	}
	t.Logf("\t%s\tToken signature", "✓")
}
