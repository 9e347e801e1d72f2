package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/trustvault/settlement/internal/platform/tests"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func newEscrow(id string, expiry time.Time) *Escrow {
	return &Escrow{
		ID:       id,
		Payer:    "payer-1",
		Payee:    "payee-1",
		Amount:   decimal.RequireFromString("250.00"),
		Currency: "USD",
		Expiry:   expiry,
	}
}

func TestStorageLedgerRelease(t *testing.T) {
	test := tests.New(t)
	ctx := test.Context("ledger")
	l := NewStorageLedger(test.DB)

	if err := l.Create(ctx, newEscrow("esc-1", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("\t%s\tCreate : %s", tests.Failed, err)
	}

	if err := l.Create(ctx, newEscrow("esc-1", time.Now().Add(time.Hour))); errors.Cause(err) != ErrEscrowExists {
		t.Fatalf("\t%s\tDuplicate create : got %v, want %v", tests.Failed, err, ErrEscrowExists)
	}
	t.Logf("\t%s\tEscrow created once", tests.Success)

	if _, err := l.Release(ctx, "esc-1", "someone-else"); errors.Cause(err) != ErrRecipientMismatch {
		t.Fatalf("\t%s\tWrong recipient : got %v, want %v", tests.Failed, err, ErrRecipientMismatch)
	}

	receipt, err := l.Release(ctx, "esc-1", "payee-1")
	if err != nil {
		t.Fatalf("\t%s\tRelease : %s", tests.Failed, err)
	}
	if receipt.EscrowID != "esc-1" || receipt.Recipient != "payee-1" || len(receipt.ReceiptID) == 0 {
		t.Fatalf("\t%s\tReceipt : %+v", tests.Failed, receipt)
	}
	if !receipt.Amount.Equal(decimal.RequireFromString("250")) {
		t.Fatalf("\t%s\tReceipt amount : got %s", tests.Failed, receipt.Amount)
	}
	t.Logf("\t%s\tEscrow released", tests.Success)

	if _, err := l.Release(ctx, "esc-1", "payee-1"); errors.Cause(err) != ErrAlreadyReleased {
		t.Fatalf("\t%s\tSecond release : got %v, want %v", tests.Failed, err, ErrAlreadyReleased)
	}
	t.Logf("\t%s\tSecond release rejected", tests.Success)

	e, err := l.Fetch(ctx, "esc-1")
	if err != nil {
		t.Fatalf("\t%s\tFetch : %s", tests.Failed, err)
	}
	if !e.Released || e.ReleasedTo != "payee-1" || e.ReceiptID != receipt.ReceiptID {
		t.Fatalf("\t%s\tStored escrow : %+v", tests.Failed, e)
	}

	if _, err := l.Refund(ctx, "esc-1"); errors.Cause(err) != ErrAlreadyReleased {
		t.Fatalf("\t%s\tRefund after release : got %v, want %v", tests.Failed, err, ErrAlreadyReleased)
	}
}

func TestStorageLedgerNotFound(t *testing.T) {
	test := tests.New(t)
	ctx := test.Context("ledger")
	l := NewStorageLedger(test.DB)

	for _, id := range []string{"missing", "../escape", ""} {
		if _, err := l.Release(ctx, id, "payee-1"); errors.Cause(err) != ErrEscrowNotFound {
			t.Fatalf("\t%s\tRelease %q : got %v, want %v", tests.Failed, id, err, ErrEscrowNotFound)
		}
	}
	t.Logf("\t%s\tUnknown escrows not found", tests.Success)
}

func TestStorageLedgerConcurrentRelease(t *testing.T) {
	test := tests.New(t)
	ctx := test.Context("ledger")
	l := NewStorageLedger(test.DB)

	if err := l.Create(ctx, newEscrow("esc-race", time.Now().Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	const callers = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		released  int
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := l.Release(ctx, "esc-race", "payee-1")

			mu.Lock()
			defer mu.Unlock()
			switch errors.Cause(err) {
			case nil:
				succeeded++
			case ErrAlreadyReleased:
				released++
			default:
				t.Errorf("\t%s\tUnexpected error : %s", tests.Failed, err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || released != callers-1 {
		t.Fatalf("\t%s\tgot %d successes and %d already released", tests.Failed, succeeded, released)
	}
	if l.locks.size() != 0 {
		t.Fatalf("\t%s\tLocks not cleaned up : %d", tests.Failed, l.locks.size())
	}
	t.Logf("\t%s\tExactly one of %d concurrent releases succeeded", tests.Success, callers)
}

func TestStorageLedgerRefund(t *testing.T) {
	test := tests.New(t)
	ctx := test.Context("ledger")
	l := NewStorageLedger(test.DB)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if err := l.Create(ctx, newEscrow("esc-refund", now.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	if _, err := l.Refund(ctx, "esc-refund"); errors.Cause(err) != ErrNotExpired {
		t.Fatalf("\t%s\tEarly refund : got %v, want %v", tests.Failed, err, ErrNotExpired)
	}

	now = now.Add(time.Hour)
	if _, err := l.Refund(ctx, "esc-refund"); errors.Cause(err) != ErrNotExpired {
		t.Fatalf("\t%s\tRefund at expiry : got %v, want %v", tests.Failed, err, ErrNotExpired)
	}
	t.Logf("\t%s\tEscrow is not refundable at its expiry instant", tests.Success)

	now = now.Add(time.Hour)

	e, err := l.Refund(ctx, "esc-refund")
	if err != nil {
		t.Fatalf("\t%s\tRefund : %s", tests.Failed, err)
	}
	if !e.Refunded || !e.RefundedAt.Equal(now) {
		t.Fatalf("\t%s\tRefund state : %+v", tests.Failed, e)
	}

	if _, err := l.Release(ctx, "esc-refund", "payee-1"); errors.Cause(err) != ErrAlreadyRefunded {
		t.Fatalf("\t%s\tRelease after refund : got %v, want %v", tests.Failed, err, ErrAlreadyRefunded)
	}

	list, err := l.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("\t%s\tList : got %d %v", tests.Failed, len(list), err)
	}
	t.Logf("\t%s\tRefund after expiry only", tests.Success)
}

func TestEscrowValidate(t *testing.T) {
	valid := newEscrow("esc-v", time.Now())

	cases := []struct {
		name   string
		modify func(e *Escrow)
	}{
		{"bad id", func(e *Escrow) { e.ID = "a/b" }},
		{"no payer", func(e *Escrow) { e.Payer = "" }},
		{"zero amount", func(e *Escrow) { e.Amount = decimal.Zero }},
		{"no expiry", func(e *Escrow) { e.Expiry = time.Time{} }},
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid escrow : %s", err)
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			e := *valid
			tt.modify(&e)
			if err := e.Validate(); errors.Cause(err) != ErrInvalidEscrow {
				t.Fatalf("got %v, want %v", err, ErrInvalidEscrow)
			}
		})
	}
}
