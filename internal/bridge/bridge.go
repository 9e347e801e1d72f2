package bridge

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trustvault/settlement/internal/assertion"
	"github.com/trustvault/settlement/internal/audit"
	"github.com/trustvault/settlement/internal/cardrail"
	"github.com/trustvault/settlement/internal/platform/db"
	"github.com/trustvault/settlement/internal/platform/logger"
	"github.com/trustvault/settlement/internal/settlement"
	"github.com/trustvault/settlement/pkg/signing"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
)

const (
	storageKey = "settlements"
	idPrefix   = "tap_"
	mintPrefix = "mint_"
)

var (
	// ErrChargeNotCaptured is returned for a charge whose funds were not captured.
	ErrChargeNotCaptured = errors.New("Charge not captured")

	// ErrUnsupportedCurrency is returned for a currency missing from the rate table.
	ErrUnsupportedCurrency = errors.New("Unsupported currency")

	// ErrInvalidAmount is returned for non positive amounts or amounts finer than the currency's
	// minor unit.
	ErrInvalidAmount = errors.New("Invalid amount")

	// ErrSettlementIDCollision is returned when a generated settlement id is already recorded.
	// It is fatal for the conversion and never retried.
	ErrSettlementIDCollision = errors.New("Settlement id collision")

	// ErrSettlementNotFound is returned when looking up an unknown settlement.
	ErrSettlementNotFound = errors.New("Settlement not found")

	// ErrRelayDisabled is returned by Emit and Relay when no signing key or processor is set.
	ErrRelayDisabled = errors.New("Relay disabled")
)

// SettlementResult records the conversion of a captured card charge into the settlement asset.
// MintReference identifies the issuance of SettledAmount units of SettledAsset backing it.
type SettlementResult struct {
	SettlementID   string          `json:"settlement_id"`
	ChargeID       string          `json:"charge_id"`
	SourceAmount   decimal.Decimal `json:"source_amount"`
	SourceCurrency string          `json:"source_currency"`
	SettledAmount  decimal.Decimal `json:"settled_amount"`
	SettledAsset   string          `json:"settled_asset"`
	MintReference  string          `json:"mint_reference"`
	Rate           decimal.Decimal `json:"rate"`
	Reference      string          `json:"reference"`
	CustomerID     string          `json:"customer_id"`
	CreatedAt      time.Time       `json:"created_at"`
}

// EmitRequest names the escrow an emitted assertion pays.
type EmitRequest struct {
	EscrowID       string
	Recipient      string
	ExpectedAmount decimal.Decimal
}

// Settler processes payment assertions.
type Settler interface {
	Settle(ctx context.Context, rawPayment, rawSignature string) *settlement.Outcome
}

// Bridge converts captured card charges into settlement results and, when configured with a rail
// key, into signed payment assertions. It never releases escrow itself.
type Bridge struct {
	db      *db.DB
	rates   *RateTable
	key     *signing.Key
	settler Settler
	audit   audit.Sink

	mu    sync.Mutex
	newID func() (string, error)
	now   func() time.Time
}

// New returns a Bridge recording results in masterDB. key and settler may be nil, which disables
// Emit and Relay.
func New(masterDB *db.DB, rates *RateTable, key *signing.Key, settler Settler, sink audit.Sink) *Bridge {
	return &Bridge{
		db:      masterDB,
		rates:   rates,
		key:     key,
		settler: settler,
		audit:   sink,
		newID:   newSettlementID,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CanRelay reports whether Relay is configured.
func (b *Bridge) CanRelay() bool {
	return b.key != nil && b.settler != nil
}

// Convert records the settlement of a captured charge.
func (b *Bridge) Convert(ctx context.Context, charge cardrail.Charge) (*SettlementResult, error) {
	ctx, span := trace.StartSpan(ctx, "internal.bridge.Convert")
	defer span.End()

	if !charge.Captured() {
		return nil, errors.Wrapf(ErrChargeNotCaptured, "charge %s is %s", charge.ID, charge.Status)
	}

	cur, ok := b.rates.Lookup(charge.Currency)
	if !ok {
		return nil, errors.Wrap(ErrUnsupportedCurrency, charge.Currency)
	}

	if !charge.Amount.IsPositive() {
		return nil, errors.Wrap(ErrInvalidAmount, "amount must be positive")
	}
	if !charge.Amount.Equal(charge.Amount.Truncate(cur.MinorUnits)) {
		return nil, errors.Wrapf(ErrInvalidAmount, "%s has more than %d decimals",
			charge.Amount.String(), cur.MinorUnits)
	}

	id, err := b.newID()
	if err != nil {
		return nil, errors.Wrap(err, "settlement id")
	}

	result := &SettlementResult{
		SettlementID:   id,
		ChargeID:       charge.ID,
		SourceAmount:   charge.Amount,
		SourceCurrency: cur.Code,
		SettledAmount:  b.rates.Convert(charge.Amount, cur),
		SettledAsset:   b.rates.Asset,
		MintReference:  mintPrefix + strings.TrimPrefix(id, idPrefix),
		Rate:           cur.Rate,
		Reference:      charge.Reference,
		CustomerID:     charge.CustomerID,
		CreatedAt:      b.now(),
	}

	ctx = logger.ContextWithSettlementID(ctx, id)

	if err := b.record(ctx, result); err != nil {
		logger.NewLoggerFromContext(ctx).Error("settlement not recorded", zap.Error(err))
		return nil, err
	}

	audit.Emit(ctx, b.audit, audit.Event{
		Type:   audit.EventSettlementConverted,
		Amount: result.SettledAmount.String(),
	})

	logger.NewLoggerFromContext(ctx).Info("charge converted",
		zap.String("source", result.SourceAmount.String()+" "+result.SourceCurrency),
		zap.String("settled", result.SettledAmount.String()+" "+result.SettledAsset),
		zap.String("mint", result.MintReference))

	return result, nil
}

// Fetch returns a recorded settlement.
func (b *Bridge) Fetch(ctx context.Context, settlementID string) (*SettlementResult, error) {
	ctx, span := trace.StartSpan(ctx, "internal.bridge.Fetch")
	defer span.End()

	raw, err := b.db.Fetch(ctx, storageKey+"/"+settlementID)
	if err != nil {
		if errors.Cause(err) == db.ErrNotFound {
			return nil, errors.Wrap(ErrSettlementNotFound, settlementID)
		}
		return nil, err
	}

	var result SettlementResult
	if err := sonic.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "unmarshal settlement")
	}

	return &result, nil
}

// List returns the ids of the recorded settlements in ascending order, which for time ordered ids
// is the order they were converted in.
func (b *Bridge) List(ctx context.Context) ([]string, error) {
	ctx, span := trace.StartSpan(ctx, "internal.bridge.List")
	defer span.End()

	keys, err := b.db.List(ctx, storageKey)
	if err != nil {
		return nil, errors.Wrap(err, "list settlements")
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, storageKey+"/"))
	}
	sort.Strings(ids)

	return ids, nil
}

// Emit builds the payment assertion for a settlement and signs it with the rail key.
func (b *Bridge) Emit(ctx context.Context, result *SettlementResult, req EmitRequest) (token, signature string, err error) {
	_, span := trace.StartSpan(ctx, "internal.bridge.Emit")
	defer span.End()

	if b.key == nil {
		return "", "", errors.Wrap(ErrRelayDisabled, "no signing key")
	}

	return assertion.EncodeAndSign(b.key, assertion.PaymentAssertion{
		EscrowID:       req.EscrowID,
		Amount:         result.SettledAmount,
		ExpectedAmount: req.ExpectedAmount,
		Currency:       result.SettledAsset,
		Recipient:      req.Recipient,
		SettlementID:   result.SettlementID,
		Nonce:          uuid.NewString(),
		IssuedAt:       b.now().Unix(),
	})
}

// Relay emits the assertion for a settlement and delivers it synchronously to the settlement
// processor, returning its outcome.
func (b *Bridge) Relay(ctx context.Context, result *SettlementResult, req EmitRequest) (*settlement.Outcome, error) {
	ctx, span := trace.StartSpan(ctx, "internal.bridge.Relay")
	defer span.End()

	if b.settler == nil {
		return nil, errors.Wrap(ErrRelayDisabled, "no settlement processor")
	}

	token, signature, err := b.Emit(ctx, result, req)
	if err != nil {
		return nil, err
	}

	ctx = logger.ContextWithSettlementID(ctx, result.SettlementID)

	outcome := b.settler.Settle(ctx, token, signature)

	audit.Emit(ctx, b.audit, audit.Event{
		Type:     audit.EventSettlementRelayed,
		EscrowID: req.EscrowID,
		State:    string(outcome.State),
	})

	return outcome, nil
}

// record stores the result unless its id is already present.
func (b *Bridge) record(ctx context.Context, result *SettlementResult) error {
	key := storageKey + "/" + result.SettlementID

	raw, err := sonic.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "marshal settlement")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.db.Fetch(ctx, key); err == nil {
		return errors.Wrap(ErrSettlementIDCollision, result.SettlementID)
	} else if errors.Cause(err) != db.ErrNotFound {
		return errors.Wrap(err, "check settlement id")
	}

	return errors.Wrap(b.db.Put(ctx, key, raw), "put settlement")
}

// newSettlementID returns a time ordered, globally unique settlement id.
func newSettlementID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return idPrefix + id.String(), nil
}
