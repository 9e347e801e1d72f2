package audit

import (
	"context"
	"sync"
	"time"

	"github.com/trustvault/settlement/internal/platform/logger"

	"go.uber.org/zap"
)

// EventType names an audit event.
type EventType string

const (
	EventVerificationPassed EventType = "verification_passed"
	EventVerificationFailed EventType = "verification_failed"

	EventReleaseRetry     EventType = "release_retry"
	EventReleaseSucceeded EventType = "release_succeeded"
	EventReleaseFailed    EventType = "release_failed"

	EventSettlementConverted EventType = "settlement_converted"
	EventSettlementRelayed   EventType = "settlement_relayed"

	EventStateChanged EventType = "state_changed"
	EventEscrowRefund EventType = "escrow_refunded"
)

// Event is one audit record. Unused fields are left empty.
type Event struct {
	Type         EventType
	Time         time.Time
	RequestID    string
	EscrowID     string
	SettlementID string
	KeyID        string
	ReceiptID    string
	Amount       string
	State        string
	Attempt      int
	Error        string
}

// Sink records audit events. Implementations must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// Emit fills the time and request id of e from the context and records it. Sink failures are
// logged and never returned, an audit outage must not change a settlement outcome.
func Emit(ctx context.Context, sink Sink, e Event) {
	if sink == nil {
		return
	}

	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	if len(e.RequestID) == 0 {
		if v, ok := ctx.Value(logger.KeyRequestID).(string); ok {
			e.RequestID = v
		}
	}
	if len(e.EscrowID) == 0 {
		e.EscrowID = logger.EscrowIDFromContext(ctx)
	}
	if len(e.SettlementID) == 0 {
		e.SettlementID = logger.SettlementIDFromContext(ctx)
	}

	if err := sink.Record(ctx, e); err != nil {
		logger.NewLoggerFromContext(ctx).Warn("audit record failed",
			zap.String("event", string(e.Type)), zap.Error(err))
	}
}

// LogSink writes events to the context logger.
type LogSink struct{}

// Record implements Sink.
func (LogSink) Record(ctx context.Context, e Event) error {
	fields := []zap.Field{
		zap.String("event", string(e.Type)),
		zap.Time("at", e.Time),
	}

	if len(e.KeyID) > 0 {
		fields = append(fields, zap.String("key_id", e.KeyID))
	}
	if len(e.ReceiptID) > 0 {
		fields = append(fields, zap.String("receipt_id", e.ReceiptID))
	}
	if len(e.Amount) > 0 {
		fields = append(fields, zap.String("amount", e.Amount))
	}
	if len(e.State) > 0 {
		fields = append(fields, zap.String("state", e.State))
	}
	if e.Attempt > 0 {
		fields = append(fields, zap.Int("attempt", e.Attempt))
	}
	if len(e.Error) > 0 {
		fields = append(fields, zap.String("error", e.Error))
	}

	logger.NewLoggerFromContext(ctx).Info("audit", fields...)
	return nil
}

// Multi records to every sink and returns the first error.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(ctx context.Context, e Event) error {
	var first error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Record implements Sink.
func (r *Recorder) Record(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := make([]EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}
