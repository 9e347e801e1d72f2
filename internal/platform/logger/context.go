package logger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type key int

const (
	// KeyRequestID is the Request ID in the Context.
	KeyRequestID key = 0

	// KeyLogger is the Logger in the Context.
	KeyLogger key = 1

	// KeyEscrowID is the escrow being settled in the Context.
	KeyEscrowID key = 2

	// KeySettlementID is the settlement being processed in the Context.
	KeySettlementID key = 3
)

// NewContext returns a fully configured Context with from a background
// Context, with a new RequestID set, and a Logger.
//
// The Logger will include the RequestID field.
func NewContext() context.Context {
	return ContextWithRequestID(context.Background(), "")
}

// NewContextWithRequestID returns a fully configured Context, the same
// as from NewContext, but with the given RequestID.
func NewContextWithRequestID(id string) context.Context {
	return ContextWithRequestID(context.Background(), id)
}

// ContextWithRequestID returns a Context carrying the RequestID and a Logger with the request_id
// field set. The Logger is derived from the one already in the Context, if any.
//
// If the RequestID is an empty string, a RequestID will be generated.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if len(id) == 0 {
		id = uuid.NewString()
	}

	log := NewLoggerFromContext(ctx)

	ctx = context.WithValue(ctx, KeyRequestID, id)

	return ContextWithLogger(ctx, log.With(zap.String(fieldRequestID, id)))
}

// ContextWithEscrowID returns a Context with the escrow id set and added to the Logger fields.
func ContextWithEscrowID(ctx context.Context, escrowID string) context.Context {
	ctx = context.WithValue(ctx, KeyEscrowID, escrowID)

	log := NewLoggerFromContext(ctx).With(zap.String(fieldEscrowID, escrowID))

	return ContextWithLogger(ctx, log)
}

// ContextWithSettlementID returns a Context with the settlement id set and added to the Logger
// fields.
func ContextWithSettlementID(ctx context.Context, settlementID string) context.Context {
	ctx = context.WithValue(ctx, KeySettlementID, settlementID)

	log := NewLoggerFromContext(ctx).With(zap.String(fieldSettlementID, settlementID))

	return ContextWithLogger(ctx, log)
}

// ContextWithLogger adds the Logger to the Context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, KeyLogger, logger)
}

// ContextWithNamedLogger returns a Context with a new named Logger.
func ContextWithNamedLogger(ctx context.Context, name string) context.Context {
	return ContextWithLogger(ctx, NewLoggerFromContext(ctx).Named(name))
}

// RequestIDFromContext returns the request ID from the Context.
//
// If the value was not set in the Context, "unknown" is returned. This can
// help find services that are not adding the RequestID.
func RequestIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(KeyRequestID).(string)
	if !ok {
		// find these in the logs as it "breaks" the request id chain
		// we use for tracing actions.
		return fmt.Sprintf("unknown/%s", uuid.NewString())
	}

	return v
}

// EscrowIDFromContext returns the escrow id if set, otherwise an empty string.
func EscrowIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(KeyEscrowID).(string)
	return v
}

// SettlementIDFromContext returns the settlement id if set, otherwise an empty string.
func SettlementIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(KeySettlementID).(string)
	return v
}
