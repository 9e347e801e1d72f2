package logger

import (
	"context"
	"regexp"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewContext(t *testing.T) {
	ctx := NewContext()

	if ctx.Value(KeyLogger) == nil {
		t.Errorf("Want not nil, got nil")
	}

	requestID, _ := ctx.Value(KeyRequestID).(string)

	if len(requestID) != 36 {
		t.Errorf("Got %v, want %v", len(requestID), 36)
	}
}

func TestContextWithRequestID(t *testing.T) {
	ctx := context.Background()

	gotNotSet := RequestIDFromContext(ctx)

	pattern := "unknown/[[:ascii:]]{36}"
	match, _ := regexp.MatchString(pattern, gotNotSet)

	if !match {
		t.Errorf("%v did not match %v", gotNotSet, pattern)
	}

	want := "foo"
	ctx = ContextWithRequestID(ctx, want)

	if ctx.Value(KeyLogger) == nil {
		t.Errorf("Want not nil, got nil")
	}

	if got := RequestIDFromContext(ctx); got != want {
		t.Errorf("Got %v, want %v", got, want)
	}
}

func TestContextWithLogger(t *testing.T) {
	ctx := context.Background()

	logger := zap.NewNop()
	ctx = ContextWithLogger(ctx, logger)

	if NewLoggerFromContext(ctx) != logger {
		t.Errorf("Want %v, got %v", logger, ctx.Value(KeyLogger))
	}
}

func TestNewLoggerFromContext_nilLogger(t *testing.T) {
	if NewLoggerFromContext(context.Background()) == nil {
		t.Errorf("Want non-nil Logger")
	}
}

func TestFieldsCarried(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	ctx := ContextWithLogger(context.Background(), zap.New(core))
	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithEscrowID(ctx, "esc-1")
	ctx = ContextWithSettlementID(ctx, "tap_1")

	NewLoggerFromContext(ctx).Info("released")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Got %d entries, want 1", len(entries))
	}

	fields := entries[0].ContextMap()
	want := map[string]string{
		fieldRequestID:    "req-1",
		fieldEscrowID:     "esc-1",
		fieldSettlementID: "tap_1",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("Field %s : got %v, want %v", k, fields[k], v)
		}
	}

	if EscrowIDFromContext(ctx) != "esc-1" || SettlementIDFromContext(ctx) != "tap_1" {
		t.Errorf("Context ids not set")
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Config{Format: "text", Level: "debug"}); err != nil {
		t.Fatalf("text logger : %s", err)
	}

	if _, err := New(Config{Format: "json", Level: "loud"}); err == nil {
		t.Fatalf("invalid level should fail")
	}
}
