package logger

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	fieldRequestID    = "request_id"
	fieldEscrowID     = "escrow_id"
	fieldSettlementID = "settlement_id"
)

// Config selects the encoding and level of the process logger.
type Config struct {
	Format string // "json" or "text"
	Level  string // zap level name
}

// New builds the process logger. Text format uses the zap development encoder.
func New(cfg Config) (*zap.Logger, error) {
	var zc zap.Config
	if strings.ToUpper(cfg.Format) == "TEXT" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "ts"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if len(cfg.Level) > 0 {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, errors.Wrapf(err, "log level %q", cfg.Level)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}

	return zc.Build()
}

// NewLoggerFromContext returns the Logger from the Context. If a Logger doesn't
// exist one is created.
func NewLoggerFromContext(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(KeyLogger).(*zap.Logger); ok && log != nil {
		return log
	}

	return newLogger(ctx)
}

// newLogger returns a production Logger with the ids from the Context as fields.
func newLogger(ctx context.Context) *zap.Logger {
	log, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}

	if v, ok := ctx.Value(KeyRequestID).(string); ok {
		log = log.With(zap.String(fieldRequestID, v))
	}

	if v := EscrowIDFromContext(ctx); len(v) > 0 {
		log = log.With(zap.String(fieldEscrowID, v))
	}

	if v := SettlementIDFromContext(ctx); len(v) > 0 {
		log = log.With(zap.String(fieldSettlementID, v))
	}

	return log
}
