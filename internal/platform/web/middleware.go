package web

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/trustvault/settlement/internal/platform/logger"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Middleware is a function designed to run some code before and/or after
// another Handler.
type Middleware func(Handler) Handler

// wrapMiddleware wraps a handler with some middleware.
func wrapMiddleware(handler Handler, mw []Middleware) Handler {

	// Wrap with our middleware in reverse so the first one listed is the
	// outermost.
	for i := len(mw) - 1; i >= 0; i-- {
		if mw[i] != nil {
			handler = mw[i](handler)
		}
	}

	return handler
}

// RequestLogger writes one entry per request once the handler chain returns.
func RequestLogger(next Handler) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		err := next(ctx, w, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
		}
		if v := ValuesFromContext(ctx); v != nil {
			fields = append(fields,
				zap.Int("status", v.StatusCode),
				zap.Float64("elapsed", float64(time.Since(v.Now).Nanoseconds())/float64(time.Millisecond)))
		}

		logger.NewLoggerFromContext(ctx).Info("request", fields...)

		return err
	}
}

// Errors turns handler errors into responses. Errors that are not a *Error are logged and reported
// to the caller as an internal error without detail.
func Errors(next Handler) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		err := next(ctx, w, r)
		if err == nil {
			return nil
		}

		if v := ValuesFromContext(ctx); v != nil {
			v.Error = true
		}

		if _, ok := errors.Cause(err).(*Error); !ok {
			logger.NewLoggerFromContext(ctx).Error("request failed", zap.Error(err))
		}

		return RespondError(ctx, w, err)
	}
}

// Panics recovers a panicking handler and returns it as an error.
func Panics(next Handler) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.NewLoggerFromContext(ctx).Error("panic",
					zap.String("stack", string(debug.Stack())))
				err = errors.Errorf("panic: %v", rec)
			}
		}()

		return next(ctx, w, r)
	}
}
