package web

import (
	"context"
	"net/http"
	"time"

	"github.com/trustvault/settlement/internal/platform/logger"

	"github.com/go-chi/chi/v5"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
)

// ctxKey represents the type of value for the context key.
type ctxKey int

// KeyValues is how request values or stored/retrieved.
const KeyValues ctxKey = 1

// HeaderRequestID carries a caller supplied request id.
const HeaderRequestID = "X-Request-ID"

// Values represent state for each request.
type Values struct {
	TraceID    string
	Now        time.Time
	StatusCode int
	Error      bool
}

// ValuesFromContext returns the request Values, or nil outside of a request.
func ValuesFromContext(ctx context.Context) *Values {
	v, _ := ctx.Value(KeyValues).(*Values)
	return v
}

// A Handler is a type that handles a HTTP request within our own little mini
// framework.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// App is the entrypoint into our application and what configures our context
// object for each of our http handlers.
type App struct {
	mux *chi.Mux
	log *zap.Logger
	mw  []Middleware
}

// New creates an App value that handle a set of routes for the application.
func New(log *zap.Logger, mw ...Middleware) *App {
	return &App{
		mux: chi.NewRouter(),
		log: log,
		mw:  mw,
	}
}

// Handle is our mechanism for mounting Handlers for a given HTTP verb and path
// pair, this makes for really easy, convenient routing.
func (a *App) Handle(verb, path string, handler Handler, mw ...Middleware) {

	// Wrap up the application-wide first, this will call the first function
	// of each middleware which will return a function of type Handler.
	handler = wrapMiddleware(wrapMiddleware(handler, mw), a.mw)

	// The function to execute for each request.
	h := func(w http.ResponseWriter, r *http.Request) {
		ctx, span := trace.StartSpan(r.Context(), "internal.platform.web")
		defer span.End()

		v := Values{
			TraceID: span.SpanContext().TraceID.String(),
			Now:     time.Now(),
		}
		ctx = context.WithValue(ctx, KeyValues, &v)

		ctx = logger.ContextWithLogger(ctx, a.log.With(zap.String("trace_id", v.TraceID)))
		ctx = logger.ContextWithRequestID(ctx, r.Header.Get(HeaderRequestID))

		if err := handler(ctx, w, r); err != nil {
			logger.NewLoggerFromContext(ctx).Error("unhandled request error", zap.Error(err))
		}
	}

	a.mux.MethodFunc(verb, path, h)
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}
