package handlers

import (
	"context"
	"net/http"

	"github.com/trustvault/settlement/internal/bridge"
	"github.com/trustvault/settlement/internal/cardrail"
	"github.com/trustvault/settlement/internal/platform/db"
	"github.com/trustvault/settlement/internal/platform/web"

	"go.uber.org/zap"
)

// Pinger is a dependency the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// API returns a handler for the settlement service routes. b and rail may be nil, which leaves the
// bridge routes unmounted.
func API(log *zap.Logger, masterDB *db.DB, settler bridge.Settler, b *bridge.Bridge,
	rail cardrail.Rail, deps ...Pinger) http.Handler {

	app := web.New(log, web.RequestLogger, web.Errors, web.Panics)

	c := Check{
		MasterDB: masterDB,
		Deps:     deps,
	}
	app.Handle(http.MethodGet, "/health", c.Health)

	s := Settle{
		Settler: settler,
	}
	app.Handle(http.MethodPost, "/x402/settle", s.Settle)

	if b != nil && rail != nil {
		br := Bridge{
			Bridge: b,
			Rail:   rail,
		}
		app.Handle(http.MethodPost, "/bridge/charges", br.Charge)
		app.Handle(http.MethodGet, "/bridge/settlements", br.List)
		app.Handle(http.MethodGet, "/bridge/settlements/{id}", br.Retrieve)
	}

	return app
}
