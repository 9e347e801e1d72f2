package handlers

import (
	"context"
	"net/http"

	"github.com/trustvault/settlement/internal/platform/db"
	"github.com/trustvault/settlement/internal/platform/logger"
	"github.com/trustvault/settlement/internal/platform/web"

	"go.opencensus.io/trace"
	"go.uber.org/zap"
)

// Check provides support for orchestration health checks.
type Check struct {
	MasterDB *db.DB
	Deps     []Pinger
}

// Health validates the service is healthy and ready to accept requests.
func (c *Check) Health(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ctx, span := trace.StartSpan(ctx, "handlers.Check.Health")
	defer span.End()

	status := struct {
		Status string `json:"status"`
	}{
		Status: "ok",
	}

	if err := c.MasterDB.StatusCheck(ctx); err != nil {
		logger.NewLoggerFromContext(ctx).Warn("storage not ready", zap.Error(err))
		status.Status = "storage not ready"
		return web.Respond(ctx, w, status, http.StatusServiceUnavailable)
	}

	for _, d := range c.Deps {
		if err := d.Ping(ctx); err != nil {
			logger.NewLoggerFromContext(ctx).Warn("ledger not ready", zap.Error(err))
			status.Status = "ledger not ready"
			return web.Respond(ctx, w, status, http.StatusServiceUnavailable)
		}
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}
