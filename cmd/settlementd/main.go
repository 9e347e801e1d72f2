package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/trustvault/settlement/cmd/settlementd/bootstrap"
	"github.com/trustvault/settlement/cmd/settlementd/handlers"
	"github.com/trustvault/settlement/internal/bridge"
	"github.com/trustvault/settlement/internal/release"
	"github.com/trustvault/settlement/internal/settlement"
	"github.com/trustvault/settlement/internal/verifier"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	buildVersion = "unknown"
	buildDate    = "unknown"
	buildUser    = "unknown"
)

// Settlement Daemon
func main() {
	// -------------------------------------------------------------------------
	// Config and Logging

	cfg := bootstrap.NewConfigFromEnv(".env")
	ctx, log := bootstrap.NewLogger(cfg)
	defer log.Sync()

	log.Info("started : application initializing", zap.String("version", buildVersion),
		zap.String("date", buildDate), zap.String("user", buildUser))
	defer log.Info("completed")

	bootstrap.LogConfig(log, cfg)

	// -------------------------------------------------------------------------
	// Start Database / Storage

	masterDB := bootstrap.NewMasterDB(log, cfg)
	defer masterDB.Close()

	sink, closeAudit := bootstrap.NewAuditSink(log, cfg)
	defer closeAudit()

	// -------------------------------------------------------------------------
	// Settlement

	l, ledgerPing := bootstrap.NewLedger(log, cfg, masterDB)

	proc := settlement.NewProcessor(
		verifier.New(bootstrap.NewTrustedKeys(log, cfg), sink),
		release.New(l, bootstrap.NewReleaseConfig(cfg), sink),
		sink,
	)

	// -------------------------------------------------------------------------
	// Bridge

	var (
		b    *bridge.Bridge
		rail = bootstrap.NewRail(log, cfg)
	)
	if rail != nil {
		b = bridge.New(masterDB, bootstrap.NewRates(log, cfg), bootstrap.NewBridgeKey(log, cfg),
			proc, sink)
		log.Info("bridge enabled", zap.String("rail", cfg.Bridge.Rail),
			zap.Bool("relay", b.CanRelay()))
	}

	var deps []handlers.Pinger
	if ledgerPing != nil {
		deps = append(deps, ledgerPing)
	}

	// -------------------------------------------------------------------------
	// Start API Service

	server := &http.Server{
		Addr:         cfg.Server.Host,
		Handler:      handlers.API(log, masterDB, proc, b, rail, deps...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("API listening", zap.String("host", cfg.Server.Host))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "listen")
		}
		return nil
	})

	if sweeper := bootstrap.NewRefundSweeper(log, cfg, l, sink); sweeper != nil {
		g.Go(func() error {
			log.Info("refund sweep running", zap.Duration("interval", cfg.Refund.SweepInterval))
			return sweeper.Run(gctx)
		})
	}

	// -------------------------------------------------------------------------
	// Shutdown

	g.Go(func() error {
		<-gctx.Done()
		log.Info("start shutdown")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Asking listener to shutdown and load shed.
		if err := server.Shutdown(sctx); err != nil {
			server.Close()
			return errors.Wrap(err, "graceful shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
