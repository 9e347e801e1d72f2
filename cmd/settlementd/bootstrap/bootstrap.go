package bootstrap

import (
	"context"
	"strings"

	"github.com/trustvault/settlement/internal/audit"
	"github.com/trustvault/settlement/internal/bridge"
	"github.com/trustvault/settlement/internal/cardrail"
	"github.com/trustvault/settlement/internal/ledger"
	"github.com/trustvault/settlement/internal/platform/config"
	"github.com/trustvault/settlement/internal/platform/db"
	"github.com/trustvault/settlement/internal/platform/logger"
	"github.com/trustvault/settlement/internal/refund"
	"github.com/trustvault/settlement/internal/release"
	"github.com/trustvault/settlement/pkg/scheduler"
	"github.com/trustvault/settlement/pkg/signing"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewConfigFromEnv loads the configuration, falling back to a bare production logger for any
// error before the configured one exists.
func NewConfigFromEnv(dotenv ...string) *config.Config {
	cfg, err := config.Environment(dotenv...)
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("parsing config", zap.Error(err))
	}

	return cfg
}

// NewLogger builds the process logger and returns a context carrying it.
func NewLogger(cfg *config.Config) (context.Context, *zap.Logger) {
	log, err := logger.New(logger.Config{
		Format: cfg.Log.Format,
		Level:  cfg.Log.Level,
	})
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("building logger", zap.Error(err))
	}

	return logger.ContextWithLogger(context.Background(), log), log
}

// LogConfig writes the configuration with sensitive values masked.
func LogConfig(log *zap.Logger, cfg *config.Config) {
	cfgJSON, err := sonic.ConfigStd.MarshalIndent(config.SafeConfig(*cfg), "", "    ")
	if err != nil {
		log.Fatal("marshalling config to JSON", zap.Error(err))
	}
	log.Info("config", zap.String("config", string(cfgJSON)))
}

func NewMasterDB(log *zap.Logger, cfg *config.Config) *db.DB {
	masterDB, err := db.New(&db.StorageConfig{
		Bucket:    cfg.Storage.Bucket,
		Root:      cfg.Storage.Root,
		Region:    cfg.AWS.Region,
		AccessKey: cfg.AWS.AccessKeyID,
		Secret:    cfg.AWS.SecretAccessKey,
	})
	if err != nil {
		log.Fatal("register DB", zap.Error(err))
	}

	return masterDB
}

// Pinger is a backend that can report its readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewLedger returns the configured ledger backend. The Pinger is nil for backends without a
// connection to check.
func NewLedger(log *zap.Logger, cfg *config.Config, masterDB *db.DB) (ledger.Ledger, Pinger) {
	switch strings.ToLower(cfg.Ledger.Backend) {
	case "storage":
		return ledger.NewStorageLedger(masterDB), nil

	case "redis":
		l := ledger.NewRedisLedger(newRedisClient(cfg))
		return l, l

	case "http":
		if len(cfg.Ledger.URL) == 0 {
			log.Fatal("ledger URL required for http backend")
		}
		return ledger.NewHTTPLedger(cfg.Ledger.URL, cfg.Release.AttemptTimeout), nil
	}

	log.Fatal("unknown ledger backend", zap.String("backend", cfg.Ledger.Backend))
	return nil, nil
}

// NewEscrows returns the configured ledger backend with escrow administration. The http backend
// is administered by its own service.
func NewEscrows(log *zap.Logger, cfg *config.Config, masterDB *db.DB) ledger.Escrows {
	switch strings.ToLower(cfg.Ledger.Backend) {
	case "storage":
		return ledger.NewStorageLedger(masterDB)
	case "redis":
		return ledger.NewRedisLedger(newRedisClient(cfg))
	}

	log.Fatal("escrow administration not supported by ledger backend",
		zap.String("backend", cfg.Ledger.Backend))
	return nil
}

// NewRefundSweeper returns the scheduler running the refund sweep, or nil when the sweep is
// disabled.
func NewRefundSweeper(log *zap.Logger, cfg *config.Config, l ledger.Ledger, sink audit.Sink) *scheduler.Scheduler {
	if cfg.Refund.SweepInterval <= 0 {
		return nil
	}

	lister, ok := l.(refund.Ledger)
	if !ok {
		log.Warn("refund sweep not supported by ledger backend", zap.String("backend", cfg.Ledger.Backend))
		return nil
	}

	sch := scheduler.New(0)
	sch.ScheduleJob(context.Background(), scheduler.NewPeriodicProcess("refund",
		refund.NewSweeper(lister, sink), cfg.Refund.SweepInterval))

	return sch
}

func newRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Ledger.RedisAddr,
		Password: cfg.Ledger.RedisPassword,
		DB:       cfg.Ledger.RedisDB,
	})
}

// NewAuditSink logs every audit event and, when a path is configured, also stores it in SQLite.
// The returned close function is never nil.
func NewAuditSink(log *zap.Logger, cfg *config.Config) (audit.Sink, func()) {
	if len(cfg.Audit.Path) == 0 {
		return audit.LogSink{}, func() {}
	}

	store, err := audit.OpenSQLite(cfg.Audit.Path)
	if err != nil {
		log.Fatal("open audit store", zap.Error(err))
	}

	return audit.Multi{audit.LogSink{}, store}, func() {
		if err := store.Close(); err != nil {
			log.Warn("close audit store", zap.Error(err))
		}
	}
}

func NewTrustedKeys(log *zap.Logger, cfg *config.Config) *signing.KeySet {
	keys, err := signing.ParseKeySet(cfg.Verifier.TrustedKeys)
	if err != nil {
		log.Fatal("trusted keys", zap.Error(err))
	}
	if keys.Len() == 0 {
		log.Warn("no trusted keys configured, every payment will be rejected")
	}

	return keys
}

func NewReleaseConfig(cfg *config.Config) release.Config {
	return release.Config{
		MaxAttempts:    cfg.Release.MaxAttempts,
		AttemptTimeout: cfg.Release.AttemptTimeout,
		InitialBackoff: cfg.Release.InitialBackoff,
		MaxBackoff:     cfg.Release.MaxBackoff,
	}
}

// NewBridgeKey returns the key the bridge signs assertions with, or nil when relay is disabled.
func NewBridgeKey(log *zap.Logger, cfg *config.Config) *signing.Key {
	if len(cfg.Bridge.SigningKey) == 0 {
		return nil
	}

	key, err := signing.DecodeKeyString(cfg.Bridge.SigningKey)
	if err != nil {
		log.Fatal("bridge signing key", zap.Error(err))
	}

	return key
}

func NewRates(log *zap.Logger, cfg *config.Config) *bridge.RateTable {
	if len(cfg.Bridge.RatesFile) == 0 {
		return bridge.DefaultRates(cfg.Bridge.Asset)
	}

	rates, err := bridge.LoadRates(cfg.Bridge.RatesFile)
	if err != nil {
		log.Fatal("load rates", zap.Error(err))
	}

	return rates
}

// NewRail returns the configured card rail, or nil when the bridge is disabled.
func NewRail(log *zap.Logger, cfg *config.Config) cardrail.Rail {
	switch strings.ToLower(cfg.Bridge.Rail) {
	case "", "none":
		return nil
	case "sandbox":
		return cardrail.NewSandboxRail()
	case "http":
		if len(cfg.Bridge.RailURL) == 0 {
			log.Fatal("rail URL required for http rail")
		}
		return cardrail.NewHTTPRail(cfg.Bridge.RailURL, cfg.Bridge.RailAPIKey, cfg.Bridge.RailTimeout)
	}

	log.Fatal("unknown card rail", zap.String("rail", cfg.Bridge.Rail))
	return nil
}
