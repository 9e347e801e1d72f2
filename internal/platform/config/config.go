package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const masked = "*** Masked ***"

// Config is used to hold all runtime configuration.
type Config struct {
	Server struct {
		Host            string        `default:"0.0.0.0:8080" envconfig:"HOST"`
		ReadTimeout     time.Duration `default:"10s" envconfig:"READ_TIMEOUT"`
		WriteTimeout    time.Duration `default:"30s" envconfig:"WRITE_TIMEOUT"`
		ShutdownTimeout time.Duration `default:"15s" envconfig:"SHUTDOWN_TIMEOUT"`
	}
	Log struct {
		Format string `default:"json" envconfig:"LOG_FORMAT"`
		Level  string `default:"info" envconfig:"LOG_LEVEL"`
	}
	Verifier struct {
		// Comma separated public keys trusted to sign payment assertions.
		TrustedKeys string `envconfig:"TRUSTED_KEYS"`
	}
	Bridge struct {
		// Private key the bridge signs emitted assertions with. Relay is disabled when empty.
		SigningKey  string        `envconfig:"BRIDGE_SIGNING_KEY" json:"BRIDGE_SIGNING_KEY"`
		RatesFile   string        `envconfig:"BRIDGE_RATES_FILE"`
		Asset       string        `default:"USDC" envconfig:"BRIDGE_ASSET"`
		Rail        string        `default:"sandbox" envconfig:"BRIDGE_RAIL"`
		RailURL     string        `envconfig:"BRIDGE_RAIL_URL"`
		RailAPIKey  string        `envconfig:"BRIDGE_RAIL_API_KEY" json:"BRIDGE_RAIL_API_KEY"`
		RailTimeout time.Duration `default:"10s" envconfig:"BRIDGE_RAIL_TIMEOUT"`
	}
	Release struct {
		MaxAttempts    int           `default:"4" envconfig:"RELEASE_MAX_ATTEMPTS"`
		AttemptTimeout time.Duration `default:"5s" envconfig:"RELEASE_ATTEMPT_TIMEOUT"`
		InitialBackoff time.Duration `default:"200ms" envconfig:"RELEASE_INITIAL_BACKOFF"`
		MaxBackoff     time.Duration `default:"2s" envconfig:"RELEASE_MAX_BACKOFF"`
	}
	Ledger struct {
		// storage, redis or http.
		Backend       string `default:"storage" envconfig:"LEDGER_BACKEND"`
		RedisAddr     string `default:"127.0.0.1:6379" envconfig:"LEDGER_REDIS_ADDR"`
		RedisPassword string `envconfig:"LEDGER_REDIS_PASSWORD" json:"LEDGER_REDIS_PASSWORD"`
		RedisDB       int    `default:"0" envconfig:"LEDGER_REDIS_DB"`
		URL           string `envconfig:"LEDGER_URL"`
	}
	Refund struct {
		// How often expired escrows are refunded. Disabled when zero.
		SweepInterval time.Duration `default:"0s" envconfig:"REFUND_SWEEP_INTERVAL"`
	}
	Audit struct {
		// SQLite file for audit events. Events are only logged when empty.
		Path string `envconfig:"AUDIT_DB_PATH"`
	}
	AWS struct {
		Region          string `default:"ap-southeast-2" envconfig:"AWS_REGION" json:"AWS_REGION"`
		AccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID" json:"AWS_ACCESS_KEY_ID"`
		SecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY" json:"AWS_SECRET_ACCESS_KEY"`
	}
	Storage struct {
		Bucket string `default:"standalone" envconfig:"STORAGE_BUCKET"`
		Root   string `default:"./tmp" envconfig:"STORAGE_ROOT"`
	}
}

// SafeConfig masks sensitive config values
func SafeConfig(cfg Config) *Config {
	cfgSafe := cfg

	if len(cfgSafe.Bridge.SigningKey) > 0 {
		cfgSafe.Bridge.SigningKey = masked
	}
	if len(cfgSafe.Bridge.RailAPIKey) > 0 {
		cfgSafe.Bridge.RailAPIKey = masked
	}
	if len(cfgSafe.Ledger.RedisPassword) > 0 {
		cfgSafe.Ledger.RedisPassword = masked
	}
	if len(cfgSafe.AWS.AccessKeyID) > 0 {
		cfgSafe.AWS.AccessKeyID = masked
	}
	if len(cfgSafe.AWS.SecretAccessKey) > 0 {
		cfgSafe.AWS.SecretAccessKey = masked
	}

	return &cfgSafe
}

// Environment returns configuration sourced from environment variables. Values in the given
// dotenv files are loaded first without overriding variables already set. Missing files are
// ignored.
func Environment(dotenv ...string) (*Config, error) {
	for _, path := range dotenv {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "load %s", path)
		}
	}

	var cfg Config
	if err := envconfig.Process("SETTLEMENT", &cfg); err != nil {
		return nil, errors.Wrap(err, "process env")
	}

	return &cfg, nil
}
