package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvironmentDefaults(t *testing.T) {
	cfg, err := Environment()
	if err != nil {
		t.Fatalf("\t%s\tEnvironment : %s", "✗", err)
	}

	if cfg.Release.MaxAttempts != 4 {
		t.Errorf("\t%s\tMaxAttempts : got %d, want 4", "✗", cfg.Release.MaxAttempts)
	}
	if cfg.Release.AttemptTimeout != 5*time.Second {
		t.Errorf("\t%s\tAttemptTimeout : got %s", "✗", cfg.Release.AttemptTimeout)
	}
	if cfg.Storage.Bucket != "standalone" {
		t.Errorf("\t%s\tBucket : got %s", "✗", cfg.Storage.Bucket)
	}
	t.Logf("\t%s\tDefaults applied", "✓")
}

func TestEnvironmentDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "LEDGER_BACKEND=redis\nRELEASE_MAX_ATTEMPTS=7\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		os.Unsetenv("LEDGER_BACKEND")
		os.Unsetenv("RELEASE_MAX_ATTEMPTS")
	})

	cfg, err := Environment(path, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("\t%s\tEnvironment : %s", "✗", err)
	}

	if cfg.Ledger.Backend != "redis" {
		t.Errorf("\t%s\tBackend : got %s, want redis", "✗", cfg.Ledger.Backend)
	}
	if cfg.Release.MaxAttempts != 7 {
		t.Errorf("\t%s\tMaxAttempts : got %d, want 7", "✗", cfg.Release.MaxAttempts)
	}
	t.Logf("\t%s\tDotenv values applied", "✓")
}

func TestSafeConfig(t *testing.T) {
	var cfg Config
	cfg.Bridge.SigningKey = "secret"
	cfg.AWS.SecretAccessKey = "secret"
	cfg.Ledger.RedisAddr = "redis:6379"

	safe := SafeConfig(cfg)

	if safe.Bridge.SigningKey != masked || safe.AWS.SecretAccessKey != masked {
		t.Errorf("\t%s\tSecrets not masked", "✗")
	}
	if safe.Ledger.RedisAddr != "redis:6379" {
		t.Errorf("\t%s\tNon secret value changed", "✗")
	}
	if cfg.Bridge.SigningKey != "secret" {
		t.Errorf("\t%s\tOriginal config modified", "✗")
	}
}
