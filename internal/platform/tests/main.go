package tests

import (
	"context"
	"testing"
	"time"

	"github.com/trustvault/settlement/internal/platform/db"
	"github.com/trustvault/settlement/internal/platform/logger"
	"github.com/trustvault/settlement/internal/platform/web"
	"github.com/trustvault/settlement/pkg/signing"

	"go.uber.org/zap"
)

// Success and failure markers used in test output.
const (
	Success = "✓"
	Failed  = "✗"
)

// Test owns the resources shared by a package's tests.
type Test struct {
	DB       *db.DB
	RailKey  *signing.Key
	Trusted  *signing.KeySet
	Log      *zap.Logger
	tempRoot string
}

// New creates a Test with filesystem storage under a temporary directory and a freshly generated
// rail key that is the only trusted key.
func New(t testing.TB) *Test {
	t.Helper()

	test := &Test{
		Log:      zap.NewNop(),
		tempRoot: t.TempDir(),
	}

	var err error
	test.DB, err = db.New(&db.StorageConfig{
		Bucket: "standalone",
		Root:   test.tempRoot,
	})
	if err != nil {
		t.Fatalf("\t%s\tFailed to create DB : %s", Failed, err)
	}

	test.RailKey = GenerateKey(t)
	test.Trusted = signing.NewKeySet(test.RailKey.PublicKey())

	t.Cleanup(test.DB.Close)

	return test
}

// Context returns a silent request context with web Values set.
func (test *Test) Context(traceID string) context.Context {
	v := web.Values{
		TraceID: traceID,
		Now:     time.Now(),
	}
	ctx := context.WithValue(context.Background(), web.KeyValues, &v)
	ctx = logger.ContextWithLogger(ctx, test.Log)

	return logger.ContextWithRequestID(ctx, traceID)
}

// Root is the directory backing the test DB.
func (test *Test) Root() string {
	return test.tempRoot
}

// SilentContext returns a context carrying a no-op logger.
func SilentContext() context.Context {
	return logger.ContextWithLogger(context.Background(), zap.NewNop())
}

// GenerateKey returns a new signing key or fails the test.
func GenerateKey(t testing.TB) *signing.Key {
	t.Helper()

	key, err := signing.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tFailed to generate key : %s", Failed, err)
	}

	return key
}
