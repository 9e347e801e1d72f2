package db

import (
	"context"
	"testing"

	"github.com/pkg/errors"
)

func TestDB(t *testing.T) {
	ctx := context.Background()

	masterDB, err := New(&StorageConfig{Bucket: "standalone", Root: t.TempDir()})
	if err != nil {
		t.Fatalf("\t%s\tNew : %s", "✗", err)
	}

	if err := masterDB.StatusCheck(ctx); err != nil {
		t.Fatalf("\t%s\tStatusCheck : %s", "✗", err)
	}
	t.Logf("\t%s\tStatus check passes on empty store", "✓")

	if _, err := masterDB.Fetch(ctx, "escrows/none"); err != ErrNotFound {
		t.Fatalf("\t%s\tFetch missing : got %v, want %v", "✗", err, ErrNotFound)
	}
	if err := masterDB.Remove(ctx, "escrows/none"); err != ErrNotFound {
		t.Fatalf("\t%s\tRemove missing : got %v, want %v", "✗", err, ErrNotFound)
	}

	if err := masterDB.Put(ctx, "escrows/e1", []byte(`{"id":"e1"}`)); err != nil {
		t.Fatalf("\t%s\tPut : %s", "✗", err)
	}

	keys, err := masterDB.List(ctx, "escrows")
	if err != nil || len(keys) != 1 || keys[0] != "escrows/e1" {
		t.Fatalf("\t%s\tList : got %v %v", "✗", keys, err)
	}

	docs, err := masterDB.Search(ctx, "escrows")
	if err != nil || len(docs) != 1 {
		t.Fatalf("\t%s\tSearch : got %d %v", "✗", len(docs), err)
	}

	if err := masterDB.Remove(ctx, "escrows/e1"); err != nil {
		t.Fatalf("\t%s\tRemove : %s", "✗", err)
	}
	if _, err := masterDB.Fetch(ctx, "escrows/e1"); err != ErrNotFound {
		t.Fatalf("\t%s\tFetch removed : got %v, want %v", "✗", err, ErrNotFound)
	}
	t.Logf("\t%s\tDocument operations", "✓")

	if err := masterDB.StatusCheck(ctx); err != nil {
		t.Fatalf("\t%s\tStatusCheck : %s", "✗", err)
	}
	keys, err = masterDB.List(ctx, "healthcheck")
	if err != nil || len(keys) != 0 {
		t.Fatalf("\t%s\tStatusCheck should leave no keys behind : got %v %v", "✗", keys, err)
	}
	t.Logf("\t%s\tStatus check cleans up after itself", "✓")

	masterDB.Close()
	if err := masterDB.Put(ctx, "escrows/e1", nil); errors.Cause(err) != ErrInvalidDBProvided {
		t.Fatalf("\t%s\tClosed DB : got %v", "✗", err)
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(nil); errors.Cause(err) != ErrInvalidDBProvided {
		t.Fatalf("got %v, want %v", err, ErrInvalidDBProvided)
	}
}
