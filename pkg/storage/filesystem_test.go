package storage

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestStorage(t *testing.T) FilesystemStorage {
	t.Helper()
	return NewFilesystemStorage(NewConfig("standalone", t.TempDir()))
}

func TestFilesystemReadWrite(t *testing.T) {
	ctx := context.Background()
	fs := newTestStorage(t)

	if _, err := fs.Read(ctx, "escrows/missing"); err != ErrNotFound {
		t.Fatalf("\t%s\tRead missing : got %v, want %v", "✗", err, ErrNotFound)
	}

	if err := fs.Write(ctx, "escrows/e1", []byte("one"), nil); err != nil {
		t.Fatalf("\t%s\tWrite : %s", "✗", err)
	}

	b, err := fs.Read(ctx, "escrows/e1")
	if err != nil {
		t.Fatalf("\t%s\tRead : %s", "✗", err)
	}
	if string(b) != "one" {
		t.Fatalf("\t%s\tRead : got %q, want %q", "✗", b, "one")
	}
	t.Logf("\t%s\tDocument round trip", "✓")

	if err := fs.Write(ctx, "escrows/e1", []byte("two"), nil); err != nil {
		t.Fatalf("\t%s\tOverwrite : %s", "✗", err)
	}
	b, _ = fs.Read(ctx, "escrows/e1")
	if string(b) != "two" {
		t.Fatalf("\t%s\tOverwrite : got %q, want %q", "✗", b, "two")
	}

	if err := fs.Remove(ctx, "escrows/e1"); err != nil {
		t.Fatalf("\t%s\tRemove : %s", "✗", err)
	}
	if err := fs.Remove(ctx, "escrows/e1"); err != ErrNotFound {
		t.Fatalf("\t%s\tRemove twice : got %v, want %v", "✗", err, ErrNotFound)
	}
	t.Logf("\t%s\tRemove", "✓")
}

func TestFilesystemListSearch(t *testing.T) {
	ctx := context.Background()
	fs := newTestStorage(t)

	keys, err := fs.List(ctx, "settlements")
	if err != nil {
		t.Fatalf("\t%s\tList empty : %s", "✗", err)
	}
	if len(keys) != 0 {
		t.Fatalf("\t%s\tList empty : got %v", "✗", keys)
	}

	for _, k := range []string{"b", "a", "c"} {
		if err := fs.Write(ctx, "settlements/"+k, []byte(k), nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := fs.Write(ctx, "settlements/nested/d", []byte("d"), nil); err != nil {
		t.Fatal(err)
	}

	keys, err = fs.List(ctx, "settlements")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"settlements/a", "settlements/b", "settlements/c"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Fatalf("\t%s\tList mismatch (-want +got):\n%s", "✗", diff)
	}

	objects, err := fs.Search(ctx, map[string]string{"path": "settlements"})
	if err != nil {
		t.Fatal(err)
	}
	if len(objects) != 3 || string(objects[0]) != "a" {
		t.Fatalf("\t%s\tSearch : got %q", "✗", objects)
	}
	t.Logf("\t%s\tList and search", "✓")
}

func TestConfigStringOmitsSecrets(t *testing.T) {
	c := NewConfig("bucket", "root")
	c.AccessKey = "AKIA"
	c.Secret = "shh"

	want := "{Bucket:bucket Root:root MaxRetries:4}"
	if got := c.String(); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
