package storage

import (
	"context"
	"os"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("Not found")
)

// Storage is a bucket style document store.
type Storage interface {
	Write(ctx context.Context, key string, body []byte, options *Options) error
	Read(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error

	// Search returns the contents of all objects directly under query["path"].
	Search(ctx context.Context, query map[string]string) ([][]byte, error)

	// List returns the keys directly under path.
	List(ctx context.Context, path string) ([]string, error)
}

// Options are applied to write operations.
type Options struct {
	// TTL is the number of seconds an object should live. Zero means forever. Only honoured by
	// S3.
	TTL int64

	// Mode and DirMode are only used by the filesystem.
	Mode    os.FileMode
	DirMode os.FileMode
}

// NewOptions returns Options with default file modes.
func NewOptions() Options {
	return Options{
		Mode:    0644,
		DirMode: 0755,
	}
}

// New returns filesystem storage when the bucket is "standalone", otherwise S3.
func New(config Config) Storage {
	if config.Bucket == "standalone" {
		return NewFilesystemStorage(config)
	}

	return NewS3Storage(config)
}
