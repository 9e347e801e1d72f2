package db

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/trustvault/settlement/pkg/storage"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

var (
	// ErrInvalidDBProvided is returned in the event that an uninitialized db is
	// used to perform actions against.
	ErrInvalidDBProvided = errors.New("Invalid DB provided")

	// ErrNotFound abstracts the standard not found error.
	ErrNotFound = errors.New("Entity not found")
)

// DB is the document store shared by the ledger and the bridge. Keys are slash separated paths.
type DB struct {
	storage storage.Storage
}

// StorageConfig is geared towards "bucket" style storage, where you have a
// specific root (the Bucket).
type StorageConfig struct {
	Bucket     string
	Root       string
	MaxRetries int
	Region     string
	AccessKey  string
	Secret     string
}

// New returns a DB over filesystem storage when the bucket is "standalone", and S3 otherwise.
func New(sc *StorageConfig) (*DB, error) {
	if sc == nil {
		return nil, errors.Wrap(ErrInvalidDBProvided, "no storage config")
	}

	storeConfig := storage.NewConfig(sc.Bucket, sc.Root)
	if sc.MaxRetries > 0 {
		storeConfig.MaxRetries = sc.MaxRetries
	}
	storeConfig.Region = sc.Region
	storeConfig.AccessKey = sc.AccessKey
	storeConfig.Secret = sc.Secret

	return NewWithStorage(storage.New(storeConfig)), nil
}

// NewWithStorage wraps an existing storage implementation.
func NewWithStorage(s storage.Storage) *DB {
	return &DB{storage: s}
}

// StatusCheck validates the DB status good by round tripping a short lived
// document through the store.
func (db *DB) StatusCheck(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "platform.DB.StatusCheck")
	defer span.End()

	k := fmt.Sprintf("healthcheck/%v", uuid.New())
	body := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))

	if err := db.Put(ctx, k, body); err != nil {
		return errors.Wrap(err, "write health check key")
	}

	got, err := db.Fetch(ctx, k)
	if err != nil {
		return errors.Wrap(err, "read health check key")
	}
	if !bytes.Equal(got, body) {
		return errors.New("health check key read back altered")
	}

	if err := db.Remove(ctx, k); err != nil {
		return errors.Wrap(err, "remove health check key")
	}

	return nil
}

// Close closes a DB value being used.
func (db *DB) Close() {
	db.storage = nil
}

// Put something in storage
func (db *DB) Put(ctx context.Context, key string, body []byte) error {
	if db.storage == nil {
		return errors.Wrap(ErrInvalidDBProvided, "storage == nil")
	}

	return db.storage.Write(ctx, key, body, nil)
}

// Fetch something from storage
func (db *DB) Fetch(ctx context.Context, key string) ([]byte, error) {
	if db.storage == nil {
		return nil, errors.Wrap(ErrInvalidDBProvided, "storage == nil")
	}

	b, err := db.storage.Read(ctx, key)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return b, nil
}

// Remove something from storage
func (db *DB) Remove(ctx context.Context, key string) error {
	if db.storage == nil {
		return errors.Wrap(ErrInvalidDBProvided, "storage == nil")
	}

	if err := db.storage.Remove(ctx, key); err != nil {
		if err == storage.ErrNotFound {
			return ErrNotFound
		}
		return err
	}

	return nil
}

// Search returns the documents stored directly under keyStart.
func (db *DB) Search(ctx context.Context, keyStart string) ([][]byte, error) {
	if db.storage == nil {
		return nil, errors.Wrap(ErrInvalidDBProvided, "storage == nil")
	}

	return db.storage.Search(ctx, map[string]string{"path": keyStart})
}

// List returns the keys under a given path.
func (db *DB) List(ctx context.Context, key string) ([]string, error) {
	if db.storage == nil {
		return nil, errors.Wrap(ErrInvalidDBProvided, "storage == nil")
	}

	return db.storage.List(ctx, key)
}
