package ledger

import (
	"context"
	"time"

	"github.com/trustvault/settlement/internal/platform/db"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

const storageKey = "escrows"

// StorageLedger keeps escrows as documents in the DB. Operations on one escrow are serialized
// within the process, so a single instance must own a storage bucket.
type StorageLedger struct {
	db    *db.DB
	locks *mapLock
	now   func() time.Time
}

// NewStorageLedger returns a ledger backed by masterDB.
func NewStorageLedger(masterDB *db.DB) *StorageLedger {
	return &StorageLedger{
		db:    masterDB,
		locks: newMapLock(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new escrow.
func (l *StorageLedger) Create(ctx context.Context, e *Escrow) error {
	ctx, span := trace.StartSpan(ctx, "internal.ledger.StorageLedger.Create")
	defer span.End()

	if err := e.Validate(); err != nil {
		return err
	}

	defer l.locks.lock(e.ID)()

	if _, err := l.fetch(ctx, e.ID); err == nil {
		return errors.Wrap(ErrEscrowExists, e.ID)
	} else if errors.Cause(err) != ErrEscrowNotFound {
		return err
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now()
	}

	return l.save(ctx, e)
}

// Fetch returns the escrow.
func (l *StorageLedger) Fetch(ctx context.Context, escrowID string) (*Escrow, error) {
	ctx, span := trace.StartSpan(ctx, "internal.ledger.StorageLedger.Fetch")
	defer span.End()

	return l.fetch(ctx, escrowID)
}

// List returns all escrows.
func (l *StorageLedger) List(ctx context.Context) ([]*Escrow, error) {
	ctx, span := trace.StartSpan(ctx, "internal.ledger.StorageLedger.List")
	defer span.End()

	docs, err := l.db.Search(ctx, storageKey)
	if err != nil {
		return nil, unavailable(err, "search escrows")
	}

	result := make([]*Escrow, 0, len(docs))
	for _, b := range docs {
		var e Escrow
		if err := sonic.Unmarshal(b, &e); err != nil {
			return nil, errors.Wrap(err, "unmarshal escrow")
		}
		result = append(result, &e)
	}

	return result, nil
}

// Release marks the escrow released to recipient.
func (l *StorageLedger) Release(ctx context.Context, escrowID, recipient string) (*Receipt, error) {
	ctx, span := trace.StartSpan(ctx, "internal.ledger.StorageLedger.Release")
	defer span.End()

	defer l.locks.lock(escrowID)()

	e, err := l.fetch(ctx, escrowID)
	if err != nil {
		return nil, err
	}

	receipt, err := e.release(recipient, l.now())
	if err != nil {
		return nil, errors.Wrap(err, escrowID)
	}

	if err := l.save(ctx, e); err != nil {
		return nil, err
	}

	return receipt, nil
}

// Refund returns the funds of an expired escrow to the payer.
func (l *StorageLedger) Refund(ctx context.Context, escrowID string) (*Escrow, error) {
	ctx, span := trace.StartSpan(ctx, "internal.ledger.StorageLedger.Refund")
	defer span.End()

	defer l.locks.lock(escrowID)()

	e, err := l.fetch(ctx, escrowID)
	if err != nil {
		return nil, err
	}

	if err := e.refund(l.now()); err != nil {
		return nil, errors.Wrap(err, escrowID)
	}

	if err := l.save(ctx, e); err != nil {
		return nil, err
	}

	return e, nil
}

func (l *StorageLedger) fetch(ctx context.Context, escrowID string) (*Escrow, error) {
	if !ValidID(escrowID) {
		return nil, errors.Wrapf(ErrEscrowNotFound, "invalid id %q", escrowID)
	}

	b, err := l.db.Fetch(ctx, buildStoragePath(escrowID))
	if err != nil {
		if errors.Cause(err) == db.ErrNotFound {
			return nil, errors.Wrap(ErrEscrowNotFound, escrowID)
		}
		return nil, unavailable(err, "fetch escrow")
	}

	var e Escrow
	if err := sonic.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrapf(err, "unmarshal escrow %s", escrowID)
	}

	return &e, nil
}

func (l *StorageLedger) save(ctx context.Context, e *Escrow) error {
	b, err := sonic.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal escrow")
	}

	if err := l.db.Put(ctx, buildStoragePath(e.ID), b); err != nil {
		return unavailable(err, "put escrow")
	}

	return nil
}

// Returns the storage path prefix for an escrow.
func buildStoragePath(escrowID string) string {
	return storageKey + "/" + escrowID
}
