package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.opencensus.io/trace"
)

const (
	redisKeyPrefix = "escrow:"

	// maxWatchRetries bounds optimistic transaction retries when another client modifies the
	// same escrow between WATCH and EXEC.
	maxWatchRetries = 5
)

// getter is satisfied by both the client and a watched transaction.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisLedger keeps each escrow as a JSON document under its own key. Updates run in WATCH/MULTI
// transactions so concurrent releases across processes resolve to a single winner.
type RedisLedger struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisLedger returns a ledger using rdb.
func NewRedisLedger(rdb *redis.Client) *RedisLedger {
	return &RedisLedger{
		rdb: rdb,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks the connection.
func (l *RedisLedger) Ping(ctx context.Context) error {
	if err := l.rdb.Ping(ctx).Err(); err != nil {
		return unavailable(err, "ping")
	}
	return nil
}

// Create stores a new escrow if the id is unused.
func (l *RedisLedger) Create(ctx context.Context, e *Escrow) error {
	ctx, span := trace.StartSpan(ctx, "internal.ledger.RedisLedger.Create")
	defer span.End()

	if err := e.Validate(); err != nil {
		return err
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now()
	}

	b, err := sonic.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal escrow")
	}

	ok, err := l.rdb.SetNX(ctx, redisKeyPrefix+e.ID, b, 0).Result()
	if err != nil {
		return unavailable(err, "create escrow")
	}
	if !ok {
		return errors.Wrap(ErrEscrowExists, e.ID)
	}

	return nil
}

// Fetch returns the escrow.
func (l *RedisLedger) Fetch(ctx context.Context, escrowID string) (*Escrow, error) {
	ctx, span := trace.StartSpan(ctx, "internal.ledger.RedisLedger.Fetch")
	defer span.End()

	if !ValidID(escrowID) {
		return nil, errors.Wrapf(ErrEscrowNotFound, "invalid id %q", escrowID)
	}

	return l.get(ctx, l.rdb, escrowID)
}

// Release marks the escrow released to recipient.
func (l *RedisLedger) Release(ctx context.Context, escrowID, recipient string) (*Receipt, error) {
	ctx, span := trace.StartSpan(ctx, "internal.ledger.RedisLedger.Release")
	defer span.End()

	var receipt *Receipt
	err := l.update(ctx, escrowID, func(e *Escrow) error {
		r, err := e.release(recipient, l.now())
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return receipt, nil
}

// Refund returns the funds of an expired escrow to the payer.
func (l *RedisLedger) Refund(ctx context.Context, escrowID string) (*Escrow, error) {
	ctx, span := trace.StartSpan(ctx, "internal.ledger.RedisLedger.Refund")
	defer span.End()

	var result *Escrow
	err := l.update(ctx, escrowID, func(e *Escrow) error {
		if err := e.refund(l.now()); err != nil {
			return err
		}
		result = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// update applies fn to the escrow inside an optimistic transaction.
func (l *RedisLedger) update(ctx context.Context, escrowID string, fn func(*Escrow) error) error {
	if !ValidID(escrowID) {
		return errors.Wrapf(ErrEscrowNotFound, "invalid id %q", escrowID)
	}

	key := redisKeyPrefix + escrowID

	txf := func(tx *redis.Tx) error {
		e, err := l.get(ctx, tx, escrowID)
		if err != nil {
			return err
		}

		if err := fn(e); err != nil {
			return errors.Wrap(err, escrowID)
		}

		b, err := sonic.Marshal(e)
		if err != nil {
			return errors.Wrap(err, "marshal escrow")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := l.rdb.Watch(ctx, txf, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if isLedgerError(err) {
				return err
			}
			return unavailable(err, "update escrow")
		}
		return nil
	}

	return unavailable(redis.TxFailedErr, "update escrow contended")
}

// List returns all escrows. Keys are walked with SCAN, so escrows created during the walk may be
// missed.
func (l *RedisLedger) List(ctx context.Context) ([]*Escrow, error) {
	ctx, span := trace.StartSpan(ctx, "internal.ledger.RedisLedger.List")
	defer span.End()

	var result []*Escrow
	iter := l.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		e, err := l.get(ctx, l.rdb, strings.TrimPrefix(iter.Val(), redisKeyPrefix))
		if err != nil {
			if errors.Cause(err) == ErrEscrowNotFound {
				continue
			}
			return nil, err
		}
		result = append(result, e)
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable(err, "scan escrows")
	}

	return result, nil
}

func (l *RedisLedger) get(ctx context.Context, c getter, escrowID string) (*Escrow, error) {
	b, err := c.Get(ctx, redisKeyPrefix+escrowID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.Wrap(ErrEscrowNotFound, escrowID)
		}
		return nil, unavailable(err, "get escrow")
	}

	var e Escrow
	if err := sonic.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrapf(err, "unmarshal escrow %s", escrowID)
	}

	return &e, nil
}

// isLedgerError reports whether err is one of the ledger's own outcomes rather than a transport
// failure.
func isLedgerError(err error) bool {
	switch errors.Cause(err) {
	case ErrEscrowNotFound, ErrAlreadyReleased, ErrAlreadyRefunded, ErrRecipientMismatch,
		ErrNotExpired, ErrLedgerUnavailable:
		return true
	}
	return false
}
