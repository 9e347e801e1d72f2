package audit

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event TEXT NOT NULL,
	at DATETIME NOT NULL,
	request_id TEXT,
	escrow_id TEXT,
	settlement_id TEXT,
	key_id TEXT,
	receipt_id TEXT,
	amount TEXT,
	state TEXT,
	attempt INTEGER DEFAULT 0,
	error TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_escrow ON audit_events(escrow_id);
CREATE INDEX IF NOT EXISTS idx_audit_settlement ON audit_events(settlement_id);
`

// SQLiteSink appends events to a SQLite table.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens or creates the audit database at path.
func OpenSQLite(path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "create audit directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open audit database")
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create audit schema")
	}

	return &SQLiteSink{db: db}, nil
}

// Record implements Sink.
func (s *SQLiteSink) Record(ctx context.Context, e Event) error {
	ctx, span := trace.StartSpan(ctx, "internal.audit.SQLiteSink.Record")
	defer span.End()

	_, err := s.db.ExecContext(ctx, `INSERT INTO audit_events
		(event, at, request_id, escrow_id, settlement_id, key_id, receipt_id, amount, state, attempt,
		error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.Type), e.Time.UTC().Format(time.RFC3339Nano), e.RequestID, e.EscrowID,
		e.SettlementID, e.KeyID, e.ReceiptID, e.Amount, e.State, e.Attempt, e.Error)
	if err != nil {
		return errors.Wrap(err, "insert audit event")
	}

	return nil
}

// ForEscrow returns the events recorded for an escrow, oldest first.
func (s *SQLiteSink) ForEscrow(ctx context.Context, escrowID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event, at, request_id, escrow_id, settlement_id,
		key_id, receipt_id, amount, state, attempt, error FROM audit_events WHERE escrow_id = ? ORDER BY id`,
		escrowID)
	if err != nil {
		return nil, errors.Wrap(err, "query audit events")
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e  Event
			at string
			t  string
		)
		if err := rows.Scan(&t, &at, &e.RequestID, &e.EscrowID, &e.SettlementID, &e.KeyID,
			&e.ReceiptID, &e.Amount, &e.State, &e.Attempt, &e.Error); err != nil {
			return nil, errors.Wrap(err, "scan audit event")
		}

		e.Type = EventType(t)
		e.Time, _ = time.Parse(time.RFC3339Nano, at)
		events = append(events, e)
	}

	return events, errors.Wrap(rows.Err(), "iterate audit events")
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
