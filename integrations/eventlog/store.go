package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"onlsale/core/types"
)

const maxListLimit = 500

// Record is one archived event together with the receipt it belongs to.
type Record struct {
	Sequence   int64             `json:"sequence"`
	ReceiptID  string            `json:"receiptId"`
	Operation  string            `json:"operation"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Log        *types.Log        `json:"log,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// Store archives committed sale and token events in SQLite so clients can
// page through history after a restart.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
            sequence INTEGER PRIMARY KEY AUTOINCREMENT,
            receipt_id TEXT NOT NULL,
            operation TEXT NOT NULL,
            type TEXT NOT NULL,
            attributes TEXT NOT NULL,
            log TEXT,
            occurred_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS events_receipt ON events(receipt_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Append stores the records of one receipt in a single transaction and fills
// in their sequence numbers.
func (s *Store) Append(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const stmt = `INSERT INTO events(receipt_id, operation, type, attributes, log, occurred_at) VALUES (?, ?, ?, ?, ?, ?)`
	for i := range records {
		rec := &records[i]
		attrs, err := json.Marshal(rec.Attributes)
		if err != nil {
			return fmt.Errorf("encode attributes: %w", err)
		}
		var logJSON sql.NullString
		if rec.Log != nil {
			encoded, err := json.Marshal(rec.Log)
			if err != nil {
				return fmt.Errorf("encode log: %w", err)
			}
			logJSON = sql.NullString{String: string(encoded), Valid: true}
		}
		res, err := tx.ExecContext(ctx, stmt, rec.ReceiptID, rec.Operation, rec.Type, string(attrs), logJSON, rec.OccurredAt.UTC())
		if err != nil {
			return err
		}
		if rec.Sequence, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// List returns up to limit records with a sequence greater than after, oldest
// first.
func (s *Store) List(ctx context.Context, after int64, limit int) ([]Record, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	const query = `SELECT sequence, receipt_id, operation, type, attributes, log, occurred_at FROM events WHERE sequence > ? ORDER BY sequence ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec     Record
			attrs   string
			logJSON sql.NullString
		)
		if err := rows.Scan(&rec.Sequence, &rec.ReceiptID, &rec.Operation, &rec.Type, &attrs, &logJSON, &rec.OccurredAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(attrs), &rec.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes of event %d: %w", rec.Sequence, err)
		}
		if logJSON.Valid {
			rec.Log = new(types.Log)
			if err := json.Unmarshal([]byte(logJSON.String), rec.Log); err != nil {
				return nil, fmt.Errorf("decode log of event %d: %w", rec.Sequence, err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ByReceipt returns the records written for one receipt.
func (s *Store) ByReceipt(ctx context.Context, receiptID string) ([]Record, error) {
	if receiptID == "" {
		return nil, errors.New("eventlog: receipt id required")
	}
	const query = `SELECT sequence FROM events WHERE receipt_id = ? ORDER BY sequence ASC LIMIT 1`
	var first int64
	err := s.db.QueryRowContext(ctx, query, receiptID).Scan(&first)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	records, err := s.List(ctx, first-1, maxListLimit)
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, rec := range records {
		if rec.ReceiptID == receiptID {
			out = append(out, rec)
		}
	}
	return out, nil
}
