package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite"
	"github.com/google/uuid"

	"rateswap/core/types"
)

// Storage wraps the swapd audit log.
type Storage struct {
	db *sql.DB
}

var (
	// ErrPathRequired is returned when the backing store path is missing.
	ErrPathRequired = errors.New("swapd storage path must be configured")
	// ErrReceiptNotFound is returned when a receipt id is unknown.
	ErrReceiptNotFound = errors.New("swapd storage: receipt not found")
)

// DefaultListLimit bounds history queries without an explicit limit.
const DefaultListLimit = 50

// MaxListLimit caps history queries.
const MaxListLimit = 500

// Open initialises the backing store using sqlite-compatible DSN.
func Open(dsn string) (*Storage, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if strings.Contains(trimmed, "mode=memory") {
		// Every pooled connection must share the single in-memory database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases database resources.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage not configured")
	}
	return s.db.PingContext(ctx)
}

// Receipt is the persisted record of a committed swap. Amounts are decimal
// smallest-unit strings.
type Receipt struct {
	ID         string    `json:"id"`
	Caller     string    `json:"caller"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	AmountIn   string    `json:"amount_in"`
	RawOutput  string    `json:"raw_output"`
	FeeAmount  string    `json:"fee_amount"`
	NetOutput  string    `json:"net_output"`
	FeeMille   uint64    `json:"fee_mille"`
	ChargePaid string    `json:"charge_paid"`
	Refunded   string    `json:"refunded"`
	ExecutedAt time.Time `json:"executed_at"`
}

// EventRecord is a persisted engine event.
type EventRecord struct {
	ID         int64             `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// RecordCommit stores the events of one committed operation and, when
// present, its swap receipt in a single transaction. A receipt without an id
// receives a fresh UUID, which is returned.
func (s *Storage) RecordCommit(ctx context.Context, events []*types.Event, receipt *Receipt, when time.Time) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("storage not configured")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin audit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	recorded := when.UTC()
	for _, evt := range events {
		if evt == nil {
			continue
		}
		attrs, err := json.Marshal(evt.Attributes)
		if err != nil {
			return "", fmt.Errorf("encode event attributes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO exchange_events(type, attributes, recorded_at)
            VALUES(?, ?, ?)
        `, evt.Type, string(attrs), recorded); err != nil {
			return "", fmt.Errorf("insert event: %w", err)
		}
	}

	id := ""
	if receipt != nil {
		id = strings.TrimSpace(receipt.ID)
		if id == "" {
			id = uuid.NewString()
		}
		executed := receipt.ExecutedAt
		if executed.IsZero() {
			executed = recorded
		}
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO swap_receipts(id, caller, from_asset, to_asset, amount_in, raw_output, fee_amount, net_output, fee_mille, charge_paid, refunded, executed_at)
            VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        `, id, strings.ToLower(receipt.Caller), receipt.From, receipt.To, receipt.AmountIn, receipt.RawOutput,
			receipt.FeeAmount, receipt.NetOutput, receipt.FeeMille, receipt.ChargePaid, receipt.Refunded, executed.UTC()); err != nil {
			return "", fmt.Errorf("insert receipt: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit audit tx: %w", err)
	}
	return id, nil
}

// GetSwap returns a single receipt.
func (s *Storage) GetSwap(ctx context.Context, id string) (Receipt, error) {
	if s == nil || s.db == nil {
		return Receipt{}, fmt.Errorf("storage not configured")
	}
	row := s.db.QueryRowContext(ctx, `
        SELECT id, caller, from_asset, to_asset, amount_in, raw_output, fee_amount, net_output, fee_mille, charge_paid, refunded, executed_at
        FROM swap_receipts WHERE id = ?
    `, strings.TrimSpace(id))
	receipt, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Receipt{}, ErrReceiptNotFound
	}
	return receipt, err
}

// ListSwaps returns receipts newest first, optionally filtered by caller.
func (s *Storage) ListSwaps(ctx context.Context, account string, limit int) ([]Receipt, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage not configured")
	}
	limit = clampLimit(limit)
	query := `
        SELECT id, caller, from_asset, to_asset, amount_in, raw_output, fee_amount, net_output, fee_mille, charge_paid, refunded, executed_at
        FROM swap_receipts`
	args := []any{}
	if trimmed := strings.TrimSpace(account); trimmed != "" {
		query += ` WHERE caller = ?`
		args = append(args, strings.ToLower(trimmed))
	}
	query += ` ORDER BY executed_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	defer rows.Close()
	var out []Receipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, receipt)
	}
	return out, rows.Err()
}

// ListEvents returns events newest first, optionally filtered by type.
func (s *Storage) ListEvents(ctx context.Context, eventType string, limit int) ([]EventRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage not configured")
	}
	limit = clampLimit(limit)
	query := `SELECT id, type, attributes, recorded_at FROM exchange_events`
	args := []any{}
	if trimmed := strings.TrimSpace(eventType); trimmed != "" {
		query += ` WHERE type = ?`
		args = append(args, trimmed)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	var out []EventRecord
	for rows.Next() {
		var (
			rec   EventRecord
			attrs string
		)
		if err := rows.Scan(&rec.ID, &rec.Type, &attrs, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &rec.Attributes); err != nil {
			return nil, fmt.Errorf("decode event attributes: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (Receipt, error) {
	var r Receipt
	if err := row.Scan(&r.ID, &r.Caller, &r.From, &r.To, &r.AmountIn, &r.RawOutput, &r.FeeAmount,
		&r.NetOutput, &r.FeeMille, &r.ChargePaid, &r.Refunded, &r.ExecutedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan receipt: %w", err)
	}
	return r, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

const schema = `
CREATE TABLE IF NOT EXISTS exchange_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    type TEXT NOT NULL,
    attributes TEXT NOT NULL,
    recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exchange_events_type ON exchange_events(type, id);

CREATE TABLE IF NOT EXISTS swap_receipts (
    id TEXT PRIMARY KEY,
    caller TEXT NOT NULL,
    from_asset TEXT NOT NULL,
    to_asset TEXT NOT NULL,
    amount_in TEXT NOT NULL,
    raw_output TEXT NOT NULL,
    fee_amount TEXT NOT NULL,
    net_output TEXT NOT NULL,
    fee_mille INTEGER NOT NULL,
    charge_paid TEXT NOT NULL,
    refunded TEXT NOT NULL,
    executed_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_swap_receipts_caller ON swap_receipts(caller, executed_at);
`
