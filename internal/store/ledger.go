package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/timelock/internal/ir"
)

// OperationRecord is one ledger row.
type OperationRecord struct {
	ID             ir.OperationID `json:"id"`
	ReadyTimestamp uint64         `json:"ready_timestamp"`
}

// GetTimestamp returns the ready timestamp for id, or 0 if absent.
func (t *Tx) GetTimestamp(ctx context.Context, id ir.OperationID) (uint64, error) {
	var ts int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT ready_timestamp FROM operations WHERE id = ?
	`, id.String()).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get timestamp: %w", err)
	}
	return uint64(ts), nil
}

// SetTimestamp inserts or overwrites the ready timestamp for id.
// A zero timestamp is equivalent to ClearTimestamp.
func (t *Tx) SetTimestamp(ctx context.Context, id ir.OperationID, timestamp uint64) error {
	if timestamp == 0 {
		return t.ClearTimestamp(ctx, id)
	}
	ts, err := toSQLInt(timestamp)
	if err != nil {
		return fmt.Errorf("set timestamp: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO operations (id, ready_timestamp)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET ready_timestamp = excluded.ready_timestamp
	`, id.String(), ts)
	if err != nil {
		return fmt.Errorf("set timestamp: %w", err)
	}
	return nil
}

// ClearTimestamp resets id to unset. Clearing an absent id is a no-op.
func (t *Tx) ClearTimestamp(ctx context.Context, id ir.OperationID) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM operations WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("clear timestamp: %w", err)
	}
	return nil
}

// ListOperations returns every ledger row ordered by id.
// Returns an empty slice (not nil) when the ledger is empty.
func (t *Tx) ListOperations(ctx context.Context) ([]OperationRecord, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, ready_timestamp FROM operations
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	records := []OperationRecord{}
	for rows.Next() {
		var (
			rawID string
			ts    int64
		)
		if err := rows.Scan(&rawID, &ts); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		id, err := ir.ParseOperationID(rawID)
		if err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		records = append(records, OperationRecord{ID: id, ReadyTimestamp: uint64(ts)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return records, nil
}
