package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PutState writes a host state key.
func (t *Tx) PutState(ctx context.Context, key, value string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO host_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("put state: %w", err)
	}
	return nil
}

// DeleteState removes a host state key. Missing keys are a no-op.
func (t *Tx) DeleteState(ctx context.Context, key string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM host_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}

// GetState reads a host state key.
func (t *Tx) GetState(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := t.tx.QueryRowContext(ctx, `SELECT value FROM host_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state: %w", err)
	}
	return value, true, nil
}

// ListState returns all host state.
func (t *Tx) ListState(ctx context.Context) (map[string]string, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT key, value FROM host_state ORDER BY key COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}
	defer rows.Close()

	state := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		state[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state: %w", err)
	}
	return state, nil
}
