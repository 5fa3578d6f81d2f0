package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/timelock/internal/ir"
)

const (
	settingMinDelay    = "min_delay"
	settingSelf        = "self"
	settingInitialized = "initialized"
)

func (t *Tx) getSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := t.tx.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, true, nil
}

func (t *Tx) putSetting(ctx context.Context, key, value string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("put setting %q: %w", key, err)
	}
	return nil
}

// MinDelay returns the minimum delay register. 0 before initialization.
func (t *Tx) MinDelay(ctx context.Context) (uint64, error) {
	raw, ok, err := t.getSetting(ctx, settingMinDelay)
	if err != nil || !ok {
		return 0, err
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("min delay: corrupt value %q: %w", raw, err)
	}
	return v, nil
}

// SetMinDelay overwrites the minimum delay register.
func (t *Tx) SetMinDelay(ctx context.Context, delay uint64) error {
	return t.putSetting(ctx, settingMinDelay, strconv.FormatUint(delay, 10))
}

// Initialized reports whether the one-time initializer has run, and the
// principal the timelock was initialized as.
func (t *Tx) Initialized(ctx context.Context) (bool, ir.Principal, error) {
	_, ok, err := t.getSetting(ctx, settingInitialized)
	if err != nil || !ok {
		return false, "", err
	}
	self, _, err := t.getSetting(ctx, settingSelf)
	if err != nil {
		return false, "", err
	}
	return true, ir.Principal(self), nil
}

// MarkInitialized records that initialization ran for self.
func (t *Tx) MarkInitialized(ctx context.Context, self ir.Principal) error {
	if err := t.putSetting(ctx, settingSelf, string(self)); err != nil {
		return err
	}
	return t.putSetting(ctx, settingInitialized, "1")
}
