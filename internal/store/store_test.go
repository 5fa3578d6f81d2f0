package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"operations", "settings", "role_members", "role_admins", "events", "host_state"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer s.Close()

	id := testOperationID("mem")
	mustUpdate(t, s, func(ctx context.Context, tx *Tx) error {
		return tx.SetTimestamp(ctx, id, 42)
	})

	// The single pooled connection keeps the in-memory database alive.
	err = s.View(context.Background(), func(tx *Tx) error {
		ts, err := tx.GetTimestamp(context.Background(), id)
		if err != nil {
			return err
		}
		if ts != 42 {
			t.Errorf("GetTimestamp() = %d, want 42", ts)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestSchemaVersion(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}

	var name string
	err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name='idx_events_kind'").Scan(&name)
	if err != nil {
		t.Errorf("idx_events_kind missing: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name string
		want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.want); err != nil {
			t.Error(err)
		}
	}
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	id := testOperationID("rollback")
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx *Tx) error {
		if err := tx.SetTimestamp(ctx, id, 100); err != nil {
			return err
		}
		if err := tx.PutState(ctx, "k", "v"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}

	err = s.View(ctx, func(tx *Tx) error {
		ts, err := tx.GetTimestamp(ctx, id)
		if err != nil {
			return err
		}
		if ts != 0 {
			t.Errorf("timestamp after rollback = %d, want 0", ts)
		}
		_, ok, err := tx.GetState(ctx, "k")
		if err != nil {
			return err
		}
		if ok {
			t.Error("host state survived rollback")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTxFromContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := TxFromContext(ctx); ok {
		t.Error("TxFromContext on bare context should be false")
	}

	s := createTestStore(t)
	err := s.View(ctx, func(tx *Tx) error {
		got, ok := TxFromContext(ContextWithTx(ctx, tx))
		if !ok || got != tx {
			t.Error("TxFromContext did not return the installed tx")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
