package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/timelock/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustUpdate runs fn in a committed transaction, failing the test on error.
func mustUpdate(t *testing.T, s *Store, fn func(ctx context.Context, tx *Tx) error) {
	t.Helper()
	ctx := context.Background()
	if err := s.Update(ctx, func(tx *Tx) error { return fn(ctx, tx) }); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
}

func testOperationID(label string) ir.OperationID {
	return ir.MustHashOperation(ir.NewCall("state", "noop"), ir.ZeroOperationID, ir.SaltFromString(label))
}
