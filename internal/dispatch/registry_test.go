package dispatch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/store"
)

func TestRegistry_Invoke(t *testing.T) {
	r := NewRegistry()
	var got ir.IRArray
	r.Register("vault", "withdraw", func(_ context.Context, args ir.IRArray) error {
		got = args
		return nil
	})

	err := r.Invoke(context.Background(), ir.NewCall("vault", "withdraw", ir.IRInt(5)))
	require.NoError(t, err)
	assert.Equal(t, ir.IRArray{ir.IRInt(5)}, got)

	err = r.Invoke(context.Background(), ir.NewCall("vault", "deposit"))
	assert.ErrorIs(t, err, ErrNoHandler)
	assert.Contains(t, err.Error(), "vault.deposit")

	assert.Equal(t, []string{"vault.withdraw"}, r.Selectors())
}

func TestStateHost(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "host.db"))
	require.NoError(t, err)
	defer s.Close()

	r := NewRegistry()
	RegisterStateHost(r)
	ctx := context.Background()

	err = s.Update(ctx, func(tx *store.Tx) error {
		txCtx := store.ContextWithTx(ctx, tx)
		require.NoError(t, r.Invoke(txCtx, ir.NewCall(StateTarget, "set", ir.IRString("greeting"), ir.IRString("hi"))))
		require.NoError(t, r.Invoke(txCtx, ir.NewCall(StateTarget, "set", ir.IRString("n"), ir.IRInt(7))))
		require.NoError(t, r.Invoke(txCtx, ir.NewCall(StateTarget, "set", ir.IRString("gone"), ir.IRBool(true))))
		require.NoError(t, r.Invoke(txCtx, ir.NewCall(StateTarget, "delete", ir.IRString("gone"))))

		all, err := tx.ListState(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"greeting": "hi", "n": "7"}, all)
		return nil
	})
	require.NoError(t, err)
}

func TestStateHost_Errors(t *testing.T) {
	r := NewRegistry()
	RegisterStateHost(r)
	ctx := context.Background()

	err := r.Invoke(ctx, ir.NewCall(StateTarget, "fail", ir.IRString("boom")))
	assert.ErrorIs(t, err, ErrHostFailure)
	assert.Contains(t, err.Error(), "boom")

	err = r.Invoke(ctx, ir.NewCall(StateTarget, "set", ir.IRString("k"), ir.IRString("v")))
	assert.ErrorIs(t, err, ErrNoTransaction)

	err = r.Invoke(ctx, ir.NewCall(StateTarget, "set", ir.IRInt(1), ir.IRString("v")))
	assert.ErrorIs(t, err, ErrBadArgs)

	err = r.Invoke(ctx, ir.NewCall(StateTarget, "delete"))
	assert.ErrorIs(t, err, ErrBadArgs)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   ir.IRValue
		want string
	}{
		{ir.IRString("plain"), "plain"},
		{ir.IRInt(-3), "-3"},
		{ir.IRBool(false), "false"},
		{ir.IRObject{"b": ir.IRInt(1), "a": ir.IRArray{}}, `{"a":[],"b":1}`},
	}
	for _, tt := range tests {
		got, err := FormatValue(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
