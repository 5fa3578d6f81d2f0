package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/timelock/internal/ir"
)

func TestSystemClock_Now(t *testing.T) {
	before := uint64(time.Now().Unix())
	now := SystemClock{}.Now()
	after := uint64(time.Now().Unix())

	assert.GreaterOrEqual(t, now, before)
	assert.LessOrEqual(t, now, after)
}

func TestFixedClock_Now(t *testing.T) {
	c := FixedClock(1_700_000_000)
	assert.Equal(t, uint64(1_700_000_000), c.Now())
	assert.Equal(t, c.Now(), c.Now())
}

func TestDeriveState(t *testing.T) {
	const now = 1000

	tests := []struct {
		name string
		ts   uint64
		want ir.OperationState
	}{
		{"absent is unset", 0, ir.StateUnset},
		{"sentinel is done", ir.DoneTimestamp, ir.StateDone},
		{"future is waiting", now + 1, ir.StateWaiting},
		{"boundary is ready", now, ir.StateReady},
		{"past is ready", now - 500, ir.StateReady},
		{"just above sentinel is ready", ir.DoneTimestamp + 1, ir.StateReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveState(tt.ts, now))
		})
	}
}

func TestDeriveState_DoneNeverWaits(t *testing.T) {
	// Even a clock reading below the sentinel must not make Done look
	// like Waiting.
	assert.Equal(t, ir.StateDone, DeriveState(ir.DoneTimestamp, 0))
}
