package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timelock/internal/ir"
)

const validScenario = `
name: test_scenario
description: "Test scenario for validation"
min_delay: 60
proposers: [alice]
executors: [bob]
operations:
  first:
    calls:
      - {target: state, selector: set, args: [k, 1]}
    salt: s1
  second:
    batch: true
    predecessor: first
    calls:
      - {target: state, selector: set, args: [k, 2]}
      - {target: state, selector: delete, args: [k]}
steps:
  - {action: schedule, caller: alice, op: first, delay: 60, expect: ok}
  - {advance: 60}
  - {action: execute, caller: bob, op: first, expect: ok, then: Done}
assertions:
  - {type: operation_state, op: first, state: Done}
  - {type: min_delay, value: 60}
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario(writeScenario(t, validScenario))
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, uint64(60), scenario.MinDelay)
	assert.Equal(t, DefaultStartTime, scenario.StartTime)
	assert.Equal(t, []string{"alice"}, scenario.Proposers)
	assert.Len(t, scenario.Operations, 2)
	assert.Len(t, scenario.Steps, 3)
	assert.Len(t, scenario.Assertions, 2)

	second := scenario.Operations["second"]
	assert.True(t, second.Batch)
	assert.Equal(t, "first", second.Predecessor)

	require.NotNil(t, scenario.Steps[0].Delay)
	assert.Equal(t, uint64(60), *scenario.Steps[0].Delay)
	assert.Equal(t, uint64(60), scenario.Steps[1].Advance)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read scenario")
}

func TestParseScenario_UnknownFieldRejected(t *testing.T) {
	_, err := ParseScenario([]byte(validScenario + "\nflow_token: abc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flow_token")
}

func TestParseScenario_ValidationErrors(t *testing.T) {
	base := func(steps string) string {
		return `
name: bad
description: "bad"
min_delay: 60
proposers: [alice]
executors: [bob]
operations:
  op:
    calls:
      - {target: state, selector: set, args: [k, v]}
steps:
` + steps
	}

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: x\nsteps:\n  - {advance: 1}\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: x\nsteps:\n  - {advance: 1}\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			content: "name: x\ndescription: x\n",
			wantErr: "at least one step",
		},
		{
			name:    "unknown action",
			content: base("  - {action: launch, caller: alice, op: op}\n"),
			wantErr: `unknown action "launch"`,
		},
		{
			name:    "unknown operation",
			content: base("  - {action: execute, caller: bob, op: other}\n"),
			wantErr: `unknown operation "other"`,
		},
		{
			name:    "schedule without delay",
			content: base("  - {action: schedule, caller: alice, op: op}\n"),
			wantErr: "schedule requires delay",
		},
		{
			name:    "unknown outcome",
			content: base("  - {action: execute, caller: bob, op: op, expect: EXPLODED}\n"),
			wantErr: `unknown expected outcome "EXPLODED"`,
		},
		{
			name:    "bad then",
			content: base("  - {action: execute, caller: bob, op: op, then: Pending}\n"),
			wantErr: "unknown operation state",
		},
		{
			name:    "empty step",
			content: base("  - {}\n"),
			wantErr: "neither an action nor a clock move",
		},
		{
			name:    "at and advance",
			content: base("  - {at: 5, advance: 5}\n"),
			wantErr: "mutually exclusive",
		},
		{
			name:    "clock step with expect",
			content: base("  - {advance: 5, expect: ok}\n"),
			wantErr: "cannot carry expect",
		},
		{
			name:    "bad role",
			content: base("  - {action: grant_role, caller: admin, role: OWNER, account: x}\n"),
			wantErr: `unknown role "OWNER"`,
		},
		{
			name:    "role without account",
			content: base("  - {action: revoke_role, caller: admin, role: PROPOSER}\n"),
			wantErr: "requires caller and account",
		},
		{
			name:    "unknown assertion",
			content: base("  - {advance: 1}\nassertions:\n  - {type: trace_contains}\n"),
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name:    "has_role without holds",
			content: base("  - {advance: 1}\nassertions:\n  - {type: has_role, role: EXECUTOR, account: bob}\n"),
			wantErr: "requires account and holds",
		},
		{
			name:    "host_state absent and equals",
			content: base("  - {advance: 1}\nassertions:\n  - {type: host_state, key: k, equals: v, absent: true}\n"),
			wantErr: "mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_OperationErrors(t *testing.T) {
	tests := []struct {
		name    string
		ops     string
		wantErr string
	}{
		{
			name:    "no calls",
			ops:     "  op: {calls: []}\n",
			wantErr: "has no calls",
		},
		{
			name:    "unknown predecessor",
			ops:     "  op: {predecessor: ghost, calls: [{target: state, selector: set, args: [k, v]}]}\n",
			wantErr: `unknown predecessor "ghost"`,
		},
		{
			name:    "self predecessor",
			ops:     "  op: {predecessor: op, calls: [{target: state, selector: set, args: [k, v]}]}\n",
			wantErr: "its own predecessor",
		},
		{
			name:    "multiple calls without batch",
			ops:     "  op: {calls: [{target: state, selector: set, args: [k, v]}, {target: state, selector: delete, args: [k]}]}\n",
			wantErr: "is not a batch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "name: x\ndescription: x\noperations:\n" + tt.ops + "steps:\n  - {advance: 1}\n"
			_, err := ParseScenario([]byte(content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOperationCalls(t *testing.T) {
	op := Operation{Calls: []CallSpec{
		{Target: "state", Selector: "set", Args: []any{"k", 7, true, []any{"a"}, map[string]any{"x": "y"}}},
		{Target: "timelock", Selector: "update_delay"},
	}}

	calls, err := op.calls()
	require.NoError(t, err)
	require.Len(t, calls, 2)

	assert.Equal(t, ir.NewCall("state", "set",
		ir.IRString("k"), ir.IRInt(7), ir.IRBool(true),
		ir.IRArray{ir.IRString("a")}, ir.IRObject{"x": ir.IRString("y")},
	), calls[0])
	assert.Equal(t, ir.IRArray{}, calls[1].Args, "no args hashes as an empty list")
}
