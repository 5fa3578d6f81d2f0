package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	t0        uint64 = 1_700_000_000
	greetCall        = `{"target":"state","selector":"set","args":["greeting","hello"]}`
)

func at(ts uint64) string {
	return strconv.FormatUint(ts, 10)
}

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// newLedger initializes a ledger with proposer alice, executor bob, admin
// ops and min_delay 3600, and returns its path.
func newLedger(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "timelock.db")
	_, err := runCLI(t, "init", "--db", db, "--now", at(t0),
		"--min-delay", "3600", "--proposer", "alice", "--executor", "bob", "--admin", "ops")
	require.NoError(t, err)
	return db
}

type jsonResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

func decodeResponse(t *testing.T, out string) jsonResponse {
	t.Helper()
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &resp), "output: %s", out)
	return resp
}
