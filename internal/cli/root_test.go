package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "timelock", cmd.Use)
	assert.Contains(t, cmd.Long, "minimum")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"init"}, {"hash"}, {"schedule"}, {"cancel"}, {"execute"}, {"state"}, {"delay"},
		{"roles", "grant"}, {"roles", "revoke"}, {"roles", "renounce"}, {"roles", "has"}, {"roles", "members"},
		{"events"}, {"replay"}, {"test"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, DefaultDatabase, dbFlag.DefValue)

	nowFlag := cmd.PersistentFlags().Lookup("now")
	require.NotNil(t, nowFlag)
	assert.Equal(t, "0", nowFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("as"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("metrics-file"))
}

func TestScheduleCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	scheduleCmd, _, err := cmd.Find([]string{"schedule"})
	require.NoError(t, err)

	for _, name := range []string{"calls", "calls-file", "batch", "predecessor", "salt", "salt-label", "random-salt", "delay"} {
		assert.NotNil(t, scheduleCmd.Flags().Lookup(name), "schedule should have --%s", name)
	}

	executeCmd, _, err := cmd.Find([]string{"execute"})
	require.NoError(t, err)
	assert.Nil(t, executeCmd.Flags().Lookup("random-salt"), "execute cannot use a random salt")
}

func TestInvalidFormat(t *testing.T) {
	_, err := runCLI(t, "delay", "--db", ":memory:", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}
