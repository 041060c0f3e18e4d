package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "procstate", cmd.Use)
	assert.Contains(t, cmd.Long, "serialized state")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"start", "complete", "message", "show", "history", "list", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
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
}

func TestDatabaseFlagRequired(t *testing.T) {
	for _, args := range [][]string{
		{"start", "def.yaml", "--process", "Order"},
		{"complete", "id", "Review"},
		{"message", "id", "paid"},
		{"show", "id"},
		{"history", "id"},
		{"list"},
	} {
		t.Run(args[0], func(t *testing.T) {
			_, _, err := execute(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "required flag")
			assert.Contains(t, err.Error(), "db")
		})
	}
}

func TestStartRequiresProcess(t *testing.T) {
	_, _, err := execute(t, "start", "--db", "x.db", "def.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "process"`)
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "list", "--db", "x.db", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}
