package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procstate/internal/engine"
)

const orderDef = "testdata/definitions/order.yaml"

type statusResponse struct {
	Status string    `json:"status"`
	Data   statusOut `json:"data"`
	Error  *CLIError `json:"error"`
}

type statusOut struct {
	engine.Status
	Matched *int `json:"matched"`
}

func decodeStatus(t *testing.T, out string) statusResponse {
	t.Helper()
	var resp statusResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestInstanceLifecycle(t *testing.T) {
	db := filepath.Join(t.TempDir(), "procstate.db")

	out, _, err := execute(t, "start", "--db", db, orderDef, "--process", "Order", "--format", "json")
	require.NoError(t, err)
	started := decodeStatus(t, out)
	assert.Equal(t, "ok", started.Status)
	id := started.Data.ID
	require.NotEmpty(t, id)
	assert.Equal(t, "Flow_Start_Review:R", started.Data.State)
	require.Len(t, started.Data.Ready, 1)
	assert.True(t, started.Data.Ready[0].Manual)
	assert.Equal(t, []string{"No", "Yes"}, started.Data.Ready[0].Choices)

	out, _, err = execute(t, "complete", "--db", db, id, "Review", "--choice", "Yes", "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, "Flow_Ship_Paid:W", decodeStatus(t, out).Data.State)

	out, _, err = execute(t, "message", "--db", db, id, "paid", "--payload", "amount=10", "--format", "json")
	require.NoError(t, err)
	delivered := decodeStatus(t, out)
	require.NotNil(t, delivered.Data.Matched)
	assert.Equal(t, 1, *delivered.Data.Matched)
	assert.Equal(t, "Flow_Paid_Archive:R", delivered.Data.State)

	out, _, err = execute(t, "show", "--db", db, id)
	require.NoError(t, err)
	assert.Contains(t, out, "State: Flow_Paid_Archive:R")
	assert.Contains(t, out, "READY   Archive [manual]")

	out, _, err = execute(t, "list", "--db", db, "--active", "--format", "json")
	require.NoError(t, err)
	var listed struct {
		Data []InstanceSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed.Data, 1)
	assert.Equal(t, id, listed.Data[0].ID)
	assert.Equal(t, "Order", listed.Data[0].Process)

	out, _, err = execute(t, "complete", "--db", db, id, "Archive")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Completed")

	out, _, err = execute(t, "history", "--db", db, id, "--format", "json")
	require.NoError(t, err)
	var hist struct {
		Data historyView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &hist))
	ops := make([]string, 0, len(hist.Data.Entries))
	for _, e := range hist.Data.Entries {
		ops = append(ops, e.Operation)
	}
	assert.Equal(t, []string{"start", "complete Review", "message paid", "complete Archive"}, ops)
	assert.Equal(t, "COMPLETE", hist.Data.Entries[3].State)

	out, _, err = execute(t, "list", "--db", db, "--active")
	require.NoError(t, err)
	assert.Contains(t, out, "No instances.")
}

func TestInstanceErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "procstate.db")

	out, _, err := execute(t, "show", "--db", db, "missing", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp := decodeStatus(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_UNKNOWN_INSTANCE", resp.Error.Code)

	out, _, err = execute(t, "start", "--db", db, orderDef, "--process", "Nope", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, "E_UNKNOWN_PROCESS", decodeStatus(t, out).Error.Code)

	out, _, err = execute(t, "start", "--db", db, orderDef, "--process", "Order", "--format", "json")
	require.NoError(t, err)
	id := decodeStatus(t, out).Data.ID

	_, errOut, err := execute(t, "complete", "--db", db, id, "Archive")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut, "Error [E_NOT_READY]")

	_, _, err = execute(t, "complete", "--db", db, id, "Review", "--attr", "broken")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "expected key=value")
}

func TestParseAssignments(t *testing.T) {
	attrs, err := parseAssignments([]string{"amount=10", "rush=true", "note=call back", "ratio=0.5", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"amount": 10,
		"rush":   true,
		"note":   "call back",
		"ratio":  0.5,
		"empty":  "",
	}, attrs)

	_, err = parseAssignments([]string{"=1"})
	require.Error(t, err)
}
