package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderDef = "testdata/definitions/order.yaml"

func intPtr(n int) *int { return &n }

func boolPtr(b bool) *bool { return &b }

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, result, err := RunFile(context.Background(), path)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_ResultState(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/order_approved.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETE", result.State)
	require.Len(t, result.Trace, 5)
	assert.Equal(t, "start", result.Trace[0].Action)
	assert.Equal(t, "message paid", result.Trace[3].Action)
	require.NotNil(t, result.Trace[3].Matched)
	assert.Equal(t, 1, *result.Trace[3].Matched)
}

func TestRun_ExpectationMismatch(t *testing.T) {
	s := &Scenario{
		Name:       "mismatch",
		Definition: orderDef,
		Process:    "Order",
		Steps: []Step{
			{
				Do:     StepComplete,
				Task:   "Review",
				Choice: "Yes",
				Expect: &Expect{
					Ready:     []string{"Archive"},
					State:     "Flow_Paid_Archive:R",
					Completed: boolPtr(true),
				},
			},
			{
				Do:      StepMessage,
				Message: "paid",
				Expect:  &Expect{Matched: intPtr(2)},
			},
		},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "step 1 (complete Review): ready = []")
	assert.Contains(t, result.Errors[1], `state = "Flow_Ship_Paid:W"`)
	assert.Contains(t, result.Errors[2], "completed = false, expected true")
	assert.Contains(t, result.Errors[3], "matched = 1, expected 2")
}

func TestRun_UnexpectedErrorStops(t *testing.T) {
	s := &Scenario{
		Name:       "stops",
		Definition: orderDef,
		Process:    "Order",
		Steps: []Step{
			{Do: StepComplete, Task: "Archive"},
			{Do: StepComplete, Task: "Review", Choice: "No"},
		},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "NOT_READY", result.Trace[1].Error)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 1 (complete Archive)")
	assert.Equal(t, "Flow_Start_Review:R", result.State)
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	s := &Scenario{
		Name:       "no_error",
		Definition: orderDef,
		Process:    "Order",
		Steps: []Step{
			{Do: StepComplete, Task: "Review", Choice: "No", Expect: &Expect{Error: "NOT_READY"}},
		},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected error NOT_READY, step succeeded")
}

func TestRun_AttributeExpectations(t *testing.T) {
	s := &Scenario{
		Name:       "attrs",
		Definition: orderDef,
		Process:    "Order",
		Steps: []Step{
			{
				Do:     StepComplete,
				Task:   "Review",
				Choice: "Yes",
				Expect: &Expect{
					AttributesOf: "Paid",
					Attributes:   map[string]any{"shipped": false, "missing": 1},
				},
			},
			{
				Do:     StepEngineSteps,
				Expect: &Expect{AttributesOf: "Ghost", Attributes: map[string]any{"a": 1}},
			},
		},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors, "step 2 (engine_steps): no live task Ghost")
}

func TestRun_SetupFailures(t *testing.T) {
	ctx := context.Background()

	_, err := Run(ctx, &Scenario{Name: "x", Definition: "testdata/definitions/missing.yaml", Process: "Order"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load definition")

	_, err = Run(ctx, &Scenario{Name: "x", Definition: orderDef, Process: "Nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `process "Nope" not found`)

	_, err = Run(ctx, &Scenario{Name: "x", Definition: orderDef, Process: "Spin", MaxSteps: 20})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start Spin")
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "ROUND_TRIP", errorCode(errRoundTrip))
	assert.Equal(t, "ERROR", errorCode(assert.AnError))
}

func TestDescribeStep(t *testing.T) {
	assert.Equal(t, "complete Review", describeStep(Step{Do: StepComplete, Task: "Review"}))
	assert.Equal(t, "message paid", describeStep(Step{Do: StepMessage, Message: "paid"}))
	assert.Equal(t, "save_restore", describeStep(Step{Do: StepSaveRestore}))
}
