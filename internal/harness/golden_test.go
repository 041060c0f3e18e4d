package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			require.Equal(t, name, s.Name, "golden file is named after the scenario")

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestMarshalTrace_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/approval_review.yaml")
	require.NoError(t, err)

	first, err := RunWithGolden(t, s)
	require.NoError(t, err)
	second, err := RunWithGolden(t, s)
	require.NoError(t, err)

	a, err := MarshalTrace(s, first)
	require.NoError(t, err)
	b, err := MarshalTrace(s, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
