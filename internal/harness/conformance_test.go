package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// projectRoot returns the module root. Tests run from the package
// directory.
func projectRoot() string {
	root, _ := filepath.Abs("../..")
	return root
}

// TestConformanceScenarios runs every scenario under testdata/scenarios.
// Scenarios with a golden trace must also match it.
func TestConformanceScenarios(t *testing.T) {
	files, err := ScenarioFiles(filepath.Join(projectRoot(), "testdata", "scenarios"), "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			out := RunFile(file, false)
			assert.True(t, out.Pass, "errors: %v", out.Errors)
		})
	}
}
