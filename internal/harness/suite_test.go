package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, file, content string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b.yaml", minimalScenario)
	writeScenario(t, dir, "a.yml", minimalScenario)
	writeScenario(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, GoldenDirName), 0o755))
	writeScenario(t, filepath.Join(dir, GoldenDirName), "b.golden", "{}")

	files, err := ScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, files)

	files, err = ScenarioFiles(dir, "b*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yaml")}, files)

	_, err = ScenarioFiles(dir, "[")
	require.Error(t, err)
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "paging.golden"),
		GoldenPath(filepath.Join("scenarios", "paging.yaml")))
}

func TestRunFile_UpdateThenMatch(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "minimal.yaml", minimalScenario)

	out := RunFile(path, false)
	assert.True(t, out.Pass, out.Errors)
	assert.Empty(t, out.Golden)

	out = RunFile(path, true)
	assert.True(t, out.Pass, out.Errors)
	assert.Equal(t, "updated", out.Golden)
	assert.FileExists(t, GoldenPath(path))

	out = RunFile(path, false)
	assert.True(t, out.Pass, out.Errors)
	assert.Equal(t, "match", out.Golden)

	require.NoError(t, os.WriteFile(GoldenPath(path), []byte("{}"), 0o644))
	out = RunFile(path, false)
	assert.False(t, out.Pass)
	assert.Equal(t, "mismatch", out.Golden)
}

func TestRunFile_LoadError(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "broken.yaml", "name: [")

	out := RunFile(path, false)
	assert.False(t, out.Pass)
	assert.Equal(t, "broken.yaml", out.Name)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "failed to load scenario")
}
