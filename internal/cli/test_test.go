package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const foldScenario = `name: fold
description: "Literal arithmetic folds"
source: |
  console.log(2 * 3);
assertions:
  - type: no_errors
  - type: output
    lines: ["6"]
  - type: behavior_preserved
`

const failingScenario = `name: wrong_output
description: "Expects the wrong output"
source: |
  console.log(1);
assertions:
  - type: output
    lines: ["2"]
`

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute(t, NewTestCommand, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, _, err := execute(t, NewTestCommand, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, _, err := execute(t, NewTestCommand, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, _, err := execute(t, NewTestCommand, "json", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "ok", decodeResponse(t, out).Status)
}

func TestTestCommandRunsHarnessScenarios(t *testing.T) {
	out, _, err := execute(t, NewTestCommand, "text", filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ fold_log")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandReportsFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fold.yaml", foldScenario)
	writeFile(t, dir, "wrong.yaml", failingScenario)

	out, _, err := execute(t, NewTestCommand, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ fold")
	assert.Contains(t, out, "✗ wrong_output")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandJSONFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wrong.yaml", failingScenario)

	out, _, err := execute(t, NewTestCommand, "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.False(t, resp.Data.Scenarios[0].Pass)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\nunknown_field: 1\n")

	out, _, err := execute(t, NewTestCommand, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "Load error")
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	dir := t.TempDir()
	scenario := writeFile(t, dir, "fold.yaml", foldScenario)
	golden := filepath.Join(dir, "golden", "fold.golden")

	out, _, err := execute(t, NewTestCommand, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ fold (golden updated)")

	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "scenario: fold\n"), string(data))
	assert.Contains(t, string(data), "output:\n  6\n")

	out, _, err = execute(t, NewTestCommand, "text", dir)
	require.NoError(t, err, out)

	// A changed program no longer matches its snapshot.
	require.NoError(t, os.WriteFile(scenario, []byte(strings.Replace(foldScenario, "2 * 3", "6", 1)), 0o644))
	out, _, err = execute(t, NewTestCommand, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "Golden file mismatch")
}

func TestCheckScenarioGoldenStates(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "fold.yaml", foldScenario)

	sr := checkScenario(file, false)
	assert.True(t, sr.Pass, sr.Errors)
	assert.Equal(t, GoldenNone, sr.Golden)

	sr = checkScenario(file, true)
	assert.True(t, sr.Pass)
	assert.Equal(t, GoldenUpdated, sr.Golden)

	sr = checkScenario(file, false)
	assert.True(t, sr.Pass, sr.Errors)
	assert.Equal(t, GoldenMatched, sr.Golden)

	writeFile(t, dir, "golden/fold.golden", "scenario: fold\nstale\n")
	sr = checkScenario(file, false)
	assert.False(t, sr.Pass)
	assert.Equal(t, GoldenMismatch, sr.Golden)
	assert.Equal(t, []string{"Golden file mismatch (run with --update to regenerate)"}, sr.Errors)
}

func TestCheckScenarioKeepsAssertionErrorsWithMismatch(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "wrong.yaml", failingScenario)
	writeFile(t, dir, "golden/wrong.golden", "scenario: wrong_output\n")

	sr := checkScenario(file, false)
	assert.False(t, sr.Pass)
	assert.Equal(t, GoldenMismatch, sr.Golden)
	require.Len(t, sr.Errors, 2)
	assert.Contains(t, sr.Errors[1], "Golden file mismatch")
}

func TestTestCommandJSONReportsGoldenState(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fold.yaml", foldScenario)

	_, _, err := execute(t, NewTestCommand, "json", dir, "--update")
	require.NoError(t, err)
	out, _, err := execute(t, NewTestCommand, "json", dir)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, GoldenMatched, resp.Data.Scenarios[0].Golden)
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "test1.yaml", "")
	writeFile(t, tmpDir, "test2.yml", "")
	writeFile(t, tmpDir, "ignore.txt", "")
	writeFile(t, tmpDir, "sub/nested.yaml", "")

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "inline-add.yaml", "")
	writeFile(t, tmpDir, "inline-rec.yaml", "")
	writeFile(t, tmpDir, "fold-log.yaml", "")

	files, err := findScenarioFiles(tmpDir, "inline-*")
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.True(t, strings.HasPrefix(filepath.Base(f), "inline-"), f)
	}
}

func TestGoldenFilePath(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"/path/to/scenario.yaml", "/path/to/golden/scenario.golden"},
		{"/path/to/scenario.yml", "/path/to/golden/scenario.golden"},
		{"scenarios/test.yaml", "scenarios/golden/test.golden"},
	}

	for _, tc := range testCases {
		assert.Equal(t, filepath.FromSlash(tc.expected), goldenFilePath(filepath.FromSlash(tc.input)))
	}
}
