package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/testutil"
)

// execute runs one subcommand with deterministic store ids and returns
// its stdout and stderr.
func execute(t *testing.T, newCmd func(*RootOptions) *cobra.Command, format string, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := newCmd(&RootOptions{Format: format, IDGenerator: testutil.NewSequentialIDGenerator()})
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestParseCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "sum.js", "console.log(1 + 2);\n")

	out, errOut, err := execute(t, NewParseCommand, "text", path)
	require.NoError(t, err)
	assert.Empty(t, errOut)
	assert.True(t, strings.HasPrefix(out, "Program\n"), out)
	assert.Contains(t, out, "Binary")
}

func TestParseCommand_SyntaxError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.js", "let = ;\n")

	out, errOut, err := execute(t, NewParseCommand, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut, path+":1:")
	assert.Contains(t, errOut, "[E301]")
	assert.True(t, strings.HasPrefix(out, "Program\n"), "partial IR is still printed")
}

func TestParseCommand_ModeOverride(t *testing.T) {
	path := writeFile(t, t.TempDir(), "widget.js", "const el = <div>hi</div>;\n")

	_, _, err := execute(t, NewParseCommand, "text", path)
	require.Error(t, err, "JSX is a syntax error in plain mode")

	out, _, err := execute(t, NewParseCommand, "text", path, "--mode", "jsx")
	require.NoError(t, err)
	assert.Contains(t, out, "JSXElement")
}

func TestParseCommand_CommandErrors(t *testing.T) {
	dir := t.TempDir()
	notes := writeFile(t, dir, "notes.txt", "hello")
	src := writeFile(t, dir, "a.js", "1;")

	tests := []struct {
		name string
		args []string
		code string
		want string
	}{
		{"unsupported_extension", []string{notes}, ErrCodeMode, "unsupported source file extension"},
		{"missing_file", []string{filepath.Join(dir, "missing.js")}, ErrCodeNotFound, "failed to read source"},
		{"unknown_mode", []string{src, "--mode", "coffee"}, ErrCodeMode, "unknown language mode"},
		{"invalid_emit", []string{src, "--emit", "xml"}, ErrCodeGeneric, "invalid emit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, NewParseCommand, "text", tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestParseCommand_JSONErrorCodes(t *testing.T) {
	dir := t.TempDir()
	notes := writeFile(t, dir, "notes.txt", "hello")

	out, _, err := execute(t, NewParseCommand, "json", notes)
	require.Error(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMode, resp.Error.Code)

	out, _, err = execute(t, NewParseCommand, "json", filepath.Join(dir, "gone.js"))
	require.Error(t, err)
	resp = decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestSourceFailure(t *testing.T) {
	inv := &ir.InvariantError{Violations: []string{"root #1 is not live"}, Dump: "#1 -"}
	tests := []struct {
		name string
		err  error
		exit int
		code string
	}{
		{"mode", &sourceError{ExitCommandError, ErrCodeMode, "cannot choose language mode", errors.New("bad")}, ExitCommandError, "E006"},
		{"invariant", &sourceError{ExitFailure, ErrCodeInvariant, "IR invariant violated", inv}, ExitFailure, "E014"},
		{"untagged", errors.New("boom"), ExitFailure, "E001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			err := sourceFailure(&OutputFormatter{Format: "text", Writer: buf}, tt.err)
			assert.Equal(t, tt.exit, GetExitCode(err))
			assert.True(t, strings.HasPrefix(buf.String(), "Error ["+tt.code+"]"), buf.String())
		})
	}
}

func TestParseCommand_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.ts", "const n: number = 1;\n")

	out, _, err := execute(t, NewParseCommand, "json", path, "--emit", "ir")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "typescript", data["mode"])
	assert.Equal(t, testutil.ID(1), data["store_id"])
	assert.IsType(t, map[string]any{}, data["ir"])
	assert.Empty(t, data["diagnostics"])
}

func TestOptimizeCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "sum.js", "console.log(1 + 2);\n")

	out, _, err := execute(t, NewOptimizeCommand, "text", path)
	require.NoError(t, err)
	assert.Contains(t, out, `Number raw="3" value=3`)
	assert.NotContains(t, out, "Binary")
}

func TestOptimizeCommand_LevelZeroLeavesIR(t *testing.T) {
	path := writeFile(t, t.TempDir(), "sum.js", "console.log(1 + 2);\n")

	out, _, err := execute(t, NewOptimizeCommand, "text", path, "--level", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Binary")
}

func TestOptimizeCommand_JSONStats(t *testing.T) {
	path := writeFile(t, t.TempDir(), "sum.js", "console.log(1 + 2);\n")

	out, _, err := execute(t, NewOptimizeCommand, "json", path)
	require.NoError(t, err)

	data := decodeResponse(t, out).Data.(map[string]any)
	stats, ok := data["stats"].(map[string]any)
	require.True(t, ok, "stats present: %v", data)
	assert.Equal(t, true, stats["converged"])
	assert.Equal(t, float64(1), stats["folded"])
}

func TestOptimizeCommand_InvalidLevel(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.js", "1;")

	out, _, err := execute(t, NewOptimizeCommand, "text", path, "--level", "7")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "out of range")
}

func TestParseThenDecode(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.js", "let x = 1;\nconsole.log(x);\n")
	irPath := filepath.Join(dir, "a.ir.json")

	dump, _, err := execute(t, NewParseCommand, "text", path)
	require.NoError(t, err)

	out, _, err := execute(t, NewParseCommand, "text", path, "--emit", "ir", "-o", irPath)
	require.NoError(t, err)
	assert.Equal(t, "Wrote "+irPath+"\n", out)

	out, _, err = execute(t, NewDecodeCommand, "text", irPath)
	require.NoError(t, err)
	header, body, ok := strings.Cut(out, "\n")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(header, "# store "+testutil.ID(1)+" ("), header)
	assert.Equal(t, dump, body)
}

func TestDecodeCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	garbage := writeFile(t, dir, "bad.ir.json", `{"format": "nope"}`)
	truncated := writeFile(t, dir, "bad.frames", "\x10{}")

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing", filepath.Join(dir, "missing.json"), "failed to read IR"},
		{"bad_envelope", garbage, "store 0"},
		{"truncated_frame", truncated, "failed to read frames"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, NewDecodeCommand, "text", tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, tt.want)
		})
	}
}

var project = map[string]string{
	"main.js": `
		import { used } from "./lib";
		console.log(used());
	`,
	"lib.js": `
		export function used() { return helper(); }
		function helper() { return 1; }
		export function unused() { return 2; }
		export const VERSION = "1";
	`,
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		writeFile(t, dir, name, src)
	}
	return dir
}

func TestBuildCommand(t *testing.T) {
	dir := writeProject(t, project)
	frames := filepath.Join(t.TempDir(), "out.lumen")

	out, _, err := execute(t, NewBuildCommand, "text", dir, "--no-cache", "-o", frames)
	require.NoError(t, err)
	assert.Contains(t, out, "(shaken: unused, VERSION)")
	assert.Contains(t, out, "Built 2 unit(s): 0 error(s), 0 warning(s)")
	assert.NoDirExists(t, filepath.Join(dir, ".lumen"))

	out, _, err = execute(t, NewDecodeCommand, "text", frames)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "# store "))
	assert.NotContains(t, out, `"unused"`)
}

func TestBuildCommand_Cache(t *testing.T) {
	dir := writeProject(t, project)

	out, _, err := execute(t, NewBuildCommand, "text", dir)
	require.NoError(t, err)
	assert.NotContains(t, out, "cached")
	assert.FileExists(t, filepath.Join(dir, ".lumen", "cache.db"))

	out, _, err = execute(t, NewBuildCommand, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "main.js")
	assert.Equal(t, 2, strings.Count(out, "cached"))
}

func TestBuildCommand_ProjectConfig(t *testing.T) {
	files := map[string]string{"lumen.cue": "tree_shaking: false\ncache: enabled: false\n"}
	for name, src := range project {
		files[name] = src
	}
	dir := writeProject(t, files)

	out, _, err := execute(t, NewBuildCommand, "json", dir)
	require.NoError(t, err)
	assert.NotContains(t, out, "shaken")
	assert.NoDirExists(t, filepath.Join(dir, ".lumen"))

	resp := decodeResponse(t, out)
	units := resp.Data.(map[string]any)["units"].([]any)
	assert.Len(t, units, 2)
}

func TestBuildCommand_Errors(t *testing.T) {
	t.Run("missing_directory", func(t *testing.T) {
		out, _, err := execute(t, NewBuildCommand, "text", filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "directory not found")
	})

	t.Run("invalid_config", func(t *testing.T) {
		dir := writeProject(t, map[string]string{"lumen.cue": "level: 9\n", "a.js": "1;"})
		out, _, err := execute(t, NewBuildCommand, "text", dir)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E010]")
	})

	t.Run("syntax_error", func(t *testing.T) {
		dir := writeProject(t, map[string]string{"a.js": "let = ;"})
		out, _, err := execute(t, NewBuildCommand, "text", dir, "--no-cache")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "Built 1 unit(s):")
		assert.Contains(t, out, "[E301]")
	})
}

func TestCheckCommand(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"a.js": `import { b } from "./b"; export const a = 1; console.log(b);`,
		"b.js": `import { a } from "./a"; export const b = 2; console.log(a);`,
	})

	out, _, err := execute(t, NewCheckCommand, "text", dir)
	require.NoError(t, err, "warnings do not fail the check")
	assert.Contains(t, out, "[W601]: import cycle:")
	assert.Contains(t, out, "2 file(s) checked: 0 error(s)")
}

func TestCheckCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.js", "console.log(1);")
	bad := writeFile(t, dir, "bad.js", "let = ;")

	out, _, err := execute(t, NewCheckCommand, "json", good, bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	data := decodeResponse(t, out).Data.(map[string]any)
	assert.Equal(t, float64(2), data["files"])
	assert.Greater(t, data["errors"], float64(0))
}

func TestCheckCommand_MissingPath(t *testing.T) {
	out, _, err := execute(t, NewCheckCommand, "text", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "failed to find sources")
}
