package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lumen/internal/cache"
	"github.com/roach88/lumen/internal/diag"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/optimize"
	"github.com/roach88/lumen/internal/testutil"
)

var quiet = slog.New(slog.DiscardHandler)

// writeTree creates files under a temporary directory and returns it.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	return dir
}

func build(t *testing.T, dir string, opts ...Option) *Report {
	t.Helper()
	paths, err := Discover(dir)
	require.NoError(t, err)
	opts = append([]Option{WithLogger(quiet), WithIDGenerator(testutil.NewSequentialIDGenerator())}, opts...)
	r, err := New(opts...).Build(context.Background(), paths)
	require.NoError(t, err)
	for _, u := range r.Units {
		require.NoError(t, u.Store.Validate(), u.Path)
	}
	return r
}

func topLevelNames(s *ir.Store) []string {
	var out []string
	for _, stmt := range s.Children(s.Root()) {
		if s.Kind(stmt) == ir.KindExportDecl && s.Str(stmt, ir.AttrForm) == ir.ExportDeclaration {
			stmt = s.Child(stmt, 0)
		}
		if names, ok := declaredNames(s, stmt); ok {
			out = append(out, names...)
		}
	}
	return out
}

var library = map[string]string{
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

func TestDiscover(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.js":                  "",
		"b.tsx":                 "",
		"sub/c.mts":             "",
		"types.d.ts":            "",
		"README.md":             "",
		".hidden/d.js":          "",
		"node_modules/pkg/e.js": "",
	})
	paths, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.js"),
		filepath.Join(dir, "b.tsx"),
		filepath.Join(dir, "sub", "c.mts"),
	}, paths)
}

func TestBuildShakesUnusedExports(t *testing.T) {
	dir := writeTree(t, library)
	r := build(t, dir)
	require.Len(t, r.Units, 2)
	assert.Empty(t, r.AllDiagnostics())

	lib := r.Unit(filepath.Join(dir, "lib.js"))
	require.NotNil(t, lib)
	assert.Equal(t, []string{"unused", "VERSION"}, lib.Shaken)
	assert.Equal(t, []string{"used"}, lib.Exports)
	assert.Equal(t, []string{"used", "helper"}, topLevelNames(lib.Store))
	assert.Equal(t, lib.Store.Len(), lib.Nodes)

	main := r.Unit(filepath.Join(dir, "main.js"))
	require.NotNil(t, main)
	assert.Equal(t, []string{filepath.Join(dir, "lib.js")}, main.Imports)
	assert.Empty(t, main.Shaken)
}

func TestBuildWithoutTreeShaking(t *testing.T) {
	dir := writeTree(t, library)
	r := build(t, dir, WithTreeShaking(false))
	lib := r.Unit(filepath.Join(dir, "lib.js"))
	require.NotNil(t, lib)
	assert.Empty(t, lib.Shaken)
	assert.Equal(t, []string{"used", "unused", "VERSION"}, lib.Exports)
}

func TestBuildEntryUnitsKeepExports(t *testing.T) {
	dir := writeTree(t, library)
	r := build(t, dir, WithEntryUnits(filepath.Join(dir, "lib.js"), filepath.Join(dir, "main.js")))
	lib := r.Unit(filepath.Join(dir, "lib.js"))
	assert.Empty(t, lib.Shaken)
}

func TestBuildShakingNeedsDCE(t *testing.T) {
	dir := writeTree(t, library)
	r := build(t, dir, WithOptions(optimize.Options{Level: 0}))
	assert.Empty(t, r.Unit(filepath.Join(dir, "lib.js")).Shaken)
}

func TestBuildNamespaceImportKeepsEverything(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.js": `import * as lib from "./lib.js"; console.log(lib.used());`,
		"lib.js":  library["lib.js"],
	})
	r := build(t, dir)
	assert.Empty(t, r.Unit(filepath.Join(dir, "lib.js")).Shaken)
}

func TestBuildShakesNamedExportList(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.js": `import { b as beta } from "./util/index.js"; console.log(beta);`,
		"util/index.js": `
			const a = 1, b = 2;
			export { a, b };
			export default function util() {}
		`,
	})
	r := build(t, dir)
	util := r.Unit(filepath.Join(dir, "util", "index.js"))
	require.NotNil(t, util)
	assert.Equal(t, []string{"a", "default"}, util.Shaken)
	assert.Equal(t, []string{"b"}, util.Exports)
	assert.Equal(t, []string{"b"}, topLevelNames(util.Store))
}

func TestBuildDirectoryImportResolvesIndex(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.ts":        `import { x } from "./util"; console.log(x);`,
		"util/index.ts":  `export const x: number = 1;`,
		"other/index.js": `import "lodash";`,
	})
	r := build(t, dir)
	assert.Equal(t, []string{filepath.Join(dir, "util", "index.ts")}, r.Unit(filepath.Join(dir, "main.ts")).Imports)
	assert.Empty(t, r.Unit(filepath.Join(dir, "other", "index.js")).Imports)
}

func TestBuildShakesUntilNothingChanges(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.js": `import { a } from "./a.js"; console.log(a());`,
		"a.js": `
			import { helper } from "./b.js";
			export function a() { return 1; }
			export function viaB() { return helper(); }
		`,
		"b.js": `export function helper() { return 2; } export const kept = 3;`,
	})
	r := build(t, dir)
	assert.Empty(t, r.AllDiagnostics())

	a := r.Unit(filepath.Join(dir, "a.js"))
	assert.Equal(t, []string{"viaB"}, a.Shaken)
	assert.Equal(t, []string{"a"}, topLevelNames(a.Store))
	// The import stays for its side effects, without specifiers.
	assert.Equal(t, []string{filepath.Join(dir, "b.js")}, a.Imports)

	b := r.Unit(filepath.Join(dir, "b.js"))
	assert.ElementsMatch(t, []string{"helper", "kept"}, b.Shaken)
	assert.Empty(t, b.Exports)
	assert.Empty(t, topLevelNames(b.Store))
}

func TestBuildResolvesDecomposedFileNames(t *testing.T) {
	composed := "caf" + string(rune(0xE9))
	decomposed := "cafe" + string(rune(0x301))
	dir := writeTree(t, map[string]string{
		"main.js":          `import { x } from "./` + composed + `.js"; console.log(x);`,
		decomposed + ".js": `export const x = 1;`,
	})
	r := build(t, dir)
	assert.Equal(t, []string{filepath.Join(dir, decomposed+".js")}, r.Unit(filepath.Join(dir, "main.js")).Imports)
}

func TestBuildReportsImportCycles(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.js": `import { b } from "./b.js"; export function a() { return b(); }`,
		"b.js": `import { a } from "./a.js"; export function b() { return 1; } export function c() { return a(); }`,
	})
	r := build(t, dir, WithTreeShaking(false))
	a, b := filepath.Join(dir, "a.js"), filepath.Join(dir, "b.js")
	require.Len(t, r.Diagnostics, 1)
	d := r.Diagnostics[0]
	assert.Equal(t, diag.SemanticWarning, d.Kind)
	assert.Equal(t, diag.CodeImportCycle, d.Code)
	assert.Equal(t, "import cycle: "+a+" -> "+b+" -> "+a, d.Message)
	assert.Equal(t, a, d.Path)
	assert.False(t, r.HasErrors())
}

func TestBuildUsesCache(t *testing.T) {
	dir := writeTree(t, library)
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), cache.WithLogger(quiet))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	first := build(t, dir, WithCache(c, 0))
	for _, u := range first.Units {
		assert.False(t, u.Cached, u.Path)
	}
	second := build(t, dir, WithCache(c, 0))
	for i, u := range second.Units {
		assert.True(t, u.Cached, u.Path)
		assert.Equal(t, first.Units[i].StoreID, u.StoreID)
		assert.Equal(t, first.Units[i].Store.Dump(), u.Store.Dump())

		want, got := first.Units[i].Stats, u.Stats
		want.PassTime, got.PassTime = nil, nil
		assert.Equal(t, want, got, u.Path)
		assert.NotZero(t, got.Rounds, u.Path)
	}

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)
	assert.EqualValues(t, 2, stats.Hits)
}

func TestBuildOptionsChangeCacheKey(t *testing.T) {
	dir := writeTree(t, library)
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), cache.WithLogger(quiet))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	build(t, dir, WithCache(c, 0))
	r := build(t, dir, WithCache(c, 0), WithOptions(optimize.Options{Level: 2}))
	for _, u := range r.Units {
		assert.False(t, u.Cached, u.Path)
	}
}

func TestBuildDoesNotCacheUnitsWithDiagnostics(t *testing.T) {
	dir := writeTree(t, map[string]string{"bad.js": "let x = ;"})
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), cache.WithLogger(quiet))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	r := build(t, dir, WithCache(c, 0))
	assert.True(t, r.HasErrors())
	u := r.Units[0]
	require.NotEmpty(t, u.Diagnostics)
	assert.Equal(t, filepath.Join(dir, "bad.js"), u.Diagnostics[0].Path)

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
}

func TestBuildAssignsStoreIDsInPathOrder(t *testing.T) {
	// Uneven sizes make workers finish out of order.
	files := make(map[string]string)
	for i := range 40 {
		var b strings.Builder
		for j := range (40 - i) * 25 {
			fmt.Fprintf(&b, "export const v%d = %d * %d;\n", j, i, j)
		}
		files[fmt.Sprintf("unit%02d.js", i)] = b.String()
	}
	dir := writeTree(t, files)

	for range 3 {
		r := build(t, dir, WithWorkers(8), WithTreeShaking(false))
		require.Len(t, r.Units, 40)
		for i, u := range r.Units {
			assert.Equal(t, filepath.Join(dir, fmt.Sprintf("unit%02d.js", i)), u.Path)
			assert.Equal(t, testutil.ID(uint64(i+1)), u.StoreID, u.Path)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	dir := writeTree(t, map[string]string{"a.js": "1;", "notes.txt": "x"})
	ctx := context.Background()

	_, err := New(WithLogger(quiet)).Build(ctx, []string{filepath.Join(dir, "notes.txt")})
	assert.ErrorContains(t, err, "unsupported source file extension")

	_, err = New(WithLogger(quiet)).Build(ctx, []string{filepath.Join(dir, "missing.js")})
	assert.ErrorContains(t, err, "failed to read source")

	_, err = New(WithLogger(quiet), WithOptions(optimize.Options{Level: 7})).Build(ctx, []string{filepath.Join(dir, "a.js")})
	assert.ErrorContains(t, err, "out of range")

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = New(WithLogger(quiet)).Build(canceled, []string{filepath.Join(dir, "a.js")})
	assert.ErrorIs(t, err, context.Canceled)
}
