package optimize

import (
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lumen/internal/diag"
	"github.com/roach88/lumen/internal/eval"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/parser"
)

var quiet = slog.New(slog.DiscardHandler)

func parse(t *testing.T, src string) *ir.Store {
	t.Helper()
	res, err := parser.Parse(src, parser.Plain)
	require.NoError(t, err)
	require.Empty(t, res.Diagnostics)
	return res.Store
}

func optimize(t *testing.T, src string, opts Options) (*ir.Store, Stats, diag.List) {
	t.Helper()
	opts.Logger = quiet
	p, err := New(opts)
	require.NoError(t, err)
	s := parse(t, src)
	stats, diags, err := p.Run(s)
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	return s, stats, diags
}

func lines(ls ...string) string { return strings.Join(ls, "\n") + "\n" }

// only runs a single pass once.
func only(t *testing.T, pass Pass, src string) (*ir.Store, Outcome) {
	t.Helper()
	s := parse(t, src)
	out := pass.Run(s)
	require.NoError(t, s.Validate())
	return s, out
}

func TestDefaultPasses(t *testing.T) {
	assert.Empty(t, DefaultPasses(0))
	assert.Equal(t, []string{"fold", "dce"}, DefaultPasses(1))
	assert.Equal(t, []string{"inline", "fold", "dce"}, DefaultPasses(2))
	assert.Equal(t, []string{"inline", "fold", "dce"}, Names())

	lvl, err := MinLevel("inline")
	require.NoError(t, err)
	assert.Equal(t, 2, lvl)
	_, err = MinLevel("nope")
	assert.Error(t, err)
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(Options{Level: 3})
	assert.ErrorContains(t, err, "out of range")

	_, err = New(Options{Level: 1, Passes: []string{"fold", "minify"}})
	assert.ErrorContains(t, err, `unknown pass "minify"`)

	_, err = New(Options{Level: 1, Passes: []string{"fold", "fold"}})
	assert.ErrorContains(t, err, "listed twice")

	_, err = New(Options{Level: 1, MaxRounds: -1})
	assert.Error(t, err)
}

func TestExplicitPassesUseRegistryOrder(t *testing.T) {
	p, err := New(Options{Level: 2, Passes: []string{"dce", "inline"}, Logger: quiet})
	require.NoError(t, err)
	assert.Equal(t, []string{"inline", "dce"}, p.Passes())
}

func TestPassAboveLevelIsDropped(t *testing.T) {
	_, _, diags := optimize(t, "let x = 1;", Options{Level: 1, Passes: []string{"inline", "fold"}})
	require.Len(t, diags, 1)
	assert.Equal(t, diag.SemanticWarning, diags[0].Kind)
	assert.Equal(t, diag.CodePassNotAllowed, diags[0].Code)
	assert.Contains(t, diags[0].Message, "inline requires level 2")
}

func TestLevelZeroConvergesImmediately(t *testing.T) {
	src := "const x = 1 + 2;"
	s, stats, diags := optimize(t, src, Options{Level: 0})
	assert.Empty(t, diags)
	assert.True(t, stats.Converged)
	assert.Equal(t, 0, stats.Rounds)
	assert.Equal(t, parse(t, src).Dump(), s.Dump())
}

func TestFoldArithmetic(t *testing.T) {
	s, stats, _ := optimize(t, "export const x = 10 * 10 + 5 * 4;", Options{Level: 1})
	assert.Equal(t, lines(
		`Program`,
		`  ExportDecl form="declaration"`,
		`    VariableDecl kind="const"`,
		`      VariableDeclarator`,
		`        Identifier name="x"`,
		`        Number raw="140" value=140`,
	), s.Dump())
	assert.Equal(t, 3, stats.Folded)
	assert.True(t, stats.Converged)
	assert.Equal(t, 2, stats.Rounds)
}

func TestFoldOperators(t *testing.T) {
	tests := []struct {
		expr string
		kind ir.Kind
		want ir.Value
	}{
		{`1 / 0`, ir.KindNumber, ir.Number(math.Inf(1))},
		{`"a" + 1 + 2`, ir.KindString, ir.String("a12")},
		{`1 + 2 + "a"`, ir.KindString, ir.String("3a")},
		{`"b" < "a"`, ir.KindBoolean, ir.Bool(false)},
		{`1 == "1"`, ir.KindBoolean, ir.Bool(true)},
		{`null === null`, ir.KindBoolean, ir.Bool(true)},
		{`-(2 ** 3)`, ir.KindNumber, ir.Number(-8)},
		{`!0`, ir.KindBoolean, ir.Bool(true)},
		{`typeof "s"`, ir.KindString, ir.String("string")},
		{`~5`, ir.KindNumber, ir.Number(-6)},
		{`1 << 31`, ir.KindNumber, ir.Number(-2147483648)},
		{`-1 >>> 28`, ir.KindNumber, ir.Number(15)},
		{`0 || "fallback"`, ir.KindString, ir.String("fallback")},
		{`"" && y`, ir.KindString, ir.String("")},
		{`null ?? 4`, ir.KindNumber, ir.Number(4)},
		{`1 ? "t" : "f"`, ir.KindString, ir.String("t")},
		{"`a${1 + 1}b${true}`", ir.KindString, ir.String("a2btrue")},
		{`"\uD800" === "\uFFFD"`, ir.KindBoolean, ir.Bool(false)},
		{`"\uD83D" + "\uDE00" === "\uD83D\uDE00"`, ir.KindBoolean, ir.Bool(true)},
		{`"a\n" + "\u2028"`, ir.KindString, ir.String("a\n\u2028")},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s, _ := only(t, &foldPass{}, "x = "+tt.expr+";")
			v := s.Child(s.Child(s.Child(s.Root(), 0), 0), 1)
			assert.Equal(t, tt.kind, s.Kind(v))
			got, _ := s.Attr(v, ir.AttrValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFoldedStringRawIsJavaScript(t *testing.T) {
	s, _ := only(t, &foldPass{}, `x = "\uD800" + "\x07";`)
	v := s.Child(s.Child(s.Child(s.Root(), 0), 0), 1)
	assert.Equal(t, `"\uD800\u0007"`, s.Str(v, ir.AttrRaw))

	res, err := parser.Parse("x = "+s.Str(v, ir.AttrRaw)+";", parser.Plain)
	require.NoError(t, err)
	require.Empty(t, res.Diagnostics)
	again := res.Store.Child(res.Store.Child(res.Store.Child(res.Store.Root(), 0), 0), 1)
	assert.Equal(t, s.Str(v, ir.AttrValue), res.Store.Str(again, ir.AttrValue))
}

func TestFoldNaNPropagates(t *testing.T) {
	s, _ := only(t, &foldPass{}, "x = (0 / 0) * 5 + 1;")
	v := s.Child(s.Child(s.Child(s.Root(), 0), 0), 1)
	n, ok := s.Num(v, ir.AttrValue)
	require.True(t, ok)
	assert.True(t, math.IsNaN(n))
	assert.Equal(t, "NaN", s.Str(v, ir.AttrRaw))
}

func TestFoldLeavesNonConstants(t *testing.T) {
	for _, src := range []string{
		"x = a + 1;",
		"x = void 0;",
		"x = 1n + 2n;",
		"x = y && 0;",
		"(true ? a.b : c)();",
		"(1 && o.m)();",
		"tag`a${1}`;",
		"x = 'a' in o;",
	} {
		t.Run(src, func(t *testing.T) {
			before := parse(t, src).Dump()
			s, out := only(t, &foldPass{}, src)
			assert.False(t, out.Changed)
			assert.Equal(t, before, s.Dump())
		})
	}
}

func TestDCERemovesUnusedFunctionAtLevelOne(t *testing.T) {
	s, stats, _ := optimize(t, `
		function used() { return 1; }
		function unused() { return 2; }
		console.log(used());
	`, Options{Level: 1})
	assert.Equal(t, lines(
		`Program`,
		`  FunctionDecl name="used"`,
		`    Block`,
		`      Return`,
		`        Number raw="1" value=1`,
		`  ExprStmt`,
		`    Call`,
		`      Member name="log"`,
		`        Identifier name="console"`,
		`      Call`,
		`        Identifier name="used"`,
	), s.Dump())
	assert.Equal(t, 4, stats.Removed)
}

func TestDCEKeepsRoots(t *testing.T) {
	s, _, _ := optimize(t, `
		const unusedPure = 1;
		const sideEffect = compute();
		function helper() { return 2; }
		function exported() { return helper(); }
		export { exported };
		let dead = () => helper();
		function main() {}
		function chain1() { return chain2(); }
		function chain2() { return 3; }
		var pattern = { a: chain1 }, { b } = pattern;
	`, Options{Level: 1, Entry: []string{"main"}})
	names := topLevelNames(s)
	assert.Equal(t, []string{"sideEffect", "helper", "exported", "main", "chain1", "chain2", "pattern"}, names)
}

func topLevelNames(s *ir.Store) []string {
	var out []string
	for _, stmt := range s.Children(s.Root()) {
		if s.Kind(stmt) == ir.KindExportDecl {
			stmt = s.Child(stmt, 0)
		}
		switch s.Kind(stmt) {
		case ir.KindFunctionDecl, ir.KindClassDecl:
			out = append(out, s.Str(stmt, ir.AttrName))
		case ir.KindVariableDecl:
			for _, d := range s.Children(stmt) {
				if t := s.Child(d, 0); s.Kind(t) == ir.KindIdentifier {
					out = append(out, s.Str(t, ir.AttrName))
				}
			}
		}
	}
	return out
}

func TestDCEPreserve(t *testing.T) {
	s, _, _ := optimize(t, `function onLoad() {} function other() {}`,
		Options{Level: 1, Preserve: []string{"onLoad"}})
	assert.Equal(t, []string{"onLoad"}, topLevelNames(s))
}

func TestDCEUnreachableCode(t *testing.T) {
	s, out := only(t, &dcePass{}, `
		export function f(x) {
			return x;
			x++;
			function hoistedFn() {}
			var hoistedVar = 1;
			let gone = 2;
		}
	`)
	assert.True(t, out.Changed)
	assert.Equal(t, lines(
		`Program`,
		`  ExportDecl form="declaration"`,
		`    FunctionDecl name="f"`,
		`      Param`,
		`        Identifier name="x"`,
		`      Block`,
		`        Return`,
		`          Identifier name="x"`,
		`        FunctionDecl name="hoistedFn"`,
		`          Block`,
		`        VariableDecl kind="var"`,
		`          VariableDeclarator`,
		`            Identifier name="hoistedVar"`,
		`            Number raw="1" value=1`,
	), s.Dump())
}

func TestDCEConstantIf(t *testing.T) {
	s, _ := only(t, &dcePass{}, `
		if (true) { a(); } else { b(); }
		if (0) c();
		if ("") d(); else e();
		while (x) if (false) f();
		if (false) { var keep = 1; }
	`)
	assert.Equal(t, lines(
		`Program`,
		`  Block`,
		`    ExprStmt`,
		`      Call`,
		`        Identifier name="a"`,
		`  ExprStmt`,
		`    Call`,
		`      Identifier name="e"`,
		`  While`,
		`    Identifier name="x"`,
		`    Empty`,
		`  If`,
		`    Boolean value=false`,
		`    Block`,
		`      VariableDecl kind="var"`,
		`        VariableDeclarator`,
		`          Identifier name="keep"`,
		`          Number raw="1" value=1`,
	), s.Dump())
}

func TestDCEIsIdempotent(t *testing.T) {
	for _, src := range []string{
		`function a() { return b(); } function b() { return 1; } function c() {} export { a };`,
		`if (false) { x(); } function f() { return; g(); } function g() {} f();`,
		`const k = 1; let unused = k; console.log(2);`,
		`switch (x) { case 1: y(); break; z(); default: w(); }`,
	} {
		t.Run(src, func(t *testing.T) {
			s := parse(t, src)
			(&dcePass{}).Run(s)
			require.NoError(t, s.Validate())
			once := s.Dump()
			out := (&dcePass{}).Run(s)
			assert.False(t, out.Changed)
			assert.Equal(t, once, s.Dump())
		})
	}
}

func TestInlineSimpleFunction(t *testing.T) {
	s, stats, diags := optimize(t, `
		function add(a, b) { return a + b; }
		export const r = add(1, 2);
	`, Options{Level: 2})
	assert.Empty(t, diags)
	assert.Equal(t, lines(
		`Program`,
		`  ExportDecl form="declaration"`,
		`    VariableDecl kind="const"`,
		`      VariableDeclarator`,
		`        Identifier name="r"`,
		`        Number raw="3" value=3`,
	), s.Dump())
	assert.Equal(t, 1, stats.Inlined)
	assert.Equal(t, 1, stats.Folded)
	assert.Equal(t, 10, stats.Removed)
	assert.Equal(t, 2, stats.Rounds)
	assert.True(t, stats.Converged)
}

func TestInlineCopiesHaveFreshHandles(t *testing.T) {
	s, out := only(t, &inlinePass{}, `
		function id(v) { return v; }
		function twice(p) { return p * 2; }
		use(id(x), id(y), twice(z));
	`)
	assert.Equal(t, 3, out.Inlined)
	require.NoError(t, s.Validate())

	// The declaration keeps its own expression.
	ret := s.Child(s.Child(s.Child(s.Root(), 1), 1), 0)
	require.Equal(t, ir.KindReturn, s.Kind(ret))
	decl := s.Child(ret, 0)
	assert.Equal(t, ir.KindBinary, s.Kind(decl))

	call := s.Child(s.Child(s.Root(), 2), 0)
	args := s.Children(call)
	require.Len(t, args, 4)
	assert.Equal(t, "x", s.Str(args[1], ir.AttrName))
	assert.Equal(t, "y", s.Str(args[2], ir.AttrName))
	assert.Equal(t, ir.KindBinary, s.Kind(args[3]))
	assert.NotEqual(t, decl, args[3])
	assert.Equal(t, "z", s.Str(s.Child(args[3], 0), ir.AttrName))
}

func TestInlineRefusesRecursion(t *testing.T) {
	_, _, diags := optimize(t, `
		function fact(n) { return n <= 1 ? 1 : n * fact(n - 1); }
		export const r = fact(5);
	`, Options{Level: 2})
	require.Len(t, diags, 1)
	assert.Equal(t, diag.CodeInlineSkipped, diags[0].Code)
	assert.Equal(t, "call to fact not inlined: recursive", diags[0].Message)
}

func TestInlineRefusesMutualRecursion(t *testing.T) {
	s, stats, diags := optimize(t, `
		function isEven(n) { return n === 0 ? true : isOdd(n - 1); }
		function isOdd(n) { return n === 0 ? false : isEven(n - 1); }
		export const e = isEven(4);
	`, Options{Level: 2})
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "call to isEven not inlined: recursive")
	assert.Equal(t, 0, stats.Inlined)
	assert.Equal(t, []string{"isEven", "isOdd", "e"}, topLevelNames(s))
}

func TestInlineRefusals(t *testing.T) {
	tests := []struct {
		name, src, reason string
	}{
		{"side effects", `function dbl(x) { return x + x; } export const r = dbl(tick());`, "argument 1 has side effects"},
		{"identity", `function same(o) { return o === o; } export const r = same({});`, "argument 1 creates an object"},
		{"arity", `function two(a, b) { return a + b; } export const r = two(1);`, "expects 2 arguments, got 1"},
		{"shadowed", `const K = 1; function addK(x) { return x + K; } function g(K) { return addK(K); } export { g }; export const r = addK(2);`, "K is shadowed"},
		{"mutable", `let m = 1; function getM() { return m; } export const r = getM();`, "reads mutable binding m"},
		{"reassigned", `function f() { return 1; } f = null; export const r = f();`, "f is reassigned"},
		{"spread", `function f(a) { return a; } export const r = f(...xs);`, "spread argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, diags := optimize(t, tt.src, Options{Level: 2})
			require.NotEmpty(t, diags)
			assert.Equal(t, diag.CodeInlineSkipped, diags[0].Code)
			assert.Contains(t, diags[0].Message, tt.reason)
		})
	}
}

func TestInlineSkipsNonSimpleSilently(t *testing.T) {
	_, stats, diags := optimize(t, `
		function loud(x) { console.log(x); return x; }
		async function later() { return 1; }
		function withDefault(a = 1) { return a; }
		export const r = [loud(1), later(), withDefault()];
	`, Options{Level: 2})
	assert.Empty(t, diags)
	assert.Equal(t, 0, stats.Inlined)
}

func TestRoundCeiling(t *testing.T) {
	// Each round inlines one more level of the chain.
	src := `
		function a(x) { return b(x) + 1; }
		function b(x) { return c(x) + 1; }
		function c(x) { return x; }
		export const r = a(n);
	`
	_, stats, diags := optimize(t, src, Options{Level: 2, MaxRounds: 1})
	assert.False(t, stats.Converged)
	assert.Equal(t, 1, stats.Rounds)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.ConvergenceWarning, diags[0].Kind)
	assert.Equal(t, diag.CodeRoundCeiling, diags[0].Code)
	assert.False(t, diags.HasErrors())

	_, stats, diags = optimize(t, src, Options{Level: 2})
	assert.True(t, stats.Converged)
	assert.Empty(t, diags)
}

func TestStatsRecordLastRoundAndPassTime(t *testing.T) {
	src := `
		function a(x) { return b(x) + 1; }
		function b(x) { return c(x) + 1; }
		function c(x) { return x; }
		export const r = a(n);
	`
	_, stats, _ := optimize(t, src, Options{Level: 2, MaxRounds: 1})
	assert.False(t, stats.Converged)
	assert.Positive(t, stats.LastRoundChanges, "a cut-off run still had work in its last round")
	assert.Equal(t, stats.Removed+stats.Folded+stats.Inlined, stats.LastRoundChanges, "one round only")
	assert.ElementsMatch(t, []string{"dce", "fold", "inline"}, slices.Collect(maps.Keys(stats.PassTime)))

	_, stats, _ = optimize(t, src, Options{Level: 2})
	assert.True(t, stats.Converged)
	assert.Zero(t, stats.LastRoundChanges)
}

func TestStatsAdd(t *testing.T) {
	total := Stats{Rounds: 2, PassesRun: 6, Folded: 3, LastRoundChanges: 1,
		PassTime: map[string]time.Duration{"fold": time.Millisecond}}
	total.Add(Stats{Rounds: 1, PassesRun: 3, Removed: 2, Converged: true,
		PassTime: map[string]time.Duration{"fold": time.Millisecond, "dce": time.Second}})

	assert.Equal(t, Stats{
		Rounds: 3, PassesRun: 9, Removed: 2, Folded: 3, Converged: true,
		PassTime: map[string]time.Duration{"fold": 2 * time.Millisecond, "dce": time.Second},
	}, total)
}

func TestConvergedRunIsStable(t *testing.T) {
	src := `
		function sq(x) { return x * x; }
		const unused = 4;
		if (1 > 2) { console.log("no"); }
		console.log(sq(3), 2 + 2);
	`
	p, err := New(Options{Level: 2, Logger: quiet})
	require.NoError(t, err)
	s := parse(t, src)
	stats, _, err := p.Run(s)
	require.NoError(t, err)
	require.True(t, stats.Converged)
	once := s.Dump()

	again, _, err := p.Run(s)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Rounds)
	assert.Zero(t, again.Removed+again.Folded+again.Inlined)
	assert.Equal(t, once, s.Dump())
}

func TestCeilingError(t *testing.T) {
	b := newRoundBudget(2)
	require.NoError(t, b.next())
	require.NoError(t, b.next())
	err := b.next()
	assert.True(t, IsCeilingError(err))
	assert.Equal(t, "no fixed point after 2 rounds (limit 2)", err.Error())
}

// Optimized programs print the same output as the originals.
func TestOptimizationPreservesBehavior(t *testing.T) {
	programs := map[string]string{
		"inline chain": `
			function add(a, b) { return a + b; }
			function sq(x) { return x * x; }
			const K = 3;
			function scale(v) { return v * K; }
			console.log(add(1, 2), sq(add(2, 3)), scale(sq(2)));`,
		"side effects": `
			let counter = 0;
			function tick() { counter++; return counter; }
			function double(x) { return x + x; }
			console.log(double(tick()), counter);`,
		"identity": `
			function same(o) { return o === o; }
			console.log(same({}), same(1));`,
		"shadowing": `
			const K = 10;
			function addK(x) { return x + K; }
			function f(K) { return addK(K); }
			console.log(f(1), addK(1));`,
		"branches": `
			function pick(flag) { if (flag) { return "yes"; } return "no"; }
			const mode = 2 > 1 ? "fast" : "slow";
			if (false) { console.log("never"); } else { console.log(pick(true), mode); }`,
		"mutual recursion": `
			function isEven(n) { return n === 0 ? true : isOdd(n - 1); }
			function isOdd(n) { return n === 0 ? false : isEven(n - 1); }
			console.log(isEven(10), isOdd(7));`,
		"templates": "function greet(name) { return `hello ${name}!`; }\n" +
			"console.log(greet(\"lumen\"), `${1 + 1} apples`);",
		"members": `
			const point = { x: 3, y: 4 };
			function norm2(p) { return p.x * p.x + p.y * p.y; }
			console.log(norm2(point), Math.sqrt(norm2(point)));`,
		"surrogates": `
			const hi = "\uD83D";
			const pair = hi + "\uDE00";
			console.log(pair.length, hi === "\uFFFD", pair[0] === hi, pair === "\uD83D\uDE00");`,
		"loops": `
			function inc(n) { return n + 1; }
			let total = 0;
			for (let i = 0; i < 5; i = inc(i)) { total += inc(i) * 2; }
			console.log(total);`,
	}
	for name, src := range programs {
		t.Run(name, func(t *testing.T) {
			want, err := eval.Run(parse(t, src))
			require.NoError(t, err)
			require.NotEmpty(t, want.Output)

			for level := 0; level <= MaxLevel; level++ {
				s, stats, diags := optimize(t, src, Options{Level: level})
				assert.True(t, stats.Converged, "level %d: %v", level, diags)
				got, err := eval.Run(s)
				require.NoError(t, err, "level %d:\n%s", level, s.Dump())
				assert.Equal(t, want.Output, got.Output, "level %d:\n%s", level, s.Dump())
			}
		})
	}
}
