package interchange

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/parser"
	"github.com/roach88/lumen/internal/wtf8"
)

const testID = "0192f0c4-7a1e-7c3d-9b2a-4e5f6a7b8c9d"

func parsed(t *testing.T, src string, mode parser.Mode) *ir.Store {
	t.Helper()
	res, err := parser.Parse(src, mode)
	require.NoError(t, err)
	require.Empty(t, res.Diagnostics)
	return res.Store
}

// nodes snapshots every live node for structural comparison.
func nodes(s *ir.Store) map[ir.Handle]ir.Node {
	out := make(map[ir.Handle]ir.Node)
	for _, h := range s.Handles() {
		out[h] = *s.Get(h)
	}
	return out
}

var equalNodes = cmp.Options{
	cmpopts.EquateEmpty(),
	cmp.Comparer(func(a, b ir.Number) bool {
		return math.Float64bits(float64(a)) == math.Float64bits(float64(b))
	}),
}

func TestRoundTrip(t *testing.T) {
	sources := map[string]struct {
		src  string
		mode parser.Mode
	}{
		"plain": {`
			import { a as b } from "./m";
			function f(x, ...rest) { return x ?? rest.length; }
			export { f };
			const s = "café", n = 0x10, r = /ab+c/g;`, parser.Plain},
		"jsx": {`const el = <div className="x">{items.map(i => <li key={i}>{i}</li>)}</div>;`, parser.JSX},
		"typescript": {`
			enum Color { Red, Green = 4 }
			interface P { x: number }
			export function area(p: P): number { return p.x * 2; }`, parser.TypeScript},
	}
	for name, tc := range sources {
		t.Run(name, func(t *testing.T) {
			s := parsed(t, tc.src, tc.mode)
			data, err := Encode(s, testID)
			require.NoError(t, err)

			got, h, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, testID, h.StoreID)
			assert.Equal(t, s.Len(), h.Count)
			assert.Equal(t, s.Root(), got.Root())
			assert.Equal(t, s.Next(), got.Next())
			assert.Equal(t, s.Dump(), got.Dump())
			if diff := cmp.Diff(nodes(s), nodes(got), equalNodes); diff != "" {
				t.Errorf("decoded store differs (-want +got):\n%s", diff)
			}

			again, err := Encode(got, testID)
			require.NoError(t, err)
			assert.Equal(t, string(data), string(again))
		})
	}
}

// stringValues lists the value of every string literal in handle order.
func stringValues(s *ir.Store) []string {
	var out []string
	for _, h := range s.Handles() {
		if s.Kind(h) == ir.KindString {
			out = append(out, s.Str(h, ir.AttrValue))
		}
	}
	return out
}

func TestStringsSurviveExactly(t *testing.T) {
	src := `const a = "e\u0301", b = "e` + string(rune(0x301)) + `", c = "\uD800!", d = "\uD83D\uDE00", e = "\u2028\x00";`
	s := parsed(t, src, parser.Plain)
	want := []string{
		"e" + string(rune(0x301)),
		"e" + string(rune(0x301)),
		string(wtf8.AppendRune(nil, 0xD800)) + "!",
		string(rune(0x1F600)),
		string(rune(0x2028)) + "\x00",
	}
	require.Equal(t, want, stringValues(s))

	data, err := Encode(s, testID)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"\ud800!"`)

	got, _, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, want, stringValues(got))
	if diff := cmp.Diff(nodes(s), nodes(got), equalNodes); diff != "" {
		t.Errorf("decoded store differs (-want +got):\n%s", diff)
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `"abc"`, "abc"},
		{"escapes", `"\"\\\/\b\f\n\r\t"`, "\"\\/\b\f\n\r\t"},
		{"pair", `"\ud83d\ude00"`, string(rune(0x1F600))},
		{"lone high", `"\ud83dx"`, string(wtf8.AppendRune(nil, 0xD83D)) + "x"},
		{"lone low", `"\ude00"`, string(wtf8.AppendRune(nil, 0xDE00))},
		{"high then high", `"\ud800\ud800"`, string(wtf8.AppendRune(wtf8.AppendRune(nil, 0xD800), 0xD800))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unquote([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{`abc`, `"\u12"`, `"\q"`, `"a\"`, "\"\x01\""} {
		_, err := unquote([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestRoundTripKeepsSparseHandles(t *testing.T) {
	s := parsed(t, "let a = 1; let b = 2; let c = 3;", parser.Plain)
	_, err := s.Remove(s.Child(s.Root(), 1))
	require.NoError(t, err)

	data, err := Encode(s, testID)
	require.NoError(t, err)
	got, _, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, s.Handles(), got.Handles())

	// New nodes never reuse a handle of the original store.
	h := got.New(ir.KindEmpty, ir.Span{})
	assert.Equal(t, s.Next(), h)
}

func TestSpecialNumbersSurvive(t *testing.T) {
	s := ir.NewStore()
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), math.Copysign(0, -1), 0.1, 1e21} {
		stmt := s.New(ir.KindExprStmt, ir.Span{})
		num := s.New(ir.KindNumber, ir.Span{})
		s.SetAttr(num, ir.AttrValue, ir.Number(f))
		require.NoError(t, s.Append(stmt, num))
		require.NoError(t, s.Append(s.Root(), stmt))
	}
	data, err := Encode(s, testID)
	require.NoError(t, err)
	assert.Contains(t, string(data), `{"n":"NaN"}`)
	assert.Contains(t, string(data), `{"n":"-0"}`)

	got, _, err := Decode(data)
	require.NoError(t, err)
	if diff := cmp.Diff(nodes(s), nodes(got), equalNodes); diff != "" {
		t.Errorf("numbers differ (-want +got):\n%s", diff)
	}
}

func TestRefAttributesDecode(t *testing.T) {
	s := parsed(t, "function f() {} export { f as g };", parser.Plain)
	got, _, err := Decode(mustEncode(t, s))
	require.NoError(t, err)

	var spec ir.Handle
	for _, h := range got.Handles() {
		if got.Kind(h) == ir.KindExportSpecifier {
			spec = h
		}
	}
	require.NotEqual(t, ir.NoHandle, spec)
	assert.Equal(t, ir.KindFunctionDecl, got.Kind(got.RefAttr(spec, ir.AttrBinding)))
}

func mustEncode(t *testing.T, s *ir.Store) []byte {
	t.Helper()
	data, err := Encode(s, testID)
	require.NoError(t, err)
	return data
}

func TestEncodeRejects(t *testing.T) {
	s := parsed(t, "x;", parser.Plain)
	_, err := Encode(s, "store-1")
	assert.ErrorContains(t, err, "store id")

	_, err = Encode(s, strings.ToUpper(testID))
	assert.ErrorContains(t, err, "canonical form")

	// A detached live node breaks the tree invariants.
	require.NoError(t, s.Detach(s.Child(s.Root(), 0)))
	_, err = Encode(s, testID)
	assert.True(t, ir.IsInvariantError(err))
}

// edit decodes the envelope generically, applies fn and re-marshals it.
func edit(t *testing.T, data []byte, fn func(doc map[string]any)) []byte {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	fn(doc)
	out, err := json.Marshal(doc)
	require.NoError(t, err)
	return out
}

func TestDecodeRejectsTampering(t *testing.T) {
	data := mustEncode(t, parsed(t, "let total = 1 + 2;", parser.Plain))
	node := func(doc map[string]any, i int) map[string]any {
		return doc["nodes"].([]any)[i].(map[string]any)
	}

	tests := []struct {
		name string
		fn   func(doc map[string]any)
		want string
	}{
		{"format", func(doc map[string]any) { doc["format"] = "other" }, "format"},
		{"version", func(doc map[string]any) { doc["version"] = "99" }, "IR version"},
		{"count", func(doc map[string]any) { doc["count"] = 1 }, "header counts"},
		{"store id", func(doc map[string]any) { doc["store_id"] = "nope" }, "store id"},
		{"kind", func(doc map[string]any) { node(doc, 1)["kind"] = "Bogus" }, "unknown node kind"},
		{"value tag", func(doc map[string]any) {
			node(doc, 2)["attrs"] = map[string]any{"kind": map[string]any{"x": 1}}
		}, "unknown value tag"},
		{"attribute", func(doc map[string]any) {
			node(doc, 2)["attrs"] = map[string]any{"kind": map[string]any{"s": "var"}}
		}, "content hash mismatch"},
		{"parent", func(doc map[string]any) { node(doc, 1)["parent"] = 3 }, "invariant"},
		{"unknown field", func(doc map[string]any) { doc["extra"] = true }, "unknown field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(edit(t, data, tt.fn))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeHashMismatchIsDetectable(t *testing.T) {
	data := mustEncode(t, parsed(t, "a;", parser.Plain))
	bad := edit(t, data, func(doc map[string]any) {
		doc["hash"] = strings.Repeat("0", 64)
	})
	_, _, err := Decode(bad)
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestEncodeYAML(t *testing.T) {
	s := parsed(t, "export const x = 1;", parser.Plain)
	out, err := EncodeYAML(s, testID)
	require.NoError(t, err)

	var doc struct {
		Format  string `yaml:"format"`
		StoreID string `yaml:"store_id"`
		Hash    string `yaml:"hash"`
		Nodes   []struct {
			Kind  string            `yaml:"kind"`
			Attrs map[string]string `yaml:"attrs"`
		} `yaml:"nodes"`
	}
	require.NoError(t, yaml.Unmarshal(out, &doc))
	assert.Equal(t, Format, doc.Format)
	assert.Equal(t, testID, doc.StoreID)

	hash, err := Hash(s, testID)
	require.NoError(t, err)
	assert.Equal(t, hash, doc.Hash)

	require.Len(t, doc.Nodes, s.Len())
	assert.Equal(t, "Program", doc.Nodes[0].Kind)
	var kinds []string
	for _, n := range doc.Nodes {
		kinds = append(kinds, n.Kind)
		if n.Kind == "Number" {
			assert.Equal(t, "1", n.Attrs["value"])
			assert.Equal(t, `"1"`, n.Attrs["raw"])
		}
	}
	assert.Contains(t, kinds, "ExportDecl")
}

func TestFrames(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	a := mustEncode(t, parsed(t, "a;", parser.Plain))
	b := mustEncode(t, parsed(t, "b();", parser.Plain))
	require.NoError(t, fw.WriteFrame(a))
	require.NoError(t, fw.WriteFrame(nil))
	require.NoError(t, fw.WriteFrame(b))

	fr := NewFrameReader(&buf)
	got, err := fr.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, a, got)
	got, err = fr.ReadFrame()
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = fr.ReadFrame()
	require.NoError(t, err)
	s, _, err := Decode(got)
	require.NoError(t, err)
	assert.Equal(t, ir.KindCall, s.Kind(s.Child(s.Child(s.Root(), 0), 0)))

	_, err = fr.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestTruncatedFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFrameWriter(&buf).WriteFrame([]byte("hello world")))
	truncated := buf.Bytes()[:5]

	_, err := NewFrameReader(bytes.NewReader(truncated)).ReadFrame()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestOversizedFrameLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff, 0x0f})
	_, err := NewFrameReader(&buf).ReadFrame()
	assert.ErrorContains(t, err, "exceeds limit")
}

func TestGenerators(t *testing.T) {
	id := UUIDv7Generator{}.Generate()
	assert.NoError(t, ValidateStoreID(id))
	assert.NotEqual(t, id, UUIDv7Generator{}.Generate())

	g := NewSequenceGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
