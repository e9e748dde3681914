package diag

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lumen/internal/ir"
)

func at(offset, line, col int) ir.Span {
	p := ir.Pos{Offset: offset, Line: line, Column: col}
	return ir.Span{Start: p, End: p}
}

func TestKindNames(t *testing.T) {
	for _, k := range []Kind{LexError, SyntaxError, SemanticWarning, ConvergenceWarning} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("Fatal")
	assert.Error(t, err)

	assert.True(t, LexError.IsError())
	assert.True(t, SyntaxError.IsError())
	assert.False(t, SemanticWarning.IsError())
	assert.False(t, ConvergenceWarning.IsError())
}

func TestDiagnosticJSON(t *testing.T) {
	d := Diagnostic{Kind: SyntaxError, Code: CodeUnexpectedToken, Message: "unexpected ')'", Span: at(4, 1, 5), Expected: []string{"identifier"}}
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"SyntaxError"`)

	var back Diagnostic
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, d, back)
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Kind: LexError, Code: CodeUnterminatedString, Message: "unterminated string literal", Span: at(8, 1, 9), Path: "a.js"}
	assert.Equal(t, "a.js:1:9: LexError [E202]: unterminated string literal", d.String())

	d = Diagnostic{Kind: SyntaxError, Code: CodeUnexpectedToken, Message: "unexpected '}'", Span: at(0, 2, 1), Expected: []string{"';'", "')'"}}
	assert.Equal(t, "2:1: SyntaxError [E301]: unexpected '}' (expected ';', ')')", d.String())
}

func TestListHelpers(t *testing.T) {
	l := List{
		{Kind: SemanticWarning, Code: CodeInlineSkipped, Message: "m", Span: at(9, 1, 10)},
		{Kind: LexError, Code: CodeInvalidChar, Message: "x", Span: at(2, 1, 3)},
		{Kind: SemanticWarning, Code: CodeInlineSkipped, Message: "m", Span: at(9, 1, 10)},
	}

	assert.Equal(t, 2, l.Count(SemanticWarning))
	assert.True(t, l.HasErrors())
	assert.False(t, List{l[0]}.HasErrors())

	deduped := l.Dedup()
	assert.Len(t, deduped, 2)

	sorted := l.Sorted()
	assert.Equal(t, CodeInvalidChar, sorted[0].Code)
	assert.Equal(t, CodeInlineSkipped, l[0].Code, "Sorted must not reorder the receiver")

	withPath := l.WithPath("m.ts")
	assert.Equal(t, "m.ts", withPath[1].Path)
	assert.Empty(t, l[1].Path)
}
