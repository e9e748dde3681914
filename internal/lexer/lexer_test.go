package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lumen/internal/diag"
	"github.com/roach88/lumen/internal/ir"
)

type lexed struct {
	Kind   Kind
	Lexeme string
}

func lexAll(t *testing.T, src string, opts ...Option) ([]lexed, diag.List) {
	t.Helper()
	l := New(src, 0, opts...)
	var out []lexed
	for tok := range l.All() {
		if tok.Kind == EOF {
			break
		}
		out = append(out, lexed{tok.Kind, tok.Lexeme})
	}
	return out, l.Diagnostics()
}

func TestAutomatonFitsInByteStates(t *testing.T) {
	assert.Less(t, States(), 256)
	assert.Greater(t, States(), 50)
}

func TestBasicTokens(t *testing.T) {
	toks, diags := lexAll(t, "let x = a + 1;")
	assert.Empty(t, diags)
	assert.Equal(t, []lexed{
		{Keyword, "let"},
		{Ident, "x"},
		{Punct, "="},
		{Ident, "a"},
		{Punct, "+"},
		{Number, "1"},
		{Punct, ";"},
	}, toks)
}

func TestMaximalMunchPunctuators(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{">>>=", []string{">>>="}},
		{"a>>>b", []string{"a", ">>>", "b"}},
		{"x??=y", []string{"x", "??=", "y"}},
		{"a?.b", []string{"a", "?.", "b"}},
		{"a?.5:1", []string{"a", "?", ".5", ":", "1"}},
		{"...rest", []string{"...", "rest"}},
		{"a**=2", []string{"a", "**=", "2"}},
		{"x=>x", []string{"x", "=>", "x"}},
		{"a!==b", []string{"a", "!==", "b"}},
		{"i++ + ++j", []string{"i", "++", "+", "++", "j"}},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			toks, diags := lexAll(t, tt.src)
			assert.Empty(t, diags)
			var got []string
			for _, tok := range toks {
				got = append(got, tok.Lexeme)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumbers(t *testing.T) {
	valid := []string{"0", "42", "3.14", ".5", "1.", "1e10", "2E-3", "0x1F", "0o17", "0b101", "1_000_000", "10n", "0xffn", "017"}
	for _, src := range valid {
		t.Run(src, func(t *testing.T) {
			toks, diags := lexAll(t, src)
			assert.Empty(t, diags)
			assert.Equal(t, []lexed{{Number, src}}, toks)
		})
	}
}

func TestMalformedNumbers(t *testing.T) {
	for _, src := range []string{"3abc", "0x", "1e", "1.5n", "12px"} {
		t.Run(src, func(t *testing.T) {
			toks, diags := lexAll(t, src)
			require.Len(t, diags, 1)
			assert.Equal(t, diag.CodeMalformedNumber, diags[0].Code)
			assert.Equal(t, diag.LexError, diags[0].Kind)
			assert.Equal(t, []lexed{{Invalid, src}}, toks)
		})
	}
}

func TestStrings(t *testing.T) {
	toks, diags := lexAll(t, `'a\'b' "c\"d" "line\` + "\n" + `cont"`)
	assert.Empty(t, diags)
	assert.Equal(t, []lexed{
		{String, `'a\'b'`},
		{String, `"c\"d"`},
		{String, "\"line\\\ncont\""},
	}, toks)
}

func TestUnterminatedStringRecovers(t *testing.T) {
	toks, diags := lexAll(t, "x = \"abc\ny")
	require.Len(t, diags, 1)
	assert.Equal(t, diag.CodeUnterminatedString, diags[0].Code)
	assert.Equal(t, ir.Pos{Offset: 4, Line: 1, Column: 5}, diags[0].Span.Start)
	assert.Equal(t, []lexed{
		{Ident, "x"},
		{Punct, "="},
		{Invalid, "\"abc"},
		{Ident, "y"},
	}, toks)
}

func TestUnterminatedLiterals(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{"template", "`abc $", diag.CodeUnterminatedTmpl},
		{"block comment", "/* never closed", diag.CodeUnterminatedComment},
		{"string at eof", "'abc", diag.CodeUnterminatedString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, diags := lexAll(t, tt.src)
			require.Len(t, diags, 1)
			assert.Equal(t, tt.code, diags[0].Code)
			require.Len(t, toks, 1)
			assert.Equal(t, Invalid, toks[0].Kind)
		})
	}
}

func TestInvalidCharacter(t *testing.T) {
	toks, diags := lexAll(t, "a # b")
	require.Len(t, diags, 1)
	assert.Equal(t, diag.CodeInvalidChar, diags[0].Code)
	assert.Contains(t, diags[0].Message, `'#'`)
	assert.Equal(t, []lexed{{Ident, "a"}, {Invalid, "#"}, {Ident, "b"}}, toks)
}

func TestPrivateNamesAndUnicodeIdentifiers(t *testing.T) {
	toks, diags := lexAll(t, "#count caf"+string(rune(0xE9))+" $_x")
	assert.Empty(t, diags)
	assert.Equal(t, []lexed{
		{Ident, "#count"},
		{Ident, "caf" + string(rune(0xE9))},
		{Ident, "$_x"},
	}, toks)
}

func TestCommentsAndNewlineBefore(t *testing.T) {
	l := New("a // note\nb /* x\n */ c /* y */ d", 0)
	var got []Token
	for tok := range l.All() {
		got = append(got, tok)
	}
	require.Len(t, got, 5)
	assert.False(t, got[0].NewlineBefore)
	assert.True(t, got[1].NewlineBefore, "line comment ends with newline")
	assert.True(t, got[2].NewlineBefore, "block comment spanning lines")
	assert.False(t, got[3].NewlineBefore)
	assert.Equal(t, EOF, got[4].Kind)
	assert.Equal(t, "d", got[3].Lexeme)

	toks, _ := lexAll(t, "a /* x */ b", WithComments())
	assert.Equal(t, []lexed{{Ident, "a"}, {Comment, "/* x */"}, {Ident, "b"}}, toks)
}

func TestPositions(t *testing.T) {
	l := New("a\r\n  bb\n"+string(rune(0x2028))+"c", 0)
	a := l.Next()
	bb := l.Next()
	c := l.Next()

	assert.Equal(t, ir.Pos{Offset: 0, Line: 1, Column: 1}, a.Span.Start)
	assert.Equal(t, ir.Pos{Offset: 5, Line: 2, Column: 3}, bb.Span.Start)
	assert.Equal(t, ir.Pos{Offset: 7, Line: 2, Column: 5}, bb.Span.End)
	assert.Equal(t, 4, c.Span.Start.Line)
	assert.Equal(t, 1, c.Span.Start.Column)
	assert.True(t, c.NewlineBefore)
}

func TestHashbangAndOffset(t *testing.T) {
	toks, diags := lexAll(t, "#!/usr/bin/env node\nrun()")
	assert.Empty(t, diags)
	assert.Equal(t, lexed{Ident, "run"}, toks[0])

	l := New("skip keep", 5)
	tok := l.Next()
	assert.Equal(t, "keep", tok.Lexeme)
	assert.Equal(t, 6, tok.Span.Start.Column)
}

func TestRegexRelex(t *testing.T) {
	l := New("x = /a[/]b\\//gi.test(s)", 0)
	l.Next()
	l.Next()
	slash := l.Next()
	require.True(t, slash.IsPunct("/"))

	re := l.Relex(slash, ModeRegex)
	assert.Equal(t, Regex, re.Kind)
	assert.Equal(t, "/a[/]b\\//gi", re.Lexeme)
	assert.Equal(t, ModeNormal, l.Mode(), "relex keeps the persistent mode")
	assert.True(t, l.Next().IsPunct("."))
}

func TestRegexRelexDropsStaleDiagnostics(t *testing.T) {
	// In normal mode the quote after the slash opens an unterminated string.
	l := New("/'/", 0)
	slash := l.Next()
	l.Next()
	require.Len(t, l.Diagnostics(), 1)

	re := l.Relex(slash, ModeRegex)
	assert.Equal(t, "/'/", re.Lexeme)
	assert.Empty(t, l.Diagnostics())
}

func TestUnterminatedRegex(t *testing.T) {
	l := New("/abc\nx", 0)
	re := l.Relex(l.Next(), ModeRegex)
	assert.Equal(t, Invalid, re.Kind)
	require.Len(t, l.Diagnostics(), 1)
	assert.Equal(t, diag.CodeUnterminatedRegex, l.Diagnostics()[0].Code)
	assert.Equal(t, "x", l.Next().Lexeme)
}

func TestTemplatePieces(t *testing.T) {
	l := New("`a${x}b${y}c` `plain` `$5`", 0)

	head := l.Next()
	assert.Equal(t, lexed{TemplateHead, "`a${"}, lexed{head.Kind, head.Lexeme})
	assert.Equal(t, "x", l.Next().Lexeme)

	rbrace := l.Next()
	require.True(t, rbrace.IsPunct("}"))
	mid := l.Relex(rbrace, ModeTemplate)
	assert.Equal(t, lexed{TemplateMiddle, "}b${"}, lexed{mid.Kind, mid.Lexeme})
	assert.Equal(t, "y", l.Next().Lexeme)

	tail := l.Relex(l.Next(), ModeTemplate)
	assert.Equal(t, lexed{TemplateTail, "}c`"}, lexed{tail.Kind, tail.Lexeme})

	plain := l.Next()
	assert.Equal(t, lexed{Template, "`plain`"}, lexed{plain.Kind, plain.Lexeme})
	dollar := l.Next()
	assert.Equal(t, lexed{Template, "`$5`"}, lexed{dollar.Kind, dollar.Lexeme})
}

func TestJSXModes(t *testing.T) {
	l := New(`<my-el data-id="1">hi there{name}</my-el>`, 0)
	assert.True(t, l.Next().IsPunct("<"))

	l.SetMode(ModeJSXTag)
	name := l.Next()
	assert.Equal(t, lexed{Ident, "my-el"}, lexed{name.Kind, name.Lexeme})
	assert.Equal(t, "data-id", l.Next().Lexeme)
	assert.True(t, l.Next().IsPunct("="))
	attr := l.Next()
	assert.Equal(t, lexed{String, `"1"`}, lexed{attr.Kind, attr.Lexeme})
	assert.True(t, l.Next().IsPunct(">"))

	l.SetMode(ModeJSXChild)
	text := l.Next()
	assert.Equal(t, lexed{JSXText, "hi there"}, lexed{text.Kind, text.Lexeme})
	assert.True(t, l.Next().IsPunct("{"))

	l.SetMode(ModeNormal)
	assert.Equal(t, "name", l.Next().Lexeme)
	assert.True(t, l.Next().IsPunct("}"))

	l.SetMode(ModeJSXChild)
	assert.True(t, l.Next().IsPunct("<"))
	l.SetMode(ModeJSXTag)
	assert.True(t, l.Next().IsPunct("/"))
	assert.Equal(t, "my-el", l.Next().Lexeme)
	assert.True(t, l.Next().IsPunct(">"), "no >> merging inside tags")
}

func TestRewind(t *testing.T) {
	l := New("a >> b", 0)
	l.Next()
	shift := l.Next()
	require.True(t, shift.IsPunct(">>"))

	l.Rewind(shift)
	l.SetMode(ModeJSXTag)
	assert.True(t, l.Next().IsPunct(">"))
	assert.True(t, l.Next().IsPunct(">"))
}

func TestEOFIsSticky(t *testing.T) {
	l := New("a", 0)
	l.Next()
	assert.Equal(t, EOF, l.Next().Kind)
	assert.Equal(t, EOF, l.Next().Kind)

	count := 0
	for range New("a b", 0).All() {
		count++
	}
	assert.Equal(t, 3, count)
}

func TestKeywordsAndContextualWords(t *testing.T) {
	toks, _ := lexAll(t, "async function of get type")
	assert.Equal(t, []lexed{
		{Ident, "async"},
		{Keyword, "function"},
		{Ident, "of"},
		{Ident, "get"},
		{Ident, "type"},
	}, toks)
	assert.True(t, IsKeyword("while"))
	assert.False(t, IsKeyword("async"))
	assert.Equal(t, "end of input", Token{}.String())
}
