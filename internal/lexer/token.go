package lexer

import (
	"fmt"
	"strconv"

	"github.com/roach88/lumen/internal/ir"
)

// Kind is the category of a token.
type Kind uint8

const (
	EOF Kind = iota
	Invalid
	Ident
	Keyword
	Punct
	Number
	String
	Regex
	Template // no substitutions: `text`
	TemplateHead
	TemplateMiddle
	TemplateTail
	JSXText
	Comment

	// trivia, never returned from Next
	kindWhitespace
	kindNewline

	noAccept Kind = 0xff
)

var kindNames = [...]string{
	EOF:            "EOF",
	Invalid:        "Invalid",
	Ident:          "Ident",
	Keyword:        "Keyword",
	Punct:          "Punct",
	Number:         "Number",
	String:         "String",
	Regex:          "Regex",
	Template:       "Template",
	TemplateHead:   "TemplateHead",
	TemplateMiddle: "TemplateMiddle",
	TemplateTail:   "TemplateTail",
	JSXText:        "JSXText",
	Comment:        "Comment",
	kindWhitespace: "Whitespace",
	kindNewline:    "Newline",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Token is one lexeme with its position. NewlineBefore records whether a
// line terminator occurred between the previous token and this one, which
// the parser needs for automatic semicolon insertion.
type Token struct {
	Kind          Kind
	Lexeme        string
	Span          ir.Span
	NewlineBefore bool
}

// Is reports whether t has the given kind and lexeme.
func (t Token) Is(kind Kind, lexeme string) bool {
	return t.Kind == kind && t.Lexeme == lexeme
}

// IsPunct reports whether t is the punctuator p.
func (t Token) IsPunct(p string) bool { return t.Is(Punct, p) }

// IsKeyword reports whether t is the reserved word kw.
func (t Token) IsKeyword(kw string) bool { return t.Is(Keyword, kw) }

func (t Token) String() string {
	if t.Kind == EOF {
		return "end of input"
	}
	return strconv.Quote(t.Lexeme)
}

// Mode selects the start state of the automaton. The parser switches modes
// where the same characters lex differently depending on syntactic context.
type Mode uint8

const (
	// ModeNormal lexes a slash as division.
	ModeNormal Mode = iota
	// ModeRegex lexes a slash as the start of a regular expression literal.
	ModeRegex
	// ModeJSXTag lexes inside a JSX tag: names may contain '-', and '>' never
	// combines with following characters.
	ModeJSXTag
	// ModeJSXChild lexes raw text between JSX tags up to '<' or '{'.
	ModeJSXChild
	// ModeTemplate continues a template literal at the '}' closing a
	// substitution.
	ModeTemplate
	numModes
)

var modeNames = [...]string{"normal", "regex", "jsx-tag", "jsx-child", "template"}

func (m Mode) String() string {
	if m < numModes {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// keywords are the reserved words. Contextual words such as async, of, get,
// set, static, as, from, type and interface lex as identifiers; the parser
// recognizes them by position.
var keywords = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "default": true,
	"delete": true, "do": true, "else": true, "enum": true, "export": true,
	"extends": true, "false": true, "finally": true, "for": true,
	"function": true, "if": true, "import": true, "in": true,
	"instanceof": true, "let": true, "new": true, "null": true,
	"return": true, "super": true, "switch": true, "this": true,
	"throw": true, "true": true, "try": true, "typeof": true, "var": true,
	"void": true, "while": true, "with": true, "yield": true,
}

// IsKeyword reports whether word is reserved.
func IsKeyword(word string) bool { return keywords[word] }
