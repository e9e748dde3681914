// Package lexer turns source text into tokens with a table-driven automaton.
//
// The automaton is a DFA over character classes with one start state per
// lexing mode. Each call to Next runs it with maximal munch: the longest
// prefix ending in an accepting state wins. Errors never stop the lexer;
// they produce a diagnostic and an Invalid token, and lexing resumes right
// after the offending input.
package lexer

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/roach88/lumen/internal/diag"
	"github.com/roach88/lumen/internal/ir"
)

// Lexer produces tokens lazily from one source text. It is not safe for
// concurrent use.
type Lexer struct {
	src      string
	pos      int
	line     int
	col      int
	mode     Mode
	comments bool
	done     bool
	diags    diag.List
}

// Option configures a Lexer.
type Option func(*Lexer)

// WithComments makes Next return Comment tokens instead of skipping them.
func WithComments() Option {
	return func(l *Lexer) { l.comments = true }
}

// WithMode sets the initial mode.
func WithMode(m Mode) Option {
	return func(l *Lexer) { l.mode = m }
}

// New creates a lexer over src starting at byte offset.
func New(src string, offset int, opts ...Option) *Lexer {
	l := &Lexer{src: src, line: 1, col: 1}
	for _, opt := range opts {
		opt(l)
	}
	offset = max(0, min(offset, len(src)))
	if offset == 0 && strings.HasPrefix(src, "#!") {
		// hashbang line
		offset = strings.IndexAny(src, "\r\n")
		if offset < 0 {
			offset = len(src)
		}
	}
	l.advanceTo(offset)
	return l
}

// Mode returns the current lexing mode.
func (l *Lexer) Mode() Mode { return l.mode }

// SetMode switches the mode used for subsequent tokens.
func (l *Lexer) SetMode(m Mode) { l.mode = m }

// Diagnostics returns the lexical errors reported so far.
func (l *Lexer) Diagnostics() diag.List { return slices.Clone(l.diags) }

// Next returns the next significant token. After the end of input it keeps
// returning EOF.
func (l *Lexer) Next() Token {
	newline := false
	for {
		if l.pos >= len(l.src) {
			p := l.position()
			return Token{Kind: EOF, Span: ir.Span{Start: p, End: p}, NewlineBefore: newline}
		}
		tok := l.lexOne()
		switch tok.Kind {
		case kindWhitespace:
			continue
		case kindNewline:
			newline = true
			continue
		case Comment:
			if hasLineTerminator(tok.Lexeme) {
				newline = true
			}
			if !l.comments {
				continue
			}
		}
		tok.NewlineBefore = newline
		return tok
	}
}

// All yields the remaining tokens, ending with exactly one EOF. The
// sequence is not restartable: once EOF has been yielded, further calls
// yield nothing.
func (l *Lexer) All() iter.Seq[Token] {
	return func(yield func(Token) bool) {
		for !l.done {
			tok := l.Next()
			if tok.Kind == EOF {
				l.done = true
			}
			if !yield(tok) {
				return
			}
		}
	}
}

// Relex rewinds to the start of tok and lexes one token in mode m. The
// persistent mode is left unchanged. Diagnostics reported at or after tok's
// offset are dropped, since the input there is being reinterpreted.
func (l *Lexer) Relex(tok Token, m Mode) Token {
	l.pos = tok.Span.Start.Offset
	l.line = tok.Span.Start.Line
	l.col = tok.Span.Start.Column
	l.done = false
	l.diags = slices.DeleteFunc(l.diags, func(d diag.Diagnostic) bool {
		return d.Span.Start.Offset >= l.pos
	})

	prev := l.mode
	l.mode = m
	out := l.Next()
	l.mode = prev
	out.NewlineBefore = tok.NewlineBefore
	return out
}

// Rewind moves the lexer back to the start of tok without producing a token,
// so the next call to Next (in the then-current mode) re-reads it.
func (l *Lexer) Rewind(tok Token) {
	l.pos = tok.Span.Start.Offset
	l.line = tok.Span.Start.Line
	l.col = tok.Span.Start.Column
	l.done = false
	l.diags = slices.DeleteFunc(l.diags, func(d diag.Diagnostic) bool {
		return d.Span.Start.Offset >= l.pos
	})
}

var unterminated = map[string]string{
	diag.CodeUnterminatedString:  "unterminated string literal",
	diag.CodeUnterminatedTmpl:    "unterminated template literal",
	diag.CodeUnterminatedRegex:   "unterminated regular expression",
	diag.CodeUnterminatedComment: "unterminated block comment",
}

func (l *Lexer) lexOne() Token {
	start := l.pos
	startPos := l.position()

	accEnd, kind, stop, stopAt := l.scan(dfa.start[l.mode])

	// Input ran out (or hit a forbidden line terminator) inside a literal.
	// The literal swallows everything scanned so far.
	if code := dfa.open[stop]; code != "" && stopAt > accEnd {
		l.advanceTo(stopAt)
		return l.invalid(start, startPos, code, unterminated[code])
	}

	if accEnd < 0 {
		r, size := utf8.DecodeRuneInString(l.src[start:])
		l.advanceTo(start + size)
		return l.invalid(start, startPos, diag.CodeInvalidChar, fmt.Sprintf("invalid character %q", r))
	}

	end := accEnd
	lexeme := l.src[start:end]
	// "?." before a digit is a conditional followed by a fraction: a?.5:b
	if kind == Punct && lexeme == "?." && end < len(l.src) && l.src[end] >= '0' && l.src[end] <= '9' {
		end--
	}
	l.advanceTo(end)

	if kind == Number && l.pos < len(l.src) {
		// A numeric literal must not run straight into an identifier or digit.
		r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
		if isIdentPart(classOf(r)) {
			for l.pos < len(l.src) {
				r, size := utf8.DecodeRuneInString(l.src[l.pos:])
				if !isIdentPart(classOf(r)) {
					break
				}
				l.advanceTo(l.pos + size)
			}
			return l.invalid(start, startPos, diag.CodeMalformedNumber, fmt.Sprintf("malformed number literal %q", l.src[start:l.pos]))
		}
	}

	tok := Token{Kind: kind, Lexeme: l.src[start:end], Span: ir.Span{Start: startPos, End: l.position()}}
	if kind == Ident && keywords[tok.Lexeme] {
		tok.Kind = Keyword
	}
	return tok
}

// scan runs the automaton from st at the current position without
// consuming input. It returns the end and kind of the longest accepted
// prefix (accEnd < 0 when none) and the state and offset where it stopped.
func (l *Lexer) scan(st state) (accEnd int, accKind Kind, stop state, stopAt int) {
	accEnd = -1
	i := l.pos
	for i < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[i:])
		nx := dfa.next[st][classOf(r)]
		if nx == dead {
			break
		}
		st = nx
		i += size
		if k := dfa.accept[st]; k != noAccept {
			accEnd, accKind = i, k
		}
	}
	return accEnd, accKind, st, i
}

func (l *Lexer) invalid(start int, startPos ir.Pos, code, msg string) Token {
	span := ir.Span{Start: startPos, End: l.position()}
	l.diags = append(l.diags, diag.Diagnostic{
		Kind:    diag.LexError,
		Code:    code,
		Message: msg,
		Span:    span,
	})
	return Token{Kind: Invalid, Lexeme: l.src[start:l.pos], Span: span}
}

func (l *Lexer) position() ir.Pos {
	return ir.Pos{Offset: l.pos, Line: l.line, Column: l.col}
}

// advanceTo moves to byte offset end, tracking line and column. A \r\n pair
// counts as one line terminator.
func (l *Lexer) advanceTo(end int) {
	for l.pos < end {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		l.pos += size
		switch {
		case r == '\r' && l.pos < len(l.src) && l.src[l.pos] == '\n':
			// counted at the \n
		case r == '\n' || r == '\r' || r == 0x2028 || r == 0x2029:
			l.line++
			l.col = 1
		default:
			l.col++
		}
	}
}

func hasLineTerminator(s string) bool {
	return strings.ContainsAny(s, "\r\n") || strings.ContainsRune(s, 0x2028) || strings.ContainsRune(s, 0x2029)
}
