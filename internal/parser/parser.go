// Package parser builds an IR store directly from JavaScript, TypeScript
// and JSX source.
//
// The parser is a single-pass recursive descent over the lexer's token
// stream with one token of lookahead. Every production allocates IR nodes
// as it goes; no intermediate syntax tree exists.
//
// Syntax errors never abort a parse. The failing statement is abandoned,
// any nodes it allocated are discarded, tokens are skipped to the next
// statement boundary and parsing resumes, so one pass reports every
// independent error in a file.
package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/roach88/lumen/internal/diag"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/lexer"
)

// Result is the outcome of parsing one unit.
type Result struct {
	Store       *ir.Store
	Diagnostics diag.List
	Mode        Mode
}

// Parse parses src in the given mode. Lexical and syntax errors are
// reported in Result.Diagnostics; the error return is reserved for IR
// invariant violations, which indicate a parser defect.
func Parse(src string, mode Mode) (*Result, error) {
	p := &parser{
		src:   src,
		mode:  mode,
		lx:    lexer.New(src, 0),
		store: ir.NewStore(),
	}
	p.next()
	p.parseProgram()

	if p.internal != nil {
		return nil, fmt.Errorf("parser: %w", p.internal)
	}
	if err := p.store.Validate(); err != nil {
		return nil, err
	}
	diags := append(p.lx.Diagnostics(), p.diags...)
	return &Result{Store: p.store, Diagnostics: diags.Sorted(), Mode: mode}, nil
}

// ParseFile reads and parses path, choosing the mode from its extension.
// Diagnostics carry the path.
func ParseFile(path string) (*Result, error) {
	mode, ok := ModeFromPath(path)
	if !ok {
		return nil, fmt.Errorf("unsupported source file %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}
	res, err := Parse(string(data), mode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	res.Diagnostics = res.Diagnostics.WithPath(path)
	return res, nil
}

// bailout unwinds the current statement after a syntax error has been
// recorded.
type bailout struct{}

type parser struct {
	src   string
	mode  Mode
	lx    *lexer.Lexer
	store *ir.Store

	tok   lexer.Token  // current token
	prev  lexer.Token  // last consumed token
	ahead *lexer.Token // one token of pushback

	diags    diag.List
	internal error

	// noTypedArrow disables "(params): Type =>" recognition inside the
	// consequent of a conditional, where the colon belongs to the
	// conditional.
	noTypedArrow int

	jumps jumpScope
}

// next consumes the current token.
func (p *parser) next() {
	p.prev = p.tok
	if p.ahead != nil {
		p.tok = *p.ahead
		p.ahead = nil
		return
	}
	p.tok = p.lx.Next()
}

// peek returns the token after the current one without consuming.
func (p *parser) peek() lexer.Token {
	if p.ahead == nil {
		t := p.lx.Next()
		p.ahead = &t
	}
	return *p.ahead
}

// nextIn consumes the current token and lexes the following one in mode m,
// which stays the lexer's mode until changed.
func (p *parser) nextIn(m lexer.Mode) {
	p.lx.SetMode(m)
	if p.ahead != nil {
		p.lx.Rewind(*p.ahead)
		p.ahead = nil
	}
	p.next()
}

// relex re-reads the current token in mode m. Used where the lexer's guess
// was wrong: a slash starting a regex, a brace continuing a template, a
// shift operator closing nested type arguments.
func (p *parser) relex(m lexer.Mode) {
	p.ahead = nil
	p.tok = p.lx.Relex(p.tok, m)
}

func (p *parser) isPunct(s string) bool   { return p.tok.IsPunct(s) }
func (p *parser) isKeyword(s string) bool { return p.tok.IsKeyword(s) }

// isContextual reports whether the current token is the identifier word,
// such as "of", "async" or "type".
func (p *parser) isContextual(word string) bool { return p.tok.Is(lexer.Ident, word) }

func (p *parser) eat(punct string) bool {
	if p.isPunct(punct) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(punct string) {
	if !p.eat(punct) {
		p.fail(punct)
	}
}

func (p *parser) expectKeyword(kw string) {
	if !p.isKeyword(kw) {
		p.fail(kw)
	}
	p.next()
}

// fail records a syntax error at the current token and abandons the
// statement.
func (p *parser) fail(expected ...string) {
	code := diag.CodeUnexpectedToken
	if p.tok.Kind == lexer.EOF {
		code = diag.CodeUnexpectedEOF
	}
	what := p.tok.String()
	if p.tok.Kind == lexer.Invalid {
		what = "invalid token " + what
	}
	p.errorAt(p.tok.Span, code, "unexpected "+what, expected)
}

func (p *parser) errorAt(span ir.Span, code, msg string, expected []string) {
	p.diags = append(p.diags, diag.Diagnostic{
		Kind:     diag.SyntaxError,
		Code:     code,
		Message:  msg,
		Span:     span,
		Expected: expected,
	})
	panic(bailout{})
}

// node allocates a detached node starting at the current token.
func (p *parser) node(kind ir.Kind) ir.Handle {
	return p.store.New(kind, ir.Span{Start: p.tok.Span.Start, End: p.tok.Span.Start})
}

// nodeAt allocates a detached node starting at start.
func (p *parser) nodeAt(kind ir.Kind, start ir.Pos) ir.Handle {
	return p.store.New(kind, ir.Span{Start: start, End: start})
}

// finish extends h's span to the end of the last consumed token.
func (p *parser) finish(h ir.Handle) ir.Handle {
	span := p.store.Span(h)
	if p.prev.Span.End.Offset >= span.Start.Offset {
		span.End = p.prev.Span.End
	}
	p.store.SetSpan(h, span)
	return h
}

func (p *parser) start(h ir.Handle) ir.Pos { return p.store.Span(h).Start }

// add appends children in order. Store errors here are parser defects.
func (p *parser) add(parent ir.Handle, children ...ir.Handle) {
	for _, c := range children {
		if c == ir.NoHandle {
			continue
		}
		if err := p.store.Append(parent, c); err != nil && p.internal == nil {
			p.internal = err
		}
	}
}

// wrap allocates kind spanning from child's start, with child as first child.
func (p *parser) wrap(kind ir.Kind, child ir.Handle) ir.Handle {
	h := p.nodeAt(kind, p.start(child))
	p.add(h, child)
	return h
}

func (p *parser) setStr(h ir.Handle, key, v string) { p.store.SetAttr(h, key, ir.String(v)) }
func (p *parser) setFlag(h ir.Handle, key string) { p.store.SetAttr(h, key, ir.Bool(true)) }

// text returns the source between start and the end of the last consumed
// token.
func (p *parser) text(start ir.Pos) string {
	end := p.prev.Span.End.Offset
	if end < start.Offset {
		return ""
	}
	return strings.TrimSpace(p.src[start.Offset:end])
}

func (p *parser) parseProgram() {
	root := p.store.Root()
	p.statementList(root, func() bool { return false })
	p.store.SetSpan(root, ir.Span{
		Start: ir.Pos{Offset: 0, Line: 1, Column: 1},
		End:   p.tok.Span.End,
	})
	p.bindExports()
}

// statementList parses statements into parent until done reports true or
// input ends, recovering from each failed statement independently.
func (p *parser) statementList(parent ir.Handle, done func() bool) {
	for p.tok.Kind != lexer.EOF && !done() {
		startOffset := p.tok.Span.Start.Offset
		mark := p.store.Next()
		if h, ok := p.tryStatement(); ok {
			p.add(parent, h)
			continue
		}
		p.store.DiscardOrphans(mark)
		p.synchronize(startOffset)
	}
}

func (p *parser) tryStatement() (h ir.Handle, ok bool) {
	saved, jumps := p.noTypedArrow, p.jumps
	defer func() {
		if r := recover(); r != nil {
			if _, isBailout := r.(bailout); !isBailout {
				panic(r)
			}
			p.noTypedArrow = saved
			p.jumps = jumps
			h, ok = ir.NoHandle, false
		}
	}()
	return p.parseStatement(), true
}

// synchronize skips to a statement boundary: past a semicolon, before a
// closing brace, or before a token that starts a new line.
func (p *parser) synchronize(startOffset int) {
	if p.lx.Mode() != lexer.ModeNormal {
		p.nextIn(lexer.ModeNormal)
	} else if p.tok.Span.Start.Offset == startOffset && p.tok.Kind != lexer.EOF {
		p.next()
	}
	for {
		switch {
		case p.tok.Kind == lexer.EOF, p.isPunct("}"):
			return
		case p.isPunct(";"):
			p.next()
			return
		case p.tok.NewlineBefore:
			return
		}
		p.next()
	}
}

// consumeSemicolon applies automatic semicolon insertion.
func (p *parser) consumeSemicolon() {
	if p.eat(";") {
		return
	}
	if p.isPunct("}") || p.tok.Kind == lexer.EOF || p.tok.NewlineBefore {
		return
	}
	p.fail(";")
}

// bindExports links local export specifiers to the top-level node that
// declares their binding.
func (p *parser) bindExports() {
	s := p.store
	decls := make(map[string]ir.Handle)
	declare := func(name string, h ir.Handle) {
		if _, dup := decls[name]; !dup && name != "" {
			decls[name] = h
		}
	}
	var scan func(stmt ir.Handle)
	scan = func(stmt ir.Handle) {
		switch s.Kind(stmt) {
		case ir.KindFunctionDecl, ir.KindClassDecl, ir.KindEnumDecl:
			declare(s.Str(stmt, ir.AttrName), stmt)
		case ir.KindVariableDecl:
			for _, d := range s.Children(stmt) {
				if t := s.Child(d, 0); s.Kind(t) == ir.KindIdentifier {
					declare(s.Str(t, ir.AttrName), d)
				}
			}
		case ir.KindImportDecl:
			for _, spec := range s.Children(stmt) {
				declare(s.Str(spec, ir.AttrLocal), spec)
			}
		case ir.KindExportDecl:
			if s.Str(stmt, ir.AttrForm) == ir.ExportDeclaration || s.Str(stmt, ir.AttrForm) == ir.ExportDefault {
				scan(s.Child(stmt, 0))
			}
		}
	}
	for _, stmt := range s.Children(s.Root()) {
		scan(stmt)
	}

	for _, stmt := range s.Children(s.Root()) {
		if s.Kind(stmt) != ir.KindExportDecl || s.Str(stmt, ir.AttrForm) != ir.ExportNamed {
			continue
		}
		if _, reexport := s.Attr(stmt, ir.AttrSource); reexport {
			continue
		}
		for _, spec := range s.Children(stmt) {
			if target, ok := decls[s.Str(spec, ir.AttrLocal)]; ok {
				s.SetAttr(spec, ir.AttrBinding, ir.Ref(target))
			}
		}
	}
}
