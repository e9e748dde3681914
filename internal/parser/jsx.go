package parser

import (
	"fmt"
	"strings"

	"github.com/roach88/lumen/internal/diag"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/lexer"
)

// parseJSX parses an element or fragment at the current "<". after is the
// lexer mode for the token following the final ">": normal in expression
// position, tag mode inside an attribute value.
func (p *parser) parseJSX(after lexer.Mode) ir.Handle {
	start := p.tok.Span.Start
	p.nextIn(lexer.ModeJSXTag)
	return p.parseJSXElement(start, after)
}

// parseJSXElement continues after the opening "<".
func (p *parser) parseJSXElement(start ir.Pos, after lexer.Mode) ir.Handle {
	if p.isPunct(">") {
		h := p.nodeAt(ir.KindJSXFragment, start)
		p.nextIn(lexer.ModeJSXChild)
		p.parseJSXChildren(h)
		p.closeJSX(after)
		return p.finish(h)
	}

	h := p.nodeAt(ir.KindJSXElement, start)
	name := p.parseJSXName()
	p.setStr(h, ir.AttrName, name)

	for !p.isPunct(">") && !p.isPunct("/") {
		p.add(h, p.parseJSXAttribute())
	}

	if p.eat("/") {
		p.setFlag(h, ir.AttrSelfClosing)
		p.closeJSX(after)
		return p.finish(h)
	}
	if !p.isPunct(">") {
		p.fail(">")
	}
	p.nextIn(lexer.ModeJSXChild)
	p.parseJSXChildren(h)

	closeStart := p.prev.Span.Start
	if closing := p.parseJSXName(); closing != name {
		p.errorAt(ir.Span{Start: closeStart, End: p.prev.Span.End}, diag.CodeUnexpectedToken,
			fmt.Sprintf("closing tag </%s> does not match <%s>", closing, name), []string{"</" + name + ">"})
	}
	p.closeJSX(after)
	return p.finish(h)
}

// closeJSX consumes the ">" ending a tag and lexes on in mode after.
func (p *parser) closeJSX(after lexer.Mode) {
	if !p.isPunct(">") {
		p.fail(">")
	}
	p.nextIn(after)
}

// parseJSXName reads a tag or attribute name, including member (a.b) and
// namespaced (a:b) forms.
func (p *parser) parseJSXName() string {
	if p.tok.Kind != lexer.Ident && p.tok.Kind != lexer.Keyword {
		p.fail("JSX name")
	}
	var b strings.Builder
	b.WriteString(p.tok.Lexeme)
	p.next()
	for p.isPunct(".") || p.isPunct(":") {
		b.WriteString(p.tok.Lexeme)
		p.next()
		if p.tok.Kind != lexer.Ident && p.tok.Kind != lexer.Keyword {
			p.fail("JSX name")
		}
		b.WriteString(p.tok.Lexeme)
		p.next()
	}
	return b.String()
}

func (p *parser) parseJSXAttribute() ir.Handle {
	if p.isPunct("{") {
		start := p.tok.Span.Start
		p.nextIn(lexer.ModeNormal)
		if !p.isPunct("...") {
			p.fail("...")
		}
		sp := p.nodeAt(ir.KindSpread, start)
		p.next()
		p.add(sp, p.parseAssign(false))
		if !p.isPunct("}") {
			p.fail("}")
		}
		p.nextIn(lexer.ModeJSXTag)
		return p.finish(sp)
	}

	attr := p.node(ir.KindJSXAttribute)
	p.setStr(attr, ir.AttrName, p.parseJSXName())
	if !p.eat("=") {
		return p.finish(attr)
	}
	switch {
	case p.tok.Kind == lexer.String:
		raw := p.tok.Lexeme
		s := p.node(ir.KindString)
		p.setStr(s, ir.AttrValue, raw[1:len(raw)-1])
		p.setStr(s, ir.AttrRaw, raw)
		p.next()
		p.add(attr, p.finish(s))
	case p.isPunct("{"):
		ex := p.node(ir.KindJSXExpression)
		p.nextIn(lexer.ModeNormal)
		p.add(ex, p.parseAssign(false))
		if !p.isPunct("}") {
			p.fail("}")
		}
		p.nextIn(lexer.ModeJSXTag)
		p.add(attr, p.finish(ex))
	case p.isPunct("<"):
		p.add(attr, p.parseJSX(lexer.ModeJSXTag))
	default:
		p.fail("attribute value")
	}
	return p.finish(attr)
}

// parseJSXChildren parses children up to and including the "</" of the
// closing tag.
func (p *parser) parseJSXChildren(parent ir.Handle) {
	for {
		switch {
		case p.tok.Kind == lexer.JSXText:
			if text := cleanJSXText(p.tok.Lexeme); text != "" {
				t := p.store.New(ir.KindJSXText, p.tok.Span)
				p.setStr(t, ir.AttrValue, text)
				p.setStr(t, ir.AttrRaw, p.tok.Lexeme)
				p.add(parent, t)
			}
			p.next()

		case p.isPunct("{"):
			ex := p.node(ir.KindJSXExpression)
			p.nextIn(lexer.ModeNormal)
			empty := p.isPunct("}")
			if !empty {
				p.add(ex, p.parseExpression(false))
			}
			if !p.isPunct("}") {
				p.fail("}")
			}
			p.nextIn(lexer.ModeJSXChild)
			if empty {
				p.discard(ex)
			} else {
				p.add(parent, p.finish(ex))
			}

		case p.isPunct("<"):
			start := p.tok.Span.Start
			p.nextIn(lexer.ModeJSXTag)
			if p.eat("/") {
				return
			}
			p.add(parent, p.parseJSXElement(start, lexer.ModeJSXChild))

		default:
			p.fail("closing tag")
		}
	}
}

// cleanJSXText applies the usual JSX whitespace rules: lines are trimmed,
// blank lines dropped, and the rest joined with single spaces. Whitespace
// within a single line is kept.
func cleanJSXText(raw string) string {
	lines := strings.Split(raw, "\n")
	if len(lines) == 1 {
		return raw
	}
	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		if i > 0 {
			line = strings.TrimLeft(line, " \t\r")
		}
		if i < len(lines)-1 {
			line = strings.TrimRight(line, " \t\r")
		}
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, " ")
}
