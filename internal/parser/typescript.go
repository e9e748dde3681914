package parser

import (
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/lexer"
)

// Types are not represented in the IR. parseType consumes a type and
// returns its source text, which is kept in a "type" attribute.
func (p *parser) parseType() string {
	start := p.tok.Span.Start
	p.skipType()
	return p.text(start)
}

func (p *parser) skipType() {
	if !p.eat("|") {
		p.eat("&")
	}
	p.skipTypeOperand()
	for p.isPunct("|") || p.isPunct("&") {
		p.next()
		p.skipTypeOperand()
	}
	if p.isKeyword("extends") {
		// conditional type: A extends B ? C : D
		p.next()
		p.skipTypeOperand()
		p.expect("?")
		p.skipType()
		p.expect(":")
		p.skipType()
	}
}

var typePrefixes = map[string]bool{"keyof": true, "unique": true, "readonly": true, "infer": true, "asserts": true}

func (p *parser) skipTypeOperand() {
	if p.tok.Kind == lexer.Ident && typePrefixes[p.tok.Lexeme] {
		if nt := p.peek(); !nt.NewlineBefore && (nt.Kind == lexer.Ident || nt.Kind == lexer.Keyword ||
			nt.IsPunct("(") || nt.IsPunct("[") || nt.IsPunct("{")) {
			p.next()
			p.skipTypeOperand()
			return
		}
	}
	p.skipPrimaryType()
	for p.isPunct("[") && !p.tok.NewlineBefore {
		// T[] or T[K]
		p.next()
		if !p.isPunct("]") {
			p.skipType()
		}
		p.expect("]")
	}
}

func (p *parser) skipPrimaryType() {
	switch {
	case p.isKeyword("typeof"):
		p.next()
		p.skipTypeName()
	case p.isPunct("("):
		p.skipBalanced()
		p.skipFunctionTypeResult(false)
	case p.isPunct("<"):
		p.skipAngles()
		if !p.isPunct("(") {
			p.fail("(")
		}
		p.skipBalanced()
		p.skipFunctionTypeResult(true)
	case p.isKeyword("new"):
		p.next()
		p.skipTypeParams()
		if !p.isPunct("(") {
			p.fail("(")
		}
		p.skipBalanced()
		p.skipFunctionTypeResult(true)
	case p.isPunct("{"), p.isPunct("["):
		p.skipBalanced()
	case p.tok.Kind == lexer.String, p.tok.Kind == lexer.Number, p.tok.Kind == lexer.Template:
		p.next()
	case p.tok.Kind == lexer.TemplateHead:
		p.skipTemplateType()
	case p.isPunct("-"):
		p.next()
		if p.tok.Kind != lexer.Number {
			p.fail("number")
		}
		p.next()
	case p.tok.Kind == lexer.Ident, p.tok.Kind == lexer.Keyword:
		p.skipTypeName()
		if p.isContextual("is") && !p.tok.NewlineBefore {
			// type predicate: x is T
			p.next()
			p.skipType()
		}
	default:
		p.fail("type")
	}
}

// skipTypeName consumes a dotted name and optional type arguments.
func (p *parser) skipTypeName() {
	if p.tok.Kind != lexer.Ident && p.tok.Kind != lexer.Keyword {
		p.fail("type name")
	}
	p.next()
	for p.isPunct(".") {
		p.next()
		if p.tok.Kind != lexer.Ident && p.tok.Kind != lexer.Keyword {
			p.fail("type name")
		}
		p.next()
	}
	if p.isPunct("<") && !p.tok.NewlineBefore {
		p.skipAngles()
	}
}

// skipFunctionTypeResult consumes "=> T" after a parenthesized list. A
// parenthesized type without an arrow is allowed unless required is set.
func (p *parser) skipFunctionTypeResult(required bool) {
	if p.eat("=>") {
		p.skipType()
		return
	}
	if required {
		p.fail("=>")
	}
}

func (p *parser) skipTemplateType() {
	p.next()
	for {
		p.skipType()
		if !p.isPunct("}") {
			p.fail("}")
		}
		p.relex(lexer.ModeTemplate)
		switch p.tok.Kind {
		case lexer.TemplateMiddle:
			p.next()
		case lexer.TemplateTail:
			p.next()
			return
		default:
			p.fail("template continuation")
		}
	}
}

// skipBalanced consumes a bracketed group starting at the current opener.
func (p *parser) skipBalanced() {
	depth := 0
	for {
		switch {
		case p.tok.Kind == lexer.EOF:
			p.fail(")", "]", "}")
		case p.isPunct("(") || p.isPunct("[") || p.isPunct("{"):
			depth++
		case p.isPunct(")") || p.isPunct("]") || p.isPunct("}"):
			depth--
		}
		p.next()
		if depth == 0 {
			return
		}
	}
}

// skipAngles consumes a type parameter or argument list starting at "<".
// Closing runs such as ">>" are split one ">" at a time.
func (p *parser) skipAngles() {
	depth := 0
	for {
		switch {
		case p.tok.Kind == lexer.EOF:
			p.fail(">")
		case p.isPunct("<"):
			depth++
		case p.isCloseAngle():
			if !p.isPunct(">") {
				p.relex(lexer.ModeJSXTag)
			}
			depth--
		case p.isPunct("(") || p.isPunct("[") || p.isPunct("{"):
			p.skipBalanced()
			continue
		}
		p.next()
		if depth == 0 {
			return
		}
	}
}

func (p *parser) isCloseAngle() bool {
	switch p.tok.Lexeme {
	case ">", ">>", ">>>", ">=", ">>=", ">>>=":
		return p.tok.Kind == lexer.Punct
	}
	return false
}

// expectCloseAngle consumes one ">" ending a type assertion.
func (p *parser) expectCloseAngle() {
	if !p.isCloseAngle() {
		p.fail(">")
	}
	if !p.isPunct(">") {
		p.relex(lexer.ModeJSXTag)
	}
	p.next()
}

func (p *parser) skipTypeParams() {
	if p.mode.TypeScript() && p.isPunct("<") {
		p.skipAngles()
	}
}

func (p *parser) skipTypeArgs() { p.skipTypeParams() }

var accessModifiers = map[string]bool{
	"public": true, "private": true, "protected": true, "readonly": true,
	"abstract": true, "declare": true, "override": true, "static": true,
}

// skipModifiers consumes TypeScript member and parameter modifiers and
// reports whether one of them was static. A modifier word directly followed
// by the end of a member name is the name itself.
func (p *parser) skipModifiers() (static bool) {
	for p.tok.Kind == lexer.Ident && accessModifiers[p.tok.Lexeme] && !p.peekEndsMemberName() {
		if p.tok.Lexeme == "static" {
			static = true
		}
		p.next()
	}
	return static
}

// isIndexSignature reports whether the "[" at the current token opens an
// index signature ("[key: string]: T") rather than a computed name.
func (p *parser) isIndexSignature() bool {
	lx := lexer.New(p.src, p.tok.Span.End.Offset)
	name, colon := lx.Next(), lx.Next()
	return (name.Kind == lexer.Ident || name.Kind == lexer.Keyword) && colon.IsPunct(":")
}

func (p *parser) skipIndexSignature() {
	p.skipBalanced()
	if p.eat(":") {
		p.skipType()
	}
	if !p.eat(";") {
		p.eat(",")
	}
}

// parseTypeStatement handles declarations introduced by contextual words:
// interface, type, declare, abstract, namespace and module. ok is false
// when the current word starts an ordinary statement instead.
func (p *parser) parseTypeStatement() (h ir.Handle, ok bool) {
	nt := p.peek()
	if nt.NewlineBefore {
		return ir.NoHandle, false
	}
	named := nt.Kind == lexer.Ident || nt.Kind == lexer.Keyword
	start := p.tok.Span.Start

	switch p.tok.Lexeme {
	case "interface":
		if !named {
			return ir.NoHandle, false
		}
		h = p.node(ir.KindInterfaceDecl)
		p.next()
		p.setStr(h, ir.AttrName, p.tok.Lexeme)
		p.next()
		p.skipTypeParams()
		if p.isKeyword("extends") {
			p.next()
			for {
				p.skipType()
				if !p.eat(",") {
					break
				}
			}
		}
		if !p.isPunct("{") {
			p.fail("{")
		}
		body := p.tok.Span.Start
		p.skipBalanced()
		p.setStr(h, ir.AttrText, p.text(body))
		return p.finish(h), true

	case "type":
		if !named {
			return ir.NoHandle, false
		}
		h = p.node(ir.KindTypeAlias)
		p.next()
		p.setStr(h, ir.AttrName, p.tok.Lexeme)
		p.next()
		p.skipTypeParams()
		p.expect("=")
		p.setStr(h, ir.AttrText, p.parseType())
		p.consumeSemicolon()
		return p.finish(h), true

	case "declare":
		if !named {
			return ir.NoHandle, false
		}
		// Ambient declarations have no runtime effect.
		p.next()
		p.discard(p.parseStatement())
		h = p.nodeAt(ir.KindEmpty, start)
		return p.finish(h), true

	case "abstract":
		if !nt.IsKeyword("class") {
			return ir.NoHandle, false
		}
		p.next()
		return p.parseClass(ir.KindClassDecl, start), true

	case "namespace", "module", "global":
		if !named && nt.Kind != lexer.String && !(p.tok.Lexeme == "global" && nt.IsPunct("{")) {
			return ir.NoHandle, false
		}
		p.next()
		if p.tok.Kind == lexer.String {
			p.next()
		} else if !p.isPunct("{") {
			p.skipTypeName()
		}
		if p.isPunct("{") {
			p.skipBalanced()
		} else {
			p.consumeSemicolon()
		}
		h = p.nodeAt(ir.KindEmpty, start)
		return p.finish(h), true
	}
	return ir.NoHandle, false
}

func (p *parser) parseEnum(start ir.Pos, isConst bool) ir.Handle {
	h := p.nodeAt(ir.KindEnumDecl, start)
	p.expectKeyword("enum")
	if !p.isBindingIdent() {
		p.fail("identifier")
	}
	p.setStr(h, ir.AttrName, p.tok.Lexeme)
	p.next()
	if isConst {
		p.setFlag(h, ir.AttrConst)
	}
	p.expect("{")
	for !p.isPunct("}") {
		m := p.node(ir.KindEnumMember)
		switch p.tok.Kind {
		case lexer.Ident, lexer.Keyword:
			p.setStr(m, ir.AttrName, p.tok.Lexeme)
		case lexer.String:
			p.setStr(m, ir.AttrName, p.stringValue(p.tok))
		default:
			p.fail("enum member name")
		}
		p.next()
		if p.eat("=") {
			p.add(m, p.parseAssign(false))
		}
		p.add(h, p.finish(m))
		if !p.isPunct("}") {
			p.expect(",")
		}
	}
	p.expect("}")
	return p.finish(h)
}
