package parser

import (
	"strings"

	"github.com/roach88/lumen/internal/diag"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/lexer"
)

// Binary operator precedence, loosest first. "**" is right-associative.
var binaryPrec = map[string]int{
	"??": 1,
	"||": 2,
	"&&": 3,
	"|":  4,
	"^":  5,
	"&":  6,
	"==": 7, "!=": 7, "===": 7, "!==": 7,
	"<": 8, ">": 8, "<=": 8, ">=": 8, "instanceof": 8, "in": 8,
	"<<": 9, ">>": 9, ">>>": 9,
	"+": 10, "-": 10,
	"*": 11, "/": 11, "%": 11,
	"**": 12,
}

const relationalPrec = 8

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"**=": true, "<<=": true, ">>=": true, ">>>=": true, "&=": true,
	"|=": true, "^=": true, "&&=": true, "||=": true, "??=": true,
}

func isLogicalOp(op string) bool { return op == "&&" || op == "||" || op == "??" }

// parseExpression parses a comma expression. noIn excludes the "in"
// operator, as required in for-statement headers.
func (p *parser) parseExpression(noIn bool) ir.Handle {
	first := p.parseAssign(noIn)
	if !p.isPunct(",") {
		return first
	}
	seq := p.wrap(ir.KindSequence, first)
	for p.eat(",") {
		p.add(seq, p.parseAssign(noIn))
	}
	return p.finish(seq)
}

func (p *parser) parseAssign(noIn bool) ir.Handle {
	if p.isKeyword("yield") {
		return p.parseYield(noIn)
	}
	left := p.parseConditional(noIn)
	if p.tok.Kind != lexer.Punct || !assignOps[p.tok.Lexeme] {
		return left
	}
	op := p.tok.Lexeme
	if !p.assignable(left, op == "=") {
		p.errorAt(p.store.Span(left), diag.CodeInvalidTarget, "invalid assignment target", nil)
	}
	p.next()
	h := p.wrap(ir.KindAssign, left)
	p.setStr(h, ir.AttrOp, op)
	p.add(h, p.parseAssign(noIn))
	return p.finish(h)
}

// assignable reports whether h may appear on the left of an assignment.
// Object and array literals are accepted as destructuring patterns for
// plain "=".
func (p *parser) assignable(h ir.Handle, pattern bool) bool {
	switch p.store.Kind(h) {
	case ir.KindIdentifier, ir.KindMember:
		return true
	case ir.KindObject, ir.KindArray:
		return pattern
	case ir.KindNonNull, ir.KindAs:
		return p.assignable(p.store.Child(h, 0), false)
	}
	return false
}

func (p *parser) parseYield(noIn bool) ir.Handle {
	h := p.node(ir.KindYield)
	p.next()
	if p.eat("*") {
		p.setFlag(h, ir.AttrDelegate)
		p.add(h, p.parseAssign(noIn))
		return p.finish(h)
	}
	if !p.tok.NewlineBefore && p.startsExpression() {
		p.add(h, p.parseAssign(noIn))
	}
	return p.finish(h)
}

// startsExpression reports whether the current token can begin an operand.
func (p *parser) startsExpression() bool {
	switch p.tok.Kind {
	case lexer.EOF:
		return false
	case lexer.Punct:
		switch p.tok.Lexeme {
		case ")", "]", "}", ",", ";", ":", "=>", "?", "?.", ".", "=":
			return false
		}
	case lexer.Keyword:
		return p.tok.Lexeme != "in" && p.tok.Lexeme != "instanceof" && p.tok.Lexeme != "of"
	}
	return true
}

func (p *parser) parseConditional(noIn bool) ir.Handle {
	test := p.parseBinary(1, noIn)
	if !p.isPunct("?") {
		return test
	}
	if p.mode.TypeScript() {
		// "x?" inside a parameter list marks an optional parameter.
		if nt := p.peek(); nt.IsPunct(":") || nt.IsPunct(",") || nt.IsPunct(")") || nt.IsPunct("=") {
			return test
		}
	}
	h := p.wrap(ir.KindConditional, test)
	p.next()
	p.noTypedArrow++
	cons := p.parseAssign(false)
	p.noTypedArrow--
	p.expect(":")
	alt := p.parseAssign(noIn)
	p.add(h, cons, alt)
	return p.finish(h)
}

func (p *parser) binaryPrecedence(noIn bool) int {
	switch p.tok.Kind {
	case lexer.Punct:
		return binaryPrec[p.tok.Lexeme]
	case lexer.Keyword:
		if p.tok.Lexeme == "in" && noIn {
			return 0
		}
		if p.tok.Lexeme == "in" || p.tok.Lexeme == "instanceof" {
			return relationalPrec
		}
	}
	return 0
}

// parseBinary is precedence climbing over binaryPrec.
func (p *parser) parseBinary(minPrec int, noIn bool) ir.Handle {
	left := p.parseUnary()
	for {
		if p.mode.TypeScript() && (p.isContextual("as") || p.isContextual("satisfies")) &&
			!p.tok.NewlineBefore && relationalPrec >= minPrec {
			h := p.wrap(ir.KindAs, left)
			if p.tok.Lexeme == "satisfies" {
				p.setStr(h, ir.AttrKind, "satisfies")
			}
			p.next()
			p.setStr(h, ir.AttrType, p.parseType())
			left = p.finish(h)
			continue
		}

		prec := p.binaryPrecedence(noIn)
		if prec == 0 || prec < minPrec {
			return left
		}
		op := p.tok.Lexeme
		p.next()
		nextMin := prec + 1
		if op == "**" {
			nextMin = prec
		}
		right := p.parseBinary(nextMin, noIn)

		kind := ir.KindBinary
		if isLogicalOp(op) {
			kind = ir.KindLogical
		}
		h := p.wrap(kind, left)
		p.setStr(h, ir.AttrOp, op)
		p.add(h, right)
		left = p.finish(h)
	}
}

func (p *parser) parseUnary() ir.Handle {
	t := p.tok
	switch {
	case t.Kind == lexer.Punct && (t.Lexeme == "!" || t.Lexeme == "~" || t.Lexeme == "+" || t.Lexeme == "-"),
		t.Kind == lexer.Keyword && (t.Lexeme == "typeof" || t.Lexeme == "void" || t.Lexeme == "delete"):
		h := p.node(ir.KindUnary)
		p.setStr(h, ir.AttrOp, t.Lexeme)
		p.next()
		p.add(h, p.parseUnary())
		return p.finish(h)

	case t.IsPunct("++") || t.IsPunct("--"):
		h := p.node(ir.KindUpdate)
		p.setStr(h, ir.AttrOp, t.Lexeme)
		p.setFlag(h, ir.AttrPrefix)
		p.next()
		operand := p.parseUnary()
		if !p.assignable(operand, false) {
			p.errorAt(p.store.Span(operand), diag.CodeInvalidTarget, "invalid update target", nil)
		}
		p.add(h, operand)
		return p.finish(h)

	case t.IsKeyword("await"):
		h := p.node(ir.KindAwait)
		p.next()
		p.add(h, p.parseUnary())
		return p.finish(h)

	case t.IsPunct("<") && p.mode == TypeScript:
		// <Type>expr assertion; TSX reads "<" as JSX instead.
		h := p.node(ir.KindAs)
		p.setStr(h, ir.AttrKind, "angle")
		p.next()
		p.setStr(h, ir.AttrType, p.parseType())
		p.expectCloseAngle()
		p.add(h, p.parseUnary())
		return p.finish(h)
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() ir.Handle {
	expr := p.parseLeftHandSide()
	if (p.isPunct("++") || p.isPunct("--")) && !p.tok.NewlineBefore {
		if !p.assignable(expr, false) {
			p.errorAt(p.store.Span(expr), diag.CodeInvalidTarget, "invalid update target", nil)
		}
		h := p.wrap(ir.KindUpdate, expr)
		p.setStr(h, ir.AttrOp, p.tok.Lexeme)
		p.next()
		return p.finish(h)
	}
	return expr
}

func (p *parser) parseLeftHandSide() ir.Handle {
	var expr ir.Handle
	if p.isKeyword("new") {
		expr = p.parseNew()
	} else {
		expr = p.parsePrimary()
	}
	return p.parseCallTail(expr, true)
}

// parseCallTail applies member accesses, calls (when allowCall), tagged
// templates and non-null assertions to expr.
func (p *parser) parseCallTail(expr ir.Handle, allowCall bool) ir.Handle {
	for {
		switch {
		case p.isPunct("."):
			p.next()
			expr = p.parseMemberName(expr, false)

		case p.isPunct("?."):
			p.next()
			switch {
			case p.isPunct("(") && allowCall:
				call := p.wrap(ir.KindCall, expr)
				p.setFlag(call, ir.AttrOptional)
				p.parseArguments(call)
				expr = p.finish(call)
			case p.isPunct("["):
				expr = p.parseComputedMember(expr, true)
			default:
				expr = p.parseMemberName(expr, true)
			}

		case p.isPunct("["):
			expr = p.parseComputedMember(expr, false)

		case p.isPunct("(") && allowCall:
			call := p.wrap(ir.KindCall, expr)
			p.parseArguments(call)
			p.finish(call)
			if p.isAsyncArrowHead(call) {
				return p.asyncArrowFromCall(call)
			}
			expr = call

		case p.tok.Kind == lexer.Template || p.tok.Kind == lexer.TemplateHead:
			h := p.wrap(ir.KindTaggedTemplate, expr)
			p.add(h, p.parseTemplate(true))
			expr = p.finish(h)

		case p.isPunct("!") && p.mode.TypeScript() && !p.tok.NewlineBefore:
			h := p.wrap(ir.KindNonNull, expr)
			p.next()
			expr = p.finish(h)

		default:
			return expr
		}
	}
}

func (p *parser) parseMemberName(object ir.Handle, optional bool) ir.Handle {
	if p.tok.Kind != lexer.Ident && p.tok.Kind != lexer.Keyword {
		p.fail("property name")
	}
	h := p.wrap(ir.KindMember, object)
	p.setStr(h, ir.AttrName, p.tok.Lexeme)
	if optional {
		p.setFlag(h, ir.AttrOptional)
	}
	p.next()
	return p.finish(h)
}

func (p *parser) parseComputedMember(object ir.Handle, optional bool) ir.Handle {
	h := p.wrap(ir.KindMember, object)
	p.setFlag(h, ir.AttrComputed)
	if optional {
		p.setFlag(h, ir.AttrOptional)
	}
	p.expect("[")
	p.add(h, p.parseExpression(false))
	p.expect("]")
	return p.finish(h)
}

func (p *parser) parseArguments(call ir.Handle) {
	p.expect("(")
	for !p.isPunct(")") {
		if p.isPunct("...") {
			sp := p.node(ir.KindSpread)
			p.next()
			p.add(sp, p.parseAssign(false))
			p.add(call, p.finish(sp))
		} else {
			p.add(call, p.parseAssign(false))
		}
		if !p.eat(",") {
			break
		}
	}
	p.expect(")")
}

func (p *parser) parseNew() ir.Handle {
	start := p.tok.Span.Start
	if p.peek().IsPunct(".") {
		// new.target
		p.next()
		p.next()
		if !p.isContextual("target") {
			p.fail("target")
		}
		id := p.nodeAt(ir.KindIdentifier, start)
		p.setStr(id, ir.AttrName, "new.target")
		p.next()
		return p.finish(id)
	}
	h := p.node(ir.KindNew)
	p.next()
	var callee ir.Handle
	if p.isKeyword("new") {
		callee = p.parseNew()
	} else {
		callee = p.parsePrimary()
	}
	p.add(h, p.parseCallTail(callee, false))
	if p.isPunct("(") {
		p.parseArguments(h)
	}
	return p.finish(h)
}

func (p *parser) parsePrimary() ir.Handle {
	t := p.tok
	switch t.Kind {
	case lexer.Ident:
		nt := p.peek()
		if t.Lexeme == "async" && !nt.NewlineBefore {
			switch {
			case nt.IsKeyword("function"):
				start := t.Span.Start
				p.next()
				return p.parseFunction(ir.KindFunctionExpr, start, true)
			case nt.Kind == lexer.Ident:
				start := t.Span.Start
				p.next()
				return p.parseArrowFromIdent(start, true)
			}
		}
		if nt.IsPunct("=>") && !nt.NewlineBefore {
			return p.parseArrowFromIdent(t.Span.Start, false)
		}
		return p.parseIdentifierRef()

	case lexer.Keyword:
		switch t.Lexeme {
		case "this":
			return p.leaf(ir.KindThis)
		case "super":
			return p.leaf(ir.KindSuper)
		case "null":
			return p.leaf(ir.KindNull)
		case "true", "false":
			h := p.node(ir.KindBoolean)
			p.store.SetAttr(h, ir.AttrValue, ir.Bool(t.Lexeme == "true"))
			p.next()
			return p.finish(h)
		case "function":
			return p.parseFunction(ir.KindFunctionExpr, t.Span.Start, false)
		case "class":
			return p.parseClass(ir.KindClassExpr, t.Span.Start)
		case "new":
			return p.parseNew()
		case "let", "yield", "await", "import":
			if t.Lexeme != "import" && p.peek().IsPunct("=>") {
				return p.parseArrowFromIdent(t.Span.Start, false)
			}
			return p.parseIdentifierRef()
		}

	case lexer.Number:
		return p.parseNumber()

	case lexer.String:
		h := p.node(ir.KindString)
		p.setStr(h, ir.AttrValue, p.stringValue(t))
		p.setStr(h, ir.AttrRaw, t.Lexeme)
		p.next()
		return p.finish(h)

	case lexer.Template, lexer.TemplateHead:
		return p.parseTemplate(false)

	case lexer.Punct:
		switch t.Lexeme {
		case "(":
			return p.parseParenthesized()
		case "[":
			return p.parseArray()
		case "{":
			return p.parseObject()
		case "/", "/=":
			return p.parseRegex()
		case "<":
			if p.mode.JSX() {
				return p.parseJSX(lexer.ModeNormal)
			}
		}
	}
	p.fail("expression")
	return ir.NoHandle
}

func (p *parser) leaf(kind ir.Kind) ir.Handle {
	h := p.node(kind)
	p.next()
	return p.finish(h)
}

// parseIdentifierRef reads an identifier in expression position. Reserved
// words usable as names there (let, yield, await, import) are accepted.
func (p *parser) parseIdentifierRef() ir.Handle {
	h := p.node(ir.KindIdentifier)
	p.setStr(h, ir.AttrName, p.tok.Lexeme)
	p.next()
	return p.finish(h)
}

func (p *parser) parseNumber() ir.Handle {
	h := p.node(ir.KindNumber)
	v, bigint := numberValue(p.tok.Lexeme)
	p.store.SetAttr(h, ir.AttrValue, ir.Number(v))
	p.setStr(h, ir.AttrRaw, p.tok.Lexeme)
	if bigint {
		p.setFlag(h, ir.AttrBigInt)
	}
	p.next()
	return p.finish(h)
}

func (p *parser) parseRegex() ir.Handle {
	p.relex(lexer.ModeRegex)
	if p.tok.Kind != lexer.Regex {
		p.fail("regular expression")
	}
	raw := p.tok.Lexeme
	end := strings.LastIndexByte(raw, '/')
	h := p.node(ir.KindRegExp)
	p.setStr(h, ir.AttrPattern, raw[1:end])
	p.setStr(h, ir.AttrFlags, raw[end+1:])
	p.setStr(h, ir.AttrRaw, raw)
	p.next()
	return p.finish(h)
}

// parseTemplate reads a template literal. Tagged templates may contain
// malformed escapes; the tag only sees the raw text for those.
func (p *parser) parseTemplate(tagged bool) ir.Handle {
	h := p.node(ir.KindTemplate)
	if p.tok.Kind == lexer.Template {
		p.add(h, p.templateString(1, tagged))
		p.next()
		return p.finish(h)
	}
	if p.tok.Kind != lexer.TemplateHead {
		p.fail("template literal")
	}
	p.add(h, p.templateString(2, tagged))
	p.next()
	for {
		p.add(h, p.parseExpression(false))
		if !p.isPunct("}") {
			p.fail("}")
		}
		p.relex(lexer.ModeTemplate)
		switch p.tok.Kind {
		case lexer.TemplateMiddle:
			p.add(h, p.templateString(2, tagged))
			p.next()
		case lexer.TemplateTail:
			p.add(h, p.templateString(1, tagged))
			p.next()
			return p.finish(h)
		default:
			p.fail("template continuation")
		}
	}
}

// templateString makes a String node from the current template piece,
// dropping the one-character opener (` or }) and closeLen closing
// characters (` or ${).
func (p *parser) templateString(closeLen int, tagged bool) ir.Handle {
	raw := p.tok.Lexeme
	body := raw[1 : len(raw)-closeLen]
	cooked, ok := cook(body, true)
	if !ok && !tagged {
		p.errorAt(p.tok.Span, diag.CodeMalformedEscape, "malformed escape sequence in template literal", nil)
	}
	h := p.node(ir.KindString)
	p.setStr(h, ir.AttrValue, cooked)
	p.setStr(h, ir.AttrRaw, body)
	p.store.SetSpan(h, p.tok.Span)
	return h
}

func (p *parser) parseArray() ir.Handle {
	h := p.node(ir.KindArray)
	p.expect("[")
	for !p.isPunct("]") {
		switch {
		case p.isPunct(","):
			// hole
			p.add(h, p.emptyHere())
			p.next()
			continue
		case p.isPunct("..."):
			sp := p.node(ir.KindSpread)
			p.next()
			p.add(sp, p.parseAssign(false))
			p.add(h, p.finish(sp))
		default:
			p.add(h, p.parseAssign(false))
		}
		if !p.isPunct("]") {
			p.expect(",")
		}
	}
	p.expect("]")
	return p.finish(h)
}

func (p *parser) parseObject() ir.Handle {
	h := p.node(ir.KindObject)
	p.expect("{")
	for !p.isPunct("}") {
		if p.isPunct("...") {
			sp := p.node(ir.KindSpread)
			p.next()
			p.add(sp, p.parseAssign(false))
			p.add(h, p.finish(sp))
		} else {
			p.add(h, p.parseObjectMember())
		}
		if !p.isPunct("}") {
			p.expect(",")
		}
	}
	p.expect("}")
	return p.finish(h)
}

func (p *parser) parseObjectMember() ir.Handle {
	start := p.tok.Span.Start
	async, generator, accessor := p.parseMethodModifiers()

	keyTok := p.tok
	m := p.nodeAt(ir.KindMethod, start)
	key := p.parsePropertyKey(m)
	if p.isPunct("(") || p.isPunct("<") || async || generator || accessor != "" {
		kind := "method"
		if accessor != "" {
			kind = accessor
		}
		p.setStr(m, ir.AttrKind, kind)
		if async {
			p.setFlag(m, ir.AttrAsync)
		}
		if generator {
			p.setFlag(m, ir.AttrGenerator)
		}
		p.add(m, key)
		p.skipTypeParams()
		p.parseParams(m)
		p.parseReturnType(m)
		p.add(m, p.parseFunctionBody())
		return p.finish(m)
	}

	prop := p.nodeAt(ir.KindProperty, start)
	if name, ok := p.store.Attr(m, ir.AttrName); ok {
		p.store.SetAttr(prop, ir.AttrKey, name)
	}
	if p.store.Flag(m, ir.AttrComputed) {
		p.setFlag(prop, ir.AttrComputed)
	}
	p.discard(m)
	p.setStr(prop, ir.AttrKind, "init")

	if p.eat(":") {
		p.add(prop, key, p.parseAssign(false))
		return p.finish(prop)
	}

	shorthand := key == ir.NoHandle && (keyTok.Kind == lexer.Ident ||
		keyTok.IsKeyword("let") || keyTok.IsKeyword("yield") || keyTok.IsKeyword("await"))
	if !shorthand || !(p.isPunct(",") || p.isPunct("}") || p.isPunct("=")) {
		p.fail(":")
	}
	p.setFlag(prop, ir.AttrShorthand)
	id := p.store.New(ir.KindIdentifier, keyTok.Span)
	p.setStr(id, ir.AttrName, keyTok.Lexeme)
	value := id
	if p.eat("=") {
		// Default in a destructuring pattern: { a = 1 } = obj
		value = p.wrap(ir.KindAssign, id)
		p.setStr(value, ir.AttrOp, "=")
		p.add(value, p.parseAssign(false))
		p.finish(value)
	}
	p.add(prop, value)
	return p.finish(prop)
}

func (p *parser) parseArrowFromIdent(start ir.Pos, async bool) ir.Handle {
	h := p.nodeAt(ir.KindArrow, start)
	if async {
		p.setFlag(h, ir.AttrAsync)
	}
	param := p.node(ir.KindParam)
	p.add(param, p.parseIdentifierRef())
	p.add(h, p.finish(param))
	if p.tok.NewlineBefore {
		p.fail("=>")
	}
	p.expect("=>")
	p.parseArrowBody(h)
	return p.finish(h)
}

func (p *parser) parseArrowBody(h ir.Handle) {
	if p.isPunct("{") {
		outer := p.jumps
		p.jumps = jumpScope{function: true}
		p.add(h, p.parseBlock())
		p.jumps = outer
		return
	}
	p.setFlag(h, ir.AttrExpression)
	p.add(h, p.parseAssign(false))
}

// parseParenthesized handles "(" in operand position. The contents are
// parsed as expressions first; when "=>" (or, in TypeScript, a return type
// and "=>") follows the closing paren, they are converted to parameters.
func (p *parser) parseParenthesized() ir.Handle {
	start := p.tok.Span.Start
	p.next()
	outer := p.noTypedArrow
	p.noTypedArrow = 0

	var elems []ir.Handle
	rest := false
	for !p.isPunct(")") {
		var e ir.Handle
		if p.isPunct("...") {
			e = p.node(ir.KindSpread)
			p.next()
			p.add(e, p.parseBindingTarget())
			p.finish(e)
			rest = true
		} else {
			e = p.parseAssign(false)
		}
		if p.mode.TypeScript() {
			if p.eat("?") {
				p.setFlag(e, ir.AttrOptional)
			}
			if p.eat(":") {
				p.setStr(e, ir.AttrType, p.parseType())
			}
		}
		elems = append(elems, e)
		if !p.eat(",") {
			break
		}
	}
	p.expect(")")
	p.noTypedArrow = outer

	returnType := ""
	arrow := p.isPunct("=>") && !p.tok.NewlineBefore
	if !arrow && p.mode.TypeScript() && p.isPunct(":") && p.noTypedArrow == 0 {
		p.next()
		returnType = p.parseType()
		if !p.isPunct("=>") {
			p.fail("=>")
		}
		arrow = true
	}

	if arrow {
		h := p.nodeAt(ir.KindArrow, start)
		for _, e := range elems {
			p.add(h, p.toParam(e))
		}
		if returnType != "" {
			p.setStr(h, ir.AttrType, returnType)
		}
		p.expect("=>")
		p.parseArrowBody(h)
		return p.finish(h)
	}

	switch {
	case len(elems) == 0 || rest:
		p.fail("=>")
	case len(elems) == 1:
		return elems[0]
	}
	seq := p.nodeAt(ir.KindSequence, start)
	p.add(seq, elems...)
	return p.finish(seq)
}

// toParam converts a detached expression parsed inside arrow parentheses
// into a Param.
func (p *parser) toParam(e ir.Handle) ir.Handle {
	s := p.store
	param := s.New(ir.KindParam, s.Span(e))
	for _, key := range []string{ir.AttrType, ir.AttrOptional} {
		if v, ok := s.Attr(e, key); ok {
			s.SetAttr(param, key, v)
			s.DelAttr(e, key)
		}
	}

	switch s.Kind(e) {
	case ir.KindIdentifier, ir.KindObject, ir.KindArray:
		p.add(param, e)
	case ir.KindAssign:
		if s.Str(e, ir.AttrOp) != "=" || !p.assignable(s.Child(e, 0), true) {
			p.errorAt(s.Span(e), diag.CodeInvalidTarget, "invalid parameter", nil)
		}
		p.adopt(param, e)
	case ir.KindSpread:
		p.setFlag(param, ir.AttrRest)
		p.adopt(param, e)
	default:
		p.errorAt(s.Span(e), diag.CodeInvalidTarget, "invalid parameter", nil)
	}
	return param
}

// adopt moves the children of the detached node from into to and discards
// from.
func (p *parser) adopt(to, from ir.Handle) {
	for _, c := range append([]ir.Handle(nil), p.store.Children(from)...) {
		if err := p.store.Detach(c); err != nil && p.internal == nil {
			p.internal = err
		}
		p.add(to, c)
	}
	p.discard(from)
}

// discard frees a detached node and its subtree.
func (p *parser) discard(h ir.Handle) {
	if h == ir.NoHandle {
		return
	}
	if _, err := p.store.Discard(h); err != nil && p.internal == nil {
		p.internal = err
	}
}

func (p *parser) isAsyncArrowHead(call ir.Handle) bool {
	callee := p.store.Child(call, 0)
	return p.store.Kind(callee) == ir.KindIdentifier &&
		p.store.Str(callee, ir.AttrName) == "async" &&
		p.isPunct("=>") && !p.tok.NewlineBefore
}

// asyncArrowFromCall turns the call "async(a, b)" followed by "=>" into an
// async arrow function.
func (p *parser) asyncArrowFromCall(call ir.Handle) ir.Handle {
	h := p.nodeAt(ir.KindArrow, p.start(call))
	p.setFlag(h, ir.AttrAsync)
	args := append([]ir.Handle(nil), p.store.Children(call)[1:]...)
	for _, a := range args {
		if err := p.store.Detach(a); err != nil && p.internal == nil {
			p.internal = err
		}
		p.add(h, p.toParam(a))
	}
	p.discard(call)
	p.expect("=>")
	p.parseArrowBody(h)
	return p.finish(h)
}
