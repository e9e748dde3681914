package parser

import (
	"github.com/roach88/lumen/internal/diag"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/lexer"
)

func (p *parser) parseStatement() ir.Handle {
	t := p.tok
	switch t.Kind {
	case lexer.Punct:
		switch t.Lexeme {
		case "{":
			return p.parseBlock()
		case ";":
			h := p.node(ir.KindEmpty)
			p.next()
			return p.finish(h)
		case "@":
			p.skipDecorators()
			return p.parseStatement()
		}
	case lexer.Keyword:
		switch t.Lexeme {
		case "var", "const":
			if t.Lexeme == "const" && p.mode.TypeScript() && p.peek().IsKeyword("enum") {
				start := p.tok.Span.Start
				p.next()
				return p.parseEnum(start, true)
			}
			h := p.parseVariableDecl(false)
			p.consumeSemicolon()
			return p.finish(h)
		case "let":
			if nt := p.peek(); nt.Kind == lexer.Ident || nt.IsPunct("[") || nt.IsPunct("{") ||
				nt.IsKeyword("yield") || nt.IsKeyword("await") || nt.IsKeyword("let") {
				h := p.parseVariableDecl(false)
				p.consumeSemicolon()
				return p.finish(h)
			}
		case "function":
			return p.parseFunction(ir.KindFunctionDecl, p.tok.Span.Start, false)
		case "class":
			return p.parseClass(ir.KindClassDecl, p.tok.Span.Start)
		case "if":
			return p.parseIf()
		case "for":
			return p.parseFor()
		case "while":
			return p.parseWhile()
		case "do":
			return p.parseDoWhile()
		case "return":
			return p.parseJump(ir.KindReturn, true)
		case "throw":
			return p.parseThrow()
		case "break":
			return p.parseBreakContinue(ir.KindBreak)
		case "continue":
			return p.parseBreakContinue(ir.KindContinue)
		case "try":
			return p.parseTry()
		case "switch":
			return p.parseSwitch()
		case "debugger":
			h := p.node(ir.KindDebugger)
			p.next()
			p.consumeSemicolon()
			return p.finish(h)
		case "import":
			if nt := p.peek(); !nt.IsPunct("(") && !nt.IsPunct(".") {
				return p.parseImport()
			}
		case "export":
			return p.parseExport()
		case "enum":
			if p.mode.TypeScript() {
				return p.parseEnum(p.tok.Span.Start, false)
			}
		}
	case lexer.Ident:
		switch {
		case t.Lexeme == "async" && p.peek().IsKeyword("function") && !p.peek().NewlineBefore:
			start := p.tok.Span.Start
			p.next()
			return p.parseFunction(ir.KindFunctionDecl, start, true)
		case p.peek().IsPunct(":"):
			return p.parseLabeled()
		}
		if p.mode.TypeScript() {
			if h, ok := p.parseTypeStatement(); ok {
				return h
			}
		}
	}
	return p.parseExpressionStatement()
}

func (p *parser) parseExpressionStatement() ir.Handle {
	expr := p.parseExpression(false)
	h := p.wrap(ir.KindExprStmt, expr)
	p.consumeSemicolon()
	return p.finish(h)
}

func (p *parser) parseBlock() ir.Handle {
	h := p.node(ir.KindBlock)
	p.expect("{")
	p.statementList(h, func() bool { return p.isPunct("}") })
	p.expect("}")
	return p.finish(h)
}

// parseVariableDecl parses "var|let|const declarator, ..." without the
// terminating semicolon. In a for header (noIn) initializers are optional
// even for const, since "for (const x of xs)" has none.
func (p *parser) parseVariableDecl(noIn bool) ir.Handle {
	h := p.node(ir.KindVariableDecl)
	kind := p.tok.Lexeme
	p.setStr(h, ir.AttrKind, kind)
	p.next()
	for {
		d := p.node(ir.KindVariableDeclarator)
		target := p.parseBindingTarget()
		p.add(d, target)
		if p.mode.TypeScript() {
			if p.isPunct("!") {
				p.next()
			}
			if p.isPunct(":") {
				p.next()
				p.setStr(d, ir.AttrType, p.parseType())
			}
		}
		if p.eat("=") {
			p.add(d, p.parseAssign(noIn))
		} else if !noIn && p.store.Kind(target) != ir.KindIdentifier {
			p.fail("=")
		}
		p.add(h, p.finish(d))
		if !p.eat(",") {
			break
		}
	}
	return p.finish(h)
}

// parseBindingTarget parses an identifier or a destructuring pattern.
// Patterns are represented as object and array literals.
func (p *parser) parseBindingTarget() ir.Handle {
	switch {
	case p.isPunct("{"):
		return p.parseObject()
	case p.isPunct("["):
		return p.parseArray()
	case p.isBindingIdent():
		return p.parseIdentifier()
	}
	p.fail("identifier", "{", "[")
	return ir.NoHandle
}

// isBindingIdent reports whether the current token can name a binding.
func (p *parser) isBindingIdent() bool {
	if p.tok.Kind == lexer.Ident {
		return true
	}
	return p.isKeyword("let") || p.isKeyword("yield") || p.isKeyword("await")
}

func (p *parser) parseIdentifier() ir.Handle {
	if !p.isBindingIdent() {
		p.fail("identifier")
	}
	h := p.node(ir.KindIdentifier)
	p.setStr(h, ir.AttrName, p.tok.Lexeme)
	p.next()
	return p.finish(h)
}

// parseFunction parses a function declaration or expression starting at
// the "function" keyword.
func (p *parser) parseFunction(kind ir.Kind, start ir.Pos, async bool) ir.Handle {
	h := p.nodeAt(kind, start)
	p.expectKeyword("function")
	if async {
		p.setFlag(h, ir.AttrAsync)
	}
	if p.eat("*") {
		p.setFlag(h, ir.AttrGenerator)
	}
	if p.isBindingIdent() {
		p.setStr(h, ir.AttrName, p.tok.Lexeme)
		p.next()
	} else if kind == ir.KindFunctionDecl && !p.isPunct("(") {
		p.fail("identifier")
	}
	p.skipTypeParams()
	p.parseParams(h)
	p.parseReturnType(h)
	if kind == ir.KindFunctionDecl && p.mode.TypeScript() && !p.isPunct("{") {
		// Overload signature: no body, nothing to keep.
		p.consumeSemicolon()
		p.discard(h)
		e := p.nodeAt(ir.KindEmpty, start)
		return p.finish(e)
	}
	p.add(h, p.parseFunctionBody())
	return p.finish(h)
}

func (p *parser) parseFunctionBody() ir.Handle {
	if !p.isPunct("{") {
		p.fail("{")
	}
	outer := p.jumps
	p.jumps = jumpScope{function: true}
	blk := p.parseBlock()
	p.jumps = outer
	return blk
}

// parseParams parses "(param, ...)" appending Param children to fn.
func (p *parser) parseParams(fn ir.Handle) {
	p.expect("(")
	for !p.isPunct(")") {
		p.add(fn, p.parseParam())
		if !p.eat(",") {
			break
		}
	}
	p.expect(")")
}

func (p *parser) parseParam() ir.Handle {
	h := p.node(ir.KindParam)
	if p.tok.Is(lexer.Punct, "@") {
		p.skipDecorators()
	}
	if p.mode.TypeScript() {
		p.skipModifiers()
	}
	if p.eat("...") {
		p.setFlag(h, ir.AttrRest)
	}
	if p.isKeyword("this") && p.mode.TypeScript() {
		// "this: Type" declares the receiver type only.
		id := p.node(ir.KindIdentifier)
		p.setStr(id, ir.AttrName, "this")
		p.next()
		p.add(h, p.finish(id))
	} else {
		p.add(h, p.parseBindingTarget())
	}
	if p.mode.TypeScript() {
		if p.eat("?") {
			p.setFlag(h, ir.AttrOptional)
		}
		if p.eat(":") {
			p.setStr(h, ir.AttrType, p.parseType())
		}
	}
	if p.eat("=") {
		p.add(h, p.parseAssign(false))
	}
	return p.finish(h)
}

func (p *parser) parseReturnType(fn ir.Handle) {
	if p.mode.TypeScript() && p.eat(":") {
		p.setStr(fn, ir.AttrType, p.parseType())
	}
}

func (p *parser) parseClass(kind ir.Kind, start ir.Pos) ir.Handle {
	h := p.nodeAt(kind, start)
	p.expectKeyword("class")
	if p.isBindingIdent() && !p.isContextual("implements") {
		p.setStr(h, ir.AttrName, p.tok.Lexeme)
		p.next()
	} else if kind == ir.KindClassDecl && !p.isPunct("{") && !p.isKeyword("extends") {
		p.fail("identifier")
	}
	p.skipTypeParams()
	if p.isKeyword("extends") {
		p.next()
		p.setFlag(h, ir.AttrExtends)
		p.add(h, p.parseLeftHandSide())
		p.skipTypeArgs()
	}
	if p.mode.TypeScript() && p.isContextual("implements") {
		p.next()
		for {
			p.parseType()
			if !p.eat(",") {
				break
			}
		}
	}
	p.expect("{")
	for !p.isPunct("}") {
		if p.eat(";") {
			continue
		}
		if m := p.parseClassMember(); m != ir.NoHandle {
			p.add(h, m)
		}
	}
	p.expect("}")
	return p.finish(h)
}

// parseClassMember returns NoHandle for members that carry no runtime
// meaning (TypeScript signatures).
func (p *parser) parseClassMember() ir.Handle {
	start := p.tok.Span.Start
	if p.isPunct("@") {
		p.skipDecorators()
	}
	static := false
	if p.isContextual("static") && !p.peekEndsMemberName() {
		p.next()
		static = true
		if p.isPunct("{") {
			outer := p.jumps
			p.jumps = jumpScope{}
			blk := p.parseBlock()
			p.jumps = outer
			p.setFlag(blk, ir.AttrStatic)
			return blk
		}
	}
	if p.mode.TypeScript() {
		if p.skipModifiers() {
			static = true
		}
		if p.isPunct("[") && p.isIndexSignature() {
			p.skipIndexSignature()
			return ir.NoHandle
		}
	}

	async, generator, accessor := p.parseMethodModifiers()
	m := p.nodeAt(ir.KindMethod, start)
	key := p.parsePropertyKey(m)
	if p.mode.TypeScript() && p.isPunct("?") && (p.peek().IsPunct("(") || p.peek().IsPunct("<")) {
		p.next()
		p.setFlag(m, ir.AttrOptional)
	}

	if p.isPunct("(") || p.isPunct("<") {
		kind := "method"
		switch {
		case accessor != "":
			kind = accessor
		case p.store.Str(m, ir.AttrName) == "constructor" && !static:
			kind = "constructor"
		}
		p.setStr(m, ir.AttrKind, kind)
		if static {
			p.setFlag(m, ir.AttrStatic)
		}
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
		if p.mode.TypeScript() && !p.isPunct("{") {
			p.consumeSemicolon()
			p.discard(m)
			return ir.NoHandle
		}
		p.add(m, p.parseFunctionBody())
		return p.finish(m)
	}

	// Field.
	f := p.nodeAt(ir.KindClassProperty, start)
	if name, ok := p.store.Attr(m, ir.AttrName); ok {
		p.store.SetAttr(f, ir.AttrName, name)
	}
	if p.store.Flag(m, ir.AttrComputed) {
		p.setFlag(f, ir.AttrComputed)
	}
	p.discard(m)
	p.add(f, key)
	if static {
		p.setFlag(f, ir.AttrStatic)
	}
	if p.mode.TypeScript() {
		if p.eat("?") {
			p.setFlag(f, ir.AttrOptional)
		}
		p.eat("!")
		if p.eat(":") {
			p.setStr(f, ir.AttrType, p.parseType())
		}
	}
	if p.eat("=") {
		p.add(f, p.parseAssign(false))
	}
	p.consumeSemicolon()
	return p.finish(f)
}

// peekEndsMemberName reports whether the token after the current one shows
// the current word is itself a member name, as in "static() {}" or
// "get = 1".
func (p *parser) peekEndsMemberName() bool {
	nt := p.peek()
	return nt.IsPunct("(") || nt.IsPunct("=") || nt.IsPunct(";") || nt.IsPunct("}") ||
		nt.IsPunct(":") || nt.IsPunct("?") || nt.IsPunct(",") || nt.IsPunct("<") || nt.NewlineBefore
}

// parseMethodModifiers consumes async, * and get/set prefixes.
func (p *parser) parseMethodModifiers() (async, generator bool, accessor string) {
	if p.isContextual("async") && !p.peekEndsMemberName() {
		p.next()
		async = true
	}
	if p.eat("*") {
		generator = true
	}
	if !async && !generator && (p.isContextual("get") || p.isContextual("set")) && !p.peekEndsMemberName() {
		accessor = p.tok.Lexeme
		p.next()
	}
	return async, generator, accessor
}

// parsePropertyKey reads a property name into owner's name attribute. A
// computed key is returned as a detached expression; otherwise NoHandle.
func (p *parser) parsePropertyKey(owner ir.Handle) ir.Handle {
	switch p.tok.Kind {
	case lexer.Ident, lexer.Keyword:
		p.setStr(owner, ir.AttrName, p.tok.Lexeme)
	case lexer.String:
		p.setStr(owner, ir.AttrName, p.stringValue(p.tok))
	case lexer.Number:
		v, _ := numberValue(p.tok.Lexeme)
		p.setStr(owner, ir.AttrName, numberKey(v))
	case lexer.Punct:
		if p.isPunct("[") {
			p.next()
			key := p.parseAssign(false)
			p.expect("]")
			p.setFlag(owner, ir.AttrComputed)
			return key
		}
		p.fail("property name")
	default:
		p.fail("property name")
	}
	p.next()
	return ir.NoHandle
}

func (p *parser) parseIf() ir.Handle {
	h := p.node(ir.KindIf)
	p.next()
	p.expect("(")
	p.add(h, p.parseExpression(false))
	p.expect(")")
	p.add(h, p.parseStatement())
	if p.isKeyword("else") {
		p.next()
		p.add(h, p.parseStatement())
	}
	return p.finish(h)
}

func (p *parser) parseFor() ir.Handle {
	h := p.node(ir.KindFor)
	p.next()
	if p.isKeyword("await") {
		p.next()
		p.setFlag(h, ir.AttrAwait)
	}
	p.expect("(")

	var init ir.Handle
	switch {
	case p.isPunct(";"):
		init = p.emptyHere()
	case p.isKeyword("var") || p.isKeyword("const") ||
		(p.isKeyword("let") && (p.peek().Kind == lexer.Ident || p.peek().IsPunct("[") || p.peek().IsPunct("{"))):
		init = p.parseVariableDecl(true)
	default:
		init = p.parseExpression(true)
	}

	if p.isKeyword("in") || p.isContextual("of") {
		p.setStr(h, ir.AttrForm, p.tok.Lexeme)
		p.next()
		var right ir.Handle
		if p.store.Str(h, ir.AttrForm) == "of" {
			right = p.parseAssign(false)
		} else {
			right = p.parseExpression(false)
		}
		p.expect(")")
		p.add(h, init, right, p.loopBody())
		return p.finish(h)
	}

	p.setStr(h, ir.AttrForm, "classic")
	p.expect(";")
	test := p.emptyHere()
	if !p.isPunct(";") {
		p.discard(test)
		test = p.parseExpression(false)
	}
	p.expect(";")
	update := p.emptyHere()
	if !p.isPunct(")") {
		p.discard(update)
		update = p.parseExpression(false)
	}
	p.expect(")")
	p.add(h, init, test, update, p.loopBody())
	return p.finish(h)
}

// emptyHere allocates an Empty placeholder at the current position.
func (p *parser) emptyHere() ir.Handle {
	return p.store.New(ir.KindEmpty, ir.Span{Start: p.tok.Span.Start, End: p.tok.Span.Start})
}

func (p *parser) parseWhile() ir.Handle {
	h := p.node(ir.KindWhile)
	p.next()
	p.expect("(")
	p.add(h, p.parseExpression(false))
	p.expect(")")
	p.add(h, p.loopBody())
	return p.finish(h)
}

func (p *parser) parseDoWhile() ir.Handle {
	h := p.node(ir.KindDoWhile)
	p.next()
	p.add(h, p.loopBody())
	p.expectKeyword("while")
	p.expect("(")
	p.add(h, p.parseExpression(false))
	p.expect(")")
	p.eat(";")
	return p.finish(h)
}

// parseJump parses return (optionally with an argument on the same line).
func (p *parser) parseJump(kind ir.Kind, withArg bool) ir.Handle {
	if kind == ir.KindReturn && !p.jumps.function {
		p.errorAt(p.tok.Span, diag.CodeMisplacedJump, "return outside of a function", nil)
	}
	h := p.node(kind)
	p.next()
	if withArg && !p.isPunct(";") && !p.isPunct("}") && p.tok.Kind != lexer.EOF && !p.tok.NewlineBefore {
		p.add(h, p.parseExpression(false))
	}
	p.consumeSemicolon()
	return p.finish(h)
}

func (p *parser) parseThrow() ir.Handle {
	h := p.node(ir.KindThrow)
	p.next()
	if p.tok.NewlineBefore {
		p.fail("expression")
	}
	p.add(h, p.parseExpression(false))
	p.consumeSemicolon()
	return p.finish(h)
}

func (p *parser) parseBreakContinue(kind ir.Kind) ir.Handle {
	keyword := p.tok
	h := p.node(kind)
	p.next()
	label := ""
	if p.tok.Kind == lexer.Ident && !p.tok.NewlineBefore {
		label = p.tok.Lexeme
	}
	if msg := p.jumps.check(keyword.Lexeme, label); msg != "" {
		p.errorAt(keyword.Span, diag.CodeMisplacedJump, msg, nil)
	}
	if label != "" {
		p.setStr(h, ir.AttrLabel, label)
		p.next()
	}
	p.consumeSemicolon()
	return p.finish(h)
}

func (p *parser) parseLabeled() ir.Handle {
	h := p.node(ir.KindLabeled)
	label := p.tok.Lexeme
	p.setStr(h, ir.AttrLabel, label)
	p.next()
	p.expect(":")
	loop := p.isKeyword("for") || p.isKeyword("while") || p.isKeyword("do")
	p.jumps.labels = append(p.jumps.labels, jumpLabel{name: label, loop: loop})
	body := p.parseStatement()
	p.jumps.labels = p.jumps.labels[:len(p.jumps.labels)-1]
	p.add(h, body)
	return p.finish(h)
}

// jumpScope is what return, break and continue may target at the current
// point. Function bodies and class static blocks start an empty scope.
type jumpScope struct {
	function bool
	loops    int
	switches int
	labels   []jumpLabel
}

type jumpLabel struct {
	name string
	loop bool
}

// check returns why a break or continue (keyword) to label, which may be
// empty, has no target, or "" when it has one.
func (js jumpScope) check(keyword, label string) string {
	if label != "" {
		for i := len(js.labels) - 1; i >= 0; i-- {
			if js.labels[i].name != label {
				continue
			}
			if keyword == "continue" && !js.labels[i].loop {
				return "continue target " + label + " is not a loop"
			}
			return ""
		}
		return "undefined label " + label
	}
	if keyword == "continue" && js.loops == 0 {
		return "continue outside of a loop"
	}
	if js.loops+js.switches == 0 {
		return "break outside of a loop or switch"
	}
	return ""
}

// loopBody parses the statement a loop repeats.
func (p *parser) loopBody() ir.Handle {
	p.jumps.loops++
	body := p.parseStatement()
	p.jumps.loops--
	return body
}

func (p *parser) parseTry() ir.Handle {
	h := p.node(ir.KindTry)
	p.next()
	p.add(h, p.parseBlock())
	handled := false
	if p.isKeyword("catch") {
		c := p.node(ir.KindCatch)
		p.next()
		if p.eat("(") {
			p.add(c, p.parseBindingTarget())
			if p.mode.TypeScript() && p.eat(":") {
				p.setStr(c, ir.AttrType, p.parseType())
			}
			p.expect(")")
		}
		p.add(c, p.parseBlock())
		p.add(h, p.finish(c))
		handled = true
	}
	if p.isKeyword("finally") {
		p.next()
		p.add(h, p.parseBlock())
		handled = true
	}
	if !handled {
		p.fail("catch", "finally")
	}
	return p.finish(h)
}

func (p *parser) parseSwitch() ir.Handle {
	h := p.node(ir.KindSwitch)
	p.next()
	p.expect("(")
	p.add(h, p.parseExpression(false))
	p.expect(")")
	p.expect("{")
	for !p.isPunct("}") {
		c := p.node(ir.KindCase)
		switch {
		case p.isKeyword("case"):
			p.next()
			p.add(c, p.parseExpression(false))
		case p.isKeyword("default"):
			p.next()
			p.setFlag(c, ir.AttrDefault)
		default:
			p.fail("case", "default", "}")
		}
		p.expect(":")
		p.jumps.switches++
		p.statementList(c, func() bool {
			return p.isKeyword("case") || p.isKeyword("default") || p.isPunct("}")
		})
		p.jumps.switches--
		p.add(h, p.finish(c))
	}
	p.expect("}")
	return p.finish(h)
}

func (p *parser) parseImport() ir.Handle {
	h := p.node(ir.KindImportDecl)
	p.next()
	if p.mode.TypeScript() && p.isContextual("type") && !p.peek().IsPunct(",") && !p.peek().Is(lexer.Ident, "from") {
		p.next()
		p.setStr(h, ir.AttrKind, "type")
	}

	if p.tok.Kind == lexer.String {
		p.setStr(h, ir.AttrSource, p.stringValue(p.tok))
		p.next()
		p.consumeSemicolon()
		return p.finish(h)
	}

	if p.isBindingIdent() {
		p.add(h, p.importSpecifier("default", p.tok.Lexeme))
		p.next()
		if p.eat(",") {
			p.parseImportBindings(h)
		}
	} else {
		p.parseImportBindings(h)
	}

	if !p.isContextual("from") {
		p.fail("from")
	}
	p.next()
	if p.tok.Kind != lexer.String {
		p.fail("module specifier")
	}
	p.setStr(h, ir.AttrSource, p.stringValue(p.tok))
	p.next()
	p.consumeSemicolon()
	return p.finish(h)
}

// parseImportBindings parses "* as ns" or "{ a, b as c }".
func (p *parser) parseImportBindings(h ir.Handle) {
	switch {
	case p.eat("*"):
		if !p.isContextual("as") {
			p.fail("as")
		}
		p.next()
		if !p.isBindingIdent() {
			p.fail("identifier")
		}
		p.add(h, p.importSpecifier("*", p.tok.Lexeme))
		p.next()
	case p.eat("{"):
		for !p.isPunct("}") {
			if p.mode.TypeScript() && p.isContextual("type") && p.peek().Kind == lexer.Ident {
				p.next()
			}
			imported := p.moduleExportName()
			local := imported
			if p.isContextual("as") {
				p.next()
				if !p.isBindingIdent() {
					p.fail("identifier")
				}
				local = p.tok.Lexeme
				p.next()
			}
			p.add(h, p.importSpecifier(imported, local))
			if !p.eat(",") {
				break
			}
		}
		p.expect("}")
	default:
		p.fail("identifier", "*", "{")
	}
}

func (p *parser) importSpecifier(imported, local string) ir.Handle {
	s := p.node(ir.KindImportSpecifier)
	p.setStr(s, ir.AttrImported, imported)
	p.setStr(s, ir.AttrLocal, local)
	p.store.SetSpan(s, p.tok.Span)
	return s
}

// moduleExportName reads an identifier, keyword or string naming an
// import or export.
func (p *parser) moduleExportName() string {
	var name string
	switch p.tok.Kind {
	case lexer.Ident, lexer.Keyword:
		name = p.tok.Lexeme
	case lexer.String:
		name = p.stringValue(p.tok)
	default:
		p.fail("identifier")
	}
	p.next()
	return name
}

func (p *parser) parseExport() ir.Handle {
	h := p.node(ir.KindExportDecl)
	p.next()
	if p.mode.TypeScript() && p.isContextual("type") && p.peek().IsPunct("{") {
		p.next()
		p.setStr(h, ir.AttrKind, "type")
	}

	switch {
	case p.isKeyword("default"):
		p.next()
		p.setStr(h, ir.AttrForm, ir.ExportDefault)
		start := p.tok.Span.Start
		switch {
		case p.isKeyword("function"):
			p.add(h, p.parseFunction(ir.KindFunctionDecl, start, false))
		case p.isContextual("async") && p.peek().IsKeyword("function"):
			p.next()
			p.add(h, p.parseFunction(ir.KindFunctionDecl, start, true))
		case p.isKeyword("class"):
			p.add(h, p.parseClass(ir.KindClassDecl, start))
		default:
			p.add(h, p.parseAssign(false))
			p.consumeSemicolon()
		}

	case p.isPunct("*"):
		p.next()
		p.setStr(h, ir.AttrForm, ir.ExportAll)
		if p.isContextual("as") {
			p.next()
			p.setStr(h, ir.AttrExported, p.moduleExportName())
		}
		p.exportFrom(h, true)

	case p.isPunct("{"):
		p.next()
		p.setStr(h, ir.AttrForm, ir.ExportNamed)
		for !p.isPunct("}") {
			spec := p.node(ir.KindExportSpecifier)
			if p.mode.TypeScript() && p.isContextual("type") && p.peek().Kind == lexer.Ident {
				p.next()
			}
			local := p.moduleExportName()
			exported := local
			if p.isContextual("as") {
				p.next()
				exported = p.moduleExportName()
			}
			p.setStr(spec, ir.AttrLocal, local)
			p.setStr(spec, ir.AttrExported, exported)
			p.add(h, p.finish(spec))
			if !p.eat(",") {
				break
			}
		}
		p.expect("}")
		p.exportFrom(h, false)

	default:
		p.setStr(h, ir.AttrForm, ir.ExportDeclaration)
		decl := p.parseStatement()
		switch p.store.Kind(decl) {
		case ir.KindVariableDecl, ir.KindFunctionDecl, ir.KindClassDecl,
			ir.KindEnumDecl, ir.KindInterfaceDecl, ir.KindTypeAlias, ir.KindEmpty:
		default:
			p.errorAt(p.store.Span(decl), diag.CodeUnexpectedToken, "export requires a declaration", []string{"declaration"})
		}
		p.add(h, decl)
	}
	return p.finish(h)
}

// exportFrom parses an optional (or, when required, mandatory) from clause.
func (p *parser) exportFrom(h ir.Handle, required bool) {
	if p.isContextual("from") {
		p.next()
		if p.tok.Kind != lexer.String {
			p.fail("module specifier")
		}
		p.setStr(h, ir.AttrSource, p.stringValue(p.tok))
		p.next()
	} else if required {
		p.fail("from")
	}
	p.consumeSemicolon()
}

func (p *parser) skipDecorators() {
	for p.eat("@") {
		p.discard(p.parseLeftHandSide())
	}
}
