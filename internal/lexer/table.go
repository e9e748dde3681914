package lexer

import (
	"unicode"

	"github.com/roach88/lumen/internal/diag"
)

// class is a character class. The automaton is indexed by (state, class)
// rather than (state, rune), which keeps the table dense and small: every
// rune the grammar does not distinguish maps to a shared class.
type class uint8

const (
	cOther class = iota
	cWS
	cLF
	cLetter
	cE // e E
	cX // x X
	cB // b B
	cO // o O
	cN // n
	cHex
	cDollar
	cUnderscore
	cZero
	cOne
	cOctal // 2-7
	cDigit // 8 9
	cBackslash
	cDQuote
	cSQuote
	cBacktick
	cLBrace
	cRBrace
	cLParen
	cRParen
	cLBracket
	cRBracket
	cSemi
	cComma
	cLT
	cGT
	cPlus
	cMinus
	cStar
	cSlash
	cPercent
	cAmp
	cPipe
	cCaret
	cBang
	cTilde
	cQuestion
	cColon
	cEq
	cDot
	cAt
	cHash
	numClasses
)

var asciiClass = func() [128]class {
	var t [128]class
	for c := 'a'; c <= 'z'; c++ {
		t[c] = cLetter
		t[c-'a'+'A'] = cLetter
	}
	for _, c := range "acdfACDF" {
		t[c] = cHex
	}
	t['e'], t['E'] = cE, cE
	t['x'], t['X'] = cX, cX
	t['b'], t['B'] = cB, cB
	t['o'], t['O'] = cO, cO
	t['n'] = cN
	t['0'], t['1'] = cZero, cOne
	for c := '2'; c <= '7'; c++ {
		t[c] = cOctal
	}
	t['8'], t['9'] = cDigit, cDigit
	t[' '], t['\t'], t['\v'], t['\f'] = cWS, cWS, cWS, cWS
	t['\n'], t['\r'] = cLF, cLF
	for c, cl := range map[byte]class{
		'$': cDollar, '_': cUnderscore, '\\': cBackslash, '"': cDQuote,
		'\'': cSQuote, '`': cBacktick, '{': cLBrace, '}': cRBrace,
		'(': cLParen, ')': cRParen, '[': cLBracket, ']': cRBracket,
		';': cSemi, ',': cComma, '<': cLT, '>': cGT, '+': cPlus,
		'-': cMinus, '*': cStar, '/': cSlash, '%': cPercent, '&': cAmp,
		'|': cPipe, '^': cCaret, '!': cBang, '~': cTilde, '?': cQuestion,
		':': cColon, '=': cEq, '.': cDot, '@': cAt, '#': cHash,
	} {
		t[c] = cl
	}
	return t
}()

func classOf(r rune) class {
	if r < 128 {
		return asciiClass[r]
	}
	switch {
	case r == 0x2028 || r == 0x2029:
		return cLF
	case r == 0xA0 || r == 0xFEFF || unicode.Is(unicode.Zs, r):
		return cWS
	case r == 0x200C || r == 0x200D,
		unicode.IsLetter(r), unicode.IsDigit(r),
		unicode.In(r, unicode.Mn, unicode.Mc, unicode.Pc, unicode.Nl):
		return cLetter
	}
	return cOther
}

var (
	identStart = []class{cLetter, cE, cX, cB, cO, cN, cHex, cDollar, cUnderscore}
	decDigits  = []class{cZero, cOne, cOctal, cDigit}
	identPart  = append(append([]class{}, identStart...), decDigits...)
)

func isIdentPart(c class) bool {
	for _, p := range identPart {
		if p == c {
			return true
		}
	}
	return false
}

// state 0 is the dead state.
type state uint8

const dead state = 0

// machine is the compiled automaton: a dense transition table plus, per
// state, the token kind accepted there and the diagnostic code to report
// when input ends inside an unterminated literal in that state.
type machine struct {
	next   [][numClasses]state
	accept []Kind
	open   []string
	start  [numModes]state
}

var dfa = buildMachine()

type builder struct{ m *machine }

func (b builder) add(accept Kind) state {
	b.m.next = append(b.m.next, [numClasses]state{})
	b.m.accept = append(b.m.accept, accept)
	b.m.open = append(b.m.open, "")
	if len(b.m.next) > 256 {
		panic("lexer: automaton exceeds 255 states")
	}
	return state(len(b.m.next) - 1)
}

func (b builder) openLiteral(accept Kind, code string) state {
	s := b.add(accept)
	b.m.open[s] = code
	return s
}

func (b builder) on(from, to state, cs ...class) {
	for _, c := range cs {
		b.m.next[from][c] = to
	}
}

// onAll adds from->to on every class not in except.
func (b builder) onAll(from, to state, except ...class) {
	for c := class(0); c < numClasses; c++ {
		skip := false
		for _, e := range except {
			if e == c {
				skip = true
				break
			}
		}
		if !skip {
			b.m.next[from][c] = to
		}
	}
}

func (b builder) copyRow(dst, src state) {
	b.m.next[dst] = b.m.next[src]
}

var punctuators = []string{
	"{", "}", "(", ")", "[", "]", ";", ",", "~", "@", ":",
	"?", "?.", "??", "??=",
	".", "...",
	"<", "<=", "<<", "<<=",
	">", ">=", ">>", ">>=", ">>>", ">>>=",
	"=", "==", "===", "=>",
	"!", "!=", "!==",
	"+", "++", "+=",
	"-", "--", "-=",
	"*", "**", "*=", "**=",
	"/", "/=",
	"%", "%=",
	"&", "&&", "&&=", "&=",
	"|", "||", "||=", "|=",
	"^", "^=",
}

func buildMachine() *machine {
	m := &machine{}
	b := builder{m}
	b.add(noAccept) // dead

	normal := b.add(noAccept)

	// Trivia. A whitespace run that reaches a line terminator becomes a
	// newline token so the driver can set NewlineBefore.
	ws := b.add(kindWhitespace)
	lf := b.add(kindNewline)
	b.on(normal, ws, cWS)
	b.on(ws, ws, cWS)
	b.on(normal, lf, cLF)
	b.on(ws, lf, cLF)
	b.on(lf, lf, cLF, cWS)

	// Identifiers and private names.
	ident := b.add(Ident)
	b.on(normal, ident, identStart...)
	b.on(ident, ident, identPart...)
	hash := b.add(noAccept)
	private := b.add(Ident)
	b.on(normal, hash, cHash)
	b.on(hash, private, identStart...)
	b.on(private, private, identPart...)

	// Punctuators as a trie over classes.
	punct := map[string]state{}
	for _, p := range punctuators {
		cur := normal
		for i := 0; i < len(p); i++ {
			c := asciiClass[p[i]]
			if nx := m.next[cur][c]; nx != dead {
				cur = nx
				continue
			}
			nx := b.add(noAccept)
			b.on(cur, nx, c)
			cur = nx
		}
		m.accept[cur] = Punct
		punct[p] = cur
	}

	// Numbers.
	zero := b.add(Number)
	dec := b.add(Number)
	decSep := b.add(noAccept)
	frac := b.add(Number)
	fracSep := b.add(noAccept)
	exp := b.add(noAccept)
	expSign := b.add(noAccept)
	expDigits := b.add(Number)
	expSep := b.add(noAccept)
	bigint := b.add(Number)

	b.on(normal, zero, cZero)
	b.on(normal, dec, cOne, cOctal, cDigit)
	b.on(zero, dec, decDigits...)
	b.on(dec, dec, decDigits...)
	b.on(dec, decSep, cUnderscore)
	b.on(decSep, dec, decDigits...)
	b.on(zero, frac, cDot)
	b.on(dec, frac, cDot)
	b.on(punct["."], frac, decDigits...)
	b.on(frac, frac, decDigits...)
	b.on(frac, fracSep, cUnderscore)
	b.on(fracSep, frac, decDigits...)
	b.on(zero, exp, cE)
	b.on(dec, exp, cE)
	b.on(frac, exp, cE)
	b.on(exp, expSign, cPlus, cMinus)
	b.on(exp, expDigits, decDigits...)
	b.on(expSign, expDigits, decDigits...)
	b.on(expDigits, expDigits, decDigits...)
	b.on(expDigits, expSep, cUnderscore)
	b.on(expSep, expDigits, decDigits...)
	b.on(zero, bigint, cN)
	b.on(dec, bigint, cN)

	prefixed := func(prefix class, digits ...class) {
		pre := b.add(noAccept)
		body := b.add(Number)
		sep := b.add(noAccept)
		b.on(zero, pre, prefix)
		b.on(pre, body, digits...)
		b.on(body, body, digits...)
		b.on(body, sep, cUnderscore)
		b.on(sep, body, digits...)
		b.on(body, bigint, cN)
	}
	prefixed(cX, cZero, cOne, cOctal, cDigit, cHex, cB, cE)
	prefixed(cO, cZero, cOne, cOctal)
	prefixed(cB, cZero, cOne)

	// String literals. A backslash escapes anything, including a line
	// terminator (line continuation, with \r\n counted once).
	stringBody := func(quote class) state {
		body := b.openLiteral(noAccept, diag.CodeUnterminatedString)
		esc := b.openLiteral(noAccept, diag.CodeUnterminatedString)
		escCR := b.openLiteral(noAccept, diag.CodeUnterminatedString)
		end := b.add(String)
		b.onAll(body, body, quote, cBackslash, cLF)
		b.on(body, esc, cBackslash)
		b.on(body, end, quote)
		b.onAll(esc, body, cLF)
		b.on(esc, escCR, cLF)
		b.copyRow(escCR, body)
		b.on(escCR, body, cLF)
		return body
	}
	dq := stringBody(cDQuote)
	sq := stringBody(cSQuote)
	b.on(normal, dq, cDQuote)
	b.on(normal, sq, cSQuote)

	// Template literals. The same body shape serves the opening backtick
	// and the continuation after a substitution's closing brace.
	templateBody := func(end, sub Kind) state {
		body := b.openLiteral(noAccept, diag.CodeUnterminatedTmpl)
		esc := b.openLiteral(noAccept, diag.CodeUnterminatedTmpl)
		dollar := b.openLiteral(noAccept, diag.CodeUnterminatedTmpl)
		done := b.add(end)
		open := b.add(sub)
		b.onAll(body, body, cBacktick, cBackslash, cDollar)
		b.on(body, esc, cBackslash)
		b.on(body, dollar, cDollar)
		b.on(body, done, cBacktick)
		b.onAll(esc, body)
		b.onAll(dollar, body, cLBrace, cBacktick, cBackslash, cDollar)
		b.on(dollar, open, cLBrace)
		b.on(dollar, done, cBacktick)
		b.on(dollar, esc, cBackslash)
		b.on(dollar, dollar, cDollar)
		return body
	}
	b.on(normal, templateBody(Template, TemplateHead), cBacktick)

	// Comments hang off the "/" punctuator state.
	slash := punct["/"]
	line := b.add(Comment)
	block := b.openLiteral(noAccept, diag.CodeUnterminatedComment)
	blockStar := b.openLiteral(noAccept, diag.CodeUnterminatedComment)
	blockEnd := b.add(Comment)
	b.on(slash, line, cSlash)
	b.onAll(line, line, cLF)
	b.on(slash, block, cStar)
	b.onAll(block, block, cStar)
	b.on(block, blockStar, cStar)
	b.onAll(blockStar, block, cStar, cSlash)
	b.on(blockStar, blockStar, cStar)
	b.on(blockStar, blockEnd, cSlash)

	// Regex mode: like normal, except a slash opens a regular expression.
	regexStart := b.add(noAccept)
	b.copyRow(regexStart, normal)
	re := b.openLiteral(noAccept, diag.CodeUnterminatedRegex)
	reEsc := b.openLiteral(noAccept, diag.CodeUnterminatedRegex)
	reClass := b.openLiteral(noAccept, diag.CodeUnterminatedRegex)
	reClassEsc := b.openLiteral(noAccept, diag.CodeUnterminatedRegex)
	reEnd := b.add(Regex)
	b.on(regexStart, re, cSlash)
	b.onAll(re, re, cSlash, cBackslash, cLBracket, cLF)
	b.on(re, reEsc, cBackslash)
	b.on(re, reClass, cLBracket)
	b.on(re, reEnd, cSlash)
	b.onAll(reEsc, re, cLF)
	b.onAll(reClass, reClass, cRBracket, cBackslash, cLF)
	b.on(reClass, reClassEsc, cBackslash)
	b.on(reClass, re, cRBracket)
	b.onAll(reClassEsc, reClass, cLF)
	b.on(reEnd, reEnd, identPart...)

	// Template mode: a closing brace resumes the template body.
	templateStart := b.add(noAccept)
	b.copyRow(templateStart, normal)
	b.on(templateStart, templateBody(TemplateTail, TemplateMiddle), cRBrace)

	// JSX tag mode: dashed names and single-character punctuators.
	jsxTag := b.add(noAccept)
	b.on(jsxTag, ws, cWS)
	b.on(jsxTag, lf, cLF)
	jsxName := b.add(Ident)
	b.on(jsxTag, jsxName, identStart...)
	b.on(jsxName, jsxName, identPart...)
	b.on(jsxName, jsxName, cMinus)
	for _, c := range []class{cLBrace, cRBrace, cLT, cGT, cSlash, cEq, cDot, cColon} {
		b.on(jsxTag, b.add(Punct), c)
	}
	b.on(jsxTag, dq, cDQuote)
	b.on(jsxTag, sq, cSQuote)

	// JSX child mode: text runs up to '<' or '{'.
	jsxChild := b.add(noAccept)
	text := b.add(JSXText)
	b.onAll(jsxChild, text, cLT, cLBrace)
	b.onAll(text, text, cLT, cLBrace)
	b.on(jsxChild, b.add(Punct), cLT)
	b.on(jsxChild, b.add(Punct), cLBrace)

	m.start = [numModes]state{
		ModeNormal:   normal,
		ModeRegex:    regexStart,
		ModeJSXTag:   jsxTag,
		ModeJSXChild: jsxChild,
		ModeTemplate: templateStart,
	}
	return m
}

// States reports the number of automaton states, the dead state included.
func States() int { return len(dfa.next) }
