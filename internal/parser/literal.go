package parser

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/roach88/lumen/internal/diag"
	"github.com/roach88/lumen/internal/jsvalue"
	"github.com/roach88/lumen/internal/lexer"
	"github.com/roach88/lumen/internal/wtf8"
)

// numberValue evaluates a numeric literal. BigInt literals report
// bigint=true; their value is the nearest double.
func numberValue(raw string) (v float64, bigint bool) {
	s := strings.ReplaceAll(raw, "_", "")
	if strings.HasSuffix(s, "n") {
		s, bigint = s[:len(s)-1], true
	}
	if isLegacyOctal(s) {
		n, err := strconv.ParseUint(s[1:], 8, 64)
		if err == nil {
			return float64(n), bigint
		}
	}
	return jsvalue.StringToNumber(s), bigint
}

// isLegacyOctal matches sloppy-mode octal literals such as 0755.
func isLegacyOctal(s string) bool {
	if len(s) < 2 || s[0] != '0' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '7' {
			return false
		}
	}
	return true
}

// numberKey is the property name a numeric key denotes: { 1.0: x } has
// key "1".
func numberKey(v float64) string { return jsvalue.NumberToString(v) }

// stringValue decodes a string literal token.
func (p *parser) stringValue(tok lexer.Token) string {
	raw := tok.Lexeme
	if len(raw) < 2 {
		return ""
	}
	v, ok := cook(raw[1:len(raw)-1], false)
	if !ok {
		p.errorAt(tok.Span, diag.CodeMalformedEscape, "malformed escape sequence in string literal", nil)
	}
	return v
}

// cook resolves escape sequences. Template text also normalizes CR and
// CRLF to LF and has no legacy octal escapes. ok is false when a \x or \u
// escape is malformed; the value then keeps the escape letter. Escaped
// lone surrogates are kept as WTF-8.
func cook(s string, template bool) (v string, ok bool) {
	if !strings.ContainsAny(s, "\\\r") {
		return s, true
	}
	ok = true
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c == '\r' && template {
			b.WriteByte('\n')
			i++
			if i < len(s) && s[i] == '\n' {
				i++
			}
			continue
		}
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			i++
			continue
		}
		i++
		c = s[i]
		switch c {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '\n':
			// line continuation
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case 'x':
			if n, ok := hexValue(s, i+1, 2); ok {
				b.WriteRune(rune(n))
				i += 2
			} else {
				b.WriteByte('x')
				ok = false
			}
		case 'u':
			r, width := unicodeEscape(s, i)
			if width == 0 {
				b.WriteByte('u')
				ok = false
				break
			}
			i += width - 1
			if utf16.IsSurrogate(r) {
				// A pair written as two escapes decodes to one code point.
				if lo, w := unicodeEscape(s, i+2); i+2 < len(s) && s[i+1] == '\\' && w > 0 {
					if pair := utf16.DecodeRune(r, lo); pair != utf8.RuneError {
						r = pair
						i += w + 1
					}
				}
			}
			b.Write(wtf8.AppendRune(nil, r))
		default:
			if c >= '0' && c <= '7' && !(c == '0' && !nextIsDigit(s, i+1)) && !template {
				n, width := octalEscape(s, i)
				b.WriteRune(rune(n))
				i += width - 1
				break
			}
			if c == '0' {
				b.WriteByte(0)
				break
			}
			// Escaped line separators and any other character stand for
			// themselves.
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == 0x2028 || r == 0x2029 {
				i += size
				continue
			}
			b.WriteRune(r)
			i += size
			continue
		}
		i++
	}
	return b.String(), ok
}

func nextIsDigit(s string, i int) bool { return i < len(s) && s[i] >= '0' && s[i] <= '9' }

func hexValue(s string, i, n int) (int, bool) {
	if i+n > len(s) {
		return 0, false
	}
	v, err := strconv.ParseUint(s[i:i+n], 16, 32)
	if err != nil {
		return 0, false
	}
	return int(v), true
}

// unicodeEscape decodes the escape whose 'u' is at s[i], returning the code
// point and the number of bytes consumed from i. width is 0 when malformed.
func unicodeEscape(s string, i int) (r rune, width int) {
	if i >= len(s) || s[i] != 'u' {
		return 0, 0
	}
	if i+1 < len(s) && s[i+1] == '{' {
		end := strings.IndexByte(s[i+2:], '}')
		if end <= 0 {
			return 0, 0
		}
		v, err := strconv.ParseUint(s[i+2:i+2+end], 16, 32)
		if err != nil || v > 0x10FFFF {
			return 0, 0
		}
		return rune(v), end + 3
	}
	v, ok := hexValue(s, i+1, 4)
	if !ok {
		return 0, 0
	}
	return rune(v), 5
}

// octalEscape reads up to three octal digits with a value of at most 0377.
func octalEscape(s string, i int) (n, width int) {
	limit := 3
	if s[i] > '3' {
		limit = 2
	}
	for width < limit && i+width < len(s) && s[i+width] >= '0' && s[i+width] <= '7' {
		n = n*8 + int(s[i+width]-'0')
		width++
	}
	return n, width
}
