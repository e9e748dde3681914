// Package jsvalue implements ECMAScript primitive value semantics: type
// conversions, equality and the pure operators. Constant folding and the
// reference interpreter share it so both agree on every result.
package jsvalue

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/lumen/internal/wtf8"
)

// Kind is the type of a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBoolean
	KindNumber
	KindString
	KindObject
)

// Object is implemented by non-primitive values of an interpreter.
type Object interface {
	// ToPrimitive converts the object with the given hint ("number",
	// "string" or "default").
	ToPrimitive(hint string) Value
	// TypeOf returns the typeof result, "object" or "function".
	TypeOf() string
}

// Value is an ECMAScript value. The zero Value is undefined.
type Value struct {
	Kind Kind
	Bool bool
	Num  float64
	Str  string
	Obj  Object
}

var (
	Undefined = Value{}
	Null      = Value{Kind: KindNull}
	True      = Value{Kind: KindBoolean, Bool: true}
	False     = Value{Kind: KindBoolean}
)

// Num returns a number value.
func Num(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// Str returns a string value.
func Str(s string) Value { return Value{Kind: KindString, Str: s} }

// Boolean returns a boolean value.
func Boolean(b bool) Value {
	if b {
		return True
	}
	return False
}

// Obj wraps an object.
func Obj(o Object) Value { return Value{Kind: KindObject, Obj: o} }

// IsPrimitive reports whether v is not an object.
func (v Value) IsPrimitive() bool { return v.Kind != KindObject }

// String renders v the way a console would, quoting strings.
func (v Value) String() string {
	if v.Kind == KindString {
		return Quote(v.Str)
	}
	return ToString(v)
}

// Quote renders s as a double-quoted JavaScript string literal that reads
// back as exactly s. Lone surrogates and line terminators are escaped.
func Quote(s string) string {
	b := make([]byte, 0, len(s)+2)
	b = append(b, '"')
	for len(s) > 0 {
		r, n := wtf8.DecodeRune(s)
		switch {
		case r == '"' || r == '\\':
			b = append(b, '\\', byte(r))
		case r == '\n':
			b = append(b, `\n`...)
		case r == '\r':
			b = append(b, `\r`...)
		case r == '\t':
			b = append(b, `\t`...)
		case r == '\b':
			b = append(b, `\b`...)
		case r == '\f':
			b = append(b, `\f`...)
		case r == '\v':
			b = append(b, `\v`...)
		case r < 0x20 || r == 0x7f || r == 0x2028 || r == 0x2029 || wtf8.IsSurrogate(r) || n == 1 && r == utf8.RuneError:
			b = fmt.Appendf(b, `\u%04X`, r)
		default:
			b = append(b, s[:n]...)
		}
		s = s[n:]
	}
	return string(append(b, '"'))
}

// Truthy implements ToBoolean.
func Truthy(v Value) bool {
	switch v.Kind {
	case KindBoolean:
		return v.Bool
	case KindNumber:
		return v.Num != 0 && !math.IsNaN(v.Num)
	case KindString:
		return v.Str != ""
	case KindObject:
		return true
	}
	return false
}

// ToPrimitive converts objects; primitives are returned unchanged.
func ToPrimitive(v Value, hint string) Value {
	if v.Kind == KindObject && v.Obj != nil {
		return v.Obj.ToPrimitive(hint)
	}
	return v
}

// ToNumber implements the ToNumber abstract operation.
func ToNumber(v Value) float64 {
	switch v.Kind {
	case KindUndefined:
		return math.NaN()
	case KindNull:
		return 0
	case KindBoolean:
		if v.Bool {
			return 1
		}
		return 0
	case KindNumber:
		return v.Num
	case KindString:
		return StringToNumber(v.Str)
	}
	return ToNumber(ToPrimitive(v, "number"))
}

func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', 0xA0, 0xFEFF, 0x2028, 0x2029:
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

// StringToNumber parses s with the StringNumericLiteral grammar.
func StringToNumber(s string) float64 {
	s = strings.TrimFunc(s, isSpace)
	if s == "" {
		return 0
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			return parseRadix(s[2:], base)
		}
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	// strconv accepts forms JS rejects (inf, nan, hex floats, underscores).
	if strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r == '.' || r == 'e' || r == 'E' || r == '+' || r == '-')
	}) >= 0 {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f
		}
		return math.NaN()
	}
	return f
}

func parseRadix(digits string, base int) float64 {
	if digits == "" {
		return math.NaN()
	}
	var f float64
	for _, r := range digits {
		d := digitValue(r)
		if d < 0 || d >= base {
			return math.NaN()
		}
		f = f*float64(base) + float64(d)
	}
	return f
}

func digitValue(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'a' && r <= 'z':
		return int(r-'a') + 10
	case r >= 'A' && r <= 'Z':
		return int(r-'A') + 10
	}
	return -1
}

// ToString implements the ToString abstract operation.
func ToString(v Value) string {
	switch v.Kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	case KindNumber:
		return NumberToString(v.Num)
	case KindString:
		return v.Str
	}
	return ToString(ToPrimitive(v, "string"))
}

// NumberToString formats f as Number.prototype.toString() does: the
// shortest round-tripping digits, in positional notation for exponents in
// [-7, 21) and scientific notation otherwise.
func NumberToString(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case f == 0:
		return "0"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f < 0:
		return "-" + NumberToString(-f)
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	mant, expText, _ := strings.Cut(sci, "e")
	digits := strings.Replace(mant, ".", "", 1)
	exp, _ := strconv.Atoi(expText)
	k := len(digits)
	n := exp + 1

	switch {
	case k <= n && n <= 21:
		return digits + strings.Repeat("0", n-k)
	case 0 < n && n <= 21:
		return digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		return "0." + strings.Repeat("0", -n) + digits
	}

	e := n - 1
	sign := "+"
	if e < 0 {
		sign = "-"
		e = -e
	}
	if k == 1 {
		return digits + "e" + sign + strconv.Itoa(e)
	}
	return digits[:1] + "." + digits[1:] + "e" + sign + strconv.Itoa(e)
}

// ToInt32 implements the ToInt32 abstract operation.
func ToInt32(f float64) int32 {
	return int32(ToUint32(f))
}

// ToUint32 implements the ToUint32 abstract operation.
func ToUint32(f float64) uint32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	m := math.Mod(math.Trunc(f), 1<<32)
	if m < 0 {
		m += 1 << 32
	}
	return uint32(m)
}

// TypeOf implements the typeof operator.
func TypeOf(v Value) string {
	switch v.Kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "object"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	}
	if v.Obj != nil {
		return v.Obj.TypeOf()
	}
	return "object"
}
