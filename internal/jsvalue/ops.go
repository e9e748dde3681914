package jsvalue

import (
	"math"

	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/wtf8"
)

// StrictEquals implements ===.
func StrictEquals(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindUndefined, KindNull:
		return true
	case KindBoolean:
		return a.Bool == b.Bool
	case KindNumber:
		return a.Num == b.Num
	case KindString:
		return a.Str == b.Str
	}
	return a.Obj == b.Obj
}

// LooseEquals implements ==.
func LooseEquals(a, b Value) bool {
	if a.Kind == b.Kind {
		return StrictEquals(a, b)
	}
	nullish := func(v Value) bool { return v.Kind == KindUndefined || v.Kind == KindNull }
	switch {
	case nullish(a) || nullish(b):
		return nullish(a) && nullish(b)
	case a.Kind == KindBoolean:
		return LooseEquals(Num(ToNumber(a)), b)
	case b.Kind == KindBoolean:
		return LooseEquals(a, Num(ToNumber(b)))
	case a.Kind == KindNumber && b.Kind == KindString:
		return a.Num == StringToNumber(b.Str)
	case a.Kind == KindString && b.Kind == KindNumber:
		return StringToNumber(a.Str) == b.Num
	case a.Kind == KindObject:
		return LooseEquals(ToPrimitive(a, "default"), b)
	case b.Kind == KindObject:
		return LooseEquals(a, ToPrimitive(b, "default"))
	}
	return false
}

// Binary applies a binary operator. It reports false for operators it does
// not evaluate (in, instanceof, logical operators).
func Binary(op string, a, b Value) (Value, bool) {
	switch op {
	case "+":
		pa, pb := ToPrimitive(a, "default"), ToPrimitive(b, "default")
		if pa.Kind == KindString || pb.Kind == KindString {
			return Str(wtf8.Concat(ToString(pa), ToString(pb))), true
		}
		return Num(ToNumber(pa) + ToNumber(pb)), true
	case "-":
		return Num(ToNumber(a) - ToNumber(b)), true
	case "*":
		return Num(ToNumber(a) * ToNumber(b)), true
	case "/":
		return Num(ToNumber(a) / ToNumber(b)), true
	case "%":
		return Num(math.Mod(ToNumber(a), ToNumber(b))), true
	case "**":
		return Num(Pow(ToNumber(a), ToNumber(b))), true
	case "==":
		return Boolean(LooseEquals(a, b)), true
	case "!=":
		return Boolean(!LooseEquals(a, b)), true
	case "===":
		return Boolean(StrictEquals(a, b)), true
	case "!==":
		return Boolean(!StrictEquals(a, b)), true
	case "<":
		r, ok := less(a, b, true)
		return Boolean(ok && r), true
	case ">":
		r, ok := less(b, a, false)
		return Boolean(ok && r), true
	case "<=":
		r, ok := less(b, a, false)
		return Boolean(ok && !r), true
	case ">=":
		r, ok := less(a, b, true)
		return Boolean(ok && !r), true
	case "&":
		return Num(float64(ToInt32(ToNumber(a)) & ToInt32(ToNumber(b)))), true
	case "|":
		return Num(float64(ToInt32(ToNumber(a)) | ToInt32(ToNumber(b)))), true
	case "^":
		return Num(float64(ToInt32(ToNumber(a)) ^ ToInt32(ToNumber(b)))), true
	case "<<":
		return Num(float64(ToInt32(ToNumber(a)) << (ToUint32(ToNumber(b)) & 31))), true
	case ">>":
		return Num(float64(ToInt32(ToNumber(a)) >> (ToUint32(ToNumber(b)) & 31))), true
	case ">>>":
		return Num(float64(ToUint32(ToNumber(a)) >> (ToUint32(ToNumber(b)) & 31))), true
	}
	return Undefined, false
}

// less is the abstract relational comparison. ok is false when the result
// is undefined (a NaN operand).
func less(a, b Value, leftFirst bool) (r, ok bool) {
	var pa, pb Value
	if leftFirst {
		pa = ToPrimitive(a, "number")
		pb = ToPrimitive(b, "number")
	} else {
		pb = ToPrimitive(b, "number")
		pa = ToPrimitive(a, "number")
	}
	if pa.Kind == KindString && pb.Kind == KindString {
		return ir.CompareUTF16(pa.Str, pb.Str) < 0, true
	}
	x, y := ToNumber(pa), ToNumber(pb)
	if math.IsNaN(x) || math.IsNaN(y) {
		return false, false
	}
	return x < y, true
}

// Pow implements the ** operator, which differs from math.Pow for a NaN
// exponent and for a base of magnitude one raised to an infinity.
func Pow(x, y float64) float64 {
	if math.IsNaN(y) {
		return math.NaN()
	}
	if math.Abs(x) == 1 && math.IsInf(y, 0) {
		return math.NaN()
	}
	return math.Pow(x, y)
}

// Unary applies a unary operator other than delete.
func Unary(op string, v Value) (Value, bool) {
	switch op {
	case "-":
		return Num(-ToNumber(v)), true
	case "+":
		return Num(ToNumber(v)), true
	case "!":
		return Boolean(!Truthy(v)), true
	case "~":
		return Num(float64(^ToInt32(ToNumber(v)))), true
	case "typeof":
		return Str(TypeOf(v)), true
	case "void":
		return Undefined, true
	}
	return Undefined, false
}

// IsPureBinary reports whether op can be evaluated by Binary without
// observable effects when both operands are primitives.
func IsPureBinary(op string) bool {
	_, ok := Binary(op, Num(1), Num(1))
	return ok
}
