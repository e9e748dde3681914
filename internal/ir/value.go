package ir

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/roach88/lumen/internal/wtf8"
)

// Value is a sealed interface for node attribute values.
// Only String, Number, Bool, Null and Ref implement it.
type Value interface {
	attrValue() // Sealed
}

// String is a string attribute.
type String string

func (String) attrValue() {}

// Number is an IEEE-754 double attribute. NaN, infinities and negative zero
// are legal values; the interchange codec preserves them exactly.
type Number float64

func (Number) attrValue() {}

// Bool is a boolean attribute.
type Bool bool

func (Bool) attrValue() {}

// Null is the null attribute.
type Null struct{}

func (Null) attrValue() {}

// Ref is a handle-valued attribute. It must name a live node of the same store.
type Ref Handle

func (Ref) attrValue() {}

// FormatNumber renders n so that ParseNumber(FormatNumber(n)) is bit-exact for
// every value except NaN payloads.
func FormatNumber(n float64) string {
	if n == 0 && math.Signbit(n) {
		return "-0"
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// ParseNumber is the inverse of FormatNumber.
func ParseNumber(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return f, nil
}

// FormatValue renders an attribute value for dumps and diagnostics.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case String:
		return strconv.Quote(string(val))
	case Number:
		return FormatNumber(float64(val))
	case Bool:
		return strconv.FormatBool(bool(val))
	case Null:
		return "null"
	case Ref:
		return fmt.Sprintf("#%d", uint32(val))
	default:
		return fmt.Sprintf("%v", v)
	}
}

// EqualValues compares attribute values. Numbers compare bitwise so that NaN
// equals NaN and -0 differs from 0.
func EqualValues(a, b Value) bool {
	switch av := a.(type) {
	case Number:
		bv, ok := b.(Number)
		return ok && math.Float64bits(float64(av)) == math.Float64bits(float64(bv))
	default:
		return a == b
	}
}

// sortedKeys returns map keys in RFC 8785 canonical order (UTF-16 code units).
// Go's native string order is UTF-8 bytes, which differs above U+FFFF.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, CompareUTF16)
	return keys
}

// CompareUTF16 orders strings by UTF-16 code units, the order used both by
// RFC 8785 and by JavaScript relational comparison of strings.
func CompareUTF16(a, b string) int {
	return wtf8.Compare(a, b)
}
