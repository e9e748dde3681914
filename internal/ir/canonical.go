package ir

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/roach88/lumen/internal/wtf8"
)

// MarshalCanonical produces RFC 8785 canonical JSON. It is the only
// serialization used for content hashes and for the interchange form.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units, not UTF-8 bytes
//  2. No HTML escaping
//  3. Strings are written exactly, never normalized; lone surrogates
//     survive as escapes
//  4. Floats and null are rejected; numbers travel as strings
//
// Supported inputs are string, bool, int, int64, uint32, Handle, []any and
// map[string]any, nested arbitrarily.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return marshalCanonicalString(buf, val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case int:
		fmt.Fprintf(buf, "%d", val)
	case int64:
		fmt.Fprintf(buf, "%d", val)
	case uint32:
		fmt.Fprintf(buf, "%d", val)
	case Handle:
		fmt.Fprintf(buf, "%d", uint32(val))
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		buf.WriteByte('{')
		for i, k := range sortedKeys(val) {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalCanonicalString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := marshalCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	case float64, float32:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// marshalCanonicalString writes s exactly, with the RFC 8785 escapes:
// quote, backslash and the short forms of control characters, \u00XX for
// the rest of C0. Everything else, U+2028 and U+2029 included, stays
// literal. A lone surrogate is written as a lowercase \udXXX escape, the
// only JSON spelling that survives a decoder. Bytes that are not UTF-8 at
// all become U+FFFD, as with encoding/json.
func marshalCanonicalString(buf *bytes.Buffer, s string) error {
	buf.WriteByte('"')
	for len(s) > 0 {
		r, n := wtf8.DecodeRune(s)
		switch {
		case r == utf8.RuneError && n == 1:
			buf.WriteString(string(utf8.RuneError))
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20 || wtf8.IsSurrogate(r):
			fmt.Fprintf(buf, `\u%04x`, r)
		default:
			buf.WriteString(s[:n])
		}
		s = s[n:]
	}
	buf.WriteByte('"')
	return nil
}
