package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lumen/internal/wtf8"
)

var (
	lineSep = string(rune(0x2028))
	paraSep = string(rune(0x2029))
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"handle", Handle(7), "7"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"array", []any{1, "two", true}, `[1,"two",true]`},
		{"object", map[string]any{"b": int64(1), "a": "test"}, `{"a":"test","b":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNestedSortedKeys(t *testing.T) {
	obj := map[string]any{
		"z": map[string]any{"b": 1, "a": 2},
		"a": 3,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+E000 sorts after U+10000 in UTF-16 (0xD800 surrogate) but before it in UTF-8.
	private := string(rune(0xE000))
	linearB := string(rune(0x10000))
	obj := map[string]any{private: 1, linearB: 2}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"`+linearB+`":2,"`+private+`":1}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(map[string]any{"html": "<a href='x'>&</a>"})
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<a href='x'>&</a>"}`, string(result))
	assert.NotContains(t, string(result), `\u00`)
}

func TestMarshalCanonicalRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"float64", 3.14, "float"},
		{"float32", float32(1), "float"},
		{"nil", nil, "null"},
		{"nested float", map[string]any{"x": []any{1.5}}, "float"},
		{"unsupported", struct{}{}, "unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonical(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMarshalCanonicalKeepsDecomposedText(t *testing.T) {
	composed := "caf" + string(rune(0x00E9))
	decomposed := "cafe" + string(rune(0x0301))

	a, err := MarshalCanonical(composed)
	require.NoError(t, err)
	b, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	assert.Equal(t, `"`+composed+`"`, string(a))
	assert.Equal(t, `"`+decomposed+`"`, string(b))
	assert.NotEqual(t, a, b, "distinct strings must stay distinct")
}

func TestMarshalCanonicalLoneSurrogate(t *testing.T) {
	lone := string(wtf8.AppendRune(nil, 0xD800))

	result, err := MarshalCanonical("a" + lone + "b")
	require.NoError(t, err)
	assert.Equal(t, `"a\ud800b"`, string(result))
}

func TestSourceKeyInvalidUTF8(t *testing.T) {
	a, err := SourceKey("'\xff'", "plain", nil)
	require.NoError(t, err)
	b, err := SourceKey("'\xfe'", "plain", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestMarshalCanonicalStringEscaping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"backspace", "a\bb", `"a\bb"`},
		{"form feed", "a\fb", `"a\fb"`},
		{"unit separator", "a\x1fb", `"a\u001fb"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"line separator", "a" + lineSep + "b", `"a` + lineSep + `b"`},
		{"paragraph separator", "a" + paraSep + "b", `"a` + paraSep + `b"`},
		{"literal escape text", `see \` + "u2028", `"see \\` + `u2028"`},
		{"mixed", `x\` + "u2029 " + lineSep, `"x\\` + `u2029 ` + lineSep + `"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestCompareUTF16(t *testing.T) {
	assert.Equal(t, 0, CompareUTF16("abc", "abc"))
	assert.Equal(t, -1, CompareUTF16("ab", "abc"))
	assert.Equal(t, 1, CompareUTF16("b", "abc"))
	assert.Equal(t, -1, CompareUTF16(string(rune(0x10000)), string(rune(0xE000))))
}
