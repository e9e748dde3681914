package wtf8

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func lone(r rune) string { return string(AppendRune(nil, r)) }

func TestAppendRuneSurrogate(t *testing.T) {
	assert.Equal(t, []byte{0xED, 0xA0, 0x80}, AppendRune(nil, 0xD800))
	assert.Equal(t, []byte{0xED, 0xBF, 0xBF}, AppendRune(nil, 0xDFFF))
	assert.Equal(t, []byte("a"), AppendRune(nil, 'a'))
	assert.False(t, utf8.ValidString(lone(0xD800)))
}

func TestDecodeRune(t *testing.T) {
	r, n := DecodeRune(lone(0xDBFF) + "x")
	assert.Equal(t, rune(0xDBFF), r)
	assert.Equal(t, 3, n)

	r, n = DecodeRune("\xff")
	assert.Equal(t, utf8.RuneError, r)
	assert.Equal(t, 1, n)
}

func TestUnitsRoundTrip(t *testing.T) {
	for _, s := range []string{
		"",
		"plain",
		string(rune(0x1F600)),
		lone(0xD83D) + "!",
		lone(0xDE00) + lone(0xD83D),
		"e" + string(rune(0x301)),
	} {
		assert.Equal(t, s, FromUnits(Units(s)))
		assert.Equal(t, len(Units(s)), Len(s))
	}
	assert.Equal(t, []uint16{0xD83D, 0xDE00}, Units(string(rune(0x1F600))))
}

func TestFromUnitsPairsSurrogates(t *testing.T) {
	assert.Equal(t, string(rune(0x1F600)), FromUnits([]uint16{0xD83D, 0xDE00}))
	assert.Equal(t, lone(0xDE00)+lone(0xD83D), FromUnits([]uint16{0xDE00, 0xD83D}))
}

func TestConcat(t *testing.T) {
	assert.Equal(t, "ab", Concat("a", "b"))
	assert.Equal(t, string(rune(0x1F600)), Concat(lone(0xD83D), lone(0xDE00)))
	assert.Equal(t, "x"+string(rune(0x1F600))+"y", Concat("x"+lone(0xD83D), lone(0xDE00)+"y"))
	assert.Equal(t, lone(0xDE00)+lone(0xD83D), Concat(lone(0xDE00), lone(0xD83D)))
	assert.NotEqual(t, string(utf8.RuneError), Concat(lone(0xD800), ""))
}

func TestCompare(t *testing.T) {
	assert.Equal(t, 0, Compare("abc", "abc"))
	assert.Equal(t, -1, Compare("ab", "abc"))
	assert.Equal(t, 1, Compare("b", "abc"))
	// U+10000 is 0xD800 0xDC00 in UTF-16, below U+E000.
	assert.Equal(t, -1, Compare(string(rune(0x10000)), string(rune(0xE000))))
	assert.Equal(t, 1, Compare(string(utf8.RuneError), lone(0xD800)))
}
