// Package wtf8 holds JavaScript strings, which are arbitrary sequences of
// UTF-16 code units, in Go strings.
//
// Well-formed text is plain UTF-8. A lone surrogate is stored with the
// three-byte encoding UTF-8 would give any other code point below U+10000
// (lead byte 0xED). The utf8 package rejects those sequences, so code that
// must keep lone surrogates decodes with this package instead.
package wtf8

import (
	"unicode/utf16"
	"unicode/utf8"
)

// IsSurrogate reports whether r is a UTF-16 surrogate code point.
func IsSurrogate(r rune) bool {
	return r >= 0xD800 && r <= 0xDFFF
}

// AppendRune appends the encoding of r, which may be a lone surrogate.
func AppendRune(b []byte, r rune) []byte {
	if IsSurrogate(r) {
		return append(b, 0xED, 0x80|byte(r>>6)&0x3F, 0x80|byte(r)&0x3F)
	}
	return utf8.AppendRune(b, r)
}

// DecodeRune decodes the first code point of s. Surrogates come back as
// themselves; other malformed input yields (utf8.RuneError, 1).
func DecodeRune(s string) (rune, int) {
	if len(s) >= 3 && s[0] == 0xED && s[1] >= 0xA0 && s[1] <= 0xBF && s[2]&0xC0 == 0x80 {
		return 0xD000 | rune(s[1]&0x3F)<<6 | rune(s[2]&0x3F), 3
	}
	return utf8.DecodeRuneInString(s)
}

// Units returns the UTF-16 code units of s.
func Units(s string) []uint16 {
	out := make([]uint16, 0, len(s))
	for len(s) > 0 {
		r, n := DecodeRune(s)
		s = s[n:]
		if r >= 0x10000 {
			hi, lo := utf16.EncodeRune(r)
			out = append(out, uint16(hi), uint16(lo))
			continue
		}
		out = append(out, uint16(r))
	}
	return out
}

// FromUnits builds a string from UTF-16 code units, pairing surrogates
// where possible.
func FromUnits(units []uint16) string {
	b := make([]byte, 0, len(units))
	for i := 0; i < len(units); i++ {
		r := rune(units[i])
		if utf16.IsSurrogate(r) && r < 0xDC00 && i+1 < len(units) {
			if p := utf16.DecodeRune(r, rune(units[i+1])); p != utf8.RuneError {
				b = utf8.AppendRune(b, p)
				i++
				continue
			}
		}
		b = AppendRune(b, r)
	}
	return string(b)
}

// Len returns the length of s in UTF-16 code units.
func Len(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := DecodeRune(s)
		s = s[size:]
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// Concat joins a and b. A high surrogate ending a and a low surrogate
// starting b merge into one supplementary code point.
func Concat(a, b string) string {
	if len(a) < 3 || len(b) < 3 {
		return a + b
	}
	hi, n := DecodeRune(a[len(a)-3:])
	lo, m := DecodeRune(b)
	if n != 3 || m != 3 || hi < 0xD800 || hi > 0xDBFF || lo < 0xDC00 || lo > 0xDFFF {
		return a + b
	}
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a[:len(a)-3]...)
	out = utf8.AppendRune(out, utf16.DecodeRune(hi, lo))
	return string(append(out, b[3:]...))
}

// Compare orders a and b by UTF-16 code units.
func Compare(a, b string) int {
	a16, b16 := Units(a), Units(b)
	for i := 0; i < min(len(a16), len(b16)); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
