package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Mode selects the language dialect.
type Mode uint8

const (
	Plain Mode = iota
	JSX
	TypeScript
	TSX
)

var modeNames = [...]string{"plain", "jsx", "typescript", "tsx"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// JSX reports whether the dialect accepts JSX syntax.
func (m Mode) JSX() bool { return m == JSX || m == TSX }

// TypeScript reports whether the dialect accepts type syntax.
func (m Mode) TypeScript() bool { return m == TypeScript || m == TSX }

// ParseMode resolves a mode name as printed by Mode.String. "ts" is
// accepted as shorthand for typescript.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "plain", "js", "javascript":
		return Plain, nil
	case "jsx":
		return JSX, nil
	case "typescript", "ts":
		return TypeScript, nil
	case "tsx":
		return TSX, nil
	}
	return Plain, fmt.Errorf("unknown language mode %q (want plain, jsx, typescript or tsx)", s)
}

// ModeFromPath picks the mode from a file extension. ok is false for
// unsupported extensions.
func ModeFromPath(path string) (m Mode, ok bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs":
		return Plain, true
	case ".jsx":
		return JSX, true
	case ".ts", ".mts", ".cts":
		return TypeScript, true
	case ".tsx":
		return TSX, true
	}
	return Plain, false
}
