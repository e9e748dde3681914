// Package diag defines the non-fatal diagnostics reported while lexing,
// parsing and optimizing. Diagnostics are values, not errors: a unit that
// produced diagnostics still yields a usable IR store.
package diag

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/lumen/internal/ir"
)

// Kind classifies a diagnostic.
type Kind uint8

const (
	LexError Kind = iota
	SyntaxError
	SemanticWarning
	ConvergenceWarning
)

var kindNames = [...]string{
	LexError:           "LexError",
	SyntaxError:        "SyntaxError",
	SemanticWarning:    "SemanticWarning",
	ConvergenceWarning: "ConvergenceWarning",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind resolves a kind name as printed by String.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown diagnostic kind %q", s)
}

// IsError reports whether the kind marks input the toolchain could not
// fully understand. Warnings never do.
func (k Kind) IsError() bool {
	return k == LexError || k == SyntaxError
}

// MarshalJSON renders the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts a kind name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Diagnostic codes.
const (
	CodeInvalidChar         = "E201"
	CodeUnterminatedString  = "E202"
	CodeUnterminatedTmpl    = "E203"
	CodeUnterminatedRegex   = "E204"
	CodeUnterminatedComment = "E205"
	CodeMalformedNumber     = "E206"

	CodeUnexpectedToken = "E301"
	CodeUnexpectedEOF   = "E302"
	CodeInvalidTarget   = "E303"
	CodeMalformedEscape = "E304"
	CodeMisplacedJump   = "E305"

	CodeInlineSkipped  = "W401"
	CodePassNotAllowed = "W402"
	CodeRoundCeiling   = "W501"
	CodeImportCycle    = "W601"
)

// Diagnostic is one reported problem.
type Diagnostic struct {
	Kind     Kind     `json:"kind"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Span     ir.Span  `json:"span"`
	Expected []string `json:"expected,omitempty"` // syntax errors only
	Path     string   `json:"path,omitempty"`     // set by multi-unit builds
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Path != "" {
		b.WriteString(d.Path)
		b.WriteByte(':')
	}
	fmt.Fprintf(&b, "%d:%d: %s [%s]: %s", d.Span.Start.Line, d.Span.Start.Column, d.Kind, d.Code, d.Message)
	if len(d.Expected) > 0 {
		fmt.Fprintf(&b, " (expected %s)", strings.Join(d.Expected, ", "))
	}
	return b.String()
}

// List is an ordered collection of diagnostics.
type List []Diagnostic

// Count returns the number of diagnostics of kind k.
func (l List) Count(k Kind) int {
	n := 0
	for _, d := range l {
		if d.Kind == k {
			n++
		}
	}
	return n
}

// HasErrors reports whether any diagnostic is a lexical or syntax error.
func (l List) HasErrors() bool {
	return slices.ContainsFunc(l, func(d Diagnostic) bool { return d.Kind.IsError() })
}

// Sorted returns a copy ordered by path, then source offset, then code.
func (l List) Sorted() List {
	out := slices.Clone(l)
	slices.SortStableFunc(out, func(a, b Diagnostic) int {
		return cmp.Or(
			cmp.Compare(a.Path, b.Path),
			cmp.Compare(a.Span.Start.Offset, b.Span.Start.Offset),
			cmp.Compare(a.Code, b.Code),
		)
	})
	return out
}

// Dedup drops repeats of the same (kind, code, span, message), keeping the
// first occurrence. Passes that run once per round report the same warning
// every round; callers deduplicate before reporting.
func (l List) Dedup() List {
	type key struct {
		kind    Kind
		code    string
		path    string
		start   int
		end     int
		message string
	}
	seen := make(map[key]bool, len(l))
	out := make(List, 0, len(l))
	for _, d := range l {
		k := key{d.Kind, d.Code, d.Path, d.Span.Start.Offset, d.Span.End.Offset, d.Message}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}
	return out
}

// WithPath returns a copy with Path set on every diagnostic.
func (l List) WithPath(path string) List {
	out := slices.Clone(l)
	for i := range out {
		out[i].Path = path
	}
	return out
}
