package interchange

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/wtf8"
)

// Format tags every envelope.
const Format = "lumen-ir"

// ErrHashMismatch is returned by Decode when the envelope content does not
// match its recorded hash.
var ErrHashMismatch = errors.New("interchange: content hash mismatch")

// Header describes an encoded store.
type Header struct {
	Format  string    `json:"format" yaml:"format"`
	Version string    `json:"version" yaml:"version"`
	StoreID string    `json:"store_id" yaml:"store_id"`
	Root    ir.Handle `json:"root" yaml:"root"`
	Next    ir.Handle `json:"next" yaml:"next"`
	Count   int       `json:"count" yaml:"count"`
	Hash    string    `json:"hash" yaml:"hash"`
}

// Encode serializes s as a canonical JSON envelope identified by storeID,
// which must be a UUID. The store is validated first; an invalid store is
// never written.
func Encode(s *ir.Store, storeID string) ([]byte, error) {
	doc, err := envelope(s, storeID)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return ir.MarshalCanonical(doc)
}

// Hash returns the content hash Encode would record for s.
func Hash(s *ir.Store, storeID string) (string, error) {
	doc, err := envelope(s, storeID)
	if err != nil {
		return "", err
	}
	return doc["hash"].(string), nil
}

// envelope builds the canonical document including its hash.
func envelope(s *ir.Store, storeID string) (map[string]any, error) {
	if err := ValidateStoreID(storeID); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	handles := s.Handles()
	nodes := make([]any, 0, len(handles))
	for _, h := range handles {
		n := s.Get(h)
		children := make([]any, len(n.Children))
		for i, c := range n.Children {
			children[i] = c
		}
		attrs := make(map[string]any, len(n.Attrs))
		for k, v := range n.Attrs {
			attrs[k] = encodeValue(v)
		}
		nodes = append(nodes, map[string]any{
			"handle":   h,
			"kind":     n.Kind.String(),
			"parent":   n.Parent,
			"children": children,
			"attrs":    attrs,
			"span": []any{
				n.Span.Start.Offset, n.Span.Start.Line, n.Span.Start.Column,
				n.Span.End.Offset, n.Span.End.Line, n.Span.End.Column,
			},
		})
	}
	doc := map[string]any{
		"format":   Format,
		"version":  ir.IRVersion,
		"store_id": storeID,
		"root":     s.Root(),
		"next":     s.Next(),
		"count":    len(handles),
		"nodes":    nodes,
	}
	body, err := ir.MarshalCanonical(doc)
	if err != nil {
		return nil, err
	}
	doc["hash"] = ir.StoreHash(body)
	return doc, nil
}

func encodeValue(v ir.Value) map[string]any {
	switch val := v.(type) {
	case ir.String:
		return map[string]any{"s": string(val)}
	case ir.Number:
		return map[string]any{"n": ir.FormatNumber(float64(val))}
	case ir.Bool:
		return map[string]any{"b": bool(val)}
	case ir.Ref:
		return map[string]any{"ref": ir.Handle(val)}
	default:
		return map[string]any{"null": true}
	}
}

type wireDoc struct {
	Header
	Nodes []wireNode `json:"nodes"`
}

type wireNode struct {
	Handle   ir.Handle                             `json:"handle"`
	Kind     string                                `json:"kind"`
	Parent   ir.Handle                             `json:"parent"`
	Children []ir.Handle                           `json:"children"`
	Attrs    map[string]map[string]json.RawMessage `json:"attrs"`
	Span     []int                                 `json:"span"`
}

// Decode parses an envelope, rebuilds the store with its original handles
// and checks both the content hash and the store invariants.
func Decode(data []byte) (*ir.Store, Header, error) {
	var doc wireDoc
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, Header{}, fmt.Errorf("decode: %w", err)
	}
	h := doc.Header
	switch {
	case h.Format != Format:
		return nil, h, fmt.Errorf("decode: format %q, want %q", h.Format, Format)
	case h.Version != ir.IRVersion:
		return nil, h, fmt.Errorf("decode: IR version %q, want %q", h.Version, ir.IRVersion)
	case h.Count != len(doc.Nodes):
		return nil, h, fmt.Errorf("decode: header counts %d nodes, found %d", h.Count, len(doc.Nodes))
	}
	if err := ValidateStoreID(h.StoreID); err != nil {
		return nil, h, fmt.Errorf("decode: %w", err)
	}

	nodes := make(map[ir.Handle]*ir.Node, len(doc.Nodes))
	for _, wn := range doc.Nodes {
		n, err := decodeNode(wn)
		if err != nil {
			return nil, h, fmt.Errorf("decode: node #%d: %w", wn.Handle, err)
		}
		if _, dup := nodes[wn.Handle]; dup {
			return nil, h, fmt.Errorf("decode: node #%d listed twice", wn.Handle)
		}
		nodes[wn.Handle] = n
	}
	s, err := ir.Assemble(h.Root, h.Next, nodes)
	if err != nil {
		return nil, h, fmt.Errorf("decode: %w", err)
	}
	got, err := Hash(s, h.StoreID)
	if err != nil {
		return nil, h, fmt.Errorf("decode: %w", err)
	}
	if got != h.Hash {
		return nil, h, fmt.Errorf("%w: recorded %s, computed %s", ErrHashMismatch, h.Hash, got)
	}
	return s, h, nil
}

func decodeNode(wn wireNode) (*ir.Node, error) {
	kind, err := ir.ParseKind(wn.Kind)
	if err != nil {
		return nil, err
	}
	if len(wn.Span) != 6 {
		return nil, fmt.Errorf("span has %d fields, want 6", len(wn.Span))
	}
	n := &ir.Node{
		Kind:     kind,
		Parent:   wn.Parent,
		Children: slices.Clone(wn.Children),
		Span: ir.Span{
			Start: ir.Pos{Offset: wn.Span[0], Line: wn.Span[1], Column: wn.Span[2]},
			End:   ir.Pos{Offset: wn.Span[3], Line: wn.Span[4], Column: wn.Span[5]},
		},
	}
	if len(wn.Attrs) > 0 {
		n.Attrs = make(map[string]ir.Value, len(wn.Attrs))
	}
	for k, tagged := range wn.Attrs {
		v, err := decodeValue(tagged)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		n.Attrs[k] = v
	}
	return n, nil
}

func decodeValue(tagged map[string]json.RawMessage) (ir.Value, error) {
	if len(tagged) != 1 {
		return nil, fmt.Errorf("value must have exactly one tag, has %d", len(tagged))
	}
	for tag, raw := range tagged {
		switch tag {
		case "s":
			s, err := unquote(raw)
			return ir.String(s), err
		case "n":
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, err
			}
			f, err := ir.ParseNumber(s)
			return ir.Number(f), err
		case "b":
			var b bool
			err := json.Unmarshal(raw, &b)
			return ir.Bool(b), err
		case "null":
			return ir.Null{}, nil
		case "ref":
			var h ir.Handle
			err := json.Unmarshal(raw, &h)
			return ir.Ref(h), err
		default:
			return nil, fmt.Errorf("unknown value tag %q", tag)
		}
	}
	panic("unreachable")
}

// unquote decodes a JSON string literal. Unlike encoding/json it keeps an
// unpaired surrogate escape as that surrogate rather than U+FFFD.
func unquote(raw []byte) (string, error) {
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return "", fmt.Errorf("string value must be a JSON string, got %s", raw)
	}
	raw = raw[1 : len(raw)-1]
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' {
			if c < 0x20 {
				return "", fmt.Errorf("control character %#x in string", c)
			}
			out = append(out, c)
			continue
		}
		i++
		if i == len(raw) {
			return "", errors.New("string ends inside an escape")
		}
		switch raw[i] {
		case '"', '\\', '/':
			out = append(out, raw[i])
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'u':
			r, ok := hex4(raw[i+1:])
			if !ok {
				return "", errors.New("malformed unicode escape in string")
			}
			i += 4
			if r >= 0xD800 && r <= 0xDBFF && i+6 < len(raw) && raw[i+1] == '\\' && raw[i+2] == 'u' {
				if lo, ok := hex4(raw[i+3:]); ok && lo >= 0xDC00 && lo <= 0xDFFF {
					out = utf8.AppendRune(out, utf16.DecodeRune(r, lo))
					i += 6
					continue
				}
			}
			out = wtf8.AppendRune(out, r)
		default:
			return "", fmt.Errorf("invalid escape %q in string", raw[i])
		}
	}
	return string(out), nil
}

func hex4(b []byte) (rune, bool) {
	if len(b) < 4 {
		return 0, false
	}
	var r rune
	for _, c := range b[:4] {
		r <<= 4
		switch {
		case c >= '0' && c <= '9':
			r |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			r |= rune(c - 'a' + 10)
		case c >= 'A' && c <= 'F':
			r |= rune(c - 'A' + 10)
		default:
			return 0, false
		}
	}
	return r, true
}
