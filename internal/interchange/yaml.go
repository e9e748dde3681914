package interchange

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/lumen/internal/ir"
)

type yamlDoc struct {
	Header `yaml:",inline"`
	Nodes  []yamlNode `yaml:"nodes"`
}

type yamlNode struct {
	Handle   ir.Handle         `yaml:"handle"`
	Kind     string            `yaml:"kind"`
	Parent   ir.Handle         `yaml:"parent,omitempty"`
	Children []ir.Handle       `yaml:"children,flow,omitempty"`
	Attrs    map[string]string `yaml:"attrs,omitempty"`
	Span     string            `yaml:"span"`
}

// EncodeYAML renders the same content as Encode for reading. Attribute
// values use the dump notation and Refs print as #handle. The YAML form is
// not accepted by Decode.
func EncodeYAML(s *ir.Store, storeID string) ([]byte, error) {
	hash, err := Hash(s, storeID)
	if err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	handles := s.Handles()
	doc := yamlDoc{
		Header: Header{
			Format:  Format,
			Version: ir.IRVersion,
			StoreID: storeID,
			Root:    s.Root(),
			Next:    s.Next(),
			Count:   len(handles),
			Hash:    hash,
		},
	}
	for _, h := range handles {
		n := s.Get(h)
		yn := yamlNode{
			Handle:   h,
			Kind:     n.Kind.String(),
			Parent:   n.Parent,
			Children: slices.Clone(n.Children),
			Span:     fmt.Sprintf("%s-%s", n.Span.Start, n.Span.End),
		}
		if len(n.Attrs) > 0 {
			yn.Attrs = make(map[string]string, len(n.Attrs))
			for k, v := range n.Attrs {
				yn.Attrs[k] = ir.FormatValue(v)
			}
		}
		doc.Nodes = append(doc.Nodes, yn)
	}
	return yaml.Marshal(doc)
}
