package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/artpar/warpmodel/core/query"
)

// Pointer declares a reference field.
type Pointer struct {
	// Name is the field name, also used as the join alias.
	Name string `yaml:"-"`

	// ClassName is the referenced class.
	ClassName string `yaml:"className"`

	// Via is the join column. Defaults to "<name>_id". A dotted value
	// ("author.company_id") joins through another pointer.
	Via string `yaml:"via,omitempty"`

	// Where filters the joined rows.
	Where query.Where `yaml:"where,omitempty"`
}

// Pointers keeps reference declarations in declaration order.
type Pointers []Pointer

// Get returns the pointer named name.
func (p Pointers) Get(name string) (Pointer, bool) {
	for _, ptr := range p {
		if ptr.Name == name {
			return ptr, true
		}
	}
	return Pointer{}, false
}

// Names returns the pointer names in order.
func (p Pointers) Names() []string {
	out := make([]string, len(p))
	for i, ptr := range p {
		out[i] = ptr.Name
	}
	return out
}

// UnmarshalYAML decodes a mapping of name to pointer, keeping order.
// A later entry with a repeated name replaces the earlier one in place.
func (p *Pointers) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: pointers must be a mapping", node.Line)
	}

	var out Pointers
	index := map[string]int{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var ptr Pointer
		if err := node.Content[i+1].Decode(&ptr); err != nil {
			return fmt.Errorf("pointer %q: %w", name, err)
		}
		ptr.Name = name
		if at, ok := index[name]; ok {
			out[at] = ptr
			continue
		}
		index[name] = len(out)
		out = append(out, ptr)
	}

	*p = out
	return nil
}
