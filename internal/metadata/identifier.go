package metadata

import (
	"fmt"
	"strings"
)

// IdentifierValue is one (property, value) pair of an identifier
type IdentifierValue struct {
	Property string `json:"property"`
	Value    any    `json:"value"`
}

// Identifier is the ordered list of identifier values of an item.
// Composite identifiers keep the declaration order of the resource's
// identifier set.
type Identifier []IdentifierValue

// Get returns the value of one identifier property
func (id Identifier) Get(property string) (any, bool) {
	for _, v := range id {
		if v.Property == property {
			return v.Value, true
		}
	}
	return nil, false
}

// Properties returns the property names in order
func (id Identifier) Properties() []string {
	names := make([]string, len(id))
	for i, v := range id {
		names[i] = v.Property
	}
	return names
}

// Map returns the identifier as a map, losing the order
func (id Identifier) Map() map[string]any {
	m := make(map[string]any, len(id))
	for _, v := range id {
		m[v.Property] = v.Value
	}
	return m
}

// String renders a single identifier as its bare value and a composite one
// as "a=1;b=2"
func (id Identifier) String() string {
	if len(id) == 1 {
		return fmt.Sprint(id[0].Value)
	}
	parts := make([]string, len(id))
	for i, v := range id {
		parts[i] = fmt.Sprintf("%s=%v", v.Property, v.Value)
	}
	return strings.Join(parts, ";")
}
