package metadata

import (
	"maps"
	"slices"
)

// APIProperty is the resolved metadata of one resource property
type APIProperty struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Types       []Type         `json:"types,omitempty" yaml:"types,omitempty"`
	Identifier  TriState       `json:"identifier" yaml:"identifier"`
	Readable    TriState       `json:"readable" yaml:"readable"`
	Writable    TriState       `json:"writable" yaml:"writable"`
	Required    TriState       `json:"required" yaml:"required"`
	Groups      []string       `json:"groups,omitempty" yaml:"groups,omitempty"`
	Schema      map[string]any `json:"schema,omitempty" yaml:"schema,omitempty"`
	Extra       map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// NewProperty returns an undecided property
func NewProperty(name string) APIProperty {
	return APIProperty{Name: name}
}

// WithName returns a copy with the name replaced
func (p APIProperty) WithName(name string) APIProperty {
	c := p.Clone()
	c.Name = name
	return c
}

// WithDescription returns a copy with the description replaced
func (p APIProperty) WithDescription(description string) APIProperty {
	c := p.Clone()
	c.Description = description
	return c
}

// WithTypes returns a copy with the types replaced
func (p APIProperty) WithTypes(types ...Type) APIProperty {
	c := p.Clone()
	c.Types = cloneTypes(types)
	return c
}

// WithIdentifier returns a copy with the identifier flag replaced
func (p APIProperty) WithIdentifier(v TriState) APIProperty {
	c := p.Clone()
	c.Identifier = v
	return c
}

// WithReadable returns a copy with the readable flag replaced
func (p APIProperty) WithReadable(v TriState) APIProperty {
	c := p.Clone()
	c.Readable = v
	return c
}

// WithWritable returns a copy with the writable flag replaced
func (p APIProperty) WithWritable(v TriState) APIProperty {
	c := p.Clone()
	c.Writable = v
	return c
}

// WithRequired returns a copy with the required flag replaced
func (p APIProperty) WithRequired(v TriState) APIProperty {
	c := p.Clone()
	c.Required = v
	return c
}

// WithGroups returns a copy with the serialization groups replaced
func (p APIProperty) WithGroups(groups ...string) APIProperty {
	c := p.Clone()
	c.Groups = slices.Clone(groups)
	return c
}

// WithSchema returns a copy with the schema hints replaced
func (p APIProperty) WithSchema(schema map[string]any) APIProperty {
	c := p.Clone()
	c.Schema = maps.Clone(schema)
	return c
}

// WithExtra returns a copy with one extra entry set
func (p APIProperty) WithExtra(key string, value any) APIProperty {
	c := p.Clone()
	if c.Extra == nil {
		c.Extra = make(map[string]any)
	}
	c.Extra[key] = value
	return c
}

// Clone returns a deep copy of the slices and maps held by the property
func (p APIProperty) Clone() APIProperty {
	p.Types = cloneTypes(p.Types)
	p.Groups = slices.Clone(p.Groups)
	p.Schema = maps.Clone(p.Schema)
	p.Extra = maps.Clone(p.Extra)
	return p
}

// Fill returns p with every field that p leaves undecided taken from
// other. Decided fields of p are never overwritten; extra entries are
// merged key by key with the same rule.
func (p APIProperty) Fill(other APIProperty) APIProperty {
	c := p.Clone()
	if c.Name == "" {
		c.Name = other.Name
	}
	if c.Description == "" {
		c.Description = other.Description
	}
	if len(c.Types) == 0 {
		c.Types = cloneTypes(other.Types)
	}
	c.Identifier = c.Identifier.Or(other.Identifier)
	c.Readable = c.Readable.Or(other.Readable)
	c.Writable = c.Writable.Or(other.Writable)
	c.Required = c.Required.Or(other.Required)
	if c.Groups == nil {
		c.Groups = slices.Clone(other.Groups)
	}
	if len(c.Schema) == 0 {
		c.Schema = maps.Clone(other.Schema)
	}
	for k, v := range other.Extra {
		if _, ok := c.Extra[k]; ok {
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]any)
		}
		c.Extra[k] = v
	}
	return c
}

// InGroups reports whether the property belongs to at least one of groups
func (p APIProperty) InGroups(groups []string) bool {
	for _, g := range groups {
		if slices.Contains(p.Groups, g) {
			return true
		}
	}
	return false
}
