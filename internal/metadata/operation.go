package metadata

import (
	"maps"
	"net/http"
	"slices"
	"strings"
)

// OperationKind distinguishes operations on one item from operations on a
// collection of items
type OperationKind string

const (
	// KindItem addresses a single item (GET /books/{id})
	KindItem OperationKind = "item"
	// KindCollection addresses the collection (GET /books, POST /books)
	KindCollection OperationKind = "collection"
)

// SerializationContext holds normalization or denormalization settings
type SerializationContext struct {
	Groups []string       `json:"groups,omitempty" yaml:"groups,omitempty"`
	Flags  map[string]any `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// IsZero reports whether nothing was configured
func (c SerializationContext) IsZero() bool {
	return len(c.Groups) == 0 && len(c.Flags) == 0
}

// Clone returns a deep copy
func (c SerializationContext) Clone() SerializationContext {
	return SerializationContext{
		Groups: slices.Clone(c.Groups),
		Flags:  maps.Clone(c.Flags),
	}
}

// PersistenceOptions binds a resource to a persistence backend. The core
// only reads Backend; Target and Options are interpreted by the backend
// (table, collection, index or model name).
type PersistenceOptions struct {
	Backend string         `json:"backend,omitempty" yaml:"backend,omitempty"`
	Target  string         `json:"target,omitempty" yaml:"target,omitempty"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// IsZero reports whether no backend was bound
func (p PersistenceOptions) IsZero() bool {
	return p.Backend == "" && p.Target == "" && len(p.Options) == 0
}

// Clone returns a deep copy
func (p PersistenceOptions) Clone() PersistenceOptions {
	p.Options = maps.Clone(p.Options)
	return p
}

// URIVariable binds a placeholder of a URI template to identifier
// properties
type URIVariable struct {
	Parameter   string        `json:"parameter" yaml:"parameter"`
	FromClass   ResourceClass `json:"from_class,omitempty" yaml:"from_class,omitempty"`
	Identifiers []string      `json:"identifiers,omitempty" yaml:"identifiers,omitempty"`
	Composite   bool          `json:"composite,omitempty" yaml:"composite,omitempty"`
	// ToProperty names the relation property on the operation's own class
	// for nested resources (/authors/{authorId}/books)
	ToProperty string `json:"to_property,omitempty" yaml:"to_property,omitempty"`
}

// Clone returns a deep copy
func (v URIVariable) Clone() URIVariable {
	v.Identifiers = slices.Clone(v.Identifiers)
	return v
}

// Operation is one named, addressable action on a resource
type Operation struct {
	Name            string               `json:"name" yaml:"name"`
	Class           ResourceClass        `json:"class,omitempty" yaml:"class,omitempty"`
	ShortName       string               `json:"short_name,omitempty" yaml:"short_name,omitempty"`
	Kind            OperationKind        `json:"kind,omitempty" yaml:"kind,omitempty"`
	Method          string               `json:"method,omitempty" yaml:"method,omitempty"`
	URITemplate     string               `json:"uri_template,omitempty" yaml:"uri_template,omitempty"`
	URIVariables    []URIVariable        `json:"uri_variables,omitempty" yaml:"uri_variables,omitempty"`
	Normalization   SerializationContext `json:"normalization" yaml:"normalization,omitempty"`
	Denormalization SerializationContext `json:"denormalization" yaml:"denormalization,omitempty"`
	Provider        string               `json:"provider,omitempty" yaml:"provider,omitempty"`
	Processor       string               `json:"processor,omitempty" yaml:"processor,omitempty"`
	Read            TriState             `json:"read" yaml:"read,omitempty"`
	Write           TriState             `json:"write" yaml:"write,omitempty"`
	GraphQL         bool                 `json:"graphql,omitempty" yaml:"graphql,omitempty"`
	Persistence     PersistenceOptions   `json:"persistence" yaml:"persistence,omitempty"`
	Description     string               `json:"description,omitempty" yaml:"description,omitempty"`
	Extra           map[string]any       `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// NewOperation creates an operation for a method and URI template
func NewOperation(method, uriTemplate string) Operation {
	return Operation{Method: method, URITemplate: uriTemplate}
}

// Clone returns a deep copy
func (o Operation) Clone() Operation {
	if o.URIVariables != nil {
		vars := make([]URIVariable, len(o.URIVariables))
		for i, v := range o.URIVariables {
			vars[i] = v.Clone()
		}
		o.URIVariables = vars
	}
	o.Normalization = o.Normalization.Clone()
	o.Denormalization = o.Denormalization.Clone()
	o.Persistence = o.Persistence.Clone()
	o.Extra = maps.Clone(o.Extra)
	return o
}

// WithName returns a copy with the name replaced
func (o Operation) WithName(name string) Operation {
	c := o.Clone()
	c.Name = name
	return c
}

// WithClass returns a copy bound to class
func (o Operation) WithClass(class ResourceClass) Operation {
	c := o.Clone()
	c.Class = class
	return c
}

// WithShortName returns a copy with the short name replaced
func (o Operation) WithShortName(shortName string) Operation {
	c := o.Clone()
	c.ShortName = shortName
	return c
}

// WithKind returns a copy with the kind replaced
func (o Operation) WithKind(kind OperationKind) Operation {
	c := o.Clone()
	c.Kind = kind
	return c
}

// WithURITemplate returns a copy with the URI template replaced
func (o Operation) WithURITemplate(tpl string) Operation {
	c := o.Clone()
	c.URITemplate = tpl
	return c
}

// WithURIVariables returns a copy with the URI variables replaced
func (o Operation) WithURIVariables(vars ...URIVariable) Operation {
	c := o.Clone()
	c.URIVariables = make([]URIVariable, len(vars))
	for i, v := range vars {
		c.URIVariables[i] = v.Clone()
	}
	return c
}

// WithNormalization returns a copy with the normalization context replaced
func (o Operation) WithNormalization(ctx SerializationContext) Operation {
	c := o.Clone()
	c.Normalization = ctx.Clone()
	return c
}

// WithDenormalization returns a copy with the denormalization context replaced
func (o Operation) WithDenormalization(ctx SerializationContext) Operation {
	c := o.Clone()
	c.Denormalization = ctx.Clone()
	return c
}

// WithProvider returns a copy with the provider identifier replaced
func (o Operation) WithProvider(provider string) Operation {
	c := o.Clone()
	c.Provider = provider
	return c
}

// WithProcessor returns a copy with the processor identifier replaced
func (o Operation) WithProcessor(processor string) Operation {
	c := o.Clone()
	c.Processor = processor
	return c
}

// WithRead returns a copy with the read flag replaced
func (o Operation) WithRead(v TriState) Operation {
	c := o.Clone()
	c.Read = v
	return c
}

// WithWrite returns a copy with the write flag replaced
func (o Operation) WithWrite(v TriState) Operation {
	c := o.Clone()
	c.Write = v
	return c
}

// WithPersistence returns a copy with the persistence options replaced
func (o Operation) WithPersistence(p PersistenceOptions) Operation {
	c := o.Clone()
	c.Persistence = p.Clone()
	return c
}

// WithExtra returns a copy with one extra entry set
func (o Operation) WithExtra(key string, value any) Operation {
	c := o.Clone()
	if c.Extra == nil {
		c.Extra = make(map[string]any)
	}
	c.Extra[key] = value
	return c
}

// IsCollection reports whether the operation addresses a collection
func (o Operation) IsCollection() bool {
	return o.Kind == KindCollection
}

// NormalizeMethod upper-cases method and reports whether the result is an
// HTTP method an operation may declare
func NormalizeMethod(method string) (string, bool) {
	method = strings.ToUpper(strings.TrimSpace(method))
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions,
		http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return method, true
	}
	return method, false
}

// IsSafe reports whether the operation's method does not change state
func (o Operation) IsSafe() bool {
	return o.Method == http.MethodGet || o.Method == http.MethodHead || o.Method == http.MethodOptions
}

// IsDelete reports whether the operation removes data
func (o Operation) IsDelete() bool {
	return o.Method == http.MethodDelete
}

// URIVariable returns the variable bound to a placeholder
func (o Operation) URIVariable(parameter string) (URIVariable, bool) {
	for _, v := range o.URIVariables {
		if v.Parameter == parameter {
			return v, true
		}
	}
	return URIVariable{}, false
}
