package metadata

import (
	"maps"
	"net/http"
	"slices"
	"strings"
)

// APIResource is one metadata view of a resource class. A class may be
// described by several views (versions, decorations).
type APIResource struct {
	Class             ResourceClass        `json:"class" yaml:"class"`
	ShortName         string               `json:"short_name,omitempty" yaml:"short_name,omitempty"`
	Description       string               `json:"description,omitempty" yaml:"description,omitempty"`
	RoutePrefix       string               `json:"route_prefix,omitempty" yaml:"route_prefix,omitempty"`
	Version           string               `json:"version,omitempty" yaml:"version,omitempty"`
	Operations        []Operation          `json:"operations,omitempty" yaml:"operations,omitempty"`
	GraphQL           bool                 `json:"graphql,omitempty" yaml:"graphql,omitempty"`
	GraphQLOperations []Operation          `json:"graphql_operations,omitempty" yaml:"graphql_operations,omitempty"`
	Persistence       PersistenceOptions   `json:"persistence" yaml:"persistence,omitempty"`
	Normalization     SerializationContext `json:"normalization" yaml:"normalization,omitempty"`
	Denormalization   SerializationContext `json:"denormalization" yaml:"denormalization,omitempty"`
	Provider          string               `json:"provider,omitempty" yaml:"provider,omitempty"`
	Processor         string               `json:"processor,omitempty" yaml:"processor,omitempty"`
	// Identifiers is the ordered identifier set of the resource. The order
	// drives URI generation and composite identifier extraction.
	Identifiers []string       `json:"identifiers,omitempty" yaml:"identifiers,omitempty"`
	Extra       map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Clone returns a deep copy
func (r APIResource) Clone() APIResource {
	r.Operations = cloneOperations(r.Operations)
	r.GraphQLOperations = cloneOperations(r.GraphQLOperations)
	r.Persistence = r.Persistence.Clone()
	r.Normalization = r.Normalization.Clone()
	r.Denormalization = r.Denormalization.Clone()
	r.Identifiers = slices.Clone(r.Identifiers)
	r.Extra = maps.Clone(r.Extra)
	return r
}

// WithShortName returns a copy with the short name replaced
func (r APIResource) WithShortName(name string) APIResource {
	c := r.Clone()
	c.ShortName = name
	return c
}

// WithOperations returns a copy with the REST operations replaced
func (r APIResource) WithOperations(ops ...Operation) APIResource {
	c := r.Clone()
	c.Operations = cloneOperations(ops)
	return c
}

// WithGraphQLOperations returns a copy with the GraphQL operations replaced
func (r APIResource) WithGraphQLOperations(ops ...Operation) APIResource {
	c := r.Clone()
	c.GraphQLOperations = cloneOperations(ops)
	return c
}

// WithPersistence returns a copy with the persistence options replaced
func (r APIResource) WithPersistence(p PersistenceOptions) APIResource {
	c := r.Clone()
	c.Persistence = p.Clone()
	return c
}

// WithProvider returns a copy with the default provider replaced
func (r APIResource) WithProvider(provider string) APIResource {
	c := r.Clone()
	c.Provider = provider
	return c
}

// WithProcessor returns a copy with the default processor replaced
func (r APIResource) WithProcessor(processor string) APIResource {
	c := r.Clone()
	c.Processor = processor
	return c
}

// WithIdentifiers returns a copy with the identifier set replaced
func (r APIResource) WithIdentifiers(names ...string) APIResource {
	c := r.Clone()
	c.Identifiers = slices.Clone(names)
	return c
}

func cloneOperations(ops []Operation) []Operation {
	if ops == nil {
		return nil
	}
	out := make([]Operation, len(ops))
	for i, op := range ops {
		out[i] = op.Clone()
	}
	return out
}

// ResourceCollection is the ordered list of resource views of one class
type ResourceCollection struct {
	Class     ResourceClass `json:"class"`
	Resources []APIResource `json:"resources"`
}

// NewResourceCollection creates a collection for class
func NewResourceCollection(class ResourceClass, resources ...APIResource) ResourceCollection {
	c := ResourceCollection{Class: class, Resources: make([]APIResource, len(resources))}
	for i, r := range resources {
		c.Resources[i] = r.Clone()
	}
	return c
}

// Len returns the number of resource views
func (c ResourceCollection) Len() int {
	return len(c.Resources)
}

// Clone returns a deep copy
func (c ResourceCollection) Clone() ResourceCollection {
	return NewResourceCollection(c.Class, c.Resources...)
}

// Map returns a copy where every view went through fn. It stops at the
// first error.
func (c ResourceCollection) Map(fn func(i int, r APIResource) (APIResource, error)) (ResourceCollection, error) {
	out := ResourceCollection{Class: c.Class, Resources: make([]APIResource, 0, len(c.Resources))}
	for i, r := range c.Resources {
		mapped, err := fn(i, r.Clone())
		if err != nil {
			return ResourceCollection{}, err
		}
		out.Resources = append(out.Resources, mapped)
	}
	return out, nil
}

// Operations returns every REST operation of every view in order
func (c ResourceCollection) Operations() []Operation {
	var ops []Operation
	for _, r := range c.Resources {
		ops = append(ops, cloneOperations(r.Operations)...)
	}
	return ops
}

// GraphQLOperations returns every GraphQL operation of every view in order
func (c ResourceCollection) GraphQLOperations() []Operation {
	var ops []Operation
	for _, r := range c.Resources {
		ops = append(ops, cloneOperations(r.GraphQLOperations)...)
	}
	return ops
}

// Operation returns the REST operation with the given name. An empty name
// selects the first item GET operation, the conventional default.
func (c ResourceCollection) Operation(name string) (Operation, error) {
	for _, r := range c.Resources {
		for _, op := range r.Operations {
			if name == "" && op.Kind == KindItem && op.Method == http.MethodGet {
				return op.Clone(), nil
			}
			if name != "" && op.Name == name {
				return op.Clone(), nil
			}
		}
	}
	return Operation{}, &OperationNotFoundError{Class: c.Class, Operation: name}
}

// GraphQLOperation returns the GraphQL operation with the given name
func (c ResourceCollection) GraphQLOperation(name string) (Operation, error) {
	for _, r := range c.Resources {
		for _, op := range r.GraphQLOperations {
			if op.Name == name {
				return op.Clone(), nil
			}
		}
	}
	return Operation{}, &OperationNotFoundError{Class: c.Class, Operation: name}
}

// OperationFor returns the REST operation bound to a method and URI
// template
func (c ResourceCollection) OperationFor(method, uriTemplate string) (Operation, error) {
	method = strings.ToUpper(method)
	for _, r := range c.Resources {
		for _, op := range r.Operations {
			if op.Method == method && op.URITemplate == uriTemplate {
				return op.Clone(), nil
			}
		}
	}
	return Operation{}, &OperationNotFoundError{Class: c.Class, Operation: method + " " + uriTemplate}
}

// Identifiers returns the identifier set of the first view that has one
func (c ResourceCollection) Identifiers() []string {
	for _, r := range c.Resources {
		if len(r.Identifiers) > 0 {
			return slices.Clone(r.Identifiers)
		}
	}
	return nil
}
