package identifier

import (
	"context"
	"fmt"
	"reflect"

	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/metadata/resource"
)

// Classes maps items to their resource class
type Classes interface {
	ClassOf(item any) (metadata.ResourceClass, bool)
}

// Extractor reads the identifier of items in the order of their resource's
// identifier set
type Extractor struct {
	classes   Classes
	resources resource.Factory
	accessor  PropertyAccessor
}

// ExtractorOption configures an Extractor
type ExtractorOption func(*Extractor)

// WithAccessor replaces the reflection accessor
func WithAccessor(accessor PropertyAccessor) ExtractorOption {
	return func(e *Extractor) {
		if accessor != nil {
			e.accessor = accessor
		}
	}
}

// NewExtractor creates an extractor. resources should be cached.
func NewExtractor(classes Classes, resources resource.Factory, opts ...ExtractorOption) *Extractor {
	e := &Extractor{classes: classes, resources: resources, accessor: ReflectAccessor{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IdentifiersFromItem returns the identifier of item
func (e *Extractor) IdentifiersFromItem(ctx context.Context, item any) (metadata.Identifier, error) {
	class, err := e.classOf(item)
	if err != nil {
		return nil, err
	}

	c, err := e.resources.Create(ctx, class)
	if err != nil {
		return nil, err
	}
	ids := c.Identifiers()
	if len(ids) == 0 {
		return nil, fmt.Errorf("resource %s has no identifier", class)
	}
	return e.read(item, ids)
}

// IdentifiersFromItemFor returns the identifier of item as the URI
// variables of op bound to its own class address it. Operations without
// such variables fall back to the resource identifier set.
func (e *Extractor) IdentifiersFromItemFor(ctx context.Context, item any, op metadata.Operation) (metadata.Identifier, error) {
	var ids []string
	for _, v := range op.URIVariables {
		if v.FromClass == op.Class && v.ToProperty == "" {
			ids = append(ids, v.Identifiers...)
		}
	}
	if len(ids) == 0 {
		return e.IdentifiersFromItem(ctx, item)
	}
	return e.read(item, ids)
}

func (e *Extractor) read(item any, ids []string) (metadata.Identifier, error) {
	out := make(metadata.Identifier, 0, len(ids))
	for _, id := range ids {
		v, err := e.accessor.Get(item, id)
		if err != nil {
			return nil, fmt.Errorf("failed to read identifier %q: %w", id, err)
		}
		out = append(out, metadata.IdentifierValue{Property: id, Value: v})
	}
	return out, nil
}

func (e *Extractor) classOf(item any) (metadata.ResourceClass, error) {
	if item == nil {
		return "", fmt.Errorf("cannot identify a nil item")
	}
	if class, ok := e.classes.ClassOf(item); ok {
		return class, nil
	}
	return "", &metadata.ResourceNotFoundError{Class: metadata.ClassOf(reflect.TypeOf(item))}
}

// Format renders an identifier for use in a URI: the bare value, or
// "a=1;b=2" for composite identifiers
func Format(id metadata.Identifier) string {
	return id.String()
}
