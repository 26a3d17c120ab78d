package property

import (
	"context"
	"reflect"
	"strings"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

// Source is the declaration store the built-in resolvers read
type Source interface {
	ClassSet
	Type(class metadata.ResourceClass) (reflect.Type, bool)
	Property(class metadata.ResourceClass, name string) (metadata.APIProperty, bool)
	PropertyNames(class metadata.ResourceClass) []string
	ClassForType(t reflect.Type) (metadata.ResourceClass, bool)
}

func fieldOf(source Source, class metadata.ResourceClass, property string) (Field, bool) {
	t, ok := source.Type(class)
	if !ok {
		return Field{}, false
	}
	return FieldByName(t, property)
}

// AttributeResolver applies explicit declarations: registry property
// declarations first, then the api struct tag
//
//	Title string `api:"title,required,description=The book title"`
type AttributeResolver struct {
	source Source
}

// NewAttributeResolver creates an attribute resolver
func NewAttributeResolver(source Source) *AttributeResolver {
	return &AttributeResolver{source: source}
}

// Name implements Resolver
func (r *AttributeResolver) Name() string { return "attribute" }

// Resolve implements Resolver
func (r *AttributeResolver) Resolve(_ context.Context, class metadata.ResourceClass, property string, _ Options, prop metadata.APIProperty) (metadata.APIProperty, error) {
	if declared, ok := r.source.Property(class, property); ok {
		prop = prop.Fill(declared)
	}
	if f, ok := fieldOf(r.source, class, property); ok {
		prop = prop.Fill(tagProperty(f))
	}
	return prop, nil
}

func tagProperty(f Field) metadata.APIProperty {
	var p metadata.APIProperty
	for _, opt := range f.TagOptions() {
		opt = strings.TrimSpace(opt)
		switch {
		case opt == "identifier":
			p.Identifier = metadata.True
		case opt == "readonly":
			p.Writable = metadata.False
		case opt == "writeonly":
			p.Readable = metadata.False
		case opt == "required":
			p.Required = metadata.True
		case strings.HasPrefix(opt, "description="):
			p.Description = strings.TrimPrefix(opt, "description=")
		}
	}
	return p
}

// AttributeNameResolver appends declared properties that have no struct
// field
type AttributeNameResolver struct {
	source Source
}

// NewAttributeNameResolver creates an attribute name resolver
func NewAttributeNameResolver(source Source) *AttributeNameResolver {
	return &AttributeNameResolver{source: source}
}

// Name implements NameResolver
func (r *AttributeNameResolver) Name() string { return "attribute" }

// Resolve implements NameResolver
func (r *AttributeNameResolver) Resolve(_ context.Context, class metadata.ResourceClass, _ Options, names []string) ([]string, error) {
	return append(names, r.source.PropertyNames(class)...), nil
}
