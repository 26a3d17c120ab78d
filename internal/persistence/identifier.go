package persistence

import (
	"context"
	"fmt"

	"github.com/conduit-lang/apimeta/internal/inflect"
	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/metadata/property"
)

// IdentifierResolver marks the identifier fields a backend reports. It
// only ever turns an undecided identifier flag on, and makes
// backend-generated identifiers read-only when nothing decided
// writability.
type IdentifierResolver struct {
	introspector Introspector
}

// NewIdentifierResolver creates the property resolver of a backend
func NewIdentifierResolver(introspector Introspector) *IdentifierResolver {
	return &IdentifierResolver{introspector: introspector}
}

// Name implements property.Resolver
func (r *IdentifierResolver) Name() string {
	return r.introspector.Name()
}

// Resolve implements property.Resolver
func (r *IdentifierResolver) Resolve(ctx context.Context, class metadata.ResourceClass, name string, _ property.Options, prop metadata.APIProperty) (metadata.APIProperty, error) {
	if prop.Identifier.IsSet() {
		return prop, nil
	}

	h, ok, err := r.introspector.ManagerFor(ctx, class)
	if err != nil {
		return metadata.APIProperty{}, fmt.Errorf("%s introspection of %s: %w", r.Name(), class, err)
	}
	if !ok {
		return prop, nil
	}

	fields, err := r.introspector.IdentifierFields(ctx, h)
	if err != nil {
		return metadata.APIProperty{}, fmt.Errorf("%s identifier fields of %s: %w", r.Name(), class, err)
	}

	for _, field := range fields {
		if !MatchesField(name, field) {
			continue
		}

		prop = prop.WithIdentifier(metadata.True)
		if !prop.Writable.IsSet() {
			auto, err := r.introspector.IsIdentifierAutoGenerated(ctx, h, field)
			if err != nil {
				return metadata.APIProperty{}, fmt.Errorf("%s identifier generation of %s.%s: %w", r.Name(), class, field, err)
			}
			prop = prop.WithWritable(metadata.Of(!auto))
		}
		return prop, nil
	}
	return prop, nil
}

// MatchesField reports whether a storage field stores a property: either
// the names are equal or the field is the snake_case form of the property
func MatchesField(property, field string) bool {
	return property == field || inflect.ToSnakeCase(property) == field
}
