package resource

import (
	"context"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

// AttributeResolver seeds the collection with the declared views of a
// class
type AttributeResolver struct {
	decls Declarations
}

// NewAttributeResolver creates the resolver
func NewAttributeResolver(decls Declarations) *AttributeResolver {
	return &AttributeResolver{decls: decls}
}

// Name implements Resolver
func (r *AttributeResolver) Name() string { return "attribute" }

// Resolve implements Resolver
func (r *AttributeResolver) Resolve(_ context.Context, class metadata.ResourceClass, c metadata.ResourceCollection) (metadata.ResourceCollection, error) {
	decl, ok := r.decls.Lookup(class)
	if !ok {
		return metadata.ResourceCollection{}, &metadata.ResourceNotFoundError{Class: class}
	}

	resources := append(c.Resources, decl.Resources...)
	for i := range resources {
		if resources[i].Class == "" {
			resources[i].Class = class
		}
	}
	return metadata.NewResourceCollection(class, resources...), nil
}

// ShortNameResolver names views after the local name of their class
type ShortNameResolver struct{}

// Name implements Resolver
func (ShortNameResolver) Name() string { return "short_name" }

// Resolve implements Resolver
func (ShortNameResolver) Resolve(_ context.Context, class metadata.ResourceClass, c metadata.ResourceCollection) (metadata.ResourceCollection, error) {
	return mapViews(c, func(r metadata.APIResource) (metadata.APIResource, error) {
		if r.ShortName == "" {
			r.ShortName = class.LocalName()
		}
		return r, nil
	})
}

// VersionResolver stamps the version of a view into its operations
type VersionResolver struct{}

// Name implements Resolver
func (VersionResolver) Name() string { return "version" }

// Resolve implements Resolver
func (VersionResolver) Resolve(_ context.Context, _ metadata.ResourceClass, c metadata.ResourceCollection) (metadata.ResourceCollection, error) {
	return mapViews(c, func(r metadata.APIResource) (metadata.APIResource, error) {
		if r.Version == "" {
			return r, nil
		}
		stamp := func(ops []metadata.Operation) {
			for i, op := range ops {
				if _, ok := op.Extra["version"]; !ok {
					ops[i] = op.WithExtra("version", r.Version)
				}
			}
		}
		stamp(r.Operations)
		stamp(r.GraphQLOperations)
		return r, nil
	})
}
