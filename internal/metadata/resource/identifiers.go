package resource

import (
	"context"
	"slices"

	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/metadata/property"
)

// IdentifierSet computes the ordered identifier set of a class: the
// declared identifiers, else the properties resolved as identifiers in
// property order, else "id" when the class has such a property
type IdentifierSet struct {
	decls Declarations
	names property.NameFactory
	props property.Factory
}

// NewIdentifierSet creates the computation over the property factories
func NewIdentifierSet(decls Declarations, names property.NameFactory, props property.Factory) *IdentifierSet {
	return &IdentifierSet{decls: decls, names: names, props: props}
}

// Of returns the identifier set of class
func (s *IdentifierSet) Of(ctx context.Context, class metadata.ResourceClass) ([]string, error) {
	if decl, ok := s.decls.Lookup(class); ok {
		for _, res := range decl.Resources {
			if len(res.Identifiers) > 0 {
				return s.validate(ctx, class, res.Identifiers)
			}
		}
	}
	return s.discover(ctx, class)
}

func (s *IdentifierSet) validate(ctx context.Context, class metadata.ResourceClass, ids []string) ([]string, error) {
	names, err := s.names.Names(ctx, class, property.Options{})
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if !slices.Contains(names, id) {
			return nil, &metadata.PropertyNotFoundError{Class: class, Property: id}
		}
	}
	return slices.Clone(ids), nil
}

func (s *IdentifierSet) discover(ctx context.Context, class metadata.ResourceClass) ([]string, error) {
	names, err := s.names.Names(ctx, class, property.Options{})
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, name := range names {
		prop, err := s.props.Create(ctx, class, name, property.Options{})
		if err != nil {
			return nil, err
		}
		if prop.Identifier.Bool() {
			ids = append(ids, name)
		}
	}
	if len(ids) == 0 && slices.Contains(names, "id") {
		ids = []string{"id"}
	}
	return ids, nil
}

// IdentifiersResolver stores the identifier set on every view
type IdentifiersResolver struct {
	set *IdentifierSet
}

// NewIdentifiersResolver creates the resolver
func NewIdentifiersResolver(set *IdentifierSet) *IdentifiersResolver {
	return &IdentifiersResolver{set: set}
}

// Name implements Resolver
func (r *IdentifiersResolver) Name() string { return "identifiers" }

// Resolve implements Resolver. Views declaring their own identifiers keep
// them once validated.
func (r *IdentifiersResolver) Resolve(ctx context.Context, class metadata.ResourceClass, c metadata.ResourceCollection) (metadata.ResourceCollection, error) {
	var computed []string
	var done bool

	return mapViews(c, func(res metadata.APIResource) (metadata.APIResource, error) {
		if len(res.Identifiers) > 0 {
			ids, err := r.set.validate(ctx, class, res.Identifiers)
			if err != nil {
				return res, err
			}
			res.Identifiers = ids
			return res, nil
		}

		if !done {
			ids, err := r.set.discover(ctx, class)
			if err != nil {
				return res, err
			}
			computed, done = ids, true
		}
		res.Identifiers = slices.Clone(computed)
		return res, nil
	})
}
