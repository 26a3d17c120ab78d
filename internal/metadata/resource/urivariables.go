package resource

import (
	"context"
	"slices"

	"github.com/conduit-lang/apimeta/internal/inflect"
	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/metadata/property"
)

// URIVariablesResolver binds the placeholders of operations declaring no
// URI variables. "{id}" and placeholders named after an identifier bind to
// the class's own identifiers; placeholders naming a relation property
// ("{author}", "{authorId}") bind to the related class.
type URIVariablesResolver struct {
	set   *IdentifierSet
	names property.NameFactory
	props property.Factory
}

// NewURIVariablesResolver creates the resolver
func NewURIVariablesResolver(set *IdentifierSet, names property.NameFactory, props property.Factory) *URIVariablesResolver {
	return &URIVariablesResolver{set: set, names: names, props: props}
}

// Name implements Resolver
func (r *URIVariablesResolver) Name() string { return "uri_variables" }

// Resolve implements Resolver
func (r *URIVariablesResolver) Resolve(ctx context.Context, class metadata.ResourceClass, c metadata.ResourceCollection) (metadata.ResourceCollection, error) {
	return mapViews(c, func(res metadata.APIResource) (metadata.APIResource, error) {
		for i, op := range res.Operations {
			if len(op.URIVariables) > 0 {
				continue
			}
			params := placeholders(op.URITemplate)
			if len(params) == 0 {
				continue
			}

			vars := make([]metadata.URIVariable, 0, len(params))
			for _, param := range params {
				v, err := r.bind(ctx, class, res.Identifiers, param)
				if err != nil {
					return res, err
				}
				vars = append(vars, v)
			}
			res.Operations[i] = op.WithURIVariables(vars...)
		}
		return res, nil
	})
}

func (r *URIVariablesResolver) bind(ctx context.Context, class metadata.ResourceClass, ids []string, param string) (metadata.URIVariable, error) {
	if param == "id" {
		if len(ids) == 0 {
			ids = []string{"id"}
		}
		return metadata.URIVariable{
			Parameter:   param,
			FromClass:   class,
			Identifiers: slices.Clone(ids),
			Composite:   len(ids) > 1,
		}, nil
	}

	if slices.Contains(ids, param) {
		return metadata.URIVariable{Parameter: param, FromClass: class, Identifiers: []string{param}}, nil
	}

	relation, related, err := r.relation(ctx, class, param)
	if err != nil {
		return metadata.URIVariable{}, err
	}
	if related == "" {
		return metadata.URIVariable{Parameter: param, FromClass: class, Identifiers: []string{param}}, nil
	}

	relatedIDs, err := r.set.Of(ctx, related)
	if err != nil {
		return metadata.URIVariable{}, err
	}
	if len(relatedIDs) == 0 {
		relatedIDs = []string{"id"}
	}
	return metadata.URIVariable{
		Parameter:   param,
		FromClass:   related,
		Identifiers: relatedIDs,
		Composite:   len(relatedIDs) > 1,
		ToProperty:  relation,
	}, nil
}

// relation finds the property of class a placeholder refers to and the
// resource class it points at
func (r *URIVariablesResolver) relation(ctx context.Context, class metadata.ResourceClass, param string) (string, metadata.ResourceClass, error) {
	names, err := r.names.Names(ctx, class, property.Options{})
	if err != nil {
		return "", "", err
	}

	for _, name := range names {
		if param != name && param != name+"Id" && param != inflect.ToSnakeCase(name)+"_id" {
			continue
		}
		prop, err := r.props.Create(ctx, class, name, property.Options{})
		if err != nil {
			return "", "", err
		}
		for _, t := range prop.Types {
			if leaf := t.Leaf(); leaf.IsResource() {
				return name, leaf.Class, nil
			}
		}
	}
	return "", "", nil
}
