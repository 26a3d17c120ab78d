// Package operation finds operations by name or URI template, routes
// requests to them and converts their URI variables.
package operation

import (
	"context"
	"errors"

	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/metadata/resource"
)

// Names lists the resource universe
type Names interface {
	Names(ctx context.Context) ([]metadata.ResourceClass, error)
}

// Options select the lookup context
type Options struct {
	// GraphQL looks up GraphQL operations instead of REST ones
	GraphQL bool
}

func (o Options) context() string {
	if o.GraphQL {
		return "graphql"
	}
	return "rest"
}

// Finder looks operations up across the resource universe
type Finder struct {
	names     Names
	resources resource.Factory
}

// NewFinder creates a finder. resources should be cached.
func NewFinder(names Names, resources resource.Factory) *Finder {
	return &Finder{names: names, resources: resources}
}

// Find returns the first operation named or routed as nameOrTemplate. An
// operation matching only in the other context (GraphQL for a REST lookup
// and the reverse) is reported as excluded.
func (f *Finder) Find(ctx context.Context, nameOrTemplate string, opts Options) (metadata.Operation, error) {
	classes, err := f.names.Names(ctx)
	if err != nil {
		return metadata.Operation{}, err
	}

	var excluded error
	for _, class := range classes {
		op, err := f.FindFor(ctx, class, nameOrTemplate, opts)
		switch {
		case err == nil:
			return op, nil
		case errors.Is(err, metadata.ErrOperationExcluded):
			if excluded == nil {
				excluded = err
			}
		case metadata.IsNotFound(err):
		default:
			return metadata.Operation{}, err
		}
	}

	if excluded != nil {
		return metadata.Operation{}, excluded
	}
	return metadata.Operation{}, &metadata.OperationNotFoundError{Operation: nameOrTemplate}
}

// FindFor looks an operation up in one class
func (f *Finder) FindFor(ctx context.Context, class metadata.ResourceClass, nameOrTemplate string, opts Options) (metadata.Operation, error) {
	c, err := f.resources.Create(ctx, class)
	if err != nil {
		return metadata.Operation{}, err
	}

	rest := matching(c.Operations(), nameOrTemplate, true)
	graphql := matching(c.GraphQLOperations(), nameOrTemplate, false)

	wanted, other := rest, graphql
	if opts.GraphQL {
		wanted, other = graphql, rest
	}
	if len(wanted) > 0 {
		return wanted[0], nil
	}
	if len(other) > 0 {
		return metadata.Operation{}, &metadata.OperationExcludedError{
			Class:     class,
			Operation: other[0].Name,
			Context:   opts.context(),
		}
	}
	return metadata.Operation{}, &metadata.OperationNotFoundError{Class: class, Operation: nameOrTemplate}
}

func matching(ops []metadata.Operation, nameOrTemplate string, byTemplate bool) []metadata.Operation {
	var out []metadata.Operation
	for _, op := range ops {
		if op.Name == nameOrTemplate || (byTemplate && op.URITemplate == nameOrTemplate) {
			out = append(out, op)
		}
	}
	return out
}
