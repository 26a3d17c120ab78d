package operation

import (
	"context"

	"github.com/conduit-lang/apimeta/internal/identifier"
	"github.com/conduit-lang/apimeta/internal/metadata"
)

// Request is a routed request
type Request struct {
	Operation    metadata.Operation
	URIVariables map[string]any
	Raw          map[string]string
}

// Resolver turns a method and path into an operation with typed URI
// variables
type Resolver struct {
	router    Router
	finder    *Finder
	converter *identifier.URIVariablesConverter
}

// NewResolver creates a resolver
func NewResolver(router Router, finder *Finder, converter *identifier.URIVariablesConverter) *Resolver {
	return &Resolver{router: router, finder: finder, converter: converter}
}

// Resolve routes one request
func (r *Resolver) Resolve(ctx context.Context, method, path string) (Request, error) {
	match, err := r.router.Match(method, path)
	if err != nil {
		return Request{}, err
	}

	op, err := r.finder.FindFor(ctx, match.Class, match.Operation, Options{})
	if err != nil {
		return Request{}, err
	}

	vars, err := r.converter.Convert(ctx, op, match.Variables)
	if err != nil {
		return Request{}, err
	}
	return Request{Operation: op, URIVariables: vars, Raw: match.Variables}, nil
}
