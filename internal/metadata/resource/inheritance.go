package resource

import (
	"context"
	"net/http"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

// InheritanceResolver copies view-level values into operations that left
// them unset and decides the read and write flags. An operation reads
// when it is a GET, or an item operation with URI variables other than
// POST; it writes when its method is not GET.
type InheritanceResolver struct{}

// Name implements Resolver
func (InheritanceResolver) Name() string { return "inheritance" }

// Resolve implements Resolver
func (InheritanceResolver) Resolve(_ context.Context, class metadata.ResourceClass, c metadata.ResourceCollection) (metadata.ResourceCollection, error) {
	return mapViews(c, func(res metadata.APIResource) (metadata.APIResource, error) {
		for i, op := range res.Operations {
			res.Operations[i] = inherit(class, res, op)
		}
		for i, op := range res.GraphQLOperations {
			op = inherit(class, res, op)
			op.GraphQL = true
			res.GraphQLOperations[i] = op
		}
		return res, nil
	})
}

func inherit(class metadata.ResourceClass, res metadata.APIResource, op metadata.Operation) metadata.Operation {
	op = op.Clone()

	if op.Class == "" {
		op.Class = class
	}
	if op.ShortName == "" {
		op.ShortName = res.ShortName
	}
	if op.Normalization.IsZero() {
		op.Normalization = res.Normalization.Clone()
	}
	if op.Denormalization.IsZero() {
		op.Denormalization = res.Denormalization.Clone()
	}
	if op.Provider == "" {
		op.Provider = res.Provider
	}
	if op.Processor == "" {
		op.Processor = res.Processor
	}
	if op.Persistence.IsZero() {
		op.Persistence = res.Persistence.Clone()
	}
	if op.Description == "" {
		op.Description = res.Description
	}
	for k, v := range res.Extra {
		if _, ok := op.Extra[k]; !ok {
			if op.Extra == nil {
				op.Extra = make(map[string]any, len(res.Extra))
			}
			op.Extra[k] = v
		}
	}

	if !op.Read.IsSet() && (op.Method == http.MethodGet ||
		(op.Kind == metadata.KindItem && len(op.URIVariables) > 0 && op.Method != http.MethodPost)) {
		op.Read = metadata.True
	}
	if !op.Write.IsSet() && op.Method != http.MethodGet {
		op.Write = metadata.True
	}
	op.Read = op.Read.Or(metadata.False)
	op.Write = op.Write.Or(metadata.False)
	return op
}
