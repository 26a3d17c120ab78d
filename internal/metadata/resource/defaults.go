package resource

import (
	"context"
	"net/http"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

// DefaultOperationsResolver gives views without declared operations the
// conventional CRUD set, and GraphQL views without GraphQL operations the
// conventional queries and mutations
type DefaultOperationsResolver struct {
	// UpdateMethod is the method of the synthesized update, PATCH when empty
	UpdateMethod string
}

// Name implements Resolver
func (DefaultOperationsResolver) Name() string { return "defaults" }

// Resolve implements Resolver
func (d DefaultOperationsResolver) Resolve(_ context.Context, _ metadata.ResourceClass, c metadata.ResourceCollection) (metadata.ResourceCollection, error) {
	update := d.UpdateMethod
	if update == "" {
		update = http.MethodPatch
	}

	return mapViews(c, func(r metadata.APIResource) (metadata.APIResource, error) {
		if len(r.Operations) == 0 {
			r.Operations = []metadata.Operation{
				metadata.NewOperation(http.MethodGet, "").WithKind(metadata.KindItem),
				metadata.NewOperation(http.MethodGet, "").WithKind(metadata.KindCollection),
				metadata.NewOperation(http.MethodPost, "").WithKind(metadata.KindCollection),
				metadata.NewOperation(update, "").WithKind(metadata.KindItem),
				metadata.NewOperation(http.MethodDelete, "").WithKind(metadata.KindItem),
			}
		}

		if r.GraphQL && len(r.GraphQLOperations) == 0 {
			r.GraphQLOperations = []metadata.Operation{
				graphQLOperation(http.MethodGet, metadata.KindItem),
				graphQLOperation(http.MethodGet, metadata.KindCollection),
				graphQLOperation(http.MethodPost, metadata.KindCollection),
				graphQLOperation(update, metadata.KindItem),
				graphQLOperation(http.MethodDelete, metadata.KindItem),
			}
		}
		return r, nil
	})
}

func graphQLOperation(method string, kind metadata.OperationKind) metadata.Operation {
	op := metadata.NewOperation(method, "").WithKind(kind)
	op.GraphQL = true
	return op
}

// graphQLLabel is the conventional name of a GraphQL operation
func graphQLLabel(op metadata.Operation) string {
	switch op.Method {
	case "", http.MethodGet:
		if op.IsCollection() {
			return "collection_query"
		}
		return "item_query"
	case http.MethodPost:
		return "create"
	case http.MethodDelete:
		return "delete"
	}
	return "update"
}
