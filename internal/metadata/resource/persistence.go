package resource

import (
	"context"
	"fmt"

	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/persistence"
)

// PersistenceResolver binds views to the backend managing their class and
// applies its capabilities: read-only backends lose every write operation.
// Views get "<backend>.provider" and "<backend>.processor" as default
// strategies.
type PersistenceResolver struct {
	backends []persistence.Introspector
}

// NewPersistenceResolver creates the resolver. Backends are asked in order.
func NewPersistenceResolver(backends ...persistence.Introspector) *PersistenceResolver {
	return &PersistenceResolver{backends: backends}
}

// Name implements Resolver
func (r *PersistenceResolver) Name() string { return "persistence" }

// Resolve implements Resolver
func (r *PersistenceResolver) Resolve(ctx context.Context, class metadata.ResourceClass, c metadata.ResourceCollection) (metadata.ResourceCollection, error) {
	return mapViews(c, func(res metadata.APIResource) (metadata.APIResource, error) {
		backend, err := r.bind(ctx, class, &res)
		if err != nil {
			return res, err
		}
		if res.Persistence.Backend == "" {
			return res, nil
		}

		if backend != nil && persistence.IsReadOnly(backend) {
			res.Operations = readOperations(res.Operations)
			res.GraphQLOperations = readOperations(res.GraphQLOperations)
		}

		if res.Provider == "" {
			res.Provider = res.Persistence.Backend + ".provider"
		}
		if res.Processor == "" {
			res.Processor = res.Persistence.Backend + ".processor"
		}
		return res, nil
	})
}

// bind fills the persistence options of res and returns the backend
// bound to it, when known
func (r *PersistenceResolver) bind(ctx context.Context, class metadata.ResourceClass, res *metadata.APIResource) (persistence.Introspector, error) {
	if res.Persistence.Backend == "" {
		backend, h, ok, err := persistence.FirstManager(ctx, r.backends, class)
		if err != nil {
			return nil, fmt.Errorf("persistence introspection of %s: %w", class, err)
		}
		if !ok {
			return nil, nil
		}
		res.Persistence = h.Persistence()
		return backend, nil
	}

	backend, ok := persistence.ByName(r.backends, res.Persistence.Backend)
	if !ok {
		return nil, nil
	}

	h, managed, err := backend.ManagerFor(ctx, class)
	if err != nil {
		return nil, fmt.Errorf("persistence introspection of %s: %w", class, err)
	}
	if managed {
		if res.Persistence.Target == "" {
			res.Persistence.Target = h.Target
		}
		for k, v := range h.Options {
			if _, set := res.Persistence.Options[k]; !set {
				if res.Persistence.Options == nil {
					res.Persistence.Options = make(map[string]any)
				}
				res.Persistence.Options[k] = v
			}
		}
	}
	return backend, nil
}

func readOperations(ops []metadata.Operation) []metadata.Operation {
	if ops == nil {
		return nil
	}
	kept := make([]metadata.Operation, 0, len(ops))
	for _, op := range ops {
		if op.IsSafe() || (op.GraphQL && op.Method == "") {
			kept = append(kept, op)
		}
	}
	return kept
}
