// Package resource resolves the resource and operation metadata of a class
// through an ordered chain of resolvers, from the declared views of the
// class to fully named, routed and normalized operations.
package resource

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/registry"
)

// Factory creates the resource metadata of a class
type Factory interface {
	Create(ctx context.Context, class metadata.ResourceClass) (metadata.ResourceCollection, error)
}

// Resolver transforms the collection built so far
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, class metadata.ResourceClass, c metadata.ResourceCollection) (metadata.ResourceCollection, error)
}

// Declarations is the registry view the resolvers read
type Declarations interface {
	Lookup(class metadata.ResourceClass) (registry.Declaration, bool)
	Has(class metadata.ResourceClass) bool
}

// Chain is the resource Factory built from ordered resolvers
type Chain struct {
	resolvers []Resolver
	logger    *zap.Logger
}

// ChainOption configures a Chain
type ChainOption func(*Chain)

// WithLogger sets the chain logger
func WithLogger(logger *zap.Logger) ChainOption {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChain creates a chain
func NewChain(resolvers []Resolver, opts ...ChainOption) *Chain {
	c := &Chain{resolvers: slices.Clone(resolvers), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create runs every resolver in order on an empty collection of class
func (c *Chain) Create(ctx context.Context, class metadata.ResourceClass) (metadata.ResourceCollection, error) {
	collection := metadata.NewResourceCollection(class)
	for _, r := range c.resolvers {
		next, err := r.Resolve(ctx, class, collection.Clone())
		if err != nil {
			return metadata.ResourceCollection{}, fmt.Errorf("resource resolver %s: %w", r.Name(), err)
		}
		collection = next
	}

	c.logger.Debug("resolved resource",
		zap.Stringer("class", class),
		zap.Int("views", collection.Len()),
		zap.Int("operations", len(collection.Operations())))

	return collection, nil
}

// Resolvers returns the resolver order
func (c *Chain) Resolvers() []Resolver {
	return slices.Clone(c.resolvers)
}

// InsertBefore returns a chain with r placed before the resolver called name
func (c *Chain) InsertBefore(name string, r Resolver) (*Chain, error) {
	return c.insert(name, r, 0)
}

// InsertAfter returns a chain with r placed after the resolver called name
func (c *Chain) InsertAfter(name string, r Resolver) (*Chain, error) {
	return c.insert(name, r, 1)
}

// Append returns a chain with r placed last
func (c *Chain) Append(r Resolver) *Chain {
	return &Chain{resolvers: append(slices.Clone(c.resolvers), r), logger: c.logger}
}

func (c *Chain) insert(name string, r Resolver, offset int) (*Chain, error) {
	for i, existing := range c.resolvers {
		if existing.Name() == name {
			return &Chain{resolvers: slices.Insert(slices.Clone(c.resolvers), i+offset, r), logger: c.logger}, nil
		}
	}
	return nil, fmt.Errorf("no resolver named %q", name)
}

// mapViews applies fn to every view of c
func mapViews(c metadata.ResourceCollection, fn func(r metadata.APIResource) (metadata.APIResource, error)) (metadata.ResourceCollection, error) {
	return c.Map(func(_ int, r metadata.APIResource) (metadata.APIResource, error) {
		return fn(r)
	})
}

// NameCollection lists the resource universe
type NameCollection struct {
	source interface {
		Names() []metadata.ResourceClass
	}
}

// NewNameCollection creates a name collection over a registry
func NewNameCollection(reg *registry.Registry) *NameCollection {
	return &NameCollection{source: reg}
}

// Names returns every resource class in a stable order
func (n *NameCollection) Names(context.Context) ([]metadata.ResourceClass, error) {
	return n.source.Names(), nil
}
