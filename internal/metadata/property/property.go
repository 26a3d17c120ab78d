// Package property resolves the metadata of resource properties through an
// ordered chain of resolvers. Every resolver fills the gaps earlier
// resolvers left and never overwrites a decided value; defaults are applied
// once, by Finalize, after the whole chain ran.
package property

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

// Options select the serialization view a property is resolved for. Every
// field is part of the cache key.
type Options struct {
	NormalizationGroups   []string          `json:"normalization_groups,omitempty"`
	DenormalizationGroups []string          `json:"denormalization_groups,omitempty"`
	GraphQL               bool              `json:"graphql,omitempty"`
	Extra                 map[string]string `json:"extra,omitempty"`
}

// HasGroups reports whether any serialization group was requested
func (o Options) HasGroups() bool {
	return len(o.NormalizationGroups) > 0 || len(o.DenormalizationGroups) > 0
}

// Factory creates property metadata
type Factory interface {
	Create(ctx context.Context, class metadata.ResourceClass, property string, opts Options) (metadata.APIProperty, error)
}

// NameFactory lists the property names of a class as an ordered set
type NameFactory interface {
	Names(ctx context.Context, class metadata.ResourceClass, opts Options) ([]string, error)
}

// Resolver contributes to a property. It must only fill fields prop leaves
// undecided.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, class metadata.ResourceClass, property string, opts Options, prop metadata.APIProperty) (metadata.APIProperty, error)
}

// Finalize applies the defaults of every flag still Unset: a property is
// not an identifier unless some resolver said so, and is readable, writable
// and optional.
func Finalize(prop metadata.APIProperty) metadata.APIProperty {
	prop = prop.Clone()
	prop.Identifier = prop.Identifier.Or(metadata.False)
	prop.Readable = prop.Readable.Or(metadata.True)
	prop.Writable = prop.Writable.Or(metadata.True)
	prop.Required = prop.Required.Or(metadata.False)
	return prop
}

// Chain is the property Factory built from ordered resolvers
type Chain struct {
	names     NameFactory
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

// NewChain creates a chain. names is used for existence checks; it may be
// nil, in which case every property name is accepted.
func NewChain(names NameFactory, resolvers []Resolver, opts ...ChainOption) *Chain {
	c := &Chain{
		names:     names,
		resolvers: slices.Clone(resolvers),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create resolves one property
func (c *Chain) Create(ctx context.Context, class metadata.ResourceClass, property string, opts Options) (metadata.APIProperty, error) {
	if c.names != nil {
		// Existence never depends on groups
		names, err := c.names.Names(ctx, class, Options{})
		if err != nil {
			return metadata.APIProperty{}, err
		}
		if !slices.Contains(names, property) {
			return metadata.APIProperty{}, &metadata.PropertyNotFoundError{Class: class, Property: property}
		}
	}

	prop := metadata.NewProperty(property)
	for _, r := range c.resolvers {
		next, err := r.Resolve(ctx, class, property, opts, prop)
		if err != nil {
			return metadata.APIProperty{}, fmt.Errorf("property resolver %s: %w", r.Name(), err)
		}
		prop = next
	}

	c.logger.Debug("resolved property",
		zap.Stringer("class", class),
		zap.String("property", property),
		zap.Stringer("identifier", prop.Identifier))

	return Finalize(prop), nil
}

// Resolvers returns the resolver order
func (c *Chain) Resolvers() []Resolver {
	return slices.Clone(c.resolvers)
}

// InsertBefore returns a chain with r placed before the resolver called name
func (c *Chain) InsertBefore(name string, r Resolver) (*Chain, error) {
	resolvers, err := insert(c.resolvers, name, r, 0)
	if err != nil {
		return nil, err
	}
	return c.with(resolvers), nil
}

// InsertAfter returns a chain with r placed after the resolver called name
func (c *Chain) InsertAfter(name string, r Resolver) (*Chain, error) {
	resolvers, err := insert(c.resolvers, name, r, 1)
	if err != nil {
		return nil, err
	}
	return c.with(resolvers), nil
}

// Append returns a chain with r placed last
func (c *Chain) Append(r Resolver) *Chain {
	return c.with(append(slices.Clone(c.resolvers), r))
}

func (c *Chain) with(resolvers []Resolver) *Chain {
	return &Chain{names: c.names, resolvers: resolvers, logger: c.logger}
}

type named interface {
	Name() string
}

// insert places r at the position of the element called name, shifted by
// offset
func insert[T named](list []T, name string, r T, offset int) ([]T, error) {
	for i, existing := range list {
		if existing.Name() == name {
			return slices.Insert(slices.Clone(list), i+offset, r), nil
		}
	}
	return nil, fmt.Errorf("no resolver named %q", name)
}
