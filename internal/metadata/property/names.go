package property

import (
	"context"
	"fmt"
	"slices"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

// NameResolver contributes property names. It may append names it knows
// about or filter the list; it never reorders it.
type NameResolver interface {
	Name() string
	Resolve(ctx context.Context, class metadata.ResourceClass, opts Options, names []string) ([]string, error)
}

// ClassSet reports which classes exist
type ClassSet interface {
	Has(class metadata.ResourceClass) bool
}

// NameChain is the NameFactory built from ordered name resolvers
type NameChain struct {
	classes   ClassSet
	resolvers []NameResolver
}

// NewNameChain creates a name chain. Classes unknown to classes are
// reported as ResourceNotFoundError.
func NewNameChain(classes ClassSet, resolvers ...NameResolver) *NameChain {
	return &NameChain{classes: classes, resolvers: slices.Clone(resolvers)}
}

// Names returns the ordered, duplicate-free property names of class
func (c *NameChain) Names(ctx context.Context, class metadata.ResourceClass, opts Options) ([]string, error) {
	if c.classes != nil && !c.classes.Has(class) {
		return nil, &metadata.ResourceNotFoundError{Class: class}
	}

	var names []string
	for _, r := range c.resolvers {
		next, err := r.Resolve(ctx, class, opts, slices.Clone(names))
		if err != nil {
			return nil, fmt.Errorf("name resolver %s: %w", r.Name(), err)
		}
		names = next
	}
	return dedupe(names), nil
}

// Resolvers returns the resolver order
func (c *NameChain) Resolvers() []NameResolver {
	return slices.Clone(c.resolvers)
}

// InsertBefore returns a chain with r placed before the resolver called name
func (c *NameChain) InsertBefore(name string, r NameResolver) (*NameChain, error) {
	resolvers, err := insert(c.resolvers, name, r, 0)
	if err != nil {
		return nil, err
	}
	return &NameChain{classes: c.classes, resolvers: resolvers}, nil
}

// InsertAfter returns a chain with r placed after the resolver called name
func (c *NameChain) InsertAfter(name string, r NameResolver) (*NameChain, error) {
	resolvers, err := insert(c.resolvers, name, r, 1)
	if err != nil {
		return nil, err
	}
	return &NameChain{classes: c.classes, resolvers: resolvers}, nil
}

// Append returns a chain with r placed last
func (c *NameChain) Append(r NameResolver) *NameChain {
	return &NameChain{classes: c.classes, resolvers: append(slices.Clone(c.resolvers), r)}
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
