package property

import (
	"context"
	"slices"

	"github.com/conduit-lang/apimeta/internal/cache"
	"github.com/conduit-lang/apimeta/internal/metadata"
)

// CachedFactory memoizes a Factory on a cache cell keyed by class, property
// and options
type CachedFactory struct {
	inner Factory
	cell  *cache.Cell[metadata.APIProperty]
}

// NewCachedFactory wraps inner
func NewCachedFactory(inner Factory, opts ...cache.CellOption) *CachedFactory {
	return &CachedFactory{
		inner: inner,
		cell:  cache.NewCell[metadata.APIProperty]("property", opts...),
	}
}

// Create implements Factory
func (f *CachedFactory) Create(ctx context.Context, class metadata.ResourceClass, property string, opts Options) (metadata.APIProperty, error) {
	key := cache.Key("property", class, property, opts)
	prop, err := f.cell.Get(ctx, key, func(ctx context.Context) (metadata.APIProperty, error) {
		return f.inner.Create(ctx, class, property, opts)
	})
	if err != nil {
		return metadata.APIProperty{}, err
	}
	return prop.Clone(), nil
}

// Purge drops every memoized property
func (f *CachedFactory) Purge(ctx context.Context) error {
	return f.cell.Purge(ctx)
}

// CachedNameFactory memoizes a NameFactory on a cache cell keyed by class
// and options
type CachedNameFactory struct {
	inner NameFactory
	cell  *cache.Cell[[]string]
}

// NewCachedNameFactory wraps inner
func NewCachedNameFactory(inner NameFactory, opts ...cache.CellOption) *CachedNameFactory {
	return &CachedNameFactory{
		inner: inner,
		cell:  cache.NewCell[[]string]("property_names", opts...),
	}
}

// Names implements NameFactory
func (f *CachedNameFactory) Names(ctx context.Context, class metadata.ResourceClass, opts Options) ([]string, error) {
	key := cache.Key("property_names", class, opts)
	names, err := f.cell.Get(ctx, key, func(ctx context.Context) ([]string, error) {
		return f.inner.Names(ctx, class, opts)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(names), nil
}

// Purge drops every memoized name list
func (f *CachedNameFactory) Purge(ctx context.Context) error {
	return f.cell.Purge(ctx)
}
