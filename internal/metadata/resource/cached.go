package resource

import (
	"context"

	"github.com/conduit-lang/apimeta/internal/cache"
	"github.com/conduit-lang/apimeta/internal/metadata"
)

// CachedFactory memoizes a Factory on a cache cell keyed by class
type CachedFactory struct {
	inner Factory
	cell  *cache.Cell[metadata.ResourceCollection]
}

// NewCachedFactory wraps inner
func NewCachedFactory(inner Factory, opts ...cache.CellOption) *CachedFactory {
	return &CachedFactory{
		inner: inner,
		cell:  cache.NewCell[metadata.ResourceCollection]("resource", opts...),
	}
}

// Create implements Factory
func (f *CachedFactory) Create(ctx context.Context, class metadata.ResourceClass) (metadata.ResourceCollection, error) {
	c, err := f.cell.Get(ctx, string(class), func(ctx context.Context) (metadata.ResourceCollection, error) {
		return f.inner.Create(ctx, class)
	})
	if err != nil {
		return metadata.ResourceCollection{}, err
	}
	return c.Clone(), nil
}

// Purge drops every memoized collection
func (f *CachedFactory) Purge(ctx context.Context) error {
	return f.cell.Purge(ctx)
}
