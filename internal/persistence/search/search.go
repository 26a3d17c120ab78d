// Package search binds resources to search indexes. Indexes are read-only:
// resources they back expose read operations only.
package search

import (
	"context"
	"sync"

	"github.com/conduit-lang/apimeta/internal/inflect"
	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/persistence"
)

// BackendName is the persistence backend name of this package
const BackendName = "search"

// Index describes the search index of one class
type Index struct {
	Name string
	// IDField is the document id field, "id" by default
	IDField string
}

// Introspector knows the index of classes
type Introspector struct {
	mu      sync.RWMutex
	indexes map[metadata.ResourceClass]Index
	decls   persistence.Declarations
}

// NewIntrospector creates an introspector. Declarations may be nil.
func NewIntrospector(decls persistence.Declarations) *Introspector {
	return &Introspector{
		indexes: make(map[metadata.ResourceClass]Index),
		decls:   decls,
	}
}

// Map binds class to an index
func (i *Introspector) Map(class metadata.ResourceClass, idx Index) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.indexes[class] = idx
}

// Name implements persistence.Introspector
func (i *Introspector) Name() string {
	return BackendName
}

// ReadOnly implements persistence.ReadOnlyBackend
func (i *Introspector) ReadOnly() bool {
	return true
}

// ManagerFor implements persistence.Introspector
func (i *Introspector) ManagerFor(_ context.Context, class metadata.ResourceClass) (persistence.Handle, bool, error) {
	i.mu.RLock()
	idx, ok := i.indexes[class]
	i.mu.RUnlock()

	if !ok {
		opts, declared := persistence.Declared(i.decls, class, BackendName)
		if !declared {
			return persistence.Handle{}, false, nil
		}
		idx = Index{Name: opts.Target, IDField: persistence.OptionString(opts.Options, "id", "")}
	}

	if idx.Name == "" {
		idx.Name = inflect.ToSnakeCase(inflect.Pluralize(class.LocalName()))
	}
	if idx.IDField == "" {
		idx.IDField = "id"
	}

	return persistence.Handle{
		Backend: BackendName,
		Class:   class,
		Target:  idx.Name,
		Options: map[string]any{"id": idx.IDField},
	}, true, nil
}

// IdentifierFields implements persistence.Introspector
func (i *Introspector) IdentifierFields(_ context.Context, h persistence.Handle) ([]string, error) {
	return []string{persistence.OptionString(h.Options, "id", "id")}, nil
}

// IsIdentifierAutoGenerated implements persistence.Introspector. Indexed
// documents carry the identifier of their source.
func (i *Introspector) IsIdentifierAutoGenerated(context.Context, persistence.Handle, string) (bool, error) {
	return false, nil
}
