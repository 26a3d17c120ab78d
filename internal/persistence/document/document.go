// Package document binds resources to document-store collections. A
// mapping names the collection, the identifier field and whether the store
// generates identifiers on insert.
package document

import (
	"context"
	"sync"

	"github.com/conduit-lang/apimeta/internal/inflect"
	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/persistence"
)

// BackendName is the persistence backend name of this package
const BackendName = "document"

const (
	optionID        = "id"
	optionGenerated = "generated"
)

// Mapping describes the collection of one class
type Mapping struct {
	Collection string
	// IDField defaults to "id"
	IDField string
	// Generated is set when the store creates identifiers (object ids)
	Generated bool
}

// Introspector knows the document mappings of classes
type Introspector struct {
	mu       sync.RWMutex
	mappings map[metadata.ResourceClass]Mapping
	decls    persistence.Declarations
}

// NewIntrospector creates an introspector. Declarations may be nil.
func NewIntrospector(decls persistence.Declarations) *Introspector {
	return &Introspector{
		mappings: make(map[metadata.ResourceClass]Mapping),
		decls:    decls,
	}
}

// Map binds class to a collection
func (i *Introspector) Map(class metadata.ResourceClass, m Mapping) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.mappings[class] = m
}

// Name implements persistence.Introspector
func (i *Introspector) Name() string {
	return BackendName
}

// ManagerFor implements persistence.Introspector. Declared bindings read
// the "id" and "generated" options; generated defaults to true.
func (i *Introspector) ManagerFor(_ context.Context, class metadata.ResourceClass) (persistence.Handle, bool, error) {
	i.mu.RLock()
	m, ok := i.mappings[class]
	i.mu.RUnlock()

	if !ok {
		opts, declared := persistence.Declared(i.decls, class, BackendName)
		if !declared {
			return persistence.Handle{}, false, nil
		}
		m = Mapping{
			Collection: opts.Target,
			IDField:    persistence.OptionString(opts.Options, optionID, ""),
			Generated:  persistence.OptionBool(opts.Options, optionGenerated, true),
		}
	}

	if m.Collection == "" {
		m.Collection = inflect.ToSnakeCase(inflect.Pluralize(class.LocalName()))
	}
	if m.IDField == "" {
		m.IDField = "id"
	}

	return persistence.Handle{
		Backend: BackendName,
		Class:   class,
		Target:  m.Collection,
		Options: map[string]any{optionID: m.IDField, optionGenerated: m.Generated},
	}, true, nil
}

// IdentifierFields implements persistence.Introspector
func (i *Introspector) IdentifierFields(_ context.Context, h persistence.Handle) ([]string, error) {
	return []string{persistence.OptionString(h.Options, optionID, "id")}, nil
}

// IsIdentifierAutoGenerated implements persistence.Introspector
func (i *Introspector) IsIdentifierAutoGenerated(_ context.Context, h persistence.Handle, field string) (bool, error) {
	if field != persistence.OptionString(h.Options, optionID, "id") {
		return false, nil
	}
	return persistence.OptionBool(h.Options, optionGenerated, true), nil
}
