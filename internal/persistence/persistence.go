// Package persistence defines how the metadata pipeline talks to storage
// backends: an Introspector tells whether a backend manages a class and
// which fields identify its items. Backends live in sub-packages.
package persistence

import (
	"context"

	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/registry"
)

// Handle is a backend's reference to the storage of one class
type Handle struct {
	Backend string
	Class   metadata.ResourceClass
	// Target is the table, collection, index or model name
	Target  string
	Options map[string]any
}

// Persistence returns the handle as resource persistence options
func (h Handle) Persistence() metadata.PersistenceOptions {
	return metadata.PersistenceOptions{Backend: h.Backend, Target: h.Target, Options: h.Options}.Clone()
}

// Introspector is implemented by every persistence backend
type Introspector interface {
	// Name is the backend name used in persistence options
	Name() string
	// ManagerFor returns the handle of class when the backend manages it
	ManagerFor(ctx context.Context, class metadata.ResourceClass) (Handle, bool, error)
	// IdentifierFields returns the identifying fields of a handle in key
	// order
	IdentifierFields(ctx context.Context, h Handle) ([]string, error)
	// IsIdentifierAutoGenerated reports whether the backend generates the
	// field's values
	IsIdentifierAutoGenerated(ctx context.Context, h Handle, field string) (bool, error)
}

// ReadOnlyBackend is implemented by backends that cannot write
type ReadOnlyBackend interface {
	ReadOnly() bool
}

// IsReadOnly reports whether i declares itself read-only
func IsReadOnly(i Introspector) bool {
	ro, ok := i.(ReadOnlyBackend)
	return ok && ro.ReadOnly()
}

// Declarations is the part of the registry backends read bindings from
type Declarations interface {
	Lookup(class metadata.ResourceClass) (registry.Declaration, bool)
}

// Declared returns the persistence options of the first resource view of
// class bound to backend
func Declared(decls Declarations, class metadata.ResourceClass, backend string) (metadata.PersistenceOptions, bool) {
	if decls == nil {
		return metadata.PersistenceOptions{}, false
	}
	decl, ok := decls.Lookup(class)
	if !ok {
		return metadata.PersistenceOptions{}, false
	}
	for _, res := range decl.Resources {
		if res.Persistence.Backend == backend {
			return res.Persistence.Clone(), true
		}
	}
	return metadata.PersistenceOptions{}, false
}

// FirstManager returns the first introspector of list managing class
func FirstManager(ctx context.Context, list []Introspector, class metadata.ResourceClass) (Introspector, Handle, bool, error) {
	for _, i := range list {
		h, ok, err := i.ManagerFor(ctx, class)
		if err != nil {
			return nil, Handle{}, false, err
		}
		if ok {
			return i, h, true, nil
		}
	}
	return nil, Handle{}, false, nil
}

// ByName returns the introspector called name
func ByName(list []Introspector, name string) (Introspector, bool) {
	for _, i := range list {
		if i.Name() == name {
			return i, true
		}
	}
	return nil, false
}

// OptionString reads a string option
func OptionString(opts map[string]any, key, fallback string) string {
	if v, ok := opts[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// OptionBool reads a boolean option
func OptionBool(opts map[string]any, key string, fallback bool) bool {
	if v, ok := opts[key].(bool); ok {
		return v
	}
	return fallback
}

// OptionStrings reads a list option given either as a list or a single
// string
func OptionStrings(opts map[string]any, key string) []string {
	switch v := opts[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
