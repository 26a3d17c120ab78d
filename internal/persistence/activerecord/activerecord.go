// Package activerecord binds resources to ActiveRecord-style models whose
// fields carry annotations such as @primary and @auto.
package activerecord

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/conduit-lang/apimeta/internal/inflect"
	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/persistence"
)

// BackendName is the persistence backend name of this package
const BackendName = "activerecord"

// Field annotations understood by the introspector
const (
	AnnotationPrimary = "primary"
	AnnotationAuto    = "auto"
)

// Field is one model field
type Field struct {
	Name        string
	Annotations []string
}

// HasAnnotation reports whether the field carries annotation
func (f Field) HasAnnotation(annotation string) bool {
	return slices.Contains(f.Annotations, annotation)
}

// Model describes the storage of one class
type Model struct {
	Name   string
	Table  string
	Fields []Field
}

// PrimaryKey returns the @primary fields in declaration order
func (m Model) PrimaryKey() []Field {
	var keys []Field
	for _, f := range m.Fields {
		if f.HasAnnotation(AnnotationPrimary) {
			keys = append(keys, f)
		}
	}
	return keys
}

// Field returns the field called name
func (m Model) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Introspector knows the models of classes
type Introspector struct {
	mu     sync.RWMutex
	models map[metadata.ResourceClass]Model
	decls  persistence.Declarations
}

// NewIntrospector creates an introspector. Declarations may be nil.
func NewIntrospector(decls persistence.Declarations) *Introspector {
	return &Introspector{
		models: make(map[metadata.ResourceClass]Model),
		decls:  decls,
	}
}

// Register binds class to model. A model needs at least one @primary
// field.
func (i *Introspector) Register(class metadata.ResourceClass, m Model) error {
	if len(m.PrimaryKey()) == 0 {
		return fmt.Errorf("model of %s has no primary key", class)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.models[class] = m
	return nil
}

// Model returns the model of class. Declared bindings are built from the
// "primary" (default "id") and "auto" options.
func (i *Introspector) Model(class metadata.ResourceClass) (Model, bool) {
	i.mu.RLock()
	m, ok := i.models[class]
	i.mu.RUnlock()
	if ok {
		return m, true
	}

	opts, ok := persistence.Declared(i.decls, class, BackendName)
	if !ok {
		return Model{}, false
	}

	primary := persistence.OptionStrings(opts.Options, "primary")
	if len(primary) == 0 {
		primary = []string{"id"}
	}
	auto := persistence.OptionStrings(opts.Options, "auto")

	m = Model{Name: opts.Target, Table: persistence.OptionString(opts.Options, "table", "")}
	for _, name := range primary {
		f := Field{Name: name, Annotations: []string{AnnotationPrimary}}
		if slices.Contains(auto, name) {
			f.Annotations = append(f.Annotations, AnnotationAuto)
		}
		m.Fields = append(m.Fields, f)
	}
	return m, true
}

// Name implements persistence.Introspector
func (i *Introspector) Name() string {
	return BackendName
}

// ManagerFor implements persistence.Introspector
func (i *Introspector) ManagerFor(_ context.Context, class metadata.ResourceClass) (persistence.Handle, bool, error) {
	m, ok := i.Model(class)
	if !ok {
		return persistence.Handle{}, false, nil
	}

	name := m.Name
	if name == "" {
		name = class.LocalName()
	}
	table := m.Table
	if table == "" {
		table = inflect.ToSnakeCase(inflect.Pluralize(name))
	}

	return persistence.Handle{
		Backend: BackendName,
		Class:   class,
		Target:  name,
		Options: map[string]any{"table": table},
	}, true, nil
}

// IdentifierFields implements persistence.Introspector
func (i *Introspector) IdentifierFields(_ context.Context, h persistence.Handle) ([]string, error) {
	m, ok := i.Model(h.Class)
	if !ok {
		return nil, nil
	}

	var names []string
	for _, f := range m.PrimaryKey() {
		names = append(names, f.Name)
	}
	return names, nil
}

// IsIdentifierAutoGenerated implements persistence.Introspector
func (i *Introspector) IsIdentifierAutoGenerated(_ context.Context, h persistence.Handle, field string) (bool, error) {
	m, ok := i.Model(h.Class)
	if !ok {
		return false, nil
	}
	f, ok := m.Field(field)
	return ok && f.HasAnnotation(AnnotationAuto), nil
}
