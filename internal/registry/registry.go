// Package registry holds the static resource declarations the metadata
// chains start from: Go types registered as resources, resources declared
// in YAML files, and per-property declarations.
package registry

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

// PropertyDeclaration is an explicit property declaration. Zero fields
// leave the decision to later resolvers.
type PropertyDeclaration struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Types       []metadata.Type   `yaml:"types,omitempty"`
	Identifier  metadata.TriState `yaml:"identifier,omitempty"`
	Readable    metadata.TriState `yaml:"readable,omitempty"`
	Writable    metadata.TriState `yaml:"writable,omitempty"`
	Required    metadata.TriState `yaml:"required,omitempty"`
	Groups      []string          `yaml:"groups,omitempty"`
	Extra       map[string]any    `yaml:"extra,omitempty"`
}

// Property converts the declaration into a partial APIProperty
func (d PropertyDeclaration) Property() metadata.APIProperty {
	return metadata.APIProperty{
		Name:        d.Name,
		Description: d.Description,
		Identifier:  d.Identifier,
		Readable:    d.Readable,
		Writable:    d.Writable,
		Required:    d.Required,
		Extra:       maps.Clone(d.Extra),
	}.WithTypes(d.Types...).WithGroups(d.Groups...)
}

// Declaration is everything declared about one resource class
type Declaration struct {
	Class metadata.ResourceClass
	// Type is the Go type behind the class; nil for YAML-only resources
	Type       reflect.Type
	Resources  []metadata.APIResource
	Properties []PropertyDeclaration
}

func (d *Declaration) clone() Declaration {
	out := Declaration{
		Class:      d.Class,
		Type:       d.Type,
		Resources:  make([]metadata.APIResource, len(d.Resources)),
		Properties: slices.Clone(d.Properties),
	}
	for i, r := range d.Resources {
		out.Resources[i] = r.Clone()
	}
	return out
}

// Registry manages every declared resource
type Registry struct {
	declarations map[metadata.ResourceClass]*Declaration
	types        map[reflect.Type]metadata.ResourceClass
	mu           sync.RWMutex
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		declarations: make(map[metadata.ResourceClass]*Declaration),
		types:        make(map[reflect.Type]metadata.ResourceClass),
	}
}

// Register declares the Go type of sample as a resource. Without resources
// a single empty view is declared, which lets the resource chain apply its
// defaults.
func (r *Registry) Register(sample any, resources ...metadata.APIResource) (metadata.ResourceClass, error) {
	t := reflect.TypeOf(sample)
	if t == nil {
		return "", fmt.Errorf("cannot register a nil resource")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return "", fmt.Errorf("resource %s must be a struct, got %s", t, t.Kind())
	}

	class := metadata.ClassOf(t)
	if len(resources) == 0 {
		resources = []metadata.APIResource{{}}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.types[t]; ok {
		return "", fmt.Errorf("type %s is already registered as %s", t, existing)
	}
	if err := r.declareLocked(Declaration{Class: class, Type: t, Resources: resources}); err != nil {
		return "", err
	}
	r.types[t] = class
	return class, nil
}

// MustRegister is Register for package initialization; it panics on error
func (r *Registry) MustRegister(sample any, resources ...metadata.APIResource) metadata.ResourceClass {
	class, err := r.Register(sample, resources...)
	if err != nil {
		panic(err)
	}
	return class
}

// Declare adds a declaration. Declaring a known class appends its resource
// views and properties.
func (r *Registry) Declare(decl Declaration) error {
	if decl.Class == "" {
		return fmt.Errorf("declaration without a class")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if decl.Type != nil {
		if existing, ok := r.types[decl.Type]; ok && existing != decl.Class {
			return fmt.Errorf("type %s is already registered as %s", decl.Type, existing)
		}
	}
	if err := r.declareLocked(decl); err != nil {
		return err
	}
	if decl.Type != nil {
		r.types[decl.Type] = decl.Class
	}
	return nil
}

func (r *Registry) declareLocked(decl Declaration) error {
	d := decl.clone()
	for i, res := range d.Resources {
		if res.Class == "" {
			res.Class = d.Class
		}
		if res.Class != d.Class {
			return fmt.Errorf("resource view %d of %s is declared for %s", i, d.Class, res.Class)
		}
		if err := normalizeResource(&res); err != nil {
			return err
		}
		d.Resources[i] = res
	}
	for i, p := range d.Properties {
		if p.Name == "" {
			return fmt.Errorf("resource %s declares a property without a name", d.Class)
		}
		extra, err := canonical(p.Extra)
		if err != nil {
			return fmt.Errorf("property %s of %s: %w", p.Name, d.Class, err)
		}
		d.Properties[i].Extra = extra
	}

	existing, ok := r.declarations[d.Class]
	if !ok {
		r.declarations[d.Class] = &d
		return nil
	}

	if d.Type != nil {
		if existing.Type != nil && existing.Type != d.Type {
			return fmt.Errorf("resource %s is already bound to %s", d.Class, existing.Type)
		}
		existing.Type = d.Type
	}
	existing.Resources = append(existing.Resources, d.Resources...)
	existing.Properties = append(existing.Properties, d.Properties...)
	return nil
}

// DeclareProperty adds a property declaration to a registered class
func (r *Registry) DeclareProperty(class metadata.ResourceClass, decl PropertyDeclaration) error {
	if decl.Name == "" {
		return fmt.Errorf("resource %s declares a property without a name", class)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.declarations[class]
	if !ok {
		return &metadata.ResourceNotFoundError{Class: class}
	}
	extra, err := canonical(decl.Extra)
	if err != nil {
		return fmt.Errorf("property %s of %s: %w", decl.Name, class, err)
	}
	decl.Extra = extra
	d.Properties = append(d.Properties, decl)
	return nil
}

// normalizeResource upper-cases operation methods and rejects REST
// operations without a usable one. GraphQL operations may leave the method
// empty. Open maps are brought to their JSON form so values read back from a
// persistent cache compare equal to freshly resolved ones.
func normalizeResource(res *metadata.APIResource) error {
	var err error
	if res.Extra, err = canonical(res.Extra); err != nil {
		return fmt.Errorf("resource %s: %w", res.Class, err)
	}
	if err := canonicalContexts(&res.Persistence, &res.Normalization, &res.Denormalization); err != nil {
		return fmt.Errorf("resource %s: %w", res.Class, err)
	}

	for i := range res.Operations {
		if err := normalizeOperation(res.Class, &res.Operations[i], res.Operations[i].GraphQL); err != nil {
			return err
		}
	}
	for i := range res.GraphQLOperations {
		if err := normalizeOperation(res.Class, &res.GraphQLOperations[i], true); err != nil {
			return err
		}
	}
	return nil
}

func normalizeOperation(class metadata.ResourceClass, op *metadata.Operation, graphQL bool) error {
	name := op.Name
	if name == "" {
		name = op.URITemplate
	}

	if !graphQL || op.Method != "" {
		method, ok := metadata.NormalizeMethod(op.Method)
		if !ok {
			return &metadata.InvalidMethodError{Class: class, Operation: name, Method: op.Method}
		}
		op.Method = method
	}

	var err error
	if op.Extra, err = canonical(op.Extra); err != nil {
		return fmt.Errorf("operation %q of %s: %w", name, class, err)
	}
	if err := canonicalContexts(&op.Persistence, &op.Normalization, &op.Denormalization); err != nil {
		return fmt.Errorf("operation %q of %s: %w", name, class, err)
	}
	return nil
}

func canonicalContexts(p *metadata.PersistenceOptions, contexts ...*metadata.SerializationContext) error {
	var err error
	if p.Options, err = canonical(p.Options); err != nil {
		return fmt.Errorf("persistence options: %w", err)
	}
	for _, c := range contexts {
		if c.Flags, err = canonical(c.Flags); err != nil {
			return fmt.Errorf("serialization flags: %w", err)
		}
	}
	return nil
}

// canonical returns m as it reads back from JSON: numbers become float64,
// nested maps map[string]any and slices []any
func canonical(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Lookup returns a copy of the declaration of class
func (r *Registry) Lookup(class metadata.ResourceClass) (Declaration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.declarations[class]
	if !ok {
		return Declaration{}, false
	}
	return d.clone(), true
}

// Has reports whether class is declared
func (r *Registry) Has(class metadata.ResourceClass) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.declarations[class]
	return ok
}

// Type returns the Go type behind class
func (r *Registry) Type(class metadata.ResourceClass) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.declarations[class]
	if !ok || d.Type == nil {
		return nil, false
	}
	return d.Type, true
}

// Properties returns the property declarations of class in declaration
// order. Several declarations for one name are merged, earliest first.
func (r *Registry) Properties(class metadata.ResourceClass) []PropertyDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.declarations[class]
	if !ok {
		return nil
	}
	return slices.Clone(d.Properties)
}

// PropertyNames returns the declared property names of class in first
// declaration order
func (r *Registry) PropertyNames(class metadata.ResourceClass) []string {
	var names []string
	for _, decl := range r.Properties(class) {
		if !slices.Contains(names, decl.Name) {
			names = append(names, decl.Name)
		}
	}
	return names
}

// Property returns the merged declaration of one property
func (r *Registry) Property(class metadata.ResourceClass, name string) (metadata.APIProperty, bool) {
	var (
		prop  metadata.APIProperty
		found bool
	)
	for _, decl := range r.Properties(class) {
		if decl.Name != name {
			continue
		}
		prop = prop.Fill(decl.Property())
		found = true
	}
	return prop, found
}

// ClassForType returns the class registered for a Go type. Pointers are
// unwrapped.
func (r *Registry) ClassForType(t reflect.Type) (metadata.ResourceClass, bool) {
	if t == nil {
		return "", false
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	class, ok := r.types[t]
	return class, ok
}

// ClassOf returns the class of a resource item
func (r *Registry) ClassOf(item any) (metadata.ResourceClass, bool) {
	return r.ClassForType(reflect.TypeOf(item))
}

// Names returns every declared class in sorted order
func (r *Registry) Names() []metadata.ResourceClass {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]metadata.ResourceClass, 0, len(r.declarations))
	for class := range r.declarations {
		names = append(names, class)
	}
	slices.Sort(names)
	return names
}
