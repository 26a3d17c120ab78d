package metadata

import (
	"reflect"
	"strings"
)

// ResourceClass identifies a resource. For Go types it is the import path
// followed by the type name ("example.com/app/model.Book"); resources
// declared in YAML use the declared name verbatim.
type ResourceClass string

// ClassOf returns the ResourceClass of a Go type. Pointers are unwrapped.
func ClassOf(t reflect.Type) ResourceClass {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return ResourceClass(t.Name())
	}
	return ResourceClass(t.PkgPath() + "." + t.Name())
}

// String implements fmt.Stringer
func (c ResourceClass) String() string {
	return string(c)
}

// LocalName returns the part of the class after the last namespace
// separator. Go import paths, dotted names and backslash namespaces are all
// accepted, so "example.com/app/model.Book" and `App\Entity\Book` both
// yield "Book".
func (c ResourceClass) LocalName() string {
	s := string(c)
	if i := strings.LastIndexAny(s, `./\`); i >= 0 {
		return s[i+1:]
	}
	return s
}
