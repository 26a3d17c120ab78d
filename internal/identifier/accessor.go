// Package identifier extracts identifiers from items and converts the raw
// URI variables of a request into typed values.
package identifier

import (
	"fmt"
	"reflect"

	"github.com/conduit-lang/apimeta/internal/inflect"
	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/metadata/property"
)

// PropertyAccessor reads a property of an object
type PropertyAccessor interface {
	Get(obj any, property string) (any, error)
}

// ReflectAccessor reads struct fields by property name and map entries by
// key. Map keys may also be the snake_case form of the property, so rows
// keyed by column work as well.
type ReflectAccessor struct{}

// Get implements PropertyAccessor
func (ReflectAccessor) Get(obj any, name string) (any, error) {
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, fmt.Errorf("cannot read %q of a nil object", name)
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("cannot read %q of %s", name, v.Type())
		}
		for _, key := range []string{name, inflect.ToSnakeCase(name)} {
			entry := v.MapIndex(reflect.ValueOf(key).Convert(v.Type().Key()))
			if entry.IsValid() {
				return entry.Interface(), nil
			}
		}
		return nil, &metadata.PropertyNotFoundError{Property: name}

	case reflect.Struct:
		f, ok := property.FieldByName(v.Type(), name)
		if !ok {
			return nil, &metadata.PropertyNotFoundError{Class: metadata.ClassOf(v.Type()), Property: name}
		}
		fv, err := v.FieldByIndexErr(f.Index)
		if err != nil {
			// nil embedded pointer
			return nil, nil
		}
		return fv.Interface(), nil

	case reflect.Invalid:
		return nil, fmt.Errorf("cannot read %q of a nil object", name)
	}
	return nil, fmt.Errorf("cannot read %q of %s", name, v.Type())
}
