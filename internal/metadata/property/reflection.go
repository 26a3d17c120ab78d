package property

import (
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

var (
	timeType = reflect.TypeOf(time.Time{})
	uuidType = reflect.TypeOf(uuid.UUID{})
)

// ReflectionResolver fills property types from the Go field type
type ReflectionResolver struct {
	source Source
}

// NewReflectionResolver creates a reflection resolver
func NewReflectionResolver(source Source) *ReflectionResolver {
	return &ReflectionResolver{source: source}
}

// Name implements Resolver
func (r *ReflectionResolver) Name() string { return "reflection" }

// Resolve implements Resolver
func (r *ReflectionResolver) Resolve(_ context.Context, class metadata.ResourceClass, property string, _ Options, prop metadata.APIProperty) (metadata.APIProperty, error) {
	if len(prop.Types) > 0 {
		return prop, nil
	}
	f, ok := fieldOf(r.source, class, property)
	if !ok {
		return prop, nil
	}
	return prop.WithTypes(TypeOf(f.Type, r.source)), nil
}

// TypeOf maps a Go type to a property type. Struct types registered as
// resources become objects bound to their class.
func TypeOf(t reflect.Type, source Source) metadata.Type {
	var out metadata.Type
	for t.Kind() == reflect.Pointer {
		out.Nullable = true
		t = t.Elem()
	}

	switch t {
	case timeType:
		out.Kind = metadata.KindDateTime
		return out
	case uuidType:
		out.Kind = metadata.KindUUID
		return out
	}

	switch t.Kind() {
	case reflect.String:
		out.Kind = metadata.KindString
	case reflect.Bool:
		out.Kind = metadata.KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		out.Kind = metadata.KindInt
	case reflect.Float32, reflect.Float64:
		out.Kind = metadata.KindFloat
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			out.Kind = metadata.KindString
			break
		}
		if t.Kind() == reflect.Slice {
			out.Nullable = true
		}
		elem := TypeOf(t.Elem(), source)
		out.Kind = metadata.KindArray
		out.Elem = &elem
	case reflect.Map:
		elem := TypeOf(t.Elem(), source)
		out.Kind = metadata.KindMap
		out.Nullable = true
		out.Elem = &elem
	case reflect.Struct:
		out.Kind = metadata.KindObject
		if source != nil {
			if class, ok := source.ClassForType(t); ok {
				out.Class = class
			}
		}
	case reflect.Interface:
		out.Kind = metadata.KindAny
		out.Nullable = true
	default:
		out.Kind = metadata.KindAny
	}
	return out
}

// ReflectionNameResolver lists the fields of the Go type behind a class
type ReflectionNameResolver struct {
	source Source
}

// NewReflectionNameResolver creates a reflection name resolver
func NewReflectionNameResolver(source Source) *ReflectionNameResolver {
	return &ReflectionNameResolver{source: source}
}

// Name implements NameResolver
func (r *ReflectionNameResolver) Name() string { return "reflection" }

// Resolve implements NameResolver
func (r *ReflectionNameResolver) Resolve(_ context.Context, class metadata.ResourceClass, _ Options, names []string) ([]string, error) {
	t, ok := r.source.Type(class)
	if !ok {
		return names, nil
	}
	for _, f := range Fields(t) {
		names = append(names, f.Name)
	}
	return names, nil
}
