package property

import (
	"reflect"
	"strings"
	"sync"

	"github.com/conduit-lang/apimeta/internal/inflect"
)

// Field is one exported struct field exposed as a property
type Field struct {
	// Name is the property name: the api tag name, else the json tag name,
	// else the lower-camel Go field name
	Name   string
	GoName string
	Index  []int
	Type   reflect.Type
	Tag    reflect.StructTag
	// JSONIgnored is set for fields tagged json:"-"
	JSONIgnored bool
}

// TagOptions returns the options of the api tag (everything after the name)
func (f Field) TagOptions() []string {
	tag, ok := f.Tag.Lookup("api")
	if !ok {
		return nil
	}
	parts := strings.Split(tag, ",")
	return parts[1:]
}

var fieldCache sync.Map // map[reflect.Type][]Field

// Fields returns the properties of a struct type in declaration order.
// Embedded structs without a name are flattened and fields tagged api:"-"
// are skipped. Non-struct types have no fields.
func Fields(t reflect.Type) []Field {
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]Field)
	}

	fields := collectFields(t, nil, map[reflect.Type]bool{})
	actual, _ := fieldCache.LoadOrStore(t, fields)
	return actual.([]Field)
}

// FieldByName returns the field exposed under a property name
func FieldByName(t reflect.Type, name string) (Field, bool) {
	for _, f := range Fields(t) {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func collectFields(t reflect.Type, index []int, seen map[reflect.Type]bool) []Field {
	if seen[t] {
		return nil
	}
	seen[t] = true
	defer delete(seen, t)

	var fields []Field
	names := make(map[string]bool)
	add := func(f Field) {
		if names[f.Name] {
			return
		}
		names[f.Name] = true
		fields = append(fields, f)
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		idx := append(append([]int(nil), index...), i)

		apiName, hasAPI := tagName(sf.Tag, "api")
		if hasAPI && apiName == "-" {
			continue
		}
		jsonName, hasJSON := tagName(sf.Tag, "json")

		if sf.Anonymous && apiName == "" && (!hasJSON || jsonName == "") {
			et := sf.Type
			if et.Kind() == reflect.Pointer {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct {
				for _, f := range collectFields(et, idx, seen) {
					add(f)
				}
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}

		f := Field{
			GoName:      sf.Name,
			Index:       idx,
			Type:        sf.Type,
			Tag:         sf.Tag,
			JSONIgnored: hasJSON && jsonName == "-",
		}
		switch {
		case apiName != "":
			f.Name = apiName
		case jsonName != "" && jsonName != "-":
			f.Name = jsonName
		default:
			f.Name = inflect.LowerCamel(sf.Name)
		}
		add(f)
	}
	return fields
}

func tagName(tag reflect.StructTag, key string) (string, bool) {
	value, ok := tag.Lookup(key)
	if !ok {
		return "", false
	}
	name, _, _ := strings.Cut(value, ",")
	return name, true
}
