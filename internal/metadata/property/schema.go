package property

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/swaggest/jsonschema-go"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

const schemaNameTag = "apimetaschema"

// SchemaResolver fills JSON Schema hints (type, format, enum, bounds) by
// reflecting the field with jsonschema-go. Validation tags on the field
// (minLength, enum, format...) are honoured. Relations to other resources
// are described by their Types and get no schema.
type SchemaResolver struct {
	source    Source
	reflector jsonschema.Reflector
}

// NewSchemaResolver creates a schema resolver
func NewSchemaResolver(source Source) *SchemaResolver {
	return &SchemaResolver{source: source}
}

// Name implements Resolver
func (r *SchemaResolver) Name() string { return "schema" }

// Resolve implements Resolver
func (r *SchemaResolver) Resolve(_ context.Context, class metadata.ResourceClass, property string, _ Options, prop metadata.APIProperty) (metadata.APIProperty, error) {
	if len(prop.Schema) > 0 {
		return prop, nil
	}
	f, ok := fieldOf(r.source, class, property)
	if !ok {
		return prop, nil
	}
	if leaf := TypeOf(f.Type, r.source).Leaf(); leaf.IsResource() {
		return prop, nil
	}

	schema, err := r.fieldSchema(f)
	if err != nil {
		return metadata.APIProperty{}, fmt.Errorf("failed to reflect schema of %s.%s: %w", class, property, err)
	}
	if len(schema) == 0 {
		return prop, nil
	}
	return prop.WithSchema(schema), nil
}

// fieldSchema reflects a single-field struct carrying the original tags,
// then reads the schema of that field back as a generic map
func (r *SchemaResolver) fieldSchema(f Field) (map[string]any, error) {
	holder := reflect.StructOf([]reflect.StructField{{
		Name: "V",
		Type: f.Type,
		Tag:  reflect.StructTag(fmt.Sprintf(`%s:"v" %s`, schemaNameTag, f.Tag)),
	}})

	sch, err := r.reflector.Reflect(reflect.New(holder).Elem().Interface(),
		jsonschema.InlineRefs,
		jsonschema.PropertyNameTag(schemaNameTag),
	)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(sch)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Properties map[string]map[string]any `json:"properties"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Properties["v"], nil
}
