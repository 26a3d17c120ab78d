package identifier

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

// Transformer converts the raw value of a URI variable to one of the
// property's types
type Transformer interface {
	Name() string
	Supports(ctx context.Context, raw string, types []metadata.Type) bool
	Transform(ctx context.Context, raw string, types []metadata.Type) (any, error)
}

// Transformers dispatches to the first transformer supporting a value
type Transformers struct {
	list []Transformer
}

// NewTransformers creates a registry. Order is significant.
func NewTransformers(list ...Transformer) *Transformers {
	return &Transformers{list: slices.Clone(list)}
}

// DefaultTransformers returns the built-in transformers in order
func DefaultTransformers() []Transformer {
	return []Transformer{
		IntegerTransformer{},
		FloatTransformer{},
		BoolTransformer{},
		UUIDTransformer{},
		DateTimeTransformer{},
	}
}

// TransformerByName returns the built-in transformer called name
func TransformerByName(name string) (Transformer, bool) {
	for _, t := range DefaultTransformers() {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// List returns the transformer order
func (r *Transformers) List() []Transformer {
	return slices.Clone(r.list)
}

// Transform converts raw. Without a supporting transformer the raw string
// passes through, except for resource types which have no string form.
func (r *Transformers) Transform(ctx context.Context, parameter, raw string, types []metadata.Type) (any, error) {
	for _, t := range r.list {
		if !t.Supports(ctx, raw, types) {
			continue
		}
		v, err := t.Transform(ctx, raw, types)
		if err != nil {
			return nil, &metadata.InvalidURIVariableError{Parameter: parameter, Value: raw, Err: err}
		}
		return v, nil
	}

	for _, typ := range types {
		if typ.IsResource() {
			return nil, &metadata.InvalidURIVariableError{
				Parameter: parameter,
				Value:     raw,
				Err:       fmt.Errorf("no transformer for resource %s", typ.Class),
			}
		}
	}
	return raw, nil
}

func hasKind(types []metadata.Type, kind metadata.Kind) bool {
	for _, t := range types {
		if t.Kind == kind {
			return true
		}
	}
	return false
}

// IntegerTransformer parses int properties
type IntegerTransformer struct{}

func (IntegerTransformer) Name() string { return "integer" }

func (IntegerTransformer) Supports(_ context.Context, _ string, types []metadata.Type) bool {
	return hasKind(types, metadata.KindInt)
}

func (IntegerTransformer) Transform(_ context.Context, raw string, _ []metadata.Type) (any, error) {
	return strconv.ParseInt(raw, 10, 64)
}

// FloatTransformer parses float properties
type FloatTransformer struct{}

func (FloatTransformer) Name() string { return "float" }

func (FloatTransformer) Supports(_ context.Context, _ string, types []metadata.Type) bool {
	return hasKind(types, metadata.KindFloat)
}

func (FloatTransformer) Transform(_ context.Context, raw string, _ []metadata.Type) (any, error) {
	return strconv.ParseFloat(raw, 64)
}

// BoolTransformer parses bool properties
type BoolTransformer struct{}

func (BoolTransformer) Name() string { return "bool" }

func (BoolTransformer) Supports(_ context.Context, _ string, types []metadata.Type) bool {
	return hasKind(types, metadata.KindBool)
}

func (BoolTransformer) Transform(_ context.Context, raw string, _ []metadata.Type) (any, error) {
	return strconv.ParseBool(raw)
}

// UUIDTransformer parses uuid properties
type UUIDTransformer struct{}

func (UUIDTransformer) Name() string { return "uuid" }

func (UUIDTransformer) Supports(_ context.Context, _ string, types []metadata.Type) bool {
	return hasKind(types, metadata.KindUUID)
}

func (UUIDTransformer) Transform(_ context.Context, raw string, _ []metadata.Type) (any, error) {
	return uuid.Parse(raw)
}

// DateTimeTransformer parses RFC 3339 timestamps and plain dates
type DateTimeTransformer struct{}

func (DateTimeTransformer) Name() string { return "datetime" }

func (DateTimeTransformer) Supports(_ context.Context, _ string, types []metadata.Type) bool {
	return hasKind(types, metadata.KindDateTime)
}

func (DateTimeTransformer) Transform(_ context.Context, raw string, _ []metadata.Type) (any, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}
