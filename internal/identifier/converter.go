package identifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/metadata/property"
)

// ParseComposite splits a composite identifier "a=1;b=2" into its parts
func ParseComposite(raw string) (map[string]string, error) {
	parts := make(map[string]string)
	for _, pair := range strings.Split(raw, ";") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed composite identifier part %q", pair)
		}
		parts[key] = value
	}
	return parts, nil
}

// URIVariablesConverter turns the raw URI variables of an operation into
// typed values. Composite variables become maps keyed by identifier
// property.
type URIVariablesConverter struct {
	props        property.Factory
	transformers *Transformers
}

// NewURIVariablesConverter creates a converter
func NewURIVariablesConverter(props property.Factory, transformers *Transformers) *URIVariablesConverter {
	return &URIVariablesConverter{props: props, transformers: transformers}
}

// Convert converts raw, keyed by placeholder, in URI variable order
func (c *URIVariablesConverter) Convert(ctx context.Context, op metadata.Operation, raw map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(op.URIVariables))
	for _, v := range op.URIVariables {
		value, ok := raw[v.Parameter]
		if !ok || value == "" {
			return nil, &metadata.InvalidURIVariableError{Parameter: v.Parameter, Err: fmt.Errorf("missing value")}
		}

		class := v.FromClass
		if class == "" {
			class = op.Class
		}

		if !v.Composite {
			id := v.Parameter
			if len(v.Identifiers) > 0 {
				id = v.Identifiers[0]
			}
			converted, err := c.convert(ctx, class, id, v.Parameter, value)
			if err != nil {
				return nil, err
			}
			out[v.Parameter] = converted
			continue
		}

		parts, err := ParseComposite(value)
		if err != nil {
			return nil, &metadata.InvalidURIVariableError{Parameter: v.Parameter, Value: value, Err: err}
		}
		composite := make(map[string]any, len(v.Identifiers))
		for _, id := range v.Identifiers {
			part, ok := parts[id]
			if !ok {
				return nil, &metadata.InvalidURIVariableError{
					Parameter: v.Parameter,
					Value:     value,
					Err:       fmt.Errorf("missing identifier %q", id),
				}
			}
			converted, err := c.convert(ctx, class, id, v.Parameter, part)
			if err != nil {
				return nil, err
			}
			composite[id] = converted
		}
		out[v.Parameter] = composite
	}
	return out, nil
}

func (c *URIVariablesConverter) convert(ctx context.Context, class metadata.ResourceClass, id, parameter, raw string) (any, error) {
	var types []metadata.Type
	prop, err := c.props.Create(ctx, class, id, property.Options{})
	switch {
	case err == nil:
		types = prop.Types
	case metadata.IsPropertyNotFound(err):
		// Undeclared identifiers stay strings
	default:
		return nil, err
	}
	return c.transformers.Transform(ctx, parameter, raw, types)
}
