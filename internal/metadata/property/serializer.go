package property

import (
	"context"
	"slices"
	"strings"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

// SerializerResolver applies serialization configuration: groups from
// declarations or the groups struct tag, group-based readability when
// groups are requested, and json:"-" fields
type SerializerResolver struct {
	source Source
}

// NewSerializerResolver creates a serializer resolver
func NewSerializerResolver(source Source) *SerializerResolver {
	return &SerializerResolver{source: source}
}

// Name implements Resolver
func (r *SerializerResolver) Name() string { return "serializer" }

// Resolve implements Resolver
func (r *SerializerResolver) Resolve(_ context.Context, class metadata.ResourceClass, property string, opts Options, prop metadata.APIProperty) (metadata.APIProperty, error) {
	f, hasField := fieldOf(r.source, class, property)

	if prop.Groups == nil && hasField {
		if groups := tagGroups(f); groups != nil {
			prop = prop.WithGroups(groups...)
		}
	}

	if hasField && f.JSONIgnored {
		prop = prop.Fill(metadata.APIProperty{Readable: metadata.False, Writable: metadata.False})
	}

	if len(opts.NormalizationGroups) > 0 && !prop.Readable.IsSet() {
		prop = prop.WithReadable(metadata.Of(prop.InGroups(opts.NormalizationGroups)))
	}
	if len(opts.DenormalizationGroups) > 0 && !prop.Writable.IsSet() {
		prop = prop.WithWritable(metadata.Of(prop.InGroups(opts.DenormalizationGroups)))
	}
	return prop, nil
}

func tagGroups(f Field) []string {
	tag, ok := f.Tag.Lookup("groups")
	if !ok {
		return nil
	}
	groups := []string{}
	for _, g := range strings.Split(tag, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// SerializerNameResolver keeps only the names that belong to a requested
// group. Without requested groups it is a pass-through.
type SerializerNameResolver struct {
	source Source
}

// NewSerializerNameResolver creates a serializer name resolver
func NewSerializerNameResolver(source Source) *SerializerNameResolver {
	return &SerializerNameResolver{source: source}
}

// Name implements NameResolver
func (r *SerializerNameResolver) Name() string { return "serializer" }

// Resolve implements NameResolver
func (r *SerializerNameResolver) Resolve(_ context.Context, class metadata.ResourceClass, opts Options, names []string) ([]string, error) {
	if !opts.HasGroups() {
		return names, nil
	}

	requested := append(slices.Clone(opts.NormalizationGroups), opts.DenormalizationGroups...)
	return slices.DeleteFunc(names, func(name string) bool {
		return !r.groupsOf(class, name).InGroups(requested)
	}), nil
}

func (r *SerializerNameResolver) groupsOf(class metadata.ResourceClass, name string) metadata.APIProperty {
	if declared, ok := r.source.Property(class, name); ok && declared.Groups != nil {
		return declared
	}
	if f, ok := fieldOf(r.source, class, name); ok {
		return metadata.APIProperty{Groups: tagGroups(f)}
	}
	return metadata.APIProperty{}
}
