package property

// DefaultResolvers returns the built-in resolver order. Persistence
// identifier resolvers run between serialization and reflection.
func DefaultResolvers(source Source, persistence ...Resolver) []Resolver {
	resolvers := []Resolver{
		NewAttributeResolver(source),
		NewSerializerResolver(source),
	}
	resolvers = append(resolvers, persistence...)
	return append(resolvers,
		NewReflectionResolver(source),
		NewSchemaResolver(source),
	)
}

// DefaultNameResolvers returns the built-in name resolver order
func DefaultNameResolvers(source Source) []NameResolver {
	return []NameResolver{
		NewReflectionNameResolver(source),
		NewAttributeNameResolver(source),
		NewSerializerNameResolver(source),
	}
}
