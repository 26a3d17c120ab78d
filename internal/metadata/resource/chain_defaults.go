package resource

import (
	"github.com/conduit-lang/apimeta/internal/inflect"
	"github.com/conduit-lang/apimeta/internal/metadata/property"
	"github.com/conduit-lang/apimeta/internal/persistence"
)

// Sources are the collaborators of the default resolvers
type Sources struct {
	Declarations Declarations
	Names        property.NameFactory
	Properties   property.Factory
	Backends     []persistence.Introspector
	Namer        inflect.Namer
	// UpdateMethod of synthesized update operations, PATCH when empty
	UpdateMethod string
}

// DefaultResolvers returns the built-in resolvers in their default order
func DefaultResolvers(s Sources) []Resolver {
	set := NewIdentifierSet(s.Declarations, s.Names, s.Properties)
	return []Resolver{
		NewAttributeResolver(s.Declarations),
		ShortNameResolver{},
		DefaultOperationsResolver{UpdateMethod: s.UpdateMethod},
		NewURITemplateResolver(s.Namer),
		NewPersistenceResolver(s.Backends...),
		NewIdentifiersResolver(set),
		NewURIVariablesResolver(set, s.Names, s.Properties),
		InheritanceResolver{},
		VersionResolver{},
	}
}
