package kernel

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/apimeta/internal/identifier"
	"github.com/conduit-lang/apimeta/internal/inflect"
	"github.com/conduit-lang/apimeta/internal/metadata/property"
	"github.com/conduit-lang/apimeta/internal/metadata/resource"
	"github.com/conduit-lang/apimeta/internal/operation"
	"github.com/conduit-lang/apimeta/internal/persistence"
	"github.com/conduit-lang/apimeta/internal/persistence/activerecord"
	"github.com/conduit-lang/apimeta/internal/persistence/document"
	"github.com/conduit-lang/apimeta/internal/persistence/relational"
	"github.com/conduit-lang/apimeta/internal/persistence/search"
	"github.com/conduit-lang/apimeta/internal/state"
)

// backendNames are the persistence backends the kernel knows how to build
var backendNames = map[string]bool{
	relational.BackendName:   true,
	document.BackendName:     true,
	activerecord.BackendName: true,
	search.BackendName:       true,
}

func (k *Kernel) backend(name string) (persistence.Introspector, bool) {
	for _, b := range k.Backends {
		if b.Name() == name {
			return b, true
		}
	}
	return nil, false
}

func (k *Kernel) buildBackends(context.Context) error {
	for _, name := range k.cfg.Pipeline.Backends {
		switch name {
		case relational.BackendName:
			if k.DB == nil {
				k.logger.Debug("relational backend disabled without a database")
				continue
			}
			if k.dialect == "" {
				k.dialect = relational.Postgres
			}
			k.Backends = append(k.Backends, relational.NewIntrospector(k.DB, k.dialect,
				relational.WithSchema(k.cfg.Database.Schema),
				relational.WithDeclarations(k.Registry)))
		case document.BackendName:
			k.Backends = append(k.Backends, document.NewIntrospector(k.Registry))
		case activerecord.BackendName:
			k.Backends = append(k.Backends, activerecord.NewIntrospector(k.Registry))
		case search.BackendName:
			k.Backends = append(k.Backends, search.NewIntrospector(k.Registry))
		default:
			return fmt.Errorf("unknown backend %q", name)
		}
	}
	return nil
}

func (k *Kernel) buildProperties(context.Context) error {
	var nameResolvers []property.NameResolver
	for _, name := range k.cfg.Pipeline.PropertyNameResolvers {
		switch name {
		case "reflection":
			nameResolvers = append(nameResolvers, property.NewReflectionNameResolver(k.Registry))
		case "attribute":
			nameResolvers = append(nameResolvers, property.NewAttributeNameResolver(k.Registry))
		case "serializer":
			nameResolvers = append(nameResolvers, property.NewSerializerNameResolver(k.Registry))
		default:
			return fmt.Errorf("unknown property name resolver %q", name)
		}
	}
	k.PropertyNames = property.NewCachedNameFactory(
		property.NewNameChain(k.Registry, nameResolvers...), k.cellOptions()...)

	var resolvers []property.Resolver
	for _, name := range k.cfg.Pipeline.PropertyResolvers {
		switch name {
		case "attribute":
			resolvers = append(resolvers, property.NewAttributeResolver(k.Registry))
		case "serializer":
			resolvers = append(resolvers, property.NewSerializerResolver(k.Registry))
		case "reflection":
			resolvers = append(resolvers, property.NewReflectionResolver(k.Registry))
		case "schema":
			resolvers = append(resolvers, property.NewSchemaResolver(k.Registry))
		default:
			if !backendNames[name] {
				return fmt.Errorf("unknown property resolver %q", name)
			}
			b, ok := k.backend(name)
			if !ok {
				k.logger.Debug("skipping resolver of disabled backend", zap.String("backend", name))
				continue
			}
			resolvers = append(resolvers, persistence.NewIdentifierResolver(b))
		}
	}
	k.Properties = property.NewCachedFactory(
		property.NewChain(k.PropertyNames, resolvers, property.WithLogger(k.logger)), k.cellOptions()...)

	return nil
}

func (k *Kernel) buildResources(context.Context) error {
	available := resource.DefaultResolvers(resource.Sources{
		Declarations: k.Registry,
		Names:        k.PropertyNames,
		Properties:   k.Properties,
		Backends:     k.Backends,
		Namer:        inflect.NamerFor(k.cfg.Pipeline.Naming),
		UpdateMethod: k.cfg.Pipeline.UpdateMethod,
	})
	byName := make(map[string]resource.Resolver, len(available))
	for _, r := range available {
		byName[r.Name()] = r
	}

	resolvers := make([]resource.Resolver, 0, len(k.cfg.Pipeline.ResourceResolvers))
	for _, name := range k.cfg.Pipeline.ResourceResolvers {
		r, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown resource resolver %q", name)
		}
		resolvers = append(resolvers, r)
	}

	k.Resources = resource.NewCachedFactory(
		resource.NewChain(resolvers, resource.WithLogger(k.logger)), k.cellOptions()...)
	return nil
}

func (k *Kernel) buildIdentifiers(context.Context) error {
	list := make([]identifier.Transformer, 0, len(k.cfg.Pipeline.Transformers))
	for _, name := range k.cfg.Pipeline.Transformers {
		t, ok := identifier.TransformerByName(name)
		if !ok {
			return fmt.Errorf("unknown transformer %q", name)
		}
		list = append(list, t)
	}

	k.Transformers = identifier.NewTransformers(list...)
	k.Extractor = identifier.NewExtractor(k.Registry, k.Resources)
	k.Converter = identifier.NewURIVariablesConverter(k.Properties, k.Transformers)
	k.Finder = operation.NewFinder(k.Names, k.Resources)
	return nil
}

func (k *Kernel) buildStrategies(context.Context) error {
	k.Memory = state.NewMemoryStore(k.Extractor)

	var store *relational.Store
	if b, ok := k.backend(relational.BackendName); ok {
		store = relational.NewStore(b.(*relational.Introspector), k.logger)
	}

	var providers []state.ProviderEntry
	for _, reg := range k.cfg.Pipeline.Providers {
		switch reg.Name {
		case "memory":
			providers = append(providers, state.ProviderEntry{Registration: reg, Provider: k.Memory})
		case relational.BackendName:
			if store == nil {
				k.logger.Debug("relational provider disabled without a database")
				continue
			}
			providers = append(providers, state.ProviderEntry{Registration: reg, Provider: store})
		default:
			return fmt.Errorf("unknown provider %q", reg.Name)
		}
	}

	var processors []state.ProcessorEntry
	for _, reg := range k.cfg.Pipeline.Processors {
		switch reg.Name {
		case "memory":
			processors = append(processors, state.ProcessorEntry{Registration: reg, Processor: k.Memory})
		case relational.BackendName:
			if store == nil {
				k.logger.Debug("relational processor disabled without a database")
				continue
			}
			processors = append(processors, state.ProcessorEntry{Registration: reg, Processor: store})
		case "stream":
			publisher := state.NewStreamPublisher(k.redisClient(), k.cfg.Stream.Name,
				state.WithMaxLen(k.cfg.Stream.MaxLen),
				state.WithItemIdentifier(k.Extractor),
				state.WithStreamLogger(k.logger))
			processors = append(processors, state.ProcessorEntry{Registration: reg, Processor: publisher})
		default:
			return fmt.Errorf("unknown processor %q", reg.Name)
		}
	}

	opts := []state.Option{
		state.WithLogger(k.logger),
		state.WithTracerProvider(k.tracer),
		state.WithSupportsCache(k.cellOptions()...),
	}
	k.Providers = state.NewProviderChain(providers, opts...)
	if k.validator != nil {
		opts = append(opts, state.WithValidator(k.validator))
	}
	k.Processors = state.NewProcessorChain(processors, opts...)
	return nil
}
