// Package kernel assembles the metadata pipeline from configuration: it
// opens the storage collaborators and builds every chain in the order the
// registration lists give.
package kernel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/conduit-lang/apimeta/internal/cache"
	"github.com/conduit-lang/apimeta/internal/config"
	"github.com/conduit-lang/apimeta/internal/identifier"
	"github.com/conduit-lang/apimeta/internal/metadata/property"
	"github.com/conduit-lang/apimeta/internal/metadata/resource"
	"github.com/conduit-lang/apimeta/internal/operation"
	"github.com/conduit-lang/apimeta/internal/persistence"
	"github.com/conduit-lang/apimeta/internal/persistence/relational"
	"github.com/conduit-lang/apimeta/internal/registry"
	"github.com/conduit-lang/apimeta/internal/state"
	"github.com/conduit-lang/apimeta/internal/telemetry"
)

// Kernel holds the assembled pipeline
type Kernel struct {
	Registry      *registry.Registry
	Store         cache.Cache
	DB            *sql.DB
	Backends      []persistence.Introspector
	PropertyNames *property.CachedNameFactory
	Properties    *property.CachedFactory
	Resources     *resource.CachedFactory
	Names         *resource.NameCollection
	Transformers  *identifier.Transformers
	Extractor     *identifier.Extractor
	Converter     *identifier.URIVariablesConverter
	Finder        *operation.Finder
	Memory        *state.MemoryStore
	Providers     *state.ProviderChain
	Processors    *state.ProcessorChain

	cfg       *config.Config
	logger    *zap.Logger
	tracer    trace.TracerProvider
	validator state.Validator
	dialect   relational.Dialect
	redis     *redis.Client
	closers   []func(context.Context) error
}

// Option configures a Kernel
type Option func(*Kernel)

// WithLogger sets the logger handed to every component
func WithLogger(logger *zap.Logger) Option {
	return func(k *Kernel) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// WithRegistry uses reg instead of an empty registry. Declaration files
// from configuration are loaded into it.
func WithRegistry(reg *registry.Registry) Option {
	return func(k *Kernel) {
		k.Registry = reg
	}
}

// WithDB uses an open database instead of database.driver/url. The kernel
// does not close it.
func WithDB(db *sql.DB, dialect relational.Dialect) Option {
	return func(k *Kernel) {
		k.DB = db
		k.dialect = dialect
	}
}

// WithRedis uses client for the redis cache driver and the stream
// publisher. The kernel does not close it.
func WithRedis(client *redis.Client) Option {
	return func(k *Kernel) {
		k.redis = client
	}
}

// WithTracerProvider overrides the provider built from tracing config
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(k *Kernel) {
		k.tracer = tp
	}
}

// WithValidator sets the validator of the processor chain
func WithValidator(v state.Validator) Option {
	return func(k *Kernel) {
		k.validator = v
	}
}

// New builds the pipeline described by cfg. On error every collaborator
// opened so far is closed.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Kernel, error) {
	k := &Kernel{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(k)
	}

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"registry", k.loadRegistry},
		{"tracing", k.setupTracing},
		{"cache", k.openCache},
		{"database", k.openDatabase},
		{"backends", k.buildBackends},
		{"properties", k.buildProperties},
		{"resources", k.buildResources},
		{"identifiers", k.buildIdentifiers},
		{"strategies", k.buildStrategies},
	}
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			_ = k.Close(ctx)
			return nil, fmt.Errorf("kernel %s: %w", step.name, err)
		}
	}

	k.logger.Debug("kernel ready",
		zap.Int("backends", len(k.Backends)),
		zap.Int("providers", len(k.Providers.Entries())),
		zap.Int("processors", len(k.Processors.Entries())))

	return k, nil
}

// Config returns the configuration the kernel was built from
func (k *Kernel) Config() *config.Config {
	return k.cfg
}

// Router builds a chi router over every operation of the resource universe
func (k *Kernel) Router(ctx context.Context) (*operation.ChiRouter, error) {
	return operation.NewChiRouterFor(ctx, k.Names, k.Resources)
}

// Resolver composes routing, operation lookup and URI variable conversion
func (k *Kernel) Resolver(ctx context.Context) (*operation.Resolver, error) {
	router, err := k.Router(ctx)
	if err != nil {
		return nil, err
	}
	return operation.NewResolver(router, k.Finder, k.Converter), nil
}

// Purge drops every memoized metadata value and Supports answer
func (k *Kernel) Purge(ctx context.Context) error {
	return errors.Join(
		k.PropertyNames.Purge(ctx),
		k.Properties.Purge(ctx),
		k.Resources.Purge(ctx),
		k.Providers.Purge(ctx),
		k.Processors.Purge(ctx),
	)
}

// Close releases what the kernel opened itself, in reverse order
func (k *Kernel) Close(ctx context.Context) error {
	var errs []error
	for i := len(k.closers) - 1; i >= 0; i-- {
		errs = append(errs, k.closers[i](ctx))
	}
	k.closers = nil
	return errors.Join(errs...)
}

func (k *Kernel) onClose(fn func(context.Context) error) {
	k.closers = append(k.closers, fn)
}

func (k *Kernel) cellOptions() []cache.CellOption {
	opts := []cache.CellOption{cache.WithLogger(k.logger)}
	if k.Store != nil {
		opts = append(opts, cache.WithStore(k.Store, k.cfg.Cache.TTL))
	}
	return opts
}

func (k *Kernel) loadRegistry(context.Context) error {
	if k.Registry == nil {
		k.Registry = registry.New()
	}
	for _, path := range k.cfg.Declarations {
		if err := k.Registry.LoadFile(path); err != nil {
			return err
		}
		k.logger.Debug("loaded declarations", zap.String("path", path))
	}
	k.Names = resource.NewNameCollection(k.Registry)
	return nil
}

func (k *Kernel) setupTracing(ctx context.Context) error {
	if k.tracer != nil {
		return nil
	}
	tp, shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    k.cfg.Tracing.Endpoint,
		ServiceName: k.cfg.Tracing.ServiceName,
		Insecure:    k.cfg.Tracing.Insecure,
	})
	if err != nil {
		return err
	}
	k.tracer = tp
	k.onClose(shutdown)
	return nil
}

func (k *Kernel) redisClient() *redis.Client {
	if k.redis == nil {
		k.redis = redis.NewClient(&redis.Options{
			Addr:     k.cfg.Redis.Addr,
			Password: k.cfg.Redis.Password,
			DB:       k.cfg.Redis.DB,
		})
		client := k.redis
		k.onClose(func(context.Context) error { return client.Close() })
	}
	return k.redis
}

func (k *Kernel) openCache(context.Context) error {
	conf := cache.Config{DefaultTTL: k.cfg.Cache.TTL, Prefix: k.cfg.Cache.Prefix}

	switch k.cfg.Cache.Driver {
	case "memory":
		store := cache.NewMemoryCacheWithConfig(conf)
		k.Store = store
		k.onClose(func(context.Context) error { return store.Close() })
	case "redis":
		// The client is shared with the stream publisher and closed once
		k.Store = cache.NewRedisCacheWithClient(k.redisClient(), conf)
	case "none":
	default:
		return fmt.Errorf("unknown cache driver %q", k.cfg.Cache.Driver)
	}
	return nil
}

func (k *Kernel) openDatabase(context.Context) error {
	if k.DB != nil || k.cfg.Database.Driver == "" {
		return nil
	}

	db, err := sql.Open(k.cfg.Database.Driver, k.cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if k.cfg.Database.Driver == "sqlite3" {
		// In-memory SQLite databases live per connection
		db.SetMaxOpenConns(1)
		k.dialect = relational.SQLite
	} else {
		k.dialect = relational.Postgres
	}

	k.DB = db
	k.onClose(func(context.Context) error { return db.Close() })
	return nil
}
