// Package config loads the apimeta configuration: storage collaborators
// and the ordered registration lists every metadata chain is built from.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conduit-lang/apimeta/internal/state"
)

// FileName is the configuration file looked up when none is given
const FileName = "apimeta.yaml"

// EnvPrefix prefixes environment overrides (APIMETA_CACHE_DRIVER, ...)
const EnvPrefix = "APIMETA"

// Config represents the apimeta configuration
type Config struct {
	Cache        CacheConfig    `mapstructure:"cache"`
	Redis        RedisConfig    `mapstructure:"redis"`
	Database     DatabaseConfig `mapstructure:"database"`
	Stream       StreamConfig   `mapstructure:"stream"`
	Tracing      TracingConfig  `mapstructure:"tracing"`
	Declarations []string       `mapstructure:"declarations"`
	Pipeline     PipelineConfig `mapstructure:"pipeline"`
}

// CacheConfig configures the persistent tier of the metadata cells
type CacheConfig struct {
	// Driver is memory, redis or none
	Driver string        `mapstructure:"driver"`
	TTL    time.Duration `mapstructure:"ttl"`
	Prefix string        `mapstructure:"prefix"`
}

// RedisConfig is shared by the redis cache driver and the stream publisher
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig enables the relational backend
type DatabaseConfig struct {
	// Driver is a database/sql driver name: pgx, postgres or sqlite3.
	// Empty disables the relational backend.
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
	Schema string `mapstructure:"schema"`
}

// StreamConfig enables the redis stream publisher
type StreamConfig struct {
	Name   string `mapstructure:"name"`
	MaxLen int64  `mapstructure:"max_len"`
}

// TracingConfig enables OTLP span export
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Insecure    bool   `mapstructure:"insecure"`
}

// PipelineConfig holds the ordered registration lists
type PipelineConfig struct {
	PropertyNameResolvers []string             `mapstructure:"property_name_resolvers"`
	PropertyResolvers     []string             `mapstructure:"property_resolvers"`
	ResourceResolvers     []string             `mapstructure:"resource_resolvers"`
	Backends              []string             `mapstructure:"backends"`
	Transformers          []string             `mapstructure:"transformers"`
	Providers             []state.Registration `mapstructure:"providers"`
	Processors            []state.Registration `mapstructure:"processors"`
	// Naming is the URI segment convention: dash or snake
	Naming string `mapstructure:"naming"`
	// UpdateMethod of synthesized update operations: PATCH or PUT
	UpdateMethod string `mapstructure:"update_method"`
}

// Load reads the configuration from path, or from apimeta.yaml in the
// working directory when path is empty. A missing apimeta.yaml is not an
// error; a missing explicit path is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.prefix", "apimeta:")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.schema", "public")

	v.SetDefault("stream.max_len", 10000)

	v.SetDefault("tracing.service_name", "apimeta")

	v.SetDefault("pipeline.property_name_resolvers", []string{"reflection", "attribute", "serializer"})
	v.SetDefault("pipeline.property_resolvers", []string{
		"attribute", "serializer", "relational", "document", "activerecord", "search", "reflection", "schema",
	})
	v.SetDefault("pipeline.resource_resolvers", []string{
		"attribute", "short_name", "defaults", "uri_template", "persistence",
		"identifiers", "uri_variables", "inheritance", "version",
	})
	v.SetDefault("pipeline.backends", []string{"relational", "document", "activerecord", "search"})
	v.SetDefault("pipeline.transformers", []string{"integer", "float", "bool", "uuid", "datetime"})
	v.SetDefault("pipeline.providers", []map[string]any{
		{"name": "relational", "cacheable": true},
		{"name": "memory", "cacheable": true},
	})
	v.SetDefault("pipeline.processors", []map[string]any{
		{"name": "relational", "cacheable": true, "resumable": true},
		{"name": "memory", "cacheable": true, "resumable": true},
		{"name": "stream"},
	})
	v.SetDefault("pipeline.naming", "dash")
	v.SetDefault("pipeline.update_method", "PATCH")
}

// FindConfigFile walks up from dir looking for apimeta.yaml or
// apimeta.yml
func FindConfigFile(dir string) (string, error) {
	for {
		for _, name := range []string{FileName, "apimeta.yml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found", FileName)
		}
		dir = parent
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	switch cfg.Cache.Driver {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("cache.driver must be memory, redis or none, got: %s", cfg.Cache.Driver)
	}

	switch cfg.Database.Driver {
	case "":
	case "pgx", "postgres", "sqlite3":
		if cfg.Database.URL == "" {
			return fmt.Errorf("database.url is required with database.driver %s", cfg.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be pgx, postgres or sqlite3, got: %s", cfg.Database.Driver)
	}

	switch cfg.Pipeline.Naming {
	case "dash", "snake":
	default:
		return fmt.Errorf("pipeline.naming must be dash or snake, got: %s", cfg.Pipeline.Naming)
	}

	cfg.Pipeline.UpdateMethod = strings.ToUpper(cfg.Pipeline.UpdateMethod)
	if cfg.Pipeline.UpdateMethod != "PATCH" && cfg.Pipeline.UpdateMethod != "PUT" {
		return fmt.Errorf("pipeline.update_method must be PATCH or PUT, got: %s", cfg.Pipeline.UpdateMethod)
	}

	lists := map[string][]string{
		"pipeline.property_name_resolvers": cfg.Pipeline.PropertyNameResolvers,
		"pipeline.property_resolvers":      cfg.Pipeline.PropertyResolvers,
		"pipeline.resource_resolvers":      cfg.Pipeline.ResourceResolvers,
		"pipeline.backends":                cfg.Pipeline.Backends,
		"pipeline.transformers":            cfg.Pipeline.Transformers,
		"pipeline.providers":               registrationNames(cfg.Pipeline.Providers),
		"pipeline.processors":              registrationNames(cfg.Pipeline.Processors),
	}
	for key, names := range lists {
		if err := validateNames(key, names); err != nil {
			return err
		}
	}

	if slices.Contains(registrationNames(cfg.Pipeline.Processors), "stream") && cfg.Stream.Name == "" {
		// Nothing to publish to
		cfg.Pipeline.Processors = slices.DeleteFunc(cfg.Pipeline.Processors, func(r state.Registration) bool {
			return r.Name == "stream"
		})
	}

	return nil
}

func validateNames(key string, names []string) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" {
			return fmt.Errorf("%s contains an empty name", key)
		}
		if seen[name] {
			return fmt.Errorf("%s lists %s twice", key, name)
		}
		seen[name] = true
	}
	return nil
}

func registrationNames(regs []state.Registration) []string {
	names := make([]string, len(regs))
	for i, r := range regs {
		names[i] = r.Name
	}
	return names
}
