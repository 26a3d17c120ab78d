package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cell is a memoized key→value store with two tiers: an in-process map
// checked first, then an optional persistent Cache holding JSON-encoded
// values. Computed values are stored in both tiers; compute errors are never
// cached. Cell is safe for concurrent use.
//
// Values handed out by a Cell are shared between callers and must be treated
// as immutable.
type Cell[T any] struct {
	name  string
	local sync.Map
	size  atomic.Int64
	group singleflight.Group

	store  Cache
	ttl    time.Duration
	logger *zap.Logger
}

type cellOptions struct {
	store  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// CellOption configures a Cell
type CellOption func(*cellOptions)

// WithStore adds a persistent tier. A zero ttl uses the store's default.
func WithStore(store Cache, ttl time.Duration) CellOption {
	return func(o *cellOptions) {
		o.store = store
		o.ttl = ttl
	}
}

// WithLogger sets the logger used for tier diagnostics
func WithLogger(logger *zap.Logger) CellOption {
	return func(o *cellOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewCell creates a cell. The name namespaces keys in the persistent tier,
// so two cells sharing one store never collide.
func NewCell[T any](name string, opts ...CellOption) *Cell[T] {
	o := cellOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Cell[T]{
		name:   name,
		store:  o.store,
		ttl:    o.ttl,
		logger: o.logger.With(zap.String("cell", name)),
	}
}

// Get returns the value cached under key, computing and storing it on a
// miss. Concurrent misses for one key share a single compute call.
func (c *Cell[T]) Get(ctx context.Context, key string, compute func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Peek(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Another flight may have filled the key between Peek and Do
		if v, ok := c.Peek(key); ok {
			return v, nil
		}

		if v, ok := c.load(ctx, key); ok {
			c.remember(key, v)
			return v, nil
		}

		v, err := compute(ctx)
		if err != nil {
			return v, err
		}

		c.remember(key, v)
		c.persist(ctx, key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	out, _ := v.(T)
	return out, nil
}

// Peek returns the in-process value for key without computing it
func (c *Cell[T]) Peek(key string) (T, bool) {
	if v, ok := c.local.Load(key); ok {
		out, _ := v.(T)
		return out, true
	}
	var zero T
	return zero, false
}

// Len returns the number of entries held in process
func (c *Cell[T]) Len() int {
	return int(c.size.Load())
}

// Purge drops every entry of this cell from both tiers. Entries other cells
// keep in a shared store survive. Metadata is static for the life of a
// process, so this is an administrative operation (deployments, tests),
// never part of request handling.
func (c *Cell[T]) Purge(ctx context.Context) error {
	c.local.Range(func(key, _ any) bool {
		c.local.Delete(key)
		return true
	})
	c.size.Store(0)

	if c.store == nil {
		return nil
	}
	return c.store.DeletePrefix(ctx, c.storeKey(""))
}

func (c *Cell[T]) remember(key string, v T) {
	if _, loaded := c.local.LoadOrStore(key, v); !loaded {
		c.size.Add(1)
	}
}

func (c *Cell[T]) storeKey(key string) string {
	return c.name + ":" + key
}

// load reads the persistent tier. Any failure is a miss: the value can
// always be recomputed.
func (c *Cell[T]) load(ctx context.Context, key string) (T, bool) {
	var zero T
	if c.store == nil {
		return zero, false
	}

	data, err := c.store.Get(ctx, c.storeKey(key))
	if err != nil {
		if !IsCacheMiss(err) {
			c.logger.Debug("persistent tier read failed", zap.String("key", key), zap.Error(err))
		}
		return zero, false
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Debug("persistent tier decode failed", zap.String("key", key), zap.Error(err))
		return zero, false
	}

	c.logger.Debug("persistent tier hit", zap.String("key", key))
	return v, true
}

func (c *Cell[T]) persist(ctx context.Context, key string, v T) {
	if c.store == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Debug("persistent tier encode failed", zap.String("key", key), zap.Error(err))
		return
	}

	if err := c.store.Set(ctx, c.storeKey(key), data, c.ttl); err != nil {
		c.logger.Debug("persistent tier write failed", zap.String("key", key), zap.Error(err))
	}
}
