package state

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/conduit-lang/apimeta/internal/cache"
	"github.com/conduit-lang/apimeta/internal/metadata"
)

const tracerName = "github.com/conduit-lang/apimeta/internal/state"

type options struct {
	logger    *zap.Logger
	tracer    trace.Tracer
	cellOpts  []cache.CellOption
	validator Validator
}

// Option configures a chain
type Option func(*options)

// WithLogger sets the chain logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracerProvider sets where dispatch spans go. The global provider is
// used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithSupportsCache configures the cell memoizing Supports answers of
// cacheable candidates
func WithSupportsCache(opts ...cache.CellOption) Option {
	return func(o *options) {
		o.cellOpts = append(o.cellOpts, opts...)
	}
}

// WithValidator sets the validator a processor chain runs before dispatch
func WithValidator(v Validator) Option {
	return func(o *options) {
		o.validator = v
	}
}

func newOptions(kind string, opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With(zap.String("chain", kind))
	return o
}

// supporter is the part shared by providers and processors
type supporter interface {
	Supports(ctx context.Context, op metadata.Operation, sc Context) bool
}

// dispatcher holds the scan shared by both chains
type dispatcher struct {
	kind     string
	supports *cache.Cell[bool]
	tracer   trace.Tracer
	logger   *zap.Logger
}

func newDispatcher(kind string, o options) dispatcher {
	return dispatcher{
		kind:     kind,
		supports: cache.NewCell[bool](kind+"_supports", append([]cache.CellOption{cache.WithLogger(o.logger)}, o.cellOpts...)...),
		tracer:   o.tracer,
		logger:   o.logger,
	}
}

func (d *dispatcher) start(ctx context.Context, op metadata.Operation) (context.Context, trace.Span) {
	return d.tracer.Start(ctx, "state."+spanVerb(d.kind), trace.WithAttributes(
		attribute.String("apimeta.class", op.Class.String()),
		attribute.String("apimeta.operation", op.Name),
		attribute.String("apimeta.method", op.Method),
	))
}

func spanVerb(kind string) string {
	if kind == "provider" {
		return "provide"
	}
	return "process"
}

// supported asks s whether it supports op, memoizing the answer of
// cacheable candidates. Supports answers depend only on the operation for
// such candidates.
func (d *dispatcher) supported(ctx context.Context, reg Registration, s supporter, op metadata.Operation, sc Context) bool {
	if !reg.Cacheable {
		return s.Supports(ctx, op, sc)
	}

	key := cache.Key(d.kind, op.Class, op.Name, reg.Name)
	ok, _ := d.supports.Get(ctx, key, func(ctx context.Context) (bool, error) {
		return s.Supports(ctx, op, sc), nil
	})
	return ok
}

// scan runs the candidates. run executes candidate i with the current
// authoritative result (nil before the first match).
func (d *dispatcher) scan(ctx context.Context, span trace.Span, op metadata.Operation, regs []Registration, supports func(i int) bool, run func(i int, current any) (any, error)) (Outcome, error) {
	var out Outcome
	for i, reg := range regs {
		if !supports(i) {
			continue
		}

		result, err := run(i, out.Result)
		out.Executed = append(out.Executed, reg.Name)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return out, err
		}

		if !out.Matched {
			out.Matched = true
			out.Result = result
			out.Strategy = reg.Name
			span.SetAttributes(attribute.String("apimeta.strategy", reg.Name))
		}

		d.logger.Debug("strategy executed",
			zap.String("strategy", reg.Name),
			zap.Stringer("class", op.Class),
			zap.String("operation", op.Name),
			zap.Bool("resumable", reg.Resumable))

		if !reg.Resumable {
			break
		}
	}
	span.SetAttributes(attribute.Bool("apimeta.matched", out.Matched))
	return out, nil
}

// Purge drops the memoized Supports answers
func (d *dispatcher) Purge(ctx context.Context) error {
	return d.supports.Purge(ctx)
}
