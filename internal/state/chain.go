package state

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

// ProviderChain dispatches reads
type ProviderChain struct {
	dispatcher
	entries []ProviderEntry
}

// NewProviderChain creates a provider chain. Entry order is dispatch order.
func NewProviderChain(entries []ProviderEntry, opts ...Option) *ProviderChain {
	return &ProviderChain{
		dispatcher: newDispatcher("provider", newOptions("provider", opts)),
		entries:    slices.Clone(entries),
	}
}

// Entries returns the registered providers in order
func (c *ProviderChain) Entries() []ProviderEntry {
	return slices.Clone(c.entries)
}

// Provide returns the data of op. It returns nil without error when no
// provider supports op.
func (c *ProviderChain) Provide(ctx context.Context, op metadata.Operation, uriVariables map[string]any, sc Context) (any, error) {
	out, err := c.Dispatch(ctx, op, uriVariables, sc)
	return out.Result, err
}

// Dispatch is Provide with the dispatch details
func (c *ProviderChain) Dispatch(ctx context.Context, op metadata.Operation, uriVariables map[string]any, sc Context) (Outcome, error) {
	ctx, span := c.start(ctx, op)
	defer span.End()

	regs := make([]Registration, len(c.entries))
	for i, e := range c.entries {
		regs[i] = e.Registration
	}

	return c.scan(ctx, span, op, regs,
		func(i int) bool {
			return c.supported(ctx, c.entries[i].Registration, c.entries[i].Provider, op, sc)
		},
		func(i int, _ any) (any, error) {
			data, err := c.entries[i].Provider.Provide(ctx, op, uriVariables, sc)
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", c.entries[i].Name, err)
			}
			return data, nil
		},
	)
}

// ProcessorChain dispatches writes
type ProcessorChain struct {
	dispatcher
	entries   []ProcessorEntry
	validator Validator
}

// NewProcessorChain creates a processor chain. Entry order is dispatch
// order.
func NewProcessorChain(entries []ProcessorEntry, opts ...Option) *ProcessorChain {
	o := newOptions("processor", opts)
	return &ProcessorChain{
		dispatcher: newDispatcher("processor", o),
		entries:    slices.Clone(entries),
		validator:  o.validator,
	}
}

// Entries returns the registered processors in order
func (c *ProcessorChain) Entries() []ProcessorEntry {
	return slices.Clone(c.entries)
}

// Process writes data for op and returns the written data. It fails with
// a NoStrategyError when no processor supports op.
func (c *ProcessorChain) Process(ctx context.Context, data any, op metadata.Operation, uriVariables map[string]any, sc Context) (any, error) {
	out, err := c.Dispatch(ctx, data, op, uriVariables, sc)
	return out.Result, err
}

// Dispatch is Process with the dispatch details
func (c *ProcessorChain) Dispatch(ctx context.Context, data any, op metadata.Operation, uriVariables map[string]any, sc Context) (Outcome, error) {
	ctx, span := c.start(ctx, op)
	defer span.End()

	if err := c.validate(ctx, data, op); err != nil {
		span.RecordError(err)
		return Outcome{}, err
	}

	regs := make([]Registration, len(c.entries))
	for i, e := range c.entries {
		regs[i] = e.Registration
	}

	out, err := c.scan(ctx, span, op, regs,
		func(i int) bool {
			return c.supported(ctx, c.entries[i].Registration, c.entries[i].Processor, op, sc)
		},
		func(i int, current any) (any, error) {
			input := data
			if current != nil {
				input = current
			}
			result, err := c.entries[i].Processor.Process(ctx, input, op, uriVariables, sc)
			if err != nil {
				return nil, fmt.Errorf("processor %s: %w", c.entries[i].Name, err)
			}
			if result == nil {
				return input, nil
			}
			return result, nil
		},
	)
	if err != nil {
		return out, err
	}
	if !out.Matched {
		return out, &metadata.NoStrategyError{Kind: "processor", Class: op.Class, Operation: op.Name}
	}
	return out, nil
}

func (c *ProcessorChain) validate(ctx context.Context, data any, op metadata.Operation) error {
	if c.validator == nil || op.IsDelete() {
		return nil
	}

	err := c.validator.Validate(ctx, data, op.Denormalization.Groups)
	if err == nil {
		return nil
	}

	var verr *metadata.ValidationError
	if errors.As(err, &verr) {
		if verr.Class == "" {
			verr.Class = op.Class
		}
		if verr.Operation == "" {
			verr.Operation = op.Name
		}
		return verr
	}
	return &metadata.ValidationError{Class: op.Class, Operation: op.Name, Err: err}
}
