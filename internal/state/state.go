// Package state dispatches reads and writes of an operation to the first
// registered strategy that supports it. Providers read, processors write.
//
// Candidates are tried in registration order. The first supporting
// candidate executes and its result is the result of the dispatch. A
// candidate registered as resumable does not end the scan: later
// supporting candidates execute as well, until a non-resumable one has run.
package state

import (
	"context"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

// Context is the per-request state handed to strategies
type Context struct {
	// Groups are the serialization groups of the request
	Groups []string
	// Previous is the item as it was before a write, when known
	Previous any
	// Values carries transport-specific entries
	Values map[string]any
	// Violations are transported from validation, never interpreted
	Violations []metadata.Violation
}

// Provider reads the data of an operation
type Provider interface {
	Supports(ctx context.Context, op metadata.Operation, sc Context) bool
	Provide(ctx context.Context, op metadata.Operation, uriVariables map[string]any, sc Context) (any, error)
}

// Processor writes the data of an operation. A nil result keeps the input
// data.
type Processor interface {
	Supports(ctx context.Context, op metadata.Operation, sc Context) bool
	Process(ctx context.Context, data any, op metadata.Operation, uriVariables map[string]any, sc Context) (any, error)
}

// Registration declares a strategy's name and capabilities. Capabilities
// are configuration; they are never inferred from the strategy's type.
type Registration struct {
	Name string `mapstructure:"name" yaml:"name"`
	// Cacheable strategies have their Supports answer memoized per
	// (class, operation)
	Cacheable bool `mapstructure:"cacheable" yaml:"cacheable"`
	// Resumable strategies let the dispatch continue after they ran
	Resumable bool `mapstructure:"resumable" yaml:"resumable"`
}

// ProviderEntry is a registered provider
type ProviderEntry struct {
	Registration
	Provider Provider
}

// ProcessorEntry is a registered processor
type ProcessorEntry struct {
	Registration
	Processor Processor
}

// Outcome describes one dispatch
type Outcome struct {
	// Result is the authoritative result
	Result any
	// Matched is false when no candidate supported the operation
	Matched bool
	// Strategy is the name of the candidate that produced Result
	Strategy string
	// Executed lists every candidate that ran, in order
	Executed []string
}

// Validator checks data before it is processed
type Validator interface {
	Validate(ctx context.Context, data any, groups []string) error
}

// ValidatorFunc adapts a function to Validator
type ValidatorFunc func(ctx context.Context, data any, groups []string) error

// Validate implements Validator
func (f ValidatorFunc) Validate(ctx context.Context, data any, groups []string) error {
	return f(ctx, data, groups)
}
