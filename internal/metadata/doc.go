// Package metadata defines the immutable value objects produced by the
// metadata resolution pipeline: resource classes, properties, resources,
// operations and URI variables, plus the typed errors shared by every
// pipeline stage.
//
// Values in this package are never mutated once handed to a caller. Every
// mutator is a WithX method on a value receiver that returns a modified copy
// with its slices and maps cloned, so a resolver running earlier in a chain
// is never surprised by a later one.
//
// Flags that resolvers decide cooperatively (identifier, readable, writable,
// required, read, write) are TriState values. Unset means that no resolver
// has decided yet; False is an explicit decision. The property and resource
// chains normalize Unset flags exactly once, after every resolver ran.
package metadata
