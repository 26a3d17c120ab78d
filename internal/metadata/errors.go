package metadata

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below through errors.Is
var (
	// ErrPropertyNotFound is returned when a property does not exist on a resource
	ErrPropertyNotFound = errors.New("property not found")

	// ErrResourceNotFound is returned when a class is unknown to the resource universe
	ErrResourceNotFound = errors.New("resource not found")

	// ErrOperationNotFound is returned when no operation matches a name or template
	ErrOperationNotFound = errors.New("operation not found")

	// ErrOperationExcluded is returned when an operation exists but not for the requested context
	ErrOperationExcluded = errors.New("operation excluded from context")

	// ErrDuplicateOperation is returned when two operations of a class share a name
	ErrDuplicateOperation = errors.New("duplicate operation name")

	// ErrInvalidMethod is returned when an operation declares no HTTP method or an unknown one
	ErrInvalidMethod = errors.New("invalid http method")

	// ErrInvalidURIVariable is returned when a URI variable cannot be converted
	ErrInvalidURIVariable = errors.New("invalid uri variable")

	// ErrNoStrategy is returned when no processor supports a write
	ErrNoStrategy = errors.New("no strategy found")

	// ErrValidationFailed is returned when the validation collaborator rejects data
	ErrValidationFailed = errors.New("validation failed")
)

// PropertyNotFoundError reports a property missing from every metadata source
type PropertyNotFoundError struct {
	Class    ResourceClass
	Property string
}

func (e *PropertyNotFoundError) Error() string {
	return fmt.Sprintf("property %q not found on resource %s", e.Property, e.Class)
}

func (e *PropertyNotFoundError) Is(target error) bool {
	return target == ErrPropertyNotFound
}

// ResourceNotFoundError reports a class unknown to the resource universe
type ResourceNotFoundError struct {
	Class ResourceClass
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("resource %s not found", e.Class)
}

func (e *ResourceNotFoundError) Is(target error) bool {
	return target == ErrResourceNotFound
}

// OperationNotFoundError reports a missing operation. Class is empty when
// the whole universe was searched.
type OperationNotFoundError struct {
	Class     ResourceClass
	Operation string
}

func (e *OperationNotFoundError) Error() string {
	if e.Class == "" {
		return fmt.Sprintf("operation %q not found", e.Operation)
	}
	return fmt.Sprintf("operation %q not found on resource %s", e.Operation, e.Class)
}

func (e *OperationNotFoundError) Is(target error) bool {
	return target == ErrOperationNotFound
}

// OperationExcludedError reports an operation that matched but is not
// available in the requested context, e.g. a GraphQL-only operation looked
// up through the REST path.
type OperationExcludedError struct {
	Class     ResourceClass
	Operation string
	Context   string
}

func (e *OperationExcludedError) Error() string {
	return fmt.Sprintf("operation %q of resource %s is not available for %s", e.Operation, e.Class, e.Context)
}

func (e *OperationExcludedError) Is(target error) bool {
	return target == ErrOperationExcluded
}

// DuplicateOperationError reports two operations of one class sharing a name
type DuplicateOperationError struct {
	Class     ResourceClass
	Operation string
}

func (e *DuplicateOperationError) Error() string {
	return fmt.Sprintf("operation name %q is used twice on resource %s", e.Operation, e.Class)
}

func (e *DuplicateOperationError) Is(target error) bool {
	return target == ErrDuplicateOperation
}

// InvalidMethodError reports an operation whose method is empty or not an
// HTTP method operations may use
type InvalidMethodError struct {
	Class     ResourceClass
	Operation string
	Method    string
}

func (e *InvalidMethodError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("operation %q of resource %s has no http method", e.Operation, e.Class)
	}
	return fmt.Sprintf("operation %q of resource %s has unknown http method %q", e.Operation, e.Class, e.Method)
}

func (e *InvalidMethodError) Is(target error) bool {
	return target == ErrInvalidMethod
}

// InvalidURIVariableError reports a URI variable that could not be turned
// into a typed value
type InvalidURIVariableError struct {
	Parameter string
	Value     string
	Err       error
}

func (e *InvalidURIVariableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid uri variable %q: %q", e.Parameter, e.Value)
	}
	return fmt.Sprintf("invalid uri variable %q: %q: %v", e.Parameter, e.Value, e.Err)
}

func (e *InvalidURIVariableError) Is(target error) bool {
	return target == ErrInvalidURIVariable
}

func (e *InvalidURIVariableError) Unwrap() error {
	return e.Err
}

// NoStrategyError reports a dispatch that no registered strategy supports
type NoStrategyError struct {
	Kind      string // "provider" or "processor"
	Class     ResourceClass
	Operation string
}

func (e *NoStrategyError) Error() string {
	return fmt.Sprintf("no %s supports operation %q of resource %s", e.Kind, e.Operation, e.Class)
}

func (e *NoStrategyError) Is(target error) bool {
	return target == ErrNoStrategy
}

// ValidationError transports a failure raised by the validation
// collaborator. The pipeline does not interpret it.
type ValidationError struct {
	Class      ResourceClass
	Operation  string
	Violations []Violation
	Err        error
}

// Violation is one constraint violation reported by the validator
type Violation struct {
	Property string `json:"property"`
	Message  string `json:"message"`
}

func (e *ValidationError) Error() string {
	switch {
	case len(e.Violations) == 1:
		return fmt.Sprintf("validation failed: %s: %s", e.Violations[0].Property, e.Violations[0].Message)
	case len(e.Violations) > 1:
		return fmt.Sprintf("validation failed: %d violations", len(e.Violations))
	case e.Err != nil:
		return fmt.Sprintf("validation failed: %v", e.Err)
	}
	return "validation failed"
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsPropertyNotFound returns true if the error is a missing property
func IsPropertyNotFound(err error) bool {
	return errors.Is(err, ErrPropertyNotFound)
}

// IsNotFound returns true for missing resources and missing operations
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResourceNotFound) || errors.Is(err, ErrOperationNotFound)
}

// IsInvalidMethod returns true if the error is an empty or unknown method
func IsInvalidMethod(err error) bool {
	return errors.Is(err, ErrInvalidMethod)
}

// IsInvalidURIVariable returns true if the error is an invalid URI variable
func IsInvalidURIVariable(err error) bool {
	return errors.Is(err, ErrInvalidURIVariable)
}

// IsNoStrategy returns true if no strategy supported a dispatch
func IsNoStrategy(err error) bool {
	return errors.Is(err, ErrNoStrategy)
}

// IsValidationFailed returns true if the error is a validation failure
func IsValidationFailed(err error) bool {
	return errors.Is(err, ErrValidationFailed)
}
