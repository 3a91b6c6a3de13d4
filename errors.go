package flowtify

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrTypeMismatch is returned when a value does not have the expected type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidStepName is returned when attempting to use Auto with an unnamed step.
	ErrInvalidStepName = errors.New("cannot use Auto with unnamed step")

	// ErrNoSteps is returned when a workflow, parallel group or conditional body has no steps.
	ErrNoSteps = errors.New("workflow has no steps")

	// ErrReservedKey is returned when a step is declared under, or a value is written to, InputKey.
	ErrReservedKey = errors.New("key is reserved")

	// ErrNilStep is returned when a nil step is added to a workflow.
	ErrNilStep = errors.New("step is nil")

	// ErrNilPredicate is returned when a conditional group has no predicate.
	ErrNilPredicate = errors.New("predicate is nil")
)

// TypeMismatchError is returned when a step input or a context value has an unexpected type.
type TypeMismatchError struct {
	Expected reflect.Type
	Got      reflect.Type
	Context  string
}

// Error returns the error message.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected type %v, got %v", e.Context, e.Expected, e.Got)
}

// Is reports whether target is ErrTypeMismatch.
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// DuplicateKeyError is returned by Build when two members of one parallel group share a key.
type DuplicateKeyError struct {
	Key   StepKey
	Group int
}

// Error returns the error message.
func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("group %d: duplicate step key %q", e.Group, e.Key)
}

// CompensationFailure records a compensator that returned an error.
type CompensationFailure struct {
	Key StepKey
	Err error
}

// Error returns the error message.
func (f CompensationFailure) Error() string {
	return fmt.Sprintf("compensating step %q: %v", f.Key, f.Err)
}

// Unwrap returns the compensator's error.
func (f CompensationFailure) Unwrap() error {
	return f.Err
}

// CompensationError is returned by Execute when the workflow failed and at
// least one compensator failed while rolling back. Cause is the error that
// triggered the rollback; errors.Is and errors.As see both the cause and every
// failure.
//
// Example:
//
//	_, err := def.Execute(ctx, input)
//	var compErr *flowtify.CompensationError
//	if errors.As(err, &compErr) {
//		for _, f := range compErr.Failures {
//			log.Printf("rollback of %s failed: %v", f.Key, f.Err)
//		}
//	}
type CompensationError struct {
	Cause    error
	Failures []CompensationFailure
}

// Error returns the error message.
func (e *CompensationError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("%v (compensation failed: %s)", e.Cause, strings.Join(msgs, "; "))
}

// Unwrap returns the cause followed by every compensation failure.
func (e *CompensationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	errs = append(errs, e.Cause)
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

// withCompensationFailures attaches failures to cause. The cause is returned
// unchanged when there are no failures. If cause already carries failures from
// a nested rollback, the new ones are appended to it.
func withCompensationFailures(cause error, failures []CompensationFailure) error {
	if len(failures) == 0 {
		return cause
	}

	if existing, ok := cause.(*CompensationError); ok {
		merged := make([]CompensationFailure, 0, len(existing.Failures)+len(failures))
		merged = append(merged, existing.Failures...)
		merged = append(merged, failures...)
		return &CompensationError{Cause: existing.Cause, Failures: merged}
	}

	return &CompensationError{Cause: cause, Failures: failures}
}

// PanicError is returned in place of a step's error when the step panicked
// while running as a member of a parallel group.
type PanicError struct {
	Key   StepKey
	Value any
}

// Error returns the error message.
func (e *PanicError) Error() string {
	return fmt.Sprintf("step %q panicked: %v", e.Key, e.Value)
}

func typeMismatch[T any](got any, context string) *TypeMismatchError {
	var zero T
	return &TypeMismatchError{
		Expected: reflect.TypeOf(zero),
		Got:      reflect.TypeOf(got),
		Context:  context,
	}
}
