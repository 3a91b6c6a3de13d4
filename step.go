package flowtify

import "context"

// Step represents a single unit of work in a workflow.
// Steps are stateless and may be shared between workflows and executions.
//
// Example:
//
//	step := flowtify.NewStep(
//		func(ctx context.Context, input any, c *flowtify.Context, deps *Deps) (any, error) {
//			return deps.Users.Create(ctx, input)
//		},
//		nil,
//	)
type Step[R any] interface {
	// Name returns the step's default key, or "" if the step has no default key.
	Name() StepKey

	// Execute runs the step with the resolved input and returns its output.
	Execute(ctx context.Context, input any, c *Context, r R) (any, error)
}

// Compensator is implemented by steps that can undo their own work.
// Compensate receives the output the step produced.
type Compensator[R any] interface {
	Compensate(ctx context.Context, output any, c *Context, r R) error
}

// ExecuteFunc is the function form of Step.Execute.
type ExecuteFunc[R any] func(ctx context.Context, input any, c *Context, r R) (any, error)

// CompensateFunc is the function form of Compensator.Compensate.
type CompensateFunc[R any] func(ctx context.Context, output any, c *Context, r R) error

// funcStep is an implementation of Step backed by plain functions.
type funcStep[R any] struct {
	name       StepKey
	execute    ExecuteFunc[R]
	compensate CompensateFunc[R]
}

func (s *funcStep[R]) Name() StepKey {
	return s.name
}

func (s *funcStep[R]) Execute(ctx context.Context, input any, c *Context, r R) (any, error) {
	return s.execute(ctx, input, c, r)
}

// compensatingFuncStep adds Compensator to funcStep. Keeping them as separate
// types lets callers detect compensability with a type assertion.
type compensatingFuncStep[R any] struct {
	funcStep[R]
}

func (s *compensatingFuncStep[R]) Compensate(ctx context.Context, output any, c *Context, r R) error {
	return s.compensate(ctx, output, c, r)
}

// NewStep creates an unnamed step. compensate may be nil.
//
// Example:
//
//	chargeStep := flowtify.NewStep(
//		func(ctx context.Context, input any, c *flowtify.Context, p *Payments) (any, error) {
//			return p.Charge(ctx, input.(Order))
//		},
//		func(ctx context.Context, output any, c *flowtify.Context, p *Payments) error {
//			return p.Refund(ctx, output.(Receipt))
//		},
//	)
func NewStep[R any](execute ExecuteFunc[R], compensate CompensateFunc[R]) Step[R] {
	return NamedStep(Auto, execute, compensate)
}

// NamedStep creates a step with a default key. compensate may be nil.
//
// Example:
//
//	authStep := flowtify.NamedStep("authenticate", authFn, nil)
//
//	// Use with Auto to inherit the default key
//	b.Step(flowtify.Auto, authStep) // Uses "authenticate"
func NamedStep[R any](name StepKey, execute ExecuteFunc[R], compensate CompensateFunc[R]) Step[R] {
	if execute == nil {
		return nil
	}

	s := funcStep[R]{
		name:       name,
		execute:    execute,
		compensate: compensate,
	}
	if compensate == nil {
		return &s
	}
	return &compensatingFuncStep[R]{funcStep: s}
}

// TypedStep creates an unnamed step whose input is asserted to In before the
// function is called. A mismatching input fails the step with *TypeMismatchError.
// compensate may be nil.
//
// Example:
//
//	subscribe := flowtify.TypedStep(
//		func(ctx context.Context, in SubscriptionRequest, c *flowtify.Context, deps *Deps) (Subscription, error) {
//			return deps.Billing.Subscribe(ctx, in.UserID)
//		},
//		nil,
//	)
func TypedStep[In, Out, R any](
	execute func(ctx context.Context, input In, c *Context, r R) (Out, error),
	compensate func(ctx context.Context, output Out, c *Context, r R) error,
) Step[R] {
	return NamedTypedStep(Auto, execute, compensate)
}

// NamedTypedStep is TypedStep with a default key.
func NamedTypedStep[In, Out, R any](
	name StepKey,
	execute func(ctx context.Context, input In, c *Context, r R) (Out, error),
	compensate func(ctx context.Context, output Out, c *Context, r R) error,
) Step[R] {
	if execute == nil {
		return nil
	}

	exec := func(ctx context.Context, input any, c *Context, r R) (any, error) {
		typedInput, ok := input.(In)
		if !ok {
			return nil, typeMismatch[In](input, "step input")
		}
		return execute(ctx, typedInput, c, r)
	}

	var comp CompensateFunc[R]
	if compensate != nil {
		comp = func(ctx context.Context, output any, c *Context, r R) error {
			typedOutput, ok := output.(Out)
			if !ok {
				return typeMismatch[Out](output, "compensation output")
			}
			return compensate(ctx, typedOutput, c, r)
		}
	}

	return NamedStep(name, exec, comp)
}

// compensatorOf returns the step's compensator, if it has one.
func compensatorOf[R any](step Step[R]) (Compensator[R], bool) {
	comp, ok := step.(Compensator[R])
	return comp, ok
}
