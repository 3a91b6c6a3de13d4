package flowtify

import "context"

// nestedStep runs a whole Definition as a single step.
type nestedStep[R any] struct {
	key   StepKey
	def   *Definition[R]
	input InputResolver
}

// Name returns the key the step was created with.
func (s *nestedStep[R]) Name() StepKey {
	return s.key
}

// Execute runs the wrapped definition against r and returns its output. The
// child's final context is merged into c (the child wins on collision,
// InputKey excepted). Run on its own, the child's trace is discarded; inside
// a workflow the engine keeps it so the child can be compensated.
func (s *nestedStep[R]) Execute(ctx context.Context, input any, c *Context, r R) (any, error) {
	output, _, err := s.run(ctx, input, c, r)
	return output, err
}

// run is Execute returning the trace of this particular invocation. The
// trace belongs to the caller's step record, so one adapter can be placed
// under several keys without the runs overwriting each other.
func (s *nestedStep[R]) run(ctx context.Context, input any, c *Context, r R) (any, *nestedRun[R], error) {
	if s.input != nil {
		input = s.input(c)
	}

	child, output, err := s.def.execute(ctx, input, r)
	if err != nil {
		return nil, nil, err
	}

	c.merge(child.state)
	return output, &nestedRun[R]{trace: child.trace, notifier: child.notifier}, nil
}

// AsStep converts the definition into a Step that can be used in other
// workflows, including inside parallel groups and conditional bodies. key is
// the step's default name. WithInput sets a resolver computing the child's
// input from the parent's context.
//
// When a later step of the parent fails, the child's completed steps are
// compensated in reverse order. A child that fails compensates its own
// completed steps before returning the error, so the parent never compensates
// a failed nested step. The same step may be used any number of times; each
// use is compensated on its own.
//
// Example:
//
//	billing := flowtify.New(deps).
//		Step("charge", charge).
//		Step("invoice", invoice).
//		MustBuild()
//
//	checkout := flowtify.New(deps).
//		Step("order", createOrder).
//		Step(flowtify.Auto, billing.AsStep("billing", flowtify.WithInput(orderTotal))).
//		MustBuild()
func (d *Definition[R]) AsStep(key StepKey, opts ...StepOption) Step[R] {
	if len(d.groups) == 0 {
		panic("cannot convert empty workflow to step")
	}

	config := applyStepOptions(opts)
	return &nestedStep[R]{
		key:   key,
		def:   d,
		input: config.input,
	}
}
