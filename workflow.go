package flowtify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// group is a step group. The set of variants is closed: sequentialGroup,
// parallelGroup and conditionalGroup.
type group[R any] interface {
	kind() GroupKind
}

type sequentialGroup[R any] struct {
	step boundStep[R]
}

type parallelGroup[R any] struct {
	members []boundStep[R]
}

type conditionalGroup[R any] struct {
	predicate Predicate
	body      []group[R]
}

func (sequentialGroup[R]) kind() GroupKind  { return SequentialGroup }
func (parallelGroup[R]) kind() GroupKind    { return ParallelGroup }
func (conditionalGroup[R]) kind() GroupKind { return ConditionalGroup }

// Definition is an immutable, reusable workflow produced by Builder.Build.
// Every call to Execute runs with its own Context and Trace, so a Definition
// may be executed any number of times, concurrently.
//
// Example:
//
//	def := flowtify.New(deps).
//		Step("first", first).
//		Step("second", second).
//		MustBuild()
//
//	result, err := def.Execute(ctx, "initial input")
type Definition[R any] struct {
	id        WorkflowID
	resolver  R
	groups    []group[R]
	observers []Observer
}

// Len returns the number of top-level groups.
func (d *Definition[R]) Len() int {
	return len(d.groups)
}

// Execute runs the workflow with the given input and returns its output:
//   - when the last group is sequential, the output of that step;
//   - when the last group is parallel, a map[string]any of each member's output;
//   - when the last group is conditional, a map[string]any copy of the whole context.
//
// When a step fails, every step that already completed is compensated in
// reverse order and the step's error is returned as is. If compensators fail
// too, the error is a *CompensationError wrapping the step's error.
func (d *Definition[R]) Execute(ctx context.Context, input any) (any, error) {
	_, output, err := d.execute(ctx, input, d.resolver)
	return output, err
}

// execute runs the definition as a top-level or nested execution against r.
func (d *Definition[R]) execute(ctx context.Context, input any, r R) (*execution[R], any, error) {
	if len(d.groups) == 0 {
		return nil, nil, ErrNoSteps
	}

	executionID := d.id
	if executionID == "" {
		executionID = WorkflowID(uuid.New().String())
	}
	ctx = withExecutionID(ctx, executionID)

	n := notifier{observers: d.observers}
	startTime := time.Now()
	n.workflowStart(ctx, executionID)

	e, output, err := runGroups(ctx, n, d.groups, input, r)

	n.workflowComplete(ctx, executionID, time.Since(startTime), err)
	return e, output, err
}

// execution is the state of one run over a list of groups: the live context
// and the trace of what completed. It never outlives the run.
type execution[R any] struct {
	notifier notifier
	resolver R
	state    *Context
	trace    *Trace[R]
}

// runGroups processes groups in order against a fresh context seeded with
// input. On failure the groups completed so far are compensated before the
// error is returned.
func runGroups[R any](ctx context.Context, n notifier, groups []group[R], input any, r R) (*execution[R], any, error) {
	e := &execution[R]{
		notifier: n,
		resolver: r,
		state:    NewContext(input),
		trace:    newTrace[R](),
	}

	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return e, nil, e.rollback(ctx, fmt.Errorf("context cancelled before group %d: %w", i, err))
		}

		if err := e.process(ctx, i, g); err != nil {
			return e, nil, e.rollback(ctx, err)
		}
	}

	return e, e.output(groups[len(groups)-1]), nil
}

func (e *execution[R]) process(ctx context.Context, index int, g group[R]) error {
	switch g := g.(type) {
	case sequentialGroup[R]:
		return e.processSequential(ctx, g)
	case parallelGroup[R]:
		return e.processParallel(ctx, g)
	case conditionalGroup[R]:
		return e.processConditional(ctx, index, g)
	default:
		panic(fmt.Sprintf("flowtify: unknown group %T", g))
	}
}

func (e *execution[R]) processSequential(ctx context.Context, g sequentialGroup[R]) error {
	output, nested, err := e.runStep(ctx, g.step, e.state)
	if err != nil {
		return err
	}

	e.state.set(string(g.step.key), output)
	e.trace.append(sequentialRecord[R]{
		step: stepRecord[R]{key: g.step.key, output: output, step: g.step.step, nested: nested},
	})
	return nil
}

// runStep resolves the step's input from c and executes the step against c.
// For a nested workflow step it also returns the child run of this
// invocation.
func (e *execution[R]) runStep(ctx context.Context, bs boundStep[R], c *Context) (output any, nested *nestedRun[R], err error) {
	input := resolveInput(bs, c)

	stepStartTime := time.Now()
	e.notifier.stepStart(ctx, bs.key)

	if ns, ok := bs.step.(*nestedStep[R]); ok {
		output, nested, err = ns.run(ctx, input, c, e.resolver)
	} else {
		output, err = bs.step.Execute(ctx, input, c, e.resolver)
	}

	e.notifier.stepComplete(ctx, bs.key, time.Since(stepStartTime), err)
	return output, nested, err
}

// resolveInput picks a step's input: the explicit resolver if any, otherwise
// the context value under the step's key, otherwise the execution input.
func resolveInput[R any](bs boundStep[R], c *Context) any {
	if bs.input != nil {
		return bs.input(c)
	}
	if v, ok := c.Get(string(bs.key)); ok {
		return v
	}
	return c.Input()
}

// output derives the execution result from the last group.
func (e *execution[R]) output(last group[R]) any {
	switch g := last.(type) {
	case sequentialGroup[R]:
		v, _ := e.state.Get(string(g.step.key))
		return v
	case parallelGroup[R]:
		out := make(map[string]any, len(g.members))
		for _, m := range g.members {
			out[string(m.key)], _ = e.state.Get(string(m.key))
		}
		return out
	case conditionalGroup[R]:
		return e.state.Map()
	default:
		panic(fmt.Sprintf("flowtify: unknown group %T", last))
	}
}

// ExecuteTyped is a type-safe helper that executes the workflow and returns a typed result.
//
// Example:
//
//	result, err := flowtify.ExecuteTyped[Subscription](ctx, def, request)
//	if err != nil {
//		return fmt.Errorf("executing workflow: %w", err)
//	}
func ExecuteTyped[Out, R any](ctx context.Context, d *Definition[R], input any) (Out, error) {
	var zero Out

	result, err := d.Execute(ctx, input)
	if err != nil {
		return zero, err
	}

	typedResult, ok := result.(Out)
	if !ok {
		return zero, typeMismatch[Out](result, "workflow output")
	}

	return typedResult, nil
}
