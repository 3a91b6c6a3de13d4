package flowtify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// rollback compensates everything in the execution's trace and returns cause,
// carrying any compensation failures. Compensators run even when ctx has been
// cancelled; they keep its values but not its cancellation.
func (e *execution[R]) rollback(ctx context.Context, cause error) error {
	failures := compensateTrace(context.WithoutCancel(ctx), e.notifier, e.trace, e.state, e.resolver)
	return withCompensationFailures(cause, failures)
}

// compensateTrace walks t newest record first. Sequential records are
// compensated one at a time, parallel records concurrently, and conditional
// records by recursing into the child trace. Compensation is best effort: a
// failing compensator is recorded and the walk continues.
func compensateTrace[R any](ctx context.Context, n notifier, t *Trace[R], c *Context, r R) []CompensationFailure {
	var failures []CompensationFailure
	for _, rec := range t.reversed() {
		failures = append(failures, compensateRecord(ctx, n, rec, c, r)...)
	}
	return failures
}

func compensateRecord[R any](ctx context.Context, n notifier, rec groupRecord[R], c *Context, r R) []CompensationFailure {
	switch rec := rec.(type) {
	case sequentialRecord[R]:
		return compensateRecorded(ctx, n, rec.step, c, r)
	case parallelRecord[R]:
		contexts := make([]*Context, len(rec.members))
		for i := range contexts {
			contexts[i] = c
		}
		return compensateConcurrently(ctx, n, rec.members, contexts, r)
	case conditionalRecord[R]:
		return compensateTrace(ctx, n, rec.child, c, r)
	default:
		panic(fmt.Sprintf("flowtify: unknown group record %T", rec))
	}
}

// compensateConcurrently compensates every step at once, each against its
// matching context, and waits for all of them. Failures are reported in
// declaration order.
func compensateConcurrently[R any](ctx context.Context, n notifier, steps []stepRecord[R], contexts []*Context, r R) []CompensationFailure {
	results := make([][]CompensationFailure, len(steps))

	var eg errgroup.Group
	for i, sr := range steps {
		eg.Go(func() error {
			results[i] = compensateRecorded(ctx, n, sr, contexts[i], r)
			return nil
		})
	}
	_ = eg.Wait()

	var failures []CompensationFailure
	for _, f := range results {
		failures = append(failures, f...)
	}
	return failures
}

// compensateRecorded undoes one completed step. A nested workflow step is
// undone by replaying the child trace of that invocation, and its failures
// are reported under the child's step keys.
func compensateRecorded[R any](ctx context.Context, n notifier, sr stepRecord[R], c *Context, r R) []CompensationFailure {
	if sr.nested != nil {
		return compensateTrace(ctx, sr.nested.notifier, sr.nested.trace, c, r)
	}
	if err := compensateStep(ctx, n, sr, c, r); err != nil {
		return []CompensationFailure{{Key: sr.key, Err: err}}
	}
	return nil
}

// compensateStep calls the step's compensator with the output it produced.
// Steps without a compensator are skipped. A panicking compensator is
// reported as a *PanicError.
func compensateStep[R any](ctx context.Context, n notifier, sr stepRecord[R], c *Context, r R) (err error) {
	comp, ok := compensatorOf(sr.step)
	if !ok {
		return nil
	}

	startTime := time.Now()
	n.compensationStart(ctx, sr.key)
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Key: sr.key, Value: p}
		}
		n.compensationComplete(ctx, sr.key, time.Since(startTime), err)
	}()

	return comp.Compensate(ctx, sr.output, c, r)
}

// Compensate replays t in reverse, as a failed execution would, and returns
// the joined compensation failures.
func (t *Trace[R]) Compensate(ctx context.Context, c *Context, r R) error {
	return joinFailures(compensateTrace(ctx, notifier{}, t, c, r))
}

func joinFailures(failures []CompensationFailure) error {
	if len(failures) == 0 {
		return nil
	}
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}
