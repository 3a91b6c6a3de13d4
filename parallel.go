package flowtify

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// memberResult holds the result of a single parallel member.
type memberResult[R any] struct {
	output any
	nested *nestedRun[R]
	err    error
	state  *Context
}

// processParallel runs every member concurrently and waits for all of them.
//
// The context is snapshotted once when the group starts. Each member resolves
// its input from the snapshot and runs against a private copy of it, so no
// member observes what a sibling wrote. A failing member does not cancel its
// siblings.
//
// When any member fails, the members that succeeded are compensated and the
// error of the first failed member in declaration order is returned. Otherwise
// each member's writes and output are merged into the live context in
// declaration order and one record holding every member is appended.
func (e *execution[R]) processParallel(ctx context.Context, g parallelGroup[R]) error {
	snapshot := e.state.clone()
	results := make([]memberResult[R], len(g.members))

	var eg errgroup.Group
	for i, m := range g.members {
		eg.Go(func() error {
			results[i] = e.runMember(ctx, m, snapshot)
			return nil
		})
	}
	_ = eg.Wait()

	if err := firstFailure(results); err != nil {
		completed := make([]stepRecord[R], 0, len(results))
		contexts := make([]*Context, 0, len(results))
		for i, res := range results {
			if res.err != nil {
				continue
			}
			completed = append(completed, stepRecord[R]{key: g.members[i].key, output: res.output, step: g.members[i].step, nested: res.nested})
			contexts = append(contexts, res.state)
		}
		failures := compensateConcurrently(context.WithoutCancel(ctx), e.notifier, completed, contexts, e.resolver)
		return withCompensationFailures(err, failures)
	}

	members := make([]stepRecord[R], len(g.members))
	for i, m := range g.members {
		res := results[i]
		e.state.mergeWritten(res.state)
		e.state.set(string(m.key), res.output)
		members[i] = stepRecord[R]{key: m.key, output: res.output, step: m.step, nested: res.nested}
	}
	e.trace.append(parallelRecord[R]{members: members})
	return nil
}

// runMember executes one member against its own copy of the snapshot.
// A panic is reported as the member's error so the group still settles.
func (e *execution[R]) runMember(ctx context.Context, m boundStep[R], snapshot *Context) (res memberResult[R]) {
	res.state = snapshot.clone()
	defer func() {
		if r := recover(); r != nil {
			res.output = nil
			res.nested = nil
			res.err = &PanicError{Key: m.key, Value: r}
		}
	}()

	res.output, res.nested, res.err = e.runStep(ctx, m, res.state)
	return res
}

// firstFailure returns the error of the first failed result in declaration
// order, regardless of which member finished first.
func firstFailure[R any](results []memberResult[R]) error {
	for _, res := range results {
		if res.err != nil {
			return res.err
		}
	}
	return nil
}
