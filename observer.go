package flowtify

import (
	"context"
	"time"
)

// Observer provides hooks for monitoring workflow, step and compensation events.
// Implement this interface to add custom metrics, logging, or tracing.
// Members of a parallel group notify observers from their own goroutines, so
// implementations must be safe for concurrent use.
//
// The execution ID of the workflow that emitted an event is available through
// ExecutionIDFromContext.
//
// Example:
//
//	type metricsObserver struct {
//		flowtify.NoopObserver
//		metrics MetricsClient
//	}
//
//	func (m *metricsObserver) OnStepComplete(ctx context.Context, key flowtify.StepKey, duration time.Duration, err error) {
//		tags := map[string]string{"step": string(key)}
//		if err != nil {
//			tags["status"] = "error"
//		} else {
//			tags["status"] = "success"
//		}
//		m.metrics.Timing("workflow.step.duration", duration, tags)
//	}
type Observer interface {
	// OnWorkflowStart is called when workflow execution begins.
	OnWorkflowStart(ctx context.Context, workflowID WorkflowID)

	// OnWorkflowComplete is called when workflow execution completes (success or failure).
	OnWorkflowComplete(ctx context.Context, workflowID WorkflowID, duration time.Duration, err error)

	// OnStepStart is called when a step begins execution.
	OnStepStart(ctx context.Context, key StepKey)

	// OnStepComplete is called when a step completes (success or failure).
	OnStepComplete(ctx context.Context, key StepKey, duration time.Duration, err error)

	// OnConditionalSkipped is called when a conditional group's predicate returns false.
	// index is the position of the group within its workflow or conditional body.
	OnConditionalSkipped(ctx context.Context, index int)

	// OnCompensationStart is called before a completed step's compensator runs.
	OnCompensationStart(ctx context.Context, key StepKey)

	// OnCompensationComplete is called when a compensator returns.
	OnCompensationComplete(ctx context.Context, key StepKey, duration time.Duration, err error)
}

// NoopObserver is a default implementation of Observer that does nothing.
// Use this as a base for implementing partial observers.
type NoopObserver struct{}

// OnWorkflowStart implements Observer.
func (n *NoopObserver) OnWorkflowStart(ctx context.Context, workflowID WorkflowID) {}

// OnWorkflowComplete implements Observer.
func (n *NoopObserver) OnWorkflowComplete(ctx context.Context, workflowID WorkflowID, duration time.Duration, err error) {
}

// OnStepStart implements Observer.
func (n *NoopObserver) OnStepStart(ctx context.Context, key StepKey) {}

// OnStepComplete implements Observer.
func (n *NoopObserver) OnStepComplete(ctx context.Context, key StepKey, duration time.Duration, err error) {
}

// OnConditionalSkipped implements Observer.
func (n *NoopObserver) OnConditionalSkipped(ctx context.Context, index int) {}

// OnCompensationStart implements Observer.
func (n *NoopObserver) OnCompensationStart(ctx context.Context, key StepKey) {}

// OnCompensationComplete implements Observer.
func (n *NoopObserver) OnCompensationComplete(ctx context.Context, key StepKey, duration time.Duration, err error) {
}

// notifier fans events out to a workflow's observers.
type notifier struct {
	observers []Observer
}

// each calls fn for every observer. A panicking observer does not break
// execution or keep the remaining observers from being notified.
func (n notifier) each(fn func(Observer)) {
	for _, obs := range n.observers {
		func() {
			defer func() {
				_ = recover()
			}()
			fn(obs)
		}()
	}
}

func (n notifier) workflowStart(ctx context.Context, id WorkflowID) {
	n.each(func(obs Observer) { obs.OnWorkflowStart(ctx, id) })
}

func (n notifier) workflowComplete(ctx context.Context, id WorkflowID, duration time.Duration, err error) {
	n.each(func(obs Observer) { obs.OnWorkflowComplete(ctx, id, duration, err) })
}

func (n notifier) stepStart(ctx context.Context, key StepKey) {
	n.each(func(obs Observer) { obs.OnStepStart(ctx, key) })
}

func (n notifier) stepComplete(ctx context.Context, key StepKey, duration time.Duration, err error) {
	n.each(func(obs Observer) { obs.OnStepComplete(ctx, key, duration, err) })
}

func (n notifier) conditionalSkipped(ctx context.Context, index int) {
	n.each(func(obs Observer) { obs.OnConditionalSkipped(ctx, index) })
}

func (n notifier) compensationStart(ctx context.Context, key StepKey) {
	n.each(func(obs Observer) { obs.OnCompensationStart(ctx, key) })
}

func (n notifier) compensationComplete(ctx context.Context, key StepKey, duration time.Duration, err error) {
	n.each(func(obs Observer) { obs.OnCompensationComplete(ctx, key, duration, err) })
}

type executionIDKey struct{}

func withExecutionID(ctx context.Context, id WorkflowID) context.Context {
	return context.WithValue(ctx, executionIDKey{}, id)
}

// ExecutionIDFromContext returns the ID of the innermost workflow execution
// carried by ctx. Steps, predicates, compensators and observers all receive a
// context carrying it.
func ExecutionIDFromContext(ctx context.Context) (WorkflowID, bool) {
	id, ok := ctx.Value(executionIDKey{}).(WorkflowID)
	return id, ok
}
