// Package flowtify provides an in-process saga workflow engine.
//
// A workflow is an ordered list of step groups. A group is either a single
// sequential step, a set of steps run concurrently, or a conditional body that
// only runs when its predicate holds. Every step reads from and writes to a
// shared Context. When a step fails, the steps that already completed are
// compensated in reverse order, including steps inside conditional bodies and
// nested workflows.
//
// The resolver R is an opaque value owned by the caller (a dependency
// container, a set of clients, ...). It is handed unchanged to every step,
// compensator and predicate and is never inspected by the engine.
//
// Example usage:
//
//	def, err := flowtify.New(deps).
//		Step("user", createUser).
//		Parallel(
//			flowtify.Branch("subscription", createSubscription),
//			flowtify.Branch("profile", createProfile),
//		).
//		Build()
//	if err != nil {
//		return err
//	}
//
//	result, err := def.Execute(ctx, request)
package flowtify

// WorkflowID identifies a workflow for observability purposes.
// It can be explicitly set via WithID() or auto-generated for each execution.
//
// Example:
//
//	b := flowtify.New(deps).
//		WithID(flowtify.WorkflowID("order-processing"))
type WorkflowID string

// StepKey identifies a step within a workflow. The output of a step is stored
// in the Context under its key.
//
// Example:
//
//	// Explicit key
//	b.Step("validate", validateStep)
//
//	// Auto: inherit from step's default name
//	b.Step(flowtify.Auto, namedStep)
type StepKey string

const (
	// Auto uses the step's default name from Step.Name().
	// Building fails if the step has no default name.
	//
	// Example:
	//
	//	authStep := flowtify.NamedStep("authenticate", authFn, nil)
	//	b.Step(flowtify.Auto, authStep) // Uses "authenticate"
	Auto StepKey = ""

	// InputKey is the context key holding the value passed to Execute.
	InputKey = "input"
)
