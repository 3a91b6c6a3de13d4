package flowtify

import (
	"context"
	"errors"
	"fmt"
)

// InputResolver computes a step's input from the current context. Without a
// resolver a step receives the context value under its own key, or the
// execution input when that key is absent.
//
// Example:
//
//	b.Step("subscription", createSubscription, flowtify.WithInput(func(c *flowtify.Context) any {
//		user, _ := flowtify.Value[User](c, "user")
//		return SubscriptionRequest{UserID: user.ID}
//	}))
type InputResolver func(c *Context) any

// Predicate decides whether a conditional group runs. It receives the
// execution input and the current context.
type Predicate func(ctx context.Context, input any, c *Context) (bool, error)

// stepConfig holds configuration options for a step.
type stepConfig struct {
	input InputResolver
}

// StepOption is a functional option for configuring step behavior.
type StepOption func(*stepConfig)

// WithInput sets the resolver used to compute the step's input.
func WithInput(resolver InputResolver) StepOption {
	return func(c *stepConfig) {
		c.input = resolver
	}
}

func applyStepOptions(opts []StepOption) stepConfig {
	var config stepConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&config)
		}
	}
	return config
}

// boundStep is a step placed in a workflow under a key.
type boundStep[R any] struct {
	key   StepKey
	step  Step[R]
	input InputResolver
}

// Member is one branch of a parallel group. Create it with Branch.
type Member[R any] struct {
	key  StepKey
	step Step[R]
	opts []StepOption
}

// Branch declares a parallel group member.
//
// Example:
//
//	b.Parallel(
//		flowtify.Branch("subscription", createSubscription),
//		flowtify.Branch("profile", createProfile, flowtify.WithInput(profileInput)),
//	)
func Branch[R any](key StepKey, step Step[R], opts ...StepOption) Member[R] {
	return Member[R]{key: key, step: step, opts: opts}
}

// Builder assembles a Definition. Builders only describe workflows; they hold
// no execution state and can produce any number of definitions.
//
// Example:
//
//	def, err := flowtify.New(deps).
//		WithID(flowtify.WorkflowID("user-signup")).
//		Step("user", createUser).
//		Conditional(isPremium, func(b *flowtify.Builder[*Deps]) {
//			b.Step("perks", grantPerks)
//		}).
//		Build()
type Builder[R any] struct {
	id        WorkflowID
	resolver  R
	groups    []group[R]
	observers []Observer
	errs      []error
}

// New creates an empty builder whose workflows hand resolver to every step.
func New[R any](resolver R) *Builder[R] {
	return &Builder[R]{
		resolver: resolver,
		groups:   make([]group[R], 0),
	}
}

// WithID sets the workflow ID for observability purposes.
// If not set, a unique ID is generated for each execution.
func (b *Builder[R]) WithID(id WorkflowID) *Builder[R] {
	b.id = id
	return b
}

// WithObserver adds an observer. Multiple observers can be added and all will
// be notified of events, including events of conditional bodies.
//
// Example:
//
//	b := flowtify.New(deps).
//		WithObserver(flowtify.NewLoggingObserver(logger)).
//		Step("step1", step1)
func (b *Builder[R]) WithObserver(observer Observer) *Builder[R] {
	if observer != nil {
		b.observers = append(b.observers, observer)
	}
	return b
}

// Step appends a sequential group running step under key.
// If key is Auto, the step's default name from Step.Name() is used.
func (b *Builder[R]) Step(key StepKey, step Step[R], opts ...StepOption) *Builder[R] {
	index := len(b.groups)
	bs, err := b.bind(key, step, opts)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("group %d: %w", index, err))
		return b
	}

	b.groups = append(b.groups, sequentialGroup[R]{step: bs})
	return b
}

// Parallel appends a group whose members run concurrently. Member order fixes
// which error is reported when several members fail, and the order in which
// outputs are merged into the context.
func (b *Builder[R]) Parallel(members ...Member[R]) *Builder[R] {
	index := len(b.groups)
	if len(members) == 0 {
		b.errs = append(b.errs, fmt.Errorf("group %d: parallel group: %w", index, ErrNoSteps))
		return b
	}

	bound := make([]boundStep[R], 0, len(members))
	seen := make(map[StepKey]struct{}, len(members))
	failed := false
	for _, m := range members {
		bs, err := b.bind(m.key, m.step, m.opts)
		if err != nil {
			b.errs = append(b.errs, fmt.Errorf("group %d: %w", index, err))
			failed = true
			continue
		}
		if _, dup := seen[bs.key]; dup {
			b.errs = append(b.errs, &DuplicateKeyError{Key: bs.key, Group: index})
			failed = true
			continue
		}
		seen[bs.key] = struct{}{}
		bound = append(bound, bs)
	}
	if failed {
		return b
	}

	b.groups = append(b.groups, parallelGroup[R]{members: bound})
	return b
}

// Conditional appends a group that runs body only when pred returns true.
// body receives a fresh builder sharing this builder's resolver. The body runs
// as an independent child execution seeded with the same input, and its final
// context is merged into the parent's.
//
// Example:
//
//	b.Conditional(
//		func(ctx context.Context, input any, c *flowtify.Context) (bool, error) {
//			return input.(Order).Express, nil
//		},
//		func(b *flowtify.Builder[*Deps]) {
//			b.Step("courier", bookCourier)
//		},
//	)
func (b *Builder[R]) Conditional(pred Predicate, body func(*Builder[R])) *Builder[R] {
	index := len(b.groups)
	if pred == nil {
		b.errs = append(b.errs, fmt.Errorf("group %d: %w", index, ErrNilPredicate))
		return b
	}

	sub := New(b.resolver)
	if body != nil {
		body(sub)
	}
	def, err := sub.build()
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("group %d: conditional body: %w", index, err))
		return b
	}

	b.groups = append(b.groups, conditionalGroup[R]{predicate: pred, body: def.groups})
	return b
}

// Build returns the immutable definition, or every problem found while the
// builder was assembled.
func (b *Builder[R]) Build() (*Definition[R], error) {
	def, err := b.build()
	if err != nil {
		return nil, err
	}
	def.id = b.id
	def.observers = append([]Observer(nil), b.observers...)
	return def, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder[R]) MustBuild() *Definition[R] {
	def, err := b.Build()
	if err != nil {
		panic(fmt.Errorf("building workflow: %w", err))
	}
	return def
}

func (b *Builder[R]) build() (*Definition[R], error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	if len(b.groups) == 0 {
		return nil, ErrNoSteps
	}

	groups := make([]group[R], len(b.groups))
	copy(groups, b.groups)
	return &Definition[R]{
		resolver: b.resolver,
		groups:   groups,
	}, nil
}

// bind resolves the step key and options.
func (b *Builder[R]) bind(key StepKey, step Step[R], opts []StepOption) (boundStep[R], error) {
	if step == nil {
		return boundStep[R]{}, fmt.Errorf("step %q: %w", key, ErrNilStep)
	}

	actualKey := key
	if key == Auto {
		if step.Name() == "" {
			return boundStep[R]{}, fmt.Errorf("%w: step has no default name", ErrInvalidStepName)
		}
		actualKey = step.Name()
	}

	if actualKey == InputKey {
		return boundStep[R]{}, fmt.Errorf("step %q: %w", actualKey, ErrReservedKey)
	}

	config := applyStepOptions(opts)
	return boundStep[R]{
		key:   actualKey,
		step:  step,
		input: config.input,
	}, nil
}
