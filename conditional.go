package flowtify

import "context"

// processConditional evaluates the group's predicate against the execution
// input and, when it holds, runs the body as a child execution seeded with the
// same input. The child's final context is merged into the parent's and its
// trace is kept so the body can be compensated later.
//
// A failing body compensates itself before its error is returned, so the
// parent only rolls back its own earlier groups.
func (e *execution[R]) processConditional(ctx context.Context, index int, g conditionalGroup[R]) error {
	input := e.state.Input()

	ok, err := g.predicate(ctx, input, e.state)
	if err != nil {
		return err
	}
	if !ok {
		e.notifier.conditionalSkipped(ctx, index)
		return nil
	}

	child, _, err := runGroups(ctx, e.notifier, g.body, input, e.resolver)
	if err != nil {
		return err
	}

	e.state.merge(child.state)
	e.trace.append(conditionalRecord[R]{child: child.trace})
	return nil
}

// Always is a predicate that always holds.
func Always(ctx context.Context, input any, c *Context) (bool, error) {
	return true, nil
}

// Never is a predicate that never holds.
func Never(ctx context.Context, input any, c *Context) (bool, error) {
	return false, nil
}

// When adapts a typed condition on the execution input to a Predicate.
// An input of another type fails the predicate with *TypeMismatchError.
//
// Example:
//
//	b.Conditional(flowtify.When(func(o Order) bool { return o.Express }), func(b *flowtify.Builder[*Deps]) {
//		b.Step("courier", bookCourier)
//	})
func When[In any](condition func(In) bool) Predicate {
	return func(ctx context.Context, input any, c *Context) (bool, error) {
		typedInput, ok := input.(In)
		if !ok {
			return false, typeMismatch[In](input, "conditional input")
		}
		return condition(typedInput), nil
	}
}

// HasKey is a predicate that holds when the context contains key.
func HasKey(key string) Predicate {
	return func(ctx context.Context, input any, c *Context) (bool, error) {
		return c.Has(key), nil
	}
}
