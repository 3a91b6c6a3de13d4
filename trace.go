package flowtify

// GroupKind identifies the variant of a step group.
type GroupKind int

const (
	// SequentialGroup runs a single step.
	SequentialGroup GroupKind = iota

	// ParallelGroup runs its members concurrently.
	ParallelGroup

	// ConditionalGroup runs its body when its predicate holds.
	ConditionalGroup
)

// String returns the group kind name.
func (k GroupKind) String() string {
	switch k {
	case SequentialGroup:
		return "sequential"
	case ParallelGroup:
		return "parallel"
	case ConditionalGroup:
		return "conditional"
	default:
		return "unknown"
	}
}

// stepRecord is a step that completed, with the output it produced.
// nested is set when the step ran a whole workflow.
type stepRecord[R any] struct {
	key    StepKey
	output any
	step   Step[R]
	nested *nestedRun[R]
}

// nestedRun is what one invocation of a nested workflow step left behind:
// the child's trace and the observers its events go to.
type nestedRun[R any] struct {
	trace    *Trace[R]
	notifier notifier
}

// groupRecord is a group that was processed. The set of variants is closed:
// sequentialRecord, parallelRecord and conditionalRecord.
type groupRecord[R any] interface {
	kind() GroupKind
}

type sequentialRecord[R any] struct {
	step stepRecord[R]
}

type parallelRecord[R any] struct {
	members []stepRecord[R]
}

type conditionalRecord[R any] struct {
	child *Trace[R]
}

func (sequentialRecord[R]) kind() GroupKind  { return SequentialGroup }
func (parallelRecord[R]) kind() GroupKind    { return ParallelGroup }
func (conditionalRecord[R]) kind() GroupKind { return ConditionalGroup }

// Trace is the ordered log of the groups an execution actually processed.
// Skipped conditional groups and failed groups do not appear. It is the only
// input to compensation and is never shared between executions.
type Trace[R any] struct {
	records []groupRecord[R]
}

func newTrace[R any]() *Trace[R] {
	return &Trace[R]{}
}

func (t *Trace[R]) append(rec groupRecord[R]) {
	t.records = append(t.records, rec)
}

// Len returns the number of group records.
func (t *Trace[R]) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Kinds returns the kind of each record in execution order.
func (t *Trace[R]) Kinds() []GroupKind {
	if t == nil {
		return nil
	}
	kinds := make([]GroupKind, len(t.records))
	for i, rec := range t.records {
		kinds[i] = rec.kind()
	}
	return kinds
}

// Keys returns the keys of every completed step in execution order,
// descending into conditional bodies.
func (t *Trace[R]) Keys() []StepKey {
	if t == nil {
		return nil
	}
	var keys []StepKey
	for _, rec := range t.records {
		switch r := rec.(type) {
		case sequentialRecord[R]:
			keys = append(keys, r.step.key)
		case parallelRecord[R]:
			for _, m := range r.members {
				keys = append(keys, m.key)
			}
		case conditionalRecord[R]:
			keys = append(keys, r.child.Keys()...)
		default:
			panic("flowtify: unknown group record")
		}
	}
	return keys
}

// reversed returns the records newest first. The trace itself is left untouched.
func (t *Trace[R]) reversed() []groupRecord[R] {
	if t == nil {
		return nil
	}
	out := make([]groupRecord[R], len(t.records))
	for i, rec := range t.records {
		out[len(t.records)-1-i] = rec
	}
	return out
}
