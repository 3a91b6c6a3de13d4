package flowtify

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
)

// predicateSpy records the arguments a predicate was called with.
type predicateSpy struct {
	result bool
	calls  atomic.Int32
	input  atomic.Value
}

func (p *predicateSpy) predicate(ctx context.Context, input any, c *Context) (bool, error) {
	p.calls.Add(1)
	p.input.Store(input)
	return p.result, nil
}

func TestConditional(t *testing.T) {
	processed := func(rec *recorder) Step[*recorder] {
		return newTestStep(func(ctx context.Context, input any, c *Context, r *recorder) (any, error) {
			r.add("step1 executed")
			return input.(string) + " processed", nil
		}, nil)
	}

	t.Run("runs the body when the predicate holds", func(t *testing.T) {
		rec := &recorder{}
		spy := &predicateSpy{result: true}

		def := New(rec).
			Conditional(spy.predicate, func(b *Builder[*recorder]) {
				b.Step("step1", processed(rec))
			}).
			MustBuild()

		result, err := def.Execute(context.Background(), "test input")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if spy.input.Load() != "test input" {
			t.Errorf("expected predicate input 'test input', got %v", spy.input.Load())
		}
		want := map[string]any{"input": "test input", "step1": "test input processed"}
		if !reflect.DeepEqual(result, want) {
			t.Errorf("expected %v, got %v", want, result)
		}
	})

	t.Run("skips the body when the predicate fails", func(t *testing.T) {
		rec := &recorder{}
		spy := &predicateSpy{result: false}

		def := New(rec).
			Conditional(spy.predicate, func(b *Builder[*recorder]) {
				b.Step("step1", processed(rec))
			}).
			MustBuild()

		result, err := def.Execute(context.Background(), "test input")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if spy.calls.Load() != 1 {
			t.Errorf("expected predicate to be called once, got %d", spy.calls.Load())
		}
		if len(rec.list()) != 0 {
			t.Errorf("expected no step calls, got %v", rec.list())
		}
		want := map[string]any{"input": "test input"}
		if !reflect.DeepEqual(result, want) {
			t.Errorf("expected %v, got %v", want, result)
		}
	})

	t.Run("body is seeded with the execution input", func(t *testing.T) {
		var bodyInput any
		var sawParent bool

		def := New(&recorder{}).
			Step("first", mapStep(func(input any) any { return "first output" })).
			Conditional(Always, func(b *Builder[*recorder]) {
				b.Step("inner", newTestStep(func(ctx context.Context, input any, c *Context, r *recorder) (any, error) {
					bodyInput = input
					sawParent = c.Has("first")
					return "inner output", nil
				}, nil))
			}).
			MustBuild()

		result, err := def.Execute(context.Background(), "original")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if bodyInput != "original" {
			t.Errorf("expected body input 'original', got %v", bodyInput)
		}
		if sawParent {
			t.Error("expected body to run against its own context")
		}
		want := map[string]any{"input": "original", "first": "first output", "inner": "inner output"}
		if !reflect.DeepEqual(result, want) {
			t.Errorf("expected %v, got %v", want, result)
		}
	})

	t.Run("handles nested conditionals", func(t *testing.T) {
		def := New(&recorder{}).
			Conditional(Always, func(b *Builder[*recorder]) {
				b.Conditional(Always, func(b *Builder[*recorder]) {
					b.Step("step1", mapStep(func(input any) any { return input.(string) + " step1" })).
						Step("step2", mapStep(func(input any) any { return input.(string) + " step2" }))
				})
			}).
			MustBuild()

		result, err := def.Execute(context.Background(), "test")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := map[string]any{"input": "test", "step1": "test step1", "step2": "test step2"}
		if !reflect.DeepEqual(result, want) {
			t.Errorf("expected %v, got %v", want, result)
		}
	})
}

func TestConditional_Compensation(t *testing.T) {
	t.Run("compensates the body when a body step fails", func(t *testing.T) {
		rec := &recorder{}
		failErr := errors.New("Step 2 failed")

		def := New(rec).
			Conditional(Always, func(b *Builder[*recorder]) {
				b.Step("step1", loggingStep("step1", "test input processed", nil)).
					Step("step2", loggingStep("step2", nil, failErr))
			}).
			MustBuild()

		_, err := def.Execute(context.Background(), "test input")
		if err != failErr {
			t.Fatalf("expected the original error, got %v", err)
		}

		want := []string{"step1 executed", "step2 executed", "step1 compensated"}
		if got := rec.list(); !reflect.DeepEqual(got, want) {
			t.Errorf("expected log %v, got %v", want, got)
		}
	})

	t.Run("compensates nested conditional steps on failure", func(t *testing.T) {
		rec := &recorder{}
		failErr := errors.New("Nested step failed")

		def := New(rec).
			Step("outer", loggingStep("outer", "outer", nil)).
			Conditional(Always, func(b *Builder[*recorder]) {
				b.Conditional(Always, func(b *Builder[*recorder]) {
					b.Step("step1", loggingStep("step1", "test step1", nil)).
						Step("step2", loggingStep("step2", nil, failErr))
				})
			}).
			MustBuild()

		_, err := def.Execute(context.Background(), "test")
		if err != failErr {
			t.Fatalf("expected the original error, got %v", err)
		}

		want := []string{
			"outer executed", "step1 executed", "step2 executed",
			"step1 compensated", "outer compensated",
		}
		if got := rec.list(); !reflect.DeepEqual(got, want) {
			t.Errorf("expected log %v, got %v", want, got)
		}
	})

	t.Run("compensates a completed body when a later group fails", func(t *testing.T) {
		rec := &recorder{}

		def := New(rec).
			Step("first", loggingStep("first", 1, nil)).
			Conditional(Always, func(b *Builder[*recorder]) {
				b.Step("a", loggingStep("a", "a", nil)).
					Parallel(
						Branch("b", loggingStep("b", "b", nil)),
						Branch("c", loggingStep("c", "c", nil)),
					)
			}).
			Step("last", loggingStep("last", nil, errors.New("last failed"))).
			MustBuild()

		if _, err := def.Execute(context.Background(), nil); err == nil {
			t.Fatal("expected error, got nil")
		}

		log := rec.list()
		compensations := log[len(log)-4:]
		if compensations[2] != "a compensated" || compensations[3] != "first compensated" {
			t.Errorf("expected reverse order compensation, got %v", log)
		}
		for _, entry := range []string{"b compensated", "c compensated"} {
			if rec.count(entry) != 1 {
				t.Errorf("expected %q once, got %v", entry, log)
			}
		}
		if rec.count("last compensated") != 0 {
			t.Error("failed step must not be compensated")
		}
	})

	t.Run("predicate error compensates earlier groups", func(t *testing.T) {
		rec := &recorder{}
		predErr := errors.New("predicate failed")

		def := New(rec).
			Step("first", loggingStep("first", 1, nil)).
			Conditional(func(ctx context.Context, input any, c *Context) (bool, error) {
				return false, predErr
			}, func(b *Builder[*recorder]) {
				b.Step("never", loggingStep("never", nil, nil))
			}).
			MustBuild()

		_, err := def.Execute(context.Background(), nil)
		if err != predErr {
			t.Fatalf("expected predicate error, got %v", err)
		}

		want := []string{"first executed", "first compensated"}
		if got := rec.list(); !reflect.DeepEqual(got, want) {
			t.Errorf("expected log %v, got %v", want, got)
		}
	})
}

func TestPredicates(t *testing.T) {
	c := NewContext("input")
	_ = c.Set("present", true)

	tests := []struct {
		name    string
		pred    Predicate
		input   any
		want    bool
		wantErr bool
	}{
		{name: "Always", pred: Always, input: nil, want: true},
		{name: "Never", pred: Never, input: nil, want: false},
		{name: "HasKey present", pred: HasKey("present"), input: nil, want: true},
		{name: "HasKey missing", pred: HasKey("missing"), input: nil, want: false},
		{name: "When true", pred: When(func(n int) bool { return n > 1 }), input: 2, want: true},
		{name: "When false", pred: When(func(n int) bool { return n > 1 }), input: 1, want: false},
		{name: "When type mismatch", pred: When(func(n int) bool { return true }), input: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.pred(context.Background(), tt.input, c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrTypeMismatch) {
					t.Errorf("expected ErrTypeMismatch, got %v", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
