package flowtify

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// LoggingObserver is an Observer that writes every event to a structured logger.
// Successful events are logged at debug level, failures at error level.
//
// Example:
//
//	logger := flowtify.NewLogger("debug", os.Stderr)
//	b := flowtify.New(deps).WithObserver(flowtify.NewLoggingObserver(logger))
type LoggingObserver struct {
	logger *slog.Logger
}

// NewLoggingObserver returns an observer logging to logger, or to
// slog.Default() when logger is nil.
func NewLoggingObserver(logger *slog.Logger) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{logger: logger}
}

// NewLogger builds a JSON logger writing to w at the given level
// ("debug", "info", "warn" or "error"; anything else means info).
func NewLogger(level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OnWorkflowStart implements Observer.
func (o *LoggingObserver) OnWorkflowStart(ctx context.Context, workflowID WorkflowID) {
	o.logger.DebugContext(ctx, "workflow started",
		slog.String("execution_id", string(workflowID)),
	)
}

// OnWorkflowComplete implements Observer.
func (o *LoggingObserver) OnWorkflowComplete(ctx context.Context, workflowID WorkflowID, duration time.Duration, err error) {
	if err != nil {
		o.logger.ErrorContext(ctx, "workflow failed",
			slog.String("execution_id", string(workflowID)),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		return
	}
	o.logger.DebugContext(ctx, "workflow completed",
		slog.String("execution_id", string(workflowID)),
		slog.Duration("duration", duration),
	)
}

// OnStepStart implements Observer.
func (o *LoggingObserver) OnStepStart(ctx context.Context, key StepKey) {
	o.logger.DebugContext(ctx, "step started", o.attrs(ctx, key)...)
}

// OnStepComplete implements Observer.
func (o *LoggingObserver) OnStepComplete(ctx context.Context, key StepKey, duration time.Duration, err error) {
	args := append(o.attrs(ctx, key), slog.Duration("duration", duration))
	if err != nil {
		o.logger.ErrorContext(ctx, "step failed", append(args, slog.String("error", err.Error()))...)
		return
	}
	o.logger.DebugContext(ctx, "step completed", args...)
}

// OnConditionalSkipped implements Observer.
func (o *LoggingObserver) OnConditionalSkipped(ctx context.Context, index int) {
	id, _ := ExecutionIDFromContext(ctx)
	o.logger.DebugContext(ctx, "conditional group skipped",
		slog.String("execution_id", string(id)),
		slog.Int("group", index),
	)
}

// OnCompensationStart implements Observer.
func (o *LoggingObserver) OnCompensationStart(ctx context.Context, key StepKey) {
	o.logger.InfoContext(ctx, "compensating step", o.attrs(ctx, key)...)
}

// OnCompensationComplete implements Observer.
func (o *LoggingObserver) OnCompensationComplete(ctx context.Context, key StepKey, duration time.Duration, err error) {
	args := append(o.attrs(ctx, key), slog.Duration("duration", duration))
	if err != nil {
		o.logger.ErrorContext(ctx, "compensation failed", append(args, slog.String("error", err.Error()))...)
		return
	}
	o.logger.InfoContext(ctx, "step compensated", args...)
}

func (o *LoggingObserver) attrs(ctx context.Context, key StepKey) []any {
	id, _ := ExecutionIDFromContext(ctx)
	return []any{
		slog.String("execution_id", string(id)),
		slog.String("step", string(key)),
	}
}
