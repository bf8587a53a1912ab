package logging

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	taskKey contextKey = iota
	requestIDKey
)

// WithTask stores the gateway task name on ctx.
func WithTask(ctx context.Context, task string) context.Context {
	return context.WithValue(ctx, taskKey, task)
}

// WithRequestID stores a transport-assigned correlation ID on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// TaskFromContext returns the task name stored by WithTask.
func TaskFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	task, ok := ctx.Value(taskKey).(string)
	return task, ok && task != ""
}

// RequestIDFromContext returns the ID stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	fields := make([]slog.Attr, 0, 2)
	if task, ok := TaskFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTask, task))
	}
	if id, ok := RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRequestID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
