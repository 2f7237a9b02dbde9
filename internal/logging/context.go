package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldQueueID is the standardized structured logging key for queue entry identifiers.
	FieldQueueID = "qid"
	// FieldPageID is the standardized structured logging key for crawl target page identifiers.
	FieldPageID = "page_id"
	// FieldSetID is the standardized structured logging key for set identifiers.
	FieldSetID = "set_id"
	// FieldConfiguration is the standardized structured logging key for crawl configuration names.
	FieldConfiguration = "configuration"
	// FieldProcessID is the standardized structured logging key for worker process identifiers.
	FieldProcessID = "process_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for warnings and errors.
	FieldErrorHint = "error_hint"
	FieldError     = "error"
)

type processIDKey struct{}

// WithProcessID returns a context carrying the worker process identifier.
func WithProcessID(ctx context.Context, processID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, processIDKey{}, processID)
}

// ProcessIDFromContext extracts the worker process identifier if present.
func ProcessIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(processIDKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	if id, ok := ProcessIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldProcessID, id))
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
	return logger.With(attrsToArgs(fields)...)
}
