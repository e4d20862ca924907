package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldCycleID correlates every line of one dispatch cycle.
	FieldCycleID = "cycle_id"
	// FieldWarehouse is the warehouse code a line refers to.
	FieldWarehouse = "warehouse"
	// FieldRecipient is the address a batch was sent to.
	FieldRecipient = "recipient"
)

type cycleIDKey struct{}

// WithCycleID stores the dispatch cycle id in ctx.
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey{}, id)
}

// CycleIDFromContext returns the cycle id stored by WithCycleID.
func CycleIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(cycleIDKey{}).(string)
	return id, ok && id != ""
}

// WithContext returns a logger tagged with the fields carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if id, ok := CycleIDFromContext(ctx); ok {
		return logger.With(CycleID(id))
	}
	return logger
}
