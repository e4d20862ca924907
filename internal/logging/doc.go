// Package logging assembles structured slog loggers and formatting helpers used
// by the courier daemon and CLI.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// standard field names (component, event_type, cycle_id, warehouse). Warnings
// and errors go through WarnWithContext and ErrorWithContext so every problem
// line carries an event type and a hint for the operator. The package also
// provides a no-op logger for tests and a tee for writing to several sinks.
package logging
