package logging

import (
	"log/slog"
	"time"
)

// ContextualLogger wraps slog with attributes that identify one script run.
// Every message carries the script id and the emitting component so logs
// from concurrently running scripts can be told apart.
type ContextualLogger struct {
	scriptID  string
	component string
}

// NewContextualLogger creates a logger scoped to a script id and component
func NewContextualLogger(scriptID, component string) *ContextualLogger {
	return &ContextualLogger{
		scriptID:  scriptID,
		component: component,
	}
}

func (l *ContextualLogger) attrs(args []any) []any {
	base := []any{"script_id", l.scriptID, "component", l.component}
	return append(base, args...)
}

// Debug logs a debug message with run context
func (l *ContextualLogger) Debug(msg string, args ...any) {
	slog.Debug(msg, l.attrs(args)...)
}

// Info logs an info message with run context
func (l *ContextualLogger) Info(msg string, args ...any) {
	slog.Info(msg, l.attrs(args)...)
}

// Warn logs a warning with run context
func (l *ContextualLogger) Warn(msg string, args ...any) {
	slog.Warn(msg, l.attrs(args)...)
}

// Error logs an error with run context
func (l *ContextualLogger) Error(msg string, args ...any) {
	slog.Error(msg, l.attrs(args)...)
}

// LogOperation runs fn and logs its duration and outcome under the
// given operation name. The error from fn is returned unchanged.
func LogOperation(operation, scriptID string, fn func() error) error {
	start := time.Now()
	err := fn()
	if err != nil {
		slog.Error("Operation failed",
			"operation", operation,
			"script_id", scriptID,
			"duration", time.Since(start),
			"error", err)
		return err
	}
	slog.Debug("Operation completed",
		"operation", operation,
		"script_id", scriptID,
		"duration", time.Since(start))
	return nil
}
