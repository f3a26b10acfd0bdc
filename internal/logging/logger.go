package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	// Minimum level the handler will emit
	minLevel slog.Level = slog.LevelInfo

	// Default logger instance
	logger *slog.Logger

	// Colors for different log levels
	infoColor  = color.New(color.FgGreen).SprintFunc()
	warnColor  = color.New(color.FgYellow).SprintFunc()
	errorColor = color.New(color.FgRed).SprintFunc()
	debugColor = color.New(color.FgCyan).SprintFunc()

	// Colors for user-facing output
	successColor = color.New(color.FgGreen, color.Bold).SprintFunc()
	failColor    = color.New(color.FgRed, color.Bold).SprintFunc()
)

// ColorTextHandler is a simple handler that adds colors to log output
type ColorTextHandler struct {
	w io.Writer
}

// NewColorTextHandler creates a new ColorTextHandler
func NewColorTextHandler(w io.Writer) *ColorTextHandler {
	return &ColorTextHandler{w: w}
}

// Handle handles the log record
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	var levelText string
	switch r.Level {
	case slog.LevelDebug:
		levelText = debugColor("DEBUG")
	case slog.LevelInfo:
		levelText = infoColor("INFO")
	case slog.LevelWarn:
		levelText = warnColor("WARN")
	case slog.LevelError:
		levelText = errorColor("ERROR")
	default:
		levelText = r.Level.String()
	}

	// Build attributes string
	var attrs string
	r.Attrs(func(a slog.Attr) bool {
		attrs += " " + a.Key + "=" + formatAttrValue(a.Value)
		return true
	})

	_, err := fmt.Fprintf(h.w, "%s %s%s\n", levelText, r.Message, attrs)
	return err
}

// formatAttrValue formats a slog.Value as a string
func formatAttrValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return fmt.Sprintf("%d", v.Int64())
	case slog.KindUint64:
		return fmt.Sprintf("%d", v.Uint64())
	case slog.KindFloat64:
		return fmt.Sprintf("%g", v.Float64())
	case slog.KindBool:
		return fmt.Sprintf("%t", v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format("15:04:05")
	case slog.KindAny:
		return fmt.Sprintf("%v", v.Any())
	default:
		return v.String()
	}
}

// WithAttrs returns a new handler with the given attributes
func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

// WithGroup returns a new handler with the given group
func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	return h
}

// Enabled reports whether the handler handles records at the given level
func (h *ColorTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= minLevel
}

// Init initializes the logger with the specified debug level
func Init(debug bool) {
	if debug {
		InitWithLevel("debug")
	} else {
		InitWithLevel("info")
	}
}

// InitWithLevel initializes the logger with a named level (debug, info, warn, error)
func InitWithLevel(level string) {
	minLevel = parseLevel(level)

	handler := NewColorTextHandler(os.Stdout)
	logger = slog.New(handler)
	slog.SetDefault(logger)

	if minLevel <= slog.LevelDebug {
		Debug("Debug logging enabled")
	}
}

// parseLevel maps a level name to a slog.Level, defaulting to info
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetOutput sets the output writer for the logger
func SetOutput(w io.Writer) {
	handler := NewColorTextHandler(w)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// DebugEnabled reports whether debug logging is active
func DebugEnabled() bool {
	return minLevel <= slog.LevelDebug
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// UserInfo prints a user-facing informational message (not structured logging)
func UserInfo(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

// UserError prints a user-facing error message to stderr
func UserError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", failColor("✗"), fmt.Sprintf(format, args...))
}

// Success prints a user-facing success message
func Success(format string, args ...any) {
	fmt.Printf("%s %s\n", successColor("✓"), fmt.Sprintf(format, args...))
}
