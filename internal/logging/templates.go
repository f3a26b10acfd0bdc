package logging

import "fmt"

// LogTemplate represents a logging template with standardized emoji and formatting
type LogTemplate struct {
	emoji  string
	prefix string
	level  LogLevel
}

// LogLevel represents the logging level for templates
type LogLevel int

const (
	LevelInfo LogLevel = iota
	LevelSuccess
	LevelWarn
	LevelError
	LevelDebug
)

// Common logging templates with standardized emojis and formats
var (
	// Input templates
	ClickTemplate = LogTemplate{emoji: "🖱️", prefix: "Clicking", level: LevelInfo}
	TypeTemplate  = LogTemplate{emoji: "📝", prefix: "Typing", level: LevelInfo}
	KeyTemplate   = LogTemplate{emoji: "⌨️", prefix: "Sending keys", level: LevelInfo}

	// Monitoring templates
	WatchTemplate    = LogTemplate{emoji: "👁️", prefix: "Matching template", level: LevelInfo}
	FoundTemplate    = LogTemplate{emoji: "✓", prefix: "Found", level: LevelSuccess}
	NotFoundTemplate = LogTemplate{emoji: "✗", prefix: "Not found", level: LevelWarn}

	// Action templates
	WaitTemplate       = LogTemplate{emoji: "⏳", prefix: "Waiting", level: LevelInfo}
	ScreenshotTemplate = LogTemplate{emoji: "📸", prefix: "Taking screenshot", level: LevelInfo}

	// Run lifecycle templates
	StartTemplate    = LogTemplate{emoji: "🚀", prefix: "Starting", level: LevelInfo}
	StopTemplate     = LogTemplate{emoji: "🛑", prefix: "Stopping", level: LevelInfo}
	CompleteTemplate = LogTemplate{emoji: "✓", prefix: "Completed", level: LevelSuccess}
	FailTemplate     = LogTemplate{emoji: "✗", prefix: "Failed", level: LevelError}
)

// Format formats the template with the provided message
func (t LogTemplate) Format(message string) string {
	if t.prefix != "" {
		return fmt.Sprintf("%s %s: %s", t.emoji, t.prefix, message)
	}
	return fmt.Sprintf("%s %s", t.emoji, message)
}

// Formatf formats the template with printf-style formatting
func (t LogTemplate) Formatf(format string, args ...interface{}) string {
	message := fmt.Sprintf(format, args...)
	return t.Format(message)
}

// Log logs the message using the appropriate logging function based on level
func (t LogTemplate) Log(message string) {
	formatted := t.Format(message)
	switch t.level {
	case LevelInfo:
		UserInfo("%s", formatted)
	case LevelSuccess:
		Success("%s", formatted)
	case LevelWarn:
		Warn(formatted)
	case LevelError:
		UserError("%s", formatted)
	case LevelDebug:
		Debug(formatted)
	}
}

// Logf logs the message using printf-style formatting
func (t LogTemplate) Logf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	t.Log(message)
}
