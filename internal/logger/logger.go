// Package logger is the leveled, tagged logger every component of the LED
// service writes through. Each component gets its own tag ("CAN0", "Engine",
// "Arbiter", "Redis", ...) so interleaved output from the frame path and the
// command listeners stays attributable.
package logger

import (
	"io"
	"log"
)

// LogLevel is the -log flag value: 0 silences everything, 4 adds per-frame
// debug output.
type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarning
	LogLevelInfo
	LogLevelDebug
)

// Logger is safe for concurrent use; it only reads its fields and the
// underlying log.Logger serializes writes.
type Logger struct {
	logger *log.Logger
	level  LogLevel
	tag    string
}

// NewLogger wraps logger. A nil logger discards output, which tests rely on.
func NewLogger(logger *log.Logger, level LogLevel) *Logger {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Logger{
		logger: logger,
		level:  level,
		tag:    "",
	}
}

// WithTag returns a logger sharing l's output and level that prefixes every
// line with [tag].
func (l *Logger) WithTag(tag string) *Logger {
	return &Logger{
		logger: l.logger,
		level:  l.level,
		tag:    tag,
	}
}

// Enabled reports whether messages at level are written. Frame path callers
// check it before building arguments for debug output.
func (l *Logger) Enabled(level LogLevel) bool {
	return level != LogLevelNone && l.level >= level
}

// ClampLevel maps the -log flag value onto a valid level.
func ClampLevel(v int) LogLevel {
	if v < int(LogLevelNone) {
		return LogLevelNone
	}
	if v > int(LogLevelDebug) {
		return LogLevelDebug
	}
	return LogLevel(v)
}

func (l *Logger) formatMessage(level string, format string) string {
	if l.tag != "" {
		if level != "" {
			return "[" + l.tag + "] " + level + " " + format
		}
		return "[" + l.tag + "] " + format
	}
	if level != "" {
		return level + " " + format
	}
	return format
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.level >= LogLevelDebug {
		l.logger.Printf(l.formatMessage("DEBUG:", format), v...)
	}
}

func (l *Logger) Infof(format string, v ...interface{}) {
	if l.level >= LogLevelInfo {
		l.logger.Printf(l.formatMessage("", format), v...)
	}
}

// Printf is an alias for Infof for compatibility
func (l *Logger) Printf(format string, v ...interface{}) {
	l.Infof(format, v...)
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	if l.level >= LogLevelWarning {
		l.logger.Printf(l.formatMessage("WARN:", format), v...)
	}
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	if l.level >= LogLevelError {
		l.logger.Printf(l.formatMessage("ERROR:", format), v...)
	}
}

func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatalf(l.formatMessage("FATAL:", format), v...)
}
