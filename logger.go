// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package ncx

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"unicode/utf8"
)

// MaxLogValueLength limits the length of log values. Values longer than this
// are truncated.
const MaxLogValueLength = 1024

// Logger receives the diagnostics of every component: parser findings,
// cardinality violations, script progress and transport retries
//
// Messages carry alternating key/value pairs. DefaultLogger writes them as
// plain lines, NoOpLogger drops them and is what components use when no
// logger is set. Adapters for structured loggers only need the four
// methods:
//
//	type slogLogger struct{ l *slog.Logger }
//
//	func (s slogLogger) Debug(msg string, kv ...any) { s.l.Debug(msg, kv...) }
//	func (s slogLogger) Info(msg string, kv ...any)  { s.l.Info(msg, kv...) }
//	func (s slogLogger) Warn(msg string, kv ...any)  { s.l.Warn(msg, kv...) }
//	func (s slogLogger) Error(msg string, kv ...any) { s.l.Error(msg, kv...) }
//
//	p := cli.NewParser(cli.WithLogger(slogLogger{slog.Default()}))
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// LogLevel represents the severity threshold for logging
type LogLevel int

const (
	// LogLevelDebug enables all log levels (most verbose)
	LogLevelDebug LogLevel = iota

	// LogLevelInfo enables Info, Warn, and Error logs
	LogLevelInfo

	// LogLevelWarn enables Warn and Error logs
	LogLevelWarn

	// LogLevelError enables only Error logs
	LogLevelError

	// LogLevelNone disables all logging
	LogLevelNone
)

// String returns the string representation of a LogLevel
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// ParseLogLevel converts a case-insensitive level name to a LogLevel
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LogLevelDebug, nil
	case "INFO", "":
		return LogLevelInfo, nil
	case "WARN", "WARNING":
		return LogLevelWarn, nil
	case "ERROR":
		return LogLevelError, nil
	case "NONE", "OFF":
		return LogLevelNone, nil
	}
	return LogLevelNone, fmt.Errorf("invalid log level: %s (valid values: debug, info, warn, error, none)", s)
}

// DefaultLogger wraps Go's standard log package with configurable log level
//
// Log output format: [LEVEL] component: message key1=value1 key2=value2
//
// Example:
//
//	logger := ncx.NewDefaultLogger(ncx.LogLevelDebug)
//	stack := runstack.New(store, runstack.WithLogger(logger.Named("runstack")))
type DefaultLogger struct {
	level     LogLevel
	component string
	out       *log.Logger
}

// NewDefaultLogger creates a DefaultLogger with the specified log level
// writing to standard error
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	return NewDefaultLoggerTo(os.Stderr, level)
}

// NewDefaultLoggerTo creates a DefaultLogger writing to w
func NewDefaultLoggerTo(w io.Writer, level LogLevel) *DefaultLogger {
	return &DefaultLogger{level: level, out: log.New(w, "", log.LstdFlags)}
}

// Named returns a copy of the logger that tags every line with component
func (l *DefaultLogger) Named(component string) *DefaultLogger {
	c := *l
	c.component = component
	return &c
}

// Level returns the configured threshold
func (l *DefaultLogger) Level() LogLevel {
	return l.level
}

// Debug logs a debug message with structured key-value pairs
func (l *DefaultLogger) Debug(msg string, keysAndValues ...any) {
	l.log(LogLevelDebug, msg, keysAndValues...)
}

// Info logs an informational message with structured key-value pairs
func (l *DefaultLogger) Info(msg string, keysAndValues ...any) {
	l.log(LogLevelInfo, msg, keysAndValues...)
}

// Warn logs a warning message with structured key-value pairs
func (l *DefaultLogger) Warn(msg string, keysAndValues ...any) {
	l.log(LogLevelWarn, msg, keysAndValues...)
}

// Error logs an error message with structured key-value pairs
func (l *DefaultLogger) Error(msg string, keysAndValues ...any) {
	l.log(LogLevelError, msg, keysAndValues...)
}

// sanitizeLogValue renders val for a log line: line breaks and tabs become
// spaces, other control characters and invalid UTF-8 become dots,
// zero-width runes are dropped and direction overrides blanked. Values
// longer than MaxLogValueLength are cut.
//
// Script lines and parameter values are user input, so a value such as
// "x\n[ERROR] fake" must not produce a second log line.
func sanitizeLogValue(val any) string {
	s := fmt.Sprint(val)
	if len(s) > MaxLogValueLength {
		s = s[:MaxLogValueLength] + "...[TRUNCATED]"
	}
	return strings.Map(sanitizeRune, s)
}

func sanitizeRune(r rune) rune {
	switch r {
	case '\n', '\r', '\t', '\f', '\u202E':
		return ' '
	case '\u200B', '\u200C', '\u200D', '\uFEFF':
		return -1
	case utf8.RuneError, 0x7F:
		return '.'
	}
	if r < 0x20 {
		return '.'
	}
	return r
}

// log writes one line "[LEVEL] component: msg k=v ..." when level passes
// the threshold. Keys and values are sanitized; the message comes from
// library code and is written as-is.
func (l *DefaultLogger) log(level LogLevel, msg string, keysAndValues ...any) {
	if l.level == LogLevelNone || level < l.level {
		return
	}

	var line strings.Builder
	fmt.Fprintf(&line, "[%s] ", level)
	if l.component != "" {
		line.WriteString(l.component + ": ")
	}
	line.WriteString(msg)
	for len(keysAndValues) > 0 {
		key, value := keysAndValues[0], any("<MISSING>")
		if len(keysAndValues) > 1 {
			value = sanitizeLogValue(keysAndValues[1])
			keysAndValues = keysAndValues[2:]
		} else {
			keysAndValues = nil
		}
		fmt.Fprintf(&line, " %s=%s", sanitizeLogValue(key), value)
	}
	l.out.Println(line.String())
}

// NoOpLogger is a no-operation logger that discards all log messages
//
// This is the default logger of every component when no logger is configured.
type NoOpLogger struct{}

// Debug discards the log message
func (n *NoOpLogger) Debug(_ string, _ ...any) {}

// Info discards the log message
func (n *NoOpLogger) Info(_ string, _ ...any) {}

// Warn discards the log message
func (n *NoOpLogger) Warn(_ string, _ ...any) {}

// Error discards the log message
func (n *NoOpLogger) Error(_ string, _ ...any) {}
