package core

import (
	"context"
	"strings"
)

// LogLevel is the fixed set of levels the client logs at.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

const (
	LogChannelStdout = "stdout"
	LogChannelStderr = "stderr"
	LogChannelDaily  = "daily"
	LogChannelFile   = "file"
)

func (l LogLevel) Valid() bool {
	switch l.normalize() {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

func (l LogLevel) normalize() LogLevel {
	level := LogLevel(strings.ToLower(strings.TrimSpace(string(l))))
	switch level {
	case "":
		return LogLevelInfo
	case "warning":
		return LogLevelWarn
	default:
		return level
	}
}

// String returns the normalized level name.
func (l LogLevel) String() string {
	return string(l.normalize())
}

// Enabled reports whether a message at level passes the configured minimum.
func (l LogLevel) Enabled(level LogLevel) bool {
	return level.rank() >= l.rank()
}

func (l LogLevel) rank() int {
	switch l.normalize() {
	case LogLevelDebug:
		return 0
	case LogLevelWarn:
		return 2
	case LogLevelError:
		return 3
	default:
		return 1
	}
}

func logAt(ctx context.Context, logger Logger, level LogLevel, message string, fields map[string]any) {
	if logger == nil {
		return
	}
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch level.normalize() {
	case LogLevelDebug:
		logger.Debug(message, args...)
	case LogLevelWarn:
		logger.Warn(message, args...)
	case LogLevelError:
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}
