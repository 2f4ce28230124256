package logging

import "context"

// LoggerInterface is satisfied by both the text and JSON loggers.
type LoggerInterface interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Fatal(format string, args ...interface{})

	SetLevel(level Level)
	GetLevel() Level
}

// ContextLogger adds request-scoped fields.
type ContextLogger interface {
	LoggerInterface
	WithContext(ctx context.Context) ContextLogger
	WithField(key string, value interface{}) ContextLogger
	WithFields(fields map[string]interface{}) ContextLogger
}

var (
	_ LoggerInterface = (*Logger)(nil)
	_ ContextLogger   = (*StructuredLogger)(nil)
	_ ContextLogger   = (*LoggerAdapter)(nil)
)
