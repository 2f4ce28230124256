package logging

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// LoggerAdapter gives the text Logger the ContextLogger methods. Fields are
// appended to each message as sorted key=value pairs.
type LoggerAdapter struct {
	*Logger
	fields map[string]interface{}
}

func NewLoggerAdapter(logger *Logger) *LoggerAdapter {
	return &LoggerAdapter{Logger: logger, fields: map[string]interface{}{}}
}

func (l *LoggerAdapter) with(extra map[string]interface{}) *LoggerAdapter {
	next := &LoggerAdapter{Logger: l.Logger, fields: make(map[string]interface{}, len(l.fields)+len(extra))}
	for k, v := range l.fields {
		next.fields[k] = v
	}
	for k, v := range extra {
		if k == fieldRequestID {
			if id, ok := v.(string); ok {
				next.Logger = next.Logger.WithRequestID(id)
				continue
			}
		}
		next.fields[k] = v
	}
	return next
}

func (l *LoggerAdapter) WithContext(ctx context.Context) ContextLogger {
	extra := map[string]interface{}{}
	if id, ok := CorrelationIDFromContext(ctx); ok {
		extra[fieldCorrelationID] = id
	}
	if id, ok := RequestIDFromContext(ctx); ok {
		extra[fieldRequestID] = id
	}
	if tool, ok := ToolFromContext(ctx); ok {
		extra[fieldTool] = tool
	}
	return l.with(extra)
}

func (l *LoggerAdapter) WithField(key string, value interface{}) ContextLogger {
	return l.with(map[string]interface{}{key: value})
}

func (l *LoggerAdapter) WithFields(fields map[string]interface{}) ContextLogger {
	return l.with(fields)
}

func (l *LoggerAdapter) Debug(format string, args ...interface{}) {
	l.Logger.Debug(l.decorate(format), args...)
}

func (l *LoggerAdapter) Info(format string, args ...interface{}) {
	l.Logger.Info(l.decorate(format), args...)
}

func (l *LoggerAdapter) Warn(format string, args ...interface{}) {
	l.Logger.Warn(l.decorate(format), args...)
}

func (l *LoggerAdapter) Error(format string, args ...interface{}) {
	l.Logger.Error(l.decorate(format), args...)
}

func (l *LoggerAdapter) Fatal(format string, args ...interface{}) {
	l.Logger.Fatal(l.decorate(format), args...)
}

func (l *LoggerAdapter) decorate(format string) string {
	if len(l.fields) == 0 {
		return format
	}
	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		// Escape so field values cannot inject printf verbs.
		parts[i] = strings.ReplaceAll(fmt.Sprintf("%s=%v", k, l.fields[k]), "%", "%%")
	}
	return format + " [" + strings.Join(parts, " ") + "]"
}
