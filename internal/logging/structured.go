package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// StructuredLogger writes one JSON object per line.
type StructuredLogger struct {
	service string
	version string
	out     *lockedWriter
	level   *levelVar
	fields  map[string]interface{}
}

// LogEntry is the JSON shape of one log line.
type LogEntry struct {
	Timestamp     string                 `json:"timestamp"`
	Level         string                 `json:"level"`
	Service       string                 `json:"service"`
	Version       string                 `json:"version,omitempty"`
	Message       string                 `json:"message"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	RequestID     string                 `json:"request_id,omitempty"`
	Tool          string                 `json:"tool,omitempty"`
	Caller        string                 `json:"caller,omitempty"`
	Fields        map[string]interface{} `json:"fields,omitempty"`
}

// lockedWriter serializes writes from loggers derived from one root.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// levelVar is shared by derived loggers so SetLevel affects all of them.
type levelVar struct {
	mu    sync.RWMutex
	level Level
}

func (v *levelVar) get() Level {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.level
}

func (v *levelVar) set(l Level) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.level = l
}

func NewStructuredLogger(service, version, level string) *StructuredLogger {
	return NewStructuredLoggerWithWriter(os.Stderr, service, version, level)
}

func NewStructuredLoggerWithWriter(w io.Writer, service, version, level string) *StructuredLogger {
	return &StructuredLogger{
		service: service,
		version: version,
		out:     &lockedWriter{w: w},
		level:   &levelVar{level: ParseLevel(level)},
		fields:  map[string]interface{}{},
	}
}

func (l *StructuredLogger) derive(extra map[string]interface{}) *StructuredLogger {
	fields := make(map[string]interface{}, len(l.fields)+len(extra))
	for k, v := range l.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	return &StructuredLogger{
		service: l.service,
		version: l.version,
		out:     l.out,
		level:   l.level,
		fields:  fields,
	}
}

// WithContext returns a logger carrying the correlation ID, request ID and
// tool name stored in ctx.
func (l *StructuredLogger) WithContext(ctx context.Context) ContextLogger {
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
	return l.derive(extra)
}

func (l *StructuredLogger) WithFields(fields map[string]interface{}) ContextLogger {
	return l.derive(fields)
}

func (l *StructuredLogger) WithField(key string, value interface{}) ContextLogger {
	return l.derive(map[string]interface{}{key: value})
}

func (l *StructuredLogger) Debug(message string, args ...interface{}) {
	l.write(DebugLevel, message, args)
}

func (l *StructuredLogger) Info(message string, args ...interface{}) {
	l.write(InfoLevel, message, args)
}

func (l *StructuredLogger) Warn(message string, args ...interface{}) {
	l.write(WarnLevel, message, args)
}

func (l *StructuredLogger) Error(message string, args ...interface{}) {
	l.write(ErrorLevel, message, args)
}

func (l *StructuredLogger) Fatal(message string, args ...interface{}) {
	l.write(ErrorLevel, message, args)
	os.Exit(1)
}

func (l *StructuredLogger) SetLevel(level Level) { l.level.set(level) }
func (l *StructuredLogger) GetLevel() Level      { return l.level.get() }

// write formats message with as many args as it has verbs; the remaining
// args are read as key/value pairs.
func (l *StructuredLogger) write(level Level, message string, args []interface{}) {
	if level < l.level.get() {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Service:   l.service,
		Version:   l.version,
		Message:   message,
	}

	if n := countVerbs(message); n > 0 && len(args) >= n {
		entry.Message = fmt.Sprintf(message, args[:n]...)
		args = args[n:]
	}
	if len(args) > 0 || len(l.fields) > 0 {
		entry.Fields = make(map[string]interface{}, len(l.fields)+len(args)/2)
	}
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			entry.Fields[key] = args[i+1]
		}
	}
	if len(args)%2 == 1 {
		entry.Fields["extra"] = args[len(args)-1]
	}

	for k, v := range l.fields {
		s, isString := v.(string)
		switch {
		case k == fieldCorrelationID && isString:
			entry.CorrelationID = s
		case k == fieldRequestID && isString:
			entry.RequestID = s
		case k == fieldTool && isString:
			entry.Tool = s
		default:
			entry.Fields[k] = v
		}
	}
	if len(entry.Fields) == 0 {
		entry.Fields = nil
	}

	if _, file, line, ok := runtime.Caller(2); ok {
		entry.Caller = fmt.Sprintf("%s:%d", file, line)
	}

	b, err := json.Marshal(entry)
	if err != nil {
		b = []byte(fmt.Sprintf(`{"level":%q,"message":%q,"error":"json encoding failed"}`, entry.Level, entry.Message))
	}
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	_, _ = l.out.w.Write(append(b, '\n'))
}

// countVerbs counts printf verbs, ignoring "%%".
func countVerbs(s string) int {
	if !strings.Contains(s, "%") {
		return 0
	}
	n := 0
	for i := 0; i < len(s)-1; i++ {
		if s[i] != '%' {
			continue
		}
		if s[i+1] == '%' {
			i++
			continue
		}
		n++
	}
	return n
}
