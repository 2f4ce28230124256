package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string onto a Level, defaulting to info.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger is a printf-style text logger.
type Logger struct {
	out   io.Writer
	base  string
	log   *log.Logger
	level Level
	mu    sync.RWMutex
}

func NewLogger(prefix string, level string) *Logger {
	return NewLoggerWithWriter(os.Stderr, prefix, level)
}

func NewLoggerWithWriter(w io.Writer, prefix string, level string) *Logger {
	return &Logger{
		out:   w,
		base:  prefix,
		log:   log.New(w, prefix, log.LstdFlags|log.Lmicroseconds),
		level: ParseLevel(level),
	}
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *Logger) enabled(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

func (l *Logger) printf(level Level, format string, v ...interface{}) {
	if l.enabled(level) {
		l.log.Printf("["+level.String()+"] "+format, v...)
	}
}

func (l *Logger) Debug(format string, v ...interface{}) { l.printf(DebugLevel, format, v...) }
func (l *Logger) Info(format string, v ...interface{})  { l.printf(InfoLevel, format, v...) }
func (l *Logger) Warn(format string, v ...interface{})  { l.printf(WarnLevel, format, v...) }
func (l *Logger) Error(format string, v ...interface{}) { l.printf(ErrorLevel, format, v...) }

func (l *Logger) Fatal(format string, v ...interface{}) {
	l.log.Printf("[FATAL] "+format, v...)
	os.Exit(1)
}

// WithRequestID returns a logger whose prefix carries reqID.
func (l *Logger) WithRequestID(reqID string) *Logger {
	prefix := fmt.Sprintf("%s[%s] ", l.base, reqID)
	return &Logger{
		out:   l.out,
		base:  prefix,
		log:   log.New(l.out, prefix, log.LstdFlags|log.Lmicroseconds),
		level: l.GetLevel(),
	}
}
