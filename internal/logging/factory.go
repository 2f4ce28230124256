package logging

import (
	"io"
	"os"
	"strings"
)

type LogFormat string

const (
	FormatText LogFormat = "text"
	FormatJSON LogFormat = "json"
)

// Config selects the logger built by NewLoggerFromConfig.
type Config struct {
	Level   string
	Format  LogFormat
	Service string
	Version string
	Prefix  string
	// Output defaults to stderr; stdout belongs to the MCP transport.
	Output io.Writer
}

// NewLoggerFromConfig builds a JSON or text logger. An empty format falls
// back to GAMMON_LOG_FORMAT, then JSON.
func NewLoggerFromConfig(cfg *Config) ContextLogger {
	format := LogFormat(strings.ToLower(string(cfg.Format)))
	if format == "" {
		format = LogFormat(strings.ToLower(os.Getenv("GAMMON_LOG_FORMAT")))
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	if format == FormatText {
		return NewLoggerAdapter(NewLoggerWithWriter(out, cfg.Prefix, cfg.Level))
	}
	return NewStructuredLoggerWithWriter(out, cfg.Service, cfg.Version, cfg.Level)
}

// Discard returns a logger that drops everything.
func Discard() ContextLogger {
	return NewStructuredLoggerWithWriter(io.Discard, "discard", "", "error")
}
