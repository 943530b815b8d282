package core

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the minimal structured-logging interface used throughout the
// core. Fields are a flat map so every call site can attach whatever
// context it has without defining a new type per log line.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// ComponentAwareLogger tags every subsequent log line with a component
// name, so a single process-wide log stream stays filterable by
// subsystem:
//
//	"dispatch/queue", "dispatch/orchestrator", "dispatch/resilience",
//	"dispatch/judge", "worker/<name>"
type ComponentAwareLogger interface {
	Logger
	WithComponent(component string) Logger
}

// NoOpLogger discards everything. It is the zero-value default so callers
// never need a nil check before logging.
type NoOpLogger struct{}

func (NoOpLogger) Info(string, map[string]interface{})  {}
func (NoOpLogger) Warn(string, map[string]interface{})  {}
func (NoOpLogger) Error(string, map[string]interface{}) {}
func (NoOpLogger) Debug(string, map[string]interface{}) {}
func (n NoOpLogger) WithComponent(string) Logger        { return n }

// ProductionLogger is a slog-backed ComponentAwareLogger. It emits JSON to
// stdout, with a "component" attribute when one is set followed by every
// entry of the caller's fields map as an attribute of its own.
type ProductionLogger struct {
	base      *slog.Logger
	component string
}

// NewProductionLogger builds a ProductionLogger at the given slog level
// ("debug", "info", "warn", "error"; defaults to "info").
func NewProductionLogger(level string) *ProductionLogger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return &ProductionLogger{base: slog.New(handler)}
}

func (l *ProductionLogger) log(level slog.Level, msg string, fields map[string]interface{}) {
	args := make([]any, 0, len(fields)*2+2)
	if l.component != "" {
		args = append(args, "component", l.component)
	}
	for k, v := range fields {
		args = append(args, k, v)
	}
	l.base.Log(context.Background(), level, msg, args...)
}

func (l *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	l.log(slog.LevelInfo, msg, fields)
}

func (l *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(slog.LevelWarn, msg, fields)
}

func (l *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	l.log(slog.LevelError, msg, fields)
}

func (l *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(slog.LevelDebug, msg, fields)
}

// WithComponent returns a logger tagging every line with component,
// sharing this logger's underlying slog.Logger and level.
func (l *ProductionLogger) WithComponent(component string) Logger {
	return &ProductionLogger{base: l.base, component: component}
}
