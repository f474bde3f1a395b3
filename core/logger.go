package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ProductionLogger is the default Logger/ComponentAwareLogger implementation.
// It supports JSON and text output modes and tags every entry with a
// component name so log streams can be filtered per subsystem.
type ProductionLogger struct {
	level       string
	component   string
	serviceName string
	format      string // "json" or "text"
	output      io.Writer
	metrics     MetricsRegistry
}

// NewProductionLogger builds a logger from level ("debug"/"info"/"warn"/"error"),
// format ("json"/"text") and a service name used in every entry. No metrics
// registry is attached; call WithMetrics explicitly to turn on log-volume
// emission once a registry has been constructed.
func NewProductionLogger(level, format, serviceName string) *ProductionLogger {
	if level == "" {
		level = "info"
	}
	if format == "" {
		format = "json"
	}
	return &ProductionLogger{
		level:       level,
		format:      format,
		serviceName: serviceName,
		component:   "engine/core",
		output:      os.Stdout,
	}
}

// WithMetrics returns a logger sharing this one's configuration with registry
// attached as its log-volume metrics sink. Pass it explicitly at
// construction time rather than registering a process-wide default.
func (l *ProductionLogger) WithMetrics(registry MetricsRegistry) *ProductionLogger {
	clone := *l
	clone.metrics = registry
	return &clone
}

// WithComponent returns a logger sharing this one's configuration but tagged
// with a different component name.
func (l *ProductionLogger) WithComponent(component string) Logger {
	clone := *l
	clone.component = component
	return &clone
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

func (l *ProductionLogger) enabled(level string) bool {
	return levelRank[level] >= levelRank[l.level]
}

func (l *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	l.logEvent(context.Background(), "info", msg, fields)
}
func (l *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	l.logEvent(context.Background(), "error", msg, fields)
}
func (l *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	l.logEvent(context.Background(), "warn", msg, fields)
}
func (l *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	l.logEvent(context.Background(), "debug", msg, fields)
}

func (l *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logEvent(ctx, "info", msg, fields)
}
func (l *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logEvent(ctx, "error", msg, fields)
}
func (l *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logEvent(ctx, "warn", msg, fields)
}
func (l *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logEvent(ctx, "debug", msg, fields)
}

func (l *ProductionLogger) logEvent(ctx context.Context, level, msg string, fields map[string]interface{}) {
	if !l.enabled(level) {
		return
	}

	if l.format == "json" {
		entry := map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"level":     level,
			"service":   l.serviceName,
			"component": l.component,
			"message":   msg,
		}
		if requestID, ok := ctx.Value(requestIDKey{}).(string); ok && requestID != "" {
			entry["request_id"] = requestID
		}
		for k, v := range fields {
			entry[k] = v
		}
		b, err := json.Marshal(entry)
		if err == nil {
			fmt.Fprintln(l.output, string(b))
		}
	} else {
		var parts []string
		for k, v := range fields {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
		reqPrefix := ""
		if requestID, ok := ctx.Value(requestIDKey{}).(string); ok && requestID != "" {
			reqPrefix = fmt.Sprintf("[req=%s] ", requestID)
		}
		fmt.Fprintf(l.output, "%s [%s] [%s] %s%s %s\n",
			time.Now().UTC().Format(time.RFC3339), strings.ToUpper(level), l.component, reqPrefix, msg, strings.Join(parts, " "))
	}

	if l.metrics != nil {
		l.metrics.EmitWithContext(ctx, "engine.log.events", 1, "level", level, "component", l.component)
	}
}

type requestIDKey struct{}

// WithRequestID attaches a request/debate correlation ID to a context so that
// loggers using *WithContext methods attach it automatically.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}
