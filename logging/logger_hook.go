package logging

import (
	"log/slog"
)

// LoggerHook creates activity-specific loggers by wrapping a base logger.
type LoggerHook interface {
	// LoggerForActivity returns a logger whose records are attributed to activityID.
	LoggerForActivity(baseLogger *slog.Logger, activityID string) *slog.Logger
}

// CapturingLoggerHook creates loggers that capture into a LogCollector.
type CapturingLoggerHook struct {
	collector *LogCollector
}

// NewCapturingLoggerHook creates a hook that captures all activity logs in collector.
func NewCapturingLoggerHook(collector *LogCollector) *CapturingLoggerHook {
	return &CapturingLoggerHook{
		collector: collector,
	}
}

// LoggerForActivity implements LoggerHook. The returned logger is tagged with
// the activity ID in its output.
func (p *CapturingLoggerHook) LoggerForActivity(baseLogger *slog.Logger, activityID string) *slog.Logger {
	handler := NewCapturingHandler(baseLogger.Handler(), p.collector, activityID)
	return slog.New(handler).With("activity", activityID)
}

// Collector returns the collector the hook writes to.
func (p *CapturingLoggerHook) Collector() *LogCollector {
	return p.collector
}

// NopLoggerHook returns the base logger unchanged.
type NopLoggerHook struct{}

// LoggerForActivity implements LoggerHook.
func (NopLoggerHook) LoggerForActivity(baseLogger *slog.Logger, activityID string) *slog.Logger {
	return baseLogger.With("activity", activityID)
}
