package logging

import (
	"sync"
	"time"
)

// DefaultMaxEntries is the number of log entries kept per activity when no
// other limit is given.
const DefaultMaxEntries = 50

// LogEntry represents a single log record with structured data.
type LogEntry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// LogCollector provides thread-safe storage for the logs of each activity.
// Only the most recent maxEntries entries are kept per activity. Entries are
// only kept for registered activities, so a late write for a removed
// activity is dropped.
type LogCollector struct {
	mu         sync.RWMutex
	logs       map[string][]LogEntry // activity ID -> entries, protected by mu
	maxEntries int
}

// NewLogCollector creates a LogCollector keeping up to maxEntries entries per
// activity. A non-positive maxEntries selects DefaultMaxEntries.
func NewLogCollector(maxEntries int) *LogCollector {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &LogCollector{
		logs:       make(map[string][]LogEntry),
		maxEntries: maxEntries,
	}
}

// Register starts collecting logs for an activity. Registering an activity
// that is already registered keeps its logs.
func (c *LogCollector) Register(activityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.logs[activityID]; !exists {
		c.logs[activityID] = []LogEntry{}
	}
}

// AddLog adds a log entry for the specified activity. It does nothing if the
// activity is not registered.
func (c *LogCollector) AddLog(activityID string, entry LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logs, exists := c.logs[activityID]
	if !exists {
		return
	}
	logs = append(logs, entry)
	if len(logs) > c.maxEntries {
		logs = logs[len(logs)-c.maxEntries:]
	}
	c.logs[activityID] = logs
}

// GetLogs returns a copy of the log entries for an activity, oldest first.
func (c *LogCollector) GetLogs(activityID string) []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	logs, exists := c.logs[activityID]
	if !exists {
		return nil
	}

	result := make([]LogEntry, len(logs))
	copy(result, logs)
	return result
}

// Len returns the number of registered activities.
func (c *LogCollector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.logs)
}

// Remove drops the logs of an activity, e.g. once it has aged out of the
// ledger. Later writes for the activity are dropped.
func (c *LogCollector) Remove(activityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.logs, activityID)
}
