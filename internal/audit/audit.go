// Package audit provides an append-only, redacting audit log for security
// and lifecycle events across the broker.
package audit

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType classifies audit events.
type EventType string

const (
	EventSSHConnect        EventType = "ssh_connect"
	EventSSHDisconnect     EventType = "ssh_disconnect"
	EventSSHCommand        EventType = "ssh_command"
	EventRemediationPropose EventType = "remediation_proposed"
	EventRemediationApprove EventType = "remediation_approved"
	EventRemediationReject  EventType = "remediation_rejected"
	EventRemediationExecute EventType = "remediation_executed"
	EventRemediationFail    EventType = "remediation_failed"
	EventToolCall          EventType = "tool_call"
	EventToolSuccess       EventType = "tool_success"
	EventToolError         EventType = "tool_error"
	EventSecurityViolation EventType = "security_violation"
)

// Status reports the outcome of an audited action.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusPending Status = "pending"
	StatusDenied  Status = "denied"
)

// Level is the audit severity, independent of Status.
type Level string

const (
	LevelDebug    Level = "DEBUG"
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// sensitiveKeys triggers redaction of a detail field whenever the field
// name contains one of these substrings, case-insensitively.
var sensitiveKeys = []string{"password", "passphrase", "token", "secret", "key"}

// Event is a single audit log entry.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"event_type"`
	Status    Status         `json:"status"`
	Level     Level          `json:"level"`
	Details   map[string]any `json:"details,omitempty"`
}

// Log is an append-only, optionally ring-bounded audit log.
type Log struct {
	mu     sync.RWMutex
	events []Event
	maxLen int
}

// NewLog creates an audit log. maxLen=0 means unbounded.
func NewLog(maxLen int) *Log {
	return &Log{events: make([]Event, 0, 256), maxLen: maxLen}
}

// Record appends a sanitized event to the log.
func (l *Log) Record(typ EventType, status Status, level Level, details map[string]any) Event {
	evt := Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      typ,
		Status:    status,
		Level:     level,
		Details:   sanitize(details),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evt)
	if l.maxLen > 0 && len(l.events) > l.maxLen {
		l.events = l.events[len(l.events)-l.maxLen:]
	}
	return evt
}

// sanitize redacts any field whose key contains a sensitive substring,
// recursing into nested maps.
func sanitize(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		if isSensitiveKey(k) {
			out[k] = "***REDACTED***"
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = sanitize(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Filter selects a subset of events for Query.
type Filter struct {
	Type  EventType
	Level Level
	Since time.Time
	Until time.Time
	Limit int
}

// Query returns matching events, newest first.
func (l *Log) Query(f Filter) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Event
	for i := len(l.events) - 1; i >= 0; i-- {
		evt := l.events[i]
		if f.Type != "" && evt.Type != f.Type {
			continue
		}
		if f.Level != "" && evt.Level != f.Level {
			continue
		}
		if !f.Since.IsZero() && evt.Timestamp.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && evt.Timestamp.After(f.Until) {
			continue
		}
		out = append(out, evt)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

// Recent returns the n most recent events.
func (l *Log) Recent(n int) []Event {
	return l.Query(Filter{Limit: n})
}

// Count returns the total number of retained events.
func (l *Log) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
