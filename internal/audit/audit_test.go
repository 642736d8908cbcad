package audit

import "testing"

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	l := NewLog(0)
	evt := l.Record(EventSSHConnect, StatusSuccess, LevelInfo, map[string]any{"host": "coreos-11"})
	if evt.ID == "" {
		t.Fatal("expected a generated ID")
	}
	if evt.Timestamp.IsZero() {
		t.Fatal("expected a timestamp to be set")
	}
}

func TestSanitizeRedactsSensitiveKeys(t *testing.T) {
	l := NewLog(0)
	evt := l.Record(EventSecurityViolation, StatusFailure, LevelCritical, map[string]any{
		"host":        "coreos-11",
		"key_path":    "/home/alice/.ssh/id_ed25519",
		"passphrase":  "hunter2",
		"nested":      map[string]any{"api_token": "xyz"},
	})
	if evt.Details["key_path"] != "***REDACTED***" {
		t.Fatalf("expected key_path redacted, got %v", evt.Details["key_path"])
	}
	if evt.Details["passphrase"] != "***REDACTED***" {
		t.Fatal("expected passphrase redacted")
	}
	if evt.Details["host"] != "coreos-11" {
		t.Fatal("expected non-sensitive field to survive untouched")
	}
	nested := evt.Details["nested"].(map[string]any)
	if nested["api_token"] != "***REDACTED***" {
		t.Fatal("expected nested sensitive field redacted")
	}
}

func TestRingBufferEvictsOldest(t *testing.T) {
	l := NewLog(3)
	for i := 0; i < 5; i++ {
		l.Record(EventToolCall, StatusSuccess, LevelInfo, nil)
	}
	if l.Count() != 3 {
		t.Fatalf("expected ring buffer capped at 3, got %d", l.Count())
	}
}

func TestQueryFiltersByTypeAndReturnsNewestFirst(t *testing.T) {
	l := NewLog(0)
	l.Record(EventSSHConnect, StatusSuccess, LevelInfo, nil)
	l.Record(EventSecurityViolation, StatusDenied, LevelWarning, map[string]any{"n": 1})
	l.Record(EventSecurityViolation, StatusDenied, LevelWarning, map[string]any{"n": 2})

	results := l.Query(Filter{Type: EventSecurityViolation})
	if len(results) != 2 {
		t.Fatalf("expected 2 security_violation events, got %d", len(results))
	}
	if results[0].Details["n"] != 2 {
		t.Fatal("expected newest-first ordering")
	}
}

func TestRecentRespectsLimit(t *testing.T) {
	l := NewLog(0)
	for i := 0; i < 10; i++ {
		l.Record(EventToolCall, StatusSuccess, LevelInfo, nil)
	}
	if len(l.Recent(3)) != 3 {
		t.Fatal("expected Recent to honor the limit")
	}
}
