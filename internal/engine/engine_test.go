package engine

import (
	"testing"
	"time"

	"github.com/marcus-qen/linux-broker/internal/catalog"
	"github.com/marcus-qen/linux-broker/internal/classifier"
	"github.com/marcus-qen/linux-broker/internal/learning"
	"github.com/marcus-qen/linux-broker/internal/legacy"
	"github.com/marcus-qen/linux-broker/internal/types"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	rules := legacy.NewStore("", nil)
	if err := rules.Load(); err != nil {
		t.Fatalf("legacy load: %v", err)
	}
	reg := catalog.NewRegistry()
	reg.Load()
	cls := classifier.New(reg)
	learn := learning.New("", cls, nil)
	return New(rules, learn, nil)
}

func TestCheckAutoPath(t *testing.T) {
	e := newEngine(t)
	auth := e.Check("coreos-11", "systemctl status unbound", "mcp-user")
	if !auth.Allowed || auth.Level != types.LevelAuto {
		t.Fatalf("expected AUTO/allowed, got %+v", auth)
	}
	if len(e.AllPending()) != 0 {
		t.Fatal("AUTO path must not create a pending entry")
	}
}

func TestCheckManualPathFullLifecycle(t *testing.T) {
	e := newEngine(t)
	auth := e.Check("coreos-11", "systemctl restart unbound", "mcp-user")
	if auth.Allowed || auth.Level != types.LevelManual || auth.ApprovalID == "" {
		t.Fatalf("expected MANUAL with approval id, got %+v", auth)
	}
	if len(e.AllPending()) != 1 {
		t.Fatalf("expected one pending entry, got %d", len(e.AllPending()))
	}

	if _, err := e.Approve(auth.ApprovalID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := e.MarkExecuted(auth.ApprovalID); err != nil {
		t.Fatalf("MarkExecuted: %v", err)
	}
	if len(e.AllPending()) != 0 {
		t.Fatal("expected pending list empty after execution")
	}
}

func TestCheckBlockedPathRecordsDenial(t *testing.T) {
	e := newEngine(t)
	auth := e.Check("coreos-11", "rm -rf /var", "mcp-user")
	if auth.Allowed || auth.Level != types.LevelBlocked {
		t.Fatalf("expected BLOCKED, got %+v", auth)
	}
	if s, ok := e.learning.Get("rm -rf /var"); !ok || s.Count != 1 {
		t.Fatalf("expected the denial recorded once, got %+v ok=%v", s, ok)
	}
}

func TestCheckDefaultDenyForUnknownCommand(t *testing.T) {
	e := newEngine(t)
	auth := e.Check("coreos-11", "frobnicate --widgets", "mcp-user")
	if auth.Allowed || auth.Level != types.LevelBlocked {
		t.Fatalf("expected default-deny BLOCKED, got %+v", auth)
	}
}

func TestCheckIsDeterministic(t *testing.T) {
	e := newEngine(t)
	a := e.Check("coreos-11", "ls -la", "mcp-user")
	b := e.Check("coreos-11", "ls -la", "mcp-user")
	if a.Level != b.Level || a.Role != b.Role {
		t.Fatalf("expected deterministic (level, role): %+v vs %+v", a, b)
	}
}

func TestConcurrentManualChecksProduceDistinctApprovalIDs(t *testing.T) {
	e := newEngine(t)
	ids := make(chan string, 10)
	for i := 0; i < 10; i++ {
		go func() {
			auth := e.Check("coreos-11", "systemctl restart unbound", "mcp-user")
			ids <- auth.ApprovalID
		}()
	}
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		id := <-ids
		if seen[id] {
			t.Fatalf("duplicate approval id %s — MANUAL must always individuate", id)
		}
		seen[id] = true
	}
}

func TestApproveTwiceIsIdempotent(t *testing.T) {
	e := newEngine(t)
	auth := e.Check("coreos-11", "systemctl restart unbound", "mcp-user")
	if _, err := e.Approve(auth.ApprovalID); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	if _, err := e.Approve(auth.ApprovalID); err != nil {
		t.Fatalf("second approve must be a no-op success: %v", err)
	}
}

func TestApproveExecutedFails(t *testing.T) {
	e := newEngine(t)
	auth := e.Check("coreos-11", "systemctl restart unbound", "mcp-user")
	e.Approve(auth.ApprovalID)
	e.MarkExecuted(auth.ApprovalID)
	if _, err := e.Approve(auth.ApprovalID); err == nil {
		t.Fatal("expected error approving an already-executed pending")
	}
}

func TestCleanupRemovesOldEntries(t *testing.T) {
	e := newEngine(t)
	auth := e.Check("coreos-11", "systemctl restart unbound", "mcp-user")
	entry, _ := e.GetPending(auth.ApprovalID)
	entry.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	if n := e.Cleanup(24 * time.Hour); n != 1 {
		t.Fatalf("expected 1 entry cleaned up, got %d", n)
	}
}
