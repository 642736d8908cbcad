package learning

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/marcus-qen/linux-broker/internal/catalog"
	"github.com/marcus-qen/linux-broker/internal/classifier"
	"github.com/marcus-qen/linux-broker/internal/types"
)

func newClassifier(t *testing.T) *classifier.Classifier {
	t.Helper()
	reg := catalog.NewRegistry()
	reg.Load()
	return classifier.New(reg)
}

func TestRecordAccumulatesCountAndSets(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "stats.json"), newClassifier(t), nil)

	c.Record("frobnicate --widgets", "alice", "host-a")
	c.Record("frobnicate --widgets", "alice", "host-a")
	c.Record("frobnicate --widgets", "bob", "host-b")

	s, ok := c.Get("frobnicate --widgets")
	if !ok {
		t.Fatal("expected stats entry to exist")
	}
	if s.Count != 3 {
		t.Fatalf("expected count 3, got %d", s.Count)
	}
	if len(s.Users) != 2 || len(s.Hosts) != 2 {
		t.Fatalf("expected 2 distinct users/hosts, got %+v", s)
	}
	if s.FirstSeen.After(s.LastSeen) {
		t.Fatal("first_seen must not be after last_seen")
	}
}

func TestRecordClassifiesOnlyOnFirstSighting(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "stats.json"), newClassifier(t), nil)
	c.Record("ls -la", "alice", "host-a")
	first, _ := c.Get("ls -la")
	c.Record("ls -la", "bob", "host-b")
	second, _ := c.Get("ls -la")
	if first.RiskLevel != second.RiskLevel || first.Category != second.Category {
		t.Fatal("risk/category must stay cached from first classification")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.json")
	c := New(path, newClassifier(t), nil)
	c.Record("rm -rf /opt/app", "alice", "host-a")

	reloaded := New(path, newClassifier(t), nil)
	s, ok := reloaded.Get("rm -rf /opt/app")
	if !ok || s.Count != 1 {
		t.Fatalf("expected round-tripped stats, got %+v ok=%v", s, ok)
	}
}

func TestLoadToleratesMissingAndCorruptFile(t *testing.T) {
	dir := t.TempDir()
	missing := New(filepath.Join(dir, "missing.json"), newClassifier(t), nil)
	if len(missing.All()) != 0 {
		t.Fatal("expected empty store for missing file")
	}

	corruptPath := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corruptPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	corrupt := New(corruptPath, newClassifier(t), nil)
	if len(corrupt.All()) != 0 {
		t.Fatal("expected empty store for corrupt file")
	}
}

func TestSuggestThresholds(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "stats.json"), newClassifier(t), nil)
	for i := 0; i < 5; i++ {
		c.Record("ls -la /srv", "alice", "host-a")
	}
	c.mu.Lock()
	s := c.stats["ls -la /srv"]
	s.FirstSeen = s.FirstSeen.Add(-25 * 60 * 60 * 1e9) // 25h ago
	c.mu.Unlock()

	suggestions := c.Suggest(5, 24, types.RiskLow)
	if len(suggestions) == 0 {
		t.Fatal("expected at least one suggestion for a low-risk, high-count command")
	}
}

func TestSuggestExcludesUnknownRiskByDefault(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "stats.json"), newClassifier(t), nil)
	for i := 0; i < 5; i++ {
		c.Record("frobnicate --widgets", "mcp-user", "coreos-11")
	}
	c.mu.Lock()
	s := c.stats["frobnicate --widgets"]
	s.FirstSeen = s.FirstSeen.Add(-25 * 60 * 60 * 1e9) // 25h ago, so only the risk ceiling can exclude it
	c.mu.Unlock()

	suggestions := c.Suggest(5, 24, types.RiskLow)
	if len(suggestions) != 0 {
		t.Fatalf("expected zero suggestions for an UNKNOWN-risk command, got %+v", suggestions)
	}
}

func TestClearAllAndSingle(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "stats.json"), newClassifier(t), nil)
	c.Record("a", "u", "h")
	c.Record("b", "u", "h")
	c.Clear("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected a to be cleared")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("expected b to remain")
	}
	c.Clear("")
	if len(c.All()) != 0 {
		t.Fatal("expected all stats cleared")
	}
}

func TestSummaryBreakdowns(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "stats.json"), newClassifier(t), nil)
	c.Record("ls -la", "u", "h")
	c.Record("rm -rf /opt", "u", "h")
	sum := c.Summary()
	if sum.TotalUniqueCommands != 2 || sum.TotalBlockAttempts != 2 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.RiskBreakdown[types.RiskLow] != 1 || sum.RiskBreakdown[types.RiskCritical] != 1 {
		t.Fatalf("unexpected risk breakdown: %+v", sum.RiskBreakdown)
	}
}

func TestPersistedJSONShape(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.json")
	c := New(path, newClassifier(t), nil)
	c.Record("uptime", "u", "h")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read stats file: %v", err)
	}
	var onDisk map[string]Stats
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("unmarshal stats file: %v", err)
	}
	if _, ok := onDisk["uptime"]; !ok {
		t.Fatal("expected 'uptime' key in persisted document")
	}
}
