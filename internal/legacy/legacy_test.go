package legacy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marcus-qen/linux-broker/internal/types"
)

func TestLoadDefaultsWithNoPath(t *testing.T) {
	s := NewStore("", nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.Rules()) == 0 {
		t.Fatal("expected default rules to be populated")
	}
}

func TestMatchFirstWins(t *testing.T) {
	s := NewStore("", nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	r := s.Match("systemctl status nginx")
	if r == nil || r.Level != types.LevelAuto {
		t.Fatalf("expected AUTO match for systemctl status, got %+v", r)
	}
}

func TestDefaultAutoApprovedCoversRequiredToolSurface(t *testing.T) {
	s := NewStore("", nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	cases := []string{
		"uname -a",
		"lsblk",
		"journalctl -u unbound -n 100 --no-pager",
		"ip addr",
		"ip route",
		"ss -tlnp",
		"ss -tnp",
		"systemctl is-active 'unbound'; systemctl is-enabled 'unbound'",
		"ansible-playbook 'deploy.yml' --check",
	}
	for _, cmd := range cases {
		r := s.Match(cmd)
		if r == nil || r.Level != types.LevelAuto {
			t.Fatalf("expected AUTO match for %q, got %+v", cmd, r)
		}
	}
}

func TestDefaultManualApprovalCoversLiveAnsibleRuns(t *testing.T) {
	s := NewStore("", nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	r := s.Match("ansible-playbook 'deploy.yml'")
	if r == nil || r.Level != types.LevelManual {
		t.Fatalf("expected MANUAL match for a live playbook run, got %+v", r)
	}
}

func TestMatchNoneReturnsNil(t *testing.T) {
	s := NewStore("", nil)
	_ = s.Load()
	if r := s.Match("frobnicate --widgets"); r != nil {
		t.Fatalf("expected no match, got %+v", r)
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whitelist.yaml")
	doc := `
auto_approved:
  - pattern: "^uptime$"
    description: "Show uptime"
    ssh_user: "mcp-reader"
    rationale: "Read-only"
manual_approval:
  - pattern: "^systemctl restart myapp$"
    description: "Restart myapp"
    ssh_user: "exec-runner"
    rationale: "State change"
blocked:
  - pattern: "^rm -rf /$"
    description: "Delete root"
    rationale: "Destructive"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	s := NewStore(path, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	rules := s.Rules()
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}
	if rules[0].Level != types.LevelAuto || rules[1].Level != types.LevelManual || rules[2].Level != types.LevelBlocked {
		t.Fatalf("sections out of order: %+v", rules)
	}
}

func TestLoadRejectsInvalidPattern(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whitelist.yaml")
	doc := `
auto_approved:
  - pattern: "("
    description: "broken"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	s := NewStore(path, nil)
	if err := s.Load(); err == nil {
		t.Fatal("expected error for invalid regex pattern")
	}
}
