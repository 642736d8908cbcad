// Package legacy loads the flat-form whitelist document that backs the
// Authorization Decision Engine's rule list (spec §3's "LegacyRule"). The
// engine walks only these rules; it does not consult the Policy Catalog.
package legacy

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/marcus-qen/linux-broker/internal/types"
)

// Rule is the older flat-form command rule: pattern, level, role,
// description, rationale. First match over the whole ordered list wins.
type Rule struct {
	Pattern     string `yaml:"pattern"`
	Description string `yaml:"description"`
	SSHUser     string `yaml:"ssh_user"`
	Rationale   string `yaml:"rationale"`

	Level types.AuthorizationLevel `yaml:"-"`
	Role  types.SSHRole            `yaml:"-"`

	re *regexp.Regexp
}

// Matches reports whether cmd satisfies this rule's anchored pattern.
func (r *Rule) Matches(cmd string) bool {
	if r.re == nil {
		r.re = regexp.MustCompile(r.Pattern)
	}
	return r.re.MatchString(strings.TrimSpace(cmd))
}

// document is the on-disk whitelist file shape: three sections,
// concatenated AUTO, MANUAL, BLOCKED in that order.
type document struct {
	AutoApproved   []Rule `yaml:"auto_approved"`
	ManualApproval []Rule `yaml:"manual_approval"`
	Blocked        []Rule `yaml:"blocked"`
}

// Store holds the immutable-after-load legacy rule list, with optional
// hot-reload via fsnotify when backed by a file.
type Store struct {
	mu    sync.RWMutex
	rules []*Rule
	path  string
	log   *zap.Logger
}

// NewStore creates a Store. If path is empty, Load installs the built-in
// default rule set.
func NewStore(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log}
}

// Load reads the whitelist document from disk (or installs defaults if no
// path is configured) and compiles every pattern eagerly.
func (s *Store) Load() error {
	var doc document
	if s.path == "" {
		doc = defaultDocument()
	} else {
		raw, err := os.ReadFile(expandPath(s.path))
		if err != nil {
			return fmt.Errorf("legacy: read whitelist %s: %w", s.path, err)
		}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("legacy: parse whitelist %s: %w", s.path, err)
		}
	}

	rules := make([]*Rule, 0, len(doc.AutoApproved)+len(doc.ManualApproval)+len(doc.Blocked))
	rules = appendSection(rules, doc.AutoApproved, types.LevelAuto, types.RoleReader)
	rules = appendSection(rules, doc.ManualApproval, types.LevelManual, types.RoleExecutor)
	rules = appendSection(rules, doc.Blocked, types.LevelBlocked, types.RoleNone)

	for _, r := range rules {
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return fmt.Errorf("legacy: invalid pattern %q: %w", r.Pattern, err)
		}
	}

	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()
	return nil
}

func appendSection(rules []*Rule, section []Rule, level types.AuthorizationLevel, role types.SSHRole) []*Rule {
	for i := range section {
		r := section[i]
		r.Level = level
		r.Role = role
		rules = append(rules, &r)
	}
	return rules
}

// Match walks the rule list in declaration order and returns the first hit.
func (s *Store) Match(cmd string) *Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if r.Matches(cmd) {
			return r
		}
	}
	return nil
}

// Rules returns a snapshot of the current rule list.
func (s *Store) Rules() []*Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Watch installs an fsnotify watcher on the backing file and reloads the
// rule list whenever it changes, logging (but not propagating) reload
// errors so a bad edit doesn't crash the broker mid-flight.
func (s *Store) Watch(stop <-chan struct{}) error {
	if s.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("legacy: create watcher: %w", err)
	}
	if err := watcher.Add(expandPath(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("legacy: watch %s: %w", s.path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := s.Load(); err != nil {
					s.log.Warn("legacy whitelist reload failed, keeping previous rules", zap.Error(err))
				} else {
					s.log.Info("legacy whitelist reloaded", zap.String("path", s.path))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn("legacy whitelist watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

func expandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + p[1:]
		}
	}
	return os.ExpandEnv(p)
}

// defaultDocument is the built-in legacy rule set used when no whitelist
// file is configured. It mirrors the original whitelist.COMMAND_WHITELIST
// coverage so that every diagnostic and Ansible tool in the MCP surface
// resolves to AUTO or MANUAL instead of falling through to default-deny.
func defaultDocument() document {
	return document{
		AutoApproved: []Rule{
			{Pattern: `^(ls|cat|head|tail|less|more|grep|find|df|du|free|uptime|w|who)(\s.*)?$`, Description: "Read-only inspection", Rationale: "No state change"},
			{Pattern: `^ping(\s.*)?$`, Description: "Connectivity check", Rationale: "No state change"},
			{Pattern: `^systemctl\s+(status|list-units|show|is-active|is-enabled)(\s.*)?$`, Description: "Service status", Rationale: "Read-only"},
			{Pattern: `^uname(\s.*)?$`, Description: "Kernel/OS identification", Rationale: "Read-only system info"},
			{Pattern: `^lsblk(\s.*)?$`, Description: "List block devices", Rationale: "Read-only system info"},
			{Pattern: `^journalctl(\s.*)?$`, Description: "Read system logs", Rationale: "Read-only, diagnostic purpose"},
			{Pattern: `^ip\s+(addr|route|link|a|r)(\s.*)?$`, Description: "Network interface/route inspection", Rationale: "Read-only network diagnostic"},
			{Pattern: `^ss\s+-[lntup]+(\s.*)?$`, Description: "List network connections", Rationale: "Read-only network diagnostic"},
			{Pattern: `^podman\s+(ps|inspect)(\s.*)?$`, Description: "Container inspection", Rationale: "Read-only container info"},
			{Pattern: `^ansible-playbook\s+.*--check.*$`, Description: "Ansible dry-run (check mode)", Rationale: "Read-only, no system changes"},
		},
		ManualApproval: []Rule{
			{Pattern: `^systemctl\s+(restart|reload|start|stop)\s+.*$`, Description: "Service lifecycle change", Rationale: "Requires human sign-off"},
			{Pattern: `^(podman|docker)\s+(restart|stop|start)\s+.*$`, Description: "Container lifecycle change", Rationale: "Requires human sign-off"},
			{Pattern: `^ansible-playbook\s+.*$`, Description: "Execute Ansible playbook", Rationale: "Infrastructure changes, needs approval"},
			{Pattern: `^reboot\s*$`, Description: "Reboot system", Rationale: "CRITICAL: full system restart"},
			{Pattern: `^shutdown\s+.*$`, Description: "Shutdown system", Rationale: "CRITICAL: system shutdown"},
		},
		Blocked: []Rule{
			{Pattern: `^rm\s+-rf\s+/\s*$`, Description: "Delete the root filesystem", Rationale: "Always destructive"},
			{Pattern: `^mkfs\..*$`, Description: "Format a filesystem", Rationale: "Always destructive"},
			{Pattern: `.*dd\s+.*of=/dev/[sv]d.*`, Description: "Direct disk write", Rationale: "Could corrupt a filesystem"},
			{Pattern: `.*fdisk\s+.*`, Description: "Partition a disk", Rationale: "Could corrupt partitions"},
			{Pattern: `.*:\(\)\{.*:\|:.*\};:.*`, Description: "Fork bomb", Rationale: "Denial of service"},
		},
	}
}
