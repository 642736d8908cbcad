// Package catalog holds the static, pluggable registry of command families
// that the broker is willing to recognize by name. It is built once at
// process start and is read-only thereafter.
package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/marcus-qen/linux-broker/internal/types"
)

// ErrDuplicatePlugin is returned by Register when a plugin name already
// exists in the catalog.
var ErrDuplicatePlugin = errors.New("catalog: duplicate plugin name")

// CommandSpec is an immutable description of one recognized command shape.
//
// Invariant: if Risk=LOW and Level=AUTO then Role=READER; if Level=MANUAL
// then Role=EXECUTOR; if Level=BLOCKED then Role=NONE.
type CommandSpec struct {
	Key         string
	Pattern     string
	re          *regexp.Regexp
	Risk        types.RiskLevel
	Level       types.AuthorizationLevel
	Role        types.SSHRole
	Description string
	Rationale   string
	Examples    []string
	Flags       []string
}

// Matches reports whether cmd matches this spec's anchored pattern.
func (s *CommandSpec) Matches(cmd string) bool {
	if s.re == nil {
		s.re = regexp.MustCompile(s.Pattern)
	}
	return s.re.MatchString(strings.TrimSpace(cmd))
}

// Plugin is a named, ordered grouping of CommandSpecs.
type Plugin struct {
	Name        string
	Category    string
	Description string
	order       []string
	specs       map[string]*CommandSpec
}

// NewPlugin constructs a Plugin from an ordered spec list. Spec.Key must be
// unique within the plugin; the constructor compiles every pattern eagerly
// so a malformed pattern panics at startup rather than at match time.
func NewPlugin(name, category, description string, specs []CommandSpec) *Plugin {
	p := &Plugin{
		Name:        name,
		Category:    category,
		Description: description,
		order:       make([]string, 0, len(specs)),
		specs:       make(map[string]*CommandSpec, len(specs)),
	}
	for i := range specs {
		s := specs[i]
		s.re = regexp.MustCompile(s.Pattern)
		p.order = append(p.order, s.Key)
		p.specs[s.Key] = &s
	}
	return p
}

// Lookup finds the spec for cmd within this plugin: first the first
// whitespace-delimited token is tried as a direct key; on miss, every spec
// is tested in declaration order.
func (p *Plugin) Lookup(cmd string) *CommandSpec {
	trimmed := strings.TrimSpace(cmd)
	if trimmed == "" {
		return nil
	}
	token := trimmed
	if idx := strings.IndexByte(trimmed, ' '); idx >= 0 {
		token = trimmed[:idx]
	}
	if s, ok := p.specs[token]; ok && s.Matches(trimmed) {
		return s
	}
	for _, key := range p.order {
		s := p.specs[key]
		if s.Matches(trimmed) {
			return s
		}
	}
	return nil
}

// Specs returns every spec in declaration order.
func (p *Plugin) Specs() []*CommandSpec {
	out := make([]*CommandSpec, 0, len(p.order))
	for _, key := range p.order {
		out = append(out, p.specs[key])
	}
	return out
}

// Match pairs a matched spec with the plugin that owns it.
type Match struct {
	Plugin *Plugin
	Spec   *CommandSpec
}

// Registry is the Policy Catalog: an ordered set of Plugins.
type Registry struct {
	mu      sync.RWMutex
	once    sync.Once
	order   []string
	plugins map[string]*Plugin
}

// NewRegistry returns an empty catalog. Call Load to populate it with the
// built-in plugin set, or Register to add plugins individually.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]*Plugin)}
}

// Register adds a plugin to the catalog. Plugins are consulted, in Find,
// in the order they were registered.
func (r *Registry) Register(p *Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[p.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, p.Name)
	}
	r.plugins[p.Name] = p
	r.order = append(r.order, p.Name)
	return nil
}

// Load populates the registry with the built-in plugin set exactly once,
// regardless of how many goroutines call it concurrently.
func (r *Registry) Load() {
	r.once.Do(func() {
		for _, p := range BuiltinPlugins() {
			// Registry is otherwise empty at this point; ignore the
			// (impossible) duplicate error.
			_ = r.Register(p)
		}
	})
}

// Find locates the first matching (plugin, spec) pair, walking plugins in
// registration order.
func (r *Registry) Find(cmd string) *Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		p := r.plugins[name]
		if s := p.Lookup(cmd); s != nil {
			return &Match{Plugin: p, Spec: s}
		}
	}
	return nil
}

// Search performs a case-insensitive substring match over command key,
// description, and rationale across every plugin.
func (r *Registry) Search(query string) []Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q := strings.ToLower(query)
	var out []Match
	for _, name := range r.order {
		p := r.plugins[name]
		for _, key := range p.order {
			s := p.specs[key]
			if strings.Contains(strings.ToLower(key), q) ||
				strings.Contains(strings.ToLower(s.Description), q) ||
				strings.Contains(strings.ToLower(s.Rationale), q) {
				out = append(out, Match{Plugin: p, Spec: s})
			}
		}
	}
	return out
}

// Plugin returns the named plugin, if registered.
func (r *Registry) Plugin(name string) (*Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// Plugins returns every plugin in registration order.
func (r *Registry) Plugins() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Plugin, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.plugins[name])
	}
	return out
}

// Categories returns the distinct plugin categories present in the catalog.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, name := range r.order {
		c := r.plugins[name].Category
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// ByCategory returns all specs belonging to plugins in the given category.
func (r *Registry) ByCategory(category string) []Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Match
	for _, name := range r.order {
		p := r.plugins[name]
		if p.Category != category {
			continue
		}
		for _, key := range p.order {
			out = append(out, Match{Plugin: p, Spec: p.specs[key]})
		}
	}
	return out
}

// Summary is a reflection helper describing the catalog's shape.
type Summary struct {
	PluginCount int
	SpecCount   int
	Categories  []string
}

// Summary reports aggregate catalog statistics.
func (r *Registry) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Summary{PluginCount: len(r.order)}
	for _, name := range r.order {
		s.SpecCount += len(r.plugins[name].order)
	}
	s.Categories = r.Categories()
	return s
}
