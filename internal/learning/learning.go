// Package learning implements the Auto-Learning Collector: a durable
// counter of denied commands that, combined with the Risk Classifier,
// emits ranked whitelist-extension suggestions.
package learning

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marcus-qen/linux-broker/internal/classifier"
	"github.com/marcus-qen/linux-broker/internal/types"
)

// Stats is the persisted record for one distinct blocked command string.
type Stats struct {
	Command    string    `json:"command"`
	Count      int       `json:"count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	Users      []string  `json:"users"`
	Hosts      []string  `json:"hosts"`
	RiskLevel  types.RiskLevel `json:"risk_level"`
	Category   string    `json:"category"`
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Suggestion is one ranked candidate for promotion to the whitelist.
type Suggestion struct {
	Command           string
	Count             int
	Users             []string
	Hosts             []string
	AgeHours          int
	RiskLevel         types.RiskLevel
	Category          string
	SuggestedLevel    types.AuthorizationLevel
	SuggestedRole     types.SSHRole
	Rationale         string
	CanAutoAdd        bool
	RecommendedAction types.RecommendedAction
}

// Summary reports aggregate collector statistics.
type Summary struct {
	TotalUniqueCommands int
	TotalBlockAttempts  int
	RiskBreakdown       map[types.RiskLevel]int
	CategoryBreakdown   map[string]int
	StatsFile           string
}

// Collector is the Auto-Learning Collector. The in-memory map is protected
// by a mutex; persistence writes happen under the same lock so the
// on-disk document always reflects a consistent snapshot.
type Collector struct {
	mu         sync.Mutex
	stats      map[string]*Stats
	path       string
	classifier *classifier.Classifier
	log        *zap.Logger
}

// New builds a Collector backed by path (a JSON document) and cls (used
// once per newly-seen command to classify and cache risk/category). The
// stats file is loaded immediately; read failures yield an empty store,
// never an error, per spec.
func New(path string, cls *classifier.Classifier, log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Collector{
		stats:      make(map[string]*Stats),
		path:       path,
		classifier: cls,
		log:        log,
	}
	c.load()
	return c
}

func (c *Collector) load() {
	if c.path == "" {
		return
	}
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var onDisk map[string]*Stats
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		c.log.Warn("learning: stats file unreadable, starting empty", zap.Error(err))
		return
	}
	c.stats = onDisk
}

// save performs a full-document rewrite. Failures are logged and swallowed
// — persistence is best-effort and must never block an authorization
// decision.
func (c *Collector) save() {
	if c.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		c.log.Warn("learning: could not create stats directory", zap.Error(err))
		return
	}
	raw, err := json.MarshalIndent(c.stats, "", "  ")
	if err != nil {
		c.log.Warn("learning: could not marshal stats", zap.Error(err))
		return
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		c.log.Warn("learning: could not write stats file", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, c.path); err != nil {
		c.log.Warn("learning: could not finalize stats file", zap.Error(err))
	}
}

// Record upserts a denied-command observation. On first sighting the
// command is classified once and the result cached.
func (c *Collector) Record(command, user, host string) {
	now := time.Now().UTC()

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.stats[command]
	if !ok {
		risk := types.RiskUnknown
		category := "unknown"
		if c.classifier != nil {
			v := c.classifier.Classify(command)
			risk = v.Risk
			category = v.Category
		}
		s = &Stats{
			Command:   command,
			FirstSeen: now,
			LastSeen:  now,
			RiskLevel: risk,
			Category:  category,
		}
		c.stats[command] = s
	}

	s.Count++
	s.LastSeen = now
	if !containsString(s.Users, user) {
		s.Users = append(s.Users, user)
	}
	if !containsString(s.Hosts, host) {
		s.Hosts = append(s.Hosts, host)
	}

	c.save()
}

// Get returns the stats entry for command, if any.
func (c *Collector) Get(command string) (Stats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.stats[command]
	if !ok {
		return Stats{}, false
	}
	return *s, true
}

// All returns every tracked stats entry.
func (c *Collector) All() []Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Stats, 0, len(c.stats))
	for _, s := range c.stats {
		out = append(out, *s)
	}
	return out
}

// TopBlocked returns the limit most frequently blocked commands.
func (c *Collector) TopBlocked(limit int) []Stats {
	all := c.All()
	sort.Slice(all, func(i, j int) bool { return all[i].Count > all[j].Count })
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

// Suggest emits ranked suggestions for commands that meet the count, age,
// and risk-ceiling thresholds. minAgeHours=0 returns everything meeting
// minCount.
func (c *Collector) Suggest(minCount int, minAgeHours int, maxRisk types.RiskLevel) []Suggestion {
	now := time.Now().UTC()
	all := c.All()

	var out []Suggestion
	for _, s := range all {
		if s.Count < minCount {
			continue
		}
		ageHours := int(now.Sub(s.FirstSeen).Hours())
		if ageHours < minAgeHours {
			continue
		}
		if !s.RiskLevel.AtMost(maxRisk) {
			continue
		}

		suggestion := Suggestion{
			Command:  s.Command,
			Count:    s.Count,
			Users:    s.Users,
			Hosts:    s.Hosts,
			AgeHours: ageHours,
			RiskLevel: s.RiskLevel,
			Category: s.Category,
		}
		if c.classifier != nil {
			v := c.classifier.Classify(s.Command)
			suggestion.SuggestedLevel = v.Level
			suggestion.SuggestedRole = v.Role
			suggestion.Rationale = v.Rationale
			suggestion.CanAutoAdd = v.Risk == types.RiskLow
			suggestion.RecommendedAction = v.RecommendedAction
		}
		out = append(out, suggestion)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Clear removes a single command's stats, or everything if command is "".
func (c *Collector) Clear(command string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if command == "" {
		c.stats = make(map[string]*Stats)
	} else {
		delete(c.stats, command)
	}
	c.save()
}

// Summary reports aggregate totals and breakdowns.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum := Summary{
		TotalUniqueCommands: len(c.stats),
		RiskBreakdown:       make(map[types.RiskLevel]int),
		CategoryBreakdown:   make(map[string]int),
		StatsFile:           c.path,
	}
	for _, s := range c.stats {
		sum.TotalBlockAttempts += s.Count
		sum.RiskBreakdown[s.RiskLevel]++
		sum.CategoryBreakdown[s.Category]++
	}
	return sum
}
