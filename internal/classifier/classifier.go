// Package classifier implements the Risk Classifier: a pure function from a
// command string to a types.Verdict, consulted by both the Command Executor
// Facade and the Auto-Learning Collector.
package classifier

import (
	"regexp"
	"strings"

	"github.com/marcus-qen/linux-broker/internal/catalog"
	"github.com/marcus-qen/linux-broker/internal/types"
)

type patternRule struct {
	re     *regexp.Regexp
	reason string
}

// rmRF matches `rm -rf <path>` so the exemption for /tmp and /var/tmp can be
// applied in code — RE2 has no negative lookahead to express it as a single
// pattern.
var rmRF = regexp.MustCompile(`(?i)rm\s+-rf\s+(\S+)`)

var exemptRMRFRoots = []string{"/tmp", "/var/tmp"}

func isExemptRMRF(target string) bool {
	for _, root := range exemptRMRFRoots {
		if target == root || strings.HasPrefix(target, root+"/") {
			return true
		}
	}
	return false
}

// dangerousPatterns are CRITICAL: level=BLOCKED, role=NONE. Case-insensitive.
var dangerousPatterns = compileRules([]rawRule{
	{`.*dd\s+.*of=/dev/[sv]d`, "Direct disk write — extremely dangerous"},
	{`.*mkfs\..*`, "Format filesystem — data loss"},
	{`.*fdisk\s+.*`, "Partition manipulation — data loss risk"},
	{`.*parted\s+.*`, "Partition manipulation — data loss risk"},
	{`.*wipefs\s+.*`, "Wipe filesystem signatures — data loss"},
	{`.*:\(\)\{.*:\|:.*\};:`, "Fork bomb — denial of service"},
	{`.*>\s*/dev/sd[a-z]`, "Direct write to a block device — dangerous"},
	{`.*chown\s+-R\s+.*\s+/\s*$`, "Recursive ownership change from root"},
	{`.*chmod\s+-R\s+777.*`, "Recursive world-writable permissions — security risk"},
})

// mediumRiskPatterns are MEDIUM: level=MANUAL, role=EXECUTOR.
var mediumRiskPatterns = compileRules([]rawRule{
	{`^systemctl\s+(restart|reload|start|stop|enable|disable)\s+.*`, "Service lifecycle change"},
	{`^(podman|docker)\s+(restart|start|stop)\s+.*`, "Container lifecycle change"},
	{`^reboot(\s.*)?$`, "System reboot"},
	{`^shutdown(\s.*)?$`, "System shutdown"},
})

// readonlyPatterns are LOW: level=AUTO, role=READER.
var readonlyPatterns = compileRules([]rawRule{
	{`^(ls|cat|head|tail|less|more|grep|find)\s+.*`, "Read-only file inspection"},
	{`^(ps|pgrep)\s+.*`, "Read-only process inspection"},
	{`^(df|du|free|uptime|w|who)(\s.*)?$`, "Read-only system inspection"},
	{`^netstat\s+.*`, "Read-only network inspection"},
	{`^ss\s+.*`, "Read-only socket inspection"},
	{`^ip\s+(addr|route|link)(\s.*)?$`, "Read-only network inspection"},
	{`^systemctl\s+(status|list-units|list-unit-files|show|is-active|is-enabled|cat|list-dependencies)(\s.*)?$`, "Read-only unit inspection"},
	{`^journalctl(\s.*)?$`, "Read-only log inspection"},
	{`^(podman|docker)\s+(ps|inspect|images|logs)(\s.*)?$`, "Read-only container inspection"},
	{`^ansible-playbook\s+.*--check.*`, "Dry-run playbook check"},
})

type rawRule struct {
	pattern string
	reason  string
}

func compileRules(raw []rawRule) []patternRule {
	out := make([]patternRule, len(raw))
	for i, r := range raw {
		out[i] = patternRule{re: regexp.MustCompile(`(?i)` + r.pattern), reason: r.reason}
	}
	return out
}

// Classifier is the pure-function Risk Classifier. It holds a reference to
// the (immutable, already-loaded) Policy Catalog so catalog lookup can be
// step one of the algorithm, per spec.
type Classifier struct {
	catalog *catalog.Registry
}

// New builds a Classifier backed by reg. reg must already be loaded.
func New(reg *catalog.Registry) *Classifier {
	return &Classifier{catalog: reg}
}

// Classify runs the strict-order algorithm: catalog → dangerous → medium →
// read-only → unknown. It never mutates shared state and never suspends.
func (c *Classifier) Classify(cmd string) types.Verdict {
	trimmed := strings.TrimSpace(cmd)
	if trimmed == "" {
		return unknownVerdict()
	}

	if c.catalog != nil {
		if m := c.catalog.Find(trimmed); m != nil {
			action := types.ActionAddManual
			if m.Spec.Level == types.LevelAuto {
				action = types.ActionAddAuto
			}
			return types.Verdict{
				Risk:                    m.Spec.Risk,
				Category:                m.Plugin.Category,
				Level:                   m.Spec.Level,
				Role:                    m.Spec.Role,
				Rationale:               m.Spec.Rationale,
				AuthorizationSuggestion: m.Spec.Level,
				RecommendedAction:       action,
			}
		}
	}

	if m := rmRF.FindStringSubmatch(trimmed); m != nil && !isExemptRMRF(m[1]) {
		return types.Verdict{
			Risk:                    types.RiskCritical,
			Category:                "destructive",
			Level:                   types.LevelBlocked,
			Role:                    types.RoleNone,
			Rationale:               "Recursive delete of a system root — use a scoped cleanup instead",
			AuthorizationSuggestion: types.LevelBlocked,
			RecommendedAction:       types.ActionBlockPermanently,
		}
	}

	for _, r := range dangerousPatterns {
		if r.re.MatchString(trimmed) {
			return types.Verdict{
				Risk:                    types.RiskCritical,
				Category:                "destructive",
				Level:                   types.LevelBlocked,
				Role:                    types.RoleNone,
				Rationale:               r.reason,
				AuthorizationSuggestion: types.LevelBlocked,
				RecommendedAction:       types.ActionBlockPermanently,
			}
		}
	}

	for _, r := range mediumRiskPatterns {
		if r.re.MatchString(trimmed) {
			return types.Verdict{
				Risk:                    types.RiskMedium,
				Category:                "system_modification",
				Level:                   types.LevelManual,
				Role:                    types.RoleExecutor,
				Rationale:               r.reason,
				AuthorizationSuggestion: types.LevelManual,
				RecommendedAction:       types.ActionAddManual,
			}
		}
	}

	for _, r := range readonlyPatterns {
		if r.re.MatchString(trimmed) {
			return types.Verdict{
				Risk:                    types.RiskLow,
				Category:                "monitoring",
				Level:                   types.LevelAuto,
				Role:                    types.RoleReader,
				Rationale:               r.reason,
				AuthorizationSuggestion: types.LevelAuto,
				RecommendedAction:       types.ActionAddAuto,
			}
		}
	}

	return unknownVerdict()
}

func unknownVerdict() types.Verdict {
	return types.Verdict{
		Risk:              types.RiskUnknown,
		Category:          "unknown",
		Role:              types.RoleNone,
		Rationale:         "Command not recognized — manual review required",
		RecommendedAction: types.ActionManualReview,
	}
}
