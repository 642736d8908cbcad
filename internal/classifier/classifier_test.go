package classifier

import (
	"testing"

	"github.com/marcus-qen/linux-broker/internal/catalog"
	"github.com/marcus-qen/linux-broker/internal/types"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	reg := catalog.NewRegistry()
	reg.Load()
	return New(reg)
}

func TestClassifyEmptyIsUnknown(t *testing.T) {
	c := newClassifier(t)
	v := c.Classify("")
	if v.Risk != types.RiskUnknown {
		t.Fatalf("expected UNKNOWN risk for empty command, got %s", v.Risk)
	}
	if v.RecommendedAction != types.ActionManualReview {
		t.Fatalf("expected MANUAL_REVIEW, got %s", v.RecommendedAction)
	}
}

func TestClassifyCatalogHitTakesPriority(t *testing.T) {
	c := newClassifier(t)
	v := c.Classify("ls -la /var/log")
	if v.Level != types.LevelAuto || v.Role != types.RoleReader {
		t.Fatalf("expected AUTO/READER for ls, got %s/%s", v.Level, v.Role)
	}
}

func TestClassifyDangerousRMRF(t *testing.T) {
	c := newClassifier(t)
	v := c.Classify("rm -rf /var")
	if v.Risk != types.RiskCritical || v.Level != types.LevelBlocked {
		t.Fatalf("expected CRITICAL/BLOCKED for rm -rf /var, got %s/%s", v.Risk, v.Level)
	}
}

func TestClassifyRMRFExemptsTmp(t *testing.T) {
	c := newClassifier(t)
	v := c.Classify("rm -rf /tmp/build-1234")
	if v.Level == types.LevelBlocked {
		t.Fatalf("rm -rf under /tmp must not be auto-blocked, got %s", v.Level)
	}
}

func TestClassifyForkBomb(t *testing.T) {
	c := newClassifier(t)
	v := c.Classify(":(){:|:&};:")
	if v.Risk != types.RiskCritical {
		t.Fatalf("expected CRITICAL for fork bomb, got %s", v.Risk)
	}
}

func TestClassifyMediumRiskReboot(t *testing.T) {
	c := newClassifier(t)
	// Bypass the catalog's own systemctl-restart spec by using a command
	// shape the catalog does not recognize directly: reboot.
	v := c.Classify("reboot")
	if v.Risk != types.RiskMedium || v.Level != types.LevelManual {
		t.Fatalf("expected MEDIUM/MANUAL for reboot, got %s/%s", v.Risk, v.Level)
	}
}

func TestClassifyUnknownCommand(t *testing.T) {
	c := newClassifier(t)
	v := c.Classify("frobnicate --widgets")
	if v.Risk != types.RiskUnknown {
		t.Fatalf("expected UNKNOWN, got %s", v.Risk)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := newClassifier(t)
	a := c.Classify("systemctl restart unbound")
	b := c.Classify("systemctl restart unbound")
	if a.Level != b.Level || a.Role != b.Role || a.Risk != b.Risk {
		t.Fatalf("classification is not deterministic: %+v vs %+v", a, b)
	}
}
