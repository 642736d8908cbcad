package executor

import (
	"testing"

	"github.com/marcus-qen/linux-broker/internal/audit"
	"github.com/marcus-qen/linux-broker/internal/catalog"
	"github.com/marcus-qen/linux-broker/internal/classifier"
	"github.com/marcus-qen/linux-broker/internal/config"
	"github.com/marcus-qen/linux-broker/internal/engine"
	"github.com/marcus-qen/linux-broker/internal/learning"
	"github.com/marcus-qen/linux-broker/internal/legacy"
	"github.com/marcus-qen/linux-broker/internal/transport"
	"github.com/marcus-qen/linux-broker/internal/types"
)

func newFacade(t *testing.T) *Facade {
	t.Helper()
	t.Setenv("SSH_AUTH_SOCK", "")

	rules := legacy.NewStore("", nil)
	if err := rules.Load(); err != nil {
		t.Fatalf("legacy load: %v", err)
	}
	reg := catalog.NewRegistry()
	reg.Load()
	cls := classifier.New(reg)
	learn := learning.New("", cls, nil)
	eng := engine.New(rules, learn, nil)
	xport := transport.New(config.Config{}, nil, nil)

	return New(cls, eng, xport, audit.NewLog(0), nil)
}

func TestExecuteBlockedReturnsEnrichedDenial(t *testing.T) {
	f := newFacade(t)
	resp := f.Execute("coreos-11", "rm -rf /", "mcp-user", false)
	if resp.Allowed {
		t.Fatal("expected denial for rm -rf /")
	}
	if resp.Risk != types.RiskCritical {
		t.Fatalf("expected CRITICAL risk enrichment, got %s", resp.Risk)
	}
}

func TestExecuteAutoFailsCleanlyWithoutLiveTransport(t *testing.T) {
	f := newFacade(t)
	resp := f.Execute("coreos-11", "systemctl status unbound", "mcp-user", false)
	if resp.Allowed {
		t.Fatal("expected AUTO dispatch to fail without a live SSH backend")
	}
	if resp.DenialReason == "" {
		t.Fatal("expected a transport failure reason")
	}
}

func TestExecuteManualReturnsApprovalEnvelope(t *testing.T) {
	f := newFacade(t)
	resp := f.Execute("coreos-11", "systemctl restart unbound", "mcp-user", false)
	if resp.Allowed || !resp.NeedsApproval || resp.ApprovalID == "" {
		t.Fatalf("expected an approval envelope, got %+v", resp)
	}
}

func TestExecuteManualForceApprovalBypassesAndWarns(t *testing.T) {
	f := newFacade(t)
	resp := f.Execute("coreos-11", "systemctl restart unbound", "mcp-user", true)
	if resp.Allowed {
		t.Fatal("expected force_approval dispatch to still fail without a live SSH backend")
	}
	if !resp.NeedsApproval {
		t.Fatal("expected the bypass attempt to still report the approval id")
	}
	if n := len(f.audit.Query(audit.Filter{Type: audit.EventSecurityViolation, Level: audit.LevelCritical})); n != 1 {
		t.Fatalf("expected one CRITICAL security event for the bypass, got %d", n)
	}
}
