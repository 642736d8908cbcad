package toolsurface

import (
	"context"
	"testing"

	"github.com/marcus-qen/linux-broker/internal/audit"
	"github.com/marcus-qen/linux-broker/internal/catalog"
	"github.com/marcus-qen/linux-broker/internal/classifier"
	"github.com/marcus-qen/linux-broker/internal/config"
	"github.com/marcus-qen/linux-broker/internal/engine"
	"github.com/marcus-qen/linux-broker/internal/executor"
	"github.com/marcus-qen/linux-broker/internal/learning"
	"github.com/marcus-qen/linux-broker/internal/legacy"
	"github.com/marcus-qen/linux-broker/internal/remediation"
	"github.com/marcus-qen/linux-broker/internal/transport"
)

func newTestSurface(t *testing.T) *Surface {
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
	auditLog := audit.NewLog(0)
	facade := executor.New(cls, eng, xport, auditLog, nil)
	rem := remediation.New(xport, auditLog, nil)

	return New(facade, eng, rem, rules, learn, reg, cls, nil)
}

func TestAnalyzeCommandClassifiesWithoutDispatch(t *testing.T) {
	s := newTestSurface(t)
	_, out, err := s.handleAnalyzeCommand(context.Background(), nil, analyzeCommandInput{Command: "rm -rf /"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := out.(verdictView)
	if !ok {
		t.Fatalf("expected verdictView, got %T", out)
	}
	if v.Risk != "CRITICAL" {
		t.Fatalf("expected CRITICAL risk, got %s", v.Risk)
	}
}

func TestReadLogFileRejectsPathOutsideAllowedRoot(t *testing.T) {
	s := newTestSurface(t)
	_, _, err := s.handleReadLogFile(context.Background(), nil, readLogFileInput{Host: "coreos-11", Path: "/etc/shadow"})
	if err == nil {
		t.Fatal("expected an error for a path outside /var/log")
	}
}

func TestListCommandPluginsReturnsBuiltins(t *testing.T) {
	s := newTestSurface(t)
	_, out, err := s.handleListCommandPlugins(context.Background(), nil, listPluginsInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	plugins, ok := out.([]pluginView)
	if !ok || len(plugins) == 0 {
		t.Fatalf("expected a non-empty plugin list, got %#v", out)
	}
}

func TestProposeRemediationUnknownActionErrors(t *testing.T) {
	s := newTestSurface(t)
	_, _, err := s.handleProposeRemediation(context.Background(), nil, proposeRemediationInput{Name: "not_a_real_action", Host: "coreos-11"})
	if err == nil {
		t.Fatal("expected an error for an unknown remediation action")
	}
}

func TestExecuteSSHCommandReturnsApprovalEnvelopeForManualCommand(t *testing.T) {
	s := newTestSurface(t)
	_, out, err := s.handleExecuteSSHCommand(context.Background(), nil, executeSSHCommandInput{Host: "coreos-11", Command: "systemctl restart unbound"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, ok := out.(execResult)
	if !ok || !resp.NeedsApproval || resp.ApprovalID == "" {
		t.Fatalf("expected an approval envelope, got %#v", out)
	}
}

func TestGetSystemInfoDispatchesAsAutoInsteadOfBlocked(t *testing.T) {
	s := newTestSurface(t)
	_, out, err := s.handleSystemInfo(context.Background(), nil, hostInput{Host: "coreos-11"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, ok := out.(execResult)
	if !ok {
		t.Fatalf("expected execResult, got %T", out)
	}
	if resp.NeedsApproval {
		t.Fatal("uname -a must never require approval")
	}
	if resp.Risk != "" {
		t.Fatalf("expected no BLOCKED-path risk enrichment for an AUTO command, got %q", resp.Risk)
	}
}

func TestGetServiceHealthCompoundCommandDispatchesAsAuto(t *testing.T) {
	s := newTestSurface(t)
	_, out, err := s.handleServiceHealth(context.Background(), nil, serviceInput{Host: "coreos-11", Service: "unbound"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, ok := out.(execResult)
	if !ok {
		t.Fatalf("expected execResult, got %T", out)
	}
	if resp.NeedsApproval || resp.Risk != "" {
		t.Fatalf("expected the compound is-active/is-enabled command to route AUTO, got %+v", resp)
	}
}

func TestCheckAnsiblePlaybookDispatchesAsAuto(t *testing.T) {
	s := newTestSurface(t)
	_, out, err := s.handleCheckAnsiblePlaybook(context.Background(), nil, runPlaybookInput{Host: "coreos-11", Playbook: "deploy.yml"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, ok := out.(execResult)
	if !ok {
		t.Fatalf("expected execResult, got %T", out)
	}
	if resp.NeedsApproval || resp.Risk != "" {
		t.Fatalf("expected --check to route AUTO, got %+v", resp)
	}
}

func TestRunAnsiblePlaybookRequiresApproval(t *testing.T) {
	s := newTestSurface(t)
	_, out, err := s.handleRunAnsiblePlaybook(context.Background(), nil, runPlaybookInput{Host: "coreos-11", Playbook: "deploy.yml"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, ok := out.(execResult)
	if !ok || !resp.NeedsApproval || resp.ApprovalID == "" {
		t.Fatalf("expected a live playbook run to require approval, got %#v", out)
	}
}

func TestShowCommandWhitelistListsLoadedRules(t *testing.T) {
	s := newTestSurface(t)
	_, out, err := s.handleShowCommandWhitelist(context.Background(), nil, showCommandWhitelistInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rules, ok := out.([]whitelistRuleView)
	if !ok || len(rules) == 0 {
		t.Fatalf("expected non-empty whitelist, got %#v", out)
	}
}
