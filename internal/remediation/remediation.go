// Package remediation implements the Remediation Action Manager: a
// bounded-vocabulary catalog of high-level operations dispatched to the
// executor identity, with the full six-state approval lifecycle.
package remediation

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marcus-qen/linux-broker/internal/audit"
	"github.com/marcus-qen/linux-broker/internal/lifecycle"
	"github.com/marcus-qen/linux-broker/internal/transport"
	"github.com/marcus-qen/linux-broker/internal/types"
)

// CatalogEntry describes one named remediation action.
type CatalogEntry struct {
	Name        string
	Description string
	Impact      types.ImpactLevel
	// ForcedCommand is the literal token sent to the executor's
	// forced-command wrapper on the remote side.
	ForcedCommand string
}

// Catalog is the fixed vocabulary of remediation actions.
var Catalog = map[string]CatalogEntry{
	"restart_unbound": {
		Name: "restart_unbound", Description: "Restart Unbound DNS service",
		Impact: types.ImpactLow, ForcedCommand: "restart_unbound",
	},
	"reload_caddy": {
		Name: "reload_caddy", Description: "Reload Caddy reverse proxy configuration",
		Impact: types.ImpactLow, ForcedCommand: "reload_caddy",
	},
	"flush_dns_cache": {
		Name: "flush_dns_cache", Description: "Flush DNS cache (systemd-resolved)",
		Impact: types.ImpactLow, ForcedCommand: "flush_dns_cache",
	},
	"restart_container": {
		Name: "restart_container", Description: "Restart a container",
		Impact: types.ImpactMedium, ForcedCommand: "restart_container",
	},
	"rotate_logs": {
		Name: "rotate_logs", Description: "Force log rotation",
		Impact: types.ImpactLow, ForcedCommand: "rotate_logs",
	},
}

// ErrUnknownAction is returned by Propose when the name is not in Catalog.
type ErrUnknownAction struct{ Name string }

func (e *ErrUnknownAction) Error() string {
	return fmt.Sprintf("remediation: unknown action %q", e.Name)
}

// Action is the payload carried by a remediation lifecycle entry.
type Action struct {
	Name      string
	Host      string
	Rationale string
	Impact    types.ImpactLevel
	Command   string
}

// Manager is the Remediation Action Manager.
type Manager struct {
	pending *lifecycle.Machine[Action]
	xport   *transport.Transport
	audit   *audit.Log
	log     *zap.Logger
}

// New builds a Manager dispatching through xport.
func New(xport *transport.Transport, auditLog *audit.Log, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		pending: lifecycle.NewMachine[Action](),
		xport:   xport,
		audit:   auditLog,
		log:     log,
	}
}

// Propose validates name against Catalog and creates a RemediationAction in
// PROPOSED. If autoApprove and the action's impact is LOW, it immediately
// transitions to APPROVED with approved_by "auto".
func (m *Manager) Propose(name, host, rationale string, autoApprove bool) (*lifecycle.Entry[Action], error) {
	entry, ok := Catalog[name]
	if !ok {
		return nil, &ErrUnknownAction{Name: name}
	}

	action := Action{Name: name, Host: host, Rationale: rationale, Impact: entry.Impact, Command: entry.ForcedCommand}
	proposed := m.pending.Propose(action)

	m.record(audit.EventRemediationPropose, audit.StatusPending, audit.LevelInfo, name, host, rationale, "")

	if autoApprove && entry.Impact == types.ImpactLow {
		approved, err := m.pending.AutoApprove(proposed.ID)
		if err != nil {
			return proposed, nil
		}
		m.record(audit.EventRemediationApprove, audit.StatusSuccess, audit.LevelInfo, name, host, rationale, "auto")
		return approved, nil
	}

	return proposed, nil
}

// Approve decides a pending action: approved transitions to APPROVED,
// rejected transitions to REJECTED and deletes the entry.
func (m *Manager) Approve(id string, approved bool, approver string) (*lifecycle.Entry[Action], error) {
	entry, err := m.pending.Decide(id, approved, approver)
	if err != nil {
		return nil, err
	}
	if approved {
		m.record(audit.EventRemediationApprove, audit.StatusSuccess, audit.LevelInfo, entry.Payload.Name, entry.Payload.Host, entry.Payload.Rationale, approver)
	} else {
		m.record(audit.EventRemediationReject, audit.StatusDenied, audit.LevelInfo, entry.Payload.Name, entry.Payload.Host, entry.Payload.Rationale, approver)
	}
	return entry, nil
}

// Execute requires APPROVED, marks EXECUTING, dispatches over the
// executor role, then transitions to COMPLETED (deleting the entry) or
// FAILED (retaining it) based on the remote exit code.
func (m *Manager) Execute(id string) (*lifecycle.Entry[Action], error) {
	entry, err := m.pending.BeginExecution(id)
	if err != nil {
		return nil, err
	}

	action := entry.Payload
	exitCode, stdout, stderr, err := m.xport.ExecuteAction(action.Host, action.Command, "")
	if err != nil {
		m.record(audit.EventRemediationFail, audit.StatusFailure, audit.LevelError, action.Name, action.Host, action.Rationale, "")
		return m.pending.Fail(id, err.Error())
	}
	if exitCode != 0 {
		msg := fmt.Sprintf("exit code %d: %s", exitCode, stderr)
		m.record(audit.EventRemediationFail, audit.StatusFailure, audit.LevelError, action.Name, action.Host, action.Rationale, "")
		return m.pending.Fail(id, msg)
	}

	m.record(audit.EventRemediationExecute, audit.StatusSuccess, audit.LevelInfo, action.Name, action.Host, action.Rationale, "")
	return m.pending.Complete(id, stdout, true)
}

// ListPending returns every non-terminal action.
func (m *Manager) ListPending() []*lifecycle.Entry[Action] {
	return m.pending.Pending()
}

// Get returns a single action by id.
func (m *Manager) Get(id string) (*lifecycle.Entry[Action], bool) {
	return m.pending.Get(id)
}

// Cleanup removes actions older than maxAge, regardless of state.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	return m.pending.Sweep(maxAge)
}

func (m *Manager) record(typ audit.EventType, status audit.Status, level audit.Level, name, host, rationale, approver string) {
	if m.audit == nil {
		return
	}
	m.audit.Record(typ, status, level, map[string]any{
		"action": name, "host": host, "rationale": rationale, "approver": approver,
	})
}
