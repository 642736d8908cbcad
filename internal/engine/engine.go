// Package engine implements the Authorization Decision Engine: given
// (host, command, user) it produces an Authorization verdict and drives
// the Approval Lifecycle Manager for commands that need a human decision.
package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/marcus-qen/linux-broker/internal/learning"
	"github.com/marcus-qen/linux-broker/internal/legacy"
	"github.com/marcus-qen/linux-broker/internal/lifecycle"
	"github.com/marcus-qen/linux-broker/internal/types"
)

// Pending is the payload carried by a PendingCommand lifecycle entry.
type Pending struct {
	Host    string
	Command string
	User    string
	Role    types.SSHRole
	Rule    *legacy.Rule
}

// Authorization is the decision record returned to callers.
type Authorization struct {
	Allowed       bool
	Level         types.AuthorizationLevel
	Role          types.SSHRole
	NeedsApproval bool
	ApprovalID    string
	Reason        string
	Rule          *legacy.Rule
}

// Engine is the Authorization Decision Engine. It is purely rule-driven —
// the Risk Classifier is consulted only by the Executor Facade, before
// Check is called, to enrich BLOCKED responses with suggestions. This
// keeps Engine's own output deterministic.
type Engine struct {
	rules    *legacy.Store
	pending  *lifecycle.Machine[Pending]
	learning *learning.Collector
	log      *zap.Logger
}

// New builds a decision engine over an already-loaded legacy rule store.
// learn may be nil in tests that don't care about the learning side effect.
func New(rules *legacy.Store, learn *learning.Collector, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		rules:    rules,
		pending:  lifecycle.NewMachine[Pending](),
		learning: learn,
		log:      log,
	}
}

// Check walks the legacy rule list in declaration order; the first match
// wins. No match is a default deny. Decision is in-memory and deterministic
// and cannot fail; recording to the Auto-Learning Collector is best-effort
// and never blocks the decision.
func (e *Engine) Check(host, command, user string) Authorization {
	rule := e.rules.Match(command)

	if rule == nil {
		e.recordDenial(command, user, host)
		return Authorization{
			Allowed: false,
			Level:   types.LevelBlocked,
			Role:    types.RoleNone,
			Reason:  "no matching policy rule — default deny",
		}
	}

	switch rule.Level {
	case types.LevelBlocked:
		e.recordDenial(command, user, host)
		return Authorization{
			Allowed: false,
			Level:   types.LevelBlocked,
			Role:    types.RoleNone,
			Reason:  rule.Rationale,
			Rule:    rule,
		}

	case types.LevelAuto:
		return Authorization{
			Allowed: true,
			Level:   types.LevelAuto,
			Role:    rule.Role,
			Reason:  rule.Rationale,
			Rule:    rule,
		}

	case types.LevelManual:
		entry := e.pending.Propose(Pending{
			Host:    host,
			Command: command,
			User:    user,
			Role:    rule.Role,
			Rule:    rule,
		})
		return Authorization{
			Allowed:       false,
			Level:         types.LevelManual,
			Role:          rule.Role,
			NeedsApproval: true,
			ApprovalID:    entry.ID,
			Reason:        rule.Rationale,
			Rule:          rule,
		}
	}

	// Unreachable with the three-member enum, but fail closed.
	e.recordDenial(command, user, host)
	return Authorization{Allowed: false, Level: types.LevelBlocked, Role: types.RoleNone, Reason: "unrecognized rule level — default deny"}
}

func (e *Engine) recordDenial(command, user, host string) {
	if e.learning == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("learning collector panicked recording a denial; ignoring", zap.Any("recover", r))
		}
	}()
	e.learning.Record(command, user, host)
}

// Approve sets approved=true on the named PendingCommand, idempotently.
func (e *Engine) Approve(approvalID string) (*lifecycle.Entry[Pending], error) {
	return e.pending.Approve(approvalID, "")
}

// MarkExecuted sets executed=true on the named PendingCommand. Terminal.
func (e *Engine) MarkExecuted(approvalID string) (*lifecycle.Entry[Pending], error) {
	return e.pending.MarkExecuted(approvalID)
}

// GetPending returns a single pending entry by id.
func (e *Engine) GetPending(approvalID string) (*lifecycle.Entry[Pending], bool) {
	return e.pending.Get(approvalID)
}

// AllPending returns only non-executed entries.
func (e *Engine) AllPending() []*lifecycle.Entry[Pending] {
	return e.pending.Pending()
}

// Cleanup removes PendingCommands older than maxAge (default 24h if zero).
func (e *Engine) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return e.pending.Sweep(maxAge)
}
