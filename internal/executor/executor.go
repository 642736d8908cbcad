// Package executor implements the Command Executor Facade: the side
// effecting orchestration layer over the classifier, decision engine, and
// transport. The engine itself stays deterministic and transport-free;
// this package owns SSH dispatch, audit emission, and suggestion
// rendering, so it can be swapped out for dry-run or offline modes.
package executor

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/marcus-qen/linux-broker/internal/audit"
	"github.com/marcus-qen/linux-broker/internal/classifier"
	"github.com/marcus-qen/linux-broker/internal/engine"
	"github.com/marcus-qen/linux-broker/internal/transport"
	"github.com/marcus-qen/linux-broker/internal/types"
)

// Response is the structured envelope returned to every caller of
// Execute.
type Response struct {
	Allowed       bool
	NeedsApproval bool
	ApprovalID    string
	Warning       string

	ExitCode int
	Stdout   string
	Stderr   string

	DenialReason      string
	Risk              types.RiskLevel
	Category          string
	RecommendedAction types.RecommendedAction
}

// Facade is the Command Executor Facade.
type Facade struct {
	classifier *classifier.Classifier
	engine     *engine.Engine
	transport  *transport.Transport
	audit      *audit.Log
	log        *zap.Logger
}

// New builds a Facade wiring the three collaborators together.
func New(cls *classifier.Classifier, eng *engine.Engine, xport *transport.Transport, auditLog *audit.Log, log *zap.Logger) *Facade {
	if log == nil {
		log = zap.NewNop()
	}
	return &Facade{classifier: cls, engine: eng, transport: xport, audit: auditLog, log: log}
}

// Execute implements the algorithm in the Facade's responsibility: classify
// for enrichment only, check via the engine for the decision, dispatch per
// level. forceApproval bypasses a MANUAL decision and must always be
// audited as a CRITICAL security event.
func (f *Facade) Execute(host, command, user string, forceApproval bool) Response {
	verdict := f.classifier.Classify(command)
	auth := f.engine.Check(host, command, user)

	switch auth.Level {
	case types.LevelBlocked:
		return Response{
			Allowed:           false,
			DenialReason:      auth.Reason,
			Risk:              verdict.Risk,
			Category:          verdict.Category,
			RecommendedAction: verdict.RecommendedAction,
		}

	case types.LevelAuto:
		rc, out, errOut, err := f.transport.ExecuteRead(host, []string{command}, user)
		if err != nil {
			return Response{Allowed: false, DenialReason: err.Error()}
		}
		return Response{Allowed: true, ExitCode: rc, Stdout: out, Stderr: errOut}

	case types.LevelManual:
		if forceApproval {
			f.auditForcedBypass(host, command, user)
			rc, out, errOut, err := f.transport.ExecuteAction(host, command, user)
			if err != nil {
				return Response{Allowed: false, DenialReason: err.Error(), NeedsApproval: true, ApprovalID: auth.ApprovalID}
			}
			return Response{
				Allowed: true, ExitCode: rc, Stdout: out, Stderr: errOut,
				Warning: "manual-approval bypassed via force_approval",
			}
		}
		return Response{
			NeedsApproval: true,
			ApprovalID:    auth.ApprovalID,
			DenialReason:  fmt.Sprintf("awaiting approval: %s", auth.Reason),
			Risk:          verdict.Risk,
			Category:      verdict.Category,
		}
	}

	return Response{Allowed: false, DenialReason: "unrecognized authorization level"}
}

// Approve dispatches an approved pending command via the executor role
// and marks it executed on success.
func (f *Facade) Approve(approvalID string) Response {
	entry, err := f.engine.Approve(approvalID)
	if err != nil {
		return Response{Allowed: false, DenialReason: err.Error()}
	}

	rc, out, errOut, err := f.transport.ExecuteAction(entry.Payload.Host, entry.Payload.Command, entry.Payload.User)
	if err != nil {
		return Response{Allowed: false, DenialReason: err.Error(), ApprovalID: approvalID}
	}

	if _, err := f.engine.MarkExecuted(approvalID); err != nil {
		f.log.Warn("executor: failed to mark approval executed", zap.String("approval_id", approvalID), zap.Error(err))
	}

	return Response{Allowed: true, ExitCode: rc, Stdout: out, Stderr: errOut, ApprovalID: approvalID}
}

func (f *Facade) auditForcedBypass(host, command, user string) {
	if f.audit == nil {
		return
	}
	f.audit.Record(audit.EventSecurityViolation, audit.StatusPending, audit.LevelCritical, map[string]any{
		"error": "manual_approval_bypassed", "host": host, "command": command, "user": user,
	})
}
