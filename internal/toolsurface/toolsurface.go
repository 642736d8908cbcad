// Package toolsurface exposes the broker's capabilities as MCP tools,
// grounded on the teacher's internal/controlplane/mcpserver package: one
// input struct and one handler per operation, registered with
// mcp.AddTool against a *mcp.Server built in cmd/broker.
//
// Diagnostic read operations are thin wrappers that compose a fixed shell
// command and dispatch it through the Executor Facade's AUTO path; they
// do not reach the engine's MANUAL/BLOCKED branches under the built-in
// legacy whitelist, whose AUTO rules match every command they compose.
package toolsurface

import (
	"context"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/marcus-qen/linux-broker/internal/catalog"
	"github.com/marcus-qen/linux-broker/internal/classifier"
	"github.com/marcus-qen/linux-broker/internal/engine"
	"github.com/marcus-qen/linux-broker/internal/executor"
	"github.com/marcus-qen/linux-broker/internal/learning"
	"github.com/marcus-qen/linux-broker/internal/legacy"
	"github.com/marcus-qen/linux-broker/internal/remediation"
)

// Surface wires the broker's packages into the MCP tool surface.
type Surface struct {
	facade      *executor.Facade
	engine      *engine.Engine
	remediation *remediation.Manager
	legacy      *legacy.Store
	learning    *learning.Collector
	catalog     *catalog.Registry
	classifier  *classifier.Classifier
	log         *zap.Logger
}

// New builds a Surface. Every collaborator must already be constructed and
// (where applicable) loaded.
func New(
	facade *executor.Facade,
	eng *engine.Engine,
	rem *remediation.Manager,
	rules *legacy.Store,
	learn *learning.Collector,
	reg *catalog.Registry,
	cls *classifier.Classifier,
	log *zap.Logger,
) *Surface {
	if log == nil {
		log = zap.NewNop()
	}
	return &Surface{facade: facade, engine: eng, remediation: rem, legacy: rules, learning: learn, catalog: reg, classifier: cls, log: log}
}

// Register attaches every tool to server, matching the teacher's
// registerTools() layout: one mcp.AddTool call per operation, grouped by
// the section headings in the tool surface it implements.
func (s *Surface) Register(server *mcp.Server) {
	s.registerDiagnosticTools(server)
	s.registerRemediationTools(server)
	s.registerCommandTools(server)
	s.registerAnsibleTools(server)
	s.registerIntrospectionTools(server)
}

// execResult is the envelope every tool in this package returns on
// success; it mirrors executor.Response without leaking transport-internal
// fields into the wire surface.
type execResult struct {
	Allowed           bool   `json:"allowed"`
	NeedsApproval     bool   `json:"needs_approval,omitempty"`
	ApprovalID        string `json:"approval_id,omitempty"`
	Warning           string `json:"warning,omitempty"`
	ExitCode          int    `json:"exit_code,omitempty"`
	Stdout            string `json:"stdout,omitempty"`
	Stderr            string `json:"stderr,omitempty"`
	DenialReason      string `json:"denial_reason,omitempty"`
	Risk              string `json:"risk,omitempty"`
	Category          string `json:"category,omitempty"`
	RecommendedAction string `json:"recommended_action,omitempty"`
}

func fromResponse(r executor.Response) execResult {
	return execResult{
		Allowed:           r.Allowed,
		NeedsApproval:     r.NeedsApproval,
		ApprovalID:        r.ApprovalID,
		Warning:           r.Warning,
		ExitCode:          r.ExitCode,
		Stdout:            r.Stdout,
		Stderr:            r.Stderr,
		DenialReason:      r.DenialReason,
		Risk:              string(r.Risk),
		Category:          r.Category,
		RecommendedAction: string(r.RecommendedAction),
	}
}

func jsonToolResult(v any) (*mcp.CallToolResult, any, error) {
	return nil, v, nil
}

func errToolResult(err error) (*mcp.CallToolResult, any, error) {
	return nil, nil, err
}

func shellJoin(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

func quote(arg string) string {
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// runRead composes cmd and dispatches it through the reader path (AUTO for
// every read-only diagnostic in this package under the built-in legacy
// whitelist).
func (s *Surface) runRead(ctx context.Context, host, cmd, user string) (*mcp.CallToolResult, any, error) {
	resp := s.facade.Execute(host, cmd, user, false)
	return jsonToolResult(fromResponse(resp))
}
