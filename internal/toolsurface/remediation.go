package toolsurface

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/marcus-qen/linux-broker/internal/lifecycle"
	"github.com/marcus-qen/linux-broker/internal/remediation"
)

type proposeRemediationInput struct {
	Name        string `json:"name" jsonschema:"remediation action name from the fixed catalog"`
	Host        string `json:"host" jsonschema:"target host"`
	Rationale   string `json:"rationale,omitempty" jsonschema:"operator-supplied justification"`
	AutoApprove bool   `json:"auto_approve,omitempty" jsonschema:"auto-approve if the action's impact is LOW"`
}

type approveRemediationInput struct {
	ID       string `json:"id" jsonschema:"remediation action id"`
	Approved bool   `json:"approved" jsonschema:"true to approve, false to reject"`
	Approver string `json:"approver" jsonschema:"operator identity recording the decision"`
}

type executeRemediationInput struct {
	ID string `json:"id" jsonschema:"remediation action id"`
}

type listPendingActionsInput struct{}

type remediationActionView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Host      string `json:"host"`
	Rationale string `json:"rationale"`
	Impact    string `json:"impact"`
	State     string `json:"state"`
}

func toActionView(e *lifecycle.Entry[remediation.Action]) remediationActionView {
	return remediationActionView{
		ID:        e.ID,
		Name:      e.Payload.Name,
		Host:      e.Payload.Host,
		Rationale: e.Payload.Rationale,
		Impact:    string(e.Payload.Impact),
		State:     string(e.State),
	}
}

func (s *Surface) registerRemediationTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{Name: "propose_remote_execution", Description: "Propose a catalog remediation action against a host"}, s.handleProposeRemediation)
	mcp.AddTool(server, &mcp.Tool{Name: "approve_remote_execution", Description: "Approve or reject a pending remediation action"}, s.handleApproveRemediation)
	mcp.AddTool(server, &mcp.Tool{Name: "execute_remote_execution", Description: "Dispatch an approved remediation action"}, s.handleExecuteRemediation)
	mcp.AddTool(server, &mcp.Tool{Name: "list_pending_actions", Description: "List non-terminal remediation actions"}, s.handleListPendingActions)
}

func (s *Surface) handleProposeRemediation(_ context.Context, _ *mcp.CallToolRequest, in proposeRemediationInput) (*mcp.CallToolResult, any, error) {
	entry, err := s.remediation.Propose(in.Name, in.Host, in.Rationale, in.AutoApprove)
	if err != nil {
		return errToolResult(err)
	}
	return jsonToolResult(toActionView(entry))
}

func (s *Surface) handleApproveRemediation(_ context.Context, _ *mcp.CallToolRequest, in approveRemediationInput) (*mcp.CallToolResult, any, error) {
	if in.Approver == "" {
		return errToolResult(fmt.Errorf("approver is required"))
	}
	entry, err := s.remediation.Approve(in.ID, in.Approved, in.Approver)
	if err != nil {
		return errToolResult(err)
	}
	return jsonToolResult(toActionView(entry))
}

func (s *Surface) handleExecuteRemediation(_ context.Context, _ *mcp.CallToolRequest, in executeRemediationInput) (*mcp.CallToolResult, any, error) {
	entry, err := s.remediation.Execute(in.ID)
	if err != nil {
		return errToolResult(err)
	}
	return jsonToolResult(toActionView(entry))
}

func (s *Surface) handleListPendingActions(_ context.Context, _ *mcp.CallToolRequest, _ listPendingActionsInput) (*mcp.CallToolResult, any, error) {
	pending := s.remediation.ListPending()
	out := make([]remediationActionView, 0, len(pending))
	for _, e := range pending {
		out = append(out, toActionView(e))
	}
	return jsonToolResult(out)
}
