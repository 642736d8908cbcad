package toolsurface

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/marcus-qen/linux-broker/internal/legacy"
)

type executeSSHCommandInput struct {
	Host          string `json:"host" jsonschema:"target host"`
	Command       string `json:"command" jsonschema:"shell command to run"`
	User          string `json:"user,omitempty" jsonschema:"identity to attribute the session to"`
	ForceApproval bool   `json:"force_approval,omitempty" jsonschema:"bypass a pending MANUAL decision; always audited as a security event"`
}

type approveCommandInput struct {
	ApprovalID string `json:"approval_id" jsonschema:"pending command approval id"`
}

type listPendingApprovalsInput struct{}

type showCommandWhitelistInput struct{}

type whitelistRuleView struct {
	Pattern     string `json:"pattern"`
	Description string `json:"description"`
	Level       string `json:"level"`
	Rationale   string `json:"rationale"`
}

func (s *Surface) registerCommandTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{Name: "execute_ssh_command", Description: "Run a command on a host through the classify/authorize/dispatch pipeline"}, s.handleExecuteSSHCommand)
	mcp.AddTool(server, &mcp.Tool{Name: "approve_command", Description: "Approve a pending MANUAL command and dispatch it"}, s.handleApproveCommand)
	mcp.AddTool(server, &mcp.Tool{Name: "list_pending_approvals", Description: "List commands awaiting manual approval"}, s.handleListPendingApprovals)
	mcp.AddTool(server, &mcp.Tool{Name: "show_command_whitelist", Description: "List the active legacy whitelist rules"}, s.handleShowCommandWhitelist)
}

func (s *Surface) handleExecuteSSHCommand(_ context.Context, _ *mcp.CallToolRequest, in executeSSHCommandInput) (*mcp.CallToolResult, any, error) {
	if in.Command == "" {
		return errToolResult(fmt.Errorf("command is required"))
	}
	resp := s.facade.Execute(in.Host, in.Command, in.User, in.ForceApproval)
	return jsonToolResult(fromResponse(resp))
}

func (s *Surface) handleApproveCommand(_ context.Context, _ *mcp.CallToolRequest, in approveCommandInput) (*mcp.CallToolResult, any, error) {
	if in.ApprovalID == "" {
		return errToolResult(fmt.Errorf("approval_id is required"))
	}
	resp := s.facade.Approve(in.ApprovalID)
	return jsonToolResult(fromResponse(resp))
}

type pendingApprovalView struct {
	ApprovalID string `json:"approval_id"`
	Host       string `json:"host"`
	Command    string `json:"command"`
	User       string `json:"user"`
	State      string `json:"state"`
}

func (s *Surface) handleListPendingApprovals(_ context.Context, _ *mcp.CallToolRequest, _ listPendingApprovalsInput) (*mcp.CallToolResult, any, error) {
	pending := s.engine.AllPending()
	out := make([]pendingApprovalView, 0, len(pending))
	for _, e := range pending {
		out = append(out, pendingApprovalView{
			ApprovalID: e.ID,
			Host:       e.Payload.Host,
			Command:    e.Payload.Command,
			User:       e.Payload.User,
			State:      string(e.State),
		})
	}
	return jsonToolResult(out)
}

func (s *Surface) handleShowCommandWhitelist(_ context.Context, _ *mcp.CallToolRequest, _ showCommandWhitelistInput) (*mcp.CallToolResult, any, error) {
	rules := s.legacy.Rules()
	out := make([]whitelistRuleView, 0, len(rules))
	for _, r := range rules {
		out = append(out, toWhitelistView(r))
	}
	return jsonToolResult(out)
}

func toWhitelistView(r *legacy.Rule) whitelistRuleView {
	return whitelistRuleView{
		Pattern:     r.Pattern,
		Description: r.Description,
		Level:       string(r.Level),
		Rationale:   r.Rationale,
	}
}
