package toolsurface

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Ansible wrappers are thin callers into the Executor Facade: --check mode
// always classifies AUTO (reader role, dry run), a live apply always
// classifies MANUAL (executor role) and goes through the same approval
// envelope as any other command.

type runPlaybookInput struct {
	Host     string   `json:"host" jsonschema:"target host"`
	User     string   `json:"user,omitempty" jsonschema:"identity to attribute the session to"`
	Playbook string   `json:"playbook" jsonschema:"playbook path or name"`
	Inventory string  `json:"inventory,omitempty" jsonschema:"inventory path (defaults to the host's configured inventory)"`
	ExtraArgs []string `json:"extra_args,omitempty" jsonschema:"additional ansible-playbook arguments"`
	ForceApproval bool `json:"force_approval,omitempty" jsonschema:"bypass a pending MANUAL decision; always audited as a security event"`
}

type listPlaybooksInput struct {
	Host string `json:"host" jsonschema:"target host"`
	User string `json:"user,omitempty" jsonschema:"identity to attribute the session to"`
	Dir  string `json:"dir,omitempty" jsonschema:"playbook directory (default /etc/ansible/playbooks)"`
}

type showInventoryInput struct {
	Host      string `json:"host" jsonschema:"target host"`
	User      string `json:"user,omitempty" jsonschema:"identity to attribute the session to"`
	Inventory string `json:"inventory,omitempty" jsonschema:"inventory path (default /etc/ansible/hosts)"`
}

func (s *Surface) registerAnsibleTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{Name: "run_ansible_playbook", Description: "Apply an Ansible playbook against a host (MANUAL)"}, s.handleRunAnsiblePlaybook)
	mcp.AddTool(server, &mcp.Tool{Name: "check_ansible_playbook", Description: "Dry-run an Ansible playbook against a host (AUTO)"}, s.handleCheckAnsiblePlaybook)
	mcp.AddTool(server, &mcp.Tool{Name: "list_ansible_playbooks", Description: "List playbooks available on a host"}, s.handleListAnsiblePlaybooks)
	mcp.AddTool(server, &mcp.Tool{Name: "show_ansible_inventory", Description: "Read an Ansible inventory file from a host"}, s.handleShowAnsibleInventory)
}

func ansiblePlaybookCommand(in runPlaybookInput, check bool) (string, error) {
	if in.Playbook == "" {
		return "", fmt.Errorf("playbook is required")
	}
	cmd := "ansible-playbook " + quote(in.Playbook)
	if in.Inventory != "" {
		cmd += " -i " + quote(in.Inventory)
	}
	if check {
		cmd += " --check"
	}
	for _, a := range in.ExtraArgs {
		cmd += " " + quote(a)
	}
	return cmd, nil
}

func (s *Surface) handleRunAnsiblePlaybook(_ context.Context, _ *mcp.CallToolRequest, in runPlaybookInput) (*mcp.CallToolResult, any, error) {
	cmd, err := ansiblePlaybookCommand(in, false)
	if err != nil {
		return errToolResult(err)
	}
	resp := s.facade.Execute(in.Host, cmd, in.User, in.ForceApproval)
	return jsonToolResult(fromResponse(resp))
}

func (s *Surface) handleCheckAnsiblePlaybook(_ context.Context, _ *mcp.CallToolRequest, in runPlaybookInput) (*mcp.CallToolResult, any, error) {
	cmd, err := ansiblePlaybookCommand(in, true)
	if err != nil {
		return errToolResult(err)
	}
	resp := s.facade.Execute(in.Host, cmd, in.User, false)
	return jsonToolResult(fromResponse(resp))
}

func (s *Surface) handleListAnsiblePlaybooks(_ context.Context, _ *mcp.CallToolRequest, in listPlaybooksInput) (*mcp.CallToolResult, any, error) {
	dir := in.Dir
	if dir == "" {
		dir = "/etc/ansible/playbooks"
	}
	cmd := shellJoin("find", quote(dir), "-maxdepth", "2", "-name", quote("*.yml"), "-o", "-name", quote("*.yaml"))
	resp := s.facade.Execute(in.Host, cmd, in.User, false)
	return jsonToolResult(fromResponse(resp))
}

func (s *Surface) handleShowAnsibleInventory(_ context.Context, _ *mcp.CallToolRequest, in showInventoryInput) (*mcp.CallToolResult, any, error) {
	inv := in.Inventory
	if inv == "" {
		inv = "/etc/ansible/hosts"
	}
	cmd := "cat " + quote(inv)
	resp := s.facade.Execute(in.Host, cmd, in.User, false)
	return jsonToolResult(fromResponse(resp))
}
