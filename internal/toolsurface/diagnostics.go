package toolsurface

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// hostInput is the shape shared by every diagnostic read: a target host
// and the identity to attribute the SSH session to.
type hostInput struct {
	Host string `json:"host" jsonschema:"target host"`
	User string `json:"user,omitempty" jsonschema:"identity to attribute the session to (defaults to the configured reader user)"`
}

type serviceInput struct {
	Host    string `json:"host" jsonschema:"target host"`
	User    string `json:"user,omitempty" jsonschema:"identity to attribute the session to"`
	Service string `json:"service" jsonschema:"systemd unit name"`
}

type serviceLogsInput struct {
	Host    string `json:"host" jsonschema:"target host"`
	User    string `json:"user,omitempty" jsonschema:"identity to attribute the session to"`
	Service string `json:"service" jsonschema:"systemd unit name"`
	Lines   int    `json:"lines,omitempty" jsonschema:"number of log lines (default 100)"`
}

type journalInput struct {
	Host     string `json:"host" jsonschema:"target host"`
	User     string `json:"user,omitempty" jsonschema:"identity to attribute the session to"`
	Unit     string `json:"unit,omitempty" jsonschema:"optional unit filter"`
	Priority string `json:"priority,omitempty" jsonschema:"optional priority filter (emerg..debug)"`
	Since    string `json:"since,omitempty" jsonschema:"optional journalctl --since value"`
	Lines    int    `json:"lines,omitempty" jsonschema:"number of log lines (default 100)"`
}

type readLogFileInput struct {
	Host  string `json:"host" jsonschema:"target host"`
	User  string `json:"user,omitempty" jsonschema:"identity to attribute the session to"`
	Path  string `json:"path" jsonschema:"absolute log file path, must be under /var/log"`
	Lines int    `json:"lines,omitempty" jsonschema:"number of trailing lines (default 100)"`
}

type searchLogsInput struct {
	Host  string `json:"host" jsonschema:"target host"`
	User  string `json:"user,omitempty" jsonschema:"identity to attribute the session to"`
	Path  string `json:"path" jsonschema:"absolute log file path, must be under /var/log"`
	Query string `json:"query" jsonschema:"text to search for"`
}

type analyzeErrorsInput struct {
	Host  string `json:"host" jsonschema:"target host"`
	User  string `json:"user,omitempty" jsonschema:"identity to attribute the session to"`
	Since string `json:"since,omitempty" jsonschema:"journalctl --since value (default '1 hour ago')"`
}

type pingInput struct {
	Host   string `json:"host" jsonschema:"target host"`
	User   string `json:"user,omitempty" jsonschema:"identity to attribute the session to"`
	Target string `json:"target" jsonschema:"address or hostname to ping from the target host"`
}

const allowedLogRoot = "/var/log"

func isAllowedLogPath(path string) bool {
	path = filepath.Clean(path)
	return len(path) > len(allowedLogRoot) && path[:len(allowedLogRoot)] == allowedLogRoot && (path[len(allowedLogRoot)] == '/' || path == allowedLogRoot)
}

func defaultLines(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}

func (s *Surface) registerDiagnosticTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{Name: "get_system_info", Description: "Read kernel, OS, and hostname details from a host"}, s.handleSystemInfo)
	mcp.AddTool(server, &mcp.Tool{Name: "get_cpu_info", Description: "Read CPU model and core count from a host"}, s.handleCPUInfo)
	mcp.AddTool(server, &mcp.Tool{Name: "get_memory_info", Description: "Read memory usage from a host"}, s.handleMemoryInfo)
	mcp.AddTool(server, &mcp.Tool{Name: "get_disk_usage", Description: "Read filesystem disk usage from a host"}, s.handleDiskUsage)
	mcp.AddTool(server, &mcp.Tool{Name: "get_block_devices", Description: "List block devices on a host"}, s.handleBlockDevices)
	mcp.AddTool(server, &mcp.Tool{Name: "list_services", Description: "List systemd units on a host"}, s.handleListServices)
	mcp.AddTool(server, &mcp.Tool{Name: "get_service_status", Description: "Read the status of a single systemd unit"}, s.handleServiceStatus)
	mcp.AddTool(server, &mcp.Tool{Name: "get_service_logs", Description: "Read recent journal entries for a systemd unit"}, s.handleServiceLogs)
	mcp.AddTool(server, &mcp.Tool{Name: "get_service_health", Description: "Report whether a systemd unit is active and enabled"}, s.handleServiceHealth)
	mcp.AddTool(server, &mcp.Tool{Name: "get_network_interfaces", Description: "List network interfaces on a host"}, s.handleNetworkInterfaces)
	mcp.AddTool(server, &mcp.Tool{Name: "get_routing_table", Description: "Read the routing table from a host"}, s.handleRoutingTable)
	mcp.AddTool(server, &mcp.Tool{Name: "get_listening_ports", Description: "List listening TCP/UDP sockets on a host"}, s.handleListeningPorts)
	mcp.AddTool(server, &mcp.Tool{Name: "get_active_connections", Description: "List established network connections on a host"}, s.handleActiveConnections)
	mcp.AddTool(server, &mcp.Tool{Name: "get_dns_config", Description: "Read resolver configuration from a host"}, s.handleDNSConfig)
	mcp.AddTool(server, &mcp.Tool{Name: "test_connectivity", Description: "Ping a target from a host"}, s.handlePing)
	mcp.AddTool(server, &mcp.Tool{Name: "get_journal_logs", Description: "Read journald entries with unit/priority/since filters"}, s.handleJournalLogs)
	mcp.AddTool(server, &mcp.Tool{Name: "read_log_file", Description: "Read the tail of a log file under /var/log"}, s.handleReadLogFile)
	mcp.AddTool(server, &mcp.Tool{Name: "search_logs", Description: "Search a log file under /var/log for a text query"}, s.handleSearchLogs)
	mcp.AddTool(server, &mcp.Tool{Name: "analyze_errors", Description: "Summarize error-priority journal entries over a time window"}, s.handleAnalyzeErrors)
}

func (s *Surface) handleSystemInfo(ctx context.Context, _ *mcp.CallToolRequest, in hostInput) (*mcp.CallToolResult, any, error) {
	return s.runRead(ctx, in.Host, "uname -a", in.User)
}

func (s *Surface) handleCPUInfo(ctx context.Context, _ *mcp.CallToolRequest, in hostInput) (*mcp.CallToolResult, any, error) {
	return s.runRead(ctx, in.Host, "cat /proc/cpuinfo", in.User)
}

func (s *Surface) handleMemoryInfo(ctx context.Context, _ *mcp.CallToolRequest, in hostInput) (*mcp.CallToolResult, any, error) {
	return s.runRead(ctx, in.Host, "free -h", in.User)
}

func (s *Surface) handleDiskUsage(ctx context.Context, _ *mcp.CallToolRequest, in hostInput) (*mcp.CallToolResult, any, error) {
	return s.runRead(ctx, in.Host, "df -h", in.User)
}

func (s *Surface) handleBlockDevices(ctx context.Context, _ *mcp.CallToolRequest, in hostInput) (*mcp.CallToolResult, any, error) {
	return s.runRead(ctx, in.Host, "lsblk", in.User)
}

func (s *Surface) handleListServices(ctx context.Context, _ *mcp.CallToolRequest, in hostInput) (*mcp.CallToolResult, any, error) {
	return s.runRead(ctx, in.Host, "systemctl list-units --type=service --no-pager", in.User)
}

func (s *Surface) handleServiceStatus(ctx context.Context, _ *mcp.CallToolRequest, in serviceInput) (*mcp.CallToolResult, any, error) {
	if in.Service == "" {
		return errToolResult(fmt.Errorf("service is required"))
	}
	return s.runRead(ctx, in.Host, fmt.Sprintf("systemctl status %s", quote(in.Service)), in.User)
}

func (s *Surface) handleServiceLogs(ctx context.Context, _ *mcp.CallToolRequest, in serviceLogsInput) (*mcp.CallToolResult, any, error) {
	if in.Service == "" {
		return errToolResult(fmt.Errorf("service is required"))
	}
	cmd := fmt.Sprintf("journalctl -u %s -n %d --no-pager", quote(in.Service), defaultLines(in.Lines))
	return s.runRead(ctx, in.Host, cmd, in.User)
}

func (s *Surface) handleServiceHealth(ctx context.Context, _ *mcp.CallToolRequest, in serviceInput) (*mcp.CallToolResult, any, error) {
	if in.Service == "" {
		return errToolResult(fmt.Errorf("service is required"))
	}
	cmd := fmt.Sprintf("systemctl is-active %s; systemctl is-enabled %s", quote(in.Service), quote(in.Service))
	return s.runRead(ctx, in.Host, cmd, in.User)
}

func (s *Surface) handleNetworkInterfaces(ctx context.Context, _ *mcp.CallToolRequest, in hostInput) (*mcp.CallToolResult, any, error) {
	return s.runRead(ctx, in.Host, "ip addr", in.User)
}

func (s *Surface) handleRoutingTable(ctx context.Context, _ *mcp.CallToolRequest, in hostInput) (*mcp.CallToolResult, any, error) {
	return s.runRead(ctx, in.Host, "ip route", in.User)
}

func (s *Surface) handleListeningPorts(ctx context.Context, _ *mcp.CallToolRequest, in hostInput) (*mcp.CallToolResult, any, error) {
	return s.runRead(ctx, in.Host, "ss -tlnp", in.User)
}

func (s *Surface) handleActiveConnections(ctx context.Context, _ *mcp.CallToolRequest, in hostInput) (*mcp.CallToolResult, any, error) {
	return s.runRead(ctx, in.Host, "ss -tnp", in.User)
}

func (s *Surface) handleDNSConfig(ctx context.Context, _ *mcp.CallToolRequest, in hostInput) (*mcp.CallToolResult, any, error) {
	return s.runRead(ctx, in.Host, "cat /etc/resolv.conf", in.User)
}

func (s *Surface) handlePing(ctx context.Context, _ *mcp.CallToolRequest, in pingInput) (*mcp.CallToolResult, any, error) {
	if in.Target == "" {
		return errToolResult(fmt.Errorf("target is required"))
	}
	cmd := fmt.Sprintf("ping -c 4 %s", quote(in.Target))
	return s.runRead(ctx, in.Host, cmd, in.User)
}

func (s *Surface) handleJournalLogs(ctx context.Context, _ *mcp.CallToolRequest, in journalInput) (*mcp.CallToolResult, any, error) {
	cmd := "journalctl -n " + itoa(defaultLines(in.Lines)) + " --no-pager"
	if in.Unit != "" {
		cmd += " -u " + quote(in.Unit)
	}
	if in.Priority != "" {
		cmd += " -p " + quote(in.Priority)
	}
	if in.Since != "" {
		cmd += " --since " + quote(in.Since)
	}
	return s.runRead(ctx, in.Host, cmd, in.User)
}

func (s *Surface) handleReadLogFile(ctx context.Context, _ *mcp.CallToolRequest, in readLogFileInput) (*mcp.CallToolResult, any, error) {
	if !isAllowedLogPath(in.Path) {
		return errToolResult(fmt.Errorf("path %q is not under the allowed log root %s", in.Path, allowedLogRoot))
	}
	cmd := fmt.Sprintf("tail -n %d %s", defaultLines(in.Lines), quote(in.Path))
	return s.runRead(ctx, in.Host, cmd, in.User)
}

func (s *Surface) handleSearchLogs(ctx context.Context, _ *mcp.CallToolRequest, in searchLogsInput) (*mcp.CallToolResult, any, error) {
	if !isAllowedLogPath(in.Path) {
		return errToolResult(fmt.Errorf("path %q is not under the allowed log root %s", in.Path, allowedLogRoot))
	}
	if in.Query == "" {
		return errToolResult(fmt.Errorf("query is required"))
	}
	cmd := fmt.Sprintf("grep -F %s %s", quote(in.Query), quote(in.Path))
	return s.runRead(ctx, in.Host, cmd, in.User)
}

func (s *Surface) handleAnalyzeErrors(ctx context.Context, _ *mcp.CallToolRequest, in analyzeErrorsInput) (*mcp.CallToolResult, any, error) {
	since := in.Since
	if since == "" {
		since = "1 hour ago"
	}
	cmd := fmt.Sprintf("journalctl -p err --since %s --no-pager", quote(since))
	return s.runRead(ctx, in.Host, cmd, in.User)
}
