package catalog

import "github.com/marcus-qen/linux-broker/internal/types"

// anyArgs anchors a bare command name optionally followed by arguments,
// matching the plugin authors' convention of `^name(\s+.*)?$`.
func anyArgs(name string) string {
	return `^` + name + `(\s+.*)?$`
}

func readOnly(key, description, rationale string) CommandSpec {
	return CommandSpec{
		Key:         key,
		Pattern:     anyArgs(key),
		Risk:        types.RiskLow,
		Level:       types.LevelAuto,
		Role:        types.RoleReader,
		Description: description,
		Rationale:   rationale,
	}
}

func manualExecutor(key, pattern, description, rationale string, risk types.RiskLevel) CommandSpec {
	return CommandSpec{
		Key:         key,
		Pattern:     pattern,
		Risk:        risk,
		Level:       types.LevelManual,
		Role:        types.RoleExecutor,
		Description: description,
		Rationale:   rationale,
	}
}

// BuiltinPlugins returns the fixed set of compile-time-registered plugins,
// in the order the catalog consults them.
func BuiltinPlugins() []*Plugin {
	return []*Plugin{
		monitoringPlugin(),
		networkPlugin(),
		filesystemPlugin(),
		systemdPlugin(),
		containersPlugin(),
		posixProcessPlugin(),
		posixTextPlugin(),
		posixSystemPlugin(),
	}
}

func monitoringPlugin() *Plugin {
	names := map[string]string{
		"htop":    "Interactive process viewer",
		"top":     "Process monitor",
		"iotop":   "I/O monitoring by process",
		"iftop":   "Network bandwidth monitor by connection",
		"nethogs": "Network bandwidth monitor by process",
		"atop":    "Advanced system and process monitor",
		"vmstat":  "Virtual memory statistics",
		"iostat":  "I/O device statistics",
		"mpstat":  "Per-CPU statistics",
		"glances": "Cross-platform system monitor",
	}
	var specs []CommandSpec
	for _, key := range []string{"htop", "top", "iotop", "iftop", "nethogs", "atop", "vmstat", "iostat", "mpstat", "glances"} {
		specs = append(specs, readOnly(key, names[key], "Read-only system monitoring, no state change"))
	}
	return NewPlugin("monitoring", "monitoring", "Process, CPU, memory, and I/O monitoring tools (read-only)", specs)
}

func networkPlugin() *Plugin {
	var specs []CommandSpec
	for key, desc := range map[string]string{
		"ping":      "ICMP reachability test",
		"traceroute": "Trace network path to a host",
		"netstat":   "Network connection and socket statistics",
		"ss":        "Socket statistics",
		"dig":       "DNS lookup",
		"nslookup":  "DNS lookup",
		"host":      "DNS lookup",
		"curl":      "HTTP client (GET-only usage is read-only)",
		"mtr":       "Combined ping/traceroute diagnostic",
	} {
		specs = append(specs, readOnly(key, desc, "Read-only network diagnostic"))
	}
	specs = append(specs,
		CommandSpec{
			Key: "ip-addr", Pattern: `^ip\s+addr(\s+.*)?$`, Risk: types.RiskLow,
			Level: types.LevelAuto, Role: types.RoleReader,
			Description: "Show IP addresses", Rationale: "Read-only interface inspection",
		},
		CommandSpec{
			Key: "ip-route", Pattern: `^ip\s+route(\s+.*)?$`, Risk: types.RiskLow,
			Level: types.LevelAuto, Role: types.RoleReader,
			Description: "Show routing table", Rationale: "Read-only routing inspection",
		},
		CommandSpec{
			Key: "ip-link", Pattern: `^ip\s+link(\s+.*)?$`, Risk: types.RiskLow,
			Level: types.LevelAuto, Role: types.RoleReader,
			Description: "Show network links", Rationale: "Read-only link inspection",
		},
		manualExecutor("wget", anyArgs("wget"), "Download a remote file", "Writes to the filesystem; requires approval", types.RiskMedium),
		manualExecutor("tcpdump", anyArgs("tcpdump"), "Capture network packets", "Packet capture can expose sensitive traffic and run unbounded", types.RiskHigh),
	)
	return NewPlugin("network", "network", "Network diagnostics and connectivity tools", specs)
}

func filesystemPlugin() *Plugin {
	var specs []CommandSpec
	for key, desc := range map[string]string{
		"ls": "List directory contents", "cat": "Print file contents",
		"head": "Print first lines of a file", "tail": "Print last lines of a file",
		"less": "Page through a file", "more": "Page through a file",
		"grep": "Search file contents", "find": "Search the filesystem tree",
		"du": "Estimate file space usage", "df": "Report filesystem disk space usage",
		"file": "Determine file type", "stat": "Display file status",
		"tree": "List directory contents as a tree", "wc": "Count lines/words/bytes",
		"diff": "Compare files line by line", "md5sum": "Compute MD5 checksums",
		"sha256sum": "Compute SHA-256 checksums",
	} {
		specs = append(specs, readOnly(key, desc, "Read-only filesystem inspection"))
	}
	return NewPlugin("filesystem", "filesystem", "Read-only filesystem inspection tools", specs)
}

func systemdPlugin() *Plugin {
	specs := []CommandSpec{
		{Key: "systemctl-status", Pattern: `^systemctl\s+status(\s+.*)?$`, Risk: types.RiskLow, Level: types.LevelAuto, Role: types.RoleReader, Description: "Show unit status", Rationale: "Read-only unit inspection"},
		{Key: "systemctl-list-units", Pattern: `^systemctl\s+list-units(\s+.*)?$`, Risk: types.RiskLow, Level: types.LevelAuto, Role: types.RoleReader, Description: "List loaded units", Rationale: "Read-only unit inspection"},
		{Key: "systemctl-list-unit-files", Pattern: `^systemctl\s+list-unit-files(\s+.*)?$`, Risk: types.RiskLow, Level: types.LevelAuto, Role: types.RoleReader, Description: "List unit files", Rationale: "Read-only unit inspection"},
		{Key: "systemctl-show", Pattern: `^systemctl\s+show(\s+.*)?$`, Risk: types.RiskLow, Level: types.LevelAuto, Role: types.RoleReader, Description: "Show unit properties", Rationale: "Read-only unit inspection"},
		{Key: "systemctl-is-active", Pattern: `^systemctl\s+is-active(\s+.*)?$`, Risk: types.RiskLow, Level: types.LevelAuto, Role: types.RoleReader, Description: "Check if unit is active", Rationale: "Read-only unit inspection"},
		{Key: "systemctl-is-enabled", Pattern: `^systemctl\s+is-enabled(\s+.*)?$`, Risk: types.RiskLow, Level: types.LevelAuto, Role: types.RoleReader, Description: "Check if unit is enabled", Rationale: "Read-only unit inspection"},
		{Key: "systemctl-cat", Pattern: `^systemctl\s+cat(\s+.*)?$`, Risk: types.RiskLow, Level: types.LevelAuto, Role: types.RoleReader, Description: "Show unit file contents", Rationale: "Read-only unit inspection"},
		{Key: "systemctl-list-dependencies", Pattern: `^systemctl\s+list-dependencies(\s+.*)?$`, Risk: types.RiskLow, Level: types.LevelAuto, Role: types.RoleReader, Description: "Show unit dependency tree", Rationale: "Read-only unit inspection"},
		readOnly("journalctl", "Query the systemd journal", "Read-only log inspection"),
		manualExecutor("systemctl-restart", `^systemctl\s+restart(\s+.*)?$`, "Restart a unit", "Restarts a running service; requires approval", types.RiskMedium),
		manualExecutor("systemctl-reload", `^systemctl\s+reload(\s+.*)?$`, "Reload a unit", "Reloads a running service's config; requires approval", types.RiskMedium),
		manualExecutor("systemctl-start", `^systemctl\s+start(\s+.*)?$`, "Start a unit", "Changes service state; requires approval", types.RiskMedium),
		manualExecutor("systemctl-stop", `^systemctl\s+stop(\s+.*)?$`, "Stop a unit", "Changes service state; requires approval", types.RiskMedium),
		manualExecutor("systemctl-enable", `^systemctl\s+enable(\s+.*)?$`, "Enable a unit", "Changes boot-time service configuration; requires approval", types.RiskMedium),
		manualExecutor("systemctl-disable", `^systemctl\s+disable(\s+.*)?$`, "Disable a unit", "Changes boot-time service configuration; requires approval", types.RiskMedium),
	}
	return NewPlugin("systemd", "systemd", "systemd unit inspection and lifecycle management", specs)
}

func containersPlugin() *Plugin {
	var specs []CommandSpec
	for _, runtime := range []string{"podman", "docker"} {
		for _, sub := range []string{"ps", "inspect", "logs", "images", "stats", "top"} {
			specs = append(specs, CommandSpec{
				Key:         runtime + "-" + sub,
				Pattern:     `^` + runtime + `\s+` + sub + `(\s+.*)?$`,
				Risk:        types.RiskLow,
				Level:       types.LevelAuto,
				Role:        types.RoleReader,
				Description: "Inspect container state (" + runtime + " " + sub + ")",
				Rationale:   "Read-only container inspection",
			})
		}
		for _, sub := range []string{"restart", "start", "stop"} {
			specs = append(specs, manualExecutor(runtime+"-"+sub,
				`^`+runtime+`\s+`+sub+`(\s+.*)?$`,
				"Change container run state ("+runtime+" "+sub+")",
				"Changes a running container's state; requires approval", types.RiskMedium))
		}
		specs = append(specs, manualExecutor(runtime+"-rm",
			`^`+runtime+`\s+rm(\s+.*)?$`,
			"Remove a container ("+runtime+" rm)",
			"Destroys a container and its writable layer; requires approval", types.RiskHigh))
	}
	return NewPlugin("containers", "containers", "Container runtime inspection and lifecycle management", specs)
}

func posixProcessPlugin() *Plugin {
	var specs []CommandSpec
	for key, desc := range map[string]string{
		"ps": "Report process status", "pgrep": "Find processes by name",
		"pstree": "Show process tree", "pidof": "Find PID of a running program",
		"lsof": "List open files", "fuser": "Identify processes using files or sockets",
		"timeout": "Run a command with a time limit", "time": "Time a command's execution",
		"watch": "Execute a command periodically",
	} {
		specs = append(specs, readOnly(key, desc, "Read-only process inspection"))
	}
	for _, key := range []string{"kill", "killall", "pkill"} {
		specs = append(specs, manualExecutor(key, anyArgs(key), "Send a signal to a process", "Can terminate arbitrary processes; requires approval", types.RiskHigh))
	}
	for key, desc := range map[string]string{
		"nice": "Run a command with adjusted scheduling priority",
		"renice": "Alter the priority of a running process",
		"nohup": "Run a command immune to hangups",
		"strace": "Trace system calls of a process",
	} {
		specs = append(specs, manualExecutor(key, anyArgs(key), desc, "Alters process scheduling or attaches to a live process; requires approval", types.RiskMedium))
	}
	return NewPlugin("posix-process", "process", "POSIX process inspection and control", specs)
}

func posixTextPlugin() *Plugin {
	var specs []CommandSpec
	for _, key := range []string{"sed", "awk", "cut", "paste", "sort", "uniq", "tr"} {
		specs = append(specs, readOnly(key, "Text stream processing", "Read-only unless redirected to a file by the shell, which this spec does not grant"))
	}
	specs = append(specs,
		manualExecutor("tee", anyArgs("tee"), "Write standard input to files", "Writes files as a side effect; requires approval", types.RiskMedium),
		manualExecutor("xargs", anyArgs("xargs"), "Build and execute command lines from input", "Executes an arbitrary downstream command; requires approval", types.RiskMedium),
	)
	return NewPlugin("posix-text", "text", "POSIX text processing utilities", specs)
}

func posixSystemPlugin() *Plugin {
	var specs []CommandSpec
	for key, desc := range map[string]string{
		"uname": "Print system information", "hostname": "Show or set the system hostname",
		"uptime": "Show how long the system has been running", "who": "Show who is logged in",
		"w": "Show who is logged in and what they are doing", "whoami": "Print effective user id",
		"id": "Print user and group IDs", "date": "Print or set the system date",
		"env": "Print the environment", "printenv": "Print environment variables",
		"echo": "Print a line of text", "printf": "Format and print data",
		"pwd": "Print working directory", "which": "Locate a command",
		"whereis": "Locate binary, source, and manual page files", "type": "Describe a command",
		"sleep": "Delay for a specified time", "true": "Return success", "false": "Return failure",
		"test": "Evaluate a conditional expression", "basename": "Strip directory from a path",
		"dirname": "Strip last component from a path", "expr": "Evaluate an expression",
	} {
		specs = append(specs, readOnly(key, desc, "Read-only system introspection"))
	}
	return NewPlugin("posix-system", "system", "POSIX system introspection utilities", specs)
}
