package transport

import (
	"net"
	"os"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/marcus-qen/linux-broker/internal/config"
	"github.com/marcus-qen/linux-broker/internal/types"
)

func TestDetectAuthModeNoneWhenNothingConfigured(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	tr := New(config.Config{}, nil, nil)
	if tr.AuthMode() != AuthNone {
		t.Fatalf("expected NONE mode, got %s", tr.AuthMode())
	}
}

func TestExecuteDeniesDisallowedHost(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	cfg := config.Config{AllowedHosts: []string{"coreos-11"}}
	tr := New(cfg, nil, nil)
	_, _, _, err := tr.Execute(types.RoleReader, "coreos-99", "uptime", "")
	var hostErr *HostNotAllowedError
	if !asHostNotAllowed(err, &hostErr) {
		t.Fatalf("expected HostNotAllowedError, got %v", err)
	}
}

func asHostNotAllowed(err error, target **HostNotAllowedError) bool {
	if e, ok := err.(*HostNotAllowedError); ok {
		*target = e
		return true
	}
	return false
}

func TestExecuteNoAuthMethodWhenModeNone(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	tr := New(config.Config{}, nil, nil)
	_, _, _, err := tr.Execute(types.RoleReader, "coreos-11", "uptime", "")
	if _, ok := err.(*NoAuthMethodError); !ok {
		t.Fatalf("expected NoAuthMethodError, got %v", err)
	}
}

func TestRoleUserPrefersOverrideThenRoleDefault(t *testing.T) {
	cfg := config.Config{User: "mcp-user", ExecUser: "exec-runner"}
	if got := roleUser(cfg, types.RoleReader, ""); got != "mcp-user" {
		t.Fatalf("expected reader default user, got %q", got)
	}
	if got := roleUser(cfg, types.RoleExecutor, ""); got != "exec-runner" {
		t.Fatalf("expected executor default user, got %q", got)
	}
	if got := roleUser(cfg, types.RoleReader, "override"); got != "override" {
		t.Fatalf("expected override to win, got %q", got)
	}
}

func TestHostKeyCallbackFallsBackToInsecureWithoutKnownHosts(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	tr := New(config.Config{}, nil, nil)
	if tr.hostKeyCallback == nil {
		t.Fatal("expected a non-nil host key callback even without known_hosts configured")
	}
}

func TestHostKeyCallbackStrictWhenKnownHostsConfigured(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	dir := t.TempDir()
	path := dir + "/known_hosts"
	if err := os.WriteFile(path, []byte("coreos-11 ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIJp1ddSPbu06HMvLl++h1QhpemKdpxqHQ7TV4VAyWry5\n"), 0o600); err != nil {
		t.Fatalf("write known_hosts fixture: %v", err)
	}
	tr := New(config.Config{KnownHostsPath: path}, nil, nil)
	if tr.hostKeyCallback == nil {
		t.Fatal("expected a non-nil strict host key callback")
	}
	key, _, _, _, err := ssh.ParseAuthorizedKey([]byte("ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIJp1ddSPbu06HMvLl++h1QhpemKdpxqHQ7TV4VAyWry5"))
	if err != nil {
		t.Fatalf("parse fixture key: %v", err)
	}
	// An unrecognized host must be rejected instead of silently accepted.
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 22}
	if err := tr.hostKeyCallback("coreos-99:22", addr, key); err == nil {
		t.Fatal("expected strict known_hosts verification to reject an unknown host")
	}
}

func TestCloseAllEmptiesPools(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	tr := New(config.Config{}, nil, nil)
	tr.CloseAll()
	if len(tr.readConns) != 0 || len(tr.execConns) != 0 {
		t.Fatal("expected both pools empty after CloseAll")
	}
}
