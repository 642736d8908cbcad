// Package transport implements the Dual-Channel SSH Transport: two
// role-keyed connection pools (reader, executor) sharing an
// auth-mode-detection and host-allowlist policy but using distinct
// credentials and remote identities, per the privilege-separation
// requirement.
package transport

import (
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/marcus-qen/linux-broker/internal/audit"
	"github.com/marcus-qen/linux-broker/internal/config"
	"github.com/marcus-qen/linux-broker/internal/types"
)

// AuthMode is the detected authentication strategy, chosen once at
// construction time.
type AuthMode string

const (
	AuthAgent  AuthMode = "agent"
	AuthDirect AuthMode = "direct"
	AuthNone   AuthMode = "none"
)

// HostNotAllowedError is returned when a host fails the allowlist check.
type HostNotAllowedError struct{ Host string }

func (e *HostNotAllowedError) Error() string {
	return fmt.Sprintf("ssh: host %q is not in the allowed hosts list", e.Host)
}

// NoAuthMethodError is returned when the transport has no usable
// credentials at all (AuthMode == AuthNone). DIRECT mode without the
// role's key returns ExecKeyNotConfiguredError instead.
type NoAuthMethodError struct{ Role types.SSHRole }

func (e *NoAuthMethodError) Error() string {
	return fmt.Sprintf("ssh: no authentication method available for role %q", e.Role)
}

// ExecKeyNotConfiguredError is DIRECT mode with no executor key on disk.
type ExecKeyNotConfiguredError struct{}

func (e *ExecKeyNotConfiguredError) Error() string {
	return "ssh: executor private key is not configured"
}

// AgentKeyMissingError is returned when AGENT mode is active but the
// agent has no identity matching the expected role key. Remediation
// names the exact ssh-add invocation the operator should run.
type AgentKeyMissingError struct {
	Role        types.SSHRole
	Remediation string
}

func (e *AgentKeyMissingError) Error() string {
	return fmt.Sprintf("ssh: agent active but %s key not loaded. Fix: %s", e.Role, e.Remediation)
}

// TransportError wraps an underlying network/protocol failure with host
// context.
type TransportError struct {
	Host string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ssh: failed to connect to %s: %v", e.Host, e.Err)
}
func (e *TransportError) Unwrap() error { return e.Err }

type pooledConn struct {
	client   *ssh.Client
	lastUsed time.Time
}

func (p *pooledConn) live() bool {
	if p == nil || p.client == nil {
		return false
	}
	// A closed *ssh.Client rejects new sessions; cheaply probe liveness
	// by attempting to open (and immediately close) a session.
	sess, err := p.client.NewSession()
	if err != nil {
		return false
	}
	sess.Close()
	return true
}

// Transport is the Dual-Channel SSH Transport.
type Transport struct {
	cfg   config.Config
	audit *audit.Log
	log   *zap.Logger

	authMode        AuthMode
	readerSigner    ssh.Signer
	execSigner      ssh.Signer
	agentClient     agent.Agent
	hostKeyCallback ssh.HostKeyCallback

	mu        sync.Mutex
	readConns map[string]*pooledConn
	execConns map[string]*pooledConn
}

// New detects the authentication mode and constructs a Transport. Detection
// failures (NONE mode) are not fatal here — they surface per-call as
// NoAuthMethodError, matching the "all connection attempts fail" wording.
func New(cfg config.Config, auditLog *audit.Log, log *zap.Logger) *Transport {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Transport{
		cfg:       cfg,
		audit:     auditLog,
		log:       log,
		readConns: make(map[string]*pooledConn),
		execConns: make(map[string]*pooledConn),
	}
	t.authMode = t.detectAuthMode()
	t.logAuthMode()
	t.hostKeyCallback = t.buildHostKeyCallback()
	return t
}

// buildHostKeyCallback puts the transport in strict known-hosts
// verification when KnownHostsPath is configured, matching the
// production posture the development default (InsecureIgnoreHostKey)
// is explicitly not suited for.
func (t *Transport) buildHostKeyCallback() ssh.HostKeyCallback {
	if t.cfg.KnownHostsPath == "" {
		t.log.Warn("ssh host-key verification disabled: no known_hosts path configured, this is a development-only posture")
		return ssh.InsecureIgnoreHostKey()
	}
	cb, err := knownhosts.New(t.cfg.KnownHostsPath)
	if err != nil {
		t.log.Error("failed to load known_hosts, every host key will be rejected",
			zap.String("path", t.cfg.KnownHostsPath), zap.Error(err))
		return func(string, net.Addr, ssh.PublicKey) error {
			return fmt.Errorf("ssh: known_hosts %s could not be loaded: %w", t.cfg.KnownHostsPath, err)
		}
	}
	return cb
}

func (t *Transport) detectAuthMode() AuthMode {
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			t.agentClient = agent.NewClient(conn)
			return AuthAgent
		}
	}

	if t.cfg.SSHKeyPath != "" && t.cfg.ExecKeyPath != "" {
		reader, rerr := loadSigner(t.cfg.SSHKeyPath, t.cfg.KeyPassphrase)
		exec, eerr := loadSigner(t.cfg.ExecKeyPath, t.cfg.ExecPassphrase)
		if rerr == nil && eerr == nil {
			t.readerSigner = reader
			t.execSigner = exec
			return AuthDirect
		}
		if rerr != nil {
			t.auditKeyLoadFailure(t.cfg.SSHKeyPath, rerr)
		}
		if eerr != nil {
			t.auditKeyLoadFailure(t.cfg.ExecKeyPath, eerr)
		}
	}

	return AuthNone
}

func loadSigner(path, passphrase string) (ssh.Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(raw, []byte(passphrase))
	}
	return ssh.ParsePrivateKey(raw)
}

func (t *Transport) auditKeyLoadFailure(path string, err error) {
	if t.audit == nil {
		return
	}
	t.audit.Record(audit.EventSecurityViolation, audit.StatusFailure, audit.LevelError, map[string]any{
		"error": "key_load_failed",
		"path":  path,
	})
	t.log.Warn("ssh: failed to load private key", zap.String("path", path), zap.Error(err))
}

func (t *Transport) logAuthMode() {
	switch t.authMode {
	case AuthAgent:
		if t.audit != nil {
			t.audit.Record(audit.EventToolCall, audit.StatusSuccess, audit.LevelInfo, map[string]any{
				"component":      "transport",
				"auth_mode":      "AGENT",
				"security_level": "MAXIMUM",
			})
		}
		t.log.Info("ssh: using SSH agent (private keys never in process memory)")
	case AuthDirect:
		if t.audit != nil {
			t.audit.Record(audit.EventSecurityViolation, audit.StatusPending, audit.LevelWarning, map[string]any{
				"component":      "transport",
				"auth_mode":      "DIRECT",
				"security_level": "REDUCED",
				"recommendation": "start an SSH agent and ssh-add the reader/executor keys",
			})
		}
		t.log.Warn("ssh: agent unavailable, falling back to direct keys in process memory")
	default:
		if t.audit != nil {
			t.audit.Record(audit.EventSecurityViolation, audit.StatusFailure, audit.LevelCritical, map[string]any{
				"component": "transport",
				"auth_mode": "NONE",
				"error":     "no SSH authentication method available",
			})
		}
		t.log.Error("ssh: no authentication method available — all connections will fail")
	}
}

// AuthMode reports the detected authentication mode.
func (t *Transport) AuthMode() AuthMode { return t.authMode }

func roleUser(cfg config.Config, role types.SSHRole, override string) string {
	if override != "" {
		return override
	}
	if role == types.RoleExecutor {
		return cfg.ExecUser
	}
	return cfg.User
}

// getConnection returns a live connection for (role, host, user), reusing
// a pooled handle when possible, under the single pool mutex.
func (t *Transport) getConnection(role types.SSHRole, host, user string) (*ssh.Client, error) {
	user = roleUser(t.cfg, role, user)
	key := user + "@" + host

	t.mu.Lock()
	defer t.mu.Unlock()

	pool := t.readConns
	if role == types.RoleExecutor {
		pool = t.execConns
	}

	if existing, ok := pool[key]; ok && existing.live() {
		existing.lastUsed = time.Now()
		if t.audit != nil {
			t.audit.Record(audit.EventSSHConnect, audit.StatusSuccess, audit.LevelInfo, map[string]any{
				"host": host, "user": user, "role": role, "reused": true,
			})
		}
		return existing.client, nil
	}

	t.evictIfAtCapacity(pool)

	client, err := t.dial(role, host, user)
	if err != nil {
		return nil, err
	}

	pool[key] = &pooledConn{client: client, lastUsed: time.Now()}
	if t.audit != nil {
		t.audit.Record(audit.EventSSHConnect, audit.StatusSuccess, audit.LevelInfo, map[string]any{
			"host": host, "user": user, "role": role, "reused": false,
		})
	}
	return client, nil
}

// evictIfAtCapacity removes the least-recently-used entry (whether or not
// it is still live, and whether or not it is in use) once the
// pool is at SSHMaxConnections, per the advisory bound's LRU-by-last-use
// eviction policy. Must be called with t.mu held.
func (t *Transport) evictIfAtCapacity(pool map[string]*pooledConn) {
	max := t.cfg.SSHMaxConnections
	if max <= 0 || len(pool) < max {
		return
	}
	var oldestKey string
	var oldestAt time.Time
	for k, c := range pool {
		if oldestKey == "" || c.lastUsed.Before(oldestAt) {
			oldestKey = k
			oldestAt = c.lastUsed
		}
	}
	if oldestKey == "" {
		return
	}
	if c := pool[oldestKey]; c.client != nil {
		c.client.Close()
	}
	delete(pool, oldestKey)
}

func (t *Transport) dial(role types.SSHRole, host, user string) (*ssh.Client, error) {
	var authMethods []ssh.AuthMethod

	switch t.authMode {
	case AuthAgent:
		authMethods = append(authMethods, ssh.PublicKeysCallback(t.agentClient.Signers))
	case AuthDirect:
		signer := t.readerSigner
		if role == types.RoleExecutor {
			signer = t.execSigner
		}
		if signer == nil {
			return nil, &ExecKeyNotConfiguredError{}
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	default:
		return nil, &NoAuthMethodError{Role: role}
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: t.hostKeyCallback,
		Timeout:         t.cfg.SSHConnectionTimeout,
	}

	addr := host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if t.authMode == AuthAgent && (strings.Contains(msg, "agent") || strings.Contains(msg, "unable to authenticate")) {
			return nil, t.agentKeyMissing(role, host, user)
		}
		if t.audit != nil {
			t.audit.Record(audit.EventSSHConnect, audit.StatusFailure, audit.LevelError, map[string]any{
				"host": host, "user": user, "role": role, "error": err.Error(),
			})
		}
		return nil, &TransportError{Host: host, Err: err}
	}
	return client, nil
}

func (t *Transport) agentKeyMissing(role types.SSHRole, host, user string) error {
	path := t.cfg.SSHKeyPath
	if role == types.RoleExecutor {
		path = t.cfg.ExecKeyPath
	}
	if path == "" {
		path = "/path/to/" + string(role) + ".key"
	}
	remediation := "ssh-add " + path
	if t.audit != nil {
		t.audit.Record(audit.EventSecurityViolation, audit.StatusFailure, audit.LevelError, map[string]any{
			"error": "ssh_agent_key_missing", "host": host, "user": user, "role": role, "solution": remediation,
		})
	}
	return &AgentKeyMissingError{Role: role, Remediation: remediation}
}

// Execute dispatches a remote command over the named role's connection.
// argv is joined with single spaces into a remote shell command-line for
// reader dispatches; for executor dispatches the single action string is
// sent as-is.
func (t *Transport) Execute(role types.SSHRole, host, command, user string) (int, string, string, error) {
	if !t.cfg.IsHostAllowed(host) {
		if t.audit != nil {
			t.audit.Record(audit.EventSecurityViolation, audit.StatusDenied, audit.LevelWarning, map[string]any{
				"error": "host_not_allowed", "host": host, "role": role, "command": command,
			})
		}
		return 0, "", "", &HostNotAllowedError{Host: host}
	}

	client, err := t.getConnection(role, host, user)
	if err != nil {
		return 0, "", "", err
	}

	session, err := client.NewSession()
	if err != nil {
		return 0, "", "", &TransportError{Host: host, Err: err}
	}
	defer session.Close()

	var stdout, stderr strings.Builder
	session.Stdout = &stdout
	session.Stderr = &stderr

	exitCode := 0
	if err := session.Run(command); err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
		} else {
			return 0, stdout.String(), stderr.String(), &TransportError{Host: host, Err: err}
		}
	}

	if t.audit != nil {
		t.audit.Record(audit.EventSSHCommand, audit.StatusSuccess, audit.LevelInfo, map[string]any{
			"host": host, "role": role, "command": command, "exit_code": exitCode,
		})
	}
	return exitCode, stdout.String(), stderr.String(), nil
}

// ExecuteRead runs argv (joined by spaces) as the reader identity.
func (t *Transport) ExecuteRead(host string, argv []string, user string) (int, string, string, error) {
	return t.Execute(types.RoleReader, host, strings.Join(argv, " "), user)
}

// ExecuteAction runs a forced-command action name as the executor identity.
func (t *Transport) ExecuteAction(host, action, user string) (int, string, string, error) {
	return t.Execute(types.RoleExecutor, host, action, user)
}

// CloseAll closes every pooled handle in both maps and empties them.
func (t *Transport) CloseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, pools := range []map[string]*pooledConn{t.readConns, t.execConns} {
		for key, c := range pools {
			if c.client != nil {
				c.client.Close()
			}
			delete(pools, key)
		}
	}
}

// CleanupClosed removes pool entries whose handles are no longer live.
func (t *Transport) CleanupClosed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for _, pools := range []map[string]*pooledConn{t.readConns, t.execConns} {
		for key, c := range pools {
			if !c.live() {
				delete(pools, key)
				removed++
			}
		}
	}
	return removed
}
