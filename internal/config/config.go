// Package config loads broker configuration from the environment. Every key
// is read under the fixed prefix LINUX_BROKER_ with its exact upper-case
// spelling (LINUX_BROKER_EXEC_USER); variables spelled in any other case are
// not recognized. The exec_* spelling is canonical, pra_* is accepted as an
// alias on read and never emitted.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "LINUX_BROKER_"

// Config holds every environment-driven setting from the external
// interfaces table. Path values have already had ~ and $VARS expanded.
type Config struct {
	User string

	SSHKeyPath     string
	KeyPassphrase  string
	ExecKeyPath    string
	ExecUser       string
	ExecPassphrase string

	SSHConnectionTimeout time.Duration
	SSHKeepaliveInterval time.Duration
	SSHMaxConnections    int

	LogDir   string
	LogLevel string

	AllowedHosts []string

	RequireApprovalForExec bool
	ExecMaxImpact          string

	DefaultLogLines      int
	DefaultCommandTimeout time.Duration

	// WhitelistPath, when set, overrides the default legacy-rule document
	// location; empty means the built-in defaults are used.
	WhitelistPath string

	// KnownHostsPath, when set, puts the transport in strict host-key
	// verification mode against that known_hosts file. Empty falls back
	// to InsecureIgnoreHostKey, a development-only affordance.
	KnownHostsPath string
}

// Load reads Config from the process environment, applying defaults and
// the exec_*/pra_* alias rule. An unparseable numeric, duration, or
// boolean value is a fatal configuration error, not a silently-ignored
// default.
func Load() (Config, error) {
	cfg := Config{
		User:                  defaultUser(),
		ExecUser:              "exec-runner",
		SSHConnectionTimeout:  30 * time.Second,
		SSHKeepaliveInterval:  60 * time.Second,
		SSHMaxConnections:     10,
		LogLevel:              "INFO",
		AllowedHosts:          nil,
		RequireApprovalForExec: true,
		ExecMaxImpact:         "medium",
		DefaultLogLines:       100,
		DefaultCommandTimeout: 120 * time.Second,
	}

	cfg.User = getString("USER", cfg.User)
	cfg.SSHKeyPath = expandPath(getString("SSH_KEY_PATH", ""))
	cfg.KeyPassphrase = getString("KEY_PASSPHRASE", "")

	cfg.ExecKeyPath = expandPath(getAliased("EXEC_KEY_PATH", "PRA_KEY_PATH", ""))
	cfg.ExecUser = getAliased("EXEC_USER", "PRA_USER", cfg.ExecUser)
	cfg.ExecPassphrase = getAliased("EXEC_KEY_PASSPHRASE", "PRA_KEY_PASSPHRASE", "")

	var err error
	if cfg.SSHConnectionTimeout, err = getSeconds("SSH_CONNECTION_TIMEOUT", cfg.SSHConnectionTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SSHKeepaliveInterval, err = getSeconds("SSH_KEEPALIVE_INTERVAL", cfg.SSHKeepaliveInterval); err != nil {
		return Config{}, err
	}
	if cfg.SSHMaxConnections, err = getInt("SSH_MAX_CONNECTIONS", cfg.SSHMaxConnections); err != nil {
		return Config{}, err
	}

	cfg.LogDir = expandPath(getString("LOG_DIR", ""))
	cfg.LogLevel = strings.ToUpper(getString("LOG_LEVEL", cfg.LogLevel))

	cfg.AllowedHosts = parseAllowedHosts(getString("ALLOWED_HOSTS", "*"))

	if cfg.RequireApprovalForExec, err = getBool("REQUIRE_APPROVAL_FOR_EXEC", cfg.RequireApprovalForExec); err != nil {
		return Config{}, err
	}
	cfg.ExecMaxImpact = strings.ToLower(getAliased("EXEC_MAX_IMPACT", "PRA_MAX_IMPACT", cfg.ExecMaxImpact))

	if cfg.DefaultLogLines, err = getInt("DEFAULT_LOG_LINES", cfg.DefaultLogLines); err != nil {
		return Config{}, err
	}
	if cfg.DefaultCommandTimeout, err = getSeconds("DEFAULT_COMMAND_TIMEOUT", cfg.DefaultCommandTimeout); err != nil {
		return Config{}, err
	}

	cfg.WhitelistPath = expandPath(getString("WHITELIST_PATH", ""))
	cfg.KnownHostsPath = expandPath(getString("KNOWN_HOSTS_PATH", ""))

	return cfg, nil
}

// IsHostAllowed reports whether host may be targeted, per the
// AllowedHosts list ("*" or empty means unrestricted).
func (c Config) IsHostAllowed(host string) bool {
	if len(c.AllowedHosts) == 0 {
		return true
	}
	for _, h := range c.AllowedHosts {
		if h == "*" || h == host {
			return true
		}
	}
	return false
}

func parseAllowedHosts(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

func getString(key, def string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return def
}

// getAliased reads the canonical key, falling back to the deprecated alias
// if the canonical key is unset. The alias is never written back.
func getAliased(canonical, alias, def string) string {
	if v := os.Getenv(envPrefix + canonical); v != "" {
		return v
	}
	if v := os.Getenv(envPrefix + alias); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s%s=%q: %w", envPrefix, key, v, err)
	}
	return n, nil
}

func getSeconds(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s%s=%q: %w", envPrefix, key, v, err)
	}
	return time.Duration(n) * time.Second, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s%s=%q: %w", envPrefix, key, v, err)
	}
	return b, nil
}

// expandPath expands a leading ~ and any $VAR / ${VAR} references.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
