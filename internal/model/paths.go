package model

import (
	"os"
	"path/filepath"
	"strings"
)

// HomeDir returns the user's home directory, falling back to ".".
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return home
}

// Dir returns the vigilo config directory, ~/.vigilo by default.
func Dir() string {
	return filepath.Join(HomeDir(), ".vigilo")
}

// Path returns a file path inside the config directory.
func Path(sub string) string {
	return filepath.Join(Dir(), sub)
}

// SessionArtifactPath is the location of the MCP session handoff record.
func SessionArtifactPath() string {
	return Path("mcp-session")
}

// DefaultLedgerPath is the active ledger file when nothing overrides it.
func DefaultLedgerPath() string {
	return Path("events.jsonl")
}

// LedgerPath resolves the active ledger file: VIGILO_LEDGER env, then the
// LEDGER config key, then the default.
func LedgerPath() string {
	if p := os.Getenv("VIGILO_LEDGER"); p != "" {
		return p
	}
	if p := LoadConfig()["LEDGER"]; p != "" {
		return p
	}
	return DefaultLedgerPath()
}

// LoadConfig parses the line-oriented KEY=VALUE file at ~/.vigilo/config.
// Missing file yields an empty map. Lines starting with '#' are comments.
func LoadConfig() map[string]string {
	out := make(map[string]string)
	data, err := os.ReadFile(Path("config"))
	if err != nil {
		return out
	}
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		k, v, ok := strings.Cut(trimmed, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

// ConfigOrEnv returns the env var value if set, else the config file value.
// envKey is the full variable name (e.g. "VIGILO_TAG"), cfgKey the file key.
func ConfigOrEnv(envKey, cfgKey string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return LoadConfig()[cfgKey]
}

// ShortenHome replaces a leading home directory prefix with "~".
func ShortenHome(path string) string {
	home := HomeDir()
	if home != "" && home != "." && strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
