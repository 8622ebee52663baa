// Package cursor reads local Cursor editor state: the per-conversation
// model from chat store files, the global default model, the state database
// (ItemTable), and the token usage cache written by the usage fetcher.
// Everything here is read-only and local; no network.
package cursor

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ppiankov/vigilo/internal/model"
)

// ChatsDir is where Cursor keeps per-workspace conversation stores.
func ChatsDir() string {
	return filepath.Join(model.HomeDir(), ".cursor", "chats")
}

// StateDBPath resolves the Cursor state database: the CURSOR_DB config key,
// else the platform default location.
func StateDBPath() string {
	if p := model.LoadConfig()["CURSOR_DB"]; p != "" {
		return p
	}
	return filepath.Join(model.HomeDir(), ".config", "Cursor", "User", "globalStorage", "state.vscdb")
}

// HasStateDB reports whether a Cursor state database is present.
func HasStateDB() bool {
	_, err := os.Stat(StateDBPath())
	return err == nil
}

// NormalizeModel maps Cursor's names for Auto mode onto one display name.
func NormalizeModel(m string) string {
	if m == "default" || m == "auto" {
		return "Auto"
	}
	return m
}

// DefaultModel reads the coarse global default from cli-config.json.
func DefaultModel() string {
	data, err := os.ReadFile(filepath.Join(model.HomeDir(), ".cursor", "cli-config.json"))
	if err != nil {
		return ""
	}
	var cfg struct {
		Model struct {
			DisplayName    string `json:"displayName"`
			DisplayModelID string `json:"displayModelId"`
		} `json:"model"`
	}
	if json.Unmarshal(data, &cfg) != nil {
		return ""
	}
	if cfg.Model.DisplayName != "" {
		return cfg.Model.DisplayName
	}
	return cfg.Model.DisplayModelID
}

// ModelForConversation finds <conversation_id>/store.db under the chats
// directory and extracts its lastUsedModel.
func ModelForConversation(conversationID string) string {
	if conversationID == "" {
		return ""
	}
	entries, err := os.ReadDir(ChatsDir())
	if err != nil {
		return ""
	}
	for _, e := range entries {
		db := filepath.Join(ChatsDir(), e.Name(), conversationID, "store.db")
		if _, err := os.Stat(db); err == nil {
			return lastUsedModelFromStore(db)
		}
	}
	return ""
}

// lastUsedModelNeedle is the hex encoding of `"lastUsedModel":"` as it
// appears inside Cursor's hex-encoded JSON blobs.
var lastUsedModelNeedle = []byte(hex.EncodeToString([]byte(`"lastUsedModel":"`)))

// lastUsedModelFromStore scans the raw store file for the hex-encoded
// lastUsedModel value. The store's blob layout is not a stable schema, so a
// byte scan is the robust option here.
func lastUsedModelFromStore(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	pos := bytes.Index(data, lastUsedModelNeedle)
	if pos < 0 {
		return ""
	}
	after := data[pos+len(lastUsedModelNeedle):]
	// The closing quote is hex "22" on an even (byte-aligned) offset.
	end := -1
	for i := 0; i+2 <= len(after); i += 2 {
		if after[i] == '2' && after[i+1] == '2' {
			end = i
			break
		}
	}
	if end < 0 {
		return ""
	}
	decoded, err := hex.DecodeString(string(after[:end]))
	if err != nil {
		return ""
	}
	return string(decoded)
}
