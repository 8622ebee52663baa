package cursor

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/vigilo/internal/model"
)

func TestNormalizeModel(t *testing.T) {
	if NormalizeModel("default") != "Auto" || NormalizeModel("auto") != "Auto" {
		t.Fatal("auto aliases should normalize")
	}
	if NormalizeModel("composer-1") != "composer-1" {
		t.Fatal("real names pass through")
	}
}

func TestDefaultModelFromCLIConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	os.MkdirAll(filepath.Join(home, ".cursor"), 0o755)
	os.WriteFile(filepath.Join(home, ".cursor", "cli-config.json"),
		[]byte(`{"model":{"displayName":"composer-1"}}`), 0o644)

	if got := DefaultModel(); got != "composer-1" {
		t.Fatalf("default model %q", got)
	}
}

func TestDefaultModelMissingConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if got := DefaultModel(); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestModelForConversationScansStore(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	storeDir := filepath.Join(home, ".cursor", "chats", "wshash", "conv-1")
	os.MkdirAll(storeDir, 0o755)

	// Blob layout: hex-encoded JSON with a lastUsedModel value.
	blob := []byte("junk" + hex.EncodeToString([]byte(`{"lastUsedModel":"composer-1.5"}`)) + "junk")
	os.WriteFile(filepath.Join(storeDir, "store.db"), blob, 0o644)

	if got := ModelForConversation("conv-1"); got != "composer-1.5" {
		t.Fatalf("model %q", got)
	}
	if got := ModelForConversation("conv-absent"); got != "" {
		t.Fatalf("absent conversation should be empty, got %q", got)
	}
}

func TestStateDBPathConfigOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	os.MkdirAll(filepath.Join(home, ".vigilo"), 0o700)
	os.WriteFile(filepath.Join(home, ".vigilo", "config"), []byte("CURSOR_DB=/custom/state.vscdb\n"), 0o600)

	if got := StateDBPath(); got != "/custom/state.vscdb" {
		t.Fatalf("path %q", got)
	}
}

func TestCachedTokensRangeAndAggregate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	os.MkdirAll(filepath.Join(home, ".vigilo"), 0o700)

	lines := `{"timestamp_ms":1000,"model":"composer-1","input_tokens":100,"output_tokens":50,"cache_read_tokens":10,"cache_write_tokens":0,"cost_cents":2.5}
{"timestamp_ms":2000,"model":"composer-1","input_tokens":200,"output_tokens":100,"cache_read_tokens":0,"cache_write_tokens":0,"cost_cents":5.0}
{"timestamp_ms":99999,"model":"other","input_tokens":1,"output_tokens":1,"cache_read_tokens":0,"cache_write_tokens":0,"cost_cents":1.0}
`
	os.WriteFile(CachePath(), []byte(lines), 0o600)

	events := LoadCachedTokens(500, 3000)
	if len(events) != 2 {
		t.Fatalf("expected 2 events in range, got %d", len(events))
	}
	agg := AggregateCachedTokens(events)
	if agg == nil {
		t.Fatal("expected aggregate")
	}
	if agg.Model != "composer-1" || agg.InputTokens != 300 || agg.RequestCount != 2 {
		t.Fatalf("aggregate %+v", agg)
	}
	if agg.CostUSD != 0.075 {
		t.Fatalf("cost %f", agg.CostUSD)
	}

	if AggregateCachedTokens(nil) != nil {
		t.Fatal("empty slice aggregates to nil")
	}
}

func TestSessionTokensForNonCursorIsNil(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	events := []model.Event{{Server: model.ServerVigilo, Timestamp: model.Now()}}
	if SessionTokensFor(events) != nil {
		t.Fatal("vigilo sessions have no cursor tokens")
	}
}
