package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MOODCLAW_PROVIDER", "MOODCLAW_API_KEY", "GEMINI_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY",
		"MOODCLAW_BASE_URL", "MOODCLAW_MODEL", "MOODCLAW_TELEGRAM_TOKEN", "MOODCLAW_OWNER_ID",
		"MOODCLAW_STORAGE", "MOODCLAW_DATA_DIR", "MOODCLAW_LOG_LEVEL", "MOODCLAW_TIMEOUT_SECONDS",
		"MOODCLAW_ADAPTATION_RATE", "MOODCLAW_REVERSION_RATE",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.Provider.Type != DefaultProvider {
		t.Errorf("provider = %q, want %q", cfg.Provider.Type, DefaultProvider)
	}
	if cfg.History.ChannelLines != 100 || cfg.History.UserLines != 100 {
		t.Errorf("history lines = %d/%d, want 100/100", cfg.History.ChannelLines, cfg.History.UserLines)
	}
	if cfg.Personality.AdaptationRate != 0.05 {
		t.Errorf("adaptationRate = %v, want 0.05", cfg.Personality.AdaptationRate)
	}
	if cfg.Personality.InteractionLog != 20 {
		t.Errorf("interactionLog = %d, want 20", cfg.Personality.InteractionLog)
	}
	if cfg.Generation.TimeoutSeconds != 15 {
		t.Errorf("timeoutSeconds = %d, want 15", cfg.Generation.TimeoutSeconds)
	}
	if cfg.Generation.DedupRetries != 2 {
		t.Errorf("dedupRetries = %d, want 2", cfg.Generation.DedupRetries)
	}
	if cfg.Gateway.Port != DefaultPort {
		t.Errorf("port = %d, want %d", cfg.Gateway.Port, DefaultPort)
	}
	if cfg.Agent.Workspace == "" {
		t.Error("workspace should not be empty")
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Agent.Model != DefaultGeminiModel {
		t.Errorf("expected default model %q, got %q", DefaultGeminiModel, cfg.Agent.Model)
	}
	if cfg.Storage.Backend != "file" {
		t.Errorf("backend = %q, want file", cfg.Storage.Backend)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	dir := filepath.Join(home, ".moodclaw")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	raw := map[string]any{
		"provider": map[string]any{"type": "anthropic", "apiKey": "file-key"},
		"agent":    map[string]any{"ownerId": "42", "ignoreFrom": []string{"7"}},
		"history":  map[string]any{"channelLines": 10},
	}
	data, _ := json.Marshal(raw)
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Provider.APIKey != "file-key" {
		t.Errorf("apiKey = %q, want file-key", cfg.Provider.APIKey)
	}
	if cfg.Agent.Model != DefaultAnthropicModel {
		t.Errorf("model = %q, want %q", cfg.Agent.Model, DefaultAnthropicModel)
	}
	if cfg.Agent.OwnerID != "42" {
		t.Errorf("ownerId = %q, want 42", cfg.Agent.OwnerID)
	}
	if cfg.History.ChannelLines != 10 {
		t.Errorf("channelLines = %d, want 10", cfg.History.ChannelLines)
	}
	if cfg.History.UserLines != DefaultUserHistoryLines {
		t.Errorf("userLines = %d, want default %d", cfg.History.UserLines, DefaultUserHistoryLines)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	dir := filepath.Join(home, ".moodclaw")
	os.MkdirAll(dir, 0755)
	os.WriteFile(filepath.Join(dir, "config.json"), []byte("{bad"), 0644)

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("ANTHROPIC_API_KEY", "ant-key")
	t.Setenv("MOODCLAW_TELEGRAM_TOKEN", "tg")
	t.Setenv("MOODCLAW_OWNER_ID", "owner")
	t.Setenv("MOODCLAW_TIMEOUT_SECONDS", "3")
	t.Setenv("MOODCLAW_REVERSION_RATE", "2.5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Provider.APIKey != "gem-key" {
		t.Errorf("apiKey = %q, want gem-key (gemini is the default provider)", cfg.Provider.APIKey)
	}
	if cfg.Channels.Telegram.Token != "tg" {
		t.Errorf("telegram token = %q, want tg", cfg.Channels.Telegram.Token)
	}
	if cfg.Agent.OwnerID != "owner" {
		t.Errorf("ownerId = %q, want owner", cfg.Agent.OwnerID)
	}
	if cfg.Generation.TimeoutSeconds != 3 {
		t.Errorf("timeoutSeconds = %d, want 3", cfg.Generation.TimeoutSeconds)
	}
	if cfg.Personality.ReversionRate != 2.5 {
		t.Errorf("reversionRate = %v, want 2.5", cfg.Personality.ReversionRate)
	}
}

func TestLoadConfig_ProviderEnvSelectsKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)
	t.Setenv("MOODCLAW_PROVIDER", "OpenAI")
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("OPENAI_API_KEY", "oa-key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Type != "openai" {
		t.Errorf("provider = %q, want openai", cfg.Provider.Type)
	}
	if cfg.Provider.APIKey != "oa-key" {
		t.Errorf("apiKey = %q, want oa-key", cfg.Provider.APIKey)
	}
	if cfg.Agent.Model != DefaultOpenAIModel {
		t.Errorf("model = %q, want %q", cfg.Agent.Model, DefaultOpenAIModel)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "API key") {
		t.Fatalf("expected missing API key error, got %v", err)
	}

	cfg.Provider.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Channels.Telegram.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for telegram without token")
	}

	cfg.Channels.Telegram.Token = "t"
	cfg.Provider.Type = "cohere"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestConfigPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := DefaultConfig()
	cfg.Agent.Workspace = "/ws"

	if got := cfg.PersonaPath(); got != filepath.Join("/ws", DefaultPersonaFile) {
		t.Errorf("PersonaPath = %q", got)
	}
	if got := cfg.PersonaDirPath(); got != filepath.Join("/ws", DefaultPersonaDir) {
		t.Errorf("PersonaDirPath = %q", got)
	}
	if got := cfg.DataDir(); got != filepath.Join(home, ".moodclaw", "data") {
		t.Errorf("DataDir = %q", got)
	}
	if got := cfg.DBPath(); got != filepath.Join(home, ".moodclaw", "data", "state.db") {
		t.Errorf("DBPath = %q", got)
	}

	cfg.Agent.PersonaFile = "/etc/persona.md"
	if got := cfg.PersonaPath(); got != "/etc/persona.md" {
		t.Errorf("absolute PersonaPath = %q", got)
	}
	cfg.Personality.TablesFile = ""
	if got := cfg.TablesPath(); got != "" {
		t.Errorf("TablesPath = %q, want empty", got)
	}
}

func TestSaveConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	cfg := DefaultConfig()
	cfg.Provider.APIKey = "saved"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig error: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if loaded.Provider.APIKey != "saved" {
		t.Errorf("apiKey = %q, want saved", loaded.Provider.APIKey)
	}
}
