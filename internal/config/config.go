package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/stellarlinkco/moodclaw/internal/fileutil"
)

const (
	DefaultProvider       = "gemini"
	DefaultGeminiModel    = "gemini-1.5-flash-latest"
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultMaxTokens      = 1024
	DefaultTemperature    = 0.9
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 18790
	DefaultMetricsPort    = 18791
	DefaultBufSize        = 100
	DefaultMaxConcurrent  = 8

	DefaultChannelHistoryLines = 100
	DefaultUserHistoryLines    = 100

	DefaultAdaptationRate  = 0.05
	DefaultReversionRate   = 1.0
	DefaultModifierSpread  = 15.0
	DefaultInteractionLog  = 20
	DefaultDecaySchedule   = "0 0 4 * * *"
	DefaultTimeoutSeconds  = 15
	DefaultDedupRetries    = 2
	DefaultRatePerMinute   = 30
	DefaultBreakerFailures = 5
	DefaultBreakerCooldown = 30

	DefaultPersonaFile = "persona.md"
	DefaultPersonaDir  = "personas"
	DefaultTablesFile  = "personality.yaml"
	DefaultLogLevel    = "info"
)

const DefaultOwnerAddendum = "The user you are talking to right now is the person who built you. " +
	"Drop the act a little with them: be warm, playful and a bit cheeky, tease them affectionately, " +
	"but keep your own personality."

type Config struct {
	Agent       AgentConfig       `json:"agent"`
	Provider    ProviderConfig    `json:"provider"`
	Channels    ChannelsConfig    `json:"channels"`
	Gateway     GatewayConfig     `json:"gateway"`
	History     HistoryConfig     `json:"history"`
	Personality PersonalityConfig `json:"personality"`
	Generation  GenerationConfig  `json:"generation"`
	Storage     StorageConfig     `json:"storage"`
	Log         LogConfig         `json:"log"`
}

type AgentConfig struct {
	Workspace     string   `json:"workspace"`
	PersonaFile   string   `json:"personaFile,omitempty"`
	PersonaDir    string   `json:"personaDir,omitempty"`
	Persona       string   `json:"persona,omitempty"`
	OwnerID       string   `json:"ownerId,omitempty"`
	OwnerAddendum string   `json:"ownerAddendum,omitempty"`
	IgnoreFrom    []string `json:"ignoreFrom,omitempty"`
	Model         string   `json:"model,omitempty"` // empty picks DefaultModelFor(provider.type)
	MaxTokens     int      `json:"maxTokens"`
	Temperature   float64  `json:"temperature"`
}

type ProviderConfig struct {
	Type    string `json:"type,omitempty"` // "gemini" (default), "anthropic" or "openai"
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	WebUI    WebUIConfig    `json:"webui"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type WebUIConfig struct {
	Enabled   bool     `json:"enabled"`
	AllowFrom []string `json:"allowFrom"`
}

type GatewayConfig struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	MetricsPort   int    `json:"metricsPort"`
	MaxConcurrent int    `json:"maxConcurrent"`
}

type HistoryConfig struct {
	ChannelLines int `json:"channelLines"`
	UserLines    int `json:"userLines"`
}

type PersonalityConfig struct {
	AdaptationRate float64 `json:"adaptationRate"`
	// ReversionRate is how many trait points per day a value moves back toward its default.
	ReversionRate  float64 `json:"reversionRate"`
	ModifierSpread float64 `json:"modifierSpread"`
	InteractionLog int     `json:"interactionLog"`
	TablesFile     string  `json:"tablesFile,omitempty"`
	DecaySchedule  string  `json:"decaySchedule,omitempty"`
}

type GenerationConfig struct {
	TimeoutSeconds  int `json:"timeoutSeconds"`
	DedupRetries    int `json:"dedupRetries"`
	RatePerMinute   int `json:"ratePerMinute"`
	BreakerFailures int `json:"breakerFailures"`
	BreakerCooldown int `json:"breakerCooldownSeconds"`
}

type StorageConfig struct {
	Backend string `json:"backend,omitempty"` // "file" (default) or "sqlite"
	Dir     string `json:"dir,omitempty"`
	DBPath  string `json:"dbPath,omitempty"`
}

type LogConfig struct {
	Level string `json:"level,omitempty"`
	JSON  bool   `json:"json"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Agent: AgentConfig{
			Workspace:     filepath.Join(home, ".moodclaw", "workspace"),
			PersonaFile:   DefaultPersonaFile,
			PersonaDir:    DefaultPersonaDir,
			OwnerAddendum: DefaultOwnerAddendum,
			MaxTokens:     DefaultMaxTokens,
			Temperature:   DefaultTemperature,
		},
		Provider: ProviderConfig{Type: DefaultProvider},
		Channels: ChannelsConfig{},
		Gateway: GatewayConfig{
			Host:          DefaultHost,
			Port:          DefaultPort,
			MetricsPort:   DefaultMetricsPort,
			MaxConcurrent: DefaultMaxConcurrent,
		},
		History: HistoryConfig{
			ChannelLines: DefaultChannelHistoryLines,
			UserLines:    DefaultUserHistoryLines,
		},
		Personality: PersonalityConfig{
			AdaptationRate: DefaultAdaptationRate,
			ReversionRate:  DefaultReversionRate,
			ModifierSpread: DefaultModifierSpread,
			InteractionLog: DefaultInteractionLog,
			TablesFile:     DefaultTablesFile,
			DecaySchedule:  DefaultDecaySchedule,
		},
		Generation: GenerationConfig{
			TimeoutSeconds:  DefaultTimeoutSeconds,
			DedupRetries:    DefaultDedupRetries,
			RatePerMinute:   DefaultRatePerMinute,
			BreakerFailures: DefaultBreakerFailures,
			BreakerCooldown: DefaultBreakerCooldown,
		},
		Storage: StorageConfig{Backend: "file"},
		Log:     LogConfig{Level: DefaultLogLevel},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".moodclaw")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// DataDir is where the file storage backend keeps its documents unless
// storage.dir says otherwise.
func (c *Config) DataDir() string {
	if dir := strings.TrimSpace(c.Storage.Dir); dir != "" {
		return dir
	}
	return filepath.Join(ConfigDir(), "data")
}

func (c *Config) DBPath() string {
	if p := strings.TrimSpace(c.Storage.DBPath); p != "" {
		return p
	}
	return filepath.Join(c.DataDir(), "state.db")
}

func (c *Config) PersonaPath() string {
	return c.workspacePath(c.Agent.PersonaFile)
}

func (c *Config) PersonaDirPath() string {
	return c.workspacePath(c.Agent.PersonaDir)
}

func (c *Config) TablesPath() string {
	if strings.TrimSpace(c.Personality.TablesFile) == "" {
		return ""
	}
	return c.workspacePath(c.Personality.TablesFile)
}

func (c *Config) workspacePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Agent.Workspace, p)
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if p := os.Getenv("MOODCLAW_PROVIDER"); p != "" {
		cfg.Provider.Type = strings.ToLower(p)
	}
	if key := os.Getenv("MOODCLAW_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && cfg.Provider.APIKey == "" && providerIs(cfg, "gemini") {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" && providerIs(cfg, "anthropic") {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" && providerIs(cfg, "openai") {
		cfg.Provider.APIKey = key
	}
	if url := os.Getenv("MOODCLAW_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if model := os.Getenv("MOODCLAW_MODEL"); model != "" {
		cfg.Agent.Model = model
	}
	if token := os.Getenv("MOODCLAW_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if owner := os.Getenv("MOODCLAW_OWNER_ID"); owner != "" {
		cfg.Agent.OwnerID = owner
	}
	if backend := os.Getenv("MOODCLAW_STORAGE"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if dir := os.Getenv("MOODCLAW_DATA_DIR"); dir != "" {
		cfg.Storage.Dir = dir
	}
	if level := os.Getenv("MOODCLAW_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if timeout := os.Getenv("MOODCLAW_TIMEOUT_SECONDS"); timeout != "" {
		if parsed, err := strconv.Atoi(timeout); err == nil {
			cfg.Generation.TimeoutSeconds = parsed
		}
	}
	if rate := os.Getenv("MOODCLAW_ADAPTATION_RATE"); rate != "" {
		if parsed, err := strconv.ParseFloat(rate, 64); err == nil {
			cfg.Personality.AdaptationRate = parsed
		}
	}
	if rate := os.Getenv("MOODCLAW_REVERSION_RATE"); rate != "" {
		if parsed, err := strconv.ParseFloat(rate, 64); err == nil {
			cfg.Personality.ReversionRate = parsed
		}
	}
}

func providerIs(cfg *Config, name string) bool {
	t := strings.ToLower(strings.TrimSpace(cfg.Provider.Type))
	if t == "" {
		t = DefaultProvider
	}
	return t == name
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.Agent.Workspace == "" {
		cfg.Agent.Workspace = def.Agent.Workspace
	}
	if cfg.Agent.PersonaFile == "" {
		cfg.Agent.PersonaFile = DefaultPersonaFile
	}
	if cfg.Agent.PersonaDir == "" {
		cfg.Agent.PersonaDir = DefaultPersonaDir
	}
	if cfg.Provider.Type == "" {
		cfg.Provider.Type = DefaultProvider
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = DefaultModelFor(cfg.Provider.Type)
	}
	if cfg.Agent.MaxTokens <= 0 {
		cfg.Agent.MaxTokens = DefaultMaxTokens
	}
	if cfg.Gateway.MaxConcurrent <= 0 {
		cfg.Gateway.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.History.ChannelLines <= 0 {
		cfg.History.ChannelLines = DefaultChannelHistoryLines
	}
	if cfg.History.UserLines <= 0 {
		cfg.History.UserLines = DefaultUserHistoryLines
	}
	if cfg.Personality.AdaptationRate <= 0 {
		cfg.Personality.AdaptationRate = DefaultAdaptationRate
	}
	if cfg.Personality.ReversionRate < 0 {
		cfg.Personality.ReversionRate = DefaultReversionRate
	}
	if cfg.Personality.ModifierSpread <= 0 {
		cfg.Personality.ModifierSpread = DefaultModifierSpread
	}
	if cfg.Personality.InteractionLog <= 0 {
		cfg.Personality.InteractionLog = DefaultInteractionLog
	}
	if cfg.Generation.TimeoutSeconds <= 0 {
		cfg.Generation.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if cfg.Generation.DedupRetries < 0 {
		cfg.Generation.DedupRetries = DefaultDedupRetries
	}
	if cfg.Generation.BreakerFailures <= 0 {
		cfg.Generation.BreakerFailures = DefaultBreakerFailures
	}
	if cfg.Generation.BreakerCooldown <= 0 {
		cfg.Generation.BreakerCooldown = DefaultBreakerCooldown
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

// DefaultModelFor returns the model used when agent.model is left empty.
func DefaultModelFor(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "anthropic":
		return DefaultAnthropicModel
	case "openai":
		return DefaultOpenAIModel
	default:
		return DefaultGeminiModel
	}
}

// Validate reports configuration problems that must stop the gateway from
// starting. Persona text is checked separately because it lives in the
// workspace, not in this file.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Provider.Type) {
	case "gemini", "anthropic", "openai":
	default:
		errs = append(errs, fmt.Errorf("unknown provider type %q", c.Provider.Type))
	}
	if strings.TrimSpace(c.Provider.APIKey) == "" {
		errs = append(errs, errors.New("API key not set. Run 'moodclaw onboard' or set MOODCLAW_API_KEY / GEMINI_API_KEY"))
	}
	if c.Channels.Telegram.Enabled && strings.TrimSpace(c.Channels.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram is enabled but no token is set (MOODCLAW_TELEGRAM_TOKEN)"))
	}
	return errors.Join(errs...)
}

func SaveConfig(cfg *Config) error {
	if err := fileutil.WriteJSONFileAtomic(ConfigPath(), cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}
