// Package config loads gatekeep configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jg-phare/gatekeep/pkg/logging"
	"github.com/jg-phare/gatekeep/pkg/permission"
)

// Selector providers.
const (
	SelectorLLM    = "llm"
	SelectorGemini = "gemini"
)

// Config is the root configuration.
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Selector   SelectorConfig   `yaml:"selector"`
	Store      StoreConfig      `yaml:"store"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Session    SessionConfig    `yaml:"session"`
	Permission PermissionConfig `yaml:"permission"`
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
	Wallet     WalletConfig     `yaml:"wallet"`
}

// LLMConfig configures the OpenAI-compatible chat model.
type LLMConfig struct {
	BaseURL     string   `yaml:"base_url"`
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	Timeout     string   `yaml:"timeout"`
	MaxRetries  int      `yaml:"max_retries"`

	// ContextLimit overrides the context window looked up by model name.
	ContextLimit int `yaml:"context_limit,omitempty"`
}

// SelectorConfig configures the tool orchestrator.
type SelectorConfig struct {
	Provider      string `yaml:"provider"` // "llm" or "gemini"
	Model         string `yaml:"model"`    // empty uses the provider default
	APIKey        string `yaml:"api_key"`  // gemini only
	BaseURL       string `yaml:"base_url"` // gemini only
	Timeout       string `yaml:"timeout"`
	HistoryWindow int    `yaml:"history_window"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type TranscriptConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// SessionConfig bounds a single chat turn.
type SessionConfig struct {
	MaxSteps     int    `yaml:"max_steps"`
	ModelTimeout string `yaml:"model_timeout"`
	ToolTimeout  string `yaml:"tool_timeout"`
}

// PermissionConfig is the layered tool policy.
type PermissionConfig struct {
	Mode          string            `yaml:"mode"`
	DisabledTools []string          `yaml:"disabled_tools"`
	Rules         []permission.Rule `yaml:"rules"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxConnections int    `yaml:"max_connections"` // zero means unlimited
}

// WalletConfig seeds the in-memory wallet. Balances are keyed by token
// symbol or mint.
type WalletConfig struct {
	Address  string             `yaml:"address"`
	Balances map[string]float64 `yaml:"balances"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".gatekeep")
	return &Config{
		LLM: LLMConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			MaxTokens:  4096,
			Timeout:    "120s",
			MaxRetries: 3,
		},
		Selector: SelectorConfig{
			Provider:      SelectorLLM,
			Timeout:       "20s",
			HistoryWindow: 12,
		},
		Store: StoreConfig{
			Path: filepath.Join(dataDir, "gatekeep.db"),
		},
		Transcript: TranscriptConfig{
			Enabled: true,
			Dir:     filepath.Join(dataDir, "transcripts"),
		},
		Session: SessionConfig{
			MaxSteps:     5,
			ModelTimeout: "90s",
			ToolTimeout:  "30s",
		},
		Permission: PermissionConfig{
			Mode: string(permission.ModeDefault),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8787",
			MaxConnections: 64,
		},
		Wallet: WalletConfig{
			Address:  "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
			Balances: map[string]float64{"SOL": 10, "USDC": 250},
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GATEKEEP_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("GATEKEEP_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("GATEKEEP_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Selector.APIKey = key
	}
}

// Validate checks values that would otherwise fail later at wiring time.
func (c *Config) Validate() error {
	switch c.Selector.Provider {
	case "", SelectorLLM, SelectorGemini:
	default:
		return fmt.Errorf("config: unknown selector provider %q", c.Selector.Provider)
	}
	if _, err := permission.ParseMode(c.Permission.Mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for name, v := range map[string]string{
		"llm.timeout":           c.LLM.Timeout,
		"selector.timeout":      c.Selector.Timeout,
		"session.model_timeout": c.Session.ModelTimeout,
		"session.tool_timeout":  c.Session.ToolTimeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// PermissionMode returns the parsed permission mode.
func (c *Config) PermissionMode() permission.Mode {
	m, err := permission.ParseMode(c.Permission.Mode)
	if err != nil {
		return permission.ModeDefault
	}
	return m
}

// GetLLMTimeout returns the HTTP timeout for model requests.
func (c *Config) GetLLMTimeout() time.Duration {
	return duration(c.LLM.Timeout, 120*time.Second)
}

// GetSelectorTimeout returns the per-turn tool selection timeout.
func (c *Config) GetSelectorTimeout() time.Duration {
	return duration(c.Selector.Timeout, 20*time.Second)
}

// GetModelTimeout returns the per-call model timeout inside a turn.
func (c *Config) GetModelTimeout() time.Duration {
	return duration(c.Session.ModelTimeout, 90*time.Second)
}

// GetToolTimeout returns the per-invocation tool timeout.
func (c *Config) GetToolTimeout() time.Duration {
	return duration(c.Session.ToolTimeout, 30*time.Second)
}

func duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
