package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Workspace string        `json:"workspace" env:"KISSAN_WORKSPACE"`
	LogLevel  string        `json:"log_level" env:"KISSAN_LOG_LEVEL"`
	LogFile   string        `json:"log_file" env:"KISSAN_LOG_FILE"`
	Advisor   AdvisorConfig `json:"advisor"`
	Speech    SpeechConfig  `json:"speech"`
	Chat      ChatConfig    `json:"chat"`
}

type AdvisorConfig struct {
	Provider         string `json:"provider" env:"KISSAN_ADVISOR_PROVIDER"` // anthropic, openai or mock
	Model            string `json:"model" env:"KISSAN_ADVISOR_MODEL"`
	AnthropicAPIKey  string `json:"anthropic_api_key" env:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL string `json:"anthropic_base_url" env:"KISSAN_ANTHROPIC_BASE_URL"`
	OpenAIAPIKey     string `json:"openai_api_key" env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `json:"openai_base_url" env:"KISSAN_OPENAI_BASE_URL"`
	Fallback         string `json:"fallback" env:"KISSAN_ADVISOR_FALLBACK"`
	FallbackModel    string `json:"fallback_model" env:"KISSAN_ADVISOR_FALLBACK_MODEL"`
	TimeoutSeconds   int    `json:"timeout_seconds" env:"KISSAN_ADVISOR_TIMEOUT"`
}

type SpeechConfig struct {
	Enabled        bool     `json:"enabled" env:"KISSAN_SPEECH_ENABLED"`
	ServerURL      string   `json:"server_url" env:"KISSAN_SPEECH_URL"`
	CaptureCommand []string `json:"capture_command" env:"KISSAN_SPEECH_CAPTURE" envSeparator:" "`
	SampleRate     int      `json:"sample_rate" env:"KISSAN_SPEECH_SAMPLE_RATE"`
	NoticeSeconds  int      `json:"notice_seconds" env:"KISSAN_SPEECH_NOTICE_SECONDS"`
}

type ChatConfig struct {
	Language string `json:"language" env:"KISSAN_LANGUAGE"`
}

func DefaultConfig() *Config {
	return &Config{
		Workspace: "~/.kissan/workspace",
		LogLevel:  "info",
		Advisor: AdvisorConfig{
			Provider:       "anthropic",
			TimeoutSeconds: 60,
		},
		Speech: SpeechConfig{
			Enabled:        false,
			ServerURL:      "ws://localhost:2700",
			CaptureCommand: []string{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "raw"},
			SampleRate:     16000,
			NoticeSeconds:  4,
		},
		Chat: ChatConfig{
			Language: "Urdu",
		},
	}
}

// DefaultPath is ~/.kissan/config.json.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".kissan", "config.json")
}

// LoadConfig reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Advisor.Provider {
	case "anthropic", "claude", "openai", "mock":
	default:
		return fmt.Errorf("unknown advisor provider %q", c.Advisor.Provider)
	}
	switch c.Advisor.Fallback {
	case "", "anthropic", "claude", "openai", "mock":
	default:
		return fmt.Errorf("unknown fallback provider %q", c.Advisor.Fallback)
	}
	if c.Advisor.TimeoutSeconds <= 0 {
		return fmt.Errorf("advisor timeout_seconds must be positive, got %d", c.Advisor.TimeoutSeconds)
	}
	if c.Speech.Enabled && c.Speech.ServerURL == "" {
		return fmt.Errorf("speech is enabled but server_url is empty")
	}
	return nil
}

// SaveConfig writes cfg as indented JSON, creating the parent directory.
func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// WorkspacePath returns the workspace with a leading ~ expanded.
func (c *Config) WorkspacePath() string {
	return expandHome(c.Workspace)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
