// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Provider kinds understood by the transport layer
const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindOllama    = "ollama"
)

const appName = "openai-cli"

type ProviderConfig struct {
	Kind         string `yaml:"kind"`
	Enabled      bool   `yaml:"enabled"`
	BaseURL      string `yaml:"base_url,omitempty"`
	APIKey       string `yaml:"api_key,omitempty"`
	DefaultModel string `yaml:"default_model,omitempty"`
}

// Usable reports whether the provider can be registered for requests.
// Ollama runs locally and needs no key.
func (p ProviderConfig) Usable() bool {
	if !p.Enabled {
		return false
	}
	return p.Kind == KindOllama || p.APIKey != ""
}

type Config struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
	Defaults  struct {
		Provider       string `yaml:"provider"`
		Model          string `yaml:"model,omitempty"`
		SystemPrompt   string `yaml:"system_prompt,omitempty"`
		RequestTimeout int    `yaml:"request_timeout"` // seconds, connect + response headers only
	} `yaml:"defaults"`
	UI struct {
		RenderMarkdown bool `yaml:"render_markdown"`
		Spinner        bool `yaml:"spinner"`
		Color          bool `yaml:"color"`
	} `yaml:"ui"`
	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file,omitempty"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
	} `yaml:"logging"`
	Telemetry struct {
		Enabled bool   `yaml:"enabled"`
		Dir     string `yaml:"dir,omitempty"`
	} `yaml:"telemetry"`
	Database struct {
		Path string `yaml:"path,omitempty"`
	} `yaml:"database"`
	// Hooks receive batch events as JSON posts. Empty disables them.
	Hooks struct {
		URL string `yaml:"url,omitempty"`
	} `yaml:"hooks"`
}

// Load reads the config file from the user config directory.
// A missing file yields the defaults.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config file at path, expanding environment variables.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Providers = map[string]ProviderConfig{
		"openai": {
			Kind:         KindOpenAI,
			Enabled:      true,
			BaseURL:      "https://api.openai.com/v1",
			APIKey:       os.Getenv("OPENAI_API_KEY"),
			DefaultModel: "gpt-4o-mini",
		},
		"anthropic": {
			Kind:         KindAnthropic,
			Enabled:      true,
			BaseURL:      "https://api.anthropic.com",
			APIKey:       os.Getenv("ANTHROPIC_API_KEY"),
			DefaultModel: "claude-3-5-haiku-latest",
		},
		"deepseek": {
			Kind:         KindOpenAI,
			Enabled:      true,
			BaseURL:      "https://api.deepseek.com/v1",
			APIKey:       os.Getenv("DEEPSEEK_API_KEY"),
			DefaultModel: "deepseek-chat",
		},
		"openrouter": {
			Kind:         KindOpenAI,
			Enabled:      true,
			BaseURL:      "https://openrouter.ai/api/v1",
			APIKey:       os.Getenv("OPENROUTER_API_KEY"),
			DefaultModel: "openai/gpt-4o-mini",
		},
		"ollama": {
			Kind:         KindOllama,
			Enabled:      false,
			BaseURL:      "http://localhost:11434/v1",
			DefaultModel: "llama3",
		},
	}
	cfg.Defaults.Provider = "openai"
	cfg.Defaults.SystemPrompt = "Be precise and concise."
	cfg.Defaults.RequestTimeout = 30
	cfg.UI.RenderMarkdown = false
	cfg.UI.Spinner = true
	cfg.UI.Color = true
	cfg.Logging.Level = "info"
	cfg.Logging.MaxSizeMB = 10
	cfg.Logging.MaxBackups = 3
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}
	for name, p := range cfg.Providers {
		if p.Kind == "" {
			p.Kind = KindOpenAI
		}
		cfg.Providers[name] = p
	}
	if cfg.Defaults.Provider == "" {
		names := cfg.ProviderNames()
		if len(names) > 0 {
			cfg.Defaults.Provider = names[0]
		}
	}
	if cfg.Defaults.RequestTimeout == 0 {
		cfg.Defaults.RequestTimeout = 30
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 10
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 3
	}
}

// Validate checks the provider table for unknown kinds and a dangling
// default, and the hook URL if one is set.
func (c *Config) Validate() error {
	for _, name := range c.ProviderNames() {
		switch kind := c.Providers[name].Kind; kind {
		case KindOpenAI, KindAnthropic, KindOllama:
		default:
			return fmt.Errorf("provider %q: unknown kind %q", name, kind)
		}
	}
	if _, ok := c.Providers[c.Defaults.Provider]; !ok {
		return fmt.Errorf("default provider %q is not configured", c.Defaults.Provider)
	}
	if c.Hooks.URL != "" {
		u, err := url.Parse(c.Hooks.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("hooks.url %q is not an http(s) URL", c.Hooks.URL)
		}
	}
	return nil
}

// ProviderNames returns configured provider names in stable order.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ConfigPath() string {
	return filepath.Join(userDir("XDG_CONFIG_HOME", ".config"), appName, "config.yaml")
}

// DataDir holds the command catalog database and saved transcripts.
func DataDir() string {
	return filepath.Join(userDir("XDG_DATA_HOME", filepath.Join(".local", "share")), appName)
}

// StateDir holds logs and telemetry output.
func StateDir() string {
	return filepath.Join(userDir("XDG_STATE_HOME", filepath.Join(".local", "state")), appName)
}

func userDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.ExpandEnv("$HOME")
	}
	return filepath.Join(home, fallback)
}
