package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"bossline/internal/domain"
)

// Config models bossline.yml.
type Config struct {
	APIBase        string `yaml:"api_base"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	DefaultIntent  string `yaml:"default_intent"`
	HistoryKeep    int    `yaml:"history_keep"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run bossline init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.APIBase == "" {
		return fmt.Errorf("config.api_base is required")
	}
	u, err := url.Parse(c.APIBase)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("config.api_base must be an http(s) URL, got %q", c.APIBase)
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("config.timeout_seconds must be positive")
	}
	if !domain.Intent(c.DefaultIntent).Valid() {
		return fmt.Errorf("config.default_intent must be one of design|impl_plan|risk|qa, got %q", c.DefaultIntent)
	}
	if c.HistoryKeep < 0 {
		return fmt.Errorf("config.history_keep must not be negative")
	}
	return nil
}

// Save writes the config to the workspace, creating or replacing
// bossline.yml.
func (c *Config) Save(workspace string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(Path(workspace), data, 0o644)
}

// Timeout returns the transport timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Intent returns the configured default intent.
func (c *Config) Intent() domain.Intent {
	return domain.Intent(c.DefaultIntent)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "bossline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `# Boss API endpoint the client talks to.
api_base: http://127.0.0.1:8000

# Timeout in seconds applied by the HTTP transport.
timeout_seconds: 30

# Intent used when a question does not name one: design | impl_plan | risk | qa.
default_intent: impl_plan

# Ask journal entries kept after pruning. 0 keeps everything.
history_keep: 200
`
