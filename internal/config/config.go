package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models payline.yml.
type Config struct {
	Ledger struct {
		Companies    []string `yaml:"companies"`
		MaxAmount    string   `yaml:"max_amount"`
		LookbackDays int      `yaml:"lookback_days"`
	} `yaml:"ledger"`
	Matching struct {
		ToleranceThreshold string  `yaml:"tolerance_threshold"`
		ToleranceRatio     float64 `yaml:"tolerance_ratio"`
	} `yaml:"matching"`
	Auth struct {
		Admins    []string `yaml:"admins"`
		JWTSecret string   `yaml:"jwt_secret"`
	} `yaml:"auth"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Ledger.Companies) == 0 {
		return fmt.Errorf("config.ledger.companies is required")
	}
	for _, company := range c.Ledger.Companies {
		if strings.TrimSpace(company) == "" {
			return fmt.Errorf("config.ledger.companies contains an empty entry")
		}
	}
	if c.Ledger.MaxAmount == "" {
		return fmt.Errorf("config.ledger.max_amount is required")
	}
	if c.Ledger.LookbackDays <= 0 {
		return fmt.Errorf("config.ledger.lookback_days must be positive")
	}
	if c.Matching.ToleranceThreshold == "" {
		return fmt.Errorf("config.matching.tolerance_threshold is required")
	}
	if c.Matching.ToleranceRatio <= 0 || c.Matching.ToleranceRatio >= 1 {
		return fmt.Errorf("config.matching.tolerance_ratio must be in (0,1)")
	}
	return nil
}

// IsAdmin reports whether the user holds the admin role per config.
func (c *Config) IsAdmin(user string) bool {
	for _, a := range c.Auth.Admins {
		if a == user {
			return true
		}
	}
	return false
}

// AllowedCompany reports whether company (normalized upper) is configured.
func (c *Config) AllowedCompany(company string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(company))
	for _, allowed := range c.Ledger.Companies {
		if strings.ToUpper(allowed) == normalized {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "payline.yml")
}

// Load reads and validates config from workspace, falling back to
// defaults when no file exists.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `ledger:
  companies: [SALAM, MVNO]
  max_amount: "1000000"
  lookback_days: 365

matching:
  tolerance_threshold: "15000"
  tolerance_ratio: 0.01

auth:
  admins: []
  jwt_secret: ""
`
