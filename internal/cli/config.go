package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file.
const (
	EnvBaseURL = "LOANRULES_BASE_URL"
	EnvAPIKey  = "LOANRULES_API_KEY"
	EnvOrgID   = "LOANRULES_ORG_ID"
)

// Config represents the CLI configuration
type Config struct {
	DefaultProfile string             `yaml:"default_profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile holds the connection settings for one server and organization.
type Profile struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key,omitempty"`
	OrgID   string `yaml:"org_id"`
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".loanrules", "config.yaml"), nil
}

// LoadConfig loads the configuration file. A missing file yields an empty config.
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{
				DefaultProfile: "local",
				Profiles:       make(map[string]Profile),
			}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}
	return &cfg, nil
}

// SaveConfig saves the configuration to file
func SaveConfig(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ResolveProfile merges connection settings.
// Priority: command flags > environment variables > config file.
// An empty name selects the file's default profile; a profile that is not in
// the file is fine as long as flags or env vars supply base URL and org.
func ResolveProfile(name string, flags Profile) (*Profile, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = cfg.DefaultProfile
	}

	p := cfg.Profiles[name]
	override(&p.BaseURL, flags.BaseURL, os.Getenv(EnvBaseURL))
	override(&p.APIKey, flags.APIKey, os.Getenv(EnvAPIKey))
	override(&p.OrgID, flags.OrgID, os.Getenv(EnvOrgID))

	if p.BaseURL == "" {
		return nil, fmt.Errorf("base URL not set for profile '%s' (use --base-url or %s)", name, EnvBaseURL)
	}
	if p.OrgID == "" {
		return nil, fmt.Errorf("organization not set for profile '%s' (use --org or %s)", name, EnvOrgID)
	}
	return &p, nil
}

func override(dst *string, flag, env string) {
	switch {
	case flag != "":
		*dst = flag
	case env != "":
		*dst = env
	}
}

// InitConfig creates a default config file
func InitConfig() error {
	cfg := &Config{
		DefaultProfile: "local",
		Profiles: map[string]Profile{
			"local": {
				BaseURL: "http://localhost:8080",
				APIKey:  "admin-123",
				OrgID:   "demo",
			},
			"prod": {
				BaseURL: "https://loanrules.example.com",
				OrgID:   "acme",
			},
		},
	}
	return SaveConfig(cfg)
}
