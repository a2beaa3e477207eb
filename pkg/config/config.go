// Package config loads the backup configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the ghmirror configuration. The file is JSON by
// default; a .yaml or .yml extension selects YAML. Loaded once and
// immutable for the run.
type Config struct {
	// Token authenticates API requests and git fetches. May be left empty
	// in the file and supplied via GITHUB_TOKEN or an interactive prompt.
	Token string `json:"token" yaml:"token"`

	// Directory is the destination root for all mirrors. Supports
	// home-directory expansion.
	Directory string `json:"directory" yaml:"directory"`

	// Owners is an optional allowlist; when set, repositories of other
	// owners are skipped.
	Owners []string `json:"owners,omitempty" yaml:"owners,omitempty"`
}

// LoadFromPath loads and validates no further than decoding; call Validate
// before use. The Directory field is home-expanded on load.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	dir, err := expandHome(cfg.Directory)
	if err != nil {
		return nil, err
	}
	cfg.Directory = dir

	return &cfg, nil
}

// SaveToPath writes the configuration, creating missing parent
// directories. The format follows the extension like LoadFromPath.
func (c *Config) SaveToPath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultPath returns the default configuration file path.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".ghmirror", "config.json"), nil
}

// Validate checks that the configuration is complete enough to start a
// run. Missing token or directory is a fatal startup error.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("token is required: set it in the config file or the GITHUB_TOKEN environment variable")
	}
	if c.Directory == "" {
		return fmt.Errorf("directory is required")
	}
	return nil
}

// OwnerAllowed reports whether repositories of owner should be mirrored.
// An empty allowlist admits every owner.
func (c *Config) OwnerAllowed(owner string) bool {
	if len(c.Owners) == 0 {
		return true
	}
	for _, o := range c.Owners {
		if o == owner {
			return true
		}
	}
	return false
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	if path == "~" {
		return homeDir, nil
	}
	return filepath.Join(homeDir, path[2:]), nil
}
