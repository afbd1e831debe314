// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Ledger backends.
const (
	// BackendFile stores approvals in a single JSON file.
	BackendFile = "file"

	// BackendSQLite stores approvals in a SQLite database.
	BackendSQLite = "sqlite"
)

// Config is the master configuration for Toolgate.
type Config struct {
	// Paths configures file locations.
	Paths PathsConfig `yaml:"paths"`

	// Ledger configures the approval ledger.
	Ledger LedgerConfig `yaml:"ledger"`

	// Logging configures diagnostic output.
	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig configures file locations. All of them default to
// living under Root.
type PathsConfig struct {
	// Root is the base directory for Toolgate state, normally
	// <project>/.toolgate.
	Root string `yaml:"root"`

	// KeyFile is the protection key location.
	KeyFile string `yaml:"key_file"`

	// PolicyFile is the protection policy document (JSONC).
	PolicyFile string `yaml:"policy_file"`

	// LedgerFile is the approval ledger location. Its extension does
	// not matter; the ledger backend decides the format.
	LedgerFile string `yaml:"ledger_file"`

	// CredentialsFile is the key=value credential file, which may
	// hold ENC[...] values.
	CredentialsFile string `yaml:"credentials_file"`
}

// LedgerConfig configures the approval ledger.
type LedgerConfig struct {
	// Backend selects the store: "file" or "sqlite".
	// Default: file.
	Backend string `yaml:"backend"`
}

// LoggingConfig configures diagnostic output.
type LoggingConfig struct {
	// Level is the minimum slog level: debug, info, warn, error.
	// Default: info.
	Level string `yaml:"level"`
}

// Default returns the configuration rooted at projectRoot/.toolgate.
func Default(projectRoot string) *Config {
	root := filepath.Join(projectRoot, ".toolgate")
	return &Config{
		Paths: PathsConfig{
			Root:            root,
			KeyFile:         filepath.Join(root, "protection.key"),
			PolicyFile:      filepath.Join(root, "policy.jsonc"),
			LedgerFile:      filepath.Join(root, "approvals.json"),
			CredentialsFile: filepath.Join(root, "credentials.env"),
		},
		Ledger: LedgerConfig{
			Backend: BackendFile,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the TOOLGATE_CONFIG environment
// variable when set, and falls back to Default(projectRoot)
// otherwise. The gate binaries run inside agent environments where a
// config file is the exception, not the rule.
func Load(projectRoot string) (*Config, error) {
	configPath := os.Getenv("TOOLGATE_CONFIG")
	if configPath == "" {
		return Default(projectRoot), nil
	}
	return LoadFile(configPath, projectRoot)
}

// LoadFile loads configuration from a specific file path, merging
// over Default(projectRoot).
func LoadFile(path, projectRoot string) (*Config, error) {
	cfg := Default(projectRoot)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// expandVariables expands ${VAR} patterns in paths. TOOLGATE_ROOT
// refers to the configured root so dependent paths can be written
// relative to it.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"TOOLGATE_ROOT": c.Paths.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["TOOLGATE_ROOT"] = c.Paths.Root

	c.Paths.KeyFile = expandVars(c.Paths.KeyFile, vars)
	c.Paths.PolicyFile = expandVars(c.Paths.PolicyFile, vars)
	c.Paths.LedgerFile = expandVars(c.Paths.LedgerFile, vars)
	c.Paths.CredentialsFile = expandVars(c.Paths.CredentialsFile, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.KeyFile == "" {
		errs = append(errs, fmt.Errorf("paths.key_file is required"))
	}
	if c.Paths.PolicyFile == "" {
		errs = append(errs, fmt.Errorf("paths.policy_file is required"))
	}
	if c.Paths.LedgerFile == "" {
		errs = append(errs, fmt.Errorf("paths.ledger_file is required"))
	}

	if c.Ledger.Backend != BackendFile && c.Ledger.Backend != BackendSQLite {
		errs = append(errs, fmt.Errorf("ledger.backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Ledger.Backend))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
