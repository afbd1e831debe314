// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultRootsUnderProject(t *testing.T) {
	cfg := Default("/work/repo")

	if cfg.Paths.Root != "/work/repo/.toolgate" {
		t.Errorf("root = %q", cfg.Paths.Root)
	}
	for name, path := range map[string]string{
		"key_file":         cfg.Paths.KeyFile,
		"policy_file":      cfg.Paths.PolicyFile,
		"ledger_file":      cfg.Paths.LedgerFile,
		"credentials_file": cfg.Paths.CredentialsFile,
	} {
		if !strings.HasPrefix(path, cfg.Paths.Root+string(filepath.Separator)) {
			t.Errorf("%s = %q, not under root", name, path)
		}
	}
	if cfg.Ledger.Backend != BackendFile {
		t.Errorf("backend = %q, want file", cfg.Ledger.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadWithoutConfigVarUsesDefaults(t *testing.T) {
	t.Setenv("TOOLGATE_CONFIG", "")

	cfg, err := Load("/work/repo")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Paths.Root != "/work/repo/.toolgate" {
		t.Errorf("root = %q", cfg.Paths.Root)
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolgate.yaml")
	content := `
paths:
  root: /var/lib/toolgate
  ledger_file: ${TOOLGATE_ROOT}/approvals.db
ledger:
  backend: sqlite
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFile(path, "/work/repo")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.Root != "/var/lib/toolgate" {
		t.Errorf("root = %q", cfg.Paths.Root)
	}
	if cfg.Paths.LedgerFile != "/var/lib/toolgate/approvals.db" {
		t.Errorf("ledger_file = %q, ${TOOLGATE_ROOT} not expanded", cfg.Paths.LedgerFile)
	}
	// Unset fields keep their defaults, computed from the original
	// project root.
	if cfg.Paths.KeyFile != "/work/repo/.toolgate/protection.key" {
		t.Errorf("key_file = %q", cfg.Paths.KeyFile)
	}
	if cfg.Ledger.Backend != BackendSQLite {
		t.Errorf("backend = %q", cfg.Ledger.Backend)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadFileRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"backend", "ledger:\n  backend: redis\n", "ledger.backend"},
		{"level", "logging:\n  level: verbose\n", "logging.level"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "toolgate.yaml")
			if err := os.WriteFile(path, []byte(test.content), 0o600); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			_, err := LoadFile(path, "/work/repo")
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("err = %v, want mention of %s", err, test.want)
			}
		})
	}
}

func TestExpandVarsDefaults(t *testing.T) {
	got := expandVars("${TOOLGATE_MISSING_VAR:-/fallback}/state", nil)
	if got != "/fallback/state" {
		t.Errorf("expandVars = %q", got)
	}
}
