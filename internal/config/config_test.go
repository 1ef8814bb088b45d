package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
base-url: "http://localhost:8317"
web-url: "http://localhost:3000"
auth-store: "` + filepath.Join(dir, "session.db") + `"
debug: true
request-timeout: 5
sandbox:
  port: 9000
  access-token-ttl: 60
  users:
    - email: "dev@crewdesk.local"
      password: "devpass"
      name: "Dev"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "http://localhost:8317" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if !cfg.Debug {
		t.Error("Debug not set")
	}
	if cfg.RequestTimeout != 5 {
		t.Errorf("RequestTimeout = %d", cfg.RequestTimeout)
	}
	if cfg.Sandbox.Port != 9000 || cfg.Sandbox.AccessTokenTTL != 60 {
		t.Errorf("Sandbox = %+v", cfg.Sandbox)
	}
	if len(cfg.Sandbox.Users) != 1 || cfg.Sandbox.Users[0].Email != "dev@crewdesk.local" {
		t.Errorf("Sandbox.Users = %+v", cfg.Sandbox.Users)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("debug: false\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL == "" || cfg.WebURL == "" || cfg.AuthStore == "" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.RequestTimeout <= 0 || cfg.Sandbox.Port <= 0 || cfg.Sandbox.AccessTokenTTL <= 0 {
		t.Errorf("numeric defaults not applied: %+v", cfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("base-url: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}

func TestExpandHome(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}

	got, err := ExpandHome("~/x/y.db")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got != filepath.Join(home, "x", "y.db") {
		t.Errorf("ExpandHome = %q", got)
	}

	unchanged, err := ExpandHome("/abs/path.db")
	if err != nil {
		t.Fatalf("expand abs: %v", err)
	}
	if unchanged != "/abs/path.db" {
		t.Errorf("absolute path changed: %q", unchanged)
	}
}
