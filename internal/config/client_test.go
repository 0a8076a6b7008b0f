// ABOUTME: Tests for client configuration loading
// ABOUTME: Covers TOML files, .env files, environment overrides, validation, and saving

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearClientEnv unsets client variables for the test and again afterwards,
// since .env loading writes to the process environment.
func clearClientEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"SKETCHBOOK_SERVER", "SKETCHBOOK_TOKEN", "SKETCHBOOK_TIMEOUT",
		"SKETCHBOOK_EXPORT_DIR", "SKETCHBOOK_EXPORT_WIDTH",
		"SKETCHBOOK_LOG_LEVEL", "SKETCHBOOK_LOG_FORMAT",
	}
	for _, k := range keys {
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadClient_Defaults(t *testing.T) {
	clearClientEnv(t)

	cfg, err := LoadClient(filepath.Join(t.TempDir(), "missing.toml"), noEnvFile(t))
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}

	if cfg.Gateway.URL != DefaultServerURL {
		t.Errorf("Gateway.URL = %q, want %q", cfg.Gateway.URL, DefaultServerURL)
	}
	if cfg.Gateway.Timeout != 2*time.Minute {
		t.Errorf("Gateway.Timeout = %v, want %v", cfg.Gateway.Timeout, 2*time.Minute)
	}
	if cfg.Export.Dir == "" {
		t.Error("Export.Dir is empty, want a default directory")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}
}

func TestLoadClient_TOMLFile(t *testing.T) {
	clearClientEnv(t)
	t.Setenv("TEST_SKETCH_TOKEN", "tok-from-env")

	path := filepath.Join(t.TempDir(), "client.toml")
	content := `
[gateway]
url = "https://sketch.example.com"
token = "${TEST_SKETCH_TOKEN}"
timeout = "30s"

[export]
dir = "/tmp/exports"
width = 900

[logging]
level = "debug"
format = "json"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadClient(path, noEnvFile(t))
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}

	if cfg.Gateway.URL != "https://sketch.example.com" {
		t.Errorf("Gateway.URL = %q", cfg.Gateway.URL)
	}
	if cfg.Gateway.Token != "tok-from-env" {
		t.Errorf("Gateway.Token = %q, want %q", cfg.Gateway.Token, "tok-from-env")
	}
	if cfg.Gateway.Timeout != 30*time.Second {
		t.Errorf("Gateway.Timeout = %v, want %v", cfg.Gateway.Timeout, 30*time.Second)
	}
	if cfg.Export.Dir != "/tmp/exports" || cfg.Export.Width != 900 {
		t.Errorf("Export = %+v", cfg.Export)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadClient_EnvOverridesFile(t *testing.T) {
	clearClientEnv(t)

	path := filepath.Join(t.TempDir(), "client.toml")
	if err := os.WriteFile(path, []byte("[gateway]\nurl = \"http://file:8080\"\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("SKETCHBOOK_SERVER", "http://env:9090")
	t.Setenv("SKETCHBOOK_TIMEOUT", "5s")
	t.Setenv("SKETCHBOOK_EXPORT_WIDTH", "640")

	cfg, err := LoadClient(path, noEnvFile(t))
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}

	if cfg.Gateway.URL != "http://env:9090" {
		t.Errorf("Gateway.URL = %q, want env value", cfg.Gateway.URL)
	}
	if cfg.Gateway.Timeout != 5*time.Second {
		t.Errorf("Gateway.Timeout = %v, want %v", cfg.Gateway.Timeout, 5*time.Second)
	}
	if cfg.Export.Width != 640 {
		t.Errorf("Export.Width = %d, want %d", cfg.Export.Width, 640)
	}
}

func TestLoadClient_DotEnvFile(t *testing.T) {
	clearClientEnv(t)

	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte("SKETCHBOOK_TOKEN=dotenv-token\nSKETCHBOOK_LOG_LEVEL=error\n"), 0644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	cfg, err := LoadClient("", envPath)
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}

	if cfg.Gateway.Token != "dotenv-token" {
		t.Errorf("Gateway.Token = %q, want %q", cfg.Gateway.Token, "dotenv-token")
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "error")
	}
}

func TestLoadClient_Invalid(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		wantErrSubstr string
	}{
		{
			name:          "bad scheme",
			content:       "[gateway]\nurl = \"ftp://example.com\"\n",
			wantErrSubstr: "http or https",
		},
		{
			name:          "bad timeout",
			content:       "[gateway]\ntimeout = \"soon\"\n",
			wantErrSubstr: "gateway.timeout",
		},
		{
			name:          "negative width",
			content:       "[export]\nwidth = -1\n",
			wantErrSubstr: "export.width",
		},
		{
			name:          "invalid toml",
			content:       "[gateway\nurl = ",
			wantErrSubstr: "parsing config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearClientEnv(t)
			path := filepath.Join(t.TempDir(), "client.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			_, err := LoadClient(path, noEnvFile(t))
			if err == nil {
				t.Fatalf("LoadClient() expected error containing %q, got nil", tt.wantErrSubstr)
			}
			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("LoadClient() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
			}
		})
	}
}

func TestSaveClient_RoundTrip(t *testing.T) {
	clearClientEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "client.toml")
	cfg := ClientDefaults()
	cfg.Gateway.URL = "https://sketch.example.com"
	cfg.Gateway.Token = "saved-token"
	cfg.Gateway.Timeout = 45 * time.Second
	cfg.Export.Dir = "/tmp/out"

	if err := SaveClient(path, cfg); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat saved config: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadClient(path, noEnvFile(t))
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if loaded.Gateway.URL != cfg.Gateway.URL || loaded.Gateway.Token != cfg.Gateway.Token {
		t.Errorf("Gateway = %+v, want %+v", loaded.Gateway, cfg.Gateway)
	}
	if loaded.Gateway.Timeout != 45*time.Second {
		t.Errorf("Gateway.Timeout = %v, want %v", loaded.Gateway.Timeout, 45*time.Second)
	}
	if loaded.Export.Dir != "/tmp/out" {
		t.Errorf("Export.Dir = %q, want %q", loaded.Export.Dir, "/tmp/out")
	}
}

func TestClientConfigPath(t *testing.T) {
	t.Setenv("SKETCHBOOK_CONFIG", "/custom/client.toml")
	if got := ClientConfigPath(); got != "/custom/client.toml" {
		t.Errorf("ClientConfigPath() = %q, want env override", got)
	}

	t.Setenv("SKETCHBOOK_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got, want := ClientConfigPath(), filepath.Join("/xdg", "sketchbook", "client.toml"); got != want {
		t.Errorf("ClientConfigPath() = %q, want %q", got, want)
	}
}
