// ABOUTME: Configuration loading for the sketchbook client
// ABOUTME: Layers defaults, a TOML file with ${VAR} expansion, .env files, and environment overrides

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// DefaultServerURL is used when no gateway URL is configured.
const DefaultServerURL = "http://localhost:8080"

// ClientConfig represents the sketchbook client configuration
type ClientConfig struct {
	Gateway ClientGatewayConfig `toml:"gateway"`
	Export  ExportConfig        `toml:"export"`
	Logging LoggingConfig       `toml:"logging"`
}

// ClientGatewayConfig says where the generation service is and how to reach it
type ClientGatewayConfig struct {
	URL     string        `toml:"url" env:"SKETCHBOOK_SERVER"`
	Token   string        `toml:"token" env:"SKETCHBOOK_TOKEN"`
	Timeout time.Duration `toml:"-" env:"SKETCHBOOK_TIMEOUT"`

	TimeoutRaw string `toml:"timeout,omitempty"`
}

// ExportConfig holds export destination settings
type ExportConfig struct {
	Dir   string `toml:"dir" env:"SKETCHBOOK_EXPORT_DIR"`
	Width int    `toml:"width,omitempty" env:"SKETCHBOOK_EXPORT_WIDTH"`
}

// ClientConfigPath returns the path to the client config file.
// Priority: SKETCHBOOK_CONFIG env var > XDG_CONFIG_HOME/sketchbook/client.toml > ~/.config/sketchbook/client.toml
func ClientConfigPath() string {
	if envPath := os.Getenv("SKETCHBOOK_CONFIG"); envPath != "" {
		return envPath
	}
	return filepath.Join(configDir(), "client.toml")
}

// ClientDefaults returns a configuration with default values.
func ClientDefaults() *ClientConfig {
	return &ClientConfig{
		Gateway: ClientGatewayConfig{
			URL:     DefaultServerURL,
			Timeout: 2 * time.Minute,
		},
		Export: ExportConfig{
			Dir: defaultExportDir(),
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// defaultExportDir prefers ~/Downloads and falls back to the working directory.
func defaultExportDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, "Downloads")
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return "."
}

// LoadClient builds the client configuration. Values are layered in order:
// defaults, the TOML file at path (optional, ${VAR} expanded), then the
// environment after loading envFiles (".env" when none are given).
// Variables already set in the environment win over .env files.
func LoadClient(path string, envFiles ...string) (*ClientConfig, error) {
	cfg := ClientDefaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// No file: defaults and environment only.
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			expanded := expandEnvVars(string(data))
			if _, err := toml.Decode(expanded, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	if cfg.Gateway.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Gateway.TimeoutRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing gateway.timeout %q: %w", cfg.Gateway.TimeoutRaw, err)
		}
		cfg.Gateway.Timeout = d
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// loadEnvFiles loads .env style files. Missing files are skipped.
func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Validate checks that required config fields are present and valid.
func (c *ClientConfig) Validate() error {
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}
	u, err := url.Parse(c.Gateway.URL)
	if err != nil {
		return fmt.Errorf("gateway.url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("gateway.url must use http or https scheme")
	}
	if c.Gateway.Timeout < 0 {
		return fmt.Errorf("gateway.timeout must not be negative")
	}
	if c.Export.Width < 0 {
		return fmt.Errorf("export.width must not be negative")
	}
	return nil
}

// SaveClient writes cfg to path as TOML, creating parent directories. The
// file is readable only by the owner because it may hold a token.
func SaveClient(path string, cfg *ClientConfig) error {
	out := *cfg
	if out.Gateway.Timeout > 0 {
		out.Gateway.TimeoutRaw = out.Gateway.Timeout.String()
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
