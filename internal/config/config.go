// ABOUTME: Configuration loading and parsing for sketchbook-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Generator backends.
const (
	BackendEcho   = "echo"
	BackendOpenAI = "openai"
)

// Defaults applied when a field is left unset.
const (
	DefaultTokenTTL         = 7 * 24 * time.Hour
	DefaultMaxUploadBytes   = 10 << 20
	DefaultGeneratorModel   = "gpt-image-1"
	DefaultGeneratorTimeout = 2 * time.Minute
	DefaultIdempotencyTTL   = 10 * time.Minute
	DefaultIdempotencySize  = 1000

	minJWTSecretLen = 32
)

// Config represents the complete sketchbook-gateway configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Logging     LoggingConfig     `yaml:"logging"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr       string `yaml:"http_addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"-"`

	TokenTTLRaw string `yaml:"token_ttl"`
}

// GeneratorConfig selects and configures the image generator
type GeneratorConfig struct {
	Backend string        `yaml:"backend"` // echo, openai
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" env:"SKETCHBOOK_LOG_LEVEL"`
	Format string `yaml:"format" toml:"format" env:"SKETCHBOOK_LOG_FORMAT"`
}

// IdempotencyConfig controls how long generation results are replayed for
// a repeated Idempotency-Key
type IdempotencyConfig struct {
	TTL        time.Duration `yaml:"-"`
	MaxEntries int           `yaml:"max_entries"`

	TTLRaw string `yaml:"ttl"`
}

// GatewayConfigPath returns the path to the gateway config file.
// Priority: SKETCHBOOK_GATEWAY_CONFIG env var > XDG_CONFIG_HOME/sketchbook/gateway.yaml > ~/.config/sketchbook/gateway.yaml
func GatewayConfigPath() string {
	if envPath := os.Getenv("SKETCHBOOK_GATEWAY_CONFIG"); envPath != "" {
		return envPath
	}
	return filepath.Join(configDir(), "gateway.yaml")
}

// configDir returns the sketchbook config directory.
func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "." // fallback
		}
		dir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(dir, "sketchbook")
}

// DataDir returns the sketchbook data directory.
// Priority: XDG_DATA_HOME/sketchbook > ~/.local/share/sketchbook
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "sketchbook")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.Generator.Backend == "" {
		c.Generator.Backend = BackendEcho
	}
	if c.Generator.Model == "" {
		c.Generator.Model = DefaultGeneratorModel
	}
	if c.Generator.Timeout == 0 {
		c.Generator.Timeout = DefaultGeneratorTimeout
	}
	if c.Idempotency.TTL == 0 {
		c.Idempotency.TTL = DefaultIdempotencyTTL
	}
	if c.Idempotency.MaxEntries == 0 {
		c.Idempotency.MaxEntries = DefaultIdempotencySize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Server.MaxUploadBytes < 0 {
		return fmt.Errorf("server.max_upload_bytes must not be negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if len(c.Auth.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", minJWTSecretLen)
	}

	switch c.Generator.Backend {
	case BackendEcho:
	case BackendOpenAI:
		if c.Generator.APIKey == "" {
			return fmt.Errorf("generator.api_key is required for the openai backend")
		}
	default:
		return fmt.Errorf("generator.backend must be %q or %q, got %q", BackendEcho, BackendOpenAI, c.Generator.Backend)
	}

	if c.Idempotency.MaxEntries < 0 {
		return fmt.Errorf("idempotency.max_entries must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
	}

	if cfg.Generator.TimeoutRaw != "" {
		cfg.Generator.Timeout, err = time.ParseDuration(cfg.Generator.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.Generator.TimeoutRaw, err)
		}
	}

	if cfg.Idempotency.TTLRaw != "" {
		cfg.Idempotency.TTL, err = time.ParseDuration(cfg.Idempotency.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing ttl %q: %w", cfg.Idempotency.TTLRaw, err)
		}
	}

	return nil
}
