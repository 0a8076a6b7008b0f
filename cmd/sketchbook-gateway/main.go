// ABOUTME: Entry point for sketchbook-gateway, the sketch generation server
// ABOUTME: Provides serve, init, bootstrap, and health subcommands

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/sketchbook/internal/auth"
	"github.com/2389/sketchbook/internal/config"
	"github.com/2389/sketchbook/internal/gateway"
	"github.com/2389/sketchbook/internal/logging"
	"github.com/2389/sketchbook/internal/store"
)

// version is set via ldflags at build time.
var version = "dev"

const banner = `
      _        _       _     _                 _
  ___| | _____| |_ ___| |__ | |__   ___   ___ | | __
 / __| |/ / _ \ __/ __| '_ \| '_ \ / _ \ / _ \| |/ /
 \__ \   <  __/ || (__| | | | |_) | (_) | (_) |   <
 |___/_|\_\___|\__\___|_| |_|_.__/ \___/ \___/|_|\_\
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: sketchbook-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                      Start the gateway server")
		fmt.Println("  init                       Create a new config file interactively")
		fmt.Println("  bootstrap --username NAME  Create the first teacher account and token")
		fmt.Println("  health                     Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "bootstrap":
		err = runBootstrap(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.GatewayConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Generator: ")
	if cfg.Generator.Backend == config.BackendEcho {
		yellow.Print("echo")
		gray.Print(" (stub, returns the input image)")
	} else {
		cyan.Printf("%s %s", cfg.Generator.Backend, cfg.Generator.Model)
	}
	fmt.Println()
	fmt.Println()

	logger.Info("starting sketchbook-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"generator", cfg.Generator.Backend,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(config.GatewayConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// parseUsernameFlag accepts "--username value" and "--username=value" (or -u).
func parseUsernameFlag(args []string) (string, error) {
	var username string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--username" || arg == "-u":
			if i+1 >= len(args) {
				return "", fmt.Errorf("--username requires a value")
			}
			username = args[i+1]
			i++
		case strings.HasPrefix(arg, "--username="):
			username = strings.TrimPrefix(arg, "--username=")
		case strings.HasPrefix(arg, "-u="):
			username = strings.TrimPrefix(arg, "-u=")
		case strings.HasPrefix(arg, "-"):
			return "", fmt.Errorf("unknown flag: %s", arg)
		default:
			return "", fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("--username flag is required")
	}
	if len(username) > 64 {
		return "", fmt.Errorf("username exceeds maximum length of 64 characters")
	}
	return username, nil
}

// writeDefaultConfig creates a config file with a random JWT secret.
func writeDefaultConfig(configPath, dbPath string) error {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	content := fmt.Sprintf(`# sketchbook-gateway configuration
# Generated by sketchbook-gateway bootstrap

server:
  http_addr: "localhost:8080"

database:
  path: "%s"

auth:
  jwt_secret: "%s"
  token_ttl: "168h"

generator:
  backend: "echo"

logging:
  level: "info"
  format: "text"
`, dbPath, jwtSecret)

	return os.WriteFile(configPath, []byte(content), 0600)
}

// runBootstrap performs first-time setup: a config with a random JWT
// secret if none exists, the database, and the first teacher account.
// The password comes from SKETCHBOOK_BOOTSTRAP_PASSWORD or a prompt.
func runBootstrap(ctx context.Context) error {
	username, err := parseUsernameFlag(os.Args[2:])
	if err != nil {
		return err
	}

	configPath := config.GatewayConfigPath()
	dbPath := filepath.Join(config.DataDir(), "gateway.db")

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := writeDefaultConfig(configPath, dbPath); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
		green.Printf("  ✓ Created config: %s\n", configPath)
	} else {
		cyan.Printf("  Using existing config: %s\n", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()
	green.Printf("  ✓ Database: %s\n", cfg.Database.Path)

	count, err := s.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("checking users: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("bootstrap already complete: %d user(s) exist", count)
	}

	password := os.Getenv("SKETCHBOOK_BOOTSTRAP_PASSWORD")
	if password == "" {
		password = prompt(bufio.NewReader(os.Stdin), "Password for "+username, "")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user := &store.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		IsTeacher:    true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("creating teacher: %w", err)
	}
	green.Printf("  ✓ Created teacher: %s\n", username)

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}
	token, err := verifier.Generate(user.ID, true, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	expiresAt := time.Now().Add(cfg.Auth.TokenTTL).UTC()

	fmt.Println()
	green.Println("  Bootstrap complete!")
	fmt.Println()
	cyan.Println("  Teacher Account")
	cyan.Println("  ---------------")
	fmt.Printf("  ID:       %s\n", user.ID)
	fmt.Printf("  Username: %s\n", user.Username)
	fmt.Printf("  Token:    %s\n", token)
	fmt.Printf("  Expires:  %s\n", expiresAt.Format("Jan 02, 2006"))
	fmt.Println()
	yellow.Println("  Ready to go:")
	fmt.Println("    sketchbook-gateway serve                       # start the gateway")
	fmt.Printf("    sketchbook login --username %s   # save a token for the client\n", username)
	fmt.Println()

	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("sketchbook-gateway configuration setup")
	fmt.Println("======================================")
	fmt.Println()

	defaultDBPath := filepath.Join(config.DataDir(), "gateway.db")

	outputFile := prompt(reader, "Config file path", config.GatewayConfigPath())
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")
	maxUpload := prompt(reader, "Max upload bytes", fmt.Sprint(config.DefaultMaxUploadBytes))

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDBPath)

	fmt.Println("\n--- Auth Configuration ---")
	jwtSecret := prompt(reader, "JWT secret (leave empty to use ${SKETCHBOOK_JWT_SECRET})", "")
	if jwtSecret == "" {
		jwtSecret = "${SKETCHBOOK_JWT_SECRET}"
	}
	tokenTTL := prompt(reader, "Token lifetime", config.DefaultTokenTTL.String())

	fmt.Println("\n--- Generator Configuration ---")
	backend := prompt(reader, "Backend (echo/openai)", config.BackendEcho)
	var model, apiKey, baseURL string
	if backend == config.BackendOpenAI {
		model = prompt(reader, "Model", config.DefaultGeneratorModel)
		apiKey = prompt(reader, "API key (leave empty to use ${OPENAI_API_KEY})", "")
		if apiKey == "" {
			apiKey = "${OPENAI_API_KEY}"
		}
		baseURL = prompt(reader, "Base URL (leave empty for the default)", "")
	}

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# sketchbook-gateway configuration\n")
	cfg.WriteString("# Generated by sketchbook-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString(fmt.Sprintf("  max_upload_bytes: %s\n", maxUpload))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: \"%s\"\n", jwtSecret))
	cfg.WriteString(fmt.Sprintf("  token_ttl: \"%s\"\n", tokenTTL))
	cfg.WriteString("\n")

	cfg.WriteString("generator:\n")
	cfg.WriteString(fmt.Sprintf("  backend: \"%s\"\n", backend))
	if backend == config.BackendOpenAI {
		cfg.WriteString(fmt.Sprintf("  model: \"%s\"\n", model))
		cfg.WriteString(fmt.Sprintf("  api_key: \"%s\"\n", apiKey))
		if baseURL != "" {
			cfg.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", baseURL))
		}
		cfg.WriteString(fmt.Sprintf("  timeout: \"%s\"\n", config.DefaultGeneratorTimeout))
	}
	cfg.WriteString("\n")

	cfg.WriteString("idempotency:\n")
	cfg.WriteString(fmt.Sprintf("  ttl: \"%s\"\n", config.DefaultIdempotencyTTL))
	cfg.WriteString(fmt.Sprintf("  max_entries: %d\n", config.DefaultIdempotencySize))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo create the first teacher account:")
	fmt.Printf("  sketchbook-gateway bootstrap --username <name>\n")

	return nil
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
