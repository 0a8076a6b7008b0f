// Package cli defines Cobra command definitions for the sketchbook client.
// This file contains the root command, shared flags, and client setup.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/2389/sketchbook/internal/client"
	"github.com/2389/sketchbook/internal/config"
	"github.com/2389/sketchbook/internal/export"
	"github.com/2389/sketchbook/internal/logging"
	"github.com/2389/sketchbook/internal/render"
)

var (
	configPath string
	serverURL  string
	envFile    string
	version    = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "sketchbook",
	Short: "Turn sketches into images, one conversation at a time",
	Long: `sketchbook sends a sketch and a description to a generation service and
lets you refine the result turn by turn. Conversations can be exported as
JSON or as a single-page PDF snapshot.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runChat,
}

// Execute runs the root command. Called from main.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/sketchbook/client.toml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Gateway URL (overrides config and SKETCHBOOK_SERVER)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before reading SKETCHBOOK_* variables")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
}

// app holds what every command needs: configuration, a logger, and a client.
type app struct {
	cfg        *config.ClientConfig
	configPath string
	logger     *slog.Logger
	client     *client.Client
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.ClientConfigPath()
}

// setup loads configuration and builds the HTTP client.
func setup(cmd *cobra.Command) (*app, error) {
	path := resolveConfigPath()
	cfg, err := config.LoadClient(path, envFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if serverURL != "" {
		cfg.Gateway.URL = serverURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger := logging.New(cfg.Logging, cmd.ErrOrStderr())

	c := client.New(cfg.Gateway.URL,
		client.WithToken(cfg.Gateway.Token),
		client.WithTimeout(cfg.Gateway.Timeout),
		client.WithUserAgent("sketchbook/"+version),
		client.WithLogger(logger),
	)

	return &app{cfg: cfg, configPath: path, logger: logger, client: c}, nil
}

// newExporter wires the exporter to the sink, the rasterizer, and the view.
func (a *app) newExporter(src export.Source, sink export.Sink, v *view) *export.Exporter {
	opts := []export.Option{
		export.WithRenderer(render.New(a.logger)),
		export.WithNotifier(notifierFor(v)),
		export.WithLogger(a.logger),
	}
	if a.cfg.Export.Width > 0 {
		opts = append(opts, export.WithWidth(a.cfg.Export.Width))
	}
	return export.New(src, sink, opts...)
}
