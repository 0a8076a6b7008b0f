// ABOUTME: Gateway orchestrator that owns the HTTP server, store, and generator
// ABOUTME: Manages route registration, listener setup, and graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/2389/sketchbook/internal/auth"
	"github.com/2389/sketchbook/internal/config"
	"github.com/2389/sketchbook/internal/dedupe"
	"github.com/2389/sketchbook/internal/generator"
	"github.com/2389/sketchbook/internal/store"
)

// Gateway serves the sketch generation API backed by a store and a generator.
type Gateway struct {
	config     *config.Config
	store      store.Store
	generator  generator.Generator
	verifier   *auth.JWTVerifier
	httpServer *http.Server
	logger     *slog.Logger

	// replays returns the committed turn for a repeated Idempotency-Key
	replays *dedupe.Cache[*store.Turn]

	// registerMu serializes registration so only one first user becomes teacher
	registerMu sync.Mutex
}

// Option customizes a Gateway built by New.
type Option func(*Gateway)

// WithStore uses s instead of opening the configured database.
func WithStore(s store.Store) Option {
	return func(g *Gateway) { g.store = s }
}

// WithGenerator uses gen instead of the configured backend.
func WithGenerator(gen generator.Generator) Option {
	return func(g *Gateway) { g.generator = gen }
}

// initStore opens the configured database. SKETCHBOOK_DB_PATH overrides the file path.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("SKETCHBOOK_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a gateway from cfg. The store and generator come from the
// configuration unless supplied as options.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}

	g := &Gateway{
		config:   cfg,
		verifier: verifier,
		logger:   logger.With("component", "gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.generator == nil {
		g.generator, err = generator.New(cfg.Generator, logger)
		if err != nil {
			return nil, fmt.Errorf("creating generator: %w", err)
		}
	}
	if g.store == nil {
		g.store, err = initStore(cfg)
		if err != nil {
			return nil, err
		}
	}

	g.replays = dedupe.New[*store.Turn](cfg.Idempotency.TTL, cfg.Idempotency.MaxEntries)

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.logger.Info("gateway initialized",
		"generator", cfg.Generator.Backend,
		"max_upload_bytes", cfg.Server.MaxUploadBytes,
	)
	return g, nil
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// routes registers every endpoint on a new mux.
func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()

	requireUser := auth.HTTPAuthMiddleware(g.store, g.verifier, g.logger)
	requireTeacher := func(h http.HandlerFunc) http.Handler {
		return requireUser(auth.RequireTeacherHTTP()(h))
	}
	optionalUser := auth.OptionalAuthMiddleware(g.store, g.verifier)

	mux.HandleFunc("GET /health", g.handleHealth)

	mux.HandleFunc("POST /api/login", g.handleLogin)
	mux.Handle("POST /api/register", optionalUser(http.HandlerFunc(g.handleRegister)))

	mux.Handle("GET /api/my_history", requireUser(http.HandlerFunc(g.handleMyHistory)))
	mux.Handle("POST /api/initial", requireUser(http.HandlerFunc(g.handleInitial)))
	mux.Handle("POST /api/continue", requireUser(http.HandlerFunc(g.handleContinue)))

	mux.Handle("GET /api/users", requireTeacher(g.handleListUsers))
	mux.Handle("GET /api/users/{id}/history", requireTeacher(g.handleUserHistory))
	mux.Handle("GET /teacher/users/{id}", requireTeacher(g.handleTranscriptPage))

	return mux
}

// startServer serves HTTP on ln in a goroutine, returning the error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run listens on the configured address and blocks until ctx is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return g.Serve(ctx, ln)
}

// Serve runs the gateway on an existing listener until ctx is canceled.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown runs Shutdown with a fresh context because the caller's is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and releases the store and replay cache.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", g.store.Close())
	g.replays.Close()

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 ok if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
