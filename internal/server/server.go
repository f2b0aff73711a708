// ABOUTME: Server orchestrator wiring store, auth, notes, attachments, and export
// ABOUTME: Owns the HTTP server lifecycle with graceful shutdown

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"tailscale.com/tsnet"

	"github.com/2389/notebox/internal/attachment"
	"github.com/2389/notebox/internal/auth"
	"github.com/2389/notebox/internal/config"
	"github.com/2389/notebox/internal/export"
	"github.com/2389/notebox/internal/notes"
	"github.com/2389/notebox/internal/store"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

// Server is the notebox HTTP API.
type Server struct {
	config      *config.Config
	store       *store.SQLStore
	tokens      *auth.TokenService
	revocations auth.Revocations
	accounts    *auth.Accounts
	gate        *auth.Gate
	notes       *notes.Service
	attachments *attachment.Store
	exporter    *export.Exporter
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	handler     http.Handler
	logger      *slog.Logger
}

// New builds a server from cfg. The config must already be validated.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tokens, err := auth.NewTokenService([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	revocations, err := newRevocations(ctx, cfg.Auth.Revocation, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	attachments := attachment.New(cfg.Storage.ImagesDir, cfg.Server.BaseURL, logger)
	noteService := notes.NewService(st, attachments, logger)

	s := &Server{
		config:      cfg,
		store:       st,
		tokens:      tokens,
		revocations: revocations,
		accounts:    auth.NewAccounts(st, tokens, revocations, logger),
		gate:        auth.NewGate(tokens, revocations, st, logger),
		notes:       noteService,
		attachments: attachments,
		exporter:    export.NewExporter(noteService, export.NewRenderer(), logger),
		logger:      logger.With("component", "server"),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.handler = s.withMiddleware(s.withCORS(mux))

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("server configured",
		"database", cfg.Database.Driver,
		"revocation", cfg.Auth.Revocation.Backend,
		"images_dir", cfg.Storage.ImagesDir,
	)
	return s, nil
}

// newRevocations builds the configured revocation backend.
func newRevocations(ctx context.Context, cfg config.RevocationConfig, logger *slog.Logger) (auth.Revocations, error) {
	switch cfg.Backend {
	case config.RevocationRedis:
		r, err := auth.NewRedisRevocations(ctx, auth.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting revocation store: %w", err)
		}
		logger.Info("using redis revocation store", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return r, nil
	case config.RevocationMemory, "":
		return auth.NewMemoryRevocations(cfg.SweepInterval), nil
	default:
		return nil, fmt.Errorf("unknown revocation backend %q", cfg.Backend)
	}
}

// Handler returns the complete HTTP handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// setupTCPListener listens on server.http_addr.
func (s *Server) setupTCPListener() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}
	return s.setupTCPListener()
}

// Run serves HTTP until ctx is cancelled or the server fails, then shuts
// down. It returns nil after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		_ = s.Shutdown(context.Background())
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	// The run context is already done; shutdown gets its own deadline
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	shutdownErr := s.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and releases every resource.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "revocation close", s.revocations.Close())
	errs = appendCloseError(errs, "store close", s.store.Close())

	return errors.Join(errs...)
}
