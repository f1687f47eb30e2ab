// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware and
// routes, and decides:
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads a config.Config and passes it to New, which creates:
//
//	PasswordService → sqlite.DB (Credential Store, hashes staged passwords)
//	TokenService
//	minio.Client → avatar.Manager
//	GoogleProvider (only when configured)
//	→ service.AuthService → handler.AuthHandler
//
// This is the "composition root" pattern: all dependencies are wired in one
// place rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/sakif/autodealer/internal/auth"
	"github.com/sakif/autodealer/internal/avatar"
	"github.com/sakif/autodealer/internal/config"
	"github.com/sakif/autodealer/internal/handler"
	"github.com/sakif/autodealer/internal/middleware"
	sqliteRepo "github.com/sakif/autodealer/internal/repository/sqlite"
	"github.com/sakif/autodealer/internal/service"
	minioStore "github.com/sakif/autodealer/internal/storage/minio"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it after the HTTP
// server has drained, so no in-flight request loses its store.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	tokens *auth.TokenService
	auth   *service.AuthService
}

// New builds every dependency from cfg and sets up the routes.
//
// The asset store is optional at startup: if it cannot be reached the
// server still starts and avatar uploads fail with an upload error, the
// same way the rest of the API keeps working without it. Google login is
// optional too and only mounted when credentials are configured.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	passwords := auth.NewPasswordService()

	tokens, err := auth.NewTokenService(cfg.JWT.Secret)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	db, err := sqliteRepo.New(cfg.Database.Path, passwords)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var store avatar.Store
	store, err = minioStore.NewClient(ctx, minioStore.Config{
		Endpoint:      cfg.Avatar.Endpoint,
		AccessKey:     cfg.Avatar.AccessKey,
		SecretKey:     cfg.Avatar.SecretKey,
		Bucket:        cfg.Avatar.Bucket,
		UseSSL:        cfg.Avatar.UseSSL,
		PublicBaseURL: cfg.Avatar.PublicBaseURL,
	})
	if err != nil {
		logger.Warn("asset store unavailable, avatar uploads will fail",
			slog.String("endpoint", cfg.Avatar.Endpoint),
			slog.String("error", err.Error()),
		)
		store = avatar.UnavailableStore{Err: err}
	}

	deps := service.Deps{
		Users:     db,
		Passwords: passwords,
		Tokens:    tokens,
		Avatars:   avatar.NewManager(store, logger),
		Logger:    logger,
	}
	if cfg.OAuthEnabled() {
		deps.OAuth = auth.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL)
	} else {
		logger.Warn("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set, Google login is disabled")
	}

	return newServer(cfg, logger, db, tokens, service.NewAuthService(deps)), nil
}

// newServer assembles a Server from already-built dependencies.
func newServer(cfg *config.Config, logger *slog.Logger, db *sqliteRepo.DB, tokens *auth.TokenService, svc *service.AuthService) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		tokens: tokens,
		auth:   svc,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                    → liveness + database ping
// POST   /api/auth/register          → create a local account
// POST   /api/auth/login             → email/password login
// POST   /api/auth/logout            → clear the token cookie
// GET    /api/auth/profile           → own profile          [auth]
// PUT    /api/auth/profile           → update own profile   [auth]
// GET    /api/auth/google            → start Google login   [if configured]
// GET    /api/auth/google/callback   → finish Google login  [if configured]
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique id (the logger reads it)
//  2. RealIP: extracts the client IP from proxy headers
//  3. Logger: logs each request with timing info
//  4. Recoverer: turns a panic into a 500 (inside Logger, so it is logged)
//  5. CORS: the front-end runs on its own origin and sends credentials
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{s.config.Frontend.URL},
		AllowCredentials: true,
		MaxAge:           86400,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
	}).Handler)

	healthHandler := handler.NewHealthHandler(s.db, s.logger)
	s.router.Get("/healthz", healthHandler.HandleHealth)

	authHandler := handler.NewAuthHandler(s.auth, s.config.Frontend.URL, s.logger)

	s.router.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.tokens))
			r.Get("/profile", authHandler.HandleGetProfile)
			r.Put("/profile", authHandler.HandleUpdateProfile)
		})

		if s.auth.OAuthEnabled() {
			r.Get("/google", authHandler.HandleGoogleLogin)
			r.Get("/google/callback", authHandler.HandleGoogleCallback)
		}
	})
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTP.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second, // multipart avatar uploads
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.HTTP.Port),
			slog.String("database", s.config.Database.Path),
			slog.Bool("googleLogin", s.auth.OAuthEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
