// Package server is the composition root for HTTP: it builds services and
// handlers from already-opened stores, installs middleware, maps routes and
// runs the listener with graceful shutdown.
//
// Opening the stores is the caller's job (cmd/server), so tests can hand in
// an in-memory database and a temporary upload directory.
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
	"github.com/go-chi/cors"

	"github.com/sakif/photoshare/internal/auth"
	"github.com/sakif/photoshare/internal/filestore"
	"github.com/sakif/photoshare/internal/handler"
	"github.com/sakif/photoshare/internal/metrics"
	"github.com/sakif/photoshare/internal/middleware"
	"github.com/sakif/photoshare/internal/repository"
	"github.com/sakif/photoshare/internal/service"
)

// Config holds the HTTP-level settings.
type Config struct {
	Port            int
	CORSOrigins     []string
	MaxUploadMemory int64
}

// Server owns the router and the Data Store, which it closes on shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	store  repository.Store
	files  *filestore.Store
	tokens *auth.TokenService
}

// New wires every route. tokens may be nil, which disables login tokens and
// leaves /addphotos open.
func New(
	cfg Config,
	store repository.Store,
	files *filestore.Store,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
		files:  files,
		tokens: tokens,
	}
	s.setupRoutes()
	return s
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes installs middleware and routes.
//
//	POST /register          → create account
//	POST /login             → check credentials
//	POST /addphotos         → upload a batch (token-guarded when tokens != nil)
//	GET  /photos/{userId}   → list an owner's albums
//	GET  /uploads/*         → stored files
//	GET  /healthz           → Data Store reachability
//	GET  /metrics           → Prometheus exposition
//
// Order: RequestID before Logger so log lines carry the id, Recoverer
// innermost of the shared set so panics still get logged and counted.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !allowsAnyOrigin(s.config.CORSOrigins),
		MaxAge:           300,
	}))

	passwords := auth.NewPasswordService()
	accountService := service.NewAccountService(s.store, passwords, s.logger)
	photoService := service.NewPhotoService(s.store, s.files, s.logger)

	accountHandler := handler.NewAccountHandler(accountService, s.tokens, s.logger)
	photoHandler := handler.NewPhotoHandler(photoService, s.config.MaxUploadMemory, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	s.router.Post("/register", accountHandler.HandleRegister)
	s.router.Post("/login", accountHandler.HandleLogin)
	s.router.Get("/photos/{userId}", photoHandler.HandleList)

	s.router.Group(func(r chi.Router) {
		if s.tokens != nil {
			r.Use(auth.RequireAuth(s.tokens))
		}
		r.Post("/addphotos", photoHandler.HandleAddPhotos)
	})

	s.router.Handle("/uploads/*", http.StripPrefix("/uploads/", s.files.Handler()))
	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", metrics.Handler())
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return len(origins) == 0
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the Data Store.
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("failed to close data store", slog.String("error", err.Error()))
		}
	}()

	// Uploads can be slow; the write timeout covers a 12-file batch on a
	// modest link.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("uploads", s.files.Root()),
			slog.Bool("tokens", s.tokens != nil),
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
