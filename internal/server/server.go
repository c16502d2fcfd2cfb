// Package server wires the application together and owns the HTTP
// server's lifecycle.
//
// New is the composition root: it opens the database and the optional
// Redis cache, builds services and handlers, and mounts them on a chi
// router. Start serves until SIGINT/SIGTERM and then shuts down
// gracefully.
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
	"github.com/redis/go-redis/v9"

	"github.com/sakif/catgram/internal/auth"
	"github.com/sakif/catgram/internal/cache"
	"github.com/sakif/catgram/internal/config"
	"github.com/sakif/catgram/internal/handler"
	"github.com/sakif/catgram/internal/middleware"
	sqliteRepo "github.com/sakif/catgram/internal/repository/sqlite"
	"github.com/sakif/catgram/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server holds the router and the resources it must release on shutdown.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	redis   *redis.Client // nil when running without a cache
	metrics *middleware.Metrics
}

// New builds a ready-to-serve Server. Redis is optional: if REDIS_URL is
// unset or unreachable the server runs without a post cache.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		metrics: middleware.NewMetrics(),
	}

	if cfg.RedisURL != "" {
		client, err := cache.Connect(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, continuing without cache", slog.String("error", err.Error()))
		} else {
			s.redis = client
		}
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database and Redis connections.
func (s *Server) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// setupRoutes builds the dependency graph and mounts every route.
//
// Public reads go through OptionalAuth; everything that writes or is
// about "me" goes through RequireAuth.
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	var postCache service.PostCache
	if s.redis != nil {
		postCache = cache.NewRedisPostCache(s.redis, s.config.PostCacheTTL, s.metrics.PostCacheResults, s.logger)
	}

	// s.db implements every repository interface
	profileService := service.NewProfileService(s.db, s.db, s.logger)
	authService := service.NewAuthService(s.db, profileService, tokens, auth.NewPasswordService(), s.logger)
	postService := service.NewPostService(s.db, profileService, postCache, s.logger)
	commentService := service.NewCommentService(s.db, s.db, profileService, s.logger)

	var github *auth.GitHubProvider
	if s.config.GitHubEnabled() {
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	}

	cookieSecure := s.config.CookieSecure || s.config.IsProduction()
	authHandler := handler.NewAuthHandler(authService, github, tokens.TTL(), cookieSecure, s.logger)
	postHandler := handler.NewPostHandler(postService, s.logger)
	commentHandler := handler.NewCommentHandler(commentService, s.logger)
	profileHandler := handler.NewProfileHandler(profileService, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(s.metrics.Middleware)
	s.router.Use(chimiddleware.Recoverer)

	s.router.NotFound(handler.NotFound)
	s.router.MethodNotAllowed(handler.MethodNotAllowed)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", authHandler.HandleSignUp)
		r.Post("/auth/signin", authHandler.HandleSignIn)
		r.Post("/auth/signout", authHandler.HandleSignOut)
		if github != nil {
			r.Get("/auth/github/login", authHandler.HandleGitHubLogin)
			r.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))

			r.Get("/posts", postHandler.HandleList)
			r.Get("/posts/{id}", postHandler.HandleGetByID)
			r.Get("/posts/{id}/comments", commentHandler.HandleList)
			r.Get("/profiles/{id}", profileHandler.HandleGet)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/me", authHandler.HandleMe)

			r.Post("/posts", postHandler.HandleCreate)
			r.Put("/posts/{id}", postHandler.HandleUpdate)
			r.Delete("/posts/{id}", postHandler.HandleDelete)
			r.Post("/posts/{id}/upvote", postHandler.HandleUpvote)

			r.Post("/posts/{id}/comments", commentHandler.HandleCreate)
			r.Delete("/comments/{id}", commentHandler.HandleDelete)

			r.Get("/profile", profileHandler.HandleGetOwn)
			r.Put("/profile", profileHandler.HandleUpdateOwn)
			r.Get("/profile/stats", profileHandler.HandleStats)
		})
	})

	s.logger.Info("routes configured",
		slog.Bool("github", github != nil),
		slog.Bool("cache", s.redis != nil),
	)
	return nil
}

// handleHealth reports 200 while the database answers and 503 otherwise.
// Redis is not checked: the server works without it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

// Start serves HTTP until the process receives SIGINT or SIGTERM, then
// drains in-flight requests and closes the database.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.Env),
			slog.String("database", s.config.DBPath),
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

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
