// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "composition root": every dependency is wired here,
// in New and setupRoutes, rather than scattered across the codebase.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → openBackend → store.Table ×2
//	  → keyvalue.UserStore / PredictionStore (repository interfaces)
//	football.Client → RetryingProvider → Source
//	  → AuthService, PredictionService, EvaluationService, LeaderboardService
//	  → AuthHandler, FootballHandler
//	LeaderboardService → snapshot.Scheduler (optional)
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

	"github.com/sakif/matchday-predictor/internal/auth"
	"github.com/sakif/matchday-predictor/internal/config"
	"github.com/sakif/matchday-predictor/internal/football"
	"github.com/sakif/matchday-predictor/internal/handler"
	"github.com/sakif/matchday-predictor/internal/metrics"
	"github.com/sakif/matchday-predictor/internal/middleware"
	"github.com/sakif/matchday-predictor/internal/repository/keyvalue"
	"github.com/sakif/matchday-predictor/internal/service"
	"github.com/sakif/matchday-predictor/internal/snapshot"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the record store and the snapshot scheduler. Start
// releases both during graceful shutdown.
type Server struct {
	router    *chi.Mux
	config    config.Config
	logger    *slog.Logger
	metrics   *metrics.Recorder
	backend   *backend
	tokens    *auth.TokenService
	snapshots *snapshot.Scheduler

	authHandler     *handler.AuthHandler
	footballHandler *handler.FootballHandler
	healthHandler   *handler.HealthHandler
}

// New creates a Server from cfg. It opens the record store (creating
// DynamoDB tables if needed), so ctx bounds startup.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	be, err := openBackend(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	rec := metrics.NewRecorder()
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		metrics: rec,
		backend: be,
		tokens:  tokens,
	}

	// === REPOSITORIES ===
	users := keyvalue.NewUserStore(be.users, logger, cfg.Store.Timeout)
	predictions := keyvalue.NewPredictionStore(be.predictions, logger, cfg.Store.Timeout)

	// === MATCH SOURCE ===
	client := football.NewClient(football.Config{
		BaseURL: cfg.Football.BaseURL,
		Token:   cfg.Football.Token,
		Timeout: cfg.Football.Timeout,
	})
	provider := football.NewRetryingProvider(client, logger, rec, football.ProviderName,
		cfg.Football.RetryAttempts, cfg.Football.RetryBackoff)
	source := football.NewSource(provider, cfg.Football.CompetitionID, cfg.Football.Window, logger)
	if cfg.Football.Token == "" {
		logger.Warn("FOOTBALL_API_TOKEN not set; football-data.org will rate-limit anonymous requests")
	}

	// === SERVICES ===
	authService := service.NewAuthService(users, tokens, auth.NewPasswordService(), logger)
	predictionService := service.NewPredictionService(predictions, users, source, rec, logger)
	evaluationService := service.NewEvaluationService(predictions, users, source, rec, logger)
	leaderboardService := service.NewLeaderboardService(users, cfg.LeaderboardSize)

	// === HANDLERS ===
	s.authHandler = handler.NewAuthHandler(authService, tokens.TTL(), cfg.CookieSecure, logger)
	s.footballHandler = handler.NewFootballHandler(predictionService, evaluationService, leaderboardService, logger)
	s.healthHandler = handler.NewHealthHandler(be.ping, logger)

	if cfg.Snapshot.Enabled() {
		if err := s.setupSnapshots(ctx, leaderboardService); err != nil {
			be.close()
			return nil, err
		}
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupSnapshots(ctx context.Context, board snapshot.Leaderboard) error {
	client, err := snapshot.NewS3Client(ctx, snapshot.S3Config{
		Region:   s.config.Store.AWSRegion,
		Endpoint: s.config.Snapshot.Endpoint,
	})
	if err != nil {
		return err
	}
	pub := snapshot.NewPublisher(client, s.config.Snapshot.Bucket, s.config.Snapshot.Prefix)
	s.snapshots, err = snapshot.NewScheduler(board, pub, s.config.Snapshot.Interval, s.metrics, s.logger)
	return err
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                    → liveness + store probe
// GET    /metrics                    → Prometheus exposition
// POST   /auth/                      → register-or-login
// POST   /auth/logout                → clear cookie
// GET    /auth/auth-check            → current user            [auth]
// GET    /football/matches           → upcoming, annotated     [auth]
// POST   /football/matches           → submit prediction       [auth]
// GET    /football/matches/evaluate  → score open predictions  [auth]
// POST   /football/user-predictions  → paged history           [auth]
// GET    /football/scoreboard        → leaderboard             [auth]
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs and measures each request
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. CORS: the browser frontend sends the token cookie cross-origin
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger, s.metrics))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Get("/healthz", s.healthHandler.HandleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())

	requireAuth := auth.RequireAuth(s.tokens)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/", s.authHandler.HandleLogin)
		r.Post("/logout", s.authHandler.HandleLogout)
		r.With(requireAuth).Get("/auth-check", s.authHandler.HandleAuthCheck)
	})

	s.router.Route("/football", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/matches", s.footballHandler.HandleMatches)
		r.Post("/matches", s.footballHandler.HandleSubmit)
		r.Get("/matches/evaluate", s.footballHandler.HandleEvaluate)
		r.Post("/matches/evaluate", s.footballHandler.HandleEvaluate)
		r.Post("/user-predictions", s.footballHandler.HandleUserPredictions)
		r.Get("/scoreboard", s.footballHandler.HandleScoreboard)
	})
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the record store and stops the snapshot scheduler.
func (s *Server) Close() error {
	var errs []error
	if s.snapshots != nil {
		errs = append(errs, s.snapshots.Shutdown())
	}
	errs = append(errs, s.backend.close())
	return errors.Join(errs...)
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Stop the snapshot job and close the store
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing resources", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	if s.snapshots != nil {
		s.snapshots.Start()
	}

	go func() {
		s.logger.Info("server starting",
			slog.String("port", s.config.Port),
			slog.String("store", s.config.Store.Backend),
			slog.Int("competition", s.config.Football.CompetitionID),
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
