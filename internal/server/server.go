package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/emre/presentia/internal/bootstrap"
	"github.com/emre/presentia/internal/config"
	"github.com/emre/presentia/internal/middleware"
	"github.com/emre/presentia/internal/pkg/challenge"
)

// Server represents the HTTP server and its dependencies.
type Server struct {
	config     *config.Config
	router     *gin.Engine
	dbPool     *pgxpool.Pool
	challenges challenge.Store
	limiter    *middleware.TokenBucket
	logger     zerolog.Logger
	http       *http.Server
}

// NewServer loads configuration, connects to the database and wires the
// dependency graph.
func NewServer(configPath string) (*Server, error) {
	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger(configPath)
	if err != nil {
		return nil, err
	}

	dbPool, err := bootstrap.SetupDatabase(cfg, lgr)
	if err != nil {
		return nil, err
	}

	deps, err := bootstrap.BuildDependencies(cfg, dbPool, lgr)
	if err != nil {
		dbPool.Close()
		return nil, err
	}

	router := bootstrap.SetupRouter(cfg, deps, lgr)

	return &Server{
		config:     cfg,
		router:     router,
		dbPool:     dbPool,
		challenges: deps.Challenges,
		limiter:    deps.MarkLimiter,
		logger:     lgr,
	}, nil
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run() error {
	s.http = &http.Server{
		Addr:    ":" + s.config.Server.Port,
		Handler: s.router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info().Str("port", s.config.Server.Port).Msg("Server starting")
		serverErrors <- s.http.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		s.logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		if err := s.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			s.http.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	if err := s.challenges.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to close challenge store")
	}
	s.limiter.Close()

	s.dbPool.Close()
	s.logger.Info().Msg("Server stopped")
	return nil
}
