// Package main provides a standalone HTTP server exposing the review
// pipeline over the API contract in spec.md §6.
//
// Configuration is loaded by internal/serverconfig: a YAML file
// (default ./reviewbot.yml, override with --config) layered under
// environment variables prefixed REVIEWBOT_.
//
// Usage:
//
//	go run cmd/server/main.go --config reviewbot.yml
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/prreview/reviewbot/internal/analyzer"
	"github.com/prreview/reviewbot/internal/fetch"
	"github.com/prreview/reviewbot/internal/llm"
	"github.com/prreview/reviewbot/internal/ratelimit"
	"github.com/prreview/reviewbot/internal/redact"
	"github.com/prreview/reviewbot/internal/review"
	"github.com/prreview/reviewbot/internal/serverconfig"
	"github.com/prreview/reviewbot/internal/store/postgres"
)

func main() {
	configPath := flag.String("config", "reviewbot.yml", "path to the server config file")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := serverconfig.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	srv, err := build(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize server")
	}
	defer srv.store.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(srv.limiter.Middleware)
	registerRoutes(e, srv)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
}

// server bundles the wired dependencies main's handlers close over.
type server struct {
	service *review.Service
	store   *postgres.Store
	limiter *ratelimit.Limiter
	logger  *zerolog.Logger
}

func build(cfg *serverconfig.Config, logger *zerolog.Logger) (*server, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	st := postgres.New(db)
	if err := st.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	secrets := []string{cfg.LLM.APIKey, cfg.GitHub.AccessToken, cfg.GitHub.PrivateKeyPEM}
	redactor := redact.New(secrets...)

	validateCtx, validateCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer validateCancel()
	if err := llm.ValidateAPIKey(validateCtx, cfg.LLM.APIKey); err != nil {
		return nil, fmt.Errorf("validating llm.api_key: %w", err)
	}

	gateway := llm.NewAnthropicGateway(cfg.LLM.APIKey, logger, redactor)

	analyzers := []analyzer.Analyzer{
		analyzer.NewLogic(gateway, logger),
		analyzer.NewReadability(gateway, logger),
		analyzer.NewPerformance(gateway, logger),
		analyzer.NewSecurity(gateway, logger),
	}

	fetcher := fetch.New(logger, redactor)

	var appTransport http.RoundTripper
	if cfg.GitHub.AppID != 0 && cfg.GitHub.InstallationID != 0 {
		appTransport, err = fetch.AppTransport(cfg.GitHub.AppID, cfg.GitHub.InstallationID, []byte(cfg.GitHub.PrivateKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("building GitHub App transport: %w", err)
		}
	}

	limits := review.DefaultLimits()
	if cfg.Limits.MaxFilesPerReview > 0 {
		limits.MaxFilesPerReview = cfg.Limits.MaxFilesPerReview
	}
	if cfg.Limits.MaxDiffLines > 0 {
		limits.MaxDiffLines = cfg.Limits.MaxDiffLines
	}
	if cfg.Server.PerAnalyzerTimeout > 0 {
		limits.PerAnalyzerDeadline = cfg.Server.PerAnalyzerTimeout
	}
	if cfg.Server.ReviewTimeout > 0 {
		limits.ReviewDeadline = cfg.Server.ReviewTimeout
	}

	service := review.New(fetcher, appTransport, analyzers, st, limits, logger)

	return &server{
		service: service,
		store:   st,
		limiter: ratelimit.New(cfg.Server.RateLimitPerMin),
		logger:  logger,
	}, nil
}
