package main

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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mikeboe/deep-research/pkg/chat"
	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/observability"
	"github.com/mikeboe/deep-research/pkg/research/tools"
	"github.com/mikeboe/deep-research/pkg/server"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(os.Stdout, cfg.LogFormat, slog.LevelInfo)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry, err := observability.NewTelemetry(ctx, observability.Config{
		ServiceName:    "deep-research",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		EnableMetrics:  cfg.MetricsEnabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.Error("Telemetry shutdown failed", "error", err)
		}
	}()

	provider, err := clients.New(ctx, cfg)
	if err != nil {
		return err
	}
	backend, err := tools.NewSearchBackend(tools.BackendOptions{
		Provider:     cfg.Search.Provider,
		TavilyAPIKey: cfg.Search.TavilyApiKey,
		RateLimit:    cfg.Search.RateLimit,
		PreferPDF:    cfg.Search.MistralApiKey != "",
	})
	if err != nil {
		return err
	}

	// Service Configuration
	svc, err := server.NewService(cfg.ResearchConfig(), provider, backend, tools.NewFetcher(cfg.Search.MistralApiKey, nil))
	if err != nil {
		return err
	}
	svc.Logger = logger
	svc.Metrics = telemetry.Metrics()

	// The chat agent runs on Gemini and is optional.
	var chatSvc server.ChatStreamer
	if cfg.GoogleApiKey != "" {
		cs, err := chat.NewService(ctx, cfg, svc)
		if err != nil {
			return fmt.Errorf("failed to init chat service: %w", err)
		}
		chatSvc = cs
	} else {
		slog.Warn("GOOGLE_API_KEY not set, /api/chat is disabled")
	}

	mcpHandler := server.NewMCPHandler(server.NewMCPServer(chat.NewResearchToolset(svc), version))
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsHandler = promhttp.Handler()
	}
	handler := server.NewHandler(svc, chatSvc, mcpHandler, metricsHandler)

	// Web Server Setup
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS Setup
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"}, // Allow all for dev
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id", "Mcp-Protocol-Version"},
		ExposeHeaders: []string{"Content-Length", "Mcp-Session-Id"},
	}))

	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
