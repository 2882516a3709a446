package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	costmcp "github.com/costscope/costscope/internal/adapter/mcp"
	costotel "github.com/costscope/costscope/internal/adapter/otel"
	"github.com/costscope/costscope/internal/adapter/ristretto"
	"github.com/costscope/costscope/internal/adapter/upstream"
	"github.com/costscope/costscope/internal/config"
	"github.com/costscope/costscope/internal/logger"
	"github.com/costscope/costscope/internal/resilience"
	"github.com/costscope/costscope/internal/service"
	"github.com/costscope/costscope/internal/validate"
)

const version = "0.3.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"upstream", cfg.Upstream.BaseURL,
		"auth_enabled", cfg.Auth.Enabled,
		"log_level", cfg.Logging.Level,
	)

	if err := ensureCredentials(&cfg.Upstream); err != nil {
		return fmt.Errorf("credentials: %w", err)
	}

	ctx := context.Background()

	// --- Telemetry ---
	otelShutdown, err := costotel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(shutdownCtx)
	}()

	metrics, err := costotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---
	breaker := resilience.NewBreaker(resilience.Settings{
		Window:                cfg.Breaker.Window,
		MinVolume:             cfg.Breaker.MinVolume,
		ErrorThresholdPercent: cfg.Breaker.ErrorThresholdPercent,
		ResetTimeout:          cfg.Breaker.ResetTimeout,
		CallTimeout:           cfg.Breaker.CallTimeout,
	})

	responseCache, err := ristretto.New(cfg.Cache.MaxSizeMB * 1024 * 1024)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer responseCache.Close()

	client := upstream.NewClient(cfg.Upstream, log,
		upstream.WithBreaker(breaker),
		upstream.WithCache(responseCache, cfg.Cache.TTL),
	)

	// --- Services ---
	access, err := service.NewAccessService(cfg.Auth.Enabled, cfg.Auth.PrincipalsFile, log)
	if err != nil {
		return fmt.Errorf("access control: %w", err)
	}
	engine := service.NewEngine(client, cfg.Analytics, log)
	validator := validate.New(validate.Defaults{
		PageSize:         cfg.Upstream.PageSize,
		MonthsBack:       cfg.Analytics.DefaultMonthsBack,
		ThresholdPercent: cfg.Analytics.AnomalyThresholdPercent,
	})

	// --- MCP ---
	server := costmcp.NewServer(
		costmcp.ServerConfig{Name: "costscope", Version: version},
		costmcp.ServerDeps{
			Access:    access,
			Engine:    engine,
			API:       client,
			Validator: validator,
			Metrics:   metrics,
			Health:    client.BreakerState,
			Log:       log,
		},
	)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(costotel.HTTPMiddleware(cfg.Logging.Service))
	r.Get("/health", healthHandler(cfg, client))
	r.Handle(cfg.Server.Path, server.Handler())

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() {
		slog.Info("mcp server listening", "addr", addr, "path", cfg.Server.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case sig := <-done:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// healthHandler reports service status including the circuit state.
func healthHandler(cfg *config.Config, client *upstream.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":        "ok",
			"service":       cfg.Logging.Service,
			"circuit_state": client.BreakerState(),
		})
	}
}
