package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/lobbyrelay/internal/adapter/httpserver"
	"github.com/pscheid92/lobbyrelay/internal/adapter/metrics"
	"github.com/pscheid92/lobbyrelay/internal/auth"
	"github.com/pscheid92/lobbyrelay/internal/lobby"
	"github.com/pscheid92/lobbyrelay/internal/platform/config"
	"github.com/pscheid92/lobbyrelay/internal/platform/logging"
	"github.com/pscheid92/lobbyrelay/internal/platform/version"
	"github.com/pscheid92/lobbyrelay/internal/session"
)

func runGracefulShutdown(srv *httpserver.Server, cfg *config.Config) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, closing sessions...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "version", version.Get().String(), "env", cfg.AppEnv, "port", cfg.Port)

	policy, err := session.ParseMalformedPolicy(cfg.MalformedPayloadPolicy)
	if err != nil {
		slog.Error("Invalid malformed payload policy", "error", err)
		os.Exit(1)
	}

	registry := lobby.NewRegistry(cfg.FanOutCapacity, cfg.FanInCapacity)

	promRegistry := metrics.NewRegistry()
	metrics.RegisterLobbyGauges(promRegistry, func() (int, int) {
		stats := registry.Stats()
		return stats.Lobbies, stats.Paired
	})

	sessionConfig := session.Config{
		Clock:           clock,
		Recorder:        metrics.NewRelayMetrics(promRegistry),
		Verifier:        auth.NewTokenVerifier(cfg.JWTSecret(), clock),
		MinInterval:     cfg.ViewerMinInterval,
		MaxMessageBytes: cfg.ViewerMaxMessageBytes,
		MalformedPolicy: policy,
	}

	srv := httpserver.NewServer(cfg, registry, sessionConfig, promRegistry, nil)

	done := runGracefulShutdown(srv, cfg)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Server stopped")
}
