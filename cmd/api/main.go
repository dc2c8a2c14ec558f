// Package main provides the fieldops API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // #nosec G108 - pprof is intentionally exposed for debugging, isolated to separate port
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clearcrew/fieldops/internal/api"
	"github.com/clearcrew/fieldops/internal/config"
	"github.com/clearcrew/fieldops/internal/logger"
	"github.com/clearcrew/fieldops/internal/notify"
	"github.com/clearcrew/fieldops/internal/recurring"
	"github.com/clearcrew/fieldops/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := log.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close logger: %v\n", err)
		}
	}()

	// Set as default logger
	logger.SetDefault(log)

	// Create component-specific logger
	apiLog := log.WithComponent(logger.ComponentAPI).WithSource(logger.LogSourceInternal)

	apiLog.Info("API server starting",
		"database_path", cfg.DatabasePath,
		"api_port", cfg.APIPort,
		"notifications_enabled", cfg.NotificationsEnabled)

	// Open the SQLite store
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		apiLog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Event publishing is best-effort: a Redis outage degrades to no-op
	// notifications instead of blocking startup
	var notifier recurring.Notifier = &notify.Noop{}
	if cfg.NotificationsEnabled {
		rn, err := notify.NewRedisNotifier(cfg.RedisURL, log)
		if err != nil {
			apiLog.Warn("Redis unavailable, domain events disabled", "error", err)
		} else {
			notifier = rn
			defer rn.Close()
		}
	}

	svc := recurring.NewService(st, notifier, log)
	server := api.NewServer(svc, st, nil, log)

	// Start pprof server on separate port for profiling
	pprofPort := os.Getenv("PPROF_PORT")
	if pprofPort == "" {
		pprofPort = "6060"
	}
	go func() {
		apiLog.Info("Starting pprof server", "port", pprofPort, "url", fmt.Sprintf("http://localhost:%s/debug/pprof/", pprofPort))
		pprofServer := &http.Server{
			Addr:              ":" + pprofPort,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := pprofServer.ListenAndServe(); err != nil {
			apiLog.Error("pprof server failed", "error", err)
		}
	}()

	addr := ":" + cfg.APIPort
	apiLog.Info("API server listening", "address", addr)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		apiLog.Error("API server failed", "error", err)
		os.Exit(1)
	case sig := <-sigChan:
		apiLog.Info("Received shutdown signal, initiating graceful shutdown", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		apiLog.Error("Graceful shutdown failed", "error", err)
	}

	apiLog.Info("API server shut down successfully")
}
