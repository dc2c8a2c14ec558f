// Package main runs the fieldops auto-regeneration scheduler: the periodic
// sweep that keeps every active contract's rolling job horizon topped up.
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

	"github.com/redis/go-redis/v9"

	"github.com/clearcrew/fieldops/internal/config"
	"github.com/clearcrew/fieldops/internal/logger"
	"github.com/clearcrew/fieldops/internal/notify"
	"github.com/clearcrew/fieldops/internal/recurring"
	"github.com/clearcrew/fieldops/internal/scheduler"
	"github.com/clearcrew/fieldops/internal/store"
)

// connectWithRetry attempts to connect to Redis with exponential backoff
func connectWithRetry(redisURL string, maxRetries int, log logger.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		client := redis.NewClient(opts)
		pingErr := client.Ping(context.Background()).Err()
		if pingErr == nil {
			return client, nil
		}
		lastErr = pingErr
		client.Close()

		// Calculate exponential backoff delay: 2^attempt seconds (max 30 seconds)
		delay := time.Duration(1<<uint(attempt)) * time.Second
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}

		log.Warn("Failed to connect to Redis, retrying",
			"attempt", attempt+1,
			"max_attempts", maxRetries,
			"error", lastErr,
			"retry_in", delay)

		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", maxRetries, lastErr)
}

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
	defer log.Close()

	// Set as default logger
	logger.SetDefault(log)

	// Create component-specific logger
	schedulerLog := log.WithComponent(logger.ComponentScheduler).WithSource(logger.LogSourceInternal)

	if !cfg.SweepEnabled() {
		schedulerLog.Info("Auto-regeneration sweep is disabled, exiting",
			"autogen_disabled", cfg.AutogenDisabled,
			"test_mode", cfg.TestMode)
		return
	}

	schedulerLog.Info("Scheduler starting",
		"database_path", cfg.DatabasePath,
		"cron", cfg.AutogenCron)

	// Start pprof server on separate port for profiling
	pprofPort := os.Getenv("PPROF_PORT")
	if pprofPort == "" {
		pprofPort = "6062"
	}
	go func() {
		schedulerLog.Info("Starting pprof server", "port", pprofPort, "url", fmt.Sprintf("http://localhost:%s/debug/pprof/", pprofPort))
		if err := http.ListenAndServe(":"+pprofPort, nil); err != nil {
			schedulerLog.Error("pprof server failed", "error", err)
		}
	}()

	// Open the SQLite store
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		schedulerLog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// One Redis connection backs both the event notifier and the
	// cross-instance sweep lock. Without Redis the scheduler still runs,
	// single-instance, with events disabled.
	var client *redis.Client
	var notifier recurring.Notifier = &notify.Noop{}
	if cfg.RedisURL != "" {
		client, err = connectWithRetry(cfg.RedisURL, 5, schedulerLog)
		if err != nil {
			schedulerLog.Warn("Redis unavailable, running without sweep lock and events", "error", err)
			client = nil
		} else {
			defer client.Close()
			schedulerLog.Info("Successfully connected to Redis")
			if cfg.NotificationsEnabled {
				notifier = notify.NewRedisNotifierWithClient(client, log)
			}
		}
	}

	svc := recurring.NewService(st, notifier, log)

	sched, err := scheduler.NewAutogenScheduler(svc, client, scheduler.Config{
		Interval: cfg.AutogenInterval,
		CronExpr: cfg.AutogenCron,
	}, log)
	if err != nil {
		schedulerLog.Error("Failed to create scheduler", "error", err)
		os.Exit(1)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go sched.Start(ctx)

	// Wait for shutdown signal
	sig := <-sigChan
	schedulerLog.Info("Received shutdown signal, initiating graceful shutdown", "signal", sig)

	// Cancel context to stop the sweep loop
	cancel()

	// Give a running cycle time to finish
	time.Sleep(2 * time.Second)

	schedulerLog.Info("Scheduler shut down successfully")
}
