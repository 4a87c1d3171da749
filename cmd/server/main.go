package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/machinelog/internal/app"
	"github.com/JonMunkholm/machinelog/internal/config"
	"github.com/JonMunkholm/machinelog/internal/core"
	"github.com/JonMunkholm/machinelog/internal/logging"
	"github.com/JonMunkholm/machinelog/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("close failed", "error", err)
		}
	}()

	service := a.Service
	server := web.NewServer(service, cfg)

	// Cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	schedulerDone := make(chan struct{})
	if cfg.Summary.SchedulerEnabled {
		go func() {
			defer close(schedulerDone)
			service.StartSummaryScheduler(jobCtx, core.SchedulerConfig{
				Interval:   cfg.Summary.RebuildInterval,
				RunOnStart: cfg.Summary.RunOnStart,
				Timeout:    cfg.Summary.Timeout,
			})
		}()
	} else {
		close(schedulerDone)
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests first, then let in-flight merges finish.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if st := service.Limiter().Status(); st.Active > 0 {
			slog.Info("waiting for submissions to complete", "active", st.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("submissions did not complete in time", "error", err)
			} else {
				slog.Info("all submissions completed")
			}
		}

		cancelJobs()
		<-schedulerDone
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		cancelJobs()
		return
	}
	<-stopped
	slog.Info("server stopped")
}
