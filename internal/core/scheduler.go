package core

// scheduler.go rebuilds the summary sheet on a fixed interval so the summary
// is fresh each morning even if nobody asks for it.

import (
	"context"
	"log/slog"
	"time"
)

// SchedulerConfig controls the periodic summary rebuild.
type SchedulerConfig struct {
	Interval   time.Duration // how often to rebuild (default: 24h)
	RunOnStart bool          // rebuild once immediately
	Timeout    time.Duration // bound for a single rebuild (default: 5m)
}

// StartSummaryScheduler rebuilds the summary every Interval until ctx is
// cancelled. It blocks; run it in its own goroutine. A failed rebuild is
// logged and retried at the next tick.
func (s *Service) StartSummaryScheduler(ctx context.Context, cfg SchedulerConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}

	slog.Info("summary scheduler started",
		"interval", cfg.Interval.String(),
		"run_on_start", cfg.RunOnStart,
	)

	if cfg.RunOnStart {
		s.runSummaryJob(ctx, cfg.Timeout)
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("summary scheduler stopped")
			return
		case <-ticker.C:
			s.runSummaryJob(ctx, cfg.Timeout)
		}
	}
}

func (s *Service) runSummaryJob(ctx context.Context, timeout time.Duration) {
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	sum, err := s.RebuildSummary(jobCtx)
	if err != nil {
		slog.Error("scheduled summary rebuild failed", "error", err)
		return
	}
	slog.Debug("scheduled summary rebuild completed",
		"sheets", len(sum.Sheets),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
