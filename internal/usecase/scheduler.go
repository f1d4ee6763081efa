package usecase

import (
	"context"
	"log/slog"
	"time"

	"MarketNewsroom/internal/ports"
)

// Scheduler wires the cron driver with watchlist runs.
type Scheduler struct {
	driver   ports.Scheduler
	registry *SymbolRegistry
	pipeline *Pipeline
	strategy Strategy
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring watchlist runs.
func NewScheduler(driver ports.Scheduler, registry *SymbolRegistry, pipeline *Pipeline, strategy Strategy, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		driver:   driver,
		registry: registry,
		pipeline: pipeline,
		strategy: strategy,
		logger:   componentLogger(logger, "scheduler"),
	}
}

// Start registers the watchlist job with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.RunWatchlist(ctx, trigger)
	}

	return s.driver.Start(ctx, job)
}

// RunWatchlist starts one run per active default symbol and returns how many started.
func (s *Scheduler) RunWatchlist(ctx context.Context, trigger time.Time) int {
	symbols, err := s.registry.ListDefaults(ctx)
	if err != nil {
		s.logger.Error("load watchlist", "error", err)
		return 0
	}

	started := 0
	for _, sym := range symbols {
		res, err := s.pipeline.Run(ctx, sym.DisplayName(), sym.Ticker, "scheduler", s.strategy)
		if err != nil {
			s.logger.Warn("scheduled run failed", "ticker", sym.Ticker, "error", err)
			continue
		}
		started++
		s.logger.Info("scheduled run started", "ticker", sym.Ticker, "run_id", res.Run.ID, "trigger", trigger)
	}
	return started
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
