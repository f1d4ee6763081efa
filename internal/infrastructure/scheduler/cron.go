package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"MarketNewsroom/internal/ports"
)

// CronScheduler fires the job on a standard five-field cron expression.
type CronScheduler struct {
	spec     string
	location *time.Location
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler for spec evaluated in loc (UTC when nil).
func NewCronScheduler(spec string, loc *time.Location, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CronScheduler{spec: spec, location: loc, logger: logger.With("component", "cron")}
}

// Validate parses the expression without scheduling anything.
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// Start registers job and starts the cron loop. Calling Start twice is a no-op.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	runner := cron.New(cron.WithLocation(c.location))
	if _, err := runner.AddFunc(c.spec, func() {
		if ctx.Err() != nil {
			return
		}
		job(time.Now().In(c.location))
	}); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", c.spec, err)
	}
	runner.Start()
	c.cron = runner

	if entries := runner.Entries(); len(entries) > 0 {
		c.logger.Info("cron scheduler started", "spec", c.spec, "next_run", entries[0].Next)
	}
	return nil
}

// Stop halts the cron loop and waits for a running job or ctx, whichever
// comes first.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}

	done := runner.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next reports the next activation time, or zero when stopped.
func (c *CronScheduler) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron == nil {
		return time.Time{}
	}
	if entries := c.cron.Entries(); len(entries) > 0 {
		return entries[0].Next
	}
	return time.Time{}
}
