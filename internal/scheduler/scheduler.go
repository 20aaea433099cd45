package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Job is one unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler struct {
	job      Job
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewScheduler(job Job, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		job:      job,
		interval: interval,
		timeout:  interval,
		logger:   logger.With("job", job.Name()),
	}
}

// Start runs the job immediately and then every interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runJob(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runJob(ctx)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.job.Run(jobCtx); err != nil {
		s.logger.Error("job failed", "error", err)
	}
}

// Sweeper is satisfied by the resource cache.
type Sweeper interface {
	Sweep() int
}

// CacheSweep drops expired cache entries.
type CacheSweep struct {
	cache  Sweeper
	logger *slog.Logger
}

func NewCacheSweep(cache Sweeper, logger *slog.Logger) *CacheSweep {
	return &CacheSweep{cache: cache, logger: logger}
}

func (c *CacheSweep) Name() string { return "cache_sweep" }

func (c *CacheSweep) Run(ctx context.Context) error {
	if removed := c.cache.Sweep(); removed > 0 {
		c.logger.Debug("expired cache entries removed", "count", removed)
	}
	return nil
}
