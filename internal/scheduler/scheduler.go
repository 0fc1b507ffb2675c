// CLAUDE:SUMMARY Polls the store for due watches on a 1s tick and runs them through the pipeline with a bounded worker pool.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/devindudeman/kto/internal/pipeline"
	"github.com/devindudeman/kto/internal/store"
)

// Config configures the scheduler.
type Config struct {
	// PollInterval is how often to check for due watches.
	PollInterval time.Duration
	// MaxConcurrency bounds how many checks run at once across all watches.
	MaxConcurrency int
	// MaxFailCount is the failure count past which a persistently failing
	// watch is logged at warn level on every attempt. It never excludes the
	// watch from scheduling: fetch errors do not delay or disable retries.
	MaxFailCount int
	// DrainTimeout is how long Run waits for in-flight checks to finish
	// after ctx is cancelled before returning anyway.
	DrainTimeout time.Duration
}

func (c *Config) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 8
	}
	if c.MaxFailCount <= 0 {
		c.MaxFailCount = 10
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 30 * time.Second
	}
}

// Scheduler runs due watches through a Pipeline on a fixed poll interval,
// bounding overall concurrency with a semaphore.
type Scheduler struct {
	store    *store.Store
	pipeline *pipeline.Pipeline
	config   Config
	logger   *slog.Logger
	sem      chan struct{}
}

func New(st *store.Store, p *pipeline.Pipeline, cfg Config, logger *slog.Logger) *Scheduler {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    st,
		pipeline: p,
		config:   cfg,
		logger:   logger,
		sem:      make(chan struct{}, cfg.MaxConcurrency),
	}
}

// Run polls for due watches until ctx is cancelled, then waits up to
// DrainTimeout for in-flight checks before returning.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	s.pollOnce(ctx, &wg)

	for {
		select {
		case <-ctx.Done():
			s.drain(&wg)
			return
		case <-ticker.C:
			s.pollOnce(ctx, &wg)
		}
	}
}

// RunOnce checks every due watch a single time and waits for them all to
// finish, for the one-shot "run" command.
func (s *Scheduler) RunOnce(ctx context.Context) {
	var wg sync.WaitGroup
	s.pollOnce(ctx, &wg)
	wg.Wait()
}

func (s *Scheduler) pollOnce(ctx context.Context, wg *sync.WaitGroup) {
	due, err := s.store.DueWatches(ctx)
	if err != nil {
		s.logger.Error("scheduler: list due watches", "error", err)
		return
	}
	for _, w := range due {
		w := w
		if w.FailCount >= s.config.MaxFailCount {
			s.logger.Warn("scheduler: watch has exceeded max fail count, still retrying at interval",
				"watch", w.Name, "fail_count", w.FailCount, "last_error", w.LastError)
		}
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-s.sem }()
			result := s.pipeline.Check(ctx, w)
			if result.Error != nil {
				s.logger.Warn("scheduler: check failed", "watch", w.Name, "error", result.Error)
				return
			}
			if result.Notified {
				s.logger.Info("scheduler: notified", "watch", w.Name)
			} else if result.Changed {
				s.logger.Info("scheduler: change detected, not notified", "watch", w.Name)
			}
		}()
	}
}

func (s *Scheduler) drain(wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.config.DrainTimeout):
		s.logger.Warn("scheduler: drain timed out, exiting with checks still in flight")
	}
}
