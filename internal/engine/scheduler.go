package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic trend refresh and records each execution as a
// job run for operational visibility.
type Scheduler struct {
	cron   *cron.Cron
	engine *Engine
	log    *slog.Logger
}

// NewScheduler creates a Scheduler that refreshes trend snapshots on the
// given interval.
func NewScheduler(
	eng *Engine,
	trendInterval time.Duration,
	log *slog.Logger,
) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:   c,
		engine: eng,
		log:    log,
	}

	if _, err := c.AddFunc(
		"@every "+trendInterval.String(),
		s.runTrendRefresh,
	); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) runTrendRefresh() {
	ctx := context.Background()
	s.log.Info("scheduled trend refresh starting")
	s.runTracked(ctx, "trend_refresh", s.engine.RunTrendRefresh)
}

// runTracked wraps a job in job-run bookkeeping. Tracking failures are logged
// and swallowed; the job itself matters more than its audit row.
func (s *Scheduler) runTracked(
	ctx context.Context,
	name string,
	fn func(context.Context) (int, error),
) {
	runID, err := s.engine.store.InsertJobRun(ctx, name)
	if err != nil {
		s.log.Error("recording job start failed", "job", name, "error", err)
	}

	rows, jobErr := fn(ctx)

	status, errText := "succeeded", ""
	if jobErr != nil {
		status, errText = "failed", jobErr.Error()
		s.log.Error("scheduled job failed", "job", name, "error", jobErr)
	}

	if runID == "" {
		return
	}
	if err := s.engine.store.CompleteJobRun(ctx, runID, status, errText, rows); err != nil {
		s.log.Error("recording job completion failed", "job", name, "error", err)
	}
}
