// Package scheduler runs the reminder sweep in-process on a cron schedule,
// for deployments without an external scheduler calling the HTTP trigger.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/immowaechter/immowaechter/internal/notifications"
)

// Sweeper runs one sweep. *notifications.Sweeper satisfies it.
type Sweeper interface {
	Run(ctx context.Context, opts notifications.RunOptions) (*notifications.Result, error)
}

// Scheduler triggers sweeps on a cron expression evaluated in a fixed zone.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	loc     *time.Location
	logger  *slog.Logger
	timeout time.Duration
}

// New parses spec (standard 5-field cron or descriptors like "@daily") and
// registers the sweep. Overlapping runs are skipped.
func New(spec string, loc *time.Location, sweeper Sweeper, logger *slog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cron.DiscardLogger),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		sweeper: sweeper,
		loc:     loc,
		logger:  logger,
		timeout: notifications.SweepTimeout,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start launches the schedule and blocks until ctx is cancelled, then waits
// for a running sweep to finish. Intended to be called with `go`.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	s.logger.Info("Sweep schedule started", "next", s.Next())

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Sweep schedule stopped")
}

// Next returns the next scheduled run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now().In(s.loc))
}

// RunOnce performs one scheduled sweep and logs the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.sweeper.Run(ctx, notifications.RunOptions{})
	if err != nil {
		s.logger.Error("Scheduled sweep failed", "error", err)
		return
	}
	s.logger.Info("Scheduled sweep finished", "summary", res.Summary())
}
