/**
 * @description
 * Cron scheduler for the rewards-service maintenance jobs. The only job today sweeps expired
 * code export download links.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/loyalty/rewards-service/internal/domain"
	"github.com/loyalty/rewards-service/internal/store"
	"github.com/robfig/cron/v3"
)

const DefaultDownloadLinkSweepSchedule = "@every 1h"

// DownloadLinkSweeper deletes download links older than their TTL.
type DownloadLinkSweeper struct {
	repo   store.Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewDownloadLinkSweeper creates the sweep job. A non-positive ttl falls back to the default.
func NewDownloadLinkSweeper(repo store.Store, ttl time.Duration, logger *slog.Logger) *DownloadLinkSweeper {
	if ttl <= 0 {
		ttl = domain.DefaultDownloadLinkTTL
	}
	return &DownloadLinkSweeper{repo: repo, ttl: ttl, now: time.Now, logger: logger}
}

// Run performs one sweep.
func (j *DownloadLinkSweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := j.now().Add(-j.ttl)
	deleted, err := j.repo.DeleteExpiredDownloadLinks(ctx, cutoff)
	if err != nil {
		j.logger.Error("failed to delete expired download links", "error", err)
		return
	}
	j.logger.Info("download link sweep finished", "deleted", deleted, "cutoff", cutoff)
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  *DownloadLinkSweeper
	schedule string
	logger   *slog.Logger
}

// NewScheduler creates a new scheduler instance. A panicking job is recovered and logged.
func NewScheduler(sweeper *DownloadLinkSweeper, schedule string, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))
	if schedule == "" {
		schedule = DefaultDownloadLinkSweepSchedule
	}
	return &Scheduler{cron: c, sweeper: sweeper, schedule: schedule, logger: logger}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweeper.Run); err != nil {
		s.logger.Error("failed to schedule download link sweep", "error", err)
		return err
	}
	s.logger.Info("scheduled download link sweep", "schedule", s.schedule)
	s.cron.Start()
	return nil
}

// Stop stops the scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
