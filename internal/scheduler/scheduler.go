// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

const archiveTimeout = 5 * time.Minute

// Archiver uploads a leaderboard archive and reports where it went.
type Archiver interface {
	Upload(ctx context.Context) (string, error)
}

type Scheduler struct {
	scheduler *gocron.Scheduler
	archiver  Archiver
	interval  time.Duration
	log       *slog.Logger
}

func New(archiver Archiver, interval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		archiver:  archiver,
		interval:  interval,
		log:       log,
	}
}

// Start schedules the archive upload every interval, first run one interval
// from now. Overlapping runs are skipped.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		return fmt.Errorf("archive interval must be positive, got %s", s.interval)
	}
	if _, err := s.scheduler.Every(s.interval).WaitForSchedule().SingletonMode().Do(s.archive); err != nil {
		return fmt.Errorf("schedule archive: %w", err)
	}
	s.scheduler.StartAsync()
	s.log.Info("archive scheduler started", "interval", s.interval)
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) archive() {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	url, err := s.archiver.Upload(ctx)
	if err != nil {
		s.log.Error("scheduled archive failed", "err", err)
		return
	}
	s.log.Info("scheduled archive done", "url", url)
}
