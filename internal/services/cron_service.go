package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSweepSchedule runs the session sweeper at second 0 of every minute
const DefaultSweepSchedule = "0 * * * * *"

// CronService manages scheduled background jobs
type CronService struct {
	cron     *cron.Cron
	sessions SessionStatusAdvancer
	schedule string
	timeout  time.Duration
	now      func() time.Time
	logger   *logrus.Logger
}

// NewCronService creates a new CronService. An empty schedule uses
// DefaultSweepSchedule.
func NewCronService(sessions SessionStatusAdvancer, schedule string, logger *logrus.Logger) *CronService {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	// Cron format: second minute hour day month weekday
	c := cron.New(cron.WithSeconds())

	return &CronService{
		cron:     c,
		sessions: sessions,
		schedule: schedule,
		timeout:  30 * time.Second,
		now:      time.Now,
		logger:   logger,
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	if _, err := s.cron.AddFunc(s.schedule, s.advanceSessionsJob); err != nil {
		return fmt.Errorf("failed to schedule session sweeper: %w", err)
	}
	s.logger.WithField("schedule", s.schedule).Info("Scheduled: session status sweeper")

	s.cron.Start()
	s.logger.Info("Cron service started")

	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// advanceSessionsJob moves upcoming sessions to ongoing and finished ones to completed
func (s *CronService) advanceSessionsJob() {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started, completed, err := s.sessions.AdvanceStatuses(ctx, s.now().UTC())
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Session status sweep failed")
		return
	}

	entry := s.logger.WithFields(logrus.Fields{
		"started":   started,
		"completed": completed,
		"duration":  time.Since(startTime).String(),
	})
	if started+completed > 0 {
		entry.Info("[CRON] Session statuses advanced")
		return
	}
	entry.Debug("[CRON] No session status changes")
}

// RunSessionSweepNow runs the session sweeper immediately
func (s *CronService) RunSessionSweepNow() {
	s.logger.Info("[MANUAL] Running session status sweep now...")
	s.advanceSessionsJob()
}
