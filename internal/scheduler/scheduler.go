package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/strumline/guitar-crm-api/pkg/config"
)

type insightsRunner interface {
	RunWeeklyDigest(ctx context.Context) error
	RunOverdueSweep(ctx context.Context) error
}

// Scheduler runs the weekly teacher digest and the daily overdue assignment
// sweep on cron schedules. Jobs run in the server's local time zone.
type Scheduler struct {
	engine   *cron.Cron
	insights insightsRunner
	config   config.InsightsConfig
	logger   *zap.Logger
}

// New constructs a Scheduler. Call Start to register and run the jobs.
func New(insights insightsRunner, cfg config.InsightsConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		engine:   cron.New(cron.WithLocation(time.Local)),
		insights: insights,
		config:   cfg,
		logger:   logger,
	}
}

// Start registers the cron jobs and starts the engine. An invalid cron spec
// is returned as an error rather than registering a partial schedule.
func (s *Scheduler) Start() error {
	if _, err := s.engine.AddFunc(s.config.WeeklyCronSpec, s.runWeeklyDigest); err != nil {
		return err
	}
	if _, err := s.engine.AddFunc(s.config.OverdueCronSpec, s.runOverdueSweep); err != nil {
		return err
	}

	s.engine.Start()
	s.logger.Info("scheduler started",
		zap.String("weekly_cron", s.config.WeeklyCronSpec),
		zap.String("overdue_cron", s.config.OverdueCronSpec))
	return nil
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.engine.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runWeeklyDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	s.logger.Info("weekly digest job triggered")
	if err := s.insights.RunWeeklyDigest(ctx); err != nil {
		s.logger.Error("weekly digest job failed", zap.Error(err))
	}
}

func (s *Scheduler) runOverdueSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s.logger.Info("overdue sweep job triggered")
	if err := s.insights.RunOverdueSweep(ctx); err != nil {
		s.logger.Error("overdue sweep job failed", zap.Error(err))
	}
}
