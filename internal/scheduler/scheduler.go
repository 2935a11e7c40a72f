package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Jobs are the periodic tasks the scheduler drives.
type Jobs struct {
	// SendReminders runs on ReminderCron.
	SendReminders func(ctx context.Context) (int, error)
	// RefreshAverage runs every AverageInterval.
	RefreshAverage func(ctx context.Context) error
}

type Config struct {
	ReminderCron    string
	AverageInterval time.Duration
	Location        *time.Location
}

type Scheduler struct {
	sched  gocron.Scheduler
	logger *zap.Logger
}

func New(ctx context.Context, cfg Config, jobs Jobs, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	s := &Scheduler{sched: sched, logger: logger}

	if jobs.SendReminders != nil && strings.TrimSpace(cfg.ReminderCron) != "" {
		_, err := sched.NewJob(
			gocron.CronJob(strings.TrimSpace(cfg.ReminderCron), false),
			gocron.NewTask(func() {
				sent, err := jobs.SendReminders(ctx)
				if err != nil {
					logger.Warn("reminder_job_failed", zap.Int("sent", sent), zap.Error(err))
					return
				}
				logger.Info("reminder_job_done", zap.Int("sent", sent))
			}),
			gocron.WithName("send_reminders"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("reminder job: %w", err)
		}
	}

	if jobs.RefreshAverage != nil && cfg.AverageInterval > 0 {
		_, err := sched.NewJob(
			gocron.DurationJob(cfg.AverageInterval),
			gocron.NewTask(func() {
				if err := jobs.RefreshAverage(ctx); err != nil {
					logger.Warn("average_job_failed", zap.Error(err))
				}
			}),
			gocron.WithName("refresh_average"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("average job: %w", err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("scheduler_start", zap.Int("jobs", len(s.sched.Jobs())))
	s.sched.Start()
}

// JobNames lists the registered jobs.
func (s *Scheduler) JobNames() []string {
	jobs := s.sched.Jobs()
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Name())
	}
	return out
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
