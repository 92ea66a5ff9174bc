// Package scheduler runs the periodic maintenance jobs: the Jira catalog
// refresh and the purge of orphaned staged attachments.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dwizi/intakebot/internal/heartbeat"
)

const componentName = "scheduler"

type Job struct {
	Name string
	// Spec is a standard five-field cron expression or a descriptor such as
	// "@every 6h".
	Spec       string
	RunOnStart bool
	Run        func(ctx context.Context) error
}

type scheduledJob struct {
	Job
	schedule cron.Schedule
	next     time.Time
}

type Service struct {
	jobs     []*scheduledJob
	location *time.Location
	logger   *slog.Logger
	reporter heartbeat.Reporter
	now      func() time.Time
}

// New validates every job spec up front; a bad expression is a config error.
func New(jobs []Job, location *time.Location, logger *slog.Logger) (*Service, error) {
	if location == nil {
		location = time.UTC
	}
	scheduled := make([]*scheduledJob, 0, len(jobs))
	for _, job := range jobs {
		name := strings.TrimSpace(job.Name)
		if name == "" || job.Run == nil {
			return nil, errors.New("scheduler job needs a name and a run func")
		}
		schedule, err := cron.ParseStandard(strings.TrimSpace(job.Spec))
		if err != nil {
			return nil, fmt.Errorf("parse schedule for %s: %w", name, err)
		}
		job.Name = name
		scheduled = append(scheduled, &scheduledJob{Job: job, schedule: schedule})
	}
	return &Service{
		jobs:     scheduled,
		location: location,
		logger:   logger.With("component", componentName),
		now:      time.Now,
	}, nil
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

func (s *Service) Name() string {
	return componentName
}

func (s *Service) Start(ctx context.Context) error {
	if len(s.jobs) == 0 {
		s.report(func(r heartbeat.Reporter) { r.Disabled(componentName, "no jobs configured") })
		<-ctx.Done()
		return nil
	}
	s.report(func(r heartbeat.Reporter) { r.Starting(componentName, "started") })

	now := s.now().In(s.location)
	for _, job := range s.jobs {
		job.next = job.schedule.Next(now)
		if job.RunOnStart {
			s.runJob(ctx, job)
		}
	}
	s.logger.Info("scheduler started", "jobs", len(s.jobs), "next_run", s.nextRun().Format(time.RFC3339))
	s.report(func(r heartbeat.Reporter) { r.Beat(componentName, "waiting for next run") })

	for {
		timer := time.NewTimer(time.Until(s.nextRun()))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.report(func(r heartbeat.Reporter) { r.Stopped(componentName, "stopped") })
			s.logger.Info("scheduler stopped")
			return nil
		case <-timer.C:
		}
		now := s.now().In(s.location)
		for _, job := range s.jobs {
			if job.next.After(now) {
				continue
			}
			s.runJob(ctx, job)
			job.next = job.schedule.Next(now)
		}
	}
}

func (s *Service) nextRun() time.Time {
	var earliest time.Time
	for _, job := range s.jobs {
		if earliest.IsZero() || job.next.Before(earliest) {
			earliest = job.next
		}
	}
	return earliest
}

func (s *Service) runJob(ctx context.Context, job *scheduledJob) {
	startedAt := s.now()
	err := job.Run(ctx)
	duration := s.now().Sub(startedAt)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("scheduled job failed", "job", job.Name, "duration_ms", duration.Milliseconds(), "error", err)
		s.report(func(r heartbeat.Reporter) { r.Degrade(componentName, job.Name+" failed", err) })
		return
	}
	s.logger.Info("scheduled job completed", "job", job.Name, "duration_ms", duration.Milliseconds())
	s.report(func(r heartbeat.Reporter) { r.Beat(componentName, job.Name+" completed") })
}

func (s *Service) report(fn func(heartbeat.Reporter)) {
	if s.reporter != nil {
		fn(s.reporter)
	}
}
