// Package scheduler runs periodic maintenance of the activity store.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs maintenance once an hour.
const DefaultSchedule = "@every 1h"

const defaultTick = 30 * time.Second

// Job is one maintenance task.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler runs a fixed set of jobs on one cron schedule.
type Scheduler struct {
	schedule cron.Schedule
	spec     string
	jobs     []Job
	tick     time.Duration
	now      func() time.Time
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job names currently executing (dedup)

	statusMu sync.Mutex
	nextRun  time.Time
	lastRun  map[string]RunResult
}

// RunResult is the outcome of the latest run of a job.
type RunResult struct {
	At    time.Time     `json:"at"`
	Took  time.Duration `json:"took"`
	Error string        `json:"error,omitempty"`
}

// Parser accepts five-field cron expressions and descriptors such as
// "@hourly" or "@every 15m".
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewScheduler parses spec (empty selects DefaultSchedule) and returns a
// stopped scheduler for jobs.
func NewScheduler(spec string, jobs []Job, logger *slog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	schedule, err := Parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", spec, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedule: schedule,
		spec:     spec,
		jobs:     jobs,
		tick:     defaultTick,
		now:      time.Now,
		logger:   logger,
		inflight: make(map[string]struct{}),
		lastRun:  make(map[string]RunResult),
	}, nil
}

// Spec returns the schedule expression.
func (s *Scheduler) Spec() string { return s.spec }

// CalculateNextRun computes the next run time after from.
func (s *Scheduler) CalculateNextRun(from time.Time) time.Time {
	return s.schedule.Next(from)
}

// Start launches the background loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.setNext(s.CalculateNextRun(s.now()))
	go s.loop(schedCtx)
	s.logger.Info("scheduler started", slog.String("schedule", s.spec), slog.Int("jobs", len(s.jobs)))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.now()
			if now.Before(s.Next()) {
				continue
			}
			s.RunAll(ctx)
			s.setNext(s.CalculateNextRun(now))
		}
	}
}

// RunAll runs every job once, in order. A job still running from an
// earlier call is skipped.
func (s *Scheduler) RunAll(ctx context.Context) {
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		if !s.tryAcquire(job.Name) {
			continue // already running (dedup)
		}
		s.runJob(ctx, job)
		s.releaseJob(job.Name)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	start := s.now()
	err := job.Run(ctx)
	res := RunResult{At: start, Took: s.now().Sub(start)}
	if err != nil {
		res.Error = err.Error()
		s.logger.Error("maintenance job failed",
			slog.String("job", job.Name),
			slog.String("error", err.Error()),
		)
	} else {
		s.logger.Debug("maintenance job done", slog.String("job", job.Name), slog.Duration("took", res.Took))
	}

	s.statusMu.Lock()
	s.lastRun[job.Name] = res
	s.statusMu.Unlock()
}

// LastRun returns the latest result of the named job.
func (s *Scheduler) LastRun(name string) (RunResult, bool) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	r, ok := s.lastRun[name]
	return r, ok
}

// Next returns the next planned run.
func (s *Scheduler) Next() time.Time {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.nextRun
}

func (s *Scheduler) setNext(t time.Time) {
	s.statusMu.Lock()
	s.nextRun = t
	s.statusMu.Unlock()
}

// tryAcquire returns true and marks the job as in-flight if it is not already running.
func (s *Scheduler) tryAcquire(name string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[name]; ok {
		return false
	}
	s.inflight[name] = struct{}{}
	return true
}

// releaseJob removes the job from the in-flight set.
func (s *Scheduler) releaseJob(name string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, name)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
