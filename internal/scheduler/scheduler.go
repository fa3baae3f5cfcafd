// Package scheduler is a minimal cooperative scheduler: a list of
// (next-run-time, task) entries advanced by a single timer tick. Tasks run
// sequentially on the scheduler goroutine; a task in progress always runs
// to completion, even across cancellation.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// Task is one scheduled unit of work.
type Task struct {
	Name string
	Run  func(ctx context.Context)

	next    time.Time
	advance func(after time.Time) time.Time
}

// Every returns a task that runs at a fixed interval, first run one
// interval after start.
func Every(name string, interval time.Duration, run func(ctx context.Context)) *Task {
	return &Task{
		Name: name,
		Run:  run,
		advance: func(after time.Time) time.Time {
			return after.Add(interval)
		},
	}
}

// DailyAt returns a task that runs once a day at the given wall-clock time.
func DailyAt(name string, hour, minute int, run func(ctx context.Context)) *Task {
	return &Task{
		Name: name,
		Run:  run,
		advance: func(after time.Time) time.Time {
			next := time.Date(after.Year(), after.Month(), after.Day(), hour, minute, 0, 0, after.Location())
			if !next.After(after) {
				next = next.AddDate(0, 0, 1)
			}
			return next
		},
	}
}

// WeeklyAt returns a task that runs once a week on the given weekday.
func WeeklyAt(name string, day time.Weekday, hour, minute int, run func(ctx context.Context)) *Task {
	return &Task{
		Name: name,
		Run:  run,
		advance: func(after time.Time) time.Time {
			next := time.Date(after.Year(), after.Month(), after.Day(), hour, minute, 0, 0, after.Location())
			for next.Weekday() != day || !next.After(after) {
				next = next.AddDate(0, 0, 1)
			}
			return next
		},
	}
}

// Scheduler advances a prioritized task list on a single ticker.
type Scheduler struct {
	tasks  []*Task
	tick   time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Scheduler over the given tasks.
func New(logger *slog.Logger, tasks ...*Task) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		tasks:  tasks,
		tick:   time.Second,
		logger: logger,
		now:    time.Now,
	}
}

// Run blocks until ctx is cancelled, running each task whenever its
// next-run time comes due.
func (s *Scheduler) Run(ctx context.Context) {
	start := s.now()
	for _, t := range s.tasks {
		t.next = t.advance(start)
		s.logger.Debug("scheduler: task scheduled", "task", t.Name, "next", t.next)
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler: stopped")
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// runDue executes every due task in next-run order and advances it.
func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now()

	due := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !t.next.After(now) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].next.Before(due[j].next) })

	for _, t := range due {
		s.logger.Debug("scheduler: running task", "task", t.Name)
		t.Run(ctx)
		t.next = t.advance(s.now())
		s.logger.Debug("scheduler: task done", "task", t.Name, "next", t.next)
	}
}
