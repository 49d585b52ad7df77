package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/recall-agent/portfolio-rebalancer/internal/config"
	"github.com/recall-agent/portfolio-rebalancer/internal/logger"
)

// job names a scheduled unit of work for the single worker.
type job int

const (
	jobRebalance job = iota
	jobMonitor
	jobReview
)

func (j job) String() string {
	switch j {
	case jobRebalance:
		return "rebalance"
	case jobMonitor:
		return "monitor"
	case jobReview:
		return "review"
	}
	return "unknown"
}

// Scheduler drives the continuous mode: a daily rebalance, a periodic
// monitor pass and a weekly strategy review. Jobs are queued to a
// single worker so cycles never run concurrently; a trigger that fires
// while the queue is full is dropped rather than stacked.
type Scheduler struct {
	engine   *Engine
	schedule config.ScheduleConfig
	log      *logger.Logger
	queue    chan job
	nowFn    func() time.Time
}

// NewScheduler builds a scheduler over an engine. The schedule should
// already be validated by config.Load.
func NewScheduler(e *Engine, schedule config.ScheduleConfig, log *logger.Logger) *Scheduler {
	return &Scheduler{
		engine:   e,
		schedule: schedule,
		log:      log,
		queue:    make(chan job, 8),
		nowFn:    time.Now,
	}
}

// Run blocks until ctx is cancelled, dispatching jobs as their timers
// fire. An immediate rebalance is queued at startup so a freshly
// started agent does not wait a day for its first cycle.
func (s *Scheduler) Run(ctx context.Context) error {
	reviewDay, err := parseWeekday(s.schedule.ReviewWeekday)
	if err != nil {
		return err
	}

	s.enqueue(jobRebalance)

	monitorTicker := time.NewTicker(time.Duration(s.schedule.MonitorMinutes) * time.Minute)
	defer monitorTicker.Stop()

	rebalanceTimer := time.NewTimer(s.untilDaily(s.schedule.RebalanceTime))
	defer rebalanceTimer.Stop()

	reviewTimer := time.NewTimer(s.untilWeekly(reviewDay, s.schedule.ReviewTime))
	defer reviewTimer.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.worker(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			<-done
			return ctx.Err()
		case <-rebalanceTimer.C:
			s.enqueue(jobRebalance)
			rebalanceTimer.Reset(s.untilDaily(s.schedule.RebalanceTime))
		case <-monitorTicker.C:
			s.enqueue(jobMonitor)
		case <-reviewTimer.C:
			s.enqueue(jobReview)
			reviewTimer.Reset(s.untilWeekly(reviewDay, s.schedule.ReviewTime))
		}
	}
}

func (s *Scheduler) enqueue(j job) {
	select {
	case s.queue <- j:
	default:
		s.log.Warning("Scheduler queue full, dropping %s trigger", j)
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			var err error
			switch j {
			case jobRebalance:
				err = s.engine.RunCycle(ctx, TriggerDaily)
			case jobMonitor:
				err = s.engine.Monitor(ctx)
			case jobReview:
				err = s.engine.StrategyReview(ctx)
			}
			if err != nil && ctx.Err() == nil {
				s.log.Error("Scheduled %s failed: %v", j, err)
			}
		}
	}
}

// untilDaily returns the duration until the next occurrence of the
// HH:MM wall-clock time, local timezone.
func (s *Scheduler) untilDaily(at string) time.Duration {
	now := s.nowFn()
	hour, minute := mustClock(at)
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// untilWeekly returns the duration until the next occurrence of the
// given weekday at the HH:MM wall-clock time.
func (s *Scheduler) untilWeekly(day time.Weekday, at string) time.Duration {
	now := s.nowFn()
	hour, minute := mustClock(at)
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	daysAhead := (int(day) - int(now.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, daysAhead)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next.Sub(now)
}

// mustClock parses "HH:MM". Schedule strings are validated at config
// load time; a malformed value here falls back to midnight.
func mustClock(at string) (hour, minute int) {
	if _, err := fmt.Sscanf(at, "%d:%d", &hour, &minute); err != nil {
		return 0, 0
	}
	return hour, minute
}

func parseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), name) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}
