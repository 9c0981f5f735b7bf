// Package scheduler runs recurring triage passes on a cron expression or a
// fixed interval, optionally limited to a time-of-day window.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/marcus/triage/internal/config"
	"github.com/marcus/triage/internal/logging"
)

// Errors.
var (
	ErrNoSchedule     = errors.New("no schedule configured")
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
)

// Job is a unit of scheduled work.
type Job func(ctx context.Context) error

// TimeOfDay is an hour and minute on a 24h clock.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (a single-digit hour is accepted).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Window is a daily time range. End is exclusive; Start after End wraps
// midnight.
type Window struct {
	Start    TimeOfDay
	End      TimeOfDay
	Location *time.Location
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.Location != nil {
		t = t.In(w.Location)
	}
	now := t.Hour()*60 + t.Minute()
	start, end := w.Start.Minutes(), w.End.Minutes()
	if start <= end {
		return now >= start && now < end
	}
	return now >= start || now < end
}

// Scheduler fires registered jobs on a cron expression or interval.
type Scheduler struct {
	mu       sync.Mutex
	cronExpr string
	interval time.Duration
	window   *Window
	jobs     []Job

	running bool
	cron    *cron.Cron
	entryID cron.EntryID
	ticker  *time.Ticker
	nextRun time.Time
	cancel  context.CancelFunc
	done    chan struct{}

	logger *logging.Logger
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{logger: logging.Component("scheduler")}
}

// NewFromConfig builds a scheduler from cfg. It returns ErrNoSchedule when
// neither cron nor interval is set.
func NewFromConfig(cfg *config.ScheduleConfig) (*Scheduler, error) {
	s := New()
	switch {
	case cfg.Cron != "" && cfg.Interval != "":
		return nil, config.ErrScheduleConflict
	case cfg.Cron != "":
		if err := s.SetCron(cfg.Cron); err != nil {
			return nil, err
		}
	case cfg.Interval != "":
		d, err := time.ParseDuration(cfg.Interval)
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q: %w", cfg.Interval, err)
		}
		if err := s.SetInterval(d); err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoSchedule
	}

	if cfg.Window != nil {
		if err := s.SetWindow(cfg.Window); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SetCron sets a standard five-field cron expression and clears any interval.
func (s *Scheduler) SetCron(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cronExpr = expr
	s.interval = 0
	return nil
}

// SetInterval sets a fixed interval and clears any cron expression.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("interval must be positive, got %v", d)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
	s.cronExpr = ""
	return nil
}

// SetWindow restricts runs to a time-of-day window. An empty timezone means
// local time.
func (s *Scheduler) SetWindow(cfg *config.WindowConfig) error {
	start, err := ParseTimeOfDay(cfg.Start)
	if err != nil {
		return fmt.Errorf("window start: %w", err)
	}
	end, err := ParseTimeOfDay(cfg.End)
	if err != nil {
		return fmt.Errorf("window end: %w", err)
	}
	loc := time.Local
	if cfg.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return fmt.Errorf("window timezone: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = &Window{Start: start, End: end, Location: loc}
	return nil
}

// AddJob registers a job to run on every tick.
func (s *Scheduler) AddJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

// ScheduleCron sets expr and registers job.
func (s *Scheduler) ScheduleCron(expr string, job func()) error {
	if err := s.SetCron(expr); err != nil {
		return err
	}
	s.AddJob(func(context.Context) error {
		job()
		return nil
	})
	return nil
}

// ScheduleInterval sets d and registers job.
func (s *Scheduler) ScheduleInterval(d time.Duration, job func()) error {
	if err := s.SetInterval(d); err != nil {
		return err
	}
	s.AddJob(func(context.Context) error {
		job()
		return nil
	})
	return nil
}

// IsInWindow reports whether t is inside the configured window. With no
// window every time is inside.
func (s *Scheduler) IsInWindow(t time.Time) bool {
	s.mu.Lock()
	w := s.window
	s.mu.Unlock()
	if w == nil {
		return true
	}
	return w.Contains(t)
}

// Start begins firing jobs. Cancelling ctx stops the interval loop and
// is passed to every job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if s.cronExpr == "" && s.interval <= 0 {
		return ErrNoSchedule
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	if s.cronExpr != "" {
		c := cron.New()
		id, err := c.AddFunc(s.cronExpr, func() { s.tick(runCtx) })
		if err != nil {
			cancel()
			return fmt.Errorf("adding cron job: %w", err)
		}
		c.Start()
		s.cron = c
		s.entryID = id
		go func() {
			<-runCtx.Done()
			close(s.done)
		}()
		s.logger.Infof("scheduler started: cron %q", s.cronExpr)
	} else {
		s.ticker = time.NewTicker(s.interval)
		s.nextRun = time.Now().Add(s.interval)
		go s.loop(runCtx, s.ticker, s.interval)
		s.logger.Infof("scheduler started: every %s", s.interval)
	}

	s.running = true
	return nil
}

func (s *Scheduler) loop(ctx context.Context, ticker *time.Ticker, interval time.Duration) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			s.nextRun = now.Add(interval)
			s.mu.Unlock()
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !s.IsInWindow(time.Now()) {
		s.logger.Debug("outside schedule window, skipping")
		return
	}

	s.mu.Lock()
	jobs := make([]Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	for _, job := range jobs {
		if err := job(ctx); err != nil {
			s.logger.Errorf("scheduled job: %v", err)
		}
	}
}

// Stop halts the scheduler and waits for a running cron job to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	cancel, c, ticker, done := s.cancel, s.cron, s.ticker, s.done
	s.cron, s.ticker, s.cancel = nil, nil, nil
	s.nextRun = time.Time{}
	s.mu.Unlock()

	cancel()
	if c != nil {
		<-c.Stop().Done()
	}
	if ticker != nil {
		ticker.Stop()
	}
	<-done
	s.logger.Info("scheduler stopped")
	return nil
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled fire time, or zero when stopped.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	if s.cron != nil {
		return s.cron.Entry(s.entryID).Next
	}
	return s.nextRun
}

// Describe returns a human-readable schedule summary.
func (s *Scheduler) Describe() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var desc string
	switch {
	case s.cronExpr != "":
		desc = "cron " + s.cronExpr
	case s.interval > 0:
		desc = "every " + s.interval.String()
	default:
		return "none"
	}
	if s.window != nil {
		desc += fmt.Sprintf(" between %s and %s %s", s.window.Start, s.window.End, s.window.Location)
	}
	return desc
}
