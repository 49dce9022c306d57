package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule yields the next fire time strictly after t. cron.Schedule
// satisfies it.
type Schedule interface {
	Next(t time.Time) time.Time
}

// ParseSpec parses a standard five-field cron spec, optionally prefixed
// with CRON_TZ=<zone>.
func ParseSpec(spec string) (Schedule, error) {
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

type every time.Duration

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

// Every fires at a fixed interval after each run.
func Every(d time.Duration) Schedule { return every(d) }

type Status struct {
	Running bool       `json:"running"`
	LastRun *time.Time `json:"last_run,omitempty"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

type Scheduler struct {
	schedule Schedule
	tickFn   func(context.Context)

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	tickMu  sync.Mutex
	stateMu sync.Mutex
	lastRun time.Time
	nextRun time.Time
}

func New(schedule Schedule, tickFn func(context.Context)) (*Scheduler, error) {
	if schedule == nil {
		return nil, errors.New("schedule must not be nil")
	}
	if e, ok := schedule.(every); ok && e <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	return &Scheduler{
		schedule: schedule,
		tickFn:   tickFn,
		done:     make(chan struct{}),
	}, nil
}

// Start runs one tick immediately and then one per schedule fire time.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		slog.Info("scheduler started")

		s.safeTick(ctx)

		for {
			next := s.schedule.Next(time.Now())
			if next.IsZero() {
				slog.Warn("schedule has no further fire times")
				<-ctx.Done()
				return
			}
			s.setNext(next)

			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				slog.Info("scheduler stopping")
				return
			case <-timer.C:
				s.safeTick(ctx)
			}
		}
	}()

	return true
}

func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)
	s.setNext(time.Time{})

	slog.Info("scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// RunNow performs one tick in the caller's goroutine. It waits for a
// scheduled tick already in progress.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.safeTick(ctx)
}

func (s *Scheduler) Status() Status {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	st := Status{Running: s.running.Load()}
	if !s.lastRun.IsZero() {
		last := s.lastRun
		st.LastRun = &last
	}
	if st.Running && !s.nextRun.IsZero() {
		next := s.nextRun
		st.NextRun = &next
	}
	return st
}

func (s *Scheduler) setNext(t time.Time) {
	s.stateMu.Lock()
	s.nextRun = t
	s.stateMu.Unlock()
}

func (s *Scheduler) safeTick(ctx context.Context) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler tick panic recovered", "panic", r)
		}
	}()

	start := time.Now()
	s.stateMu.Lock()
	s.lastRun = start.UTC()
	s.stateMu.Unlock()

	s.tickFn(ctx)
	slog.Info("scheduler tick completed", "duration_ms", time.Since(start).Milliseconds())
}
