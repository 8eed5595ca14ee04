// Package scheduler repeats the campaign loop on a fixed interval while the
// service is running.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TickFunc is one pass of scheduled work.
type TickFunc func(ctx context.Context) error

// Status is a point-in-time view of the scheduler for the admin API.
type Status struct {
	Running   bool       `json:"running"`
	Interval  string     `json:"interval"`
	Ticks     int64      `json:"ticks"`
	Failures  int64      `json:"failures"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

type Scheduler struct {
	interval time.Duration
	tickFn   TickFunc
	logger   *slog.Logger

	running  atomic.Bool
	ticks    atomic.Int64
	failures atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	lastMu  sync.RWMutex
	lastRun time.Time
	lastErr error
}

func New(interval time.Duration, tickFn TickFunc, logger *slog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval: interval,
		tickFn:   tickFn,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Start launches the loop with an immediate first tick. It returns false when
// the loop is already running.
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

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("scheduler started", "interval", s.interval.String())

		s.safeTick(ctx)

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler stopping")
				return
			case <-ticker.C:
				s.safeTick(ctx)
			}
		}
	}()

	return true
}

// Stop cancels the current tick and waits for the loop to exit.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	s.logger.Info("scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) Status() Status {
	st := Status{
		Running:  s.running.Load(),
		Interval: s.interval.String(),
		Ticks:    s.ticks.Load(),
		Failures: s.failures.Load(),
	}

	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	if !s.lastRun.IsZero() {
		last := s.lastRun
		st.LastRun = &last
		if st.Running {
			next := last.Add(s.interval)
			st.NextRun = &next
		}
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Scheduler) safeTick(ctx context.Context) {
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("tick panic: %v", r)
			}
		}()
		return s.tickFn(ctx)
	}()

	s.ticks.Add(1)
	s.lastMu.Lock()
	s.lastRun = start
	s.lastErr = err
	s.lastMu.Unlock()

	if err != nil {
		s.failures.Add(1)
		s.logger.Error("scheduler tick failed", "err", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	s.logger.Info("scheduler tick completed", "duration_ms", time.Since(start).Milliseconds())
}
